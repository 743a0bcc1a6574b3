package bank

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable fact fetched from the bank. It is never mutated
// after the fetch; per-session annotations live on the sync side.
type Transaction struct {
	ID          string
	BookingDate time.Time
	Amount      decimal.Decimal
	Currency    string
	Payee       string
	Memo        string
	// Reference is the bank-assigned end-to-end reference string; prior
	// imports embed it in the budget-service memo for traceability.
	Reference string
	// Raw keeps the original payload for debugging only.
	Raw json.RawMessage
}

// Credentials are the user's bank login credentials.
type Credentials struct {
	Username string
	PIN      string
}

// TanChallenge describes a pending push-TAN confirmation the user must
// approve out of band.
type TanChallenge struct {
	ID      string
	Kind    string
	Message string
}

// AuthSession is an in-progress authentication. Challenge is nil when the
// bank did not require a TAN for this login.
type AuthSession struct {
	ID        string
	Challenge *TanChallenge
}

// Tokens are the credentials for authenticated API calls after a completed
// login.
type Tokens struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// Sentinel errors implementations must return so the session state machine
// can map bank failures onto its failure taxonomy.
var (
	ErrAuthFailed     = errors.New("bank: authentication failed")
	ErrTanExpired     = errors.New("bank: tan challenge expired or rejected")
	ErrSessionExpired = errors.New("bank: session expired")
)

// Client is the bank capability the sync pipeline depends on. The production
// implementation wraps the bank's OAuth + push-TAN API; FileClient reads an
// account export instead.
type Client interface {
	// StartAuth begins a login and may return a session carrying a TAN
	// challenge the user has to confirm on their phone.
	StartAuth(ctx context.Context, creds Credentials) (AuthSession, error)

	// CompleteAuth finishes the login after the TAN was confirmed. Returns
	// ErrTanExpired when the bank-side challenge is no longer valid.
	CompleteAuth(ctx context.Context, session AuthSession) (Tokens, error)

	// FetchTransactions returns the account's transactions booked within the
	// last daysBack days.
	FetchTransactions(ctx context.Context, tokens Tokens, accountID string, daysBack int) ([]Transaction, error)
}
