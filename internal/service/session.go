package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/banksync/internal/bank"
	"github.com/jask/banksync/internal/dedup"
	"github.com/jask/banksync/internal/rules"
)

// State is the sync session lifecycle state.
type State string

const (
	StateAwaitingBankAuth State = "awaiting_bank_auth"
	StateAwaitingTan      State = "awaiting_tan"
	StateFetching         State = "fetching_transactions"
	StateReviewing        State = "reviewing_transactions"
	StateImporting        State = "importing_to_ynab"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// FailureReason classifies why a session failed. Per-transaction import
// rejections are never failures; they live on the transaction outcome.
type FailureReason string

const (
	FailureAuth       FailureReason = "auth_failed"
	FailureTanTimeout FailureReason = "tan_timeout"
	FailureFetch      FailureReason = "fetch_failed"
	FailureTransport  FailureReason = "import_transport_failed"
	FailureDatabase   FailureReason = "database_error"
)

// TransactionStatus tracks the pipeline's handling of one transaction. It is
// independent of the duplicate verdict: a skipped transaction stays skipped
// whatever the detector said.
type TransactionStatus string

const (
	StatusPending           TransactionStatus = "pending"
	StatusAutoCategorized   TransactionStatus = "auto_categorized"
	StatusManualCategorized TransactionStatus = "manual_categorized"
	StatusNeedsAttention    TransactionStatus = "needs_attention"
	StatusSkipped           TransactionStatus = "skipped"
	StatusImported          TransactionStatus = "imported"
)

// Split allocates part of a transaction's amount to a category. A split
// transaction carries at least two entries summing to the full amount.
type Split struct {
	CategoryID   string
	CategoryName string
	Amount       decimal.Decimal
	Memo         string
}

// OutcomeKind discriminates ImportOutcome.
type OutcomeKind int

const (
	// OutcomeNotSent means the transaction was never submitted (not yet
	// imported, skipped, or withheld as a local duplicate).
	OutcomeNotSent OutcomeKind = iota
	OutcomeImported
	OutcomeRejectedDuplicate
	OutcomeRejectedOther
)

// ImportOutcome is the budget service's authoritative per-transaction answer
// from the import run.
type ImportOutcome struct {
	Kind OutcomeKind
	// DuplicateImportID is the import id the service rejected as duplicate.
	DuplicateImportID string
	Message           string
	// DetectionMiss marks a remote duplicate rejection for a transaction the
	// local detector had classified NotDuplicate. The disagreement is
	// surfaced, not swallowed.
	DetectionMiss bool
}

// SyncTransaction is the mutable per-session wrapper around an immutable
// bank transaction.
type SyncTransaction struct {
	Bank bank.Transaction

	Status        TransactionStatus
	CategoryID    string
	CategoryName  string
	MatchedRuleID string
	PayeeOverride string
	Links         []rules.MerchantLink
	Notes         string
	Duplicate     dedup.Status
	Outcome       ImportOutcome
	Splits        []Split

	prevStatus TransactionStatus // restored on unskip
}

// EffectivePayee is the payee submitted on import: the override when set,
// the bank payee otherwise.
func (t *SyncTransaction) EffectivePayee() string {
	if t.PayeeOverride != "" {
		return t.PayeeOverride
	}
	return t.Bank.Payee
}

// Session is one sync run. All access goes through the Manager, which owns
// the single-writer discipline.
type Session struct {
	ID           string
	State        State
	FailReason   FailureReason
	StartedAt    time.Time
	CompletedAt  time.Time
	Transactions []*SyncTransaction

	ImportedCount int
	SkippedCount  int

	// Version increments on every mutation; stale readers can detect that
	// their snapshot no longer reflects the session.
	Version uint64

	auth   bank.AuthSession
	tokens bank.Tokens
}

func (s *Session) find(id string) *SyncTransaction {
	for _, t := range s.Transactions {
		if t.Bank.ID == id {
			return t
		}
	}
	return nil
}

// Snapshot is a read-only copy of the session handed to callers.
type Snapshot struct {
	ID            string
	State         State
	FailReason    FailureReason
	StartedAt     time.Time
	CompletedAt   time.Time
	Version       uint64
	ImportedCount int
	SkippedCount  int
	Transactions  []SyncTransaction
	TanChallenge  *bank.TanChallenge
}

// Errors reported by session operations.
var (
	ErrSessionInProgress = errors.New("sync session already in progress")
	ErrNoSession         = errors.New("no active sync session")
	ErrAlreadyImported   = errors.New("transaction already imported")
	ErrInvalidSplit      = errors.New("invalid split")
	ErrNotEligible       = errors.New("transaction not eligible for import")
)

// InvalidStateError reports an operation attempted in the wrong session
// state, naming both sides for debuggability.
type InvalidStateError struct {
	Op       string
	Expected State
	Actual   State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: invalid session state: expected %s, got %s", e.Op, e.Expected, e.Actual)
}

// NotFoundError reports the transaction ids an operation could not find.
type NotFoundError struct {
	IDs []string
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 1 {
		return fmt.Sprintf("transaction %s not in session", e.IDs[0])
	}
	return fmt.Sprintf("%d transactions not in session: %v", len(e.IDs), e.IDs)
}
