package ynab

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExistingTransaction is a transaction already present in the budget, as
// returned by the transactions endpoint. Only the fields duplicate detection
// and review display need are kept.
type ExistingTransaction struct {
	ID        string
	Date      time.Time
	Amount    decimal.Decimal
	PayeeName string
	Memo      string
	ImportID  string
}

// Category is a budget category.
type Category struct {
	ID    string
	Name  string
	Group string
}

// SubTransaction is one split line of a NewTransaction. Amounts of all
// subtransactions must sum to the parent amount.
type SubTransaction struct {
	Amount     decimal.Decimal
	CategoryID string
	Memo       string
}

// NewTransaction is a transaction to be created in the budget. When
// SubTransactions is non-empty, CategoryID is ignored by the service and the
// split lines carry the allocation.
type NewTransaction struct {
	Date            time.Time
	Amount          decimal.Decimal
	PayeeName       string
	Memo            string
	CategoryID      string
	ImportID        string
	SubTransactions []SubTransaction
}

// ImportResultKind discriminates ImportResult.
type ImportResultKind int

const (
	// Accepted means the service created the transaction.
	Accepted ImportResultKind = iota
	// RejectedDuplicate means the service refused the transaction because a
	// transaction with the same import id already exists.
	RejectedDuplicate
	// RejectedOther covers every other per-transaction rejection.
	RejectedOther
)

// ImportResult is the per-transaction outcome of an import call. Rejections
// are normal outcomes, not errors; only transport failures surface as errors.
type ImportResult struct {
	Kind    ImportResultKind
	Message string
}

// Milliunits converts a decimal currency amount to the milliunit integer
// representation used on the wire (amount * 1000).
func Milliunits(d decimal.Decimal) int64 {
	return d.Shift(3).Round(0).IntPart()
}

// FromMilliunits converts a wire milliunit amount back to a decimal.
func FromMilliunits(m int64) decimal.Decimal {
	return decimal.New(m, -3)
}
