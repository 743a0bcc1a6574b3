// Package dedup classifies freshly fetched bank transactions against the
// budget service's recent transactions before import. It is a local belief:
// the service's own import-id rejection remains authoritative.
package dedup

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/jask/banksync/internal/bank"
	"github.com/jask/banksync/internal/ynab"
)

// Kind is the final duplicate classification.
type Kind int

const (
	NotDuplicate Kind = iota
	PossibleDuplicate
	ConfirmedDuplicate
)

func (k Kind) String() string {
	switch k {
	case ConfirmedDuplicate:
		return "confirmed"
	case PossibleDuplicate:
		return "possible"
	default:
		return "none"
	}
}

// SimilarityThreshold is the minimum normalized payee similarity for the
// fuzzy tier. Configuration constant, not tuned per user.
const SimilarityThreshold = 0.80

// Details records what every tier saw, regardless of the final verdict, so
// the review UI can show "checked, nothing found" instead of "not checked".
type Details struct {
	Reference string
	ImportID  string

	ImportIDMatched  bool
	ReferenceMatched bool

	FuzzyMatched bool
	Similarity   float64
	FuzzyDate    time.Time
	FuzzyAmount  decimal.Decimal
	FuzzyPayee   string
}

// Status is the detector's verdict for one bank transaction.
type Status struct {
	Kind Kind
	// Reason names the matched fields for possible duplicates.
	Reason string
	// MatchedReference identifies what a confirmed match was anchored on.
	MatchedReference string
	Details          Details
}

// Detector compares bank transactions against a fixed window of existing
// budget-service transactions.
type Detector struct {
	existing []ynab.ExistingTransaction
	byImport map[string]ynab.ExistingTransaction
}

// NewDetector indexes the existing transactions for repeated lookups.
func NewDetector(existing []ynab.ExistingTransaction) *Detector {
	d := &Detector{
		existing: existing,
		byImport: make(map[string]ynab.ExistingTransaction, len(existing)),
	}
	for _, et := range existing {
		if et.ImportID != "" {
			d.byImport[et.ImportID] = et
		}
	}
	return d
}

// Detect runs all three tiers over tx, collecting every signal, and then
// classifies by the strongest tier that fired: import-id and reference
// matches are confirmed duplicates, a date/amount/payee match is a possible
// one. Earlier tiers do not suppress the evaluation of later ones, only the
// classification.
func (d *Detector) Detect(tx bank.Transaction) Status {
	det := Details{
		Reference: tx.Reference,
		ImportID:  ynab.ImportID(tx.ID),
	}

	if _, ok := d.byImport[det.ImportID]; ok {
		det.ImportIDMatched = true
	}

	if tx.Reference != "" {
		for _, et := range d.existing {
			if strings.Contains(et.Memo, tx.Reference) {
				det.ReferenceMatched = true
				break
			}
		}
	}

	for _, et := range d.existing {
		if !sameDay(et.Date, tx.BookingDate) || !et.Amount.Equal(tx.Amount) {
			continue
		}
		sim := payeeSimilarity(et.PayeeName, tx.Payee)
		if sim >= SimilarityThreshold && sim > det.Similarity {
			det.FuzzyMatched = true
			det.Similarity = sim
			det.FuzzyDate = et.Date
			det.FuzzyAmount = et.Amount
			det.FuzzyPayee = et.PayeeName
		}
	}

	switch {
	case det.ImportIDMatched:
		return Status{
			Kind:             ConfirmedDuplicate,
			MatchedReference: "import_id " + det.ImportID,
			Details:          det,
		}
	case det.ReferenceMatched:
		return Status{
			Kind:             ConfirmedDuplicate,
			MatchedReference: "reference " + tx.Reference,
			Details:          det,
		}
	case det.FuzzyMatched:
		return Status{
			Kind: PossibleDuplicate,
			Reason: fmt.Sprintf("same date and amount, payee %.0f%% similar to %q",
				det.Similarity*100, det.FuzzyPayee),
			Details: det,
		}
	default:
		return Status{Kind: NotDuplicate, Details: det}
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// payeeSimilarity returns a normalized similarity in [0,1]: 1 when one
// normalized payee contains the other, otherwise one minus the Levenshtein
// distance over the longer length.
func payeeSimilarity(a, b string) float64 {
	na, nb := normalizePayee(a), normalizePayee(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if len(na) >= 3 && len(nb) >= 3 && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 1
	}
	dist := levenshtein.ComputeDistance(na, nb)
	// the distance counts runes, so the denominator must too or non-ASCII
	// payees come out inflated
	maxlen := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > maxlen {
		maxlen = n
	}
	return 1 - float64(dist)/float64(maxlen)
}

func normalizePayee(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}
