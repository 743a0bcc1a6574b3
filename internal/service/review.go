package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// splitTolerance is the maximum allowed absolute difference between a
// transaction amount and the sum of its splits.
var splitTolerance = decimal.New(1, -2) // 0.01

// reviewing locks the manager and returns the active session if it is in
// review; every per-transaction mutation goes through here.
func (m *Manager) reviewing(op string) (*Session, func(), error) {
	m.mu.Lock()
	sess := m.cur
	if sess == nil {
		m.mu.Unlock()
		return nil, nil, ErrNoSession
	}
	if sess.State != StateReviewing {
		st := sess.State
		m.mu.Unlock()
		return nil, nil, &InvalidStateError{Op: op, Expected: StateReviewing, Actual: st}
	}
	return sess, m.mu.Unlock, nil
}

// Categorize assigns a category (or clears it with an empty id). A manual
// action always overrides a rule match; any splits are cleared.
func (m *Manager) Categorize(id, categoryID, categoryName string) error {
	sess, unlock, err := m.reviewing("categorize")
	if err != nil {
		return err
	}
	defer unlock()
	tx := sess.find(id)
	if tx == nil {
		return &NotFoundError{IDs: []string{id}}
	}
	return categorizeLocked(sess, tx, categoryID, categoryName)
}

func categorizeLocked(sess *Session, tx *SyncTransaction, categoryID, categoryName string) error {
	if tx.Status == StatusImported {
		return ErrAlreadyImported
	}
	tx.CategoryID = categoryID
	tx.CategoryName = categoryName
	tx.Splits = nil
	tx.MatchedRuleID = ""
	if categoryID == "" {
		tx.Status = StatusPending
	} else {
		tx.Status = StatusManualCategorized
	}
	tx.prevStatus = tx.Status
	sess.Version++
	return nil
}

// BulkCategorize applies Categorize to every id. Ids that exist are all
// updated; missing ids are reported through a NotFoundError, never silently
// dropped.
func (m *Manager) BulkCategorize(ids []string, categoryID, categoryName string) error {
	sess, unlock, err := m.reviewing("bulk categorize")
	if err != nil {
		return err
	}
	defer unlock()
	var missing []string
	for _, id := range ids {
		tx := sess.find(id)
		if tx == nil {
			missing = append(missing, id)
			continue
		}
		if err := categorizeLocked(sess, tx, categoryID, categoryName); err != nil {
			return fmt.Errorf("transaction %s: %w", id, err)
		}
	}
	if len(missing) > 0 {
		return &NotFoundError{IDs: missing}
	}
	return nil
}

// Skip excludes a transaction from import. Reversible until the import run.
func (m *Manager) Skip(id string) error {
	sess, unlock, err := m.reviewing("skip")
	if err != nil {
		return err
	}
	defer unlock()
	tx := sess.find(id)
	if tx == nil {
		return &NotFoundError{IDs: []string{id}}
	}
	if tx.Status == StatusImported {
		return ErrAlreadyImported
	}
	if tx.Status == StatusSkipped {
		return nil
	}
	tx.prevStatus = tx.Status
	tx.Status = StatusSkipped
	sess.Version++
	return nil
}

// Unskip restores the status the transaction had before it was skipped.
func (m *Manager) Unskip(id string) error {
	sess, unlock, err := m.reviewing("unskip")
	if err != nil {
		return err
	}
	defer unlock()
	tx := sess.find(id)
	if tx == nil {
		return &NotFoundError{IDs: []string{id}}
	}
	if tx.Status == StatusImported {
		return ErrAlreadyImported
	}
	if tx.Status != StatusSkipped {
		return nil
	}
	tx.Status = tx.prevStatus
	sess.Version++
	return nil
}

// SetSplits replaces the transaction's split allocation after validating it.
// On a validation error the prior state is left untouched.
func (m *Manager) SetSplits(id string, splits []Split) error {
	sess, unlock, err := m.reviewing("split")
	if err != nil {
		return err
	}
	defer unlock()
	tx := sess.find(id)
	if tx == nil {
		return &NotFoundError{IDs: []string{id}}
	}
	if tx.Status == StatusImported {
		return ErrAlreadyImported
	}
	if err := validateSplits(tx.Bank.Amount, splits); err != nil {
		return err
	}
	tx.Splits = append([]Split(nil), splits...)
	if tx.Status == StatusPending || tx.Status == StatusNeedsAttention {
		tx.Status = StatusManualCategorized
		tx.prevStatus = tx.Status
	}
	sess.Version++
	return nil
}

// ClearSplit reverts the transaction to single-category mode.
func (m *Manager) ClearSplit(id string) error {
	sess, unlock, err := m.reviewing("clear split")
	if err != nil {
		return err
	}
	defer unlock()
	tx := sess.find(id)
	if tx == nil {
		return &NotFoundError{IDs: []string{id}}
	}
	if tx.Status == StatusImported {
		return ErrAlreadyImported
	}
	tx.Splits = nil
	sess.Version++
	return nil
}

// OverridePayee sets the payee submitted on import; empty restores the bank
// payee.
func (m *Manager) OverridePayee(id, payee string) error {
	sess, unlock, err := m.reviewing("override payee")
	if err != nil {
		return err
	}
	defer unlock()
	tx := sess.find(id)
	if tx == nil {
		return &NotFoundError{IDs: []string{id}}
	}
	if tx.Status == StatusImported {
		return ErrAlreadyImported
	}
	tx.PayeeOverride = payee
	sess.Version++
	return nil
}

// SetNote attaches a user note to the transaction.
func (m *Manager) SetNote(id, note string) error {
	sess, unlock, err := m.reviewing("set note")
	if err != nil {
		return err
	}
	defer unlock()
	tx := sess.find(id)
	if tx == nil {
		return &NotFoundError{IDs: []string{id}}
	}
	tx.Notes = note
	sess.Version++
	return nil
}

// validateSplits enforces the split invariant: at least two entries whose
// amounts sum to the transaction amount within splitTolerance. Violations
// are reported, never silently corrected.
func validateSplits(total decimal.Decimal, splits []Split) error {
	if len(splits) < 2 {
		return fmt.Errorf("%w: need at least 2 entries, got %d", ErrInvalidSplit, len(splits))
	}
	sum := decimal.Zero
	for i, s := range splits {
		if s.CategoryID == "" {
			return fmt.Errorf("%w: entry %d has no category", ErrInvalidSplit, i+1)
		}
		sum = sum.Add(s.Amount)
	}
	if diff := sum.Sub(total).Abs(); diff.GreaterThan(splitTolerance) {
		return fmt.Errorf("%w: entries sum to %s, transaction amount is %s", ErrInvalidSplit,
			sum.StringFixed(2), total.StringFixed(2))
	}
	return nil
}
