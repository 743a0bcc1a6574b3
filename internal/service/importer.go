package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/banksync/internal/database"
	"github.com/jask/banksync/internal/dedup"
	"github.com/jask/banksync/internal/ynab"
)

// Import runs the bulk send to the budget service. Transactions that are
// skipped, already imported, or locally confirmed duplicates are withheld;
// ids listed in force are submitted regardless of any duplicate verdict,
// local or remote (users are the final authority on heuristics).
//
// Submissions run sequentially with a per-call timeout. A per-transaction
// rejection never aborts the batch; only a transport failure does. The
// session ends Completed even on partial success, with counts populated.
func (m *Manager) Import(ctx context.Context, force ...string) (Snapshot, error) {
	m.mu.Lock()
	sess := m.cur
	if sess == nil {
		m.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	if sess.State != StateReviewing {
		st := sess.State
		m.mu.Unlock()
		return Snapshot{}, &InvalidStateError{Op: "import", Expected: StateReviewing, Actual: st}
	}

	forced := make(map[string]bool, len(force))
	var missing []string
	for _, id := range force {
		tx := sess.find(id)
		if tx == nil {
			missing = append(missing, id)
			continue
		}
		if tx.Status == StatusSkipped || tx.Status == StatusImported {
			m.mu.Unlock()
			return Snapshot{}, fmt.Errorf("force import %s: %w (status %s)", id, ErrNotEligible, tx.Status)
		}
		forced[id] = true
	}
	if len(missing) > 0 {
		m.mu.Unlock()
		return Snapshot{}, &NotFoundError{IDs: missing}
	}

	var queue []*SyncTransaction
	withheld := 0
	for _, tx := range sess.Transactions {
		switch {
		case tx.Status == StatusSkipped || tx.Status == StatusImported:
			continue
		case tx.Duplicate.Kind == dedup.ConfirmedDuplicate && !forced[tx.Bank.ID]:
			withheld++
			continue
		}
		queue = append(queue, tx)
	}
	sess.State = StateImporting
	sess.Version++
	m.mu.Unlock()

	m.log.Info().Str("session", sess.ID).Int("queued", len(queue)).Int("withheld", withheld).Msg("importing to budget service")

	for _, tx := range queue {
		nt, err := m.buildImport(tx, forced[tx.Bank.ID])
		if err != nil {
			// split state drifted since validation; record and move on
			m.applyOutcome(sess, tx, ImportOutcome{Kind: OutcomeRejectedOther, Message: err.Error()}, false)
			m.log.Warn().Str("session", sess.ID).Str("tx", tx.Bank.ID).Err(err).Msg("import skipped: validation failed at send time")
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, m.opts.ImportTimeout)
		res, err := m.budget.ImportTransaction(callCtx, m.opts.BudgetID, m.opts.YnabAccountID, nt)
		cancel()
		if err != nil {
			return m.fail(ctx, sess, FailureTransport, fmt.Errorf("import transaction %s: %w", tx.Bank.ID, err))
		}

		switch res.Kind {
		case ynab.Accepted:
			m.applyOutcome(sess, tx, ImportOutcome{Kind: OutcomeImported}, true)
		case ynab.RejectedDuplicate:
			out := ImportOutcome{
				Kind:              OutcomeRejectedDuplicate,
				DuplicateImportID: nt.ImportID,
				Message:           res.Message,
				DetectionMiss:     tx.Duplicate.Kind == dedup.NotDuplicate,
			}
			m.applyOutcome(sess, tx, out, false)
			if out.DetectionMiss {
				m.log.Warn().Str("session", sess.ID).Str("tx", tx.Bank.ID).
					Msg("budget service rejected duplicate the local detector missed")
			}
		case ynab.RejectedOther:
			m.applyOutcome(sess, tx, ImportOutcome{Kind: OutcomeRejectedOther, Message: res.Message}, false)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != sess || sess.State != StateImporting {
		return Snapshot{}, ErrNoSession
	}
	imported, skipped := 0, 0
	for _, tx := range sess.Transactions {
		switch tx.Status {
		case StatusImported:
			imported++
		case StatusSkipped:
			skipped++
		}
	}
	sess.ImportedCount = imported
	sess.SkippedCount = skipped
	sess.State = StateCompleted
	sess.CompletedAt = database.Now()
	sess.Version++
	m.persistLocked(ctx, sess)
	m.log.Info().Str("session", sess.ID).Int("imported", imported).Int("skipped", skipped).
		Int("total", len(sess.Transactions)).Msg("sync session completed")
	return snapshot(sess), nil
}

// buildImport assembles the wire transaction, re-validating splits
// immediately before send since review may have been open a long time.
func (m *Manager) buildImport(tx *SyncTransaction, forced bool) (ynab.NewTransaction, error) {
	nt := ynab.NewTransaction{
		Date:       tx.Bank.BookingDate,
		Amount:     tx.Bank.Amount,
		PayeeName:  tx.EffectivePayee(),
		Memo:       importMemo(tx),
		CategoryID: tx.CategoryID,
		ImportID:   ynab.ImportID(tx.Bank.ID),
	}
	// a forced resubmission goes out without an import id: the service would
	// reject the deterministic one forever, and the user has explicitly
	// overruled duplicate detection
	if forced {
		nt.ImportID = ""
	}
	if len(tx.Splits) > 0 {
		if err := validateSplits(tx.Bank.Amount, tx.Splits); err != nil {
			return ynab.NewTransaction{}, err
		}
		nt.CategoryID = ""
		for _, s := range tx.Splits {
			nt.SubTransactions = append(nt.SubTransactions, ynab.SubTransaction{
				Amount:     s.Amount,
				CategoryID: s.CategoryID,
				Memo:       s.Memo,
			})
		}
	}
	return nt, nil
}

// importMemo embeds the bank reference in the memo so later sessions can
// confirm duplicates by reference.
func importMemo(tx *SyncTransaction) string {
	memo := tx.Bank.Memo
	if ref := tx.Bank.Reference; ref != "" && !strings.Contains(memo, ref) {
		memo = strings.TrimSpace(memo + " [" + ref + "]")
	}
	if tx.Notes != "" {
		memo = strings.TrimSpace(memo + " | " + tx.Notes)
	}
	return memo
}

func (m *Manager) applyOutcome(sess *Session, tx *SyncTransaction, out ImportOutcome, imported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != sess {
		return
	}
	tx.Outcome = out
	if imported {
		tx.Status = StatusImported
	}
	sess.Version++
}
