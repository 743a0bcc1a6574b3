package repository

import (
	"context"
	"database/sql"

	"github.com/jask/banksync/internal/database"
)

// historyKeep bounds the history table; Persist prunes everything older than
// the newest historyKeep records.
const historyKeep = 100

// SessionRepo persists sync session history. Append and read only; terminal
// records are never updated.
type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// Persist stores the terminal summary row for a finished session and prunes
// history beyond the retention bound, atomically.
func (r *SessionRepo) Persist(ctx context.Context, rec SessionRecord) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
	INSERT INTO sync_sessions(
	 id, started_at, completed_at, status, fail_reason, transaction_count, imported_count, skipped_count)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.StartedAt, rec.CompletedAt, rec.Status, rec.FailReason,
			rec.TransactionCount, rec.ImportedCount, rec.SkippedCount)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
	DELETE FROM sync_sessions WHERE id NOT IN (
	 SELECT id FROM sync_sessions ORDER BY started_at DESC LIMIT ?)
	`, historyKeep)
		return err
	})
}

// Recent returns the latest n session records, newest first.
func (r *SessionRepo) Recent(ctx context.Context, n int) ([]SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, started_at, completed_at, status, fail_reason, transaction_count, imported_count, skipped_count
	FROM sync_sessions ORDER BY started_at DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.CompletedAt, &rec.Status,
			&rec.FailReason, &rec.TransactionCount, &rec.ImportedCount, &rec.SkippedCount); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
