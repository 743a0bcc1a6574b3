package repository

import "time"

// SessionRecord is the immutable history row persisted when a sync session
// reaches a terminal state.
type SessionRecord struct {
	ID               string
	StartedAt        time.Time
	CompletedAt      *time.Time
	Status           string
	FailReason       string
	TransactionCount int
	ImportedCount    int
	SkippedCount     int
}
