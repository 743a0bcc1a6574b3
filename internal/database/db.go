package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the banksync sqlite database at path. Foreign keys are enforced
// and writers wait up to five seconds on a locked file; the pool is capped at
// one connection since sqlite serializes writers anyway.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func WithTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Now returns the current UTC time truncated to whole seconds, the precision
// sqlite stores, so session timestamps survive a round trip unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
