package ynab

import "strings"

const (
	importIDPrefix = "banksync"

	// importIDMaxLen is the service's import_id field limit.
	importIDMaxLen = 36
)

// ImportID derives the deterministic import id for a bank transaction id:
// fixed prefix, colon, the bank id with all dashes stripped, truncated to the
// service's field limit. Generation and duplicate matching share this one
// function so the two can never drift apart.
func ImportID(bankTxID string) string {
	id := importIDPrefix + ":" + strings.ReplaceAll(bankTxID, "-", "")
	if len(id) > importIDMaxLen {
		id = id[:importIDMaxLen]
	}
	return id
}
