package ynab

import "context"

// Client is the budget-service capability the sync pipeline depends on.
// Implementations must translate transport failures into errors and
// per-transaction rejections into ImportResult values.
type Client interface {
	// ListRecentTransactions returns the recent window of transactions used
	// to seed duplicate detection.
	ListRecentTransactions(ctx context.Context, budgetID string) ([]ExistingTransaction, error)

	// ListCategories returns the budget's categories.
	ListCategories(ctx context.Context, budgetID string) ([]Category, error)

	// ImportTransaction submits a single transaction. A duplicate-import-id
	// or other rejection is reported through the ImportResult, never as an
	// error.
	ImportTransaction(ctx context.Context, budgetID, accountID string, tx NewTransaction) (ImportResult, error)
}
