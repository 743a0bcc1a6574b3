package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jask/banksync/internal/bank"
	"github.com/jask/banksync/internal/database/repository"
	"github.com/jask/banksync/internal/rules"
	"github.com/jask/banksync/internal/ynab"
)

type fakeBank struct {
	challenge   *bank.TanChallenge
	startErr    error
	completeErr error
	fetchErr    error
	txs         []bank.Transaction

	// fetchGate, when set, blocks FetchTransactions until closed so tests
	// can observe the fetching state.
	fetchGate chan struct{}
}

func (f *fakeBank) StartAuth(ctx context.Context, creds bank.Credentials) (bank.AuthSession, error) {
	if f.startErr != nil {
		return bank.AuthSession{}, f.startErr
	}
	return bank.AuthSession{ID: "auth-1", Challenge: f.challenge}, nil
}

func (f *fakeBank) CompleteAuth(ctx context.Context, session bank.AuthSession) (bank.Tokens, error) {
	if f.completeErr != nil {
		return bank.Tokens{}, f.completeErr
	}
	return bank.Tokens{Access: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeBank) FetchTransactions(ctx context.Context, tokens bank.Tokens, accountID string, daysBack int) ([]bank.Transaction, error) {
	if f.fetchGate != nil {
		select {
		case <-f.fetchGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.txs, nil
}

type fakeBudget struct {
	mu         sync.Mutex
	existing   []ynab.ExistingTransaction
	categories []ynab.Category
	listErr    error

	// importFn decides each submission's outcome; defaults to Accepted.
	importFn func(tx ynab.NewTransaction) (ynab.ImportResult, error)
	imports  []ynab.NewTransaction
}

func (f *fakeBudget) ListRecentTransactions(ctx context.Context, budgetID string) ([]ynab.ExistingTransaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.existing, nil
}

func (f *fakeBudget) ListCategories(ctx context.Context, budgetID string) ([]ynab.Category, error) {
	return f.categories, nil
}

func (f *fakeBudget) ImportTransaction(ctx context.Context, budgetID, accountID string, tx ynab.NewTransaction) (ynab.ImportResult, error) {
	f.mu.Lock()
	f.imports = append(f.imports, tx)
	f.mu.Unlock()
	if f.importFn == nil {
		return ynab.ImportResult{Kind: ynab.Accepted}, nil
	}
	return f.importFn(tx)
}

func (f *fakeBudget) submitted() []ynab.NewTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ynab.NewTransaction(nil), f.imports...)
}

type fakeRuleSource struct {
	rules []rules.Rule
	err   error
}

func (f *fakeRuleSource) EnabledByPriority(ctx context.Context) ([]rules.Rule, error) {
	return f.rules, f.err
}

type fakeHistory struct {
	mu      sync.Mutex
	records []repository.SessionRecord
}

func (f *fakeHistory) Persist(ctx context.Context, rec repository.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) all() []repository.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.SessionRecord(nil), f.records...)
}

func makeBankTx(id, date, amount, payee, memo, ref string) bank.Transaction {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return bank.Transaction{
		ID:          id,
		BookingDate: d,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "EUR",
		Payee:       payee,
		Memo:        memo,
		Reference:   ref,
	}
}

func newTestManager(b *fakeBank, y *fakeBudget, rs *fakeRuleSource, h *fakeHistory) *Manager {
	return NewManager(b, y, rs, h, Options{
		BudgetID:      "budget-1",
		BankAccountID: "acct-1",
		YnabAccountID: "ynab-acct-1",
		DaysBack:      30,
		ImportTimeout: time.Second,
	}, zerolog.Nop())
}
