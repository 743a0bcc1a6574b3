package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/banksync/internal/bank"
	"github.com/jask/banksync/internal/rules"
	"github.com/jask/banksync/internal/ynab"
)

// startReviewing brings a manager into the reviewing state with the given
// transactions.
func startReviewing(t *testing.T, txs []bank.Transaction, ruleList []rules.Rule, existing []ynab.ExistingTransaction) (*Manager, *fakeBudget, *fakeHistory) {
	t.Helper()
	b := &fakeBank{txs: txs}
	y := &fakeBudget{existing: existing}
	h := &fakeHistory{}
	m := newTestManager(b, y, &fakeRuleSource{rules: ruleList}, h)
	snap, err := m.Start(context.Background(), bank.Credentials{})
	require.NoError(t, err)
	require.Equal(t, StateReviewing, snap.State)
	return m, y, h
}

func TestCategorizeOverridesRuleMatch(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-34.99", "AMAZON MARKETPLACE", "", ""),
	}, []rules.Rule{shoppingRule()}, nil)

	require.NoError(t, m.Categorize("tx-1", "cat-gifts", "Gifts"))
	snap, err := m.Current()
	require.NoError(t, err)
	tx := snap.Transactions[0]
	require.Equal(t, StatusManualCategorized, tx.Status, "manual action always overrides the rule")
	require.Equal(t, "cat-gifts", tx.CategoryID)
	require.Empty(t, tx.MatchedRuleID)
}

func TestCategorizeClearingResetsToPending(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-10.00", "REWE", "", ""),
	}, nil, nil)

	require.NoError(t, m.Categorize("tx-1", "cat-food", "Food"))
	require.NoError(t, m.Categorize("tx-1", "", ""))
	snap, _ := m.Current()
	require.Equal(t, StatusPending, snap.Transactions[0].Status)
	require.Empty(t, snap.Transactions[0].CategoryID)
}

func TestCategorizeClearsSplits(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-100.00", "REWE", "", ""),
	}, nil, nil)

	require.NoError(t, m.SetSplits("tx-1", []Split{
		{CategoryID: "a", Amount: decimal.RequireFromString("-60.00")},
		{CategoryID: "b", Amount: decimal.RequireFromString("-40.00")},
	}))
	require.NoError(t, m.Categorize("tx-1", "cat-food", "Food"))
	snap, _ := m.Current()
	require.Empty(t, snap.Transactions[0].Splits)
}

func TestCategorizeUnknownTransaction(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-10.00", "REWE", "", ""),
	}, nil, nil)

	err := m.Categorize("nope", "cat-food", "Food")
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	require.Equal(t, []string{"nope"}, nfe.IDs)
}

func TestSkipUnskipRestoresPriorStatus(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-34.99", "AMAZON MARKETPLACE", "", ""),
	}, []rules.Rule{shoppingRule()}, nil)

	require.NoError(t, m.Skip("tx-1"))
	snap, _ := m.Current()
	require.Equal(t, StatusSkipped, snap.Transactions[0].Status)

	require.NoError(t, m.Unskip("tx-1"))
	snap, _ = m.Current()
	require.Equal(t, StatusAutoCategorized, snap.Transactions[0].Status, "unskip restores the pre-skip status")
	require.Equal(t, "cat-shopping", snap.Transactions[0].CategoryID)
}

func TestSkipIsIdempotent(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-10.00", "REWE", "", ""),
	}, nil, nil)

	require.NoError(t, m.Skip("tx-1"))
	require.NoError(t, m.Skip("tx-1"))
	require.NoError(t, m.Unskip("tx-1"))
	snap, _ := m.Current()
	require.Equal(t, StatusPending, snap.Transactions[0].Status)
}

func TestSplitToleranceBoundary(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-100.00", "REWE", "", ""),
	}, nil, nil)

	// off by exactly 0.01: accepted
	require.NoError(t, m.SetSplits("tx-1", []Split{
		{CategoryID: "a", Amount: decimal.RequireFromString("-60.00")},
		{CategoryID: "b", Amount: decimal.RequireFromString("-39.99")},
	}))

	// off by 0.02: rejected, prior splits untouched
	err := m.SetSplits("tx-1", []Split{
		{CategoryID: "a", Amount: decimal.RequireFromString("-60.00")},
		{CategoryID: "b", Amount: decimal.RequireFromString("-39.98")},
	})
	require.ErrorIs(t, err, ErrInvalidSplit)

	snap, _ := m.Current()
	require.Len(t, snap.Transactions[0].Splits, 2)
	require.True(t, snap.Transactions[0].Splits[1].Amount.Equal(decimal.RequireFromString("-39.99")),
		"rejected split must not replace the accepted one")
}

func TestSplitSingleEntryRejected(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-100.00", "REWE", "", ""),
	}, nil, nil)

	err := m.SetSplits("tx-1", []Split{
		{CategoryID: "a", Amount: decimal.RequireFromString("-100.00")},
	})
	require.ErrorIs(t, err, ErrInvalidSplit, "a single-entry split list is rejected regardless of amount")
}

func TestSplitEntryWithoutCategoryRejected(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-100.00", "REWE", "", ""),
	}, nil, nil)

	err := m.SetSplits("tx-1", []Split{
		{CategoryID: "a", Amount: decimal.RequireFromString("-60.00")},
		{CategoryID: "", Amount: decimal.RequireFromString("-40.00")},
	})
	require.ErrorIs(t, err, ErrInvalidSplit)
}

func TestClearSplit(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-100.00", "REWE", "", ""),
	}, nil, nil)

	require.NoError(t, m.SetSplits("tx-1", []Split{
		{CategoryID: "a", Amount: decimal.RequireFromString("-60.00")},
		{CategoryID: "b", Amount: decimal.RequireFromString("-40.00")},
	}))
	require.NoError(t, m.ClearSplit("tx-1"))
	snap, _ := m.Current()
	require.Empty(t, snap.Transactions[0].Splits)
}

func TestBulkCategorizeReportsMissingIDs(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-10.00", "REWE", "", ""),
		makeBankTx("tx-2", "2026-03-03", "-20.00", "EDEKA", "", ""),
	}, nil, nil)

	err := m.BulkCategorize([]string{"tx-1", "nope", "tx-2"}, "cat-food", "Food")
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	require.Equal(t, []string{"nope"}, nfe.IDs)

	// the existing ids were still all updated
	snap, _ := m.Current()
	for _, tx := range snap.Transactions {
		require.Equal(t, "cat-food", tx.CategoryID)
		require.Equal(t, StatusManualCategorized, tx.Status)
	}
}

func TestOverridePayee(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-10.00", "AMZN MKTP DE*1X2Y3Z", "", ""),
	}, nil, nil)

	require.NoError(t, m.OverridePayee("tx-1", "Amazon"))
	snap, _ := m.Current()
	tx := snap.Transactions[0]
	require.Equal(t, "Amazon", tx.EffectivePayee())

	require.NoError(t, m.OverridePayee("tx-1", ""))
	snap, _ = m.Current()
	tx = snap.Transactions[0]
	require.Equal(t, "AMZN MKTP DE*1X2Y3Z", tx.EffectivePayee())
}

func TestSetNoteAttachedToTransaction(t *testing.T) {
	t.Parallel()

	m, _, _ := startReviewing(t, []bank.Transaction{
		makeBankTx("tx-1", "2026-03-02", "-10.00", "REWE", "", "REF-1"),
	}, nil, nil)

	require.NoError(t, m.SetNote("tx-1", "split with flatmate"))
	snap, err := m.Current()
	require.NoError(t, err)
	require.Equal(t, "split with flatmate", snap.Transactions[0].Notes)

	err = m.SetNote("tx-404", "x")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
