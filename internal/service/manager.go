package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jask/banksync/internal/bank"
	"github.com/jask/banksync/internal/database"
	"github.com/jask/banksync/internal/database/repository"
	"github.com/jask/banksync/internal/dedup"
	"github.com/jask/banksync/internal/rules"
	"github.com/jask/banksync/internal/ynab"
)

// RuleSource supplies the enabled rules in priority order.
type RuleSource interface {
	EnabledByPriority(ctx context.Context) ([]rules.Rule, error)
}

// SessionStore persists terminal session summaries.
type SessionStore interface {
	Persist(ctx context.Context, rec repository.SessionRecord) error
}

// Options configure a Manager.
type Options struct {
	BudgetID      string
	BankAccountID string
	YnabAccountID string
	DaysBack      int
	// ImportTimeout bounds each per-transaction import call.
	ImportTimeout time.Duration
}

// Manager owns the single active sync session. Every mutation happens under
// one mutex and bumps the session version, so review mutations can never
// race; network calls run outside the lock and re-validate the session when
// they come back.
type Manager struct {
	mu  sync.Mutex
	cur *Session

	bank    bank.Client
	budget  ynab.Client
	rules   RuleSource
	history SessionStore
	opts    Options
	log     zerolog.Logger
}

// NewManager wires a Manager from its collaborators.
func NewManager(bankClient bank.Client, budget ynab.Client, ruleSource RuleSource, history SessionStore, opts Options, log zerolog.Logger) *Manager {
	if opts.DaysBack <= 0 {
		opts.DaysBack = 30
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = 15 * time.Second
	}
	return &Manager{
		bank:    bankClient,
		budget:  budget,
		rules:   ruleSource,
		history: history,
		opts:    opts,
		log:     log,
	}
}

// Start begins a new sync session. It fails fast with ErrSessionInProgress
// while another session is non-terminal. When the bank requires no TAN the
// session proceeds straight through fetch into review.
func (m *Manager) Start(ctx context.Context, creds bank.Credentials) (Snapshot, error) {
	m.mu.Lock()
	if m.cur != nil && !m.cur.State.Terminal() {
		m.mu.Unlock()
		return Snapshot{}, ErrSessionInProgress
	}
	sess := &Session{
		ID:        uuid.NewString(),
		State:     StateAwaitingBankAuth,
		StartedAt: database.Now(),
	}
	m.cur = sess
	m.mu.Unlock()

	m.log.Info().Str("session", sess.ID).Msg("sync session started")

	auth, err := m.bank.StartAuth(ctx, creds)

	m.mu.Lock()
	if m.cur != sess {
		m.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	if err != nil {
		snap := m.failLocked(ctx, sess, FailureAuth, err)
		m.mu.Unlock()
		return snap, fmt.Errorf("start auth: %w", err)
	}
	sess.auth = auth
	sess.Version++
	if auth.Challenge != nil {
		sess.State = StateAwaitingTan
		snap := snapshot(sess)
		m.mu.Unlock()
		m.log.Info().Str("session", sess.ID).Str("challenge", auth.Challenge.Kind).Msg("awaiting tan confirmation")
		return snap, nil
	}
	m.mu.Unlock()

	return m.completeAndFetch(ctx, sess)
}

// ConfirmTan is called after the user approved the push TAN on their phone.
// A confirmation arriving after the bank-side challenge expired fails the
// session with FailureTanTimeout.
func (m *Manager) ConfirmTan(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	sess := m.cur
	if sess == nil || sess.State.Terminal() {
		m.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	if sess.State != StateAwaitingTan {
		st := sess.State
		m.mu.Unlock()
		return Snapshot{}, &InvalidStateError{Op: "confirm tan", Expected: StateAwaitingTan, Actual: st}
	}
	m.mu.Unlock()

	return m.completeAndFetch(ctx, sess)
}

// completeAndFetch finishes authentication, fetches the transaction window
// and runs rule matching plus duplicate detection, leaving the session in
// review.
func (m *Manager) completeAndFetch(ctx context.Context, sess *Session) (Snapshot, error) {
	tokens, err := m.bank.CompleteAuth(ctx, sess.auth)

	m.mu.Lock()
	if m.cur != sess || sess.State.Terminal() {
		m.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	if err != nil {
		reason := FailureAuth
		if errors.Is(err, bank.ErrTanExpired) {
			reason = FailureTanTimeout
		}
		snap := m.failLocked(ctx, sess, reason, err)
		m.mu.Unlock()
		return snap, fmt.Errorf("complete auth: %w", err)
	}
	sess.tokens = tokens
	sess.State = StateFetching
	sess.Version++
	m.mu.Unlock()

	ruleList, err := m.rules.EnabledByPriority(ctx)
	if err != nil {
		return m.fail(ctx, sess, FailureDatabase, fmt.Errorf("load rules: %w", err))
	}
	ruleSet, err := rules.Compile(ruleList)
	if err != nil {
		// stored rules are validated on create; a compile failure here means
		// the store was modified out of band
		return m.fail(ctx, sess, FailureDatabase, fmt.Errorf("compile rules: %w", err))
	}

	existing, err := m.budget.ListRecentTransactions(ctx, m.opts.BudgetID)
	if err != nil {
		return m.fail(ctx, sess, FailureFetch, fmt.Errorf("list budget transactions: %w", err))
	}
	detector := dedup.NewDetector(existing)

	fetched, err := m.bank.FetchTransactions(ctx, tokens, m.opts.BankAccountID, m.opts.DaysBack)
	if err != nil {
		return m.fail(ctx, sess, FailureFetch, fmt.Errorf("fetch transactions: %w", err))
	}

	txs := make([]*SyncTransaction, 0, len(fetched))
	for _, bt := range fetched {
		st := &SyncTransaction{Bank: bt, Status: StatusPending, prevStatus: StatusPending}
		if rule, ok := ruleSet.Match(bt.Payee, bt.Memo); ok {
			st.Status = StatusAutoCategorized
			st.CategoryID = rule.CategoryID
			st.CategoryName = rule.CategoryName
			st.MatchedRuleID = rule.ID
			if rule.PayeeOverride != "" {
				st.PayeeOverride = rule.PayeeOverride
			}
		}
		// merchant detection never assigns a category and never overrides a
		// rule match; it only attaches links and flags uncategorized rows
		st.Links = rules.DetectMerchantLinks(bt.Payee, bt.Memo)
		if len(st.Links) > 0 && st.Status == StatusPending {
			st.Status = StatusNeedsAttention
		}
		st.Duplicate = detector.Detect(bt)
		txs = append(txs, st)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != sess || sess.State != StateFetching {
		return Snapshot{}, ErrNoSession
	}
	sess.Transactions = txs
	sess.State = StateReviewing
	sess.Version++
	m.log.Info().Str("session", sess.ID).Int("fetched", len(txs)).Int("rules", ruleSet.Len()).Msg("transactions ready for review")
	return snapshot(sess), nil
}

// Cancel discards the active session without persisting a history record.
// Allowed from any non-terminal state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil || m.cur.State.Terminal() {
		return ErrNoSession
	}
	m.log.Info().Str("session", m.cur.ID).Str("state", string(m.cur.State)).Msg("sync session cancelled")
	m.cur = nil
	return nil
}

// Current returns a snapshot of the active or most recently finished session.
func (m *Manager) Current() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return Snapshot{}, ErrNoSession
	}
	return snapshot(m.cur), nil
}

// fail marks the session failed, persists the history record and returns the
// terminal snapshot alongside the wrapped cause.
func (m *Manager) fail(ctx context.Context, sess *Session, reason FailureReason, err error) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != sess || sess.State.Terminal() {
		return Snapshot{}, ErrNoSession
	}
	return m.failLocked(ctx, sess, reason, err), err
}

func (m *Manager) failLocked(ctx context.Context, sess *Session, reason FailureReason, cause error) Snapshot {
	sess.State = StateFailed
	sess.FailReason = reason
	sess.CompletedAt = database.Now()
	sess.Version++
	m.log.Error().Str("session", sess.ID).Str("reason", string(reason)).Err(cause).Msg("sync session failed")
	m.persistLocked(ctx, sess)
	return snapshot(sess)
}

func (m *Manager) persistLocked(ctx context.Context, sess *Session) {
	completed := sess.CompletedAt
	rec := repository.SessionRecord{
		ID:               sess.ID,
		StartedAt:        sess.StartedAt,
		CompletedAt:      &completed,
		Status:           string(sess.State),
		FailReason:       string(sess.FailReason),
		TransactionCount: len(sess.Transactions),
		ImportedCount:    sess.ImportedCount,
		SkippedCount:     sess.SkippedCount,
	}
	if err := m.history.Persist(ctx, rec); err != nil {
		m.log.Error().Str("session", sess.ID).Err(err).Msg("persist session history")
	}
}

func snapshot(sess *Session) Snapshot {
	snap := Snapshot{
		ID:            sess.ID,
		State:         sess.State,
		FailReason:    sess.FailReason,
		StartedAt:     sess.StartedAt,
		CompletedAt:   sess.CompletedAt,
		Version:       sess.Version,
		ImportedCount: sess.ImportedCount,
		SkippedCount:  sess.SkippedCount,
		Transactions:  make([]SyncTransaction, len(sess.Transactions)),
	}
	for i, t := range sess.Transactions {
		snap.Transactions[i] = *t
	}
	if sess.State == StateAwaitingTan {
		snap.TanChallenge = sess.auth.Challenge
	}
	return snap
}
