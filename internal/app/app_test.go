package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/app"
	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/rajarshidattapy/R-Credit/internal/notify"
	"github.com/rajarshidattapy/R-Credit/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// humanVerifier accepts proofs of the form "human:<fingerprint>".
type humanVerifier struct{}

func (humanVerifier) Verify(_ context.Context, proof string) (*identity.Attestation, error) {
	fingerprint, ok := strings.CutPrefix(proof, "human:")
	if !ok {
		return nil, errs.ErrInvalidAttestation
	}
	return &identity.Attestation{Fingerprint: fingerprint, Issuer: "test"}, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (p *capturePublisher) Publish(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Topic)
	}
	return out
}

type harness struct {
	app       *app.App
	store     *memory.Store
	clock     *testClock
	publisher *capturePublisher
}

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		StoreDriver:         "memory",
		LockTimeout:         time.Second,
		JWTIssuer:           "r-credit",
		JWTAudience:         "r-credit-api",
		JWTSigningKey:       "test-signing-key",
		SessionTTL:          time.Hour,
		VaultMode:           "ledger",
		NotifyMode:          "log",
		WorkerBatchSize:     50,
		SweepBatchSize:      10,
		SweepParallelism:    2,
		WSPollInterval:      10 * time.Millisecond,
		OperatorAPIKey:      "ops-key",
		MaxRequestBodyBytes: 1 << 20,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore().WithClock(clock.Now)
	publisher := &capturePublisher{}
	cfg := testConfig()

	a, err := app.New(cfg, credit.DefaultPolicy(), app.MemoryRepositories(store, cfg.LockTimeout),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		app.Options{Verifier: humanVerifier{}, Publisher: publisher, Now: clock.Now})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return &harness{app: a, store: store, clock: clock, publisher: publisher}
}

func (h *harness) newIdentity(t *testing.T, fingerprint string) *identity.Identity {
	t.Helper()
	item, err := h.app.Registry.CreateIdentity(context.Background(), "human:"+fingerprint)
	require.NoError(t, err)
	return item
}

// activeLoan takes a loan from request to active.
func (h *harness) activeLoan(t *testing.T, identityID string, principal int64, days int) *loan.Entity {
	t.Helper()
	ctx := context.Background()
	item, err := h.app.Loans.Request(ctx, identityID, principal, days)
	require.NoError(t, err)
	_, err = h.app.Loans.Disburse(ctx, item.ID)
	require.NoError(t, err)
	item, err = h.app.Loans.Activate(ctx, item.ID)
	require.NoError(t, err)
	return item
}

func (h *harness) defaultLoan(t *testing.T, identityID string) {
	t.Helper()
	item := h.activeLoan(t, identityID, 100000, 7)
	h.clock.Advance(8 * 24 * time.Hour)
	_, err := h.app.Loans.MarkDefault(context.Background(), item.ID)
	require.NoError(t, err)
}

func TestNewIdentityStartsAtZeroScore(t *testing.T) {
	h := newHarness(t)
	item := h.newIdentity(t, "alice")

	profile, err := h.app.Ledger.Profile(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, profile.CreditScore)
	assert.Equal(t, int64(500000), profile.BorrowingLimit)
	assert.False(t, profile.Frozen)

	_, err = h.app.Registry.CreateIdentity(context.Background(), "human:alice")
	assert.ErrorIs(t, err, errs.ErrDuplicateIdentity)
}

func TestRepaidLoanClosesAndRaisesScore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	borrower := h.newIdentity(t, "bob")

	item := h.activeLoan(t, borrower.ID, 500000, 30)
	assert.Equal(t, loan.StateActive, item.State)
	require.NotNil(t, item.DueAt)
	assert.Equal(t, item.CreatedAt.AddDate(0, 0, 30), *item.DueAt)

	balance, err := h.app.Vault.Balance(ctx, borrower.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), balance.AmountMinor)

	_, err = h.app.Loans.Repay(ctx, item.ID, item.PrincipalMinor)
	assert.ErrorIs(t, err, errs.ErrIncompleteRepayment)

	closed, err := h.app.Loans.Repay(ctx, item.ID, item.AmountDueMinor())
	require.NoError(t, err)
	assert.Equal(t, loan.StateClosed, closed.State)
	assert.Equal(t, loan.OutcomeRepaid, closed.Outcome)

	score, err := h.app.Ledger.CurrentScore(ctx, borrower.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, score)

	ob, err := h.app.Obligations.Get(ctx, closed.ObligationID)
	require.NoError(t, err)
	assert.Equal(t, obligation.StatusMet, ob.Status)

	_, err = h.app.Loans.Repay(ctx, item.ID, item.AmountDueMinor())
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestRequestAboveLimitIsRejectedAndPersisted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	borrower := h.newIdentity(t, "carol")

	item, err := h.app.Loans.Request(ctx, borrower.ID, 1200000, 30)
	require.ErrorIs(t, err, errs.ErrInsufficientCredit)
	require.NotNil(t, item)
	assert.Equal(t, loan.StateRejected, item.State)

	items, err := h.app.Loans.ListByIdentity(ctx, borrower.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "insufficient_credit", items[0].RejectReason)
}

func TestDisburseTwiceMovesFundsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	borrower := h.newIdentity(t, "dave")

	item, err := h.app.Loans.Request(ctx, borrower.ID, 200000, 14)
	require.NoError(t, err)

	first, err := h.app.Loans.Disburse(ctx, item.ID)
	require.NoError(t, err)
	second, err := h.app.Loans.Disburse(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, first.DisbursementRef, second.DisbursementRef)
	assert.Len(t, h.store.Vault().Entries(borrower.ID), 1)
	assert.Len(t, h.store.Outbox().Jobs(loan.TopicLoanDisbursed), 1)
}

func TestThirdStrikeFreezesIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	borrower := h.newIdentity(t, "erin")

	for range 3 {
		h.defaultLoan(t, borrower.ID)
	}

	frozen, err := h.app.Registry.IsFrozen(ctx, borrower.ID)
	require.NoError(t, err)
	assert.True(t, frozen)

	limit, err := h.app.Ledger.BorrowingLimit(ctx, borrower.ID)
	require.NoError(t, err)
	assert.Zero(t, limit)

	item, err := h.app.Loans.Request(ctx, borrower.ID, 1000, 7)
	require.ErrorIs(t, err, errs.ErrIdentityFrozen)
	assert.Equal(t, loan.StateRejected, item.State)
	assert.Len(t, h.store.Outbox().Jobs(credit.TopicFrozenAccount), 1)

	h.clock.Advance(7 * 30 * 24 * time.Hour)
	frozen, err = h.app.Registry.IsFrozen(ctx, borrower.ID)
	require.NoError(t, err)
	assert.False(t, frozen)
}

func TestOverdueLoanIsDefaultedBySweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	borrower := h.newIdentity(t, "frank")
	item := h.activeLoan(t, borrower.ID, 100000, 7)

	result, err := h.app.Sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)

	h.clock.Advance(8 * 24 * time.Hour)
	result, err = h.app.Sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Defaulted)

	got, err := h.app.Loans.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StateClosed, got.State)
	assert.Equal(t, loan.OutcomeDefaulted, got.Outcome)

	acc, err := h.app.Ledger.Account(ctx, borrower.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), acc.ScoreRaw)
	assert.Equal(t, 0, acc.Score())
	assert.Equal(t, int32(1), acc.StrikeCount)

	report, err := h.app.Ledger.Replay(ctx, borrower.ID)
	require.NoError(t, err)
	assert.False(t, report.Drift)
}

func TestLoanDefaultFlagsPendingAssetObligations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	issuer := h.newIdentity(t, "grace")

	due := h.clock.Now().AddDate(0, 3, 0)
	asset, err := h.app.Obligations.RegisterAsset(ctx, obligation.CreateInput{
		IssuerIdentityID: issuer.ID,
		Kind:             obligation.KindAssetYield,
		Reference:        "bond-7",
		AmountMinor:      25000,
		DueAt:            &due,
	})
	require.NoError(t, err)

	h.defaultLoan(t, issuer.ID)

	got, err := h.app.Obligations.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.True(t, got.PenaltyFlagged)
	assert.Equal(t, obligation.StatusPending, got.Status)

	risk, err := h.app.Obligations.IssuerRisk(ctx, issuer.ID)
	require.NoError(t, err)
	assert.Equal(t, obligation.RiskDefault, risk.Label)
}

func TestRepayAndSweepRaceHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	borrower := h.newIdentity(t, "heidi")
	item := h.activeLoan(t, borrower.ID, 100000, 7)
	h.clock.Advance(8 * 24 * time.Hour)

	var (
		wg       sync.WaitGroup
		repayErr error
		sweepErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, repayErr = h.app.Loans.Repay(ctx, item.ID, item.AmountDueMinor())
	}()
	go func() {
		defer wg.Done()
		_, sweepErr = h.app.Loans.MarkDefault(ctx, item.ID)
	}()
	wg.Wait()

	require.True(t, (repayErr == nil) != (sweepErr == nil), "repay=%v default=%v", repayErr, sweepErr)
	loser := repayErr
	if loser == nil {
		loser = sweepErr
	}
	assert.True(t, errors.Is(loser, errs.ErrInvalidTransition))

	got, err := h.app.Loans.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StateClosed, got.State)

	events, err := h.app.Ledger.Events(ctx, borrower.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestWorkerPublishesLoanLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	borrower := h.newIdentity(t, "ivan")
	item := h.activeLoan(t, borrower.ID, 100000, 30)
	_, err := h.app.Loans.Repay(ctx, item.ID, item.AmountDueMinor())
	require.NoError(t, err)

	require.NoError(t, h.app.Worker.RunOnce(ctx, 10))
	assert.Equal(t, []string{loan.TopicLoanDisbursed, loan.TopicLoanRepaid}, h.publisher.Topics())
	for _, job := range h.store.Outbox().Jobs("") {
		assert.Equal(t, "done", job.Status, job.Topic)
	}
}

func TestOpenRepositoriesRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.StoreDriver = "sqlite"
	_, err := app.OpenRepositories(context.Background(), cfg)
	require.Error(t, err)

	cfg.StoreDriver = "memory"
	repos, err := app.OpenRepositories(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, repos.Pinger)
}
