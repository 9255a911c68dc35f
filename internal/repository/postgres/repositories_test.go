package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	domain "github.com/rajarshidattapy/R-Credit/internal/domain/vault"
	"github.com/rajarshidattapy/R-Credit/internal/repository/postgres"
	"github.com/rajarshidattapy/R-Credit/internal/testutil"
	"github.com/rajarshidattapy/R-Credit/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityAndCreditRepositories(t *testing.T) {
	pool := testutil.Setup(t)
	ctx := context.Background()
	identities := postgres.NewIdentityRepository(pool)
	ledger := postgres.NewCreditRepository(pool)

	id := uuid.NewString()
	created, err := identities.Create(ctx, identity.CreateInput{ID: id, FingerprintHash: "fp-1"})
	require.NoError(t, err)
	assert.False(t, created.DeviceBound)

	_, err = identities.Create(ctx, identity.CreateInput{ID: uuid.NewString(), FingerprintHash: "fp-1"})
	require.ErrorIs(t, err, errs.ErrDuplicateIdentity)

	_, err = identities.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, errs.ErrIdentityNotFound)

	require.NoError(t, identities.SetDeviceBinding(ctx, id, "dev-hash"))
	got, err := identities.GetByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, got.DeviceBound)

	for _, delta := range []int64{50, -100, 60} {
		_, err := ledger.AppendEvent(ctx, credit.EventInput{IdentityID: id, Delta: delta, Reason: credit.ReasonRepayment})
		require.NoError(t, err)
	}
	acc, err := ledger.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acc.ScoreRaw)

	count, sum, err := ledger.SumEvents(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(10), sum)

	events, err := ledger.ListEvents(ctx, id, 2, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(60), events[0].Delta)

	_, err = ledger.AppendEvent(ctx, credit.EventInput{IdentityID: uuid.NewString(), Delta: 1, Reason: credit.ReasonRepayment})
	require.ErrorIs(t, err, errs.ErrIdentityNotFound)
}

func TestIdentityLockerTimesOut(t *testing.T) {
	pool := testutil.Setup(t)
	ctx := context.Background()
	locker := db.NewIdentityLocker(pool, 100*time.Millisecond)

	acquired := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithinIdentity(ctx, "id-a", func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	err := locker.WithinIdentity(ctx, "id-a", func(context.Context) error { return nil })
	require.ErrorIs(t, err, errs.ErrLockTimeout)
	require.NoError(t, locker.WithinIdentity(ctx, "id-b", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, <-done)
}

func TestUnitOfWorkRollsBackOnError(t *testing.T) {
	pool := testutil.Setup(t)
	ctx := context.Background()
	locker := db.NewIdentityLocker(pool, time.Second)
	identities := postgres.NewIdentityRepository(pool)

	id := uuid.NewString()
	err := locker.WithinIdentity(ctx, id, func(ctx context.Context) error {
		if _, err := identities.Create(ctx, identity.CreateInput{ID: id, FingerprintHash: "fp-rollback"}); err != nil {
			return err
		}
		return errs.ErrInvalidTransition
	})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	_, err = identities.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrIdentityNotFound)
}

func TestLoanAndObligationRepositories(t *testing.T) {
	pool := testutil.Setup(t)
	ctx := context.Background()
	id := uuid.NewString()
	_, err := postgres.NewIdentityRepository(pool).Create(ctx, identity.CreateInput{ID: id, FingerprintHash: "fp-loan"})
	require.NoError(t, err)

	loans := postgres.NewLoanRepository(pool)
	now := time.Now().UTC()
	item, err := loans.Create(ctx, loan.CreateInput{
		IdentityID: id, PrincipalMinor: 500000, InterestMinor: 4932, CurrencyCode: "INR",
		DurationDays: 30, InterestRateBPS: 1200, State: loan.StateApproved, CreatedAt: now, ApprovedAt: &now,
	})
	require.NoError(t, err)

	obligations := postgres.NewObligationRepository(pool)
	due := now.Add(-time.Hour)
	ob, err := obligations.Create(ctx, obligation.CreateInput{IssuerIdentityID: id, Kind: obligation.KindLoan, Reference: item.ID, AmountMinor: item.AmountDueMinor(), DueAt: &due})
	require.NoError(t, err)

	item.State = loan.StateActive
	item.ObligationID = ob.ID
	item.DueAt = &due
	require.NoError(t, loans.Save(ctx, item, loan.StateApproved))
	require.ErrorIs(t, loans.Save(ctx, item, loan.StateApproved), errs.ErrInvalidTransition)

	overdue, err := loans.ListOverdue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, ob.ID, overdue[0].ObligationID)

	flagged, err := obligations.FlagPendingByIssuer(ctx, id, "other", now)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	flagged, err = obligations.FlagPendingByIssuer(ctx, id, "other", now)
	require.NoError(t, err)
	assert.Empty(t, flagged)

	_, err = obligations.UpdateStatus(ctx, ob.ID, obligation.StatusPending, obligation.StatusMet)
	require.NoError(t, err)
	_, err = obligations.UpdateStatus(ctx, ob.ID, obligation.StatusPending, obligation.StatusMet)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestVaultInsertInsideUnitOfWork(t *testing.T) {
	pool := testutil.Setup(t)
	ctx := context.Background()
	id := uuid.NewString()
	_, err := postgres.NewIdentityRepository(pool).Create(ctx, identity.CreateInput{ID: id, FingerprintHash: "fp-vault"})
	require.NoError(t, err)

	repo := postgres.NewVaultRepository(pool)
	locker := db.NewIdentityLocker(pool, time.Second)
	in := vault.EntryInput{IdentityID: id, Direction: domain.DirectionCredit, AmountMinor: 700, IdempotencyKey: "loan:x"}

	err = locker.WithinIdentity(ctx, id, func(ctx context.Context) error {
		_, created, err := repo.InsertEntry(ctx, in)
		require.NoError(t, err)
		assert.True(t, created)

		_, _, err = repo.InsertEntry(ctx, vault.EntryInput{IdentityID: uuid.NewString(), Direction: domain.DirectionCredit, AmountMinor: 1, IdempotencyKey: "orphan"})
		require.ErrorIs(t, err, errs.ErrIdentityNotFound)

		_, created, err = repo.InsertEntry(ctx, in)
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	})
	require.NoError(t, err)

	balance, err := repo.BalanceOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
}

func TestOutboxClaimAndNotifications(t *testing.T) {
	pool := testutil.Setup(t)
	ctx := context.Background()
	outbox := postgres.NewOutboxRepository(pool)
	notes := postgres.NewWSRepository(pool)

	require.NoError(t, outbox.Enqueue(ctx, "loan_repaid", "", []byte(`{"loan_id":"x"}`)))
	claimed, err := outbox.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, int32(1), claimed[0].Attempts)
	assert.JSONEq(t, `{"loan_id":"x"}`, string(claimed[0].Payload))

	again, err := outbox.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, outbox.MarkDone(ctx, claimed[0].ID))

	latest, err := notes.LatestNotificationID(ctx)
	require.NoError(t, err)
	assert.Equal(t, claimed[0].ID, latest)
	list, err := notes.ListNotificationsSince(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "loan_repaid", list[0].Topic)
}
