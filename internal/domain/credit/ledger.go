package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

const recentEventsLimit = 20

type Ledger struct {
	repo   Repository
	outbox OutboxRepository
	locker Locker
	policy Policy
	now    func() time.Time
}

func NewLedger(repo Repository, outbox OutboxRepository, locker Locker, policy Policy) *Ledger {
	return &Ledger{
		repo:   repo,
		outbox: outbox,
		locker: locker,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the ledger's time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) Policy() Policy {
	return l.policy
}

func (l *Ledger) Account(ctx context.Context, identityID string) (*Account, error) {
	if strings.TrimSpace(identityID) == "" {
		return nil, errs.ErrIdentityNotFound
	}
	return l.repo.GetAccount(ctx, identityID)
}

func (l *Ledger) CurrentScore(ctx context.Context, identityID string) (int, error) {
	acc, err := l.Account(ctx, identityID)
	if err != nil {
		return 0, err
	}
	return acc.Score(), nil
}

func (l *Ledger) BorrowingLimit(ctx context.Context, identityID string) (int64, error) {
	acc, err := l.Account(ctx, identityID)
	if err != nil {
		return 0, err
	}
	return l.LimitOf(*acc), nil
}

// LimitOf evaluates the limit for an account already loaded by the caller.
func (l *Ledger) LimitOf(acc Account) int64 {
	return l.policy.LimitFor(acc.Score(), acc.FrozenAt(l.now()))
}

// ApplyEvent appends a credit event and returns the clamped score after it.
func (l *Ledger) ApplyEvent(ctx context.Context, identityID string, delta int64, reason Reason, reference string) (int, error) {
	switch reason {
	case ReasonInitialGrant, ReasonRepayment, ReasonDefault:
	default:
		return 0, fmt.Errorf("unknown credit reason %q", reason)
	}

	var score int
	err := l.locker.WithinIdentity(ctx, identityID, func(ctx context.Context) error {
		acc, err := l.repo.AppendEvent(ctx, EventInput{
			IdentityID: identityID,
			Delta:      delta,
			Reason:     reason,
			Reference:  strings.TrimSpace(reference),
		})
		if err != nil {
			return err
		}
		score = acc.Score()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// RecordStrike increments the strike count. Reaching the threshold freezes the
// account for the configured months; every further strike restarts the freeze.
func (l *Ledger) RecordStrike(ctx context.Context, identityID string) (int32, error) {
	var strikes int32
	err := l.locker.WithinIdentity(ctx, identityID, func(ctx context.Context) error {
		acc, err := l.repo.GetAccount(ctx, identityID)
		if err != nil {
			return err
		}
		strikes = acc.StrikeCount + 1
		frozenUntil := acc.FrozenUntil
		if strikes >= l.policy.StrikeThreshold {
			until := l.now().AddDate(0, l.policy.FreezeMonths, 0)
			frozenUntil = &until
		}
		if err := l.repo.SaveStrikes(ctx, identityID, strikes, frozenUntil); err != nil {
			return err
		}
		if strikes < l.policy.StrikeThreshold {
			return nil
		}
		payload, _ := json.Marshal(map[string]any{
			"identity_id":  identityID,
			"strike_count": strikes,
			"frozen_until": frozenUntil.UTC().Format(time.RFC3339),
		})
		return l.outbox.Enqueue(ctx, TopicFrozenAccount, identityID, payload)
	})
	if err != nil {
		return 0, err
	}
	return strikes, nil
}

func (l *Ledger) Profile(ctx context.Context, identityID string) (*Profile, error) {
	acc, err := l.Account(ctx, identityID)
	if err != nil {
		return nil, err
	}
	events, err := l.repo.ListEvents(ctx, identityID, recentEventsLimit, 0)
	if err != nil {
		return nil, err
	}
	now := l.now()
	return &Profile{
		IdentityID:     acc.IdentityID,
		CreditScore:    acc.Score(),
		BorrowingLimit: l.policy.LimitFor(acc.Score(), acc.FrozenAt(now)),
		CurrencyCode:   l.policy.CurrencyCode,
		StrikeCount:    acc.StrikeCount,
		Frozen:         acc.FrozenAt(now),
		FrozenUntil:    acc.FrozenUntil,
		RecentEvents:   events,
	}, nil
}

func (l *Ledger) Events(ctx context.Context, identityID string, limit, offset int32) ([]Event, error) {
	if _, err := l.Account(ctx, identityID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return l.repo.ListEvents(ctx, identityID, limit, offset)
}

// Replay recomputes the score from the event log and compares it with the
// maintained running total.
func (l *Ledger) Replay(ctx context.Context, identityID string) (*ReplayReport, error) {
	acc, err := l.Account(ctx, identityID)
	if err != nil {
		return nil, err
	}
	count, sum, err := l.repo.SumEvents(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return &ReplayReport{
		IdentityID:    identityID,
		EventCount:    count,
		ReplayedRaw:   sum,
		StoredRaw:     acc.ScoreRaw,
		ReplayedScore: Clamp(sum),
		StoredScore:   acc.Score(),
		Drift:         sum != acc.ScoreRaw,
	}, nil
}
