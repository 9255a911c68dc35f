package memory

import (
	"context"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

// CreditRepository keeps the running score on the identity record and the
// events in one append-only slice.
type CreditRepository struct {
	s *Store
}

func (r *CreditRepository) GetAccount(_ context.Context, identityID string) (*credit.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.identities[identityID]
	if !ok {
		return nil, errs.ErrIdentityNotFound
	}
	return &credit.Account{
		IdentityID:  item.ID,
		ScoreRaw:    item.ScoreRaw,
		StrikeCount: item.StrikeCount,
		FrozenUntil: copyTime(item.FrozenUntil),
	}, nil
}

func (r *CreditRepository) AppendEvent(_ context.Context, in credit.EventInput) (*credit.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.identities[in.IdentityID]
	if !ok {
		return nil, errs.ErrIdentityNotFound
	}
	now := r.s.now()
	r.s.nextEventID++
	r.s.events = append(r.s.events, credit.Event{
		ID:         r.s.nextEventID,
		IdentityID: in.IdentityID,
		Delta:      in.Delta,
		Reason:     in.Reason,
		Reference:  in.Reference,
		CreatedAt:  now,
	})
	item.ScoreRaw += in.Delta
	item.UpdatedAt = now
	return &credit.Account{
		IdentityID:  item.ID,
		ScoreRaw:    item.ScoreRaw,
		StrikeCount: item.StrikeCount,
		FrozenUntil: copyTime(item.FrozenUntil),
	}, nil
}

func (r *CreditRepository) SaveStrikes(_ context.Context, identityID string, strikeCount int32, frozenUntil *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.identities[identityID]
	if !ok {
		return errs.ErrIdentityNotFound
	}
	item.StrikeCount = strikeCount
	item.FrozenUntil = copyTime(frozenUntil)
	item.UpdatedAt = r.s.now()
	return nil
}

// ListEvents returns the identity's events newest first.
func (r *CreditRepository) ListEvents(_ context.Context, identityID string, limit, offset int32) ([]credit.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]credit.Event, 0)
	skipped := int32(0)
	for i := len(r.s.events) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		ev := r.s.events[i]
		if ev.IdentityID != identityID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *CreditRepository) SumEvents(_ context.Context, identityID string) (int64, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count, sum int64
	for _, ev := range r.s.events {
		if ev.IdentityID == identityID {
			count++
			sum += ev.Delta
		}
	}
	return count, sum, nil
}
