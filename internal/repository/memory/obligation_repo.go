package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
)

type ObligationRepository struct {
	s *Store
}

func (r *ObligationRepository) Create(_ context.Context, in obligation.CreateInput) (*obligation.Obligation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.identities[in.IssuerIdentityID]; !ok {
		return nil, errs.ErrIdentityNotFound
	}
	now := r.s.now()
	item := &obligation.Obligation{
		ID:               uuid.NewString(),
		IssuerIdentityID: in.IssuerIdentityID,
		Kind:             in.Kind,
		Status:           obligation.StatusPending,
		Reference:        in.Reference,
		AmountMinor:      in.AmountMinor,
		DueAt:            copyTime(in.DueAt),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.s.obligations[item.ID] = item
	return snapshotObligation(item), nil
}

func (r *ObligationRepository) GetByID(_ context.Context, id string) (*obligation.Obligation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.obligations[id]
	if !ok {
		return nil, errs.ErrObligationNotFound
	}
	return snapshotObligation(item), nil
}

// ListByIssuer returns the issuer's obligations oldest first; an empty status
// matches every status.
func (r *ObligationRepository) ListByIssuer(_ context.Context, issuerIdentityID string, status obligation.Status) ([]obligation.Obligation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]obligation.Obligation, 0)
	for _, item := range r.s.obligations {
		if item.IssuerIdentityID != issuerIdentityID {
			continue
		}
		if status != "" && item.Status != status {
			continue
		}
		out = append(out, *snapshotObligation(item))
	}
	sortObligations(out)
	return out, nil
}

func (r *ObligationRepository) UpdateStatus(_ context.Context, id string, from, to obligation.Status) (*obligation.Obligation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.obligations[id]
	if !ok {
		return nil, errs.ErrObligationNotFound
	}
	if item.Status != from {
		return nil, errs.ErrInvalidTransition
	}
	item.Status = to
	item.UpdatedAt = r.s.now()
	return snapshotObligation(item), nil
}

func (r *ObligationRepository) FlagPendingByIssuer(_ context.Context, issuerIdentityID, flaggedBy string, at time.Time) ([]obligation.Obligation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]obligation.Obligation, 0)
	for _, item := range r.s.obligations {
		if item.IssuerIdentityID != issuerIdentityID || item.Status != obligation.StatusPending || item.PenaltyFlagged {
			continue
		}
		item.PenaltyFlagged = true
		item.FlaggedAt = timePtr(at)
		item.FlaggedBy = flaggedBy
		item.UpdatedAt = at
		out = append(out, *snapshotObligation(item))
	}
	sortObligations(out)
	return out, nil
}

func sortObligations(items []obligation.Obligation) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func snapshotObligation(item *obligation.Obligation) *obligation.Obligation {
	out := *item
	out.DueAt = copyTime(item.DueAt)
	out.FlaggedAt = copyTime(item.FlaggedAt)
	return &out
}
