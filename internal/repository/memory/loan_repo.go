package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
)

type LoanRepository struct {
	s *Store
}

func (r *LoanRepository) Create(_ context.Context, in loan.CreateInput) (*loan.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.identities[in.IdentityID]; !ok {
		return nil, errs.ErrIdentityNotFound
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.s.now()
	}
	item := &loan.Entity{
		ID:              uuid.NewString(),
		IdentityID:      in.IdentityID,
		PrincipalMinor:  in.PrincipalMinor,
		InterestMinor:   in.InterestMinor,
		CurrencyCode:    in.CurrencyCode,
		DurationDays:    in.DurationDays,
		InterestRateBPS: in.InterestRateBPS,
		State:           in.State,
		RejectReason:    in.RejectReason,
		CreatedAt:       createdAt,
		ApprovedAt:      copyTime(in.ApprovedAt),
		UpdatedAt:       createdAt,
	}
	r.s.loans[item.ID] = item
	return snapshotLoan(item), nil
}

func (r *LoanRepository) GetByID(_ context.Context, id string) (*loan.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.loans[id]
	if !ok {
		return nil, errs.ErrLoanNotFound
	}
	return snapshotLoan(item), nil
}

func (r *LoanRepository) ListByIdentity(_ context.Context, identityID string, limit, offset int32) ([]loan.Entity, error) {
	items := r.filter(func(e *loan.Entity) bool { return e.IdentityID == identityID })
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return page(items, limit, offset), nil
}

func (r *LoanRepository) ListOpenByIdentity(_ context.Context, identityID string) ([]loan.Entity, error) {
	items := r.filter(func(e *loan.Entity) bool {
		if e.IdentityID != identityID {
			return false
		}
		switch e.State {
		case loan.StateApproved, loan.StateDisbursed, loan.StateActive:
			return true
		}
		return false
	})
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *LoanRepository) ListOverdue(_ context.Context, before time.Time, limit int32) ([]loan.Entity, error) {
	items := r.filter(func(e *loan.Entity) bool {
		return e.State == loan.StateActive && e.DueAt != nil && e.DueAt.Before(before)
	})
	sort.Slice(items, func(i, j int) bool { return items[i].DueAt.Before(*items[j].DueAt) })
	return page(items, limit, 0), nil
}

func (r *LoanRepository) Save(_ context.Context, e *loan.Entity, expected loan.State) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.loans[e.ID]
	if !ok {
		return errs.ErrLoanNotFound
	}
	if current.State != expected {
		return errs.ErrInvalidTransition
	}
	r.s.loans[e.ID] = snapshotLoan(e)
	return nil
}

func (r *LoanRepository) filter(keep func(e *loan.Entity) bool) []loan.Entity {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]loan.Entity, 0)
	for _, item := range r.s.loans {
		if keep(item) {
			out = append(out, *snapshotLoan(item))
		}
	}
	return out
}

func page(items []loan.Entity, limit, offset int32) []loan.Entity {
	if offset >= int32(len(items)) {
		return []loan.Entity{}
	}
	items = items[offset:]
	if limit > 0 && int32(len(items)) > limit {
		items = items[:limit]
	}
	return items
}

func snapshotLoan(item *loan.Entity) *loan.Entity {
	out := *item
	out.ApprovedAt = copyTime(item.ApprovedAt)
	out.DisbursedAt = copyTime(item.DisbursedAt)
	out.ActivatedAt = copyTime(item.ActivatedAt)
	out.DueAt = copyTime(item.DueAt)
	out.ClosedAt = copyTime(item.ClosedAt)
	return &out
}
