package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	domain "github.com/rajarshidattapy/R-Credit/internal/domain/vault"
	"github.com/rajarshidattapy/R-Credit/internal/vault"
)

type VaultRepository struct {
	s *Store
}

func (r *VaultRepository) InsertEntry(_ context.Context, in vault.EntryInput) (*domain.Receipt, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if idx, ok := r.s.vaultByKey[in.IdempotencyKey]; ok {
		existing := r.s.vaultEntries[idx]
		return &existing, false, nil
	}
	if _, ok := r.s.identities[in.IdentityID]; !ok {
		return nil, false, errs.ErrIdentityNotFound
	}
	entry := domain.Receipt{
		ID:             uuid.NewString(),
		IdentityID:     in.IdentityID,
		Direction:      in.Direction,
		AmountMinor:    in.AmountMinor,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      r.s.now(),
	}
	r.s.vaultEntries = append(r.s.vaultEntries, entry)
	r.s.vaultByKey[in.IdempotencyKey] = len(r.s.vaultEntries) - 1
	return &entry, true, nil
}

func (r *VaultRepository) BalanceOf(_ context.Context, identityID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var balance int64
	for _, entry := range r.s.vaultEntries {
		if entry.IdentityID != identityID {
			continue
		}
		switch entry.Direction {
		case domain.DirectionCredit:
			balance += entry.AmountMinor
		case domain.DirectionDebit:
			balance -= entry.AmountMinor
		}
	}
	return balance, nil
}

// Entries returns every entry of the identity in insertion order.
func (r *VaultRepository) Entries(identityID string) []domain.Receipt {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.Receipt, 0)
	for _, entry := range r.s.vaultEntries {
		if entry.IdentityID == identityID {
			out = append(out, entry)
		}
	}
	return out
}
