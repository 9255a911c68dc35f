package memory

import (
	"context"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
)

type IdentityRepository struct {
	s *Store
}

func (r *IdentityRepository) Create(_ context.Context, in identity.CreateInput) (*identity.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.byFingerprint[in.FingerprintHash]; ok {
		return nil, errs.ErrDuplicateIdentity
	}
	if _, ok := r.s.identities[in.ID]; ok {
		return nil, errs.ErrDuplicateIdentity
	}
	now := r.s.now()
	item := &identity.Identity{
		ID:              in.ID,
		FingerprintHash: in.FingerprintHash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.s.identities[in.ID] = item
	r.s.byFingerprint[in.FingerprintHash] = in.ID
	return snapshotIdentity(item), nil
}

func (r *IdentityRepository) GetByID(_ context.Context, id string) (*identity.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.identities[id]
	if !ok {
		return nil, errs.ErrIdentityNotFound
	}
	return snapshotIdentity(item), nil
}

func (r *IdentityRepository) GetByFingerprint(_ context.Context, fingerprintHash string) (*identity.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.byFingerprint[fingerprintHash]
	if !ok {
		return nil, errs.ErrIdentityNotFound
	}
	return snapshotIdentity(r.s.identities[id]), nil
}

func (r *IdentityRepository) SetDeviceBinding(_ context.Context, id, deviceBindingHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.identities[id]
	if !ok {
		return errs.ErrIdentityNotFound
	}
	item.DeviceBindingHash = deviceBindingHash
	item.DeviceBound = deviceBindingHash != ""
	item.UpdatedAt = r.s.now()
	return nil
}

func snapshotIdentity(item *identity.Identity) *identity.Identity {
	out := *item
	out.FrozenUntil = copyTime(item.FrozenUntil)
	out.CreditScore = credit.Clamp(item.ScoreRaw)
	return &out
}
