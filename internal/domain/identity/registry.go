package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"golang.org/x/crypto/sha3"
)

type Registry struct {
	repo         Repository
	verifier     Verifier
	sessions     SessionRevoker
	ledger       CreditGranter
	locker       Locker
	initialGrant int64
	now          func() time.Time
}

func NewRegistry(repo Repository, verifier Verifier, sessions SessionRevoker, ledger CreditGranter, locker Locker, initialGrant int64) *Registry {
	return &Registry{
		repo:         repo,
		verifier:     verifier,
		sessions:     sessions,
		ledger:       ledger,
		locker:       locker,
		initialGrant: initialGrant,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// HashFingerprint derives the stored uniqueness key of a verified human.
func HashFingerprint(fingerprint string) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(strings.TrimSpace(fingerprint)))
	return hex.EncodeToString(h.Sum(nil))
}

func HashDeviceToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

func (r *Registry) CreateIdentity(ctx context.Context, proof string) (*Identity, error) {
	att, err := r.verify(ctx, proof)
	if err != nil {
		return nil, err
	}
	fingerprintHash := HashFingerprint(att.Fingerprint)

	if _, err := r.repo.GetByFingerprint(ctx, fingerprintHash); err == nil {
		return nil, errs.ErrDuplicateIdentity
	} else if !errors.Is(err, errs.ErrIdentityNotFound) {
		return nil, err
	}

	id := uuid.NewString()
	var created *Identity
	err = r.locker.WithinIdentity(ctx, id, func(ctx context.Context) error {
		out, err := r.repo.Create(ctx, CreateInput{ID: id, FingerprintHash: fingerprintHash})
		if err != nil {
			return err
		}
		score, err := r.ledger.ApplyEvent(ctx, id, r.initialGrant, credit.ReasonInitialGrant, "")
		if err != nil {
			return err
		}
		out.ScoreRaw = r.initialGrant
		out.CreditScore = score
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// BindDevice replaces the identity's device binding and revokes every session
// that was opened from another device.
func (r *Registry) BindDevice(ctx context.Context, identityID, deviceToken string) (*Identity, error) {
	if strings.TrimSpace(deviceToken) == "" {
		return nil, errs.ErrInvalidDevice
	}
	deviceHash := HashDeviceToken(deviceToken)

	var out *Identity
	err := r.locker.WithinIdentity(ctx, identityID, func(ctx context.Context) error {
		if _, err := r.repo.GetByID(ctx, identityID); err != nil {
			return err
		}
		if err := r.repo.SetDeviceBinding(ctx, identityID, deviceHash); err != nil {
			return err
		}
		if _, err := r.sessions.RevokeByIdentityExceptDevice(ctx, identityID, deviceHash); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		updated, err := r.repo.GetByID(ctx, identityID)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Registry) IsFrozen(ctx context.Context, identityID string) (bool, error) {
	item, err := r.Get(ctx, identityID)
	if err != nil {
		return false, err
	}
	return item.FrozenUntil != nil && item.FrozenUntil.After(r.now()), nil
}

func (r *Registry) Get(ctx context.Context, identityID string) (*Identity, error) {
	if strings.TrimSpace(identityID) == "" {
		return nil, errs.ErrIdentityNotFound
	}
	return r.repo.GetByID(ctx, identityID)
}

// ResolveAttestation verifies a proof and returns the identity it belongs to.
func (r *Registry) ResolveAttestation(ctx context.Context, proof string) (*Identity, error) {
	att, err := r.verify(ctx, proof)
	if err != nil {
		return nil, err
	}
	return r.repo.GetByFingerprint(ctx, HashFingerprint(att.Fingerprint))
}

func (r *Registry) verify(ctx context.Context, proof string) (*Attestation, error) {
	if strings.TrimSpace(proof) == "" {
		return nil, errs.ErrInvalidAttestation
	}
	att, err := r.verifier.Verify(ctx, proof)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidAttestation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidAttestation, err)
	}
	if strings.TrimSpace(att.Fingerprint) == "" {
		return nil, errs.ErrInvalidAttestation
	}
	return att, nil
}
