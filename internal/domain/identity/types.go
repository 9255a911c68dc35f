package identity

import (
	"context"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
)

type Identity struct {
	ID                string     `json:"id"`
	FingerprintHash   string     `json:"fingerprint_hash"`
	DeviceBindingHash string     `json:"-"`
	DeviceBound       bool       `json:"device_bound"`
	ScoreRaw          int64      `json:"-"`
	CreditScore       int        `json:"credit_score"`
	StrikeCount       int32      `json:"strike_count"`
	FrozenUntil       *time.Time `json:"frozen_until,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Attestation is the verified content of an opaque proof-of-personhood token.
type Attestation struct {
	Fingerprint string
	Issuer      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type CreateInput struct {
	ID              string
	FingerprintHash string
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Identity, error)
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByFingerprint(ctx context.Context, fingerprintHash string) (*Identity, error)
	SetDeviceBinding(ctx context.Context, id, deviceBindingHash string) error
}

type Verifier interface {
	Verify(ctx context.Context, proof string) (*Attestation, error)
}

type SessionRevoker interface {
	RevokeByIdentityExceptDevice(ctx context.Context, identityID, deviceHash string) (int64, error)
}

type CreditGranter interface {
	ApplyEvent(ctx context.Context, identityID string, delta int64, reason credit.Reason, reference string) (int, error)
}

type Locker interface {
	WithinIdentity(ctx context.Context, identityID string, fn func(ctx context.Context) error) error
}
