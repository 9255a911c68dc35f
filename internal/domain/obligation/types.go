package obligation

import (
	"context"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
)

type Kind string

const (
	KindLoan         Kind = "loan"
	KindAssetYield   Kind = "asset_yield"
	KindAssetBuyback Kind = "asset_buyback"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusMet       Status = "met"
	StatusDefaulted Status = "defaulted"
)

type RiskLabel string

const (
	RiskGood    RiskLabel = "good"
	RiskAtRisk  RiskLabel = "at_risk"
	RiskDefault RiskLabel = "default"
)

const TopicObligationDefaulted = "obligation_defaulted"

// Obligation is a commitment owed by an issuer: a loan repayment or a
// yield/buyback promise attached to an issued asset.
type Obligation struct {
	ID               string     `json:"id"`
	IssuerIdentityID string     `json:"issuer_identity_id"`
	Kind             Kind       `json:"kind"`
	Status           Status     `json:"status"`
	Reference        string     `json:"reference"`
	AmountMinor      int64      `json:"amount_minor"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	PenaltyFlagged   bool       `json:"penalty_flagged"`
	FlaggedAt        *time.Time `json:"flagged_at,omitempty"`
	FlaggedBy        string     `json:"flagged_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type CreateInput struct {
	IssuerIdentityID string
	Kind             Kind
	Reference        string
	AmountMinor      int64
	DueAt            *time.Time
}

type IssuerRisk struct {
	IssuerIdentityID string    `json:"issuer_identity_id"`
	Label            RiskLabel `json:"label"`
	Pending          int       `json:"pending"`
	Met              int       `json:"met"`
	Defaulted        int       `json:"defaulted"`
	Flagged          int       `json:"flagged"`
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Obligation, error)
	GetByID(ctx context.Context, id string) (*Obligation, error)
	ListByIssuer(ctx context.Context, issuerIdentityID string, status Status) ([]Obligation, error)
	// UpdateStatus moves an obligation from one status to another and fails
	// with ErrInvalidTransition when the stored status is not `from`.
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Obligation, error)
	// FlagPendingByIssuer flags every pending, unflagged obligation of the
	// issuer in one statement and returns what it flagged.
	FlagPendingByIssuer(ctx context.Context, issuerIdentityID, flaggedBy string, at time.Time) ([]Obligation, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic, identityID string, payload []byte) error
}

type Penalizer interface {
	ApplyEvent(ctx context.Context, identityID string, delta int64, reason credit.Reason, reference string) (int, error)
	RecordStrike(ctx context.Context, identityID string) (int32, error)
	Policy() credit.Policy
}

type FreezeChecker interface {
	IsFrozen(ctx context.Context, identityID string) (bool, error)
}

type Locker interface {
	WithinIdentity(ctx context.Context, identityID string, fn func(ctx context.Context) error) error
}
