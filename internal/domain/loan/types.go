package loan

import (
	"context"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/rajarshidattapy/R-Credit/internal/domain/vault"
)

type State string

const (
	StateRequested State = "requested"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateDisbursed State = "disbursed"
	StateActive    State = "active"
	StateClosed    State = "closed"
)

type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeRepaid    Outcome = "repaid"
	OutcomeDefaulted Outcome = "defaulted"
)

const (
	TopicLoanDisbursed = "loan_disbursed"
	TopicLoanRepaid    = "loan_repaid"
	TopicLoanDefaulted = "loan_defaulted"
)

var transitions = map[State][]State{
	StateRequested: {StateApproved, StateRejected},
	StateApproved:  {StateDisbursed, StateRejected},
	StateDisbursed: {StateActive},
	StateActive:    {StateClosed},
}

func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateClosed || s == StateRejected
}

type Entity struct {
	ID                string     `json:"id"`
	IdentityID        string     `json:"identity_id"`
	PrincipalMinor    int64      `json:"principal_minor"`
	InterestMinor     int64      `json:"interest_minor"`
	CurrencyCode      string     `json:"currency_code"`
	DurationDays      int        `json:"duration_days"`
	InterestRateBPS   int32      `json:"interest_rate_bps"`
	State             State      `json:"state"`
	Outcome           Outcome    `json:"outcome,omitempty"`
	RejectReason      string     `json:"reject_reason,omitempty"`
	DisbursementRef   string     `json:"disbursement_ref,omitempty"`
	ObligationID      string     `json:"obligation_id,omitempty"`
	AmountRepaidMinor int64      `json:"amount_repaid_minor"`
	CreatedAt         time.Time  `json:"created_at"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	DisbursedAt       *time.Time `json:"disbursed_at,omitempty"`
	ActivatedAt       *time.Time `json:"activated_at,omitempty"`
	DueAt             *time.Time `json:"due_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AmountDueMinor is what a borrower must pay to close the loan.
func (e Entity) AmountDueMinor() int64 {
	return e.PrincipalMinor + e.InterestMinor
}

type CreateInput struct {
	IdentityID      string
	PrincipalMinor  int64
	InterestMinor   int64
	CurrencyCode    string
	DurationDays    int
	InterestRateBPS int32
	State           State
	RejectReason    string
	CreatedAt       time.Time
	ApprovedAt      *time.Time
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	ListByIdentity(ctx context.Context, identityID string, limit, offset int32) ([]Entity, error)
	// ListOpenByIdentity returns approved, disbursed and active loans.
	ListOpenByIdentity(ctx context.Context, identityID string) ([]Entity, error)
	ListOverdue(ctx context.Context, before time.Time, limit int32) ([]Entity, error)
	// Save persists every mutable column if the stored state still equals
	// expected, else fails with ErrInvalidTransition.
	Save(ctx context.Context, e *Entity, expected State) error
}

type Ledger interface {
	Account(ctx context.Context, identityID string) (*credit.Account, error)
	LimitOf(acc credit.Account) int64
	ApplyEvent(ctx context.Context, identityID string, delta int64, reason credit.Reason, reference string) (int, error)
	RecordStrike(ctx context.Context, identityID string) (int32, error)
	Policy() credit.Policy
}

type Obligations interface {
	Register(ctx context.Context, in obligation.CreateInput) (*obligation.Obligation, error)
	Complete(ctx context.Context, id string, to obligation.Status) (*obligation.Obligation, error)
	OnDefault(ctx context.Context, issuerIdentityID, defaultingObligationID string) ([]obligation.Obligation, error)
}

type Disburser interface {
	Disburse(ctx context.Context, identityID string, amountMinor int64, idempotencyKey string) (*vault.Receipt, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic, identityID string, payload []byte) error
}

type Locker interface {
	WithinIdentity(ctx context.Context, identityID string, fn func(ctx context.Context) error) error
}
