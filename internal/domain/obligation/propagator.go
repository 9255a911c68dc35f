package obligation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

type Propagator struct {
	repo      Repository
	outbox    OutboxRepository
	penalizer Penalizer
	issuers   FreezeChecker
	locker    Locker
	now       func() time.Time
}

func NewPropagator(repo Repository, outbox OutboxRepository, penalizer Penalizer, issuers FreezeChecker, locker Locker) *Propagator {
	return &Propagator{
		repo:      repo,
		outbox:    outbox,
		penalizer: penalizer,
		issuers:   issuers,
		locker:    locker,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *Propagator) WithClock(now func() time.Time) *Propagator {
	p.now = now
	return p
}

// Register records a pending obligation. Callers already hold the issuer's
// unit of work when registering loan obligations.
func (p *Propagator) Register(ctx context.Context, in CreateInput) (*Obligation, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	return p.repo.Create(ctx, in)
}

// RegisterAsset records a yield or buyback promise of an issued asset.
func (p *Propagator) RegisterAsset(ctx context.Context, in CreateInput) (*Obligation, error) {
	if in.Kind != KindAssetYield && in.Kind != KindAssetBuyback {
		return nil, errs.ErrInvalidObligation
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	var out *Obligation
	err := p.locker.WithinIdentity(ctx, in.IssuerIdentityID, func(ctx context.Context) error {
		frozen, err := p.issuers.IsFrozen(ctx, in.IssuerIdentityID)
		if err != nil {
			return err
		}
		if frozen {
			return errs.ErrIdentityFrozen
		}
		out, err = p.repo.Create(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Propagator) Get(ctx context.Context, id string) (*Obligation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errs.ErrObligationNotFound
	}
	return p.repo.GetByID(ctx, id)
}

// Settle marks an asset obligation as met. Loan obligations are settled by
// the loan engine through Complete.
func (p *Propagator) Settle(ctx context.Context, id string) (*Obligation, error) {
	item, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind == KindLoan {
		return nil, errs.ErrInvalidObligation
	}
	var out *Obligation
	err = p.locker.WithinIdentity(ctx, item.IssuerIdentityID, func(ctx context.Context) error {
		out, err = p.repo.UpdateStatus(ctx, id, StatusPending, StatusMet)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete moves any obligation to its final status without penalties.
func (p *Propagator) Complete(ctx context.Context, id string, to Status) (*Obligation, error) {
	return p.repo.UpdateStatus(ctx, id, StatusPending, to)
}

// Default applies the default penalty for a missed asset obligation: score
// delta, strike, and propagation to the issuer's other pending obligations.
func (p *Propagator) Default(ctx context.Context, id string) ([]Obligation, error) {
	item, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind == KindLoan {
		return nil, errs.ErrInvalidObligation
	}
	var flagged []Obligation
	err = p.locker.WithinIdentity(ctx, item.IssuerIdentityID, func(ctx context.Context) error {
		if _, err := p.repo.UpdateStatus(ctx, id, StatusPending, StatusDefaulted); err != nil {
			return err
		}
		policy := p.penalizer.Policy()
		if _, err := p.penalizer.ApplyEvent(ctx, item.IssuerIdentityID, policy.DefaultDelta, credit.ReasonDefault, id); err != nil {
			return err
		}
		if _, err := p.penalizer.RecordStrike(ctx, item.IssuerIdentityID); err != nil {
			return err
		}
		flagged, err = p.OnDefault(ctx, item.IssuerIdentityID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return flagged, nil
}

// OnDefault flags every pending obligation of the issuer as affected by the
// given default and notifies downstream consumers once. A repeated call
// flags nothing new and emits nothing.
func (p *Propagator) OnDefault(ctx context.Context, issuerIdentityID, defaultingObligationID string) ([]Obligation, error) {
	var flagged []Obligation
	err := p.locker.WithinIdentity(ctx, issuerIdentityID, func(ctx context.Context) error {
		var err error
		flagged, err = p.repo.FlagPendingByIssuer(ctx, issuerIdentityID, defaultingObligationID, p.now())
		if err != nil {
			return err
		}
		if len(flagged) == 0 {
			return nil
		}
		ids := make([]string, 0, len(flagged))
		for _, item := range flagged {
			ids = append(ids, item.ID)
		}
		payload, _ := json.Marshal(map[string]any{
			"issuer_identity_id":       issuerIdentityID,
			"defaulting_obligation_id": defaultingObligationID,
			"flagged_obligation_ids":   ids,
		})
		return p.outbox.Enqueue(ctx, TopicObligationDefaulted, issuerIdentityID, payload)
	})
	if err != nil {
		return nil, err
	}
	return flagged, nil
}

func (p *Propagator) List(ctx context.Context, issuerIdentityID string, status Status) ([]Obligation, error) {
	switch status {
	case "", StatusPending, StatusMet, StatusDefaulted:
	default:
		return nil, errs.ErrInvalidObligation
	}
	return p.repo.ListByIssuer(ctx, issuerIdentityID, status)
}

// IssuerRisk labels an issuer for investors: any defaulted obligation makes
// it a default; flagged or overdue pending obligations put it at risk.
func (p *Propagator) IssuerRisk(ctx context.Context, issuerIdentityID string) (*IssuerRisk, error) {
	items, err := p.repo.ListByIssuer(ctx, issuerIdentityID, "")
	if err != nil {
		return nil, err
	}
	now := p.now()
	out := &IssuerRisk{IssuerIdentityID: issuerIdentityID, Label: RiskGood}
	overdue := 0
	for _, item := range items {
		switch item.Status {
		case StatusPending:
			out.Pending++
			if item.DueAt != nil && item.DueAt.Before(now) {
				overdue++
			}
		case StatusMet:
			out.Met++
		case StatusDefaulted:
			out.Defaulted++
		}
		if item.PenaltyFlagged {
			out.Flagged++
		}
	}
	switch {
	case out.Defaulted > 0:
		out.Label = RiskDefault
	case out.Flagged > 0 || overdue > 0:
		out.Label = RiskAtRisk
	}
	return out, nil
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.IssuerIdentityID) == "" {
		return errs.ErrIdentityNotFound
	}
	switch in.Kind {
	case KindLoan, KindAssetYield, KindAssetBuyback:
	default:
		return errs.ErrInvalidObligation
	}
	if strings.TrimSpace(in.Reference) == "" {
		return errs.ErrInvalidObligation
	}
	if in.AmountMinor <= 0 {
		return errs.ErrInvalidAmount
	}
	return nil
}
