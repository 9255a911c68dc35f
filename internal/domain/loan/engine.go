package loan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/shopspring/decimal"
)

type Engine struct {
	repo        Repository
	ledger      Ledger
	obligations Obligations
	vault       Disburser
	outbox      OutboxRepository
	locker      Locker
	now         func() time.Time
}

func NewEngine(repo Repository, ledger Ledger, obligations Obligations, vault Disburser, outbox OutboxRepository, locker Locker) *Engine {
	return &Engine{
		repo:        repo,
		ledger:      ledger,
		obligations: obligations,
		vault:       vault,
		outbox:      outbox,
		locker:      locker,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Interest is simple interest over the loan term, rounded up to the next
// minor unit.
func Interest(principalMinor int64, rateBPS int32, durationDays int) int64 {
	return decimal.NewFromInt(principalMinor).
		Mul(decimal.NewFromInt32(rateBPS)).
		Mul(decimal.NewFromInt(int64(durationDays))).
		Div(decimal.NewFromInt(10000 * 365)).
		Ceil().
		IntPart()
}

// Request evaluates a loan request against the borrower's limit. A request
// refused for credit or freeze reasons is persisted as rejected and returned
// together with the error.
func (e *Engine) Request(ctx context.Context, identityID string, principalMinor int64, durationDays int) (*Entity, error) {
	policy := e.ledger.Policy()
	if principalMinor <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	if !policy.DurationAllowed(durationDays) {
		return nil, errs.ErrInvalidDuration
	}

	var (
		out       *Entity
		rejection error
	)
	err := e.locker.WithinIdentity(ctx, identityID, func(ctx context.Context) error {
		acc, err := e.ledger.Account(ctx, identityID)
		if err != nil {
			return err
		}
		now := e.now()
		in := CreateInput{
			IdentityID:      identityID,
			PrincipalMinor:  principalMinor,
			InterestMinor:   Interest(principalMinor, policy.InterestRateBPS, durationDays),
			CurrencyCode:    policy.CurrencyCode,
			DurationDays:    durationDays,
			InterestRateBPS: policy.InterestRateBPS,
			CreatedAt:       now,
		}

		if acc.FrozenAt(now) {
			rejection = errs.ErrIdentityFrozen
		} else {
			open, err := e.repo.ListOpenByIdentity(ctx, identityID)
			if err != nil {
				return err
			}
			if policy.SingleActiveLoan && len(open) > 0 {
				return errs.ErrOutstandingLoan
			}
			// Compare against the remaining headroom; summing principals can overflow.
			headroom := e.ledger.LimitOf(*acc)
			for _, item := range open {
				headroom -= item.PrincipalMinor
			}
			if principalMinor > headroom {
				rejection = errs.ErrInsufficientCredit
			}
		}

		if rejection != nil {
			in.State = StateRejected
			in.RejectReason = rejection.Error()
		} else {
			in.State = StateApproved
			in.ApprovedAt = &now
		}
		out, err = e.repo.Create(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, rejection
}

// Disburse moves the principal into the borrower's vault. It is safe to
// retry: a loan already disbursed or active is returned unchanged, and the
// vault sees the same idempotency key on every attempt.
func (e *Engine) Disburse(ctx context.Context, loanID string) (*Entity, error) {
	current, err := e.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	var (
		out       *Entity
		vaultFail error
	)
	err = e.locker.WithinIdentity(ctx, current.IdentityID, func(ctx context.Context) error {
		item, err := e.repo.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		switch item.State {
		case StateDisbursed, StateActive:
			out = item
			return nil
		case StateApproved:
		default:
			return errs.ErrInvalidTransition
		}

		now := e.now()
		receipt, err := e.vault.Disburse(ctx, item.IdentityID, item.PrincipalMinor, disbursementKey(item.ID))
		if err != nil {
			item.State = StateRejected
			item.RejectReason = errs.ErrVaultTransferFailed.Error()
			item.UpdatedAt = now
			if err := e.repo.Save(ctx, item, StateApproved); err != nil {
				return err
			}
			vaultFail = fmt.Errorf("%w: %v", errs.ErrVaultTransferFailed, err)
			out = item
			return nil
		}

		item.State = StateDisbursed
		item.DisbursementRef = receipt.ID
		item.DisbursedAt = &now
		item.UpdatedAt = now
		if err := e.repo.Save(ctx, item, StateApproved); err != nil {
			return err
		}
		out = item
		return e.enqueue(ctx, TopicLoanDisbursed, item, map[string]any{
			"disbursement_ref": receipt.ID,
			"amount_minor":     item.PrincipalMinor,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, vaultFail
}

// Activate starts the loan term and registers its repayment obligation.
func (e *Engine) Activate(ctx context.Context, loanID string) (*Entity, error) {
	current, err := e.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	var out *Entity
	err = e.locker.WithinIdentity(ctx, current.IdentityID, func(ctx context.Context) error {
		item, err := e.repo.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		if item.State == StateActive {
			out = item
			return nil
		}
		if !CanTransition(item.State, StateActive) {
			return errs.ErrInvalidTransition
		}

		now := e.now()
		dueAt := item.CreatedAt.AddDate(0, 0, item.DurationDays)
		ob, err := e.obligations.Register(ctx, obligation.CreateInput{
			IssuerIdentityID: item.IdentityID,
			Kind:             obligation.KindLoan,
			Reference:        item.ID,
			AmountMinor:      item.AmountDueMinor(),
			DueAt:            &dueAt,
		})
		if err != nil {
			return err
		}

		item.State = StateActive
		item.ActivatedAt = &now
		item.DueAt = &dueAt
		item.ObligationID = ob.ID
		item.UpdatedAt = now
		if err := e.repo.Save(ctx, item, StateDisbursed); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Repay closes an active loan paid in full and credits the borrower.
func (e *Engine) Repay(ctx context.Context, loanID string, amountMinor int64) (*Entity, error) {
	if amountMinor <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	current, err := e.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	var out *Entity
	err = e.locker.WithinIdentity(ctx, current.IdentityID, func(ctx context.Context) error {
		item, err := e.repo.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		if item.State != StateActive {
			return errs.ErrInvalidTransition
		}
		if amountMinor < item.AmountDueMinor() {
			return errs.ErrIncompleteRepayment
		}

		now := e.now()
		item.State = StateClosed
		item.Outcome = OutcomeRepaid
		item.AmountRepaidMinor = amountMinor
		item.ClosedAt = &now
		item.UpdatedAt = now
		if err := e.repo.Save(ctx, item, StateActive); err != nil {
			return err
		}
		score, err := e.ledger.ApplyEvent(ctx, item.IdentityID, e.ledger.Policy().RepaymentDelta, credit.ReasonRepayment, item.ID)
		if err != nil {
			return err
		}
		if item.ObligationID != "" {
			if _, err := e.obligations.Complete(ctx, item.ObligationID, obligation.StatusMet); err != nil {
				return err
			}
		}
		out = item
		return e.enqueue(ctx, TopicLoanRepaid, item, map[string]any{
			"amount_minor": amountMinor,
			"credit_score": score,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkDefault closes an overdue loan as defaulted, penalizes the borrower and
// propagates the default to every pending obligation of the borrower.
func (e *Engine) MarkDefault(ctx context.Context, loanID string) (*Entity, error) {
	current, err := e.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	var out *Entity
	err = e.locker.WithinIdentity(ctx, current.IdentityID, func(ctx context.Context) error {
		item, err := e.repo.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		now := e.now()
		if item.State != StateActive || item.DueAt == nil || !now.After(*item.DueAt) {
			return errs.ErrInvalidTransition
		}

		item.State = StateClosed
		item.Outcome = OutcomeDefaulted
		item.ClosedAt = &now
		item.UpdatedAt = now
		if err := e.repo.Save(ctx, item, StateActive); err != nil {
			return err
		}
		policy := e.ledger.Policy()
		score, err := e.ledger.ApplyEvent(ctx, item.IdentityID, policy.DefaultDelta, credit.ReasonDefault, item.ID)
		if err != nil {
			return err
		}
		strikes, err := e.ledger.RecordStrike(ctx, item.IdentityID)
		if err != nil {
			return err
		}
		flaggedIDs := []string{}
		if item.ObligationID != "" {
			if _, err := e.obligations.Complete(ctx, item.ObligationID, obligation.StatusDefaulted); err != nil {
				return err
			}
			flagged, err := e.obligations.OnDefault(ctx, item.IdentityID, item.ObligationID)
			if err != nil {
				return err
			}
			for _, ob := range flagged {
				flaggedIDs = append(flaggedIDs, ob.ID)
			}
		}
		out = item
		return e.enqueue(ctx, TopicLoanDefaulted, item, map[string]any{
			"credit_score":           score,
			"strike_count":           strikes,
			"flagged_obligation_ids": flaggedIDs,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OverdueLoans lists active loans whose term has ended.
func (e *Engine) OverdueLoans(ctx context.Context, limit int32) ([]Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	return e.repo.ListOverdue(ctx, e.now(), limit)
}

func (e *Engine) Get(ctx context.Context, loanID string) (*Entity, error) {
	if strings.TrimSpace(loanID) == "" {
		return nil, errs.ErrLoanNotFound
	}
	return e.repo.GetByID(ctx, loanID)
}

func (e *Engine) ListByIdentity(ctx context.Context, identityID string, limit, offset int32) ([]Entity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return e.repo.ListByIdentity(ctx, identityID, limit, offset)
}

func (e *Engine) enqueue(ctx context.Context, topic string, item *Entity, extra map[string]any) error {
	body := map[string]any{
		"loan_id":     item.ID,
		"identity_id": item.IdentityID,
		"state":       item.State,
		"outcome":     item.Outcome,
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, _ := json.Marshal(body)
	return e.outbox.Enqueue(ctx, topic, item.IdentityID, payload)
}

func disbursementKey(loanID string) string {
	return "loan:" + loanID
}
