package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
)

const loanColumns = `
  id, identity_id, principal_minor, interest_minor, currency_code, duration_days,
  interest_rate_bps, state, outcome, reject_reason, disbursement_ref,
  COALESCE(obligation_id::text, ''), amount_repaid_minor, created_at, approved_at,
  disbursed_at, activated_at, due_at, closed_at, updated_at`

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

func (r *LoanRepository) Create(ctx context.Context, in loan.CreateInput) (*loan.Entity, error) {
	if !validID(in.IdentityID) {
		return nil, errs.ErrIdentityNotFound
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	q := `
INSERT INTO loans (
  identity_id, principal_minor, interest_minor, currency_code, duration_days,
  interest_rate_bps, state, reject_reason, created_at, approved_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$9)
RETURNING` + loanColumns
	out, err := scanLoan(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		in.IdentityID, in.PrincipalMinor, in.InterestMinor, in.CurrencyCode, in.DurationDays,
		in.InterestRateBPS, string(in.State), in.RejectReason, createdAt, in.ApprovedAt,
	))
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return nil, errs.ErrIdentityNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	if !validID(id) {
		return nil, errs.ErrLoanNotFound
	}
	q := `SELECT` + loanColumns + ` FROM loans WHERE id = $1`
	out, err := scanLoan(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err, errs.ErrLoanNotFound)
	}
	return out, nil
}

func (r *LoanRepository) ListByIdentity(ctx context.Context, identityID string, limit, offset int32) ([]loan.Entity, error) {
	if !validID(identityID) {
		return []loan.Entity{}, nil
	}
	q := `SELECT` + loanColumns + `
FROM loans
WHERE identity_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	return r.query(ctx, q, identityID, limit, offset)
}

func (r *LoanRepository) ListOpenByIdentity(ctx context.Context, identityID string) ([]loan.Entity, error) {
	if !validID(identityID) {
		return []loan.Entity{}, nil
	}
	q := `SELECT` + loanColumns + `
FROM loans
WHERE identity_id = $1 AND state IN ('approved', 'disbursed', 'active')
ORDER BY created_at ASC`
	return r.query(ctx, q, identityID)
}

func (r *LoanRepository) ListOverdue(ctx context.Context, before time.Time, limit int32) ([]loan.Entity, error) {
	q := `SELECT` + loanColumns + `
FROM loans
WHERE state = 'active' AND due_at < $1
ORDER BY due_at ASC
LIMIT $2`
	return r.query(ctx, q, before, limit)
}

func (r *LoanRepository) Save(ctx context.Context, e *loan.Entity, expected loan.State) error {
	if !validID(e.ID) {
		return errs.ErrLoanNotFound
	}
	q := `
UPDATE loans SET
  state = $2,
  outcome = $3,
  reject_reason = $4,
  disbursement_ref = $5,
  obligation_id = NULLIF($6, '')::uuid,
  amount_repaid_minor = $7,
  disbursed_at = $8,
  activated_at = $9,
  due_at = $10,
  closed_at = $11,
  updated_at = NOW()
WHERE id = $1 AND state = $12
`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q,
		e.ID, string(e.State), string(e.Outcome), e.RejectReason, e.DisbursementRef,
		e.ObligationID, e.AmountRepaidMinor, e.DisbursedAt, e.ActivatedAt, e.DueAt,
		e.ClosedAt, string(expected),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, e.ID); err != nil {
		return err
	}
	return errs.ErrInvalidTransition
}

func (r *LoanRepository) query(ctx context.Context, q string, args ...any) ([]loan.Entity, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Entity, 0)
	for rows.Next() {
		item, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanLoan(row pgx.Row) (*loan.Entity, error) {
	out := &loan.Entity{}
	var state, outcome string
	if err := row.Scan(
		&out.ID, &out.IdentityID, &out.PrincipalMinor, &out.InterestMinor, &out.CurrencyCode, &out.DurationDays,
		&out.InterestRateBPS, &state, &outcome, &out.RejectReason, &out.DisbursementRef,
		&out.ObligationID, &out.AmountRepaidMinor, &out.CreatedAt, &out.ApprovedAt,
		&out.DisbursedAt, &out.ActivatedAt, &out.DueAt, &out.ClosedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	out.State = loan.State(state)
	out.Outcome = loan.Outcome(outcome)
	return out, nil
}
