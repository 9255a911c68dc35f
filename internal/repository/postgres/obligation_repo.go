package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
)

const obligationColumns = `
  id, issuer_identity_id, kind, status, reference, amount_minor, due_at,
  penalty_flagged, flagged_at, flagged_by, created_at, updated_at`

type ObligationRepository struct {
	pool *pgxpool.Pool
}

func NewObligationRepository(pool *pgxpool.Pool) *ObligationRepository {
	return &ObligationRepository{pool: pool}
}

func (r *ObligationRepository) Create(ctx context.Context, in obligation.CreateInput) (*obligation.Obligation, error) {
	if !validID(in.IssuerIdentityID) {
		return nil, errs.ErrIdentityNotFound
	}
	q := `
INSERT INTO obligations (issuer_identity_id, kind, reference, amount_minor, due_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING` + obligationColumns
	out, err := scanObligation(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		in.IssuerIdentityID, string(in.Kind), in.Reference, in.AmountMinor, in.DueAt,
	))
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return nil, errs.ErrIdentityNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *ObligationRepository) GetByID(ctx context.Context, id string) (*obligation.Obligation, error) {
	if !validID(id) {
		return nil, errs.ErrObligationNotFound
	}
	q := `SELECT` + obligationColumns + ` FROM obligations WHERE id = $1`
	out, err := scanObligation(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err, errs.ErrObligationNotFound)
	}
	return out, nil
}

func (r *ObligationRepository) ListByIssuer(ctx context.Context, issuerIdentityID string, status obligation.Status) ([]obligation.Obligation, error) {
	if !validID(issuerIdentityID) {
		return []obligation.Obligation{}, nil
	}
	q := `SELECT` + obligationColumns + `
FROM obligations
WHERE issuer_identity_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at ASC, id ASC`
	return r.query(ctx, q, issuerIdentityID, string(status))
}

func (r *ObligationRepository) UpdateStatus(ctx context.Context, id string, from, to obligation.Status) (*obligation.Obligation, error) {
	if !validID(id) {
		return nil, errs.ErrObligationNotFound
	}
	q := `
UPDATE obligations SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2
RETURNING` + obligationColumns
	out, err := scanObligation(db.Conn(ctx, r.pool).QueryRow(ctx, q, id, string(from), string(to)))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, errs.ErrInvalidTransition
}

func (r *ObligationRepository) FlagPendingByIssuer(ctx context.Context, issuerIdentityID, flaggedBy string, at time.Time) ([]obligation.Obligation, error) {
	if !validID(issuerIdentityID) {
		return []obligation.Obligation{}, nil
	}
	q := `
UPDATE obligations
SET penalty_flagged = TRUE, flagged_at = $3, flagged_by = $2, updated_at = $3
WHERE issuer_identity_id = $1 AND status = 'pending' AND NOT penalty_flagged
RETURNING` + obligationColumns
	out, err := r.query(ctx, q, issuerIdentityID, flaggedBy, at)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ObligationRepository) query(ctx context.Context, q string, args ...any) ([]obligation.Obligation, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]obligation.Obligation, 0)
	for rows.Next() {
		item, err := scanObligation(rows)
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

func scanObligation(row pgx.Row) (*obligation.Obligation, error) {
	out := &obligation.Obligation{}
	var kind, status string
	if err := row.Scan(
		&out.ID, &out.IssuerIdentityID, &kind, &status, &out.Reference, &out.AmountMinor, &out.DueAt,
		&out.PenaltyFlagged, &out.FlaggedAt, &out.FlaggedBy, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	out.Kind = obligation.Kind(kind)
	out.Status = obligation.Status(status)
	return out, nil
}
