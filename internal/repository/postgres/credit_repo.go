package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

type CreditRepository struct {
	pool *pgxpool.Pool
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

func (r *CreditRepository) GetAccount(ctx context.Context, identityID string) (*credit.Account, error) {
	if !validID(identityID) {
		return nil, errs.ErrIdentityNotFound
	}
	q := `SELECT id, score_raw, strike_count, frozen_until FROM identities WHERE id = $1`
	out := &credit.Account{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, identityID).Scan(&out.IdentityID, &out.ScoreRaw, &out.StrikeCount, &out.FrozenUntil)
	if err != nil {
		return nil, notFound(err, errs.ErrIdentityNotFound)
	}
	return out, nil
}

// AppendEvent inserts the event and moves the running total in one statement.
func (r *CreditRepository) AppendEvent(ctx context.Context, in credit.EventInput) (*credit.Account, error) {
	if !validID(in.IdentityID) {
		return nil, errs.ErrIdentityNotFound
	}
	q := `
WITH ev AS (
  INSERT INTO credit_events (identity_id, delta, reason, reference)
  VALUES ($1, $2, $3, $4)
  RETURNING identity_id, delta
)
UPDATE identities i
SET score_raw = i.score_raw + ev.delta, updated_at = NOW()
FROM ev
WHERE i.id = ev.identity_id
RETURNING i.id, i.score_raw, i.strike_count, i.frozen_until
`
	out := &credit.Account{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, in.IdentityID, in.Delta, string(in.Reason), in.Reference).
		Scan(&out.IdentityID, &out.ScoreRaw, &out.StrikeCount, &out.FrozenUntil)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return nil, errs.ErrIdentityNotFound
		}
		return nil, notFound(err, errs.ErrIdentityNotFound)
	}
	return out, nil
}

func (r *CreditRepository) SaveStrikes(ctx context.Context, identityID string, strikeCount int32, frozenUntil *time.Time) error {
	if !validID(identityID) {
		return errs.ErrIdentityNotFound
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE identities SET strike_count = $2, frozen_until = $3, updated_at = NOW() WHERE id = $1`,
		identityID, strikeCount, frozenUntil,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrIdentityNotFound
	}
	return nil
}

func (r *CreditRepository) ListEvents(ctx context.Context, identityID string, limit, offset int32) ([]credit.Event, error) {
	out := make([]credit.Event, 0)
	if !validID(identityID) {
		return out, nil
	}
	q := `
SELECT id, identity_id, delta, reason, reference, created_at
FROM credit_events
WHERE identity_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, identityID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ev credit.Event
		var reason string
		if err := rows.Scan(&ev.ID, &ev.IdentityID, &ev.Delta, &reason, &ev.Reference, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Reason = credit.Reason(reason)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CreditRepository) SumEvents(ctx context.Context, identityID string) (int64, int64, error) {
	if !validID(identityID) {
		return 0, 0, nil
	}
	var count, sum int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(delta), 0)::bigint FROM credit_events WHERE identity_id = $1`,
		identityID,
	).Scan(&count, &sum)
	return count, sum, err
}
