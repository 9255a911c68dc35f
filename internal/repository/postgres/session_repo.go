package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/auth"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) CreateSession(ctx context.Context, identityID, deviceHash string, expiresAt time.Time) (*auth.Session, error) {
	if !validID(identityID) {
		return nil, errs.ErrIdentityNotFound
	}
	q := `
INSERT INTO sessions (identity_id, device_hash, expires_at)
VALUES ($1, $2, $3)
RETURNING id, identity_id, device_hash, expires_at, revoked_at, created_at
`
	out := &auth.Session{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, identityID, deviceHash, expiresAt).Scan(
		&out.ID, &out.IdentityID, &out.DeviceHash, &out.ExpiresAt, &out.RevokedAt, &out.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return nil, errs.ErrIdentityNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *SessionRepository) GetSessionByID(ctx context.Context, sessionID string) (*auth.Session, error) {
	if !validID(sessionID) {
		return nil, errs.ErrSessionInvalid
	}
	q := `
SELECT id, identity_id, device_hash, expires_at, revoked_at, created_at
FROM sessions
WHERE id = $1
`
	out := &auth.Session{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, sessionID).Scan(
		&out.ID, &out.IdentityID, &out.DeviceHash, &out.ExpiresAt, &out.RevokedAt, &out.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, errs.ErrSessionInvalid)
	}
	return out, nil
}

func (r *SessionRepository) RevokeSession(ctx context.Context, sessionID string) error {
	if !validID(sessionID) {
		return nil
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, sessionID)
	return err
}

func (r *SessionRepository) RevokeByIdentityExceptDevice(ctx context.Context, identityID, deviceHash string) (int64, error) {
	if !validID(identityID) {
		return 0, nil
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE sessions SET revoked_at = NOW()
WHERE identity_id = $1 AND device_hash <> $2 AND revoked_at IS NULL`,
		identityID, deviceHash,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
