package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
)

const identityColumns = `id, fingerprint_hash, COALESCE(device_binding_hash, ''), score_raw, strike_count, frozen_until, created_at, updated_at`

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) Create(ctx context.Context, in identity.CreateInput) (*identity.Identity, error) {
	q := `
INSERT INTO identities (id, fingerprint_hash)
VALUES ($1, $2)
RETURNING ` + identityColumns
	out, err := scanIdentity(db.Conn(ctx, r.pool).QueryRow(ctx, q, in.ID, in.FingerprintHash))
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return nil, errs.ErrDuplicateIdentity
		}
		return nil, err
	}
	return out, nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	if !validID(id) {
		return nil, errs.ErrIdentityNotFound
	}
	q := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	out, err := scanIdentity(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err, errs.ErrIdentityNotFound)
	}
	return out, nil
}

func (r *IdentityRepository) GetByFingerprint(ctx context.Context, fingerprintHash string) (*identity.Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities WHERE fingerprint_hash = $1`
	out, err := scanIdentity(db.Conn(ctx, r.pool).QueryRow(ctx, q, fingerprintHash))
	if err != nil {
		return nil, notFound(err, errs.ErrIdentityNotFound)
	}
	return out, nil
}

func (r *IdentityRepository) SetDeviceBinding(ctx context.Context, id, deviceBindingHash string) error {
	if !validID(id) {
		return errs.ErrIdentityNotFound
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE identities SET device_binding_hash = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`,
		id, deviceBindingHash,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrIdentityNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (*identity.Identity, error) {
	out := &identity.Identity{}
	if err := row.Scan(
		&out.ID, &out.FingerprintHash, &out.DeviceBindingHash, &out.ScoreRaw,
		&out.StrikeCount, &out.FrozenUntil, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	out.DeviceBound = out.DeviceBindingHash != ""
	out.CreditScore = credit.Clamp(out.ScoreRaw)
	return out, nil
}
