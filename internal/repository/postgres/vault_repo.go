package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	domain "github.com/rajarshidattapy/R-Credit/internal/domain/vault"
	"github.com/rajarshidattapy/R-Credit/internal/vault"
)

const vaultColumns = `id, identity_id, direction, amount_minor, idempotency_key, created_at`

type VaultRepository struct {
	pool *pgxpool.Pool
}

func NewVaultRepository(pool *pgxpool.Pool) *VaultRepository {
	return &VaultRepository{pool: pool}
}

// InsertEntry runs in a savepoint so that a failed insert leaves the caller's
// unit of work usable for recording the failure.
func (r *VaultRepository) InsertEntry(ctx context.Context, in vault.EntryInput) (*domain.Receipt, bool, error) {
	if !validID(in.IdentityID) {
		return nil, false, errs.ErrIdentityNotFound
	}
	var (
		out     *domain.Receipt
		created bool
	)
	err := db.WithSavepoint(ctx, r.pool, func(q db.DBTX) error {
		insert := `
INSERT INTO vault_entries (identity_id, direction, amount_minor, idempotency_key)
VALUES ($1, $2, $3, $4)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING ` + vaultColumns
		receipt, err := scanReceipt(q.QueryRow(ctx, insert, in.IdentityID, string(in.Direction), in.AmountMinor, in.IdempotencyKey))
		if err == nil {
			out, created = receipt, true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		out, err = scanReceipt(q.QueryRow(ctx, `SELECT `+vaultColumns+` FROM vault_entries WHERE idempotency_key = $1`, in.IdempotencyKey))
		return err
	})
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return nil, false, errs.ErrIdentityNotFound
		}
		return nil, false, err
	}
	return out, created, nil
}

func (r *VaultRepository) BalanceOf(ctx context.Context, identityID string) (int64, error) {
	if !validID(identityID) {
		return 0, nil
	}
	q := `
SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount_minor ELSE -amount_minor END), 0)::bigint
FROM vault_entries
WHERE identity_id = $1`
	var balance int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, identityID).Scan(&balance)
	return balance, err
}

func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	out := &domain.Receipt{}
	var direction string
	if err := row.Scan(&out.ID, &out.IdentityID, &direction, &out.AmountMinor, &out.IdempotencyKey, &out.CreatedAt); err != nil {
		return nil, err
	}
	out.Direction = domain.Direction(direction)
	return out, nil
}
