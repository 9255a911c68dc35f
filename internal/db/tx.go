package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

const lockNotAvailable = "55P03"

// DBTX is satisfied by both the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type txState struct {
	tx     pgx.Tx
	locked map[string]struct{}
}

// Conn returns the transaction carried by ctx, or the pool outside a unit of work.
func Conn(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return pool
}

// IdentityLocker runs units of work that hold a transaction-scoped advisory
// lock per identity. Nested calls join the outer transaction.
type IdentityLocker struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewIdentityLocker(pool *pgxpool.Pool, timeout time.Duration) *IdentityLocker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IdentityLocker{pool: pool, timeout: timeout}
}

func (l *IdentityLocker) WithinIdentity(ctx context.Context, identityID string, fn func(ctx context.Context) error) error {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		if _, held := st.locked[identityID]; !held {
			if err := l.acquire(ctx, st.tx, identityID); err != nil {
				return err
			}
			st.locked[identityID] = struct{}{}
		}
		return fn(ctx)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", l.timeout.Milliseconds())); err != nil {
		return err
	}
	if err := l.acquire(ctx, tx, identityID); err != nil {
		return err
	}

	st := &txState{tx: tx, locked: map[string]struct{}{identityID: {}}}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *IdentityLocker) acquire(ctx context.Context, tx pgx.Tx, identityID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, identityID)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return errs.ErrLockTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.ErrLockTimeout
	}
	return err
}

// WithSavepoint runs fn in a nested transaction so a failed statement does not
// poison the enclosing unit of work.
func WithSavepoint(ctx context.Context, pool *pgxpool.Pool, fn func(q DBTX) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		tx, err = st.tx.Begin(ctx)
	} else {
		tx, err = pool.Begin(ctx)
	}
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	return tx.Commit(ctx)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
