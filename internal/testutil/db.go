// Package testutil provides a migrated Postgres pool for integration tests.
// Tests skip when TEST_DATABASE_URL is unset or unreachable.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/db"
)

func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("skip integration test: TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test (db connect init): %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test (db ping): %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func ApplyMigrations(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
}

func ResetTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := `
TRUNCATE TABLE
  outbox_jobs,
  sessions,
  vault_entries,
  loans,
  obligations,
  credit_events,
  identities
RESTART IDENTITY CASCADE
`
	if _, err := pool.Exec(ctx, q); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
}

// Setup returns a pool on a freshly migrated, empty schema.
func Setup(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool := NewTestPool(t)
	ApplyMigrations(t, pool)
	ResetTables(t, pool)
	return pool
}
