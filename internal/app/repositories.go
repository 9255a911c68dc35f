package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/auth"
	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/rajarshidattapy/R-Credit/internal/db"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/rajarshidattapy/R-Credit/internal/jobs"
	"github.com/rajarshidattapy/R-Credit/internal/repository/memory"
	postgresrepo "github.com/rajarshidattapy/R-Credit/internal/repository/postgres"
	"github.com/rajarshidattapy/R-Credit/internal/vault"
	"github.com/rajarshidattapy/R-Credit/internal/ws"
)

type OutboxStore interface {
	jobs.OutboxRepository
	Enqueue(ctx context.Context, topic, identityID string, payload []byte) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Repositories is one storage backend. Every field is required except
// Pinger, which is nil for the memory store.
type Repositories struct {
	Identities    identity.Repository
	Credit        credit.Repository
	Loans         loan.Repository
	Obligations   obligation.Repository
	Vault         vault.EntryStore
	Sessions      auth.Repository
	Outbox        OutboxStore
	Notifications ws.NotificationRepository
	Locker        loan.Locker
	Pinger        Pinger
	Close         func()
}

func MemoryRepositories(store *memory.Store, lockTimeout time.Duration) Repositories {
	return Repositories{
		Identities:    store.Identities(),
		Credit:        store.Credit(),
		Loans:         store.Loans(),
		Obligations:   store.Obligations(),
		Vault:         store.Vault(),
		Sessions:      store.Sessions(),
		Outbox:        store.Outbox(),
		Notifications: store.Outbox(),
		Locker:        memory.NewLocker(lockTimeout),
		Close:         func() {},
	}
}

// OpenRepositories connects the backend selected by STORE_DRIVER. The
// postgres backend applies pending migrations before returning.
func OpenRepositories(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch cfg.StoreDriver {
	case "memory":
		return MemoryRepositories(memory.NewStore(), cfg.LockTimeout), nil
	case "", "postgres":
	default:
		return Repositories{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		return Repositories{}, err
	}
	if _, err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return Repositories{}, err
	}
	return Repositories{
		Identities:    postgresrepo.NewIdentityRepository(pool),
		Credit:        postgresrepo.NewCreditRepository(pool),
		Loans:         postgresrepo.NewLoanRepository(pool),
		Obligations:   postgresrepo.NewObligationRepository(pool),
		Vault:         postgresrepo.NewVaultRepository(pool),
		Sessions:      postgresrepo.NewSessionRepository(pool),
		Outbox:        postgresrepo.NewOutboxRepository(pool),
		Notifications: postgresrepo.NewWSRepository(pool),
		Locker:        db.NewIdentityLocker(pool, cfg.LockTimeout),
		Pinger:        pool,
		Close:         pool.Close,
	}, nil
}
