// Package memory is an in-process implementation of every repository. It
// backs STORE_DRIVER=memory and the domain scenario tests. Writes are atomic
// per call; there is no rollback across calls.
package memory

import (
	"sync"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/auth"
	"github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/rajarshidattapy/R-Credit/internal/domain/vault"
	"github.com/rajarshidattapy/R-Credit/internal/jobs"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	identities    map[string]*identity.Identity
	byFingerprint map[string]string

	events      []credit.Event
	nextEventID int64

	loans       map[string]*loan.Entity
	obligations map[string]*obligation.Obligation

	vaultEntries []vault.Receipt
	vaultByKey   map[string]int

	sessions map[string]*auth.Session

	outbox    []*jobs.OutboxJob
	nextJobID int64
}

func NewStore() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		identities:    map[string]*identity.Identity{},
		byFingerprint: map[string]string{},
		loans:         map[string]*loan.Entity{},
		obligations:   map[string]*obligation.Obligation{},
		vaultByKey:    map[string]int{},
		sessions:      map[string]*auth.Session{},
	}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Identities() *IdentityRepository    { return &IdentityRepository{s: s} }
func (s *Store) Credit() *CreditRepository          { return &CreditRepository{s: s} }
func (s *Store) Loans() *LoanRepository             { return &LoanRepository{s: s} }
func (s *Store) Obligations() *ObligationRepository { return &ObligationRepository{s: s} }
func (s *Store) Vault() *VaultRepository            { return &VaultRepository{s: s} }
func (s *Store) Sessions() *SessionRepository       { return &SessionRepository{s: s} }
func (s *Store) Outbox() *OutboxRepository          { return &OutboxRepository{s: s} }

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
