// Package vault holds the VaultGateway implementations.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
	domain "github.com/rajarshidattapy/R-Credit/internal/domain/vault"
)

type EntryInput struct {
	IdentityID     string
	Direction      domain.Direction
	AmountMinor    int64
	IdempotencyKey string
}

// EntryStore is the custodial entry table. InsertEntry is idempotent on the
// key: a second insert returns the first entry and created=false.
type EntryStore interface {
	InsertEntry(ctx context.Context, in EntryInput) (receipt *domain.Receipt, created bool, err error)
	BalanceOf(ctx context.Context, identityID string) (int64, error)
}

type IdentityResolver interface {
	ResolveAttestation(ctx context.Context, proof string) (*identity.Identity, error)
}

type Locker interface {
	WithinIdentity(ctx context.Context, identityID string, fn func(ctx context.Context) error) error
}

// LedgerGateway keeps deposit wallets as credit and debit entries. The
// balance is the sum of credits minus the sum of debits.
type LedgerGateway struct {
	store    EntryStore
	resolver IdentityResolver
	locker   Locker
	currency string
}

func NewLedgerGateway(store EntryStore, resolver IdentityResolver, locker Locker, currency string) *LedgerGateway {
	if currency == "" {
		currency = "INR"
	}
	return &LedgerGateway{store: store, resolver: resolver, locker: locker, currency: currency}
}

func (g *LedgerGateway) Disburse(ctx context.Context, identityID string, amountMinor int64, idempotencyKey string) (*domain.Receipt, error) {
	if amountMinor <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, errors.New("missing idempotency key")
	}

	var out *domain.Receipt
	err := g.locker.WithinIdentity(ctx, identityID, func(ctx context.Context) error {
		receipt, created, err := g.store.InsertEntry(ctx, EntryInput{
			IdentityID:     identityID,
			Direction:      domain.DirectionCredit,
			AmountMinor:    amountMinor,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			return err
		}
		if !created && (receipt.IdentityID != identityID || receipt.AmountMinor != amountMinor || receipt.Direction != domain.DirectionCredit) {
			return fmt.Errorf("idempotency key %q reused for a different transfer", idempotencyKey)
		}
		out = receipt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Withdraw debits the wallet. The proof must attest the human the wallet
// belongs to, and the balance must cover the amount.
func (g *LedgerGateway) Withdraw(ctx context.Context, identityID string, amountMinor int64, proof string) (*domain.Receipt, error) {
	if amountMinor <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	owner, err := g.resolver.ResolveAttestation(ctx, proof)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidAttestation) || errors.Is(err, errs.ErrIdentityNotFound) {
			return nil, fmt.Errorf("%w: %v", errs.ErrWithdrawalRejected, err)
		}
		return nil, err
	}
	if owner.ID != identityID {
		return nil, fmt.Errorf("%w: attestation belongs to another identity", errs.ErrWithdrawalRejected)
	}

	var out *domain.Receipt
	err = g.locker.WithinIdentity(ctx, identityID, func(ctx context.Context) error {
		balance, err := g.store.BalanceOf(ctx, identityID)
		if err != nil {
			return err
		}
		if balance < amountMinor {
			return fmt.Errorf("%w: insufficient balance", errs.ErrWithdrawalRejected)
		}
		receipt, _, err := g.store.InsertEntry(ctx, EntryInput{
			IdentityID:     identityID,
			Direction:      domain.DirectionDebit,
			AmountMinor:    amountMinor,
			IdempotencyKey: "withdraw:" + uuid.NewString(),
		})
		if err != nil {
			return err
		}
		out = receipt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *LedgerGateway) Balance(ctx context.Context, identityID string) (*domain.Balance, error) {
	amount, err := g.store.BalanceOf(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return &domain.Balance{IdentityID: identityID, AmountMinor: amount, CurrencyCode: g.currency}, nil
}
