// Package vault describes fund movement into and out of an identity's
// deposit wallet. Implementations live in internal/vault.
package vault

import (
	"context"
	"time"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type Receipt struct {
	ID             string    `json:"id"`
	IdentityID     string    `json:"identity_id"`
	Direction      Direction `json:"direction"`
	AmountMinor    int64     `json:"amount_minor"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Balance struct {
	IdentityID   string `json:"identity_id"`
	AmountMinor  int64  `json:"amount_minor"`
	CurrencyCode string `json:"currency_code"`
}

// Gateway moves funds. Disburse with an idempotency key already used returns
// the original receipt without moving funds again.
type Gateway interface {
	Disburse(ctx context.Context, identityID string, amountMinor int64, idempotencyKey string) (*Receipt, error)
	Withdraw(ctx context.Context, identityID string, amountMinor int64, proof string) (*Receipt, error)
	Balance(ctx context.Context, identityID string) (*Balance, error)
}
