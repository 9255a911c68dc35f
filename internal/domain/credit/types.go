package credit

import (
	"context"
	"time"
)

type Reason string

const (
	ReasonInitialGrant Reason = "initial_grant"
	ReasonRepayment    Reason = "repayment"
	ReasonDefault      Reason = "default"
)

const TopicFrozenAccount = "frozen_account"

// Account is the ledger's view of an identity. ScoreRaw is the unclamped
// running sum of every event delta.
type Account struct {
	IdentityID  string
	ScoreRaw    int64
	StrikeCount int32
	FrozenUntil *time.Time
}

func (a Account) Score() int {
	return Clamp(a.ScoreRaw)
}

func (a Account) FrozenAt(now time.Time) bool {
	return a.FrozenUntil != nil && a.FrozenUntil.After(now)
}

type Event struct {
	ID         int64     `json:"id"`
	IdentityID string    `json:"identity_id"`
	Delta      int64     `json:"delta"`
	Reason     Reason    `json:"reason"`
	Reference  string    `json:"reference"`
	CreatedAt  time.Time `json:"created_at"`
}

type EventInput struct {
	IdentityID string
	Delta      int64
	Reason     Reason
	Reference  string
}

type Profile struct {
	IdentityID     string     `json:"identity_id"`
	CreditScore    int        `json:"credit_score"`
	BorrowingLimit int64      `json:"borrowing_limit_minor"`
	CurrencyCode   string     `json:"currency_code"`
	StrikeCount    int32      `json:"strike_count"`
	Frozen         bool       `json:"frozen"`
	FrozenUntil    *time.Time `json:"frozen_until,omitempty"`
	RecentEvents   []Event    `json:"recent_events"`
}

type ReplayReport struct {
	IdentityID    string `json:"identity_id"`
	EventCount    int64  `json:"event_count"`
	ReplayedRaw   int64  `json:"replayed_raw"`
	StoredRaw     int64  `json:"stored_raw"`
	ReplayedScore int    `json:"replayed_score"`
	StoredScore   int    `json:"stored_score"`
	Drift         bool   `json:"drift"`
}

type Repository interface {
	GetAccount(ctx context.Context, identityID string) (*Account, error)
	// AppendEvent inserts the event and moves the running total by its delta
	// in the same statement batch.
	AppendEvent(ctx context.Context, in EventInput) (*Account, error)
	SaveStrikes(ctx context.Context, identityID string, strikeCount int32, frozenUntil *time.Time) error
	ListEvents(ctx context.Context, identityID string, limit, offset int32) ([]Event, error)
	SumEvents(ctx context.Context, identityID string) (count int64, sum int64, err error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic, identityID string, payload []byte) error
}

// Locker serializes every mutation of one identity's state.
type Locker interface {
	WithinIdentity(ctx context.Context, identityID string, fn func(ctx context.Context) error) error
}
