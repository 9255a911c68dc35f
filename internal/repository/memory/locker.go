package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

type heldKey struct{}

// held is the chain of identity ids locked by the calling goroutine's
// context, innermost first.
type held struct {
	id   string
	next *held
}

func (h *held) contains(id string) bool {
	for cur := h; cur != nil; cur = cur.next {
		if cur.id == id {
			return true
		}
	}
	return false
}

// Locker serializes units of work per identity. A nested call for an id
// already held by the context runs without locking again.
type Locker struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocker(timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Locker{timeout: timeout, slots: map[string]chan struct{}{}}
}

func (l *Locker) WithinIdentity(ctx context.Context, identityID string, fn func(ctx context.Context) error) error {
	chain, _ := ctx.Value(heldKey{}).(*held)
	if chain.contains(identityID) {
		return fn(ctx)
	}

	slot := l.slot(identityID)
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
	case <-timer.C:
		return errs.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-slot }()

	return fn(context.WithValue(ctx, heldKey{}, &held{id: identityID, next: chain}))
}

func (l *Locker) slot(identityID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[identityID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[identityID] = slot
	}
	return slot
}
