package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLockerIsReentrantForHeldIdentity(t *testing.T) {
	l := NewLocker(100 * time.Millisecond)
	calls := 0
	err := l.WithinIdentity(context.Background(), "a", func(ctx context.Context) error {
		return l.WithinIdentity(ctx, "a", func(ctx context.Context) error {
			return l.WithinIdentity(ctx, "b", func(ctx context.Context) error {
				calls++
				return l.WithinIdentity(ctx, "a", func(context.Context) error {
					calls++
					return nil
				})
			})
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLockerTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLocker(50 * time.Millisecond)
	release := make(chan struct{})
	acquired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.WithinIdentity(context.Background(), "a", func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	err := l.WithinIdentity(context.Background(), "a", func(context.Context) error { return nil })
	require.ErrorIs(t, err, errs.ErrLockTimeout)

	require.NoError(t, l.WithinIdentity(context.Background(), "b", func(context.Context) error { return nil }))

	close(release)
	<-done
	require.NoError(t, l.WithinIdentity(context.Background(), "a", func(context.Context) error { return nil }))
}

func TestLockerSerializesSameIdentity(t *testing.T) {
	l := NewLocker(time.Second)
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithinIdentity(context.Background(), "a", func(context.Context) error {
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}
