package lease

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technerv/election-monitor/pkg/platform/sentinel"
)

func TestInMemoryExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory()

	release, err := l.Acquire(ctx, "election:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "election:1", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrHeld)

	other, err := l.Acquire(ctx, "election:2", time.Minute)
	require.NoError(t, err, "scopes are independent")
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "election:1", time.Minute)
	assert.NoError(t, err)
}

func TestInMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2027, 8, 9, 6, 0, 0, 0, time.UTC)
	l := NewInMemory(WithClock(func() time.Time { return now }))

	stale, err := l.Acquire(ctx, "election:1", time.Minute)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = l.Acquire(ctx, "election:1", time.Minute)
	require.NoError(t, err, "expired lease can be taken over")

	require.NoError(t, stale(ctx))
	_, err = l.Acquire(ctx, "election:1", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrHeld, "stale release must not free the new holder")
}

func TestInMemoryConcurrentAcquire(t *testing.T) {
	l := NewInMemory()
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range 32 {
		wg.Go(func() {
			if _, err := l.Acquire(context.Background(), "election:9", time.Minute); err == nil {
				winners.Add(1)
			}
		})
	}
	wg.Wait()
	assert.EqualValues(t, 1, winners.Load())
}

func TestInMemoryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInMemory().Acquire(ctx, "election:1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
