package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *fakeClock, opts ...Option) *Breaker {
	return New("rts", append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestDefaults(t *testing.T) {
	b := New("rts")
	assert.Equal(t, "rts", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	for range defaultFailureThreshold - 1 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestFailureRunOpensBreaker(t *testing.T) {
	clock := &fakeClock{now: time.Date(2027, 8, 9, 18, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, WithFailureThreshold(3), WithCooldown(time.Minute))

	steps := []struct {
		fallback bool
		opened   bool
	}{
		{false, false},
		{false, false},
		{true, true},
		{true, false},
	}
	for i, step := range steps {
		fallback, change := b.RecordFailure()
		assert.Equal(t, step.fallback, fallback, "failure %d", i+1)
		assert.Equal(t, step.opened, change.Opened, "failure %d", i+1)
	}
	assert.False(t, b.Allow(), "open breaker refuses calls inside the cooldown")
}

func TestSuccessResetsFailureRun(t *testing.T) {
	clock := &fakeClock{now: time.Date(2027, 8, 9, 18, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, WithFailureThreshold(2))

	b.RecordFailure()
	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.Equal(t, StateChange{}, change)

	b.RecordFailure()
	assert.False(t, b.IsOpen(), "failures must be consecutive")
}

func TestProbeAfterCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2027, 8, 9, 18, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Minute))

	_, change := b.RecordFailure()
	require.True(t, change.Opened)

	clock.Advance(59 * time.Second)
	assert.False(t, b.Allow())
	clock.Advance(time.Second)
	assert.True(t, b.Allow(), "one probe per cooldown")

	t.Run("failed probe restarts the cooldown", func(t *testing.T) {
		b.RecordFailure()
		assert.False(t, b.Allow())
		clock.Advance(time.Minute)
		assert.True(t, b.Allow())
	})

	t.Run("success run closes", func(t *testing.T) {
		usePrimary, change := b.RecordSuccess()
		assert.False(t, usePrimary)
		assert.False(t, change.Closed)
		assert.True(t, b.IsOpen())

		usePrimary, change = b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestInterleavedProbeFailureResetsSuccessRun(t *testing.T) {
	clock := &fakeClock{now: time.Date(2027, 8, 9, 18, 0, 0, 0, time.UTC)}
	b := newTestBreaker(clock, WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	_, change := b.RecordSuccess()
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())
}

func TestReset(t *testing.T) {
	b := New("fallback", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestInvalidOptionsKeepDefaults(t *testing.T) {
	b := New("rts", WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0), WithClock(nil))
	assert.Equal(t, defaultFailureThreshold, b.failureThreshold)
	assert.Equal(t, defaultSuccessThreshold, b.successThreshold)
	assert.Equal(t, defaultCooldown, b.cooldown)
	assert.NotNil(t, b.now)
}

func TestConcurrentRecording(t *testing.T) {
	b := New("rts", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			for range 10 {
				b.RecordFailure()
				b.Allow()
			}
		})
	}
	wg.Wait()
	assert.False(t, b.IsOpen(), "500 failures stay under the threshold")
}
