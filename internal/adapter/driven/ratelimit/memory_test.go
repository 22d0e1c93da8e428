package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// fakeClock is a manually advanced time source.
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemory(limit int, window time.Duration) (*Memory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
	m := NewMemory(model.RateLimit{Limit: limit, Window: window})
	m.now = clock.Now
	return m, clock
}

func TestMemory_AdmitsExactlyLimitThenRejects(t *testing.T) {
	m, clock := newTestMemory(3, 10*time.Second)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := m.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, i, d.Count)
		assert.Equal(t, 3-i, d.Remaining)
	}

	d, err := m.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, clock.Now().Add(10*time.Second), d.ResetAt)
}

func TestMemory_ResetsAfterWindow(t *testing.T) {
	m, clock := newTestMemory(2, 10*time.Second)
	ctx := context.Background()

	for range 3 {
		_, _ = m.Allow(ctx, "k")
	}

	clock.Advance(9 * time.Second)
	d, _ := m.Allow(ctx, "k")
	assert.False(t, d.Allowed, "still inside the first window")

	clock.Advance(time.Second)
	d, _ = m.Allow(ctx, "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count, "new window starts counting from zero")
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	m, _ := newTestMemory(1, time.Minute)
	ctx := context.Background()

	a, _ := m.Allow(ctx, "a")
	b, _ := m.Allow(ctx, "b")
	a2, _ := m.Allow(ctx, "a")

	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)
	assert.False(t, a2.Allowed)
}

func TestMemory_ConcurrentAdmitsExactlyLimit(t *testing.T) {
	m, _ := newTestMemory(50, time.Minute)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := m.Allow(ctx, "shared")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), allowed.Load())
}

func TestMemory_SweepDropsExpiredKeys(t *testing.T) {
	m, clock := newTestMemory(5, 10*time.Second)
	ctx := context.Background()

	_, _ = m.Allow(ctx, "old")
	clock.Advance(6 * time.Second)
	_, _ = m.Allow(ctx, "new")
	require.Equal(t, 2, m.Len())

	clock.Advance(5 * time.Second)
	removed := m.Sweep(clock.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Len())

	d, _ := m.Allow(ctx, "old")
	assert.Equal(t, 1, d.Count, "swept key starts a fresh window")
}

func TestMemory_SweepConcurrentWithAllow(t *testing.T) {
	m, clock := newTestMemory(1000, time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				_, err := m.Allow(ctx, "k")
				assert.NoError(t, err)
			}
		}()
	}
	for range 50 {
		clock.Advance(time.Millisecond)
		m.Sweep(clock.Now())
	}
	wg.Wait()
}

func TestMemory_RunStopsOnCancel(t *testing.T) {
	m, _ := newTestMemory(1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewMemory_Floors(t *testing.T) {
	m := NewMemory(model.RateLimit{})
	assert.Equal(t, 1, m.limit)
	assert.Equal(t, time.Minute, m.window)
}
