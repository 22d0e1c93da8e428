// Package ratelimit implements fixed-window request counters keyed by caller
// IP or token identity.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RateLimiter = (*Memory)(nil)

// Memory is an in-process fixed-window limiter. Each key owns its own window
// and mutex; the map lock is held only for lookup and insertion. Windows reset
// lazily on the first request after expiry, and Sweep drops expired keys so
// idle callers do not accumulate.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	windows map[string]*window
}

type window struct {
	mu    sync.Mutex
	start time.Time
	count int
	// dead is set by Sweep once the window has been removed from the map.
	dead bool
}

// NewMemory creates a limiter admitting rl.Limit requests per rl.Window per key.
func NewMemory(rl model.RateLimit) *Memory {
	if rl.Limit <= 0 {
		rl.Limit = 1
	}
	if rl.Window <= 0 {
		rl.Window = time.Minute
	}
	return &Memory{
		limit:   rl.Limit,
		window:  rl.Window,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts one request for key and reports whether it fits the window.
func (m *Memory) Allow(_ context.Context, key string) (model.RateDecision, error) {
	now := m.now()

	for {
		w := m.lookup(key)

		w.mu.Lock()
		if w.dead {
			// Lost a race with Sweep; the key has a fresh window now.
			w.mu.Unlock()
			continue
		}

		if w.start.IsZero() || !now.Before(w.start.Add(m.window)) {
			w.start = now
			w.count = 0
		}
		w.count++
		decision := m.decide(w.count, w.start.Add(m.window))
		w.mu.Unlock()

		return decision, nil
	}
}

// Sweep removes windows that expired before now and returns how many were dropped.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		w.mu.Lock()
		if !now.Before(w.start.Add(m.window)) {
			w.dead = true
			delete(m.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Run sweeps expired keys every interval until ctx is canceled.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.windows)
}

func (m *Memory) lookup(key string) *window {
	m.mu.RLock()
	w, ok := m.windows[key]
	m.mu.RUnlock()
	if ok {
		return w
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[key]; ok {
		return w
	}
	w = &window{}
	m.windows[key] = w
	return w
}

func (m *Memory) decide(count int, resetAt time.Time) model.RateDecision {
	remaining := m.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return model.RateDecision{
		Allowed:   count <= m.limit,
		Count:     count,
		Limit:     m.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
