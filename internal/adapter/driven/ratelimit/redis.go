package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RateLimiter = (*Redis)(nil)

// fixedWindowScript increments the key and starts its expiry on the first hit
// of a window. Returns {count, ttl_ms}.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis shares fixed windows between gateway instances. When redis is
// unreachable it falls back to an in-process Memory limiter with the same
// limit, so a redis outage degrades to per-instance limits instead of
// disabling admission control.
type Redis struct {
	client   redis.Scripter
	prefix   string
	limit    int
	window   time.Duration
	fallback *Memory
	logger   *slog.Logger

	// degraded is set while requests are served by fallback; the outage is
	// logged once on entry and once on recovery.
	degraded atomic.Bool
}

// NewRedis creates a redis-backed limiter. prefix namespaces the keys of one
// limiter class (e.g. "sqlgate:rl:ip:").
func NewRedis(client redis.Scripter, prefix string, rl model.RateLimit, logger *slog.Logger) *Redis {
	fallback := NewMemory(rl)
	return &Redis{
		client:   client,
		prefix:   prefix,
		limit:    fallback.limit,
		window:   fallback.window,
		fallback: fallback,
		logger:   logger,
	}
}

// Allow counts one request for key in redis.
func (l *Redis) Allow(ctx context.Context, key string) (model.RateDecision, error) {
	count, ttl, err := l.incr(ctx, key)
	if err != nil {
		if l.degraded.CompareAndSwap(false, true) {
			l.logger.Warn("redis rate limiter unavailable, using local window", "prefix", l.prefix, "error", err)
		} else {
			l.logger.Debug("redis rate limiter still unavailable", "prefix", l.prefix, "error", err)
		}
		return l.fallback.Allow(ctx, key)
	}
	if l.degraded.CompareAndSwap(true, false) {
		l.logger.Info("redis rate limiter recovered", "prefix", l.prefix)
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return model.RateDecision{
		Allowed:   count <= l.limit,
		Count:     count,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// Fallback exposes the local limiter so its keys can be swept.
func (l *Redis) Fallback() *Memory {
	return l.fallback
}

func (l *Redis) incr(ctx context.Context, key string) (int, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("run rate limit script: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	return int(res[0]), ttl, nil
}
