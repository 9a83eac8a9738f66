// Package ratelimit implements fixed-window request counters for the HTTP
// API. RedisStore shares counters between API replicas; MemoryStore is used
// when Redis is not configured and in tests.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"microgrid/internal/config"
	"microgrid/internal/types"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is within the rate limit.
	Allowed bool
	// Remaining is the number of requests remaining in the current window.
	Remaining int
	// ResetAt is the time when the current rate limit window resets.
	ResetAt time.Time
}

func result(count int64, limit int, resetAt time.Time) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// incrementScript bumps the counter and starts the window on the first hit.
// It returns the new count and the remaining window in milliseconds.
var incrementScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisStore keeps counters in Redis so every API replica sees the same
// window.
type RedisStore struct {
	client redis.Scripter
	prefix string
	clock  types.Clock
}

// NewRedisClient opens a client for cfg. The connection is verified with a
// PING so a bad address fails at startup.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password.Unmask(),
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRedisStore creates a store whose keys are namespaced by prefix.
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix, clock: types.RealClock{}}
}

// IncrementAndCheck counts one request against key and reports whether it
// fits within limit for the current window.
func (s *RedisStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := incrementScript.Run(ctx, s.client, []string{s.prefix + ":" + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit increment for %q: %w", key, err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit increment for %q: unexpected reply %v", key, vals)
	}
	resetAt := s.clock.Now().Add(time.Duration(vals[1]) * time.Millisecond)
	return result(vals[0], limit, resetAt), nil
}

// MemoryStore keeps counters in process. Expired windows are dropped
// lazily on the next hit for the same key and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	clock   types.Clock
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates an empty store. A nil clock means wall time.
func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{windows: make(map[string]*memoryWindow), clock: clock}
}

// IncrementAndCheck counts one request against key.
func (s *MemoryStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return result(w.count, limit, w.resetAt), nil
}

// Sweep removes windows that have already reset and returns how many were
// dropped.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			n++
		}
	}
	return n
}
