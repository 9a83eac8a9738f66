package core

import (
	"context"
	"time"

	"microgrid/internal/ratelimit"
)

// RateLimitStore abstracts the backing store for rate limiting.
// Production uses Redis so replicas share counters; single-node and test
// deployments use the in-memory store.
type RateLimitStore interface {
	// IncrementAndCheck atomically increments the rate limit counter for the
	// given key and checks if the limit has been exceeded within the window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult = ratelimit.Result
