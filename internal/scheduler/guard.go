package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"microgrid/internal/types"
)

// Guard runs store operations with bounded retries behind a circuit breaker.
// Not-found and validation errors are answers, not failures: they are
// returned at once and do not count against the breaker.
//
// While the breaker is half-open only one call probes the store. Concurrent
// calls wait for the probe to settle instead of failing, so a recovering
// store never turns a healthy read into a fallback value.
type Guard struct {
	breaker     *gobreaker.CircuitBreaker[struct{}]
	attempts    int
	wait        time.Duration
	openTimeout time.Duration
	probeWait   time.Duration
	sleep       func(context.Context, time.Duration) error
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardSleep replaces the backoff sleep, for tests.
func WithGuardSleep(fn func(context.Context, time.Duration) error) GuardOption {
	return func(g *Guard) { g.sleep = fn }
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.openTimeout = d }
}

// NewGuard creates a Guard making up to attempts tries per call, waiting
// wait, 2·wait, 4·wait... between them. The breaker opens after five
// consecutive failed calls and probes again after 30 seconds.
func NewGuard(name string, attempts int, wait time.Duration, opts ...GuardOption) *Guard {
	if attempts < 1 {
		attempts = 1
	}
	g := &Guard{
		attempts:    attempts,
		wait:        wait,
		openTimeout: 30 * time.Second,
		probeWait:   10 * time.Millisecond,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     g.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isAnswer(err)
		},
	})
	return g
}

// Do runs op until it succeeds, fails permanently, or attempts run out.
// Waiting behind a half-open probe does not use up an attempt; it ends when
// the probe settles or ctx is done.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < g.attempts; {
		_, err = g.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, op(ctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			if serr := g.sleep(ctx, g.probeWait); serr != nil {
				return types.NewAppError(types.ErrCodeUpstreamUnavailable, "store circuit breaker is probing", err)
			}
			if ctx.Err() != nil {
				return types.NewAppError(types.ErrCodeUpstreamUnavailable, "store circuit breaker is probing", ctx.Err())
			}
			continue
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			return types.NewAppError(types.ErrCodeUpstreamUnavailable, "store circuit breaker is open", err)
		}
		if !retryable(err) {
			return err
		}
		if attempt < g.attempts-1 {
			if serr := g.sleep(ctx, g.wait<<attempt); serr != nil {
				return err
			}
		}
		attempt++
	}
	return err
}

// Read is Do for operations that return a value.
func Read[T any](ctx context.Context, g *Guard, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// State reports the breaker state for health output.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// isAnswer reports whether err is a definitive reply from a healthy store.
func isAnswer(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	code := string(appErr.Code)
	return strings.HasPrefix(code, "not_found_") || strings.HasPrefix(code, "validation_")
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !isAnswer(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
