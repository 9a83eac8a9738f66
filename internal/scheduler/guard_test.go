package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"microgrid/internal/types"
)

func TestGuard_RetriesWithBackoff(t *testing.T) {
	var waits []time.Duration
	g := NewGuard("t", 3, 10*time.Millisecond, WithGuardSleep(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(waits) != 2 || waits[0] != 10*time.Millisecond || waits[1] != 20*time.Millisecond {
		t.Errorf("unexpected backoff: %v", waits)
	}
}

func TestGuard_AnswersAreNotRetried(t *testing.T) {
	g := NewGuard("t", 3, 0, WithGuardSleep(noSleep))

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return types.NewAppError(types.ErrCodeNotFoundTick, "no ticks recorded", nil)
	})

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundTick {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestGuard_ContextErrorsAreNotRetried(t *testing.T) {
	g := NewGuard("t", 3, 0, WithGuardSleep(noSleep))

	calls := 0
	_ = g.Do(context.Background(), func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestGuard_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	g := NewGuard("t", 1, 0)
	fail := func(context.Context) error { return errors.New("connection refused") }

	for i := 0; i < 5; i++ {
		_ = g.Do(context.Background(), fail)
	}

	called := false
	err := g.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamUnavailable {
		t.Fatalf("expected open breaker error, got %v", err)
	}
	if called {
		t.Error("operation must not run while the breaker is open")
	}
	if g.State() != "open" {
		t.Errorf("expected open state, got %s", g.State())
	}
}

func TestGuard_AnswersDoNotTripBreaker(t *testing.T) {
	g := NewGuard("t", 1, 0)
	for i := 0; i < 10; i++ {
		_ = g.Do(context.Background(), func(context.Context) error {
			return types.NewAppError(types.ErrCodeNotFoundSetting, "unset", nil)
		})
	}
	if g.State() != "closed" {
		t.Errorf("expected closed state, got %s", g.State())
	}
}

func TestRead_ReturnsValue(t *testing.T) {
	g := NewGuard("t", 2, 0, WithGuardSleep(noSleep))
	attempt := 0
	v, err := Read(context.Background(), g, func(context.Context) (float64, error) {
		attempt++
		if attempt == 1 {
			return 0, errors.New("flaky")
		}
		return 64.5, nil
	})
	if err != nil || v != 64.5 {
		t.Fatalf("expected 64.5, got %v (%v)", v, err)
	}
}

// tripGuard opens g's breaker and waits until it is ready to probe.
func tripGuard(t *testing.T, g *Guard, openFor time.Duration) {
	t.Helper()
	for i := 0; i < 5; i++ {
		_ = g.Do(context.Background(), func(context.Context) error { return errors.New("connection refused") })
	}
	if g.State() != "open" {
		t.Fatalf("expected open state, got %s", g.State())
	}
	time.Sleep(openFor + 10*time.Millisecond)
}

func TestGuard_HalfOpenConcurrentReadsWaitForProbe(t *testing.T) {
	g := NewGuard("t", 1, 0, WithOpenTimeout(20*time.Millisecond))
	tripGuard(t, g, 20*time.Millisecond)

	var wg sync.WaitGroup
	values := make([]float64, 2)
	errs := make([]error, 2)
	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i], errs[i] = Read(context.Background(), g, func(context.Context) (float64, error) {
				time.Sleep(20 * time.Millisecond)
				return 73.4, nil
			})
		}(i)
	}
	wg.Wait()

	for i := range values {
		if errs[i] != nil || values[i] != 73.4 {
			t.Errorf("read %d: expected 73.4, got %v (%v)", i, values[i], errs[i])
		}
	}
	if g.State() != "closed" {
		t.Errorf("expected closed state after recovery, got %s", g.State())
	}
}

func TestGuard_HalfOpenWaitEndsWithContext(t *testing.T) {
	g := NewGuard("t", 1, 0, WithOpenTimeout(20*time.Millisecond))
	tripGuard(t, g, 20*time.Millisecond)

	release := make(chan struct{})
	probing := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func(context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()
	<-probing
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.Do(ctx, func(context.Context) error { return nil })

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamUnavailable {
		t.Fatalf("expected unavailable error once the context ends, got %v", err)
	}
}
