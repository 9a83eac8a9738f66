package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"microgrid/internal/types"
)

// Ticker runs a single dispatch tick.
type Ticker interface {
	Tick(ctx context.Context) (types.DispatchResult, error)
}

// Loop drives a Ticker on a fixed interval.
type Loop struct {
	ticker   Ticker
	interval time.Duration
	logger   *slog.Logger
}

// NewLoop creates a Loop.
func NewLoop(t Ticker, interval time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{ticker: t, interval: interval, logger: logger}
}

// Run ticks once immediately and then every interval until ctx is done.
// A failed tick is logged and the loop carries on; ticks that would overlap
// a slow predecessor are dropped by the underlying time.Ticker.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "dispatch loop started", "interval", l.interval.String())

	t := time.NewTicker(l.interval)
	defer t.Stop()

	l.once(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "dispatch loop stopped")
			return nil
		case <-t.C:
			l.once(ctx)
		}
	}
}

func (l *Loop) once(ctx context.Context) {
	_, err := l.ticker.Tick(ctx)
	switch {
	case err == nil, ctx.Err() != nil:
	case IsTickConflict(err):
		l.logger.DebugContext(ctx, "dispatch tick skipped", "reason", err.Error())
	default:
		l.logger.ErrorContext(ctx, "dispatch tick failed", "error", err)
	}
}

// IsTickConflict reports whether err means another tick was already
// running, here or in another process.
func IsTickConflict(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictTickInProgress
}
