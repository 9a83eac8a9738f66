// Package publish delivers persisted dispatch ticks to observers: browser
// websockets, message brokers, the time-series store and the alert queue.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"microgrid/internal/telemetry"
	"microgrid/internal/types"
)

// Sink is one delivery target.
type Sink interface {
	Name() string
	Publish(ctx context.Context, res types.DispatchResult) error
}

// Fanout publishes each tick to every sink concurrently. One sink failing
// does not stop the others; all failures are joined into the returned
// error and counted per sink.
type Fanout struct {
	sinks   []Sink
	metrics telemetry.Recorder
	logger  *slog.Logger
}

// NewFanout creates a Fanout. metrics may be nil.
func NewFanout(metrics telemetry.Recorder, logger *slog.Logger, sinks ...Sink) *Fanout {
	if metrics == nil {
		metrics = telemetry.NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: sinks, metrics: metrics, logger: logger}
}

// Sinks returns the configured sink names, for startup logging.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Publish delivers res to all sinks and waits for them.
func (f *Fanout) Publish(ctx context.Context, res types.DispatchResult) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, s := range f.sinks {
		g.Go(func() error {
			if err := s.Publish(ctx, res); err != nil {
				f.metrics.RecordPublishFailure(ctx, s.Name())
				f.logger.WarnContext(ctx, "sink publish failed",
					"sink", s.Name(),
					"tick_id", res.TickID,
					"error", err,
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close closes every sink that holds a connection.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func encodeTick(res types.DispatchResult) ([]byte, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding tick %s: %w", res.TickID, err)
	}
	return b, nil
}
