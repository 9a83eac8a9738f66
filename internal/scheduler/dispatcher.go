package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"microgrid/internal/energy"
	"microgrid/internal/telemetry"
	"microgrid/internal/types"
)

// SoCReader returns the state of charge left by the last persisted tick.
type SoCReader interface {
	LatestSoC(ctx context.Context) (float64, error)
}

// TargetReader returns the operator's target load.
type TargetReader interface {
	TargetLoad(ctx context.Context) (float64, error)
}

// TickSaver persists a tick and replaces the active alert set.
type TickSaver interface {
	Save(ctx context.Context, res *types.DispatchResult) error
}

// Publisher pushes a persisted tick to observers.
type Publisher interface {
	Publish(ctx context.Context, res types.DispatchResult) error
}

// TickLocker serializes ticks across processes. TryAcquire does not wait:
// acquired is false when another process is mid-tick.
type TickLocker interface {
	TryAcquire(ctx context.Context) (release func(context.Context), acquired bool, err error)
}

// DispatcherDeps wires a Dispatcher. Publisher, Metrics and Lock may be nil;
// without a Lock ticks are serialized within this process only.
type DispatcherDeps struct {
	Engine    *energy.Engine
	SoC       SoCReader
	Target    TargetReader
	Store     TickSaver
	Publisher Publisher
	Lock      TickLocker
	Guard     *Guard
	Metrics   telemetry.Recorder
	Clock     types.Clock
	Logger    *slog.Logger

	// Fallback is used for any state value that cannot be read.
	Fallback types.SystemState
	// Timeout bounds one tick, reads and write included. Zero means the
	// caller's context alone.
	Timeout time.Duration
}

// Dispatcher runs one tick at a time: read prior state, compute, persist,
// then publish. Loop ticks and manual ticks share it.
type Dispatcher struct {
	mu   sync.Mutex
	deps DispatcherDeps
}

// NewDispatcher creates a Dispatcher, filling optional dependencies with
// no-op implementations.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopRecorder{}
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Guard == nil {
		deps.Guard = NewGuard("store", 1, 0)
	}
	return &Dispatcher{deps: deps}
}

// Tick computes and persists one dispatch. A persistence failure returns
// an error and leaves the previously stored state authoritative; nothing
// is published for a tick that was not stored.
func (d *Dispatcher) Tick(ctx context.Context) (types.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tick(ctx)
}

// TryTick runs a tick only if none is in progress. Manual ticks use it so
// an operator request never queues behind the loop.
func (d *Dispatcher) TryTick(ctx context.Context) (types.DispatchResult, error) {
	if !d.mu.TryLock() {
		return types.DispatchResult{}, types.NewAppError(types.ErrCodeConflictTickInProgress, "a dispatch tick is already running", nil)
	}
	defer d.mu.Unlock()
	return d.tick(ctx)
}

func (d *Dispatcher) tick(ctx context.Context) (types.DispatchResult, error) {
	if d.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.deps.Timeout)
		defer cancel()
	}

	start := time.Now()
	if d.deps.Lock != nil {
		release, err := d.lock(ctx)
		if err != nil {
			return types.DispatchResult{}, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	state := d.readState(ctx)
	res := d.deps.Engine.Dispatch(state, d.deps.Clock.Now())

	err := d.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return d.deps.Store.Save(ctx, &res)
	})
	if err != nil {
		d.deps.Metrics.RecordTickFailure(ctx)
		d.deps.Logger.WarnContext(ctx, "tick skipped, result not persisted",
			"error", err,
			"soc_percent", res.Battery.SoCPercent,
		)
		return types.DispatchResult{}, fmt.Errorf("persisting tick: %w", err)
	}

	if d.deps.Publisher != nil {
		if err := d.deps.Publisher.Publish(ctx, res); err != nil {
			d.deps.Logger.WarnContext(ctx, "tick publish incomplete",
				"tick_id", res.TickID,
				"error", err,
			)
		}
	}

	d.deps.Metrics.RecordTick(ctx, res, time.Since(start))
	d.deps.Logger.InfoContext(ctx, "tick dispatched",
		"tick_id", res.TickID,
		"soc_percent", res.Battery.SoCPercent,
		"grid_import_kw", res.Grid.ImportKw,
		"grid_export_kw", res.Grid.ExportKw,
		"alerts", len(res.Alerts),
	)
	return res, nil
}

// lock takes the cross-process tick lock. A lock held elsewhere skips the
// tick with a conflict error; the holder's result becomes the next tick's
// prior state.
func (d *Dispatcher) lock(ctx context.Context) (func(context.Context), error) {
	var release func(context.Context)
	var acquired bool
	err := d.deps.Guard.Do(ctx, func(ctx context.Context) error {
		var err error
		release, acquired, err = d.deps.Lock.TryAcquire(ctx)
		return err
	})
	if err != nil {
		d.deps.Metrics.RecordTickFailure(ctx)
		d.deps.Logger.WarnContext(ctx, "tick skipped, lock unavailable", "error", err)
		return nil, fmt.Errorf("acquiring tick lock: %w", err)
	}
	if !acquired {
		d.deps.Logger.InfoContext(ctx, "tick skipped, another process is dispatching")
		return nil, types.NewAppError(types.ErrCodeConflictTickInProgress, "a dispatch tick is running in another process", nil)
	}
	return release, nil
}

// readState loads prior SoC and target load concurrently. Each value falls
// back to its default independently.
func (d *Dispatcher) readState(ctx context.Context) types.SystemState {
	state := d.deps.Fallback
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		soc, err := Read(gctx, d.deps.Guard, d.deps.SoC.LatestSoC)
		if err != nil {
			d.logReadFailure(ctx, "soc_percent", state.SoCPercent, err)
			return nil
		}
		state.SoCPercent = soc
		return nil
	})
	g.Go(func() error {
		target, err := Read(gctx, d.deps.Guard, d.deps.Target.TargetLoad)
		if err != nil {
			d.logReadFailure(ctx, "target_load_kw", state.TargetLoadKw, err)
			return nil
		}
		state.TargetLoadKw = target
		return nil
	})

	_ = g.Wait()
	return state
}

func (d *Dispatcher) logReadFailure(ctx context.Context, field string, fallback float64, err error) {
	if isAnswer(err) {
		d.deps.Logger.InfoContext(ctx, "no stored value, using default",
			"field", field,
			"default", fallback,
		)
		return
	}
	d.deps.Logger.WarnContext(ctx, "state read failed, using default",
		"field", field,
		"default", fallback,
		"error", err,
	)
}
