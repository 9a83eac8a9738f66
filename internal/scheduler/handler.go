package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"microgrid/internal/types"
)

// Archiver removes ticks past retention.
type Archiver interface {
	ArchiveExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

// TaskHandler routes scheduled invocations to the dispatcher or the
// archiver. Either may be nil when the process does not run that job; a
// task for a missing service is an error.
type TaskHandler struct {
	Ticker    Ticker
	Archiver  Archiver
	Retention time.Duration
	Clock     types.Clock
	Logger    *slog.Logger
}

// Handle runs one task and returns a short summary for the invocation log.
func (h *TaskHandler) Handle(ctx context.Context, payload TaskPayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	now := payload.Now(clock.Now())

	logger.InfoContext(ctx, "scheduled task invoked",
		"task", string(payload.Task),
		"reference_time", now.Format(time.RFC3339),
	)

	switch payload.Task {
	case TaskDispatchTick:
		if h.Ticker == nil {
			return "", fmt.Errorf("task %s is not served by this function", payload.Task)
		}
		res, err := h.Ticker.Tick(ctx)
		if IsTickConflict(err) {
			return fmt.Sprintf("task %s skipped: tick already in progress", payload.Task), nil
		}
		if err != nil {
			return "", fmt.Errorf("task %s failed: %w", payload.Task, err)
		}
		return fmt.Sprintf("tick %s dispatched, soc %.2f%%", res.TickID, res.Battery.SoCPercent), nil

	case TaskArchiveTicks:
		if h.Archiver == nil {
			return "", fmt.Errorf("task %s is not served by this function", payload.Task)
		}
		n, err := h.Archiver.ArchiveExpired(ctx, now, h.Retention)
		if err != nil {
			logger.ErrorContext(ctx, "task execution failed",
				"task", string(payload.Task),
				"error", err,
				"items_before_error", n,
			)
			return "", fmt.Errorf("task %s failed: %w", payload.Task, err)
		}
		result := fmt.Sprintf("task %s complete: %d ticks archived", payload.Task, n)
		logger.InfoContext(ctx, result, "task", string(payload.Task), "items", n)
		return result, nil

	case "":
		return "", fmt.Errorf("empty task type in payload")

	default:
		return "", fmt.Errorf("unknown task type: %q", payload.Task)
	}
}
