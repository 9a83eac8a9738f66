package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"microgrid/internal/archive"
	"microgrid/internal/db"
	"microgrid/internal/telemetry"
)

// ArchiveDB lists and removes expired ticks.
type ArchiveDB interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]db.ArchivedTick, error)
	DeleteTicks(ctx context.Context, ids []string) (int64, error)
}

// ArchiveUploader stores one compressed batch.
type ArchiveUploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// ArchiverService moves ticks past retention into object storage. A batch
// is deleted only after its upload succeeded, so a failed run leaves the
// rows in place for the next one.
type ArchiverService struct {
	db        ArchiveDB
	uploader  ArchiveUploader
	metrics   telemetry.Recorder
	logger    *slog.Logger
	batchSize int
}

// NewArchiverService creates an ArchiverService. metrics may be nil.
func NewArchiverService(store ArchiveDB, uploader ArchiveUploader, metrics telemetry.Recorder, batchSize int, logger *slog.Logger) *ArchiverService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NopRecorder{}
	}
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &ArchiverService{
		db:        store,
		uploader:  uploader,
		metrics:   metrics,
		logger:    logger,
		batchSize: batchSize,
	}
}

// ArchiveExpired archives every tick older than now-retention and returns
// how many were removed from the database.
func (a *ArchiverService) ArchiveExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	cutoff := now.Add(-retention)
	total := 0
	defer func() {
		if total > 0 {
			a.metrics.RecordArchived(ctx, total)
		}
	}()

	for {
		ticks, err := a.db.ListOlderThan(ctx, cutoff, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("listing expired ticks: %w", err)
		}
		if len(ticks) == 0 {
			break
		}

		data, err := archive.EncodeJSONL(ticks)
		if err != nil {
			return total, fmt.Errorf("encoding tick batch: %w", err)
		}

		key := archive.ObjectKey(ticks[0].TickAt)
		if err := a.uploader.Upload(ctx, key, data); err != nil {
			return total, fmt.Errorf("uploading tick archive to %s: %w", key, err)
		}

		ids := make([]string, len(ticks))
		for i, t := range ticks {
			ids[i] = t.ID
		}
		deleted, err := a.db.DeleteTicks(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("deleting archived ticks: %w", err)
		}
		total += int(deleted)

		a.logger.InfoContext(ctx, "archived tick batch",
			"batch_size", deleted,
			"object_key", key,
			"total_archived", total,
		)

		if len(ticks) < a.batchSize {
			break
		}
	}

	return total, nil
}
