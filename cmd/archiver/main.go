// Package main is the entrypoint for the tick retention job.
//
// The archiver moves dispatch ticks older than ARCHIVE_RETENTION into the
// object store as zstd-compressed JSON Lines, then deletes them from
// PostgreSQL. Inside AWS Lambda it serves EventBridge invocations:
//
//	{"task": "archive_ticks", "reference_time": "2026-02-06T03:00:00Z"}
//
// Outside Lambda it runs once and exits, which suits cron or a Kubernetes
// CronJob. ARCHIVE_REFERENCE_TIME (RFC 3339) replays a missed run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"

	"microgrid/internal/archive"
	"microgrid/internal/config"
	"microgrid/internal/db"
	"microgrid/internal/scheduler"
	"microgrid/internal/types"
	"microgrid/internal/wiring"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Archive.Endpoint == "" {
		return fmt.Errorf("ARCHIVE_ENDPOINT is required")
	}

	logger := wiring.NewLogger(cfg.LogLevel)
	logger.Info("archiver initializing",
		"environment", cfg.Environment,
		"bucket", cfg.Archive.Bucket,
		"retention", cfg.Archive.Retention.String(),
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	client, err := archive.NewMinioClient(cfg.Archive)
	if err != nil {
		return err
	}
	store := archive.NewMinioStore(client, cfg.Archive.Bucket)
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}

	var awsCfg aws.Config
	if cfg.AWS.EnableMetrics {
		if awsCfg, err = wiring.LoadAWS(ctx, cfg.AWS); err != nil {
			return err
		}
	}

	handler := &scheduler.TaskHandler{
		Archiver: scheduler.NewArchiverService(
			db.NewTickRepository(db.PoolStore{Pool: pool}),
			store,
			wiring.NewRecorder(cfg, awsCfg, logger),
			cfg.Archive.BatchSize,
			logger,
		),
		Retention: cfg.Archive.Retention,
		Clock:     types.RealClock{},
		Logger:    logger,
	}

	if wiring.IsLambda() {
		lambda.Start(handler.Handle)
		return nil
	}

	payload, err := localPayload(os.Getenv("ARCHIVE_REFERENCE_TIME"))
	if err != nil {
		return err
	}
	out, err := handler.Handle(ctx, payload)
	if err != nil {
		return err
	}
	logger.Info("archiver finished", slog.String("result", out))
	return nil
}

// localPayload builds the archive task for a one-shot run.
func localPayload(reference string) (scheduler.TaskPayload, error) {
	payload := scheduler.TaskPayload{Task: scheduler.TaskArchiveTicks}
	if reference == "" {
		return payload, nil
	}
	at, err := time.Parse(time.RFC3339, reference)
	if err != nil {
		return payload, fmt.Errorf("parsing ARCHIVE_REFERENCE_TIME: %w", err)
	}
	payload.ReferenceTime = &at
	return payload, nil
}
