// Package main is the standalone dispatcher.
//
// Inside AWS Lambda it runs one dispatch tick per EventBridge invocation:
//
//	{"task": "dispatch_tick"}
//
// Elsewhere it runs the dispatch loop without the HTTP API, publishing to
// the configured brokers only. Use it when the API runs with more than one
// replica and ticking must happen in exactly one place.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"

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

	logger := wiring.NewLogger(cfg.LogLevel)
	lambdaMode := wiring.IsLambda()
	logger.Info("dispatcher initializing",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"lambda", lambdaMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	var awsCfg aws.Config
	if wiring.NeedsAWS(cfg) {
		if awsCfg, err = wiring.LoadAWS(ctx, cfg.AWS); err != nil {
			return err
		}
	}
	metrics := wiring.NewRecorder(cfg, awsCfg, logger)

	sinks, err := wiring.NewSinks(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("connecting sinks: %w", err)
	}
	pipeline := wiring.NewPipeline(cfg, db.PoolStore{Pool: pool}, db.NewTickLock(pool), metrics, logger, sinks...)
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Error("closing sinks", "error", err)
		}
	}()
	logger.Info("dispatch sinks connected", "sinks", pipeline.Fanout.Sinks())

	if lambdaMode {
		handler := &scheduler.TaskHandler{
			Ticker: pipeline.Dispatcher,
			Clock:  types.RealClock{},
			Logger: logger,
		}
		// lambda.Start does not return; connections live for the life of
		// the execution environment.
		lambda.Start(handler.Handle)
		return nil
	}

	return scheduler.NewLoop(pipeline.Dispatcher, cfg.Dispatch.TickInterval, logger).Run(ctx)
}
