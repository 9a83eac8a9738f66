// Package main is the entry point for the microgrid dispatch API server.
//
// By default the server owns the dispatch loop: it ticks on DISPATCH_TICK_INTERVAL,
// persists every result to PostgreSQL and pushes it to websocket clients on
// GET /v1/stream and to whichever brokers are configured. The same process
// serves the read, settings, manual-tick and advisory endpoints. With
// DISPATCH_LOOP_ENABLED=false it serves only, and cmd/dispatcher ticks.
// Either way a PostgreSQL advisory lock keeps ticks from overlapping across
// processes.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM):
// the loop stops first, then the HTTP server drains, then connections close.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"microgrid/internal/advisory"
	"microgrid/internal/api/handlers"
	"microgrid/internal/config"
	"microgrid/internal/core"
	"microgrid/internal/db"
	"microgrid/internal/external"
	"microgrid/internal/publish"
	"microgrid/internal/ratelimit"
	"microgrid/internal/scheduler"
	"microgrid/internal/types"
	"microgrid/internal/wiring"
)

// sweepInterval is how often the in-process rate limiter drops expired
// windows.
const sweepInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := wiring.NewLogger(cfg.LogLevel)
	logger.Info("microgrid API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("applying schema: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Closers = append(srv.Closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{ProbeName: "database", Fn: pool.Ping})

	var awsCfg aws.Config
	if wiring.NeedsAWS(cfg) {
		if awsCfg, err = wiring.LoadAWS(ctx, cfg.AWS); err != nil {
			pool.Close()
			return err
		}
	}
	metrics := wiring.NewRecorder(cfg, awsCfg, logger)

	hub := publish.NewHub(cfg.Server.CorsAllowedOrigins, logger)
	sinks, err := wiring.NewSinks(ctx, cfg, awsCfg, logger, hub)
	if err != nil {
		pool.Close()
		return fmt.Errorf("connecting sinks: %w", err)
	}
	pipeline := wiring.NewPipeline(cfg, db.PoolStore{Pool: pool}, db.NewTickLock(pool), metrics, logger, sinks...)
	logger.Info("dispatch sinks connected", "sinks", pipeline.Fanout.Sinks())

	// Sinks close before the pool so a final publish never races a closed
	// connection.
	srv.Closers = append([]func(context.Context) error{
		func(context.Context) error { return pipeline.Close() },
	}, srv.Closers...)

	if err := configureRateLimit(ctx, cfg, srv, logger); err != nil {
		_ = srv.Shutdown(context.Background())
		return err
	}

	registerHandlers(cfg, srv, pipeline, hub, logger)
	srv.MountRoutes()

	loopCtx, cancelLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	if cfg.Dispatch.LoopEnabled {
		go func() {
			defer close(loopDone)
			_ = scheduler.NewLoop(pipeline.Dispatcher, cfg.Dispatch.TickInterval, logger).Run(loopCtx)
		}()
	} else {
		close(loopDone)
		logger.Info("dispatch loop disabled, ticks come from an external dispatcher")
	}

	err = runHTTPServer(ctx, srv, cfg, logger)

	cancelLoop()
	<-loopDone
	return shutdown(srv, logger, err)
}

// configureRateLimit selects the Redis store when REDIS_ADDR is set and the
// in-process store otherwise.
func configureRateLimit(ctx context.Context, cfg *config.Config, srv *core.Server, logger *slog.Logger) error {
	if cfg.Redis.Addr == "" {
		mem := ratelimit.NewMemoryStore(nil)
		srv.RateLimitStore = mem
		go sweepLoop(ctx, mem, logger)
		logger.Info("rate limiting in process")
		return nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	srv.RateLimitStore = ratelimit.NewRedisStore(client, cfg.Service)
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "redis",
		Fn:        func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})
	srv.Closers = append(srv.Closers, func(context.Context) error { return client.Close() })
	logger.Info("rate limiting via redis", "addr", cfg.Redis.Addr)
	return nil
}

func sweepLoop(ctx context.Context, store *ratelimit.MemoryStore, logger *slog.Logger) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug("rate limit windows swept", "count", n)
			}
		}
	}
}

// registerHandlers mounts every /v1 resource.
func registerHandlers(cfg *config.Config, srv *core.Server, p *wiring.Pipeline, hub *publish.Hub, logger *slog.Logger) {
	fallback := cfg.Dispatch.Fallback()

	state := handlers.NewStateHandler(p.Ticks, p.Alerts, fallback, logger)
	settings := handlers.NewSettingsHandler(p.Settings, srv.Validator, srv.RequireOperator, cfg.Dispatch.DefaultTarget, logger)
	dispatch := handlers.NewDispatchHandler(p.Dispatcher, hub, srv.RequireOperator, logger)

	var narrator advisory.Narrator
	if cfg.Advisor.URL != "" {
		narrator = external.NewAdvisorClient(cfg.Advisor, cfg.Build.Version)
		logger.Info("advisory narrative enabled", "model", cfg.Advisor.Model)
	}
	advisor := advisory.NewService(p.Ticks, p.Alerts, narrator, types.RealClock{}, logger)
	advice := handlers.NewAdvisoryHandler(advisor, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		state.RegisterRoutes,
		settings.RegisterRoutes,
		dispatch.RegisterRoutes,
		advice.RegisterRoutes,
	)
}

// runHTTPServer serves until ctx is cancelled or the listener fails, then
// drains in-flight requests.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout stays zero: websocket streams are long-lived and
		// ContextTimeoutMiddleware bounds ordinary requests.
		IdleTimeout: 120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	return nil
}

// shutdown releases server resources and returns runErr if it is set.
func shutdown(srv *core.Server, logger *slog.Logger, runErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		if runErr == nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("server stopped cleanly")
	return nil
}
