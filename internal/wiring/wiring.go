// Package wiring builds the dispatch pipeline shared by the API server and
// the standalone dispatcher: AWS clients, the metrics recorder, the sink
// fan-out and the Dispatcher itself. Optional integrations are connected
// only when their address is configured.
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Shopify/sarama"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"microgrid/internal/config"
	"microgrid/internal/db"
	"microgrid/internal/energy"
	"microgrid/internal/publish"
	"microgrid/internal/scheduler"
	"microgrid/internal/telemetry"
	"microgrid/internal/types"
)

// alertMinPriority is the lowest alert priority forwarded to the queue.
const alertMinPriority = 3

// LoadAWS resolves the SDK configuration from the default credential chain.
// A non-empty EndpointURL points every client at a local emulator.
func LoadAWS(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.EndpointURL))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// NeedsAWS reports whether any configured feature talks to AWS.
func NeedsAWS(cfg *config.Config) bool {
	return cfg.AWS.EnableMetrics || cfg.AWS.AlertQueueURL != ""
}

// NewRecorder returns a CloudWatch recorder when metrics are enabled and a
// no-op recorder otherwise.
func NewRecorder(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) telemetry.Recorder {
	if !cfg.AWS.EnableMetrics {
		return telemetry.NopRecorder{}
	}
	return telemetry.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.AWS.MetricNamespace, cfg.Environment, logger)
}

// NewSinks connects every configured sink. extra sinks, such as the
// websocket hub, are placed first. On error, sinks already connected are
// closed before returning.
func NewSinks(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger, extra ...publish.Sink) ([]publish.Sink, error) {
	var connected []publish.Sink
	fail := func(err error) ([]publish.Sink, error) {
		if cerr := publish.NewFanout(nil, logger, connected...).Close(); cerr != nil {
			logger.Warn("closing sinks after failed startup", "error", cerr)
		}
		return nil, err
	}

	if cfg.NATS.URL != "" {
		conn, err := publish.ConnectNATS(cfg.NATS, cfg.Service)
		if err != nil {
			return fail(err)
		}
		connected = append(connected, publish.NewNATSSink(conn, cfg.NATS.Subject))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, publish.NewKafkaConfig(cfg.Service))
		if err != nil {
			return fail(fmt.Errorf("creating kafka producer: %w", err))
		}
		connected = append(connected, publish.NewKafkaSink(producer, cfg.Kafka.Topic))
	}

	if cfg.Influx.URL != "" {
		client, err := publish.NewInfluxClient(ctx, cfg.Influx)
		if err != nil {
			return fail(err)
		}
		connected = append(connected, publish.NewInfluxSink(client, cfg.Influx, siteName(cfg)))
	}

	if cfg.AWS.AlertQueueURL != "" {
		connected = append(connected, publish.NewSQSAlertSink(sqs.NewFromConfig(awsCfg), cfg.AWS.AlertQueueURL, alertMinPriority))
	}

	return append(extra, connected...), nil
}

// NewEngine builds the dispatch engine. A non-zero seed makes the run
// reproducible.
func NewEngine(cfg config.DispatchConfig) *energy.Engine {
	var src energy.Source
	if cfg.RandomSeed != 0 {
		src = energy.NewSource(cfg.RandomSeed)
	} else {
		src = energy.NewTimeSource()
	}
	return energy.NewEngine(src, energy.WithCapacity(cfg.BatteryCapacity))
}

// Pipeline is a wired Dispatcher plus the resources it holds open.
type Pipeline struct {
	Dispatcher *scheduler.Dispatcher
	Ticks      *db.TickRepository
	Settings   *db.SettingsRepository
	Alerts     *db.AlertRepository
	Fanout     *publish.Fanout
	Metrics    telemetry.Recorder
}

// NewPipeline wires the repositories on store and the dispatcher that
// publishes through sinks. lock serializes ticks with other processes
// sharing the database; nil limits that to this process.
func NewPipeline(cfg *config.Config, store db.Store, lock scheduler.TickLocker, metrics telemetry.Recorder, logger *slog.Logger, sinks ...publish.Sink) *Pipeline {
	ticks := db.NewTickRepository(store)
	settings := db.NewSettingsRepository(store)
	fanout := publish.NewFanout(metrics, logger, sinks...)

	d := scheduler.NewDispatcher(scheduler.DispatcherDeps{
		Engine:    NewEngine(cfg.Dispatch),
		SoC:       ticks,
		Target:    settings,
		Store:     ticks,
		Publisher: fanout,
		Lock:      lock,
		Guard:     scheduler.NewGuard("store", cfg.Dispatch.StoreAttempts, cfg.Dispatch.StoreRetryWait),
		Metrics:   metrics,
		Clock:     types.RealClock{},
		Logger:    logger,
		Fallback:  cfg.Dispatch.Fallback(),
		Timeout:   cfg.Dispatch.TickTimeout,
	})

	return &Pipeline{
		Dispatcher: d,
		Ticks:      ticks,
		Settings:   settings,
		Alerts:     db.NewAlertRepository(store),
		Fanout:     fanout,
		Metrics:    metrics,
	}
}

// Close releases every sink connection.
func (p *Pipeline) Close() error {
	return p.Fanout.Close()
}

// NewLogger creates a JSON slog.Logger for the given level name.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// IsLambda reports whether the process is running inside AWS Lambda.
func IsLambda() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

func siteName(cfg *config.Config) string {
	if cfg.Environment == "" {
		return cfg.Service
	}
	return cfg.Service + "-" + cfg.Environment
}
