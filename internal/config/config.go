// Package config defines the configuration structure for the microgrid
// dispatch service. Configuration is loaded once at process start and is
// immutable thereafter.
//
// Values are resolved from the OS environment, falling back to a .env file in
// the working directory. Any missing required value or invalid format fails
// startup.
package config

import (
	"time"

	"microgrid/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for credentials.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"microgrid-dispatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Database DatabaseConfig
	Dispatch DispatchConfig
	AWS      AWSConfig
	Kafka    KafkaConfig
	NATS     NATSConfig
	Influx   InfluxConfig
	Redis    RedisConfig
	Advisor  AdvisorConfig
	Archive  ArchiveConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	// OperatorKeyHash is the bcrypt hash of the key that unlocks setpoint
	// changes and manual ticks. Empty disables operator endpoints.
	OperatorKeyHash SecretString `envconfig:"OPERATOR_KEY_HASH"`
	RateLimitPerMin int          `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120" validate:"min=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// DispatchConfig controls the tick loop.
type DispatchConfig struct {
	TickInterval time.Duration `envconfig:"DISPATCH_TICK_INTERVAL" default:"3s" validate:"gt=0"`
	TickTimeout  time.Duration `envconfig:"DISPATCH_TICK_TIMEOUT" default:"2s" validate:"gt=0"`
	// StoreAttempts bounds retries of each store read and write.
	StoreAttempts   int           `envconfig:"DISPATCH_STORE_ATTEMPTS" default:"3" validate:"min=1,max=5"`
	StoreRetryWait  time.Duration `envconfig:"DISPATCH_STORE_RETRY_WAIT" default:"100ms"`
	BatteryCapacity float64       `envconfig:"BATTERY_CAPACITY_KWH" default:"1000" validate:"gt=0"`
	DefaultSoC      float64       `envconfig:"DEFAULT_SOC_PERCENT" default:"50" validate:"gte=20,lte=95"`
	DefaultTarget   float64       `envconfig:"DEFAULT_TARGET_LOAD_KW" default:"300" validate:"gt=0,lte=2000"`
	// RandomSeed makes ticks reproducible when non-zero.
	RandomSeed uint64 `envconfig:"DISPATCH_RANDOM_SEED" default:"0"`
	// LoopEnabled runs the tick loop inside the API process. Turn it off
	// when cmd/dispatcher or a scheduled Lambda drives the ticks.
	LoopEnabled bool `envconfig:"DISPATCH_LOOP_ENABLED" default:"true"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	AlertQueueURL   string `envconfig:"SQS_ALERT_QUEUE" validate:"omitempty,url"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Microgrid"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// KafkaConfig enables the tick event stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"microgrid.ticks"`
}

// NATSConfig enables NATS publication when URL is set.
type NATSConfig struct {
	URL           string        `envconfig:"NATS_URL"`
	Subject       string        `envconfig:"NATS_SUBJECT" default:"microgrid.ticks"`
	ReconnectWait time.Duration `envconfig:"NATS_RECONNECT_WAIT" default:"2s"`
	MaxReconnects int           `envconfig:"NATS_MAX_RECONNECTS" default:"60"`
}

// InfluxConfig enables time-series export when URL is set.
type InfluxConfig struct {
	URL    string       `envconfig:"INFLUX_URL" validate:"omitempty,url"`
	Token  SecretString `envconfig:"INFLUX_TOKEN"`
	Org    string       `envconfig:"INFLUX_ORG" default:"campus"`
	Bucket string       `envconfig:"INFLUX_BUCKET" default:"microgrid"`
}

// RedisConfig enables distributed rate limiting when Addr is set.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
}

// AdvisorConfig points at an OpenAI-compatible chat completions endpoint for
// advisory narrative. Empty URL disables narrative.
type AdvisorConfig struct {
	URL       string        `envconfig:"ADVISOR_URL" validate:"omitempty,url"`
	APIKey    SecretString  `envconfig:"ADVISOR_API_KEY"`
	Model     string        `envconfig:"ADVISOR_MODEL" default:"google/gemini-2.5-flash"`
	MaxTokens int           `envconfig:"ADVISOR_MAX_TOKENS" default:"800"`
	Timeout   time.Duration `envconfig:"ADVISOR_TIMEOUT" default:"20s"`
}

// ArchiveConfig controls the retention job.
type ArchiveConfig struct {
	Endpoint  string        `envconfig:"ARCHIVE_ENDPOINT"`
	AccessKey SecretString  `envconfig:"ARCHIVE_ACCESS_KEY"`
	SecretKey SecretString  `envconfig:"ARCHIVE_SECRET_KEY"`
	Bucket    string        `envconfig:"ARCHIVE_BUCKET" default:"microgrid-archive"`
	UseSSL    bool          `envconfig:"ARCHIVE_USE_SSL" default:"true"`
	Retention time.Duration `envconfig:"ARCHIVE_RETENTION" default:"168h" validate:"gt=0"`
	BatchSize int           `envconfig:"ARCHIVE_BATCH_SIZE" default:"5000" validate:"gt=0"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
