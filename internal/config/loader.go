// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so tick timestamps and solar hours agree.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"microgrid/internal/types"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the service configuration. dotenvFiles are
// passed to godotenv; with none given it reads ./.env if present.
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	time.Local = time.UTC

	// godotenv does not override variables already present in the
	// environment, and a missing file is not an error here.
	_ = godotenv.Load(dotenvFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct validation plus the cross-field rules the tags cannot
// express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if cfg.Dispatch.TickTimeout > cfg.Dispatch.TickInterval {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("DISPATCH_TICK_TIMEOUT (%s) must not exceed DISPATCH_TICK_INTERVAL (%s)", cfg.Dispatch.TickTimeout, cfg.Dispatch.TickInterval),
		}
	}
	if cfg.Influx.URL != "" && !cfg.Influx.Token.IsSet() {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "INFLUX_TOKEN is required when INFLUX_URL is set",
		}
	}
	if cfg.Archive.Endpoint != "" && (!cfg.Archive.AccessKey.IsSet() || !cfg.Archive.SecretKey.IsSet()) {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY are required when ARCHIVE_ENDPOINT is set",
		}
	}
	return nil
}

// Fallback returns the state used when the store is unreachable.
func (d DispatchConfig) Fallback() types.SystemState {
	return types.SystemState{SoCPercent: d.DefaultSoC, TargetLoadKw: d.DefaultTarget}
}
