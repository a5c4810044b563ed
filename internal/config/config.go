package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/nfrund/eventsys/internal/tracing"
)

// Config holds all configuration for the eventsys CLI.
type Config struct {
	StressWorkers  int           `validate:"gte=1,lte=1024"`
	StressDuration time.Duration `validate:"gt=0"`
	ReportDir      string        `validate:"required"`
	LogFormat      string        `validate:"omitempty,oneof=text json"`
	LogLevel       string        `validate:"omitempty,oneof=debug info warn warning error"`
	Tracing        tracing.TracingConfig
}

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	return &Config{
		StressWorkers:  8,
		StressDuration: 2 * time.Second,
		ReportDir:      "reports",
		LogFormat:      "text",
		LogLevel:       "info",
		Tracing:        tracing.DefaultTracingConfig(),
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a validated configuration from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := getenv("EVENTSYS_STRESS_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EVENTSYS_STRESS_WORKERS %q: %w", v, err)
		}
		cfg.StressWorkers = workers
	}

	if v := getenv("EVENTSYS_STRESS_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EVENTSYS_STRESS_DURATION %q: %w", v, err)
		}
		cfg.StressDuration = d
	}

	if v := getenv("EVENTSYS_REPORT_DIR"); v != "" {
		cfg.ReportDir = v
	}

	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.Tracing = tracing.ConfigFromEnv(getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

var validate = validator.New()
