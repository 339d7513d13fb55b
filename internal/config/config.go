package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPPort    int    `json:"http_port" validate:"gte=0"`
	MetricsPort int    `json:"metrics_port" validate:"gte=0"`
	LogLevel    string `json:"log_level" validate:"oneof=debug info warn error"`
	NumWorkers  int    `json:"num_workers" validate:"min=1"`
	DBPath      string `json:"db_path" validate:"required"`

	Webhook struct {
		Timeout     Duration `json:"timeout" validate:"min=1s"`
		MaxAttempts int      `json:"max_attempts" validate:"min=1"`
		Backoff     Duration `json:"backoff" validate:"min=100ms"`
		QueueSize   int      `json:"queue_size" validate:"min=1"`
	} `json:"webhook"`

	Scheduler struct {
		RunRetention  Duration `json:"run_retention" validate:"min=1h"`
		PruneInterval Duration `json:"prune_interval" validate:"min=1m"`
	} `json:"scheduler"`
}

// Duration is a wrapper around time.Duration that implements JSON marshaling/unmarshaling
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	cfg := &Config{
		HTTPPort:    8080,
		MetricsPort: 9090,
		LogLevel:    "info",
		NumWorkers:  4,
		DBPath:      "calsched.db",
	}
	cfg.Webhook.Timeout = Duration{30 * time.Second}
	cfg.Webhook.MaxAttempts = 5
	cfg.Webhook.Backoff = Duration{time.Second}
	cfg.Webhook.QueueSize = 64
	cfg.Scheduler.RunRetention = Duration{30 * 24 * time.Hour}
	cfg.Scheduler.PruneInterval = Duration{time.Hour}
	return cfg
}

// Load reads configuration from a file and overrides with environment
// variables. A missing file falls back to defaults so the server can
// run from environment alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		var err error
		c.HTTPPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing HTTP_PORT: %w", err)
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var err error
		c.MetricsPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing METRICS_PORT: %w", err)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("NUM_WORKERS"); v != "" {
		var err error
		c.NumWorkers, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing NUM_WORKERS: %w", err)
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("WEBHOOK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing WEBHOOK_TIMEOUT: %w", err)
		}
		c.Webhook.Timeout = Duration{d}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		var err error
		c.Webhook.MaxAttempts, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing WEBHOOK_MAX_ATTEMPTS: %w", err)
		}
	}
	if v := os.Getenv("SCHEDULER_RUN_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing SCHEDULER_RUN_RETENTION: %w", err)
		}
		c.Scheduler.RunRetention = Duration{d}
	}
	if v := os.Getenv("SCHEDULER_PRUNE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing SCHEDULER_PRUNE_INTERVAL: %w", err)
		}
		c.Scheduler.PruneInterval = Duration{d}
	}
	return nil
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	// Register custom validation for Duration
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
