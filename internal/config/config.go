// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and POOL_ env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the number of batches waiting to be merged.
	QueueSize int `koanf:"queue_size"`

	// MaxBatchRows caps the rows accepted in one batch.
	MaxBatchRows int `koanf:"max_batch_rows"`

	// MaxBodyBytes caps the size of a POST /batches body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// MaxListLimit caps GET /applicants?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// StoreDriver selects where the pool is persisted: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the database file (sqlite) or connection string (postgres).
	StoreDSN string `koanf:"store_dsn"`

	// RedisAddr enables the cross-process writer lock when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// LockKey, LockTTLMS and LockWaitMS tune the writer lock.
	LockKey    string `koanf:"lock_key"`
	LockTTLMS  int    `koanf:"lock_ttl_ms"`
	LockWaitMS int    `koanf:"lock_wait_ms"`

	// DateDayFirst reads ambiguous dates such as 03/04/2024 as day/month.
	DateDayFirst bool `koanf:"date_day_first"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         64,
		MaxBatchRows:      50_000,
		MaxBodyBytes:      32 << 20,
		MaxListLimit:      1000,
		StoreDriver:       StoreSQLite,
		LockKey:           "applicantpool:ingest",
		LockTTLMS:         30_000,
		LockWaitMS:        10_000,
		ShutdownTimeoutMS: 10_000,
	}
}

// LockTTL returns the writer lock lease duration.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMS) * time.Millisecond
}

// LockWait returns how long a batch waits for the writer lock.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MaxBatchRows < 1:
		return fmt.Errorf("%w: max_batch_rows must be positive", ErrInvalidConfig)
	case c.MaxBodyBytes < 1:
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	case c.MaxListLimit < 1:
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	case c.LockTTLMS < 1:
		return fmt.Errorf("%w: lock_ttl_ms must be positive", ErrInvalidConfig)
	case c.LockWaitMS < 0:
		return fmt.Errorf("%w: lock_wait_ms must not be negative", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}
