// Package config provides configuration loading and validation for the
// sentinel bot. Invalid static settings are fatal at load time; the only
// silent adjustment is harmless normalization such as appending the key
// prefix separator.
package config

import (
	"strings"
	"time"
)

// Config holds the full runtime configuration.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Log      LogConfig      `mapstructure:"log"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Sentinel SentinelConfig `mapstructure:"sentinel" validate:"required"`
}

// LogConfig controls the slog setup.
type LogConfig struct {
	Level     string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format    string `mapstructure:"format" validate:"oneof=text json"`
	File      string `mapstructure:"file"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// TelegramConfig carries bot transport settings.
type TelegramConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	AdminIDs    []int64       `mapstructure:"admin_ids"`
}

// MetricsConfig configures the observability HTTP server.
type MetricsConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig defines connection parameters for the shared backend store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// DatabaseConfig is optional; when DSN is set, user records go to Postgres.
type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// SentinelConfig holds the edge-hygiene defaults applied when a handler has
// no policy of its own.
type SentinelConfig struct {
	Backend             string        `mapstructure:"backend" validate:"oneof=memory redis"`
	Prefix              string        `mapstructure:"prefix"`
	RateLimit           int           `mapstructure:"rate_limit" validate:"gt=0"`
	RateWindow          time.Duration `mapstructure:"rate_window" validate:"gt=0"`
	DebounceWindow      time.Duration `mapstructure:"debounce_window" validate:"gte=0"`
	RequireRegistration bool          `mapstructure:"require_registration"`
	AutoBlockOnLimit    bool          `mapstructure:"auto_block_on_limit"`
	CleanerInterval     time.Duration `mapstructure:"cleaner_interval"`
}

// Normalize applies the harmless adjustments the validator does not cover.
func (c *SentinelConfig) Normalize() {
	if c.Prefix != "" && !strings.HasSuffix(c.Prefix, ":") {
		c.Prefix += ":"
	}
}

// IsRedisBackend reports whether the shared backend set is selected.
func (c *SentinelConfig) IsRedisBackend() bool {
	return c.Backend == "redis"
}
