package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables,
// validates it, and returns the resulting Config together with the viper
// instance for hot-reload subscriptions.
func Load() (*Config, *viper.Viper, error) {
	// Missing env files are fine; environment variables still apply.
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env
	cfg.Sentinel.Normalize()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// Watch logs config file changes so operators can see a reload is needed.
// Backend instances are constructed once at startup and never swapped.
func Watch(v *viper.Viper, log *slog.Logger) {
	if v == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config file changed; restart to apply", slog.String("file", e.Name))
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telegram.poll_timeout", 10*time.Second)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.shutdown_timeout", 5*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("database.migrations_dir", "migrations")
	v.SetDefault("sentinel.backend", "memory")
	v.SetDefault("sentinel.prefix", "sentinel:")
	v.SetDefault("sentinel.rate_limit", 10)
	v.SetDefault("sentinel.rate_window", time.Minute)
	v.SetDefault("sentinel.debounce_window", time.Second)
	v.SetDefault("sentinel.cleaner_interval", 5*time.Minute)
}
