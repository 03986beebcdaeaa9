// Package factory assembles a concrete backend set from configuration.
package factory

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/internal/storage/memory"
	"github.com/m-orlov/tgsentinel/internal/storage/postgres"
	"github.com/m-orlov/tgsentinel/internal/storage/redisstore"
	"github.com/m-orlov/tgsentinel/internal/storage/usercache"
	"github.com/m-orlov/tgsentinel/pkg/config"
)

// Options carries the external resources a backend set may need.
type Options struct {
	Redis *redis.Client
	// DB routes user records to Postgres regardless of the selected
	// backend when set.
	DB  *sql.DB
	Log *slog.Logger
}

// Build constructs the backend set selected by cfg. Backends are built once
// at startup and shared by reference across all requests.
func Build(cfg config.SentinelConfig, opts Options) (*storage.Backends, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	// Callers that skip config.Load still get a separator-terminated
	// prefix, keeping the blocklist and user keys aligned with the
	// builder-generated rate and debounce keys.
	cfg.Normalize()

	var backends *storage.Backends

	switch cfg.Backend {
	case "memory":
		backends = &storage.Backends{
			Rate:      memory.NewRateLimiter(),
			Debounce:  memory.NewDebouncer(),
			Blocklist: memory.NewBlocklist(),
			Users:     memory.NewUserRepo(),
		}
	case "redis":
		if opts.Redis == nil {
			return nil, errors.New("redis backend selected but no redis client provided")
		}

		// A local fallback limiter keeps admission decisions available,
		// at half quota, while Redis is down.
		rate := storage.NewFallbackRateLimiter(
			redisstore.NewRateLimiter(opts.Redis, log),
			memory.NewRateLimiter(),
			log,
		)

		backends = &storage.Backends{
			Rate:      rate,
			Debounce:  redisstore.NewDebouncer(opts.Redis, log),
			Blocklist: redisstore.NewBlocklist(opts.Redis, cfg.Prefix, log),
			Users:     redisstore.NewUserRepo(opts.Redis, cfg.Prefix, log),
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if opts.DB != nil {
		users := storage.UserRepo(postgres.NewUserRepo(opts.DB, log))
		if opts.Redis != nil {
			users = usercache.New(opts.Redis, users, cfg.Prefix, usercache.DefaultTTL, log)
		}
		backends.Users = users
	}

	return backends, nil
}
