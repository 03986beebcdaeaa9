// Package health aggregates readiness checks for the bot's external
// dependencies and exposes them over HTTP.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v3"
)

const checkTimeout = 3 * time.Second

// Checkable reports the health of a single component.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs registered checks concurrently and renders the aggregate.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Checkable
	log    *slog.Logger
}

func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		checks: make(map[string]Checkable),
		log:    log,
	}
}

// Add registers a checkable component by name.
func (c *Checker) Add(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs all registered checks and returns per-component status plus an
// overall verdict.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	checks := make(map[string]Checkable, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(checks))
		healthy = true
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Checkable) {
			defer wg.Done()

			status := "ok"
			if err := check.HealthCheck(ctx); err != nil {
				status = err.Error()
				c.log.Warn("health check failed",
					slog.String("component", name),
					slog.Any("error", err))
			}

			mu.Lock()
			results[name] = status
			if status != "ok" {
				healthy = false
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return results, healthy
}

// Handler renders the aggregate as JSON: 200 when every component is
// healthy, 503 otherwise.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, healthy := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(results)
	}
}

// DBChecker verifies connectivity to Postgres.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c.db == nil {
		return sql.ErrConnDone
	}

	return c.db.PingContext(ctx)
}

// RedisChecker verifies connectivity to the shared backend store.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return redis.ErrClosed
	}

	return c.client.Ping(ctx).Err()
}

// TelegramChecker verifies the bot session was established.
type TelegramChecker struct {
	bot *tele.Bot
}

func NewTelegramChecker(bot *tele.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

func (c *TelegramChecker) HealthCheck(context.Context) error {
	if c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized")
	}

	return nil
}
