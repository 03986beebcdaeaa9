// Package usercache layers a Redis read-through cache over a slower user
// repository, typically the Postgres one. Cache failures degrade to the
// delegate instead of failing the request.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

// DefaultTTL bounds staleness of cached records.
const DefaultTTL = 5 * time.Minute

// CachedUserRepo decorates a storage.UserRepo with a Redis cache.
type CachedUserRepo struct {
	client   *redis.Client
	delegate storage.UserRepo
	prefix   string
	ttl      time.Duration
	log      *slog.Logger
}

var _ storage.UserRepo = (*CachedUserRepo)(nil)

// New wraps delegate with a cache namespaced under prefix. A non-positive
// ttl falls back to DefaultTTL.
func New(client *redis.Client, delegate storage.UserRepo, prefix string, ttl time.Duration, log *slog.Logger) *CachedUserRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &CachedUserRepo{
		client:   client,
		delegate: delegate,
		prefix:   prefix,
		ttl:      ttl,
		log:      log,
	}
}

// IsRegistered answers from cache when possible; a miss consults the
// delegate.
func (c *CachedUserRepo) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	if rec := c.cached(ctx, userID); rec != nil {
		return true, nil
	}

	return c.delegate.IsRegistered(ctx, userID)
}

// Register delegates and drops any stale cache entry.
func (c *CachedUserRepo) Register(ctx context.Context, userID int64, attrs map[string]string) error {
	if err := c.delegate.Register(ctx, userID, attrs); err != nil {
		return err
	}

	c.invalidate(ctx, userID)

	return nil
}

// Get serves from cache, falling back to the delegate and populating the
// cache on a hit.
func (c *CachedUserRepo) Get(ctx context.Context, userID int64) (*storage.UserRecord, error) {
	if rec := c.cached(ctx, userID); rec != nil {
		return rec, nil
	}

	rec, err := c.delegate.Get(ctx, userID)
	if err != nil || rec == nil {
		return rec, err
	}

	c.store(ctx, userID, rec)

	return rec, nil
}

// Update delegates and drops any stale cache entry.
func (c *CachedUserRepo) Update(ctx context.Context, userID int64, attrs map[string]string) error {
	if err := c.delegate.Update(ctx, userID, attrs); err != nil {
		return err
	}

	c.invalidate(ctx, userID)

	return nil
}

func (c *CachedUserRepo) cached(ctx context.Context, userID int64) *storage.UserRecord {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("user cache read failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return nil
	}

	var rec storage.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.log.Warn("user cache entry corrupt, dropping", slog.Int64("user_id", userID), slog.Any("error", err))
		c.invalidate(ctx, userID)

		return nil
	}

	return &rec
}

func (c *CachedUserRepo) store(ctx context.Context, userID int64, rec *storage.UserRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		c.log.Warn("user cache encode failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}

	if err := c.client.Set(ctx, c.key(userID), payload, c.ttl).Err(); err != nil {
		c.log.Warn("user cache write failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (c *CachedUserRepo) invalidate(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		c.log.Warn("user cache invalidation failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (c *CachedUserRepo) key(userID int64) string {
	return fmt.Sprintf("%susercache:%d", c.prefix, userID)
}
