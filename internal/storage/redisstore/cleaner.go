package redisstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/internal/keys"
)

// Cleaner periodically sweeps rate-limit sorted sets whose members have all
// expired. Keys carry their own TTL; the sweep just reclaims empty sets
// earlier than Redis would.
type Cleaner struct {
	client   *redis.Client
	prefix   string
	maxAge   time.Duration
	interval time.Duration
	log      *slog.Logger
}

// NewCleaner constructs a Cleaner for rate keys under the given prefix.
func NewCleaner(client *redis.Client, prefix string, maxAge, interval time.Duration, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		prefix:   prefix,
		maxAge:   maxAge,
		interval: interval,
		log:      log,
	}
}

// Run starts the sweep loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate key cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	pattern := c.prefix + keys.FeatureRate + ":*"
	cutoff := time.Now().Add(-c.maxAge).UnixMilli()

	var cursor uint64
	removed := 0

	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.log.Error("rate key scan failed", slog.Any("error", err))
			return
		}

		for _, key := range batch {
			pipe := c.client.TxPipeline()
			pipe.ZRemRangeByScore(ctx, key, "-inf", "("+formatScore(cutoff))
			cardCmd := pipe.ZCard(ctx, key)

			if _, err := pipe.Exec(ctx); err != nil {
				c.log.Warn("rate key sweep failed", slog.String("key", key), slog.Any("error", err))
				continue
			}

			if cardCmd.Val() == 0 {
				if err := c.client.Del(ctx, key).Err(); err != nil {
					c.log.Warn("failed to delete empty rate key", slog.String("key", key), slog.Any("error", err))
					continue
				}
				removed++
			}
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	if removed > 0 {
		c.log.Info("rate keys swept", slog.Int("keys_removed", removed))
	}
}
