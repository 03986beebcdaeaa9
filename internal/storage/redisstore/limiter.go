// Package redisstore provides the shared backend set on top of Redis. All
// keys live under the prefix carried by the key builder, so several tenants
// can share one store.
package redisstore

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

// allowScript removes expired admissions, then admits atomically only when
// the retained count is under the limit. A denied call adds nothing.
// Returns {allowed, remaining, retry_after_ms}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)

if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window * 2)
	return {1, limit - count - 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	retry = tonumber(oldest[2]) + window - now
	if retry < 0 then
		retry = 0
	end
end

return {0, 0, retry}
`)

// RateLimiter is a Redis-backed sliding-window limiter over sorted sets.
type RateLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

var _ storage.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a Redis-backed sliding-window limiter.
func NewRateLimiter(client *redis.Client, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimiter{client: client, log: log}
}

// Allow evaluates the key against the sliding window inside a single Lua
// call, so concurrent callers cannot over-admit.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*storage.Decision, error) {
	now := time.Now().UnixMilli()

	res, err := allowScript.Run(ctx, l.client,
		[]string{key},
		now, window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		l.log.Error("rate limiter script failed", slog.String("key", key), slog.Any("error", err))
		return nil, &storage.BackendError{Op: "rate allow", Err: err}
	}

	if len(res) != 3 {
		return nil, &storage.BackendError{Op: "rate allow", Err: errUnexpectedReply}
	}

	return &storage.Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Remaining counts retained admissions without recording one.
func (l *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	now := time.Now().UnixMilli()
	windowStart := now - window.Milliseconds()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+formatScore(windowStart))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return 0, &storage.BackendError{Op: "rate remaining", Err: err}
	}

	remaining := limit - int(countCmd.Val())
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

func formatScore(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

// Reset drops the key's admission history.
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return &storage.BackendError{Op: "rate reset", Err: err}
	}

	return nil
}
