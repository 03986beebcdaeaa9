// Package redis constructs the shared go-redis client used by the remote
// backend set.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/pkg/config"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_commands_total",
			Help: "Redis commands by name and status",
		},
		[]string{"command", "status"},
	)
	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Redis command latency distributions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// New creates a Redis client configured with cfg, instruments it with
// Prometheus metrics, and verifies the connection with Ping.
func New(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	client.AddHook(metricsHook{})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return client, nil
}

// metricsHook records per-command counters and latency.
type metricsHook struct{}

func (metricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (metricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(cmd.Name(), start, err)
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe("pipeline", start, err)
		return err
	}
}

func observe(command string, start time.Time, err error) {
	status := "ok"
	if err != nil && err != goredis.Nil {
		status = "error"
	}

	commandsTotal.WithLabelValues(command, status).Inc()
	commandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
