package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-orlov/tgsentinel/internal/bot"
	"github.com/m-orlov/tgsentinel/internal/database"
	"github.com/m-orlov/tgsentinel/internal/health"
	"github.com/m-orlov/tgsentinel/internal/lifecycle"
	"github.com/m-orlov/tgsentinel/internal/sentinel"
	"github.com/m-orlov/tgsentinel/internal/storage/factory"
	"github.com/m-orlov/tgsentinel/internal/storage/redisstore"
	"github.com/m-orlov/tgsentinel/pkg/config"
	"github.com/m-orlov/tgsentinel/pkg/graceful"
	"github.com/m-orlov/tgsentinel/pkg/logger"
	redisclient "github.com/m-orlov/tgsentinel/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log, cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	config.Watch(v, log)

	log.Info("starting sentinel bot",
		slog.String("env", cfg.AppEnv),
		slog.String("backend", cfg.Sentinel.Backend))

	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log)

	opts := factory.Options{Log: log}

	if cfg.Sentinel.IsRedisBackend() {
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		opts.Redis = client

		checker.Add("redis", health.NewRedisChecker(client))
		shutdown.Register("redis", func(context.Context) error {
			return client.Close()
		})
	}

	if cfg.Database.DSN != "" {
		db, err := database.Connect(ctx, cfg.Database.DSN, log)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		opts.DB = db

		if err := database.NewMigrator(db, log).ApplyDir(ctx, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		checker.Add("postgres", health.NewDBChecker(db))
		shutdown.Register("postgres", func(context.Context) error {
			return db.Close()
		})
	}

	backends, err := factory.Build(cfg.Sentinel, opts)
	if err != nil {
		return fmt.Errorf("build backends: %w", err)
	}

	s := sentinel.New(cfg.Sentinel, backends, sentinel.Hooks{}, log)

	b, err := bot.New(cfg, s, backends, log)
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}
	checker.Add("telegram", health.NewTelegramChecker(b.Telebot()))

	if opts.Redis != nil && cfg.Sentinel.CleanerInterval > 0 {
		cleaner := redisstore.NewCleaner(
			opts.Redis,
			cfg.Sentinel.Prefix,
			cfg.Sentinel.RateWindow,
			cfg.Sentinel.CleanerInterval,
			log,
		)
		go cleaner.Run(ctx)
	}

	obs := graceful.NewObservability(cfg.Metrics, checker, log)
	obsErr := make(chan error, 1)
	go func() {
		obsErr <- obs.ListenAndServe(ctx)
	}()

	shutdown.Register("bot", func(context.Context) error {
		b.Stop()
		return nil
	})

	go b.Start()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
		serveErr = <-obsErr
	case serveErr = <-obsErr:
		if serveErr != nil {
			log.Error("observability server failed", slog.Any("error", serveErr))
		}
		stop()
	}

	if err := shutdown.Execute(context.Background()); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	return serveErr
}
