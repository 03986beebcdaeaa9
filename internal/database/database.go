// Package database manages the optional Postgres connection and its
// migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

const (
	connectAttempts   = 5
	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 5 * time.Second
	backoffMultiplier = 2
)

// Connect opens a Postgres pool and verifies it with a bounded exponential
// backoff, so a briefly restarting database does not fail startup.
func Connect(ctx context.Context, dsn string, log *slog.Logger) (*sql.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}

		if attempt == connectAttempts {
			break
		}

		log.Warn("postgres not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= backoffMultiplier
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	_ = db.Close()

	return nil, fmt.Errorf("ping postgres after %d attempts: %w", connectAttempts, err)
}
