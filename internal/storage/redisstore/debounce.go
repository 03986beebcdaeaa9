package redisstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

var errUnexpectedReply = errors.New("unexpected redis reply")

// Debouncer marks key+fingerprint sightings with SET NX EX records.
type Debouncer struct {
	client *redis.Client
	log    *slog.Logger
}

var _ storage.Debouncer = (*Debouncer)(nil)

// NewDebouncer creates a Redis-backed debounce backend.
func NewDebouncer(client *redis.Client, log *slog.Logger) *Debouncer {
	if log == nil {
		log = slog.Default()
	}

	return &Debouncer{client: client, log: log}
}

// Seen records the fingerprint when unseen and reports whether it was a
// duplicate. SET NX leaves an existing record untouched, so duplicates do
// not refresh the window.
//
// Redis expires the record at exactly age == window, so a sighting at that
// precise instant reads "new" where the in-memory backend still reports a
// duplicate. The divergence is bounded by the store's expiry resolution.
func (d *Debouncer) Seen(ctx context.Context, key string, window time.Duration, fingerprint string) (bool, error) {
	recordKey := key + ":" + fingerprint

	created, err := d.client.SetNX(ctx, recordKey, time.Now().Unix(), window).Result()
	if err != nil {
		d.log.Error("debounce setnx failed", slog.String("key", key), slog.Any("error", err))
		return false, &storage.BackendError{Op: "debounce seen", Err: err}
	}

	return !created, nil
}

// Clear removes every recorded fingerprint under the key.
func (d *Debouncer) Clear(ctx context.Context, key string) error {
	var cursor uint64

	for {
		batch, next, err := d.client.Scan(ctx, cursor, key+":*", 100).Result()
		if err != nil {
			return &storage.BackendError{Op: "debounce clear", Err: err}
		}

		if len(batch) > 0 {
			if err := d.client.Del(ctx, batch...).Err(); err != nil {
				return &storage.BackendError{Op: "debounce clear", Err: err}
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}
