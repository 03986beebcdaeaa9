package redisstore

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

// Blocklist keeps the excluded ids in a single set per prefix.
type Blocklist struct {
	client *redis.Client
	key    string
	log    *slog.Logger
}

var _ storage.Blocklist = (*Blocklist)(nil)

// NewBlocklist creates a Redis-backed blocklist namespaced under prefix.
func NewBlocklist(client *redis.Client, prefix string, log *slog.Logger) *Blocklist {
	if log == nil {
		log = slog.Default()
	}

	return &Blocklist{
		client: client,
		key:    prefix + "blocklist",
		log:    log,
	}
}

// IsBlocked reports set membership for the user id.
func (b *Blocklist) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	blocked, err := b.client.SIsMember(ctx, b.key, strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		b.log.Error("blocklist membership check failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return false, &storage.BackendError{Op: "blocklist ismember", Err: err}
	}

	return blocked, nil
}

// Block adds the user id to the set. Idempotent.
func (b *Blocklist) Block(ctx context.Context, userID int64) error {
	if err := b.client.SAdd(ctx, b.key, strconv.FormatInt(userID, 10)).Err(); err != nil {
		return &storage.BackendError{Op: "blocklist add", Err: err}
	}

	return nil
}

// Unblock removes the user id from the set. Idempotent.
func (b *Blocklist) Unblock(ctx context.Context, userID int64) error {
	if err := b.client.SRem(ctx, b.key, strconv.FormatInt(userID, 10)).Err(); err != nil {
		return &storage.BackendError{Op: "blocklist remove", Err: err}
	}

	return nil
}

// Blocked fetches a snapshot of the whole set.
func (b *Blocklist) Blocked(ctx context.Context) (map[int64]struct{}, error) {
	members, err := b.client.SMembers(ctx, b.key).Result()
	if err != nil {
		return nil, &storage.BackendError{Op: "blocklist members", Err: err}
	}

	snapshot := make(map[int64]struct{}, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			b.log.Warn("skipping malformed blocklist member", slog.String("member", member))
			continue
		}
		snapshot[id] = struct{}{}
	}

	return snapshot, nil
}
