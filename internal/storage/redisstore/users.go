package redisstore

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

const createdAtField = "created_at"

// UserRepo stores one aggregate hash per identity.
type UserRepo struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

var _ storage.UserRepo = (*UserRepo)(nil)

// NewUserRepo creates a Redis-backed user repository namespaced under prefix.
func NewUserRepo(client *redis.Client, prefix string, log *slog.Logger) *UserRepo {
	if log == nil {
		log = slog.Default()
	}

	return &UserRepo{client: client, prefix: prefix, log: log}
}

// IsRegistered reports whether a record exists for the user id.
func (r *UserRepo) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	exists, err := r.client.HExists(ctx, r.userKey(userID), createdAtField).Result()
	if err != nil {
		return false, &storage.BackendError{Op: "users registered", Err: err}
	}

	return exists, nil
}

// Register creates the record unless one already exists. HSETNX on the
// creation timestamp decides atomically which caller creates.
func (r *UserRepo) Register(ctx context.Context, userID int64, attrs map[string]string) error {
	key := r.userKey(userID)

	created, err := r.client.HSetNX(ctx, key, createdAtField, time.Now().UTC().Unix()).Result()
	if err != nil {
		return &storage.BackendError{Op: "users register", Err: err}
	}

	if !created || len(attrs) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		fields[k] = v
	}

	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return &storage.BackendError{Op: "users register", Err: err}
	}

	return nil
}

// Get fetches the record, or nil when the id is unknown.
func (r *UserRepo) Get(ctx context.Context, userID int64) (*storage.UserRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, &storage.BackendError{Op: "users get", Err: err}
	}

	if len(fields) == 0 {
		return nil, nil
	}

	rec := &storage.UserRecord{
		UserID:     userID,
		Attributes: make(map[string]string, len(fields)),
	}

	for k, v := range fields {
		if k == createdAtField {
			if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
				rec.CreatedAt = time.Unix(unix, 0).UTC()
			}
			continue
		}
		rec.Attributes[k] = v
	}

	return rec, nil
}

// Update merges attributes into an existing record; unknown ids are a no-op.
func (r *UserRepo) Update(ctx context.Context, userID int64, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}

	key := r.userKey(userID)

	exists, err := r.client.HExists(ctx, key, createdAtField).Result()
	if err != nil {
		return &storage.BackendError{Op: "users update", Err: err}
	}
	if !exists {
		return nil
	}

	fields := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		fields[k] = v
	}

	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return &storage.BackendError{Op: "users update", Err: err}
	}

	return nil
}

func (r *UserRepo) userKey(userID int64) string {
	return r.prefix + "user:" + strconv.FormatInt(userID, 10)
}
