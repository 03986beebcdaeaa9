// Package postgres provides a SQL-backed user repository for deployments
// that keep identity records in the main database instead of Redis.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

// UserRepo persists identity records in a sentinel_users table:
// (user_id BIGINT PRIMARY KEY, attributes JSONB, created_at TIMESTAMPTZ).
type UserRepo struct {
	db  *sql.DB
	log *slog.Logger
}

var _ storage.UserRepo = (*UserRepo)(nil)

// NewUserRepo creates a SQL-backed user repository.
func NewUserRepo(db *sql.DB, log *slog.Logger) *UserRepo {
	if log == nil {
		log = slog.Default()
	}

	return &UserRepo{db: db, log: log}
}

// IsRegistered reports whether a row exists for the user id.
func (r *UserRepo) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sentinel_users WHERE user_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		r.log.Error("failed to check registration", slog.Int64("user_id", userID), slog.Any("error", err))
		return false, &storage.BackendError{Op: "users registered", Err: err}
	}

	return exists, nil
}

// Register inserts a row for the user id; an existing row is left untouched.
func (r *UserRepo) Register(ctx context.Context, userID int64, attrs map[string]string) error {
	const query = `
		INSERT INTO sentinel_users (user_id, attributes, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`

	payload, err := encodeAttrs(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, userID, payload, time.Now().UTC()); err != nil {
		r.log.Error("failed to register user", slog.Int64("user_id", userID), slog.Any("error", err))
		return &storage.BackendError{Op: "users register", Err: err}
	}

	return nil
}

// Get fetches the record, or nil when the id is unknown.
func (r *UserRepo) Get(ctx context.Context, userID int64) (*storage.UserRecord, error) {
	const query = `SELECT attributes, created_at FROM sentinel_users WHERE user_id = $1`

	var (
		payload   []byte
		createdAt time.Time
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("failed to fetch user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, &storage.BackendError{Op: "users get", Err: err}
	}

	attrs := make(map[string]string)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &attrs); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}

	return &storage.UserRecord{
		UserID:     userID,
		Attributes: attrs,
		CreatedAt:  createdAt,
	}, nil
}

// Update merges attributes into the stored JSONB document. A missing row
// matches zero rows and the statement is a no-op.
func (r *UserRepo) Update(ctx context.Context, userID int64, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}

	const query = `UPDATE sentinel_users SET attributes = attributes || $2 WHERE user_id = $1`

	payload, err := encodeAttrs(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, userID, payload); err != nil {
		r.log.Error("failed to update user", slog.Int64("user_id", userID), slog.Any("error", err))
		return &storage.BackendError{Op: "users update", Err: err}
	}

	return nil
}

func encodeAttrs(attrs map[string]string) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}

	return json.Marshal(attrs)
}
