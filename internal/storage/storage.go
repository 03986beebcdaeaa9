// Package storage defines the backend contracts behind the sentinel chain:
// rate limiting, duplicate suppression, blocklist membership and the user
// repository. Every backend owns its state exclusively; the chain only ever
// talks to these interfaces.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBackendUnavailable marks backend I/O failures. The chain never treats
// such a failure as "allowed", "not blocked" or "not duplicate".
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// BackendError wraps a backend I/O failure with the operation that caused it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports ErrBackendUnavailable so callers can classify with errors.Is.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// Decision captures the outcome of a rate-limit evaluation.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts admissions per key over a sliding window.
//
// Allow admits the event when fewer than limit admissions remain within the
// trailing window, recording the admission; a denied call records nothing.
// RetryAfter on a denial reports when the oldest retained admission expires,
// or the full window when the backend cannot tell.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Decision, error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

// Debouncer tracks content fingerprints per key.
//
// Seen reports whether the key+fingerprint pair was already recorded within
// the window (true = duplicate) and records it at now when it was not.
// A record at age exactly window is still a duplicate; duplicates do not
// refresh the window.
type Debouncer interface {
	Seen(ctx context.Context, key string, window time.Duration, fingerprint string) (bool, error)
	Clear(ctx context.Context, key string) error
}

// Blocklist is an idempotent set of excluded user ids.
type Blocklist interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	Block(ctx context.Context, userID int64) error
	Unblock(ctx context.Context, userID int64) error
	// Blocked returns a snapshot copy, never a live view.
	Blocked(ctx context.Context) (map[int64]struct{}, error)
}

// UserRecord is the minimal identity record kept per user.
type UserRecord struct {
	UserID     int64
	Attributes map[string]string
	CreatedAt  time.Time
}

// UserRepo stores minimal identity records.
//
// Register is create-only and a no-op for an already registered id.
// Update on a non-existent id is a documented no-op, keeping the hot auth
// path branch-free. Get returns nil without error when the id is absent.
type UserRepo interface {
	IsRegistered(ctx context.Context, userID int64) (bool, error)
	Register(ctx context.Context, userID int64, attrs map[string]string) error
	Get(ctx context.Context, userID int64) (*UserRecord, error)
	Update(ctx context.Context, userID int64, attrs map[string]string) error
}

// Backends bundles one concrete backend set sharing a key namespace.
type Backends struct {
	Rate      RateLimiter
	Debounce  Debouncer
	Blocklist Blocklist
	Users     UserRepo
}
