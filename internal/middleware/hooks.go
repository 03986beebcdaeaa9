package middleware

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v3"
)

// UserContext is what the resolver hands back for a sender. It is stored
// under UserContextKey for downstream handlers.
type UserContext struct {
	UserID     int64
	Registered bool
	Attributes map[string]string
}

// ResolveUserFunc maps a raw Telegram sender to application user context.
// Returning nil without an error vetoes the request.
type ResolveUserFunc func(ctx context.Context, sender *tele.User) (*UserContext, error)

// RateLimitedHook is notified when a request is denied by the rate limiter.
// It runs best-effort: panics and errors are logged and counted, never
// propagated, and the denial stands regardless.
type RateLimitedHook func(ctx context.Context, c tele.Context, retryAfter time.Duration) error

// Blocker is the slice of the block service the throttle stage needs for
// auto-blocking repeat offenders.
type Blocker interface {
	Block(ctx context.Context, userID int64, username string) error
}

// Hooks bundles the optional extension points of the chain. Zero value
// disables all of them.
type Hooks struct {
	ResolveUser   ResolveUserFunc
	OnRateLimited RateLimitedHook
}
