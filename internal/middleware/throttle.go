package middleware

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/keys"
	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/pkg/metrics"
)

// ThrottleMiddleware enforces the sliding-window rate limit. It runs last
// so blocked, vetoed and duplicate traffic never consumes quota.
type ThrottleMiddleware struct {
	limiter       storage.RateLimiter
	builder       *keys.Builder
	policies      *PolicyRegistry
	limit         int
	window        time.Duration
	onRateLimited RateLimitedHook
	blocker       Blocker
	log           *slog.Logger
}

// NewThrottleMiddleware constructs the rate-limit middleware with default
// limit and window. blocker is optional; when set, a denied sender is
// blocked on the spot.
func NewThrottleMiddleware(
	limiter storage.RateLimiter,
	builder *keys.Builder,
	policies *PolicyRegistry,
	limit int,
	window time.Duration,
	onRateLimited RateLimitedHook,
	blocker Blocker,
	log *slog.Logger,
) *ThrottleMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &ThrottleMiddleware{
		limiter:       limiter,
		builder:       builder,
		policies:      policies,
		limit:         limit,
		window:        window,
		onRateLimited: onRateLimited,
		blocker:       blocker,
		log:           log,
	}
}

// Handle returns a telebot middleware that checks and, on admission,
// consumes rate-limit quota for the current identity.
func (m *ThrottleMiddleware) Handle(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		limit, window := m.limit, m.window

		if m.policies != nil {
			if p, ok := m.policies.Get(stringFromContext(c, HandlerNameKey)); ok {
				if p.SkipThrottle {
					metrics.RecordDecision(metrics.StageThrottle, metrics.OutcomePassed)
					return next(c)
				}
				if p.RateLimit > 0 {
					limit = p.RateLimit
				}
				if p.RateWindow > 0 {
					window = p.RateWindow
				}
			}
		}

		if limit <= 0 || window <= 0 {
			metrics.RecordDecision(metrics.StageThrottle, metrics.OutcomePassed)
			return next(c)
		}

		ctx := context.Background()
		userID, chatID := identity(c)
		key := m.builder.ForIdentity(
			keys.FeatureRate,
			userID, chatID,
			bucket(c),
			stringFromContext(c, MethodOverrideKey),
		)

		decision, err := m.limiter.Allow(ctx, key, limit, window)
		if err != nil {
			metrics.RecordBackendError(metrics.StageThrottle)
			m.log.Error("rate limit check failed",
				slog.Int64("user_id", userID),
				slog.Any("error", err))

			return err
		}

		if !decision.Allowed {
			c.Set(RateLimitedFlag, true)
			metrics.RecordDecision(metrics.StageThrottle, metrics.OutcomeRateLimited)
			m.log.Debug("update rate limited",
				slog.Int64("user_id", userID),
				slog.String("key", key),
				slog.Duration("retry_after", decision.RetryAfter))

			m.notify(ctx, c, decision.RetryAfter)
			m.autoBlock(ctx, c, userID)

			return nil
		}

		metrics.RecordDecision(metrics.StageThrottle, metrics.OutcomePassed)

		return next(c)
	}
}

// notify calls the rate-limited hook best-effort. A panicking or failing
// hook is logged and counted; it never changes the denial.
func (m *ThrottleMiddleware) notify(ctx context.Context, c tele.Context, retryAfter time.Duration) {
	if m.onRateLimited == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHookFailure("rate_limited")
			m.log.Error("rate-limited hook panicked", slog.Any("panic", r))
		}
	}()

	if err := m.onRateLimited(ctx, c, retryAfter); err != nil {
		metrics.RecordHookFailure("rate_limited")
		m.log.Warn("rate-limited hook failed", slog.Any("error", err))
	}
}

func (m *ThrottleMiddleware) autoBlock(ctx context.Context, c tele.Context, userID int64) {
	if m.blocker == nil || userID == 0 {
		return
	}

	var username string
	if sender := c.Sender(); sender != nil {
		username = sender.Username
	}

	if err := m.blocker.Block(ctx, userID, username); err != nil {
		metrics.RecordBackendError(metrics.StageThrottle)
		m.log.Error("auto-block after rate denial failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
	}
}
