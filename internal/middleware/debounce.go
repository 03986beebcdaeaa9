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

// DebounceMiddleware suppresses duplicate events: an identical payload from
// the same identity within the window terminates silently.
type DebounceMiddleware struct {
	debouncer storage.Debouncer
	builder   *keys.Builder
	policies  *PolicyRegistry
	window    time.Duration
	log       *slog.Logger
}

// NewDebounceMiddleware constructs the debounce middleware with the default
// suppression window. A non-positive window disables the stage.
func NewDebounceMiddleware(
	debouncer storage.Debouncer,
	builder *keys.Builder,
	policies *PolicyRegistry,
	window time.Duration,
	log *slog.Logger,
) *DebounceMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &DebounceMiddleware{
		debouncer: debouncer,
		builder:   builder,
		policies:  policies,
		window:    window,
		log:       log,
	}
}

// Handle returns a telebot middleware that drops duplicate events.
func (m *DebounceMiddleware) Handle(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		window := m.window

		if m.policies != nil {
			if p, ok := m.policies.Get(stringFromContext(c, HandlerNameKey)); ok {
				if p.SkipDebounce {
					metrics.RecordDecision(metrics.StageDebounce, metrics.OutcomePassed)
					return next(c)
				}
				if p.DebounceWindow > 0 {
					window = p.DebounceWindow
				}
			}
		}

		if window <= 0 {
			metrics.RecordDecision(metrics.StageDebounce, metrics.OutcomePassed)
			return next(c)
		}

		userID, chatID := identity(c)
		key := m.builder.ForIdentity(
			keys.FeatureDebounce,
			userID, chatID,
			bucket(c),
			stringFromContext(c, MethodOverrideKey),
		)
		fingerprint := keys.Fingerprint(eventContent(c))

		seen, err := m.debouncer.Seen(context.Background(), key, window, fingerprint)
		if err != nil {
			metrics.RecordBackendError(metrics.StageDebounce)
			m.log.Error("debounce check failed",
				slog.Int64("user_id", userID),
				slog.Any("error", err))

			return err
		}

		if seen {
			c.Set(DebouncedFlag, true)
			metrics.RecordDecision(metrics.StageDebounce, metrics.OutcomeDuplicate)
			m.log.Debug("duplicate event suppressed",
				slog.Int64("user_id", userID),
				slog.String("key", key))

			return nil
		}

		metrics.RecordDecision(metrics.StageDebounce, metrics.OutcomePassed)

		return next(c)
	}
}

// bucket resolves the key bucket for the current request: an explicit
// override wins, then the stamped handler name.
func bucket(c tele.Context) string {
	if b := stringFromContext(c, BucketOverrideKey); b != "" {
		return b
	}

	return stringFromContext(c, HandlerNameKey)
}
