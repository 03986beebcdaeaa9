package middleware

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Logging logs every update after the chain and handler ran, including
// which stage (if any) terminated it.
func Logging(log *slog.Logger) tele.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			userID, chatID := identity(c)
			attrs := []any{
				slog.String("handler", stringFromContext(c, HandlerNameKey)),
				slog.Int64("user_id", userID),
				slog.Int64("chat_id", chatID),
				slog.String("outcome", outcome(c)),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				log.Error("update failed", append(attrs, slog.Any("error", err))...)
			} else {
				log.Info("update handled", attrs...)
			}

			return err
		}
	}
}

func outcome(c tele.Context) string {
	switch {
	case Flag(c, BlockedFlag):
		return "blocked"
	case Flag(c, VetoedFlag):
		return "vetoed"
	case Flag(c, DebouncedFlag):
		return "debounced"
	case Flag(c, RateLimitedFlag):
		return "rate_limited"
	default:
		return "handled"
	}
}
