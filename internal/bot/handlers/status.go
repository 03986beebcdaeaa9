package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/keys"
	"github.com/m-orlov/tgsentinel/internal/middleware"
	"github.com/m-orlov/tgsentinel/internal/storage"
)

// NewStatusHandler reports how much of the sliding-window quota the sender
// has left for this command.
func NewStatusHandler(
	limiter storage.RateLimiter,
	builder *keys.Builder,
	limit int,
	window time.Duration,
	log *slog.Logger,
) tele.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c tele.Context) error {
		var userID, chatID int64
		if sender := c.Sender(); sender != nil {
			userID = sender.ID
		}
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}

		bucket, _ := c.Get(middleware.HandlerNameKey).(string)
		key := builder.ForIdentity(keys.FeatureRate, userID, chatID, bucket, "")

		remaining, err := limiter.Remaining(context.Background(), key, limit, window)
		if err != nil {
			log.Error("status handler failed to read quota",
				slog.Int64("user_id", userID),
				slog.Any("error", err))

			return c.Send("Quota is unavailable right now, try again later.")
		}

		return c.Send(fmt.Sprintf(
			"You have %d of %d requests left in the current %s window.",
			remaining, limit, window,
		))
	}
}
