package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/pkg/metrics"
)

// BlockMiddleware drops updates from blocked users before any other stage
// runs. Blocked senders get no reply of any kind.
type BlockMiddleware struct {
	blocklist storage.Blocklist
	log       *slog.Logger
}

// NewBlockMiddleware constructs the block-check middleware.
func NewBlockMiddleware(blocklist storage.Blocklist, log *slog.Logger) *BlockMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &BlockMiddleware{
		blocklist: blocklist,
		log:       log,
	}
}

// Handle returns a telebot middleware that silently terminates updates from
// blocked senders. Backend failures propagate; they are never treated as
// "not blocked".
func (m *BlockMiddleware) Handle(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			metrics.RecordDecision(metrics.StageBlock, metrics.OutcomePassed)
			return next(c)
		}

		blocked, err := m.blocklist.IsBlocked(context.Background(), sender.ID)
		if err != nil {
			metrics.RecordBackendError(metrics.StageBlock)
			m.log.Error("blocklist check failed",
				slog.Int64("user_id", sender.ID),
				slog.Any("error", err))

			return err
		}

		if blocked {
			c.Set(BlockedFlag, true)
			metrics.RecordDecision(metrics.StageBlock, metrics.OutcomeBlocked)
			m.log.Debug("update dropped: sender is blocked", slog.Int64("user_id", sender.ID))

			return nil
		}

		metrics.RecordDecision(metrics.StageBlock, metrics.OutcomePassed)

		return next(c)
	}
}
