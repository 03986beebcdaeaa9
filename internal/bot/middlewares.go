package bot

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	tele "gopkg.in/telebot.v3"
)

// Recovery catches handler panics, reports them to Sentry and keeps the
// update loop alive. It is installed outermost.
func Recovery(log *slog.Logger) tele.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if next == nil {
			return nil
		}

		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))

					sentry.CaptureException(fmt.Errorf("handler panic: %v", r))

					err = nil
				}
			}()

			return next(c)
		}
	}
}
