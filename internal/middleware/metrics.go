package middleware

import (
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/pkg/metrics"
)

// Metrics measures handler execution time and status, reporting them to
// Prometheus. It wraps the whole chain, so terminated updates are counted
// under the terminating outcome.
func Metrics(next tele.HandlerFunc) tele.HandlerFunc {
	if next == nil {
		return nil
	}

	return func(c tele.Context) error {
		start := time.Now()
		err := next(c)

		status := outcome(c)
		if err != nil {
			status = "error"
		}

		metrics.RecordHandler(stringFromContext(c, HandlerNameKey), status, time.Since(start))

		return err
	}
}
