// Package middleware implements the ordered edge-hygiene chain:
// block-check, authenticate/resolve, debounce, rate-limit. Stages talk to
// each other only through the per-request context bag on telebot.Context;
// no backend ever holds a reference to it.
package middleware

import (
	"fmt"

	tele "gopkg.in/telebot.v3"
)

// Context keys written by the chain. Veto, duplicate and denial outcomes
// are expected control flow and communicated via these flags, never errors.
const (
	// HandlerNameKey carries the identifier of the handler about to run;
	// the router stamps it before the chain executes.
	HandlerNameKey = "sentinel_handler"

	// BucketOverrideKey and MethodOverrideKey let earlier stages or
	// handlers alias the key scope for a single request.
	BucketOverrideKey = "sentinel_bucket"
	MethodOverrideKey = "sentinel_method"

	// UserContextKey holds the resolver's output for downstream handlers.
	UserContextKey = "sentinel_user_context"

	// Termination flags. Exactly one is set when the chain short-circuits.
	BlockedFlag     = "sentinel_blocked"
	VetoedFlag      = "sentinel_vetoed"
	DebouncedFlag   = "sentinel_debounced"
	RateLimitedFlag = "sentinel_rate_limited"
)

// Flag reports whether a termination flag is set on the request context.
func Flag(c tele.Context, key string) bool {
	v, _ := c.Get(key).(bool)
	return v
}

func stringFromContext(c tele.Context, key string) string {
	v, _ := c.Get(key).(string)
	return v
}

// identity resolves the user and chat ids from the event. A zero id means
// the dimension could not be resolved.
func identity(c tele.Context) (userID, chatID int64) {
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
	}
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}

	return userID, chatID
}

// eventContent extracts the textual payload used for fingerprinting, in
// priority order: message text, caption, callback data, inline query text.
// Events with no textual payload fall back to a stable rendering of the
// whole update.
func eventContent(c tele.Context) string {
	if msg := c.Message(); msg != nil {
		if msg.Text != "" {
			return msg.Text
		}
		if msg.Caption != "" {
			return msg.Caption
		}
	}

	if cb := c.Callback(); cb != nil && cb.Data != "" {
		return cb.Data
	}

	if q := c.Query(); q != nil && q.Text != "" {
		return q.Text
	}

	return fmt.Sprintf("%+v", c.Update())
}
