// Package handlers holds the bot command and callback handlers.
package handlers

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/middleware"
)

// NewStartHandler greets the sender. The auth stage has already registered
// first-time users by the time this runs.
func NewStartHandler(log *slog.Logger) tele.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c tele.Context) error {
		uc, _ := c.Get(middleware.UserContextKey).(*middleware.UserContext)
		if uc == nil {
			log.Warn("start handler ran without user context")
			return c.Send("Welcome!")
		}

		name := uc.Attributes["first_name"]
		if name == "" {
			name = fmt.Sprintf("user %d", uc.UserID)
		}

		return c.Send("Welcome, " + name + "! Use /status to see your request quota.")
	}
}

// NewHelpHandler lists the available commands.
func NewHelpHandler() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Send("Commands:\n" +
			"/start — register and greet\n" +
			"/status — remaining request quota\n" +
			"/block <id>, /unblock <id>, /blocked — admin only")
	}
}
