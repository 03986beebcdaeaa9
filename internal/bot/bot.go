// Package bot wires telebot, the router and the sentinel chain together.
package bot

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/bot/handlers"
	"github.com/m-orlov/tgsentinel/internal/middleware"
	"github.com/m-orlov/tgsentinel/internal/sentinel"
	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/pkg/config"
)

// Bot wraps telebot.Bot with the router and the sentinel chain.
type Bot struct {
	telebot *tele.Bot
	router  *Router
	log     *slog.Logger
}

// New builds the bot: outermost recovery, then observability, then the
// sentinel chain, then the routed handler.
func New(cfg *config.Config, s *sentinel.Sentinel, backends *storage.Backends, log *slog.Logger) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	tb, err := tele.NewBot(tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: &tele.LongPoller{
			Timeout: cfg.Telegram.PollTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	router := NewRouter(s.Policies(), log)
	router.Use(Recovery(log))
	router.Use(middleware.Metrics)
	router.Use(middleware.Logging(log))
	router.Use(s.Middlewares()...)

	registerHandlers(router, cfg, s, backends, log)

	tb.Handle(tele.OnText, router.Route)
	tb.Handle(tele.OnCallback, router.Route)

	return &Bot{
		telebot: tb,
		router:  router,
		log:     log,
	}, nil
}

func registerHandlers(router *Router, cfg *config.Config, s *sentinel.Sentinel, backends *storage.Backends, log *slog.Logger) {
	router.Handle("/start", handlers.NewStartHandler(log))
	router.Handle("/help", handlers.NewHelpHandler())

	router.Handle("/status", handlers.NewStatusHandler(
		backends.Rate,
		s.Keys(),
		cfg.Sentinel.RateLimit,
		cfg.Sentinel.RateWindow,
		log,
	))

	admin := handlers.NewAdminHandlers(s.Blocks(), cfg.Telegram.AdminIDs, log)
	adminPolicy := middleware.Policy{SkipDebounce: true}
	router.Handle("/block", admin.Block, adminPolicy)
	router.Handle("/unblock", admin.Unblock, adminPolicy)
	router.Handle("/blocked", admin.BlockedList, adminPolicy)
	router.HandleCallback("blocked:", admin.BlockedPage, adminPolicy)

	router.SetDefault(func(c tele.Context) error {
		return c.Send("Unknown command, try /help.")
	})
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	b.log.Info("starting telegram bot")
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	b.log.Info("stopping telegram bot")
	b.telebot.Stop()
}

// Telebot exposes the underlying instance for integrations such as health
// checks.
func (b *Bot) Telebot() *tele.Bot {
	return b.telebot
}
