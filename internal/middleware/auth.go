package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/pkg/metrics"
)

// AuthMiddleware resolves the sender to application user context and
// registers first-time users. Handlers marked RequireRegistered instead
// veto senders the repository does not know.
type AuthMiddleware struct {
	users       storage.UserRepo
	policies    *PolicyRegistry
	resolveUser ResolveUserFunc
	requireAll  bool
	log         *slog.Logger
}

// NewAuthMiddleware constructs the auth middleware. resolveUser may be nil,
// in which case resolution is derived from the Telegram sender directly.
// requireAll applies RequireRegistered to every handler.
func NewAuthMiddleware(
	users storage.UserRepo,
	policies *PolicyRegistry,
	resolveUser ResolveUserFunc,
	requireAll bool,
	log *slog.Logger,
) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &AuthMiddleware{
		users:       users,
		policies:    policies,
		resolveUser: resolveUser,
		requireAll:  requireAll,
		log:         log,
	}
}

// Handle returns a telebot middleware that authenticates the sender.
func (m *AuthMiddleware) Handle(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || sender.IsBot {
			c.Set(VetoedFlag, true)
			metrics.RecordDecision(metrics.StageAuth, metrics.OutcomeVetoed)

			return nil
		}

		ctx := context.Background()

		uc, err := m.resolve(ctx, sender)
		if err != nil {
			metrics.RecordBackendError(metrics.StageAuth)
			m.log.Error("user resolution failed",
				slog.Int64("user_id", sender.ID),
				slog.Any("error", err))

			return err
		}
		if uc == nil {
			c.Set(VetoedFlag, true)
			metrics.RecordDecision(metrics.StageAuth, metrics.OutcomeVetoed)
			m.log.Debug("update vetoed by user resolver", slog.Int64("user_id", sender.ID))

			return nil
		}

		registered, err := m.users.IsRegistered(ctx, uc.UserID)
		if err != nil {
			metrics.RecordBackendError(metrics.StageAuth)
			return err
		}
		uc.Registered = registered

		if m.mustBeRegistered(c) {
			if !registered {
				c.Set(VetoedFlag, true)
				metrics.RecordDecision(metrics.StageAuth, metrics.OutcomeVetoed)
				m.log.Debug("unregistered sender vetoed",
					slog.Int64("user_id", uc.UserID),
					slog.String("handler", stringFromContext(c, HandlerNameKey)))

				return nil
			}
		} else if !registered {
			if err := m.users.Register(ctx, uc.UserID, uc.Attributes); err != nil {
				metrics.RecordBackendError(metrics.StageAuth)
				return err
			}
			uc.Registered = true
			m.log.Info("registered new user", slog.Int64("user_id", uc.UserID))
		}

		c.Set(UserContextKey, uc)
		metrics.RecordDecision(metrics.StageAuth, metrics.OutcomePassed)

		return next(c)
	}
}

func (m *AuthMiddleware) resolve(ctx context.Context, sender *tele.User) (*UserContext, error) {
	if m.resolveUser != nil {
		return m.resolveUser(ctx, sender)
	}

	attrs := map[string]string{}
	if sender.Username != "" {
		attrs["username"] = sender.Username
	}
	if sender.FirstName != "" {
		attrs["first_name"] = sender.FirstName
	}
	if sender.LastName != "" {
		attrs["last_name"] = sender.LastName
	}

	return &UserContext{UserID: sender.ID, Attributes: attrs}, nil
}

func (m *AuthMiddleware) mustBeRegistered(c tele.Context) bool {
	if m.requireAll {
		return true
	}
	if m.policies == nil {
		return false
	}

	p, ok := m.policies.Get(stringFromContext(c, HandlerNameKey))

	return ok && p.RequireRegistered
}
