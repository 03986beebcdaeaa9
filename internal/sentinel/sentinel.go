// Package sentinel wires the storage backends and the middleware chain into
// a single facade the bot attaches to its router.
package sentinel

import (
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/keys"
	"github.com/m-orlov/tgsentinel/internal/middleware"
	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/pkg/config"
)

// Sentinel owns the assembled chain and the per-handler policy registry.
type Sentinel struct {
	cfg      config.SentinelConfig
	backends *storage.Backends
	builder  *keys.Builder
	policies *middleware.PolicyRegistry
	blocks   *BlockService
	log      *slog.Logger

	chain []tele.MiddlewareFunc
}

// New assembles the chain in its fixed order: block-check, auth, debounce,
// rate-limit. hooks may be the zero value.
func New(cfg config.SentinelConfig, backends *storage.Backends, hooks Hooks, log *slog.Logger) *Sentinel {
	if log == nil {
		log = slog.Default()
	}

	builder := keys.NewBuilder(cfg.Prefix)
	policies := middleware.NewPolicyRegistry()

	s := &Sentinel{
		cfg:      cfg,
		backends: backends,
		builder:  builder,
		policies: policies,
		blocks:   NewBlockService(backends.Blocklist, hooks.OnBlock, hooks.OnUnblock, log),
		log:      log,
	}

	var blocker middleware.Blocker
	if cfg.AutoBlockOnLimit {
		blocker = s.blocks
	}

	s.chain = []tele.MiddlewareFunc{
		middleware.NewBlockMiddleware(backends.Blocklist, log).Handle,
		middleware.NewAuthMiddleware(
			backends.Users,
			policies,
			hooks.ResolveUser,
			cfg.RequireRegistration,
			log,
		).Handle,
		middleware.NewDebounceMiddleware(
			backends.Debounce,
			builder,
			policies,
			cfg.DebounceWindow,
			log,
		).Handle,
		middleware.NewThrottleMiddleware(
			backends.Rate,
			builder,
			policies,
			cfg.RateLimit,
			cfg.RateWindow,
			hooks.OnRateLimited,
			blocker,
			log,
		).Handle,
	}

	return s
}

// Middlewares returns the chain stages in execution order.
func (s *Sentinel) Middlewares() []tele.MiddlewareFunc {
	return s.chain
}

// Policies exposes the per-handler policy registry so the router can fill
// it at registration time.
func (s *Sentinel) Policies() *middleware.PolicyRegistry {
	return s.policies
}

// Blocks exposes the block/unblock service for administrative handlers.
func (s *Sentinel) Blocks() *BlockService {
	return s.blocks
}

// Keys exposes the key builder, for callers that talk to the backends
// directly (cleaners, admin tooling).
func (s *Sentinel) Keys() *keys.Builder {
	return s.builder
}

// Hooks bundles the facade's extension points.
type Hooks struct {
	ResolveUser   middleware.ResolveUserFunc
	OnRateLimited middleware.RateLimitedHook
	OnBlock       BlockHook
	OnUnblock     BlockHook
}
