package bot

import (
	"log/slog"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/middleware"
)

// Router dispatches commands, callbacks and plain messages to registered
// handlers. Before a handler's chain runs, the router stamps the handler
// name into the request context so the chain stages can look up per-handler
// policies and build correctly scoped keys.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]route
	callbacks      map[string]route
	defaultHandler *route
	middlewares    []tele.MiddlewareFunc
	policies       *middleware.PolicyRegistry
	log            *slog.Logger
}

type route struct {
	name    string
	handler tele.HandlerFunc
}

// NewRouter builds a Router with empty registries. policies may be nil when
// no handler needs overrides.
func NewRouter(policies *middleware.PolicyRegistry, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:  make(map[string]route),
		callbacks: make(map[string]route),
		policies:  policies,
		log:       log,
	}
}

// Handle registers a handler for a bot command ("/start"). At most one
// policy may be given; it is registered under the command's name.
func (r *Router) Handle(cmd string, h tele.HandlerFunc, policy ...middleware.Policy) {
	name := strings.TrimPrefix(cmd, "/")
	r.register(policy, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = route{name: name, handler: h}
}

// HandleCallback registers a handler for callback data prefixes.
func (r *Router) HandleCallback(prefix string, h tele.HandlerFunc, policy ...middleware.Policy) {
	name := "callback:" + strings.Trim(prefix, "\f|")
	r.register(policy, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = route{name: name, handler: h}
}

// SetDefault sets the fallback handler for unmatched messages.
func (r *Router) SetDefault(h tele.HandlerFunc, policy ...middleware.Policy) {
	r.register(policy, "default")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = &route{name: "default", handler: h}
}

// Use appends a middleware to the chain applied around every handler.
func (r *Router) Use(mw ...tele.MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw...)
}

// Route directs the incoming update to the matched handler.
func (r *Router) Route(c tele.Context) error {
	if c == nil {
		return nil
	}

	if cb := c.Callback(); cb != nil {
		return r.routeCallback(c, cb.Data)
	}

	return r.routeMessage(c)
}

func (r *Router) routeCallback(c tele.Context, data string) error {
	r.mu.RLock()
	var matched *route
	for prefix, rt := range r.callbacks {
		if strings.HasPrefix(strings.TrimPrefix(data, "\f"), prefix) {
			rt := rt
			matched = &rt
			break
		}
	}
	r.mu.RUnlock()

	if matched == nil {
		r.log.Debug("no callback handler found", slog.String("data", data))
		return nil
	}

	return r.execute(c, *matched)
}

func (r *Router) routeMessage(c tele.Context) error {
	if cmd := commandOf(c.Text()); cmd != "" {
		r.mu.RLock()
		rt, ok := r.commands[cmd]
		r.mu.RUnlock()

		if ok {
			return r.execute(c, rt)
		}
	}

	r.mu.RLock()
	def := r.defaultHandler
	r.mu.RUnlock()

	if def != nil {
		return r.execute(c, *def)
	}

	return nil
}

func (r *Router) execute(c tele.Context, rt route) error {
	c.Set(middleware.HandlerNameKey, rt.name)

	h := rt.handler
	mws := r.snapshot()
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	if h == nil {
		return nil
	}

	return h(c)
}

func (r *Router) register(policy []middleware.Policy, name string) {
	if len(policy) == 0 || r.policies == nil {
		return
	}

	r.policies.Set(name, policy[0])
}

func (r *Router) snapshot() []tele.MiddlewareFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	out := make([]tele.MiddlewareFunc, len(r.middlewares))
	copy(out, r.middlewares)

	return out
}

// commandOf extracts the command token from message text, dropping the bot
// mention suffix ("/start@somebot" matches "/start").
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}

	cmd := text
	if i := strings.IndexAny(cmd, " \n"); i >= 0 {
		cmd = cmd[:i]
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}

	return cmd
}
