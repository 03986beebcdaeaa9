package middleware

import (
	"sync"
	"time"
)

// Policy overrides the chain defaults for a single handler. Zero fields
// fall back to the configured defaults.
type Policy struct {
	// RateLimit and RateWindow override the throttle stage.
	RateLimit  int
	RateWindow time.Duration

	// DebounceWindow overrides the duplicate-suppression window.
	DebounceWindow time.Duration

	// SkipDebounce and SkipThrottle exempt the handler from a stage
	// entirely.
	SkipDebounce bool
	SkipThrottle bool

	// RequireRegistered makes the auth stage veto senders unknown to the
	// user repository instead of registering them.
	RequireRegistered bool
}

// PolicyRegistry maps handler names to their per-handler policies. The
// router fills it at registration time; stages read it per request.
type PolicyRegistry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{policies: make(map[string]Policy)}
}

// Set registers or replaces the policy for a handler.
func (r *PolicyRegistry) Set(handler string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.policies[handler] = p
}

// Get returns the policy for a handler and whether one was registered.
func (r *PolicyRegistry) Get(handler string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[handler]

	return p, ok
}
