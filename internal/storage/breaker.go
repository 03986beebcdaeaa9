package storage

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen reports that the breaker is rejecting calls without
// consulting the wrapped backend.
var ErrBreakerOpen = errors.New("storage breaker open")

// Breaker state machine: closed passes calls through, open rejects them,
// half-open admits a small probe batch to test recovery.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

const (
	breakerErrorThreshold = 0.5
	breakerMinRequests    = 10
	breakerCooldown       = 30 * time.Second
	breakerProbeRequests  = 3
)

// CircuitBreaker guards a storage backend against hammering it while it is
// down. A tripped breaker short-circuits calls with ErrBreakerOpen so the
// caller can divert to its fallback immediately.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	successes   int
	requests    int
	lastFailure time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{state: breakerClosed}
}

// Call invokes fn unless the breaker is open. The fn error is returned
// unchanged so wrapped sentinel errors stay inspectable.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == breakerOpen {
		if time.Since(cb.lastFailure) < breakerCooldown {
			cb.mu.Unlock()
			return ErrBreakerOpen
		}

		cb.state = breakerHalfOpen
		cb.resetCountersLocked()
	}

	if cb.state == breakerHalfOpen && cb.requests >= breakerProbeRequests {
		cb.mu.Unlock()
		return ErrBreakerOpen
	}
	cb.requests++
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		if cb.state == breakerHalfOpen {
			cb.tripLocked()
		} else if cb.requests >= breakerMinRequests &&
			float64(cb.failures)/float64(cb.requests) >= breakerErrorThreshold {
			cb.tripLocked()
		}

		return err
	}

	cb.successes++
	if cb.state == breakerHalfOpen && cb.successes >= breakerProbeRequests {
		cb.state = breakerClosed
		cb.resetCountersLocked()
	}

	return nil
}

// Open reports whether the breaker currently rejects calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state == breakerOpen && time.Since(cb.lastFailure) < breakerCooldown
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = breakerOpen
	cb.lastFailure = time.Now()
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
}
