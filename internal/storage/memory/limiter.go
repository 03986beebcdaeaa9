// Package memory provides the in-process backend set. All backends are safe
// for concurrent use; mutation happens inside bounded critical sections.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

type window struct {
	admissions []time.Time
}

// RateLimiter enforces a sliding window over per-key admission timestamps.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

var _ storage.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter returns an in-memory sliding-window limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]*window)}
}

// Allow admits the event when fewer than limit admissions fall within the
// trailing window. Stale timestamps are purged lazily on access; a denied
// call leaves the window untouched.
func (m *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (*storage.Decision, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.ensureWindow(key)
	w.admissions = keepRecent(w.admissions, now.Add(-window))
	count := len(w.admissions)

	if count >= limit {
		return &storage.Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter(w.admissions, window, now),
		}, nil
	}

	w.admissions = append(w.admissions, now)
	return &storage.Decision{Allowed: true, Remaining: limit - count - 1}, nil
}

// Remaining reports how many admissions are left without recording one.
func (m *RateLimiter) Remaining(_ context.Context, key string, limit int, window time.Duration) (int, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok {
		return limit, nil
	}

	w.admissions = keepRecent(w.admissions, now.Add(-window))
	remaining := limit - len(w.admissions)
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// Reset drops all admissions for the key.
func (m *RateLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, key)
	return nil
}

// Cleanup removes windows whose newest admission is older than maxAge.
func (m *RateLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, w := range m.windows {
		if len(w.admissions) == 0 || w.admissions[len(w.admissions)-1].Before(cutoff) {
			delete(m.windows, key)
		}
	}
}

func (m *RateLimiter) ensureWindow(key string) *window {
	w, ok := m.windows[key]
	if !ok {
		w = &window{admissions: make([]time.Time, 0, 8)}
		m.windows[key] = w
	}

	return w
}

func retryAfter(admissions []time.Time, window time.Duration, now time.Time) time.Duration {
	if len(admissions) == 0 {
		return window
	}

	wait := admissions[0].Add(window).Sub(now)
	if wait < 0 {
		return 0
	}

	return wait
}

// keepRecent truncates timestamps older than windowStart, reusing the
// backing array.
func keepRecent(admissions []time.Time, windowStart time.Time) []time.Time {
	firstIdx := 0
	for firstIdx < len(admissions) && admissions[firstIdx].Before(windowStart) {
		firstIdx++
	}

	if firstIdx == 0 {
		return admissions
	}
	if firstIdx >= len(admissions) {
		return admissions[:0]
	}

	copy(admissions, admissions[firstIdx:])
	return admissions[:len(admissions)-firstIdx]
}
