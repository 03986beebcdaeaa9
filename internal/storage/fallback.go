package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	limiterChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_limiter_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	limiterFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_limiter_fallbacks_total",
		Help: "Checks served by the fallback limiter after a primary failure.",
	})
)

// FallbackRateLimiter delegates to a primary (shared) limiter and falls back
// to a stricter local limiter when the primary is unavailable. It is an
// opt-in resilience wrapper: without it, primary failures propagate to the
// chain as backend errors.
type FallbackRateLimiter struct {
	primary  RateLimiter
	fallback RateLimiter
	breaker  *CircuitBreaker
	log      *slog.Logger
}

var _ RateLimiter = (*FallbackRateLimiter)(nil)

// NewFallbackRateLimiter wraps primary with a local fallback. The fallback
// enforces half the requested limit, keeping admission conservative while
// the shared backend is down. A circuit breaker stops hammering a primary
// that keeps failing.
func NewFallbackRateLimiter(primary, fallback RateLimiter, log *slog.Logger) *FallbackRateLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &FallbackRateLimiter{
		primary:  primary,
		fallback: fallback,
		breaker:  NewCircuitBreaker(),
		log:      log,
	}
}

// Allow evaluates against the primary, switching to the fallback when the
// primary fails or its breaker is open.
func (f *FallbackRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Decision, error) {
	var dec *Decision
	err := f.breaker.Call(func() error {
		var callErr error
		dec, callErr = f.primary.Allow(ctx, key, limit, window)
		return callErr
	})
	if err == nil {
		limiterChecksTotal.WithLabelValues("primary", resultLabel(dec.Allowed)).Inc()
		return dec, nil
	}

	limiterFallbacksTotal.Inc()
	f.log.Warn("primary limiter failed, using fallback", slog.String("key", key), slog.Any("error", err))

	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	dec, err = f.fallback.Allow(ctx, key, fallbackLimit, window)
	if err != nil {
		return nil, err
	}

	limiterChecksTotal.WithLabelValues("fallback", resultLabel(dec.Allowed)).Inc()
	return dec, nil
}

// Remaining consults the primary only; a stale fallback count would be
// misleading once the primary recovers.
func (f *FallbackRateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	return f.primary.Remaining(ctx, key, limit, window)
}

// Reset resets both limiters so the key frees up regardless of which side
// served recent checks.
func (f *FallbackRateLimiter) Reset(ctx context.Context, key string) error {
	if err := f.primary.Reset(ctx, key); err != nil {
		return err
	}

	return f.fallback.Reset(ctx, key)
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}

	return "denied"
}
