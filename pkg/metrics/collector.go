// Package metrics exposes Prometheus collectors for sentinel decisions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for decision metrics.
const (
	StageBlock    = "block"
	StageAuth     = "auth"
	StageDebounce = "debounce"
	StageThrottle = "throttle"
)

// Outcome labels for decision metrics.
const (
	OutcomePassed      = "passed"
	OutcomeBlocked     = "blocked"
	OutcomeVetoed      = "vetoed"
	OutcomeDuplicate   = "duplicate"
	OutcomeRateLimited = "rate_limited"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_decisions_total",
			Help: "Chain stage decisions labeled by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)
	backendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_backend_errors_total",
			Help: "Backend operation failures labeled by stage",
		},
		[]string{"stage"},
	)
	hookFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_hook_failures_total",
			Help: "Notification hook failures labeled by hook name",
		},
		[]string{"hook"},
	)
	blockedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_blocked_users",
			Help: "Current number of blocked user ids",
		},
	)
	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_handler_duration_seconds",
			Help:    "Handler execution time labeled by handler and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "status"},
	)
)

// RecordDecision increments the decision counter for a stage.
func RecordDecision(stage, outcome string) {
	if stage == "" {
		stage = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}

	decisionsTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordBackendError counts a backend failure surfaced by a stage.
func RecordBackendError(stage string) {
	if stage == "" {
		stage = "unknown"
	}

	backendErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordHookFailure counts a swallowed notification hook failure.
func RecordHookFailure(hook string) {
	if hook == "" {
		hook = "unknown"
	}

	hookFailuresTotal.WithLabelValues(hook).Inc()
}

// SetBlockedUsers updates the blocked-user gauge.
func SetBlockedUsers(count int) {
	blockedUsers.Set(float64(count))
}

// RecordHandler observes a handler execution.
func RecordHandler(handler, status string, d time.Duration) {
	if handler == "" {
		handler = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	handlerDuration.WithLabelValues(handler, status).Observe(d.Seconds())
}
