package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Outbox metrics
	OutboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vitalsync_outbox_depth",
			Help: "Number of outbox entries by status",
		},
		[]string{"status"},
	)

	SyncAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalsync_sync_attempts_total",
			Help: "Total number of outbox delivery attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DrainCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitalsync_drain_cycle_duration_seconds",
			Help:    "Duration of outbox drain cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitWaitSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalsync_rate_limit_wait_seconds_total",
			Help: "Total time spent waiting on the per-kind rate limit gate",
		},
	)

	// Gateway metrics
	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalsync_remote_requests_total",
			Help: "Total number of remote API requests by method and status",
		},
		[]string{"method", "status"},
	)

	TokenRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalsync_token_refreshes_total",
			Help: "Total number of token refresh calls issued",
		},
	)

	SessionInvalidTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalsync_session_invalid_total",
			Help: "Total number of fatal session-invalid signals",
		},
	)

	// Writer metrics
	SavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalsync_saves_total",
			Help: "Total number of writer saves by kind and result (created, updated, noop)",
		},
		[]string{"kind", "result"},
	)

	// Reconciler metrics
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalsync_reconciliations_total",
			Help: "Total number of reconciliations by winning source",
		},
		[]string{"source"},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitalsync_reconciliation_duration_seconds",
			Help:    "Duration of reconciliation resolves in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(OutboxDepth)
	prometheus.MustRegister(SyncAttemptsTotal)
	prometheus.MustRegister(DrainCycleDuration)
	prometheus.MustRegister(RateLimitWaitSeconds)
	prometheus.MustRegister(RemoteRequestsTotal)
	prometheus.MustRegister(TokenRefreshesTotal)
	prometheus.MustRegister(SessionInvalidTotal)
	prometheus.MustRegister(SavesTotal)
	prometheus.MustRegister(ReconciliationsTotal)
	prometheus.MustRegister(ReconciliationDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
