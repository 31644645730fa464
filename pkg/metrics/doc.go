/*
Package metrics provides Prometheus metrics and health endpoints for the
agent.

All collectors are package-level variables registered at init, so any
package can record observations without plumbing a registry around:

	metrics.SyncAttemptsTotal.WithLabelValues(string(kind), "success").Inc()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DrainCycleDuration)

# Exposed Metrics

	vitalsync_outbox_depth{status}              gauge, polled from the store
	vitalsync_sync_attempts_total{kind,outcome} delivery outcomes
	vitalsync_drain_cycle_duration_seconds      histogram per drain cycle
	vitalsync_rate_limit_wait_seconds_total     time spent in limiter sleeps
	vitalsync_remote_requests_total{method,status}
	vitalsync_token_refreshes_total
	vitalsync_session_invalid_total
	vitalsync_saves_total{kind,result}          created / updated / noop
	vitalsync_reconciliations_total{source}     device vs store wins
	vitalsync_reconciliation_duration_seconds

# Health Endpoints

The package also hosts the component health checker behind /health,
/ready, and /live. Components register and update their status:

	metrics.RegisterComponent("store", true, "")
	metrics.UpdateComponent("gateway", false, "connection refused")

Readiness requires the critical components (store, drainer, gateway) to
be registered and healthy; liveness only proves the process is running.
The Collector polls outbox depth from the store on a fixed interval so
queue growth is visible before it becomes a support ticket.
*/
package metrics
