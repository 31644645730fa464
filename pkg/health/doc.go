/*
Package health provides reachability monitoring for the remote VitalSync API.

The agent is local-first: every mutation commits to the local store before any
network traffic happens. When the remote backend is unreachable, the drainer
should not burn its per-row retry budget on doomed attempts. This package gives
it a cheap, continuously updated answer to "is the backend worth talking to
right now?".

# Architecture

A Monitor runs one Checker on a fixed interval and rolls consecutive results
into a single reachability verdict:

	┌────────────────────────────────────────────────────────────┐
	│                      Monitor Loop                          │
	│                  (Every 30 seconds)                        │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	                 ▼
	┌────────────────────────────────────────────────────────────┐
	│                   Checker Interface                        │
	│  • Check(ctx) Result                                       │
	│  • Type() CheckType                                        │
	└────────┬───────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┐
	    ▼           ▼
	┌────────┐  ┌───────┐
	│  HTTP  │  │  TCP  │
	│Checker │  │Checker│
	└────────┘  └───────┘
	     │          │
	     ▼          ▼
	  GET       Connect
	  /health    host:port

## Probe Flow

 1. Monitor starts → immediate probe, then one per Interval
 2. Each probe result updates a Status (consecutive failure/success counts)
 3. Retries consecutive failures → remote marked unreachable
 4. First success → remote marked reachable again
 5. Drainer calls Healthy() at the top of each drain cycle and skips the
    cycle while the remote is down

A single failed probe never flips the verdict. Transient blips (DNS hiccup,
one dropped connection) are absorbed by the failure threshold, while the
first success after an outage restores sync immediately.

# Usage

	checker := health.NewHTTPChecker(baseURL + "/health")
	monitor := health.NewMonitor(checker, health.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	if monitor.Healthy() {
		// safe to attempt remote delivery
	}

The monitor also mirrors its verdict into the metrics health checker under
the "gateway" component, so /ready reflects backend reachability.
*/
package health
