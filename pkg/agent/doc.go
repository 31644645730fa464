/*
Package agent wires the sync core into a runnable process.

The agent is the composition root: it opens the store, builds the
gateway with persisted session tokens, and connects the writer, drainer,
reconciler, event broker, reachability monitor, and metrics collector.

	┌──────────┐  save   ┌────────┐ entry+outbox ┌─────────┐
	│  caller   ├────────►│ Writer ├─────────────►│  Store  │
	└──────────┘          └───┬────┘   (atomic)   └────┬────┘
	                          │ entry.saved            │
	                          ▼                        │
	                      ┌────────┐    kick      ┌────▼────┐
	                      │ Broker ├─────────────►│ Drainer │
	                      └────────┘              └────┬────┘
	                                                   │
	                                              ┌────▼────┐
	                                              │ Gateway │──► backend
	                                              └─────────┘

Start brings components up in dependency order and serves /metrics,
/health, /ready, and /live on the configured listen address. Stop tears
down in reverse order, waits for in-flight reconciler write-backs, and
closes the store last.

The broker subscription exists so a local save reaches the backend
within milliseconds instead of waiting out the drain interval.
*/
package agent
