/*
Package reconciler merges two asynchronous sources of truth at read time:
on-device sensor observations and the locally synced record store.

Neither source is authoritative on its own. The device keeps recording while
the app is offline, and the backend keeps accepting writes from other devices.
The reconciler compares the most recent timestamp on each side and serves
whichever view is fresher, then quietly pushes device observations through the
writer so the store converges.

# Resolution Flow

	Resolve(owner, kind, window)
	        │
	        ├── current-state kind? ──► Current(owner, kind)
	        │                           (window ignored entirely)
	        ▼
	┌───────────────┐        ┌──────────────────┐
	│ Record Store  │        │  Device Source   │
	│ ListEntries   │        │  FetchSeries     │
	└──────┬────────┘        └────────┬─────────┘
	       │                          │
	       └────────┬─────────────────┘
	                ▼
	     compare latest timestamps
	                │
	   ┌────────────┴─────────────┐
	   ▼                          ▼
	store newer or tied      device strictly newer
	serve store copy         serve device samples
	                         + async write-back via Writer

Ties within a small tolerance resolve to the store copy, which reflects the
backend of record. A write-back never blocks the read that triggered it.

# Metric Classes

Time-series kinds (steps, calories) are bounded by the caller's window.
Current-state kinds (weight, height) are exempt: a body measurement taken two
weeks ago is still the current measurement if nothing newer exists, so no
window filtering is ever applied to them.

Device source failures degrade to serving the store copy. A broken sensor
query must never break local reads.
*/
package reconciler
