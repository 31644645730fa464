/*
Package events provides a pub/sub broker for local data-change
notifications.

The sync core produces events; presentation-layer refresh logic and the
agent consume them. Events flow through a central broker that fans out to
subscriber channels:

	Writer ──┐
	         │  entry.saved / entry.deleted
	Drainer ─┼─► Broker ──► subscriber channels (buffered, 50)
	         │  entry.synced / entry.sync_failed
	Gateway ─┘  session.expired

Delivery is best-effort: a subscriber whose buffer is full misses the
event rather than blocking the producer. The sync core never depends on
an event being observed; events exist so the UI can refresh and so the
agent can kick the drainer right after a local save.

Each entry-scoped event carries the owner ID, metric kind, and entry ID
in its metadata. session.expired carries no entry context; it signals a
process-wide logout.

# Usage

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for event := range sub {
		// react to event.Type
	}

Unsubscribe closes the channel, terminating consumer range loops.
*/
package events
