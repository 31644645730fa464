/*
Package drainer delivers pending outbox rows to the remote API in the
background.

The drainer is the only component that talks to the backend on the write
path. It runs for the lifetime of the agent, waking on a fixed interval or
when the writer kicks it after a local save, and moves each outbox row
through a small state machine until the backend acknowledges it.

# State Machine

	            ┌─────────┐
	   created  │ pending  │◄──────────────┐
	   ────────►│          │               │ retry with backoff
	            └────┬─────┘               │ (attempt < ceiling)
	                 │ picked up           │
	                 ▼                     │
	            ┌──────────┐   transient   │
	            │ in_flight ├──────────────┘
	            │           │
	            └────┬──┬───┘
	        success  │  │  permanent 4xx / attempt ceiling
	                 ▼  ▼
	          ┌──────┐ ┌──────────────────┐
	          │ done  │ │ failed_permanent │
	          │(row   │ │ (kept for        │
	          │ gone) │ │  diagnostics)    │
	          └──────┘ └──────────────────┘

# Drain Cycle

 1. Recover orphans: in_flight rows whose lease expired go back to
    pending. A crash between marking a row and recording the outcome
    must never strand a mutation.
 2. Check reachability: if the health monitor says the backend is down,
    skip the cycle instead of burning retry budget.
 3. Fetch a bounded batch of due pending rows, oldest first.
 4. For each row: mark in_flight, load the referenced entry, wait on the
    per-kind rate limiter, build the payload through the kind's codec,
    and call the gateway.

# Delivery Guarantees

At-least-once: a row is only deleted after a confirmed remote
acknowledgment, and the acknowledgment is recorded entry-first. A crash
between persisting the entry and deleting the row causes a redelivery,
which the backend deduplicates by remote ID.

FIFO per key: because the writer keeps at most one pending row per entry
and updates it in place, there is never a second row for the same entry
that could overtake the first. Rows for different entries carry no
ordering relationship.

# Failure Classification

Transient failures (network errors, 5xx, 429) increment the attempt count
and requeue with exponential backoff, doubling from the base delay up to
the cap. Past the attempt ceiling the row goes to failed_permanent.

Permanent failures (other 4xx, missing referenced entry, codec rejection)
go to failed_permanent immediately. The entry's sync state is set to
failed and an entry.sync_failed event is published; the original local
save already succeeded, so nothing user-visible blocks.

A session-invalid error is fatal for the session, not for the data: the
row is requeued untouched and drains after the user logs back in.

# Rate Limiting

The Limiter enforces a minimum wall-clock interval between consecutive
remote calls of the same metric kind. Reservations are taken before
sleeping, so concurrent deliveries of one kind queue behind each other.
Back-syncing 90 days of history paces itself instead of tripping backend
rate limiters.

# Codecs

Each metric kind may register a Codec that shapes the wire payload (step
counts round to integers, text kinds require content). Kinds without a
registered codec fall back to the plain quantity codec.

# See Also

  - pkg/gateway for the authenticated request executor
  - pkg/health for the reachability monitor consulted each cycle
  - pkg/writer for how rows enter the ledger
*/
package drainer
