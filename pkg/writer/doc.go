/*
Package writer implements the deduplicating write path in front of the
record store.

Every domain mutation enters through the Writer. It enforces at-most-one
entry per logical key, suppresses writes that would not change anything,
and records an outbox row atomically with each real mutation so the
drainer can deliver it later. Callers get a synchronous local result;
remote delivery is invisible to them.

# Architecture

	              Save(candidate)
	                    │
	                    ▼
	         ┌─────────────────────┐
	         │      validate        │ invalid value / no owner
	         └─────────┬───────────┘──► error, nothing written
	                   │
	                   ▼
	         ┌─────────────────────┐
	         │ lock logical key     │ per-key serialization
	         └─────────┬───────────┘
	                   │
	                   ▼
	         ┌─────────────────────┐
	         │ fetch by logical key │
	         └─────────┬───────────┘
	        ┌──────────┼───────────────┐
	        ▼          ▼               ▼
	     not found   found,         found,
	        │        same value     changed value
	        ▼          │               │
	  insert entry     ▼               ▼
	  + create row  return existing  mutate fetched
	  (one txn)     ID, write        instance, pending
	                nothing          + upsert row (one txn)

# Deduplication Rules

Two distinct duplicate problems are guarded independently:

Logical duplicates: a second entry for the same owner, kind, and day.
Prevented by the fetch-by-logical-key lookup plus per-key locking, so two
concurrent saves cannot both decide "not found".

Value no-ops: repeated sensor observations of unchanged state. If the
existing value matches the candidate within a small numeric epsilon, Save
returns the existing ID without writing and without creating an outbox
row. Bulk device imports of already-known data generate zero sync traffic.

When a changed value is written, the Writer always mutates the instance it
fetched rather than inserting a fresh object for the same key. Constructing
a second representation of an already-tracked key is a defect class of its
own, distinct from the logical-duplicate problem.

# Concurrency

The Writer serializes read-modify-write sequences per logical key using a
striped mutex set keyed by an FNV hash of the key. Saves to different keys
proceed in parallel; saves to the same key queue. Combined with the store's
atomic SaveWithOutbox, this yields the invariant that N concurrent saves
of the same key produce exactly one entry.

# Outbox Discipline

At most one outbox row may be pending per entry. A new mutation on an
entry with a pending row updates that row in place instead of appending a
second one, which preserves delivery order: the remote sees one request
carrying the final state. A pending create stays a create, because the
backend has not assigned a remote ID yet.

Deleting an entry writes a tombstone and enqueues a delete operation. An
entry that never reached the backend is deleted purely locally: its
pending row is dropped and no delete request is ever sent.

# Events

Each successful save publishes an entry.saved event and each delete an
entry.deleted event through the broker, carrying the owner, kind, and
entry ID. The agent uses these to kick the drainer immediately instead of
waiting out the drain interval.

# See Also

  - pkg/storage for the atomic entry+outbox transaction
  - pkg/drainer for delivery of the recorded rows
  - pkg/types for validation error taxonomy
*/
package writer
