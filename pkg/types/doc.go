/*
Package types defines the core data structures shared across VitalSync.

This package contains the domain entities of the sync core: metric kinds
and their reconciliation classes, the Entry record with its logical-key
deduplication rule, the OutboxEntry delivery ledger row, device Samples,
query Windows, and the session TokenPair. It also defines the error
taxonomy that the writer, gateway, and drainer use to classify outcomes.

# Key Types

Entry: one domain record (a weight measurement, a meal log). Its logical
key, owner plus kind plus calendar day (or an explicit correlation ID),
must be unique among non-deleted entries.

OutboxEntry: a durable intent to sync one entry mutation. At most one row
is pending per entry at a time; the writer updates a pending row in place
rather than appending a second one.

Value: the opaque domain payload. Equality uses a small numeric epsilon
so repeated sensor readings of unchanged state compare equal.

# Error Taxonomy

Validation and authentication errors surface synchronously from the
writer. StatusError wraps remote HTTP failures and carries the transient
or permanent classification the drainer's retry logic keys off.
ErrSessionInvalid is fatal for the session and triggers logout.

Types are designed for JSON serialization with struct tags for both
storage and the wire.
*/
package types
