/*
Package storage provides BoltDB-backed persistence for VitalSync's record
store and outbox ledger.

The storage package implements the Store interface using BoltDB as the
underlying database, holding domain entries, a logical-key index for
deduplication lookups, and the outbox ledger of pending sync intents. All
data is serialized as JSON and stored in separate buckets. An in-memory
implementation backs tests and ephemeral agents.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/vitalsync.db             │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure               │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ entries        (Entry ID)  │             │          │
	│  │  │ entries_by_key (LogicalKey │             │          │
	│  │  │                 → Entry ID)│             │          │
	│  │  │ outbox         (Outbox ID) │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Transaction Management               │          │
	│  │  - Read: db.View() - Concurrent reads       │          │
	│  │  - Write: db.Update() - Serialized writes   │          │
	│  │  - Rollback: Automatic on error             │          │
	│  │  - Commit: Automatic on success + fsync     │          │
	│  └────────────────────────────────────────────┘          │
	└──────────────────────────────────────────────────────────┘

# Core Components

Store: the interface every consumer programs against. The writer, drainer,
reconciler, and metrics collector all take a Store, never a concrete type.

BoltStore: the durable implementation. One file, three buckets, JSON values.

MemoryStore: map-backed implementation with the same semantics, used by
tests and by deployments that do not need persistence across restarts.

NewStore: factory selecting an implementation from configuration.

# Atomicity

SaveWithOutbox writes an entry and its outbox row inside one BoltDB
update transaction. This is the local-first core guarantee: a mutation and
its intent-to-sync either both commit or neither does. A crash can never
leave a saved entry without a ledger row, or a ledger row pointing at an
entry that was never written.

The entries_by_key bucket maps each entry's logical key to its ID so the
writer's fetch-or-create lookup is a point read, not a scan. The index is
maintained inside the same transaction as the entry write. Lookups through
GetEntryByLogicalKey skip tombstoned entries, because a deleted entry no
longer occupies its key.

# Outbox Queries

ListPendingOutbox returns pending rows whose NextAttemptAt has passed,
oldest CreatedAt first, bounded by the caller's batch size. Backoff is
expressed entirely through NextAttemptAt: a row scheduled for the future
simply does not appear in the batch. ListOutboxByStatus serves orphan
recovery and the diagnostics CLI.

# Usage

	store, err := storage.NewStore(storage.BackendBolt, "/var/lib/vitalsync")
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.SaveWithOutbox(entry, outboxEntry)

# Integration Points

  - pkg/writer performs all entry mutations through SaveWithOutbox
  - pkg/drainer transitions outbox rows and finalizes synced entries
  - pkg/reconciler reads entries for recency comparison
  - pkg/metrics polls outbox depth by status

# See Also

  - pkg/types for Entry and OutboxEntry definitions
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
