package storage

import (
	"time"

	"github.com/vitalsync/vitalsync/pkg/types"
)

// Store defines the interface for local record and outbox persistence.
// Implemented by BoltStore (durable) and MemoryStore (tests).
type Store interface {
	// Entries
	GetEntry(id string) (*types.Entry, error)
	// GetEntryByLogicalKey returns the non-deleted entry for a logical
	// key, or types.ErrNotFound
	GetEntryByLogicalKey(key string) (*types.Entry, error)
	ListEntries(ownerID string, kind types.MetricKind, window types.Window) ([]*types.Entry, error)
	PutEntry(entry *types.Entry) error

	// SaveWithOutbox persists an entry mutation and its outbox row as a
	// single atomic unit. Either both land or neither does.
	SaveWithOutbox(entry *types.Entry, outbox *types.OutboxEntry) error

	// Outbox ledger
	PutOutbox(entry *types.OutboxEntry) error
	GetOutbox(id string) (*types.OutboxEntry, error)
	// PendingOutboxForEntry returns the pending outbox row for an entry
	// ID, or types.ErrNotFound. At most one such row exists.
	PendingOutboxForEntry(entryID string) (*types.OutboxEntry, error)
	// ListPendingOutbox returns up to limit pending rows due at or
	// before now, oldest first
	ListPendingOutbox(limit int, now time.Time) ([]*types.OutboxEntry, error)
	ListOutboxByStatus(status types.OutboxStatus) ([]*types.OutboxEntry, error)
	DeleteOutbox(id string) error

	// Utility
	Close() error
}
