package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitalsync/vitalsync/pkg/types"
)

// MemoryStore implements Store with in-process maps. Used in tests and
// for ephemeral (no data dir) runs; state is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*types.Entry
	byKey   map[string]string
	outbox  map[string]*types.OutboxEntry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*types.Entry),
		byKey:   make(map[string]string),
		outbox:  make(map[string]*types.OutboxEntry),
	}
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

func copyEntry(e *types.Entry) *types.Entry {
	c := *e
	return &c
}

func copyOutbox(o *types.OutboxEntry) *types.OutboxEntry {
	c := *o
	return &c
}

// GetEntry retrieves an entry by ID
func (s *MemoryStore) GetEntry(id string) (*types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, types.ErrNotFound)
	}
	return copyEntry(entry), nil
}

// GetEntryByLogicalKey retrieves the non-deleted entry for a logical key
func (s *MemoryStore) GetEntryByLogicalKey(key string) (*types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("logical key %s: %w", key, types.ErrNotFound)
	}
	entry, ok := s.entries[id]
	if !ok || entry.Deleted {
		return nil, fmt.Errorf("logical key %s: %w", key, types.ErrNotFound)
	}
	return copyEntry(entry), nil
}

// ListEntries returns non-deleted entries for an owner and kind inside
// the window
func (s *MemoryStore) ListEntries(ownerID string, kind types.MetricKind, window types.Window) ([]*types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*types.Entry
	for _, entry := range s.entries {
		if entry.Deleted || entry.OwnerID != ownerID || entry.Kind != kind {
			continue
		}
		if !window.IsZero() && !window.Contains(entry.SeriesAt()) {
			continue
		}
		entries = append(entries, copyEntry(entry))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SeriesAt().Before(entries[j].SeriesAt())
	})
	return entries, nil
}

// PutEntry upserts an entry
func (s *MemoryStore) PutEntry(entry *types.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putEntryLocked(entry)
	return nil
}

func (s *MemoryStore) putEntryLocked(entry *types.Entry) {
	s.entries[entry.ID] = copyEntry(entry)
	s.byKey[entry.LogicalKey()] = entry.ID
}

// SaveWithOutbox persists an entry and its outbox row atomically
func (s *MemoryStore) SaveWithOutbox(entry *types.Entry, outbox *types.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putEntryLocked(entry)
	s.outbox[outbox.ID] = copyOutbox(outbox)
	return nil
}

// PutOutbox upserts an outbox entry
func (s *MemoryStore) PutOutbox(entry *types.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox[entry.ID] = copyOutbox(entry)
	return nil
}

// GetOutbox retrieves an outbox entry by ID
func (s *MemoryStore) GetOutbox(id string) (*types.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.outbox[id]
	if !ok {
		return nil, fmt.Errorf("outbox %s: %w", id, types.ErrNotFound)
	}
	return copyOutbox(entry), nil
}

// PendingOutboxForEntry returns the pending outbox row for an entry ID
func (s *MemoryStore) PendingOutboxForEntry(entryID string) (*types.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.outbox {
		if entry.EntryID == entryID && entry.Status == types.OutboxPending {
			return copyOutbox(entry), nil
		}
	}
	return nil, fmt.Errorf("pending outbox for entry %s: %w", entryID, types.ErrNotFound)
}

// ListPendingOutbox returns up to limit pending rows due at or before
// now, oldest first
func (s *MemoryStore) ListPendingOutbox(limit int, now time.Time) ([]*types.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*types.OutboxEntry
	for _, entry := range s.outbox {
		if entry.Status != types.OutboxPending || entry.NextAttemptAt.After(now) {
			continue
		}
		pending = append(pending, copyOutbox(entry))
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// ListOutboxByStatus returns all outbox rows in a given status
func (s *MemoryStore) ListOutboxByStatus(status types.OutboxStatus) ([]*types.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*types.OutboxEntry
	for _, entry := range s.outbox {
		if entry.Status == status {
			entries = append(entries, copyOutbox(entry))
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// DeleteOutbox removes an outbox entry
func (s *MemoryStore) DeleteOutbox(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outbox, id)
	return nil
}
