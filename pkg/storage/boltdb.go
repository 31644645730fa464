package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vitalsync/vitalsync/pkg/types"
)

var (
	// Bucket names
	bucketEntries      = []byte("entries")
	bucketEntriesByKey = []byte("entries_by_key")
	bucketOutbox       = []byte("outbox")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "vitalsync.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketEntries,
			bucketEntriesByKey,
			bucketOutbox,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putEntryTx(tx *bolt.Tx, entry *types.Entry) error {
	b := tx.Bucket(bucketEntries)
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := b.Put([]byte(entry.ID), data); err != nil {
		return err
	}
	// Maintain the logical key index for dedup lookups
	idx := tx.Bucket(bucketEntriesByKey)
	return idx.Put([]byte(entry.LogicalKey()), []byte(entry.ID))
}

func putOutboxTx(tx *bolt.Tx, outbox *types.OutboxEntry) error {
	b := tx.Bucket(bucketOutbox)
	data, err := json.Marshal(outbox)
	if err != nil {
		return err
	}
	return b.Put([]byte(outbox.ID), data)
}

// GetEntry retrieves an entry by ID
func (s *BoltStore) GetEntry(id string) (*types.Entry, error) {
	var entry types.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("entry %s: %w", id, types.ErrNotFound)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetEntryByLogicalKey retrieves the non-deleted entry for a logical key
func (s *BoltStore) GetEntryByLogicalKey(key string) (*types.Entry, error) {
	var entry types.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketEntriesByKey)
		id := idx.Get([]byte(key))
		if id == nil {
			return fmt.Errorf("logical key %s: %w", key, types.ErrNotFound)
		}
		data := tx.Bucket(bucketEntries).Get(id)
		if data == nil {
			return fmt.Errorf("logical key %s: %w", key, types.ErrNotFound)
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		if entry.Deleted {
			return fmt.Errorf("logical key %s: %w", key, types.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListEntries returns non-deleted entries for an owner and kind inside
// the window. A zero window returns all.
func (s *BoltStore) ListEntries(ownerID string, kind types.MetricKind, window types.Window) ([]*types.Entry, error) {
	var entries []*types.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		return b.ForEach(func(k, v []byte) error {
			var entry types.Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Deleted || entry.OwnerID != ownerID || entry.Kind != kind {
				return nil
			}
			if !window.IsZero() && !window.Contains(entry.SeriesAt()) {
				return nil
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SeriesAt().Before(entries[j].SeriesAt())
	})
	return entries, nil
}

// PutEntry upserts an entry
func (s *BoltStore) PutEntry(entry *types.Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putEntryTx(tx, entry)
	})
}

// SaveWithOutbox persists an entry and its outbox row in one transaction
func (s *BoltStore) SaveWithOutbox(entry *types.Entry, outbox *types.OutboxEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := putEntryTx(tx, entry); err != nil {
			return err
		}
		return putOutboxTx(tx, outbox)
	})
}

// PutOutbox upserts an outbox entry
func (s *BoltStore) PutOutbox(entry *types.OutboxEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putOutboxTx(tx, entry)
	})
}

// GetOutbox retrieves an outbox entry by ID
func (s *BoltStore) GetOutbox(id string) (*types.OutboxEntry, error) {
	var entry types.OutboxEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("outbox %s: %w", id, types.ErrNotFound)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PendingOutboxForEntry returns the pending outbox row referencing an
// entry ID
func (s *BoltStore) PendingOutboxForEntry(entryID string) (*types.OutboxEntry, error) {
	var found *types.OutboxEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		return b.ForEach(func(k, v []byte) error {
			var entry types.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.EntryID == entryID && entry.Status == types.OutboxPending {
				found = &entry
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("pending outbox for entry %s: %w", entryID, types.ErrNotFound)
	}
	return found, nil
}

// ListPendingOutbox returns up to limit pending rows due at or before
// now, oldest first
func (s *BoltStore) ListPendingOutbox(limit int, now time.Time) ([]*types.OutboxEntry, error) {
	var pending []*types.OutboxEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		return b.ForEach(func(k, v []byte) error {
			var entry types.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Status != types.OutboxPending || entry.NextAttemptAt.After(now) {
				return nil
			}
			pending = append(pending, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
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
func (s *BoltStore) ListOutboxByStatus(status types.OutboxStatus) ([]*types.OutboxEntry, error) {
	var entries []*types.OutboxEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		return b.ForEach(func(k, v []byte) error {
			var entry types.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Status == status {
				entries = append(entries, &entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// DeleteOutbox removes an outbox entry
func (s *BoltStore) DeleteOutbox(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		return b.Delete([]byte(id))
	})
}
