package writer

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalsync/vitalsync/pkg/events"
	"github.com/vitalsync/vitalsync/pkg/log"
	"github.com/vitalsync/vitalsync/pkg/metrics"
	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/types"
)

// lockStripes is the number of per-logical-key mutex stripes. Saves on
// the same key always serialize; saves on different keys rarely contend.
const lockStripes = 64

// Writer applies the fetch-or-create discipline in front of every
// record store write. It is the only component that creates or mutates
// entry values, and every accepted mutation leaves exactly one pending
// outbox row behind it.
type Writer struct {
	store  storage.Store
	broker *events.Broker
	locks  [lockStripes]sync.Mutex
	now    func() time.Time
}

// NewWriter creates a deduplicating writer
func NewWriter(store storage.Store, broker *events.Broker) *Writer {
	return &Writer{
		store:  store,
		broker: broker,
		now:    time.Now,
	}
}

func (w *Writer) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &w.locks[h.Sum32()%lockStripes]
}

func validate(candidate *types.Entry) error {
	if candidate.OwnerID == "" {
		return types.ErrNotAuthenticated
	}
	if candidate.Kind == "" {
		return fmt.Errorf("%w: metric kind is required", types.ErrInvalidValue)
	}
	if candidate.Day.IsZero() && candidate.CorrelationID == "" {
		return fmt.Errorf("%w: day or correlation id is required", types.ErrInvalidValue)
	}
	// Free-text logs (meals, notes) may carry no quantity; everything
	// else must be positive
	if candidate.Value.Quantity <= 0 && candidate.Value.Text == "" {
		return fmt.Errorf("%w: quantity must be positive", types.ErrInvalidValue)
	}
	return nil
}

// Save upserts a candidate entry by logical key and enqueues the
// matching outbox row. Returns the ID of the stored entry.
//
// Identical values are a true no-op: no write, no outbox row, no sync
// traffic. The candidate is never inserted directly when a tracked
// entry exists for the key; the stored instance is re-fetched and
// mutated instead (duplicate-registration guard).
func (w *Writer) Save(ctx context.Context, candidate *types.Entry) (string, error) {
	if err := validate(candidate); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !candidate.Day.IsZero() {
		candidate.Day = types.NormalizeDay(candidate.Day)
	}
	key := candidate.LogicalKey()

	mu := w.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	existing, err := w.store.GetEntryByLogicalKey(key)
	switch {
	case err == nil:
		return w.saveExisting(existing, candidate)
	case types.IsNotFound(err):
		return w.saveNew(candidate)
	default:
		return "", err
	}
}

func (w *Writer) saveExisting(existing, candidate *types.Entry) (string, error) {
	if existing.Value.Equal(candidate.Value) {
		metrics.SavesTotal.WithLabelValues(string(existing.Kind), "noop").Inc()
		return existing.ID, nil
	}

	now := w.now()
	existing.Value = candidate.Value
	existing.UpdatedAt = now
	existing.SyncState = types.SyncStatePending

	outbox, err := w.upsertOutbox(existing, types.OpUpdate, now)
	if err != nil {
		return "", err
	}
	if err := w.store.SaveWithOutbox(existing, outbox); err != nil {
		return "", err
	}

	metrics.SavesTotal.WithLabelValues(string(existing.Kind), "updated").Inc()
	w.publishSaved(existing)
	return existing.ID, nil
}

func (w *Writer) saveNew(candidate *types.Entry) (string, error) {
	now := w.now()
	entry := &types.Entry{
		ID:            uuid.New().String(),
		OwnerID:       candidate.OwnerID,
		Kind:          candidate.Kind,
		Day:           candidate.Day,
		CorrelationID: candidate.CorrelationID,
		Value:         candidate.Value,
		SyncState:     types.SyncStatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	outbox := &types.OutboxEntry{
		ID:            uuid.New().String(),
		Kind:          entry.Kind,
		EntryID:       entry.ID,
		Op:            types.OpCreate,
		Status:        types.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := w.store.SaveWithOutbox(entry, outbox); err != nil {
		return "", err
	}

	metrics.SavesTotal.WithLabelValues(string(entry.Kind), "created").Inc()
	w.publishSaved(entry)
	return entry.ID, nil
}

// upsertOutbox returns the outbox row to persist for a mutation on an
// entry. If a pending row already exists it is updated in place, never
// duplicated: one pending row per entry keeps delivery FIFO per key.
func (w *Writer) upsertOutbox(entry *types.Entry, op types.Operation, now time.Time) (*types.OutboxEntry, error) {
	pending, err := w.store.PendingOutboxForEntry(entry.ID)
	if err != nil {
		if types.IsNotFound(err) {
			return &types.OutboxEntry{
				ID:            uuid.New().String(),
				Kind:          entry.Kind,
				EntryID:       entry.ID,
				Op:            op,
				Status:        types.OutboxPending,
				NextAttemptAt: now,
				CreatedAt:     now,
				UpdatedAt:     now,
			}, nil
		}
		return nil, err
	}

	// An undelivered create stays a create; the remote has never seen
	// the entry
	if pending.Op != types.OpCreate {
		pending.Op = op
	}
	pending.AttemptCount = 0
	pending.NextAttemptAt = now
	pending.LastError = ""
	pending.UpdatedAt = now
	return pending, nil
}

// DeleteEntry tombstones an entry and enqueues the remote delete. An
// entry the remote has never seen is removed without sync traffic.
func (w *Writer) DeleteEntry(ctx context.Context, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry, err := w.store.GetEntry(entryID)
	if err != nil {
		return err
	}

	mu := w.lockFor(entry.LogicalKey())
	mu.Lock()
	defer mu.Unlock()

	// Re-fetch under the lock
	entry, err = w.store.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry.Deleted {
		return nil
	}

	now := w.now()
	entry.Deleted = true
	entry.UpdatedAt = now
	entry.SyncState = types.SyncStatePending

	if entry.RemoteID == "" {
		// Never synced: drop any pending create, nothing to tell the
		// remote
		if pending, perr := w.store.PendingOutboxForEntry(entry.ID); perr == nil {
			if err := w.store.DeleteOutbox(pending.ID); err != nil {
				return err
			}
		}
		entry.SyncState = types.SyncStateSynced
		if err := w.store.PutEntry(entry); err != nil {
			return err
		}
		w.publishDeleted(entry)
		return nil
	}

	outbox, err := w.upsertOutbox(entry, types.OpDelete, now)
	if err != nil {
		return err
	}
	if err := w.store.SaveWithOutbox(entry, outbox); err != nil {
		return err
	}
	w.publishDeleted(entry)
	return nil
}

func (w *Writer) publishSaved(entry *types.Entry) {
	log.Logger.Debug().
		Str("component", "writer").
		Str("entry_id", entry.ID).
		Str("kind", string(entry.Kind)).
		Msg("Entry saved")
	if w.broker != nil {
		w.broker.PublishEntry(events.EventEntrySaved, entry.OwnerID, string(entry.Kind), entry.ID)
	}
}

func (w *Writer) publishDeleted(entry *types.Entry) {
	if w.broker != nil {
		w.broker.PublishEntry(events.EventEntryDeleted, entry.OwnerID, string(entry.Kind), entry.ID)
	}
}
