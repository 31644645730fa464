package drainer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/pkg/gateway"
	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/types"
	"github.com/vitalsync/vitalsync/pkg/writer"
)

func testConfig() Config {
	return Config{
		Interval:        time.Hour, // cycles driven manually in tests
		BatchSize:       10,
		MinCallInterval: 0,
		MaxAttempts:     3,
		BackoffBase:     time.Second,
		BackoffCap:      time.Minute,
		Lease:           time.Minute,
	}
}

func newTestDrainer(t *testing.T, store storage.Store, baseURL string) *Drainer {
	t.Helper()
	gw, err := gateway.NewClient(gateway.Options{
		BaseURL: baseURL,
		TokenStore: gateway.NewMemoryTokenStore(types.TokenPair{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		}),
	})
	require.NoError(t, err)
	return NewDrainer(store, gw, nil, nil, testConfig())
}

func seedPending(t *testing.T, store storage.Store, op types.Operation, remoteID string) (*types.Entry, *types.OutboxEntry) {
	t.Helper()
	now := time.Now().Add(-time.Minute)
	entry := &types.Entry{
		ID:        "e1",
		OwnerID:   "user-1",
		Kind:      types.MetricWeight,
		Day:       types.NormalizeDay(now),
		Value:     types.Value{Quantity: 82.5, Unit: "kg"},
		RemoteID:  remoteID,
		SyncState: types.SyncStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	row := &types.OutboxEntry{
		ID:        "o1",
		Kind:      entry.Kind,
		EntryID:   entry.ID,
		Op:        op,
		Status:    types.OutboxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.SaveWithOutbox(entry, row))
	return entry, row
}

// TestDeliverCreate tests the happy path: entry gains a remote ID, the
// ledger row disappears
func TestDeliverCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/entries", r.URL.Path)
		_ = json.NewEncoder(w).Encode(gateway.EntryResponse{RemoteID: "remote-1"})
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpCreate, "")
	d := newTestDrainer(t, store, server.URL)

	d.drain(context.Background())

	entry, err := store.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", entry.RemoteID)
	assert.Equal(t, types.SyncStateSynced, entry.SyncState)

	_, err = store.GetOutbox("o1")
	assert.True(t, types.IsNotFound(err))
}

// TestDeliverDelete tests that deletes address the remote ID
func TestDeliverDelete(t *testing.T) {
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpDelete, "remote-7")
	d := newTestDrainer(t, store, server.URL)

	d.drain(context.Background())

	assert.Equal(t, "/v1/entries/remote-7", path.Load())
	_, err := store.GetOutbox("o1")
	assert.True(t, types.IsNotFound(err))
}

// TestTransientFailureRequeues tests backoff scheduling on 5xx
func TestTransientFailureRequeues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpCreate, "")
	d := newTestDrainer(t, store, server.URL)

	before := time.Now()
	d.drain(context.Background())

	row, err := store.GetOutbox("o1")
	require.NoError(t, err)
	assert.Equal(t, types.OutboxPending, row.Status)
	assert.Equal(t, 1, row.AttemptCount)
	assert.NotEmpty(t, row.LastError)
	// First retry waits out the backoff base
	assert.True(t, row.NextAttemptAt.After(before.Add(500*time.Millisecond)))

	// Entry keeps its pending state; the mutation is not lost
	entry, err := store.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, types.SyncStatePending, entry.SyncState)
}

// TestPermanentFailure tests immediate failure on 4xx
func TestPermanentFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpCreate, "")
	d := newTestDrainer(t, store, server.URL)

	d.drain(context.Background())

	row, err := store.GetOutbox("o1")
	require.NoError(t, err)
	assert.Equal(t, types.OutboxFailedPermanent, row.Status)

	entry, err := store.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, types.SyncStateFailed, entry.SyncState)
}

// TestRetryCeiling tests that transient failures past the ceiling go
// permanent
func TestRetryCeiling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	_, row := seedPending(t, store, types.OpCreate, "")
	row.AttemptCount = 2 // one short of MaxAttempts
	require.NoError(t, store.PutOutbox(row))
	d := newTestDrainer(t, store, server.URL)

	d.drain(context.Background())

	got, err := store.GetOutbox("o1")
	require.NoError(t, err)
	assert.Equal(t, types.OutboxFailedPermanent, got.Status)
}

// TestOrphanRecovery tests that an expired in-flight lease goes back to
// pending and is redelivered
func TestOrphanRecovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gateway.EntryResponse{RemoteID: "remote-1"})
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	_, row := seedPending(t, store, types.OpCreate, "")

	// Simulate a crash mid-delivery: row stuck in flight, lease expired
	row.Status = types.OutboxInFlight
	row.LeasedAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, store.PutOutbox(row))

	d := newTestDrainer(t, store, server.URL)
	d.drain(context.Background())

	entry, err := store.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, types.SyncStateSynced, entry.SyncState)
}

// TestFreshLeaseNotRecovered tests that an in-flight row inside its
// lease is left alone
func TestFreshLeaseNotRecovered(t *testing.T) {
	store := storage.NewMemoryStore()
	_, row := seedPending(t, store, types.OpCreate, "")
	row.Status = types.OutboxInFlight
	row.LeasedAt = time.Now()
	require.NoError(t, store.PutOutbox(row))

	d := newTestDrainer(t, store, "http://localhost:1")
	d.recoverOrphans()

	got, err := store.GetOutbox("o1")
	require.NoError(t, err)
	assert.Equal(t, types.OutboxInFlight, got.Status)
}

// TestMissingEntryFailsPermanently tests rows whose referenced entry is
// gone
func TestMissingEntryFailsPermanently(t *testing.T) {
	store := storage.NewMemoryStore()
	row := &types.OutboxEntry{
		ID:        "o1",
		Kind:      types.MetricWeight,
		EntryID:   "no-such-entry",
		Op:        types.OpCreate,
		Status:    types.OutboxPending,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.PutOutbox(row))

	d := newTestDrainer(t, store, "http://localhost:1")
	d.drain(context.Background())

	got, err := store.GetOutbox("o1")
	require.NoError(t, err)
	assert.Equal(t, types.OutboxFailedPermanent, got.Status)
}

// TestSessionInvalidRequeues tests that a dead session parks the row
// instead of failing it: the data drains after re-login
func TestSessionInvalidRequeues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpCreate, "")
	d := newTestDrainer(t, store, server.URL)

	d.drain(context.Background())

	row, err := store.GetOutbox("o1")
	require.NoError(t, err)
	assert.Equal(t, types.OutboxPending, row.Status)
	assert.Equal(t, 0, row.AttemptCount, "session failures must not consume retry budget")
}

// TestSaveDuringFlightFolds tests a save racing a failed delivery: the
// requeued row folds into the one the writer queued mid-flight, so only
// one pending row exists per entry and the newest value is delivered
func TestSaveDuringFlightFolds(t *testing.T) {
	store := storage.NewMemoryStore()
	w := writer.NewWriter(store, nil)
	day := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var calls atomic.Int32
	var delivered atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// A newer value lands while this delivery is in flight
			_, err := w.Save(context.Background(), &types.Entry{
				OwnerID: "user-1",
				Kind:    types.MetricWeight,
				Day:     day,
				Value:   types.Value{Quantity: 83.0, Unit: "kg"},
			})
			assert.NoError(t, err)
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var payload gateway.EntryPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		delivered.Store(payload.Quantity)
		_ = json.NewEncoder(rw).Encode(gateway.EntryResponse{RemoteID: "remote-1"})
	}))
	defer server.Close()

	id, err := w.Save(context.Background(), &types.Entry{
		OwnerID: "user-1",
		Kind:    types.MetricWeight,
		Day:     day,
		Value:   types.Value{Quantity: 82.5, Unit: "kg"},
	})
	require.NoError(t, err)

	d := newTestDrainer(t, store, server.URL)
	d.drain(context.Background())

	rows, err := store.ListOutboxByStatus(types.OutboxPending)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].EntryID)

	d.drain(context.Background())

	entry, err := store.GetEntry(id)
	require.NoError(t, err)
	assert.Equal(t, types.SyncStateSynced, entry.SyncState)
	assert.Equal(t, "remote-1", entry.RemoteID)
	assert.Equal(t, 83.0, delivered.Load())
}

// TestSaveDuringFlightKeepsNewerValue tests a save racing a successful
// delivery: the acknowledgment records the remote ID without clobbering
// the newer value, and the queued row delivers it afterwards
func TestSaveDuringFlightKeepsNewerValue(t *testing.T) {
	store := storage.NewMemoryStore()
	w := writer.NewWriter(store, nil)
	day := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var calls atomic.Int32
	var delivered atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, err := w.Save(context.Background(), &types.Entry{
				OwnerID: "user-1",
				Kind:    types.MetricWeight,
				Day:     day,
				Value:   types.Value{Quantity: 83.0, Unit: "kg"},
			})
			assert.NoError(t, err)
			_ = json.NewEncoder(rw).Encode(gateway.EntryResponse{RemoteID: "remote-1"})
			return
		}
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/entries/remote-1", r.URL.Path)
		var payload gateway.EntryPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		delivered.Store(payload.Quantity)
	}))
	defer server.Close()

	id, err := w.Save(context.Background(), &types.Entry{
		OwnerID: "user-1",
		Kind:    types.MetricWeight,
		Day:     day,
		Value:   types.Value{Quantity: 82.5, Unit: "kg"},
	})
	require.NoError(t, err)

	d := newTestDrainer(t, store, server.URL)
	d.drain(context.Background())

	entry, err := store.GetEntry(id)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", entry.RemoteID)
	assert.Equal(t, 83.0, entry.Value.Quantity)
	// The newer mutation is still queued, so the entry is not synced yet
	assert.Equal(t, types.SyncStatePending, entry.SyncState)

	d.drain(context.Background())

	entry, err = store.GetEntry(id)
	require.NoError(t, err)
	assert.Equal(t, types.SyncStateSynced, entry.SyncState)
	assert.Equal(t, 83.0, delivered.Load())
}

// TestUpdateRowWithoutRemoteIDCreates tests that a queued update whose
// entry the remote has never seen is delivered as a create
func TestUpdateRowWithoutRemoteIDCreates(t *testing.T) {
	var method atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		_ = json.NewEncoder(w).Encode(gateway.EntryResponse{RemoteID: "remote-9"})
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpUpdate, "")
	d := newTestDrainer(t, store, server.URL)

	d.drain(context.Background())

	assert.Equal(t, http.MethodPost, method.Load())
	entry, err := store.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, "remote-9", entry.RemoteID)
	assert.Equal(t, types.SyncStateSynced, entry.SyncState)
}

// TestCreateRowWithRemoteIDUpdates tests that a queued create for an
// already-acknowledged entry patches instead of creating a duplicate
func TestCreateRowWithRemoteIDUpdates(t *testing.T) {
	var method, path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpCreate, "remote-3")
	d := newTestDrainer(t, store, server.URL)

	d.drain(context.Background())

	assert.Equal(t, http.MethodPatch, method.Load())
	assert.Equal(t, "/v1/entries/remote-3", path.Load())
	entry, err := store.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, types.SyncStateSynced, entry.SyncState)
}

// TestOrphanRecoveryFoldsSuperseded tests that an expired in-flight row
// is dropped, not revived, when a newer row is already queued
func TestOrphanRecoveryFoldsSuperseded(t *testing.T) {
	store := storage.NewMemoryStore()
	_, row := seedPending(t, store, types.OpCreate, "")
	row.Status = types.OutboxInFlight
	row.LeasedAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, store.PutOutbox(row))

	newer := &types.OutboxEntry{
		ID:        "o2",
		Kind:      types.MetricWeight,
		EntryID:   "e1",
		Op:        types.OpUpdate,
		Status:    types.OutboxPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.PutOutbox(newer))

	d := newTestDrainer(t, store, "http://localhost:1")
	d.recoverOrphans()

	_, err := store.GetOutbox("o1")
	assert.True(t, types.IsNotFound(err))
	got, err := store.GetOutbox("o2")
	require.NoError(t, err)
	assert.Equal(t, types.OutboxPending, got.Status)
}

// TestBackoffDoubling tests the exponential schedule and its cap
func TestBackoffDoubling(t *testing.T) {
	d := &Drainer{cfg: Config{BackoffBase: time.Second, BackoffCap: 10 * time.Second}}

	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{attempts: 1, expected: time.Second},
		{attempts: 2, expected: 2 * time.Second},
		{attempts: 3, expected: 4 * time.Second},
		{attempts: 4, expected: 8 * time.Second},
		{attempts: 5, expected: 10 * time.Second},
		{attempts: 20, expected: 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, d.backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

// TestStartStopKick tests the background loop lifecycle
func TestStartStopKick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gateway.EntryResponse{RemoteID: "remote-1"})
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, types.OpCreate, "")
	d := newTestDrainer(t, store, server.URL)

	d.Start()
	d.Kick()

	// The kick should drive delivery well before the hour-long interval
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entry, err := store.GetEntry("e1")
		require.NoError(t, err)
		if entry.SyncState == types.SyncStateSynced {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	d.Stop()

	entry, err := store.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, types.SyncStateSynced, entry.SyncState)
}
