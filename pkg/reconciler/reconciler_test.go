package reconciler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/types"
	"github.com/vitalsync/vitalsync/pkg/writer"
)

// fakeSource is a canned device sensor source
type fakeSource struct {
	latest  *types.Sample
	series  []types.Sample
	failing bool
}

func (f *fakeSource) FetchLatest(ctx context.Context, ownerID string, kind types.MetricKind) (*types.Sample, error) {
	if f.failing {
		return nil, fmt.Errorf("sensor bridge unavailable")
	}
	return f.latest, nil
}

func (f *fakeSource) FetchSeries(ctx context.Context, ownerID string, kind types.MetricKind, window types.Window) ([]types.Sample, error) {
	if f.failing {
		return nil, fmt.Errorf("sensor bridge unavailable")
	}
	var out []types.Sample
	for _, s := range f.series {
		if window.Contains(s.ObservedAt) {
			out = append(out, s)
		}
	}
	return out, nil
}

func storeWithEntry(t *testing.T, updatedAt time.Time, kind types.MetricKind, quantity float64) storage.Store {
	t.Helper()
	store := storage.NewMemoryStore()
	entry := &types.Entry{
		ID:        "stored-1",
		OwnerID:   "user-1",
		Kind:      kind,
		Day:       types.NormalizeDay(updatedAt),
		Value:     types.Value{Quantity: quantity, Unit: "kg"},
		SyncState: types.SyncStateSynced,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	require.NoError(t, store.PutEntry(entry))
	return store
}

// TestResolveDeviceNewer tests that a fresher device sample wins and
// triggers a write-back
func TestResolveDeviceNewer(t *testing.T) {
	storeTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	deviceTime := storeTime.Add(time.Hour)

	store := storeWithEntry(t, storeTime, types.MetricSteps, 5000)
	source := &fakeSource{series: []types.Sample{
		{Value: types.Value{Quantity: 8400}, ObservedAt: deviceTime},
	}}
	w := writer.NewWriter(store, nil)
	r := NewReconciler(store, w, source, DefaultConfig())

	window := types.Window{From: storeTime.Add(-24 * time.Hour), To: deviceTime.Add(time.Hour)}
	entries, err := r.Resolve(context.Background(), "user-1", types.MetricSteps, window)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.InDelta(t, 8400, entries[0].Value.Quantity, 0.001)

	// Write-back converges the store on the device view
	r.Wait()
	stored, err := store.GetEntryByLogicalKey(entries[0].LogicalKey())
	require.NoError(t, err)
	assert.InDelta(t, 8400, stored.Value.Quantity, 0.001)
	assert.Equal(t, types.SyncStatePending, stored.SyncState)
}

// TestResolveStoreNewer tests that a fresher store copy is served
// untouched
func TestResolveStoreNewer(t *testing.T) {
	deviceTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	storeTime := deviceTime.Add(time.Hour)

	store := storeWithEntry(t, storeTime, types.MetricSteps, 5000)
	source := &fakeSource{series: []types.Sample{
		{Value: types.Value{Quantity: 8400}, ObservedAt: deviceTime},
	}}
	r := NewReconciler(store, writer.NewWriter(store, nil), source, DefaultConfig())

	window := types.Window{From: deviceTime.Add(-24 * time.Hour), To: storeTime.Add(time.Hour)}
	entries, err := r.Resolve(context.Background(), "user-1", types.MetricSteps, window)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stored-1", entries[0].ID)
	assert.InDelta(t, 5000, entries[0].Value.Quantity, 0.001)
}

// TestResolveTiePrefersStore tests that a recency tie inside the
// tolerance resolves to the backend-of-record copy
func TestResolveTiePrefersStore(t *testing.T) {
	storeTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	deviceTime := storeTime.Add(time.Second) // within 2s tolerance

	store := storeWithEntry(t, storeTime, types.MetricSteps, 5000)
	source := &fakeSource{series: []types.Sample{
		{Value: types.Value{Quantity: 8400}, ObservedAt: deviceTime},
	}}
	r := NewReconciler(store, writer.NewWriter(store, nil), source, DefaultConfig())

	window := types.Window{From: storeTime.Add(-time.Hour), To: storeTime.Add(time.Hour)}
	entries, err := r.Resolve(context.Background(), "user-1", types.MetricSteps, window)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stored-1", entries[0].ID)
}

// TestCurrentStateWindowExemption tests that an old current-state
// observation is still served despite a narrow window
func TestCurrentStateWindowExemption(t *testing.T) {
	observed := time.Now().Add(-14 * 24 * time.Hour)

	store := storeWithEntry(t, observed, types.MetricWeight, 82.5)
	r := NewReconciler(store, writer.NewWriter(store, nil), &fakeSource{}, DefaultConfig())

	// A window covering only the last 24h must not hide the measurement
	window := types.Window{From: time.Now().Add(-24 * time.Hour), To: time.Now()}
	entries, err := r.Resolve(context.Background(), "user-1", types.MetricWeight, window)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.InDelta(t, 82.5, entries[0].Value.Quantity, 0.001)
}

// TestCurrentDeviceNewer tests the latest-value path with a fresher
// device observation
func TestCurrentDeviceNewer(t *testing.T) {
	storeTime := time.Now().Add(-time.Hour)
	deviceTime := time.Now()

	store := storeWithEntry(t, storeTime, types.MetricWeight, 82.5)
	source := &fakeSource{latest: &types.Sample{
		Value:      types.Value{Quantity: 81.9, Unit: "kg"},
		ObservedAt: deviceTime,
	}}
	w := writer.NewWriter(store, nil)
	r := NewReconciler(store, w, source, DefaultConfig())

	entry, err := r.Current(context.Background(), "user-1", types.MetricWeight)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.InDelta(t, 81.9, entry.Value.Quantity, 0.001)

	r.Wait()
}

// TestCurrentEmptyEverywhere tests that no data yields nil, not an error
func TestCurrentEmptyEverywhere(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewReconciler(store, writer.NewWriter(store, nil), &fakeSource{}, DefaultConfig())

	entry, err := r.Current(context.Background(), "user-1", types.MetricWeight)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

// TestDeviceFailureServesStore tests graceful degradation when the
// sensor bridge is broken
func TestDeviceFailureServesStore(t *testing.T) {
	storeTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := storeWithEntry(t, storeTime, types.MetricSteps, 5000)
	r := NewReconciler(store, writer.NewWriter(store, nil), &fakeSource{failing: true}, DefaultConfig())

	window := types.Window{From: storeTime.Add(-time.Hour), To: storeTime.Add(time.Hour)}
	entries, err := r.Resolve(context.Background(), "user-1", types.MetricSteps, window)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stored-1", entries[0].ID)
}

// TestNilSourceServesStore tests running without a device bridge
func TestNilSourceServesStore(t *testing.T) {
	storeTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := storeWithEntry(t, storeTime, types.MetricSteps, 5000)
	r := NewReconciler(store, writer.NewWriter(store, nil), nil, DefaultConfig())

	entries, err := r.Resolve(context.Background(), "user-1", types.MetricSteps, types.Window{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
