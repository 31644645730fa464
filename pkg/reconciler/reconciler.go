package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/vitalsync/vitalsync/pkg/log"
	"github.com/vitalsync/vitalsync/pkg/metrics"
	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/types"
	"github.com/vitalsync/vitalsync/pkg/writer"
)

// DeviceSource reads sensor observations recorded on the device itself
// (step counters, scale readings). It is the second source of truth the
// reconciler merges against the record store.
type DeviceSource interface {
	// FetchLatest returns the most recent observation for a kind, or
	// nil when the device has none
	FetchLatest(ctx context.Context, ownerID string, kind types.MetricKind) (*types.Sample, error)

	// FetchSeries returns observations inside the window, oldest first
	FetchSeries(ctx context.Context, ownerID string, kind types.MetricKind, window types.Window) ([]types.Sample, error)
}

// Config holds reconciler tuning knobs
type Config struct {
	// TieTolerance is the recency difference below which the two
	// sources are considered tied. Ties resolve to the store copy.
	TieTolerance time.Duration

	// Classes maps metric kinds to their reconciliation class.
	// Unlisted kinds default to time-series.
	Classes map[types.MetricKind]types.MetricClass
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		TieTolerance: 2 * time.Second,
		Classes:      types.DefaultClasses(),
	}
}

// Reconciler merges the on-device sensor source with the record store
// at read time, returning whichever view is fresher and pushing device
// observations through the writer when the store is stale.
type Reconciler struct {
	store  storage.Store
	writer *writer.Writer
	source DeviceSource
	cfg    Config

	wg sync.WaitGroup
}

// NewReconciler creates a reconciler. source may be nil on platforms
// without device sensors, in which case reads serve the store directly.
func NewReconciler(store storage.Store, w *writer.Writer, source DeviceSource, cfg Config) *Reconciler {
	if cfg.TieTolerance <= 0 {
		cfg.TieTolerance = DefaultConfig().TieTolerance
	}
	if cfg.Classes == nil {
		cfg.Classes = types.DefaultClasses()
	}
	return &Reconciler{
		store:  store,
		writer: w,
		source: source,
		cfg:    cfg,
	}
}

// classOf returns the reconciliation class for a kind
func (r *Reconciler) classOf(kind types.MetricKind) types.MetricClass {
	if class, ok := r.cfg.Classes[kind]; ok {
		return class
	}
	return types.ClassTimeSeries
}

// Resolve returns the freshest known entries for a kind. Time-series
// kinds are bounded by the window; current-state kinds ignore it
// entirely, because the most recent observation stays valid no matter
// how long ago it was taken.
func (r *Reconciler) Resolve(ctx context.Context, ownerID string, kind types.MetricKind, window types.Window) ([]*types.Entry, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	if r.classOf(kind) == types.ClassCurrentState {
		entry, err := r.Current(ctx, ownerID, kind)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}
		return []*types.Entry{entry}, nil
	}

	stored, err := r.store.ListEntries(ownerID, kind, window)
	if err != nil {
		return nil, err
	}

	samples := r.deviceSeries(ctx, ownerID, kind, window)
	if len(samples) == 0 {
		metrics.ReconciliationsTotal.WithLabelValues("store").Inc()
		return stored, nil
	}

	deviceLatest := latestSample(samples)
	storeLatest := latestEntry(stored)

	if r.deviceWins(deviceLatest, storeLatest) {
		r.writeBack(ownerID, kind, samples)
		metrics.ReconciliationsTotal.WithLabelValues("device").Inc()
		return entriesFromSamples(ownerID, kind, samples), nil
	}

	metrics.ReconciliationsTotal.WithLabelValues("store").Inc()
	return stored, nil
}

// Current returns the single most recent entry for a kind with no
// window applied
func (r *Reconciler) Current(ctx context.Context, ownerID string, kind types.MetricKind) (*types.Entry, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	stored, err := r.store.ListEntries(ownerID, kind, types.Window{})
	if err != nil {
		return nil, err
	}
	storeLatest := latestEntry(stored)

	sample := r.deviceLatest(ctx, ownerID, kind)

	if r.deviceWins(sample, storeLatest) {
		r.writeBack(ownerID, kind, []types.Sample{*sample})
		metrics.ReconciliationsTotal.WithLabelValues("device").Inc()
		return entryFromSample(ownerID, kind, *sample), nil
	}

	metrics.ReconciliationsTotal.WithLabelValues("store").Inc()
	return storeLatest, nil
}

// Wait blocks until all in-flight write-backs have finished
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// deviceWins decides the recency comparison. The store copy wins ties
// within the tolerance: it reflects the backend of record.
func (r *Reconciler) deviceWins(sample *types.Sample, stored *types.Entry) bool {
	if sample == nil {
		return false
	}
	if stored == nil {
		return true
	}
	return sample.ObservedAt.Sub(stored.UpdatedAt) > r.cfg.TieTolerance
}

// deviceSeries queries the device source, treating failures as "no
// device data". A broken sensor query must not break local reads.
func (r *Reconciler) deviceSeries(ctx context.Context, ownerID string, kind types.MetricKind, window types.Window) []types.Sample {
	if r.source == nil {
		return nil
	}
	samples, err := r.source.FetchSeries(ctx, ownerID, kind, window)
	if err != nil {
		log.Logger.Warn().
			Str("component", "reconciler").
			Str("kind", string(kind)).
			Err(err).
			Msg("Device source query failed, serving store copy")
		return nil
	}
	return samples
}

func (r *Reconciler) deviceLatest(ctx context.Context, ownerID string, kind types.MetricKind) *types.Sample {
	if r.source == nil {
		return nil
	}
	sample, err := r.source.FetchLatest(ctx, ownerID, kind)
	if err != nil {
		log.Logger.Warn().
			Str("component", "reconciler").
			Str("kind", string(kind)).
			Err(err).
			Msg("Device source query failed, serving store copy")
		return nil
	}
	return sample
}

// writeBack pushes device samples through the writer so the store and
// the outbox converge on the device view. It runs asynchronously: read
// paths never block on write traffic.
func (r *Reconciler) writeBack(ownerID string, kind types.MetricKind, samples []types.Sample) {
	if r.writer == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for _, sample := range samples {
			candidate := entryFromSample(ownerID, kind, sample)
			if _, err := r.writer.Save(context.Background(), candidate); err != nil {
				log.Logger.Warn().
					Str("component", "reconciler").
					Str("kind", string(kind)).
					Err(err).
					Msg("Write-back of device sample failed")
			}
		}
	}()
}

// entryFromSample builds a writer candidate from a device observation
func entryFromSample(ownerID string, kind types.MetricKind, sample types.Sample) *types.Entry {
	return &types.Entry{
		OwnerID:   ownerID,
		Kind:      kind,
		Day:       types.NormalizeDay(sample.ObservedAt),
		Value:     sample.Value,
		UpdatedAt: sample.ObservedAt,
	}
}

func entriesFromSamples(ownerID string, kind types.MetricKind, samples []types.Sample) []*types.Entry {
	entries := make([]*types.Entry, 0, len(samples))
	for _, sample := range samples {
		entries = append(entries, entryFromSample(ownerID, kind, sample))
	}
	return entries
}

// latestSample returns the sample with the greatest ObservedAt
func latestSample(samples []types.Sample) *types.Sample {
	if len(samples) == 0 {
		return nil
	}
	latest := samples[0]
	for _, sample := range samples[1:] {
		if sample.ObservedAt.After(latest.ObservedAt) {
			latest = sample
		}
	}
	return &latest
}

// latestEntry returns the entry with the greatest UpdatedAt
func latestEntry(entries []*types.Entry) *types.Entry {
	var latest *types.Entry
	for _, entry := range entries {
		if latest == nil || entry.UpdatedAt.After(latest.UpdatedAt) {
			latest = entry
		}
	}
	return latest
}
