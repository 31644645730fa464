package drainer

import (
	"context"
	"errors"
	"time"

	"github.com/vitalsync/vitalsync/pkg/events"
	"github.com/vitalsync/vitalsync/pkg/gateway"
	"github.com/vitalsync/vitalsync/pkg/health"
	"github.com/vitalsync/vitalsync/pkg/log"
	"github.com/vitalsync/vitalsync/pkg/metrics"
	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/types"
)

// Config holds drainer tuning knobs
type Config struct {
	// Interval between drain cycles
	Interval time.Duration
	// BatchSize bounds how many pending rows one cycle picks up
	BatchSize int
	// MinCallInterval is the per-kind rate limit gate
	MinCallInterval time.Duration
	// MaxAttempts is the transient retry ceiling before an entry is
	// marked failed permanently
	MaxAttempts int
	// BackoffBase seeds the exponential retry delay
	BackoffBase time.Duration
	// BackoffCap bounds the retry delay
	BackoffCap time.Duration
	// Lease is how long an in-flight row may go unresolved before it
	// is considered orphaned by a crash and reset to pending
	Lease time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:        2 * time.Second,
		BatchSize:       10,
		MinCallInterval: 500 * time.Millisecond,
		MaxAttempts:     8,
		BackoffBase:     time.Second,
		BackoffCap:      5 * time.Minute,
		Lease:           time.Minute,
	}
}

// Drainer delivers pending outbox rows to the remote API in the
// background. Callers of the writer never block on or observe remote
// delivery: once a mutation is committed locally, the drainer owns it.
type Drainer struct {
	store   storage.Store
	gw      *gateway.Client
	codecs  *CodecRegistry
	broker  *events.Broker
	limiter *Limiter
	monitor *health.Monitor
	cfg     Config

	stopCh chan struct{}
	doneCh chan struct{}
	kickCh chan struct{}
}

// NewDrainer creates an outbox drainer. monitor may be nil to disable
// offline detection.
func NewDrainer(store storage.Store, gw *gateway.Client, broker *events.Broker, monitor *health.Monitor, cfg Config) *Drainer {
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}
	return &Drainer{
		store:   store,
		gw:      gw,
		codecs:  NewCodecRegistry(),
		broker:  broker,
		limiter: NewLimiter(cfg.MinCallInterval),
		monitor: monitor,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		kickCh:  make(chan struct{}, 1),
	}
}

// Codecs exposes the codec registry for per-kind customization
func (d *Drainer) Codecs() *CodecRegistry {
	return d.codecs
}

// Start begins the drain loop
func (d *Drainer) Start() {
	go d.run()
}

// Stop stops the drainer and waits for the current cycle to finish
func (d *Drainer) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

// Kick schedules an immediate drain cycle (e.g. after a local save)
func (d *Drainer) Kick() {
	select {
	case d.kickCh <- struct{}{}:
	default:
	}
}

func (d *Drainer) run() {
	defer close(d.doneCh)

	logger := log.WithComponent("drainer")
	logger.Info().Dur("interval", d.cfg.Interval).Msg("Drainer started")

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-d.stopCh
		cancel()
	}()

	for {
		select {
		case <-ticker.C:
			d.drain(ctx)
		case <-d.kickCh:
			d.drain(ctx)
		case <-d.stopCh:
			logger.Info().Msg("Drainer stopped")
			return
		}
	}
}

// drain performs one cycle: recover orphaned rows, then deliver a
// bounded batch of due pending rows oldest-first
func (d *Drainer) drain(ctx context.Context) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DrainCycleDuration)

	d.recoverOrphans()

	if d.monitor != nil && !d.monitor.Healthy() {
		// Remote unreachable: stay local-first, retry next cycle
		return
	}

	now := time.Now()
	batch, err := d.store.ListPendingOutbox(d.cfg.BatchSize, now)
	if err != nil {
		log.Errorf("Failed to list pending outbox", err)
		return
	}

	for _, item := range batch {
		if ctx.Err() != nil {
			return
		}
		d.deliver(ctx, item)
	}
}

// recoverOrphans resets in-flight rows whose lease expired (crash
// between mark and response). Delivery is at-least-once: a row is only
// removed after a confirmed remote acknowledgment.
func (d *Drainer) recoverOrphans() {
	inFlight, err := d.store.ListOutboxByStatus(types.OutboxInFlight)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-d.cfg.Lease)
	for _, item := range inFlight {
		if item.LeasedAt.After(cutoff) {
			continue
		}
		// A newer row queued behind the stuck one supersedes it
		if pending, err := d.store.PendingOutboxForEntry(item.EntryID); err == nil && pending.ID != item.ID {
			if err := d.store.DeleteOutbox(item.ID); err != nil {
				log.Errorf("Failed to fold superseded outbox entry", err)
			}
			continue
		}
		item.Status = types.OutboxPending
		item.NextAttemptAt = time.Now()
		item.UpdatedAt = time.Now()
		if err := d.store.PutOutbox(item); err != nil {
			log.Errorf("Failed to recover orphaned outbox entry", err)
			continue
		}
		log.Logger.Warn().
			Str("component", "drainer").
			Str("outbox_id", item.ID).
			Msg("Recovered orphaned in-flight outbox entry")
	}
}

func (d *Drainer) deliver(ctx context.Context, item *types.OutboxEntry) {
	logger := log.WithComponent("drainer")

	item.Status = types.OutboxInFlight
	item.LeasedAt = time.Now()
	item.UpdatedAt = time.Now()
	if err := d.store.PutOutbox(item); err != nil {
		logger.Error().Err(err).Str("outbox_id", item.ID).Msg("Failed to mark outbox entry in flight")
		return
	}

	entry, err := d.store.GetEntry(item.EntryID)
	if err != nil {
		// Referenced entry is gone: nothing can ever be delivered
		d.failPermanently(item, nil, err)
		return
	}

	if err := d.limiter.Wait(ctx, item.Kind); err != nil {
		// Shutdown mid-wait: leave the row for the next run
		d.requeue(item, 0, err)
		return
	}

	err = d.send(ctx, item, entry)
	switch {
	case err == nil:
		d.complete(item, entry)
	case errors.Is(err, types.ErrSessionInvalid):
		// Fatal for the session, not for the data: the row stays
		// pending and drains after the user logs back in
		d.requeue(item, 0, err)
	case types.IsPermanent(err):
		d.failPermanently(item, entry, err)
	default:
		d.retryLater(item, entry, err)
	}
}

// send dispatches one outbox row through the per-kind codec and the
// gateway. On create the backend-assigned remote ID is written to the
// entry.
func (d *Drainer) send(ctx context.Context, item *types.OutboxEntry, entry *types.Entry) error {
	if item.Op == types.OpDelete {
		return d.gw.DeleteEntry(ctx, entry.RemoteID)
	}

	payload, err := d.codecs.For(item.Kind).Payload(entry)
	if err != nil {
		return types.NewPermanentError(0, err.Error())
	}

	// The endpoint follows what the remote already knows, not the op the
	// row was enqueued with: a row queued while an earlier one was in
	// flight can be delivered on either side of the create landing.
	if entry.RemoteID == "" {
		remoteID, err := d.gw.CreateEntry(ctx, payload)
		if err != nil {
			return err
		}
		entry.RemoteID = remoteID
		return nil
	}
	return d.gw.UpdateEntry(ctx, entry.RemoteID, payload)
}

// complete records a confirmed delivery: entry first (remote ID and
// sync state), ledger row last, so a crash in between redelivers
// instead of losing the acknowledgment. The entry is re-read because
// the writer may have accepted a newer value while the call was in
// flight; that value and its queued row must survive this delivery.
func (d *Drainer) complete(item *types.OutboxEntry, entry *types.Entry) {
	if fresh, err := d.store.GetEntry(item.EntryID); err == nil {
		fresh.RemoteID = entry.RemoteID
		entry = fresh
	}

	entry.SyncState = types.SyncStateSynced
	queued := false
	if pending, err := d.store.PendingOutboxForEntry(item.EntryID); err == nil && pending.ID != item.ID {
		// A newer mutation is waiting behind this delivery
		entry.SyncState = types.SyncStatePending
		queued = true
	}

	if err := d.store.PutEntry(entry); err != nil {
		log.Errorf("Failed to persist synced entry", err)
		d.requeue(item, 0, err)
		return
	}
	if err := d.store.DeleteOutbox(item.ID); err != nil {
		log.Errorf("Failed to remove delivered outbox entry", err)
		return
	}

	metrics.SyncAttemptsTotal.WithLabelValues(string(item.Kind), "success").Inc()
	log.Logger.Debug().
		Str("component", "drainer").
		Str("entry_id", entry.ID).
		Str("remote_id", entry.RemoteID).
		Msg("Entry synced")
	if d.broker != nil && !queued {
		d.broker.PublishEntry(events.EventEntrySynced, entry.OwnerID, string(entry.Kind), entry.ID)
	}
}

func (d *Drainer) retryLater(item *types.OutboxEntry, entry *types.Entry, cause error) {
	item.AttemptCount++
	metrics.SyncAttemptsTotal.WithLabelValues(string(item.Kind), "transient").Inc()

	if item.AttemptCount >= d.cfg.MaxAttempts {
		d.failPermanently(item, entry, cause)
		return
	}
	d.requeue(item, d.backoff(item.AttemptCount), cause)
}

// requeue puts a row back to pending after delay. If the writer queued
// a newer row for the same entry while this one was in flight, the two
// fold: the newer row carries the delivery intent and this one is
// dropped, keeping at most one pending row per entry.
func (d *Drainer) requeue(item *types.OutboxEntry, delay time.Duration, cause error) {
	if pending, err := d.store.PendingOutboxForEntry(item.EntryID); err == nil && pending.ID != item.ID {
		if err := d.store.DeleteOutbox(item.ID); err != nil {
			log.Errorf("Failed to fold superseded outbox entry", err)
		}
		return
	}

	item.Status = types.OutboxPending
	item.NextAttemptAt = time.Now().Add(delay)
	item.UpdatedAt = time.Now()
	if cause != nil {
		item.LastError = cause.Error()
	}
	if err := d.store.PutOutbox(item); err != nil {
		log.Errorf("Failed to requeue outbox entry", err)
	}
}

func (d *Drainer) failPermanently(item *types.OutboxEntry, entry *types.Entry, cause error) {
	item.Status = types.OutboxFailedPermanent
	item.UpdatedAt = time.Now()
	if cause != nil {
		item.LastError = cause.Error()
	}
	if err := d.store.PutOutbox(item); err != nil {
		log.Errorf("Failed to mark outbox entry permanently failed", err)
		return
	}

	metrics.SyncAttemptsTotal.WithLabelValues(string(item.Kind), "permanent").Inc()
	log.Logger.Error().
		Str("component", "drainer").
		Str("outbox_id", item.ID).
		Str("entry_id", item.EntryID).
		Err(cause).
		Msg("Outbox entry failed permanently")

	if entry != nil {
		entry.SyncState = types.SyncStateFailed
		if err := d.store.PutEntry(entry); err != nil {
			log.Errorf("Failed to persist failed sync state", err)
		}
		if d.broker != nil {
			d.broker.PublishEntry(events.EventEntrySyncFailed, entry.OwnerID, string(entry.Kind), entry.ID)
		}
	}
}

// backoff returns the exponential retry delay for an attempt count
func (d *Drainer) backoff(attempts int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.BackoffCap {
			return d.cfg.BackoffCap
		}
	}
	if delay > d.cfg.BackoffCap {
		return d.cfg.BackoffCap
	}
	return delay
}
