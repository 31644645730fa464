package metrics

import (
	"time"

	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/types"
)

// Collector periodically samples outbox depth from the store
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	statuses := []types.OutboxStatus{
		types.OutboxPending,
		types.OutboxInFlight,
		types.OutboxFailedPermanent,
	}

	for _, status := range statuses {
		entries, err := c.store.ListOutboxByStatus(status)
		if err != nil {
			continue
		}
		OutboxDepth.WithLabelValues(string(status)).Set(float64(len(entries)))
	}
}
