package health

import (
	"context"
	"sync"
	"time"

	"github.com/vitalsync/vitalsync/pkg/log"
	"github.com/vitalsync/vitalsync/pkg/metrics"
)

// Monitor runs a Checker on an interval and exposes the rolled-up
// reachability of the remote backend. The drainer skips cycles while
// the remote is unreachable instead of burning its retry budget.
type Monitor struct {
	checker Checker
	config  Config

	mu     sync.RWMutex
	status *Status

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMonitor creates a reachability monitor
func NewMonitor(checker Checker, config Config) *Monitor {
	if config.Interval <= 0 {
		config = DefaultConfig()
	}
	return &Monitor{
		checker: checker,
		config:  config,
		status:  NewStatus(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins probing
func (m *Monitor) Start() {
	go m.run()
}

// Stop stops probing
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// Healthy reports whether the remote is currently considered reachable
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Healthy
}

// LastResult returns the most recent probe result
func (m *Monitor) LastResult() Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.LastResult
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	// Probe immediately on start
	m.probe()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
	defer cancel()

	result := m.checker.Check(ctx)

	m.mu.Lock()
	wasHealthy := m.status.Healthy
	m.status.Update(result, m.config)
	nowHealthy := m.status.Healthy
	m.mu.Unlock()

	metrics.UpdateComponent("gateway", nowHealthy, result.Message)

	if wasHealthy && !nowHealthy {
		log.Logger.Warn().
			Str("component", "health").
			Str("message", result.Message).
			Msg("Remote backend unreachable, sync paused")
	}
	if !wasHealthy && nowHealthy {
		log.Logger.Info().
			Str("component", "health").
			Msg("Remote backend reachable again, sync resumed")
	}
}
