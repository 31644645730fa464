package drainer

import (
	"context"
	"sync"
	"time"

	"github.com/vitalsync/vitalsync/pkg/metrics"
	"github.com/vitalsync/vitalsync/pkg/types"
)

// Limiter enforces a minimum wall-clock interval between consecutive
// remote calls of the same metric kind. Bulk back-sync of historical
// data must not trip backend rate limiters.
type Limiter struct {
	minInterval time.Duration
	mu          sync.Mutex
	last        map[types.MetricKind]time.Time
	now         func() time.Time
}

// NewLimiter creates a limiter with the given minimum interval
func NewLimiter(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		last:        make(map[types.MetricKind]time.Time),
		now:         time.Now,
	}
}

// Wait blocks until a call for the kind is allowed, or the context is
// canceled. The reservation is taken before sleeping so concurrent
// waiters queue behind each other.
func (l *Limiter) Wait(ctx context.Context, kind types.MetricKind) error {
	if l.minInterval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := l.now()
	next := l.last[kind].Add(l.minInterval)
	if next.Before(now) {
		next = now
	}
	l.last[kind] = next
	l.mu.Unlock()

	delay := next.Sub(now)
	if delay <= 0 {
		return nil
	}

	metrics.RateLimitWaitSeconds.Add(delay.Seconds())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
