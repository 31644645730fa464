package health

import (
	"context"
	"time"
)

// CheckType represents the type of reachability check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
)

// Result represents the outcome of a reachability check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker probes whether the remote backend is reachable
type Checker interface {
	// Check performs the probe and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of check
	Type() CheckType
}

// Config contains common configuration for reachability monitoring
type Config struct {
	// Interval is the time between probes
	Interval time.Duration

	// Timeout is the maximum time to wait for a probe to complete
	Timeout time.Duration

	// Retries is the number of consecutive failures before the remote
	// is considered unreachable
	Retries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
		Retries:  3,
	}
}

// Status tracks the current reachability of the remote backend
type Status struct {
	// ConsecutiveFailures tracks the number of consecutive failed probes
	ConsecutiveFailures int

	// ConsecutiveSuccesses tracks the number of consecutive successful probes
	ConsecutiveSuccesses int

	// LastCheck is the timestamp of the last probe
	LastCheck time.Time

	// LastResult is the result of the last probe
	LastResult Result

	// Healthy indicates if the remote is currently considered reachable
	Healthy bool
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		Healthy: true, // Assume reachable until proven otherwise
	}
}

// Update updates the status based on a new probe result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0

		// Mark as reachable after first success
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0

		// Mark as unreachable after reaching retry threshold
		if s.ConsecutiveFailures >= config.Retries {
			s.Healthy = false
		}
	}
}
