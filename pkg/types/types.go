package types

import (
	"fmt"
	"math"
	"time"
)

// MetricKind identifies a category of health data tracked by vitalsync
type MetricKind string

const (
	MetricWeight   MetricKind = "weight"
	MetricHeight   MetricKind = "height"
	MetricBodyFat  MetricKind = "body_fat"
	MetricSteps    MetricKind = "steps"
	MetricCalories MetricKind = "calories"
	MetricSleep    MetricKind = "sleep"
	MetricMeal     MetricKind = "meal"
	MetricWater    MetricKind = "water"
)

// MetricClass controls how the reconciler treats a metric kind
type MetricClass string

const (
	// ClassCurrentState metrics have one valid "latest" value regardless
	// of when it was observed (weight, height). Never window-filtered.
	ClassCurrentState MetricClass = "current_state"
	// ClassTimeSeries metrics accumulate per-day observations (steps,
	// calories) and are queried over explicit date windows.
	ClassTimeSeries MetricClass = "time_series"
)

// DefaultClasses returns the built-in kind classification. Deployments
// override individual kinds through configuration.
func DefaultClasses() map[MetricKind]MetricClass {
	return map[MetricKind]MetricClass{
		MetricWeight:   ClassCurrentState,
		MetricHeight:   ClassCurrentState,
		MetricBodyFat:  ClassCurrentState,
		MetricSteps:    ClassTimeSeries,
		MetricCalories: ClassTimeSeries,
		MetricSleep:    ClassTimeSeries,
		MetricMeal:     ClassTimeSeries,
		MetricWater:    ClassTimeSeries,
	}
}

// SyncState represents the remote delivery state of an entry
type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateSynced  SyncState = "synced"
	SyncStateFailed  SyncState = "failed"
)

// ValueEpsilon is the tolerance used when comparing numeric quantities.
// Repeated sensor observations of an unchanged value must not produce
// new entries or sync traffic.
const ValueEpsilon = 0.01

// Value is the domain payload of an entry. The sync core treats it as
// opaque apart from equality checks.
type Value struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
	Text     string  `json:"text,omitempty"`
}

// Equal reports whether two values are equivalent within ValueEpsilon
func (v Value) Equal(other Value) bool {
	if v.Unit != other.Unit || v.Text != other.Text {
		return false
	}
	return math.Abs(v.Quantity-other.Quantity) < ValueEpsilon
}

// Entry represents a single domain record (a weight measurement, a meal
// log, a sleep session) stored locally and synced to the backend
type Entry struct {
	ID      string     `json:"id"`
	OwnerID string     `json:"owner_id"`
	Kind    MetricKind `json:"kind"`

	// Day is the calendar day the entry belongs to, normalized to
	// midnight local time. Kinds without a one-per-day constraint leave
	// Day zero and set CorrelationID instead.
	Day           time.Time `json:"day,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	Value Value `json:"value"`

	// RemoteID is assigned by the backend on first successful sync
	RemoteID  string    `json:"remote_id,omitempty"`
	SyncState SyncState `json:"sync_state"`
	Deleted   bool      `json:"deleted,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogicalKey returns the uniqueness key for deduplication: at most one
// non-deleted entry may exist per key
func (e *Entry) LogicalKey() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s|%s|%s", e.OwnerID, e.Kind, e.CorrelationID)
	}
	return fmt.Sprintf("%s|%s|%s", e.OwnerID, e.Kind, e.Day.Format("2006-01-02"))
}

// SeriesAt returns the position of an entry on a time series: its
// calendar day, or its creation time for correlation-keyed entries
// that carry no day
func (e *Entry) SeriesAt() time.Time {
	if !e.Day.IsZero() {
		return e.Day
	}
	return e.CreatedAt
}

// NormalizeDay truncates a timestamp to midnight of its local calendar day
func NormalizeDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// Operation describes the kind of mutation an outbox entry carries
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// OutboxStatus represents the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxPending         OutboxStatus = "pending"
	OutboxInFlight        OutboxStatus = "in_flight"
	OutboxDone            OutboxStatus = "done"
	OutboxFailedPermanent OutboxStatus = "failed_permanent"
)

// OutboxEntry is a durable intent to sync one entry mutation to the
// backend. At most one row may be pending per (Kind, EntryID) at a
// time; a new mutation on the same entry updates the pending row in
// place to preserve delivery order.
type OutboxEntry struct {
	ID      string     `json:"id"`
	Kind    MetricKind `json:"kind"`
	EntryID string     `json:"entry_id"`
	Op      Operation  `json:"op"`

	Status        OutboxStatus `json:"status"`
	AttemptCount  int          `json:"attempt_count"`
	NextAttemptAt time.Time    `json:"next_attempt_at"`
	LeasedAt      time.Time    `json:"leased_at,omitempty"`
	LastError     string       `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sample is a raw observation from the on-device sensor source
type Sample struct {
	Value      Value     `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// Window bounds a time-series query. The zero Window means unbounded.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window. A zero bound is
// open on that side.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// IsZero reports whether the window is unbounded on both sides
func (w Window) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// TokenPair holds the access and refresh tokens for the remote session
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
