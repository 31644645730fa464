package drainer

import (
	"fmt"
	"math"
	"time"

	"github.com/vitalsync/vitalsync/pkg/gateway"
	"github.com/vitalsync/vitalsync/pkg/types"
)

// Codec shapes one metric kind into its remote wire payload. The
// drainer dispatches on the outbox entry's kind tag; adding a kind
// means registering a codec, never reflection.
type Codec interface {
	Kind() types.MetricKind
	Payload(entry *types.Entry) (gateway.EntryPayload, error)
}

// CodecRegistry maps metric kinds to codecs with a generic fallback
type CodecRegistry struct {
	codecs   map[types.MetricKind]Codec
	fallback Codec
}

// NewCodecRegistry creates a registry with the built-in codecs
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{
		codecs:   make(map[types.MetricKind]Codec),
		fallback: quantityCodec{},
	}
	r.Register(countCodec{kind: types.MetricSteps})
	r.Register(countCodec{kind: types.MetricCalories})
	r.Register(textCodec{kind: types.MetricMeal})
	r.Register(textCodec{kind: types.MetricSleep})
	return r
}

// Register adds or replaces the codec for a kind
func (r *CodecRegistry) Register(c Codec) {
	r.codecs[c.Kind()] = c
}

// For returns the codec for a kind, falling back to the generic
// quantity codec
func (r *CodecRegistry) For(kind types.MetricKind) Codec {
	if c, ok := r.codecs[kind]; ok {
		return c
	}
	return r.fallback
}

func basePayload(entry *types.Entry) gateway.EntryPayload {
	payload := gateway.EntryPayload{
		ClientID:      entry.ID,
		OwnerID:       entry.OwnerID,
		Kind:          string(entry.Kind),
		CorrelationID: entry.CorrelationID,
		Quantity:      entry.Value.Quantity,
		Unit:          entry.Value.Unit,
		Text:          entry.Value.Text,
		RecordedAt:    entry.UpdatedAt.UTC().Format(time.RFC3339),
		Deleted:       entry.Deleted,
	}
	if !entry.Day.IsZero() {
		payload.Day = entry.Day.Format("2006-01-02")
	}
	return payload
}

// quantityCodec handles continuous measurements (weight, body fat)
type quantityCodec struct{}

func (quantityCodec) Kind() types.MetricKind { return "" }

func (quantityCodec) Payload(entry *types.Entry) (gateway.EntryPayload, error) {
	if entry.Value.Quantity <= 0 && entry.Value.Text == "" {
		return gateway.EntryPayload{}, fmt.Errorf("%w: entry %s has no payload", types.ErrInvalidValue, entry.ID)
	}
	return basePayload(entry), nil
}

// countCodec handles integral totals (steps, calories); the backend
// rejects fractional counts
type countCodec struct {
	kind types.MetricKind
}

func (c countCodec) Kind() types.MetricKind { return c.kind }

func (c countCodec) Payload(entry *types.Entry) (gateway.EntryPayload, error) {
	payload := basePayload(entry)
	payload.Quantity = math.Round(payload.Quantity)
	return payload, nil
}

// textCodec handles free-text records (meal logs, sleep stage notes)
type textCodec struct {
	kind types.MetricKind
}

func (c textCodec) Kind() types.MetricKind { return c.kind }

func (c textCodec) Payload(entry *types.Entry) (gateway.EntryPayload, error) {
	if entry.Value.Text == "" && entry.Value.Quantity <= 0 {
		return gateway.EntryPayload{}, fmt.Errorf("%w: entry %s has no payload", types.ErrInvalidValue, entry.ID)
	}
	return basePayload(entry), nil
}
