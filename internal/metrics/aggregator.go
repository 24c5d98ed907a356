// Package metrics reduces experiment events into per-variant counters.
//
// The reduction is a straight fold: one event is one occurrence of its
// stage. Deduplicating repeated delivery callbacks for the same message is
// the sender's job, and "first conversion per subject" is decided by the
// assignment's converted flag before a Conversion event is ever produced.
package metrics

import (
	"fmt"
	"time"

	"github.com/headline-goat/split-goat/internal/store"
)

// Kind names an event stage.
type Kind string

const (
	KindAssigned   Kind = "assigned"
	KindSent       Kind = "sent"
	KindDelivered  Kind = "delivered"
	KindOpened     Kind = "opened"
	KindClicked    Kind = "clicked"
	KindConversion Kind = "conversion"
)

// ParseKind maps an event name to its Kind. Only the email delivery stages
// are accepted; assignment and conversion events are produced by the engine.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSent, KindDelivered, KindOpened, KindClicked:
		return k, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Event is one occurrence of a stage for one variant.
type Event interface {
	Kind() Kind
	VariantID() string
	OccurredAt() time.Time
	delta() store.Counters
}

type base struct {
	Variant string
	At      time.Time
}

func (b base) VariantID() string     { return b.Variant }
func (b base) OccurredAt() time.Time { return b.At }

// AssignedEvent records a new participant.
type AssignedEvent struct{ base }

// SentEvent records an email handed to the delivery provider.
type SentEvent struct{ base }

// DeliveredEvent records a delivery confirmation.
type DeliveredEvent struct{ base }

// OpenedEvent records an open.
type OpenedEvent struct{ base }

// ClickedEvent records a click.
type ClickedEvent struct{ base }

// ConversionEvent records a subject's first conversion.
type ConversionEvent struct {
	base
	SubjectID string
	Type      string
	Value     *float64
}

func (AssignedEvent) Kind() Kind   { return KindAssigned }
func (SentEvent) Kind() Kind       { return KindSent }
func (DeliveredEvent) Kind() Kind  { return KindDelivered }
func (OpenedEvent) Kind() Kind     { return KindOpened }
func (ClickedEvent) Kind() Kind    { return KindClicked }
func (ConversionEvent) Kind() Kind { return KindConversion }

func (AssignedEvent) delta() store.Counters   { return store.Counters{ParticipantsAssigned: 1} }
func (SentEvent) delta() store.Counters       { return store.Counters{EmailsSent: 1} }
func (DeliveredEvent) delta() store.Counters  { return store.Counters{EmailsDelivered: 1} }
func (OpenedEvent) delta() store.Counters     { return store.Counters{EmailsOpened: 1} }
func (ClickedEvent) delta() store.Counters    { return store.Counters{EmailsClicked: 1} }
func (ConversionEvent) delta() store.Counters { return store.Counters{Conversions: 1} }

// NewEvent builds the tagged event for a delivery stage.
func NewEvent(kind Kind, variantID string, at time.Time) (Event, error) {
	b := base{Variant: variantID, At: at}
	switch kind {
	case KindAssigned:
		return AssignedEvent{b}, nil
	case KindSent:
		return SentEvent{b}, nil
	case KindDelivered:
		return DeliveredEvent{b}, nil
	case KindOpened:
		return OpenedEvent{b}, nil
	case KindClicked:
		return ClickedEvent{b}, nil
	}
	return nil, fmt.Errorf("no delivery stage for event type %q", kind)
}

// NewConversion builds a ConversionEvent.
func NewConversion(variantID, subjectID, conversionType string, value *float64, at time.Time) ConversionEvent {
	return ConversionEvent{
		base:      base{Variant: variantID, At: at},
		SubjectID: subjectID,
		Type:      conversionType,
		Value:     value,
	}
}

// Tally folds events into a per-variant counter delta. Order does not
// matter and nothing is ever subtracted.
func Tally(events ...Event) map[string]store.Counters {
	out := make(map[string]store.Counters)
	for _, ev := range events {
		if ev == nil {
			continue
		}
		out[ev.VariantID()] = out[ev.VariantID()].Add(ev.delta())
	}
	return out
}

// Apply folds events into the variants' running counters in place.
// Events for variants not in the slice are ignored.
func Apply(variants []*store.Variant, events ...Event) {
	deltas := Tally(events...)
	for _, v := range variants {
		if d, ok := deltas[v.ID]; ok {
			v.Counters = v.Counters.Add(d)
		}
	}
}
