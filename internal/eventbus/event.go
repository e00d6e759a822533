// Package eventbus provides a typed publish/subscribe bus used in two
// tiers: an internal bus consumed only by the orchestrator, and a public
// bus broadcast to the IPC boundary. Both tiers share the same engine,
// generalized from a buffered-channel, goroutine-fanout broadcast bus.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one published message. Payload is any JSON-serializable value;
// Meta carries routing/tracing fields that never belong inside Payload
// itself.
type Event struct {
	Name    string
	Payload any
	Meta    Meta
}

// Meta is the envelope metadata attached to every event at publish time.
type Meta struct {
	ID            string
	CorrelationID string
	Timestamp     time.Time
	BusID         string
	Sequence      int64
}

// NewEvent constructs an Event with a fresh ID and the given correlation id
// (pass "" to generate one). Timestamp and Sequence are filled in by the
// bus at publish time.
func NewEvent(name string, payload any, correlationID string) Event {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return Event{
		Name:    name,
		Payload: payload,
		Meta: Meta{
			ID:            uuid.New().String(),
			CorrelationID: correlationID,
		},
	}
}

// clonePayload defensively deep-copies Payload via a JSON round-trip so a
// subscriber can never mutate state shared with the publisher or with
// other subscribers. into must be a pointer to the destination type.
func clonePayload(payload any, into any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, into)
}

// ClonedPayload returns a deep copy of e.Payload decoded into a
// map[string]any, the shape every subscriber downstream of JSON-oriented
// consumers (the IPC broadcast bridge) actually wants.
func (e Event) ClonedPayload() (map[string]any, error) {
	var out map[string]any
	if e.Payload == nil {
		return nil, nil
	}
	if err := clonePayload(e.Payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
