// Package events is the broker-neutral event contract shared by publishers
// and subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event defines the contract for all published events.
type Event interface {
	// EventType names the event, e.g. "review.phase_started".
	EventType() string

	Payload() map[string]interface{}

	Timestamp() time.Time
}

// Identified is implemented by events with a stable id, used by brokers to
// drop redelivered duplicates.
type Identified interface {
	EventID() string
}

// Subject is the broker subject of an event: prefix.type.
func Subject(prefix string, e Event) string {
	return prefix + "." + e.EventType()
}

// Received is an event rebuilt from a broker message.
type Received struct {
	ID         string
	Type       string
	Subject    string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e Received) EventType() string {
	return e.Type
}

func (e Received) Payload() map[string]interface{} {
	return e.Data
}

func (e Received) Timestamp() time.Time {
	return e.OccurredAt
}

func (e Received) EventID() string {
	return e.ID
}

// Decode parses a JSON object payload. The type and timestamp fields are
// lifted from the payload when present; otherwise the subject and now are used.
func Decode(subject, id string, data []byte) (Received, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Received{}, fmt.Errorf("decode event on %s: %w", subject, err)
	}

	ev := Received{
		ID:         id,
		Type:       subject,
		Subject:    subject,
		Data:       payload,
		OccurredAt: time.Now(),
	}
	if t, ok := payload["type"].(string); ok && t != "" {
		ev.Type = t
	}
	if ts, ok := payload["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.OccurredAt = parsed
		}
	}
	return ev, nil
}
