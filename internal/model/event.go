package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrNotFound is returned when an event lookup by id has no match.
var ErrNotFound = errors.New("event not found")

// EventType identifies the kind of medical history an event records.
type EventType string

const (
	TypeReminder            EventType = "reminder"
	TypeAdherenceLog        EventType = "adherence_log"
	TypeDoctorAdvice        EventType = "doctor_advice"
	TypePrescriptionSummary EventType = "prescription_summary"
	TypeConflictFlag        EventType = "conflict_flag"
	TypeInteractionLog      EventType = "interaction_log"
)

// EventTypes lists every valid event type in a stable order.
var EventTypes = []EventType{
	TypeReminder,
	TypeAdherenceLog,
	TypeDoctorAdvice,
	TypePrescriptionSummary,
	TypeConflictFlag,
	TypeInteractionLog,
}

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	return slices.Contains(EventTypes, t)
}

// ParseEventType converts s to an EventType, rejecting unknown values.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// Event is one immutable record of medical history. The payload is kept as
// raw JSON so fields this version does not know about survive a load/save
// round trip.
type Event struct {
	ID         int64           `json:"id"`
	Type       EventType       `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
	Keywords   []string        `json:"keywords"`
	Supersedes int64           `json:"supersedes,omitempty"`
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Payload = slices.Clone(e.Payload)
	c.Keywords = slices.Clone(e.Keywords)
	return &c
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload of event %d: %w", e.Type, e.ID, err)
	}
	return nil
}

// Fields decodes the payload as a generic map.
func (e *Event) Fields() map[string]any {
	m := make(map[string]any)
	_ = json.Unmarshal(e.Payload, &m)
	return m
}

// Medication returns the payload's medication name, if any.
func (e *Event) Medication() string {
	var p struct {
		Medication string `json:"medication"`
	}
	_ = json.Unmarshal(e.Payload, &p)
	return p.Medication
}
