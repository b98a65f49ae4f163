package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("store is closed")

// Reader is the read side of the event store. Every method returns copies;
// callers may modify them freely.
type Reader interface {
	// All returns every event in creation order.
	All(ctx context.Context) ([]*model.Event, error)
	// ByType returns the events of type t in creation order.
	ByType(ctx context.Context, t model.EventType) ([]*model.Event, error)
	// Get returns the event with the given id or model.ErrNotFound.
	Get(ctx context.Context, id int64) (*model.Event, error)
}

// Appender is the write side of the event store.
type Appender interface {
	// Append validates payload, derives keywords, assigns id and timestamp,
	// persists the event and returns a copy of it. It is all-or-nothing: on
	// error nothing is stored.
	Append(ctx context.Context, t model.EventType, payload json.RawMessage, opts ...AppendOption) (*model.Event, error)
}

// Store defines the append-only persistence interface for medical events.
type Store interface {
	Reader
	Appender

	// Lifecycle
	Close() error
}

// AppendOptions holds the optional settings of a single append.
type AppendOptions struct {
	Supersedes int64
}

// AppendOption configures an append.
type AppendOption func(*AppendOptions)

// WithSupersedes marks the new event as a correction of event id.
func WithSupersedes(id int64) AppendOption {
	return func(o *AppendOptions) { o.Supersedes = id }
}

// PersistenceError reports that an event could not be durably written. The
// store is unchanged when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Prepare validates an append request and builds the event to store, minus
// the id and timestamp the backend assigns. The payload is compacted so it
// fits on a single line of a JSONL file.
func Prepare(t model.EventType, payload json.RawMessage, opts ...AppendOption) (*model.Event, error) {
	var o AppendOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := model.ValidatePayload(t, payload); err != nil {
		return nil, err
	}
	if o.Supersedes < 0 {
		ve := &model.ValidationError{}
		ve.Add("supersedes", "must be a positive event id")
		return nil, ve
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, fmt.Errorf("compact payload: %w", err)
	}

	return &model.Event{
		Type:       t,
		Payload:    json.RawMessage(buf.Bytes()),
		Keywords:   model.DeriveKeywords(t, buf.Bytes()),
		Supersedes: o.Supersedes,
	}, nil
}

// UnknownSupersedes is the validation error for a correction that points at
// an event the store does not hold.
func UnknownSupersedes(id int64) error {
	ve := &model.ValidationError{}
	ve.Add("supersedes", fmt.Sprintf("references unknown event %d", id))
	return ve
}

// SupersededIDs returns the ids of events that a later event in events
// corrects.
func SupersededIDs(events []*model.Event) map[int64]bool {
	out := make(map[int64]bool)
	for _, e := range events {
		if e.Supersedes != 0 {
			out[e.Supersedes] = true
		}
	}
	return out
}
