package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string                  `json:"version"`
	Type       string                  `json:"type"`
	Timestamp  time.Time               `json:"timestamp"`
	EventCount int                     `json:"event_count"`
	TypeCounts map[model.EventType]int `json:"type_counts"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every event in the store as JSONL to w, in creation
// order, after a header line.
func ExportJSONL(ctx context.Context, s store.Reader, w io.Writer) error {
	events, err := s.All(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	counts := make(map[model.EventType]int)
	for _, e := range events {
		counts[e.Type]++
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	// Write header.
	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		EventCount: len(events),
		TypeCounts: counts,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	// Write events.
	for _, e := range events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %d: %w", e.ID, err)
		}
	}

	return nil
}
