package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store/filestore"
)

func newMemStore(t *testing.T) *filestore.FileStore {
	t.Helper()
	s, err := filestore.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func appendEvent(t *testing.T, s *filestore.FileStore, typ model.EventType, payload any) *model.Event {
	t.Helper()
	e, err := s.Append(context.Background(), typ, model.MustPayload(payload))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return e
}

func nonEmptyLines(s string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestExportJSONL_Empty(t *testing.T) {
	s := newMemStore(t)
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), s, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.EventCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_WithEvents(t *testing.T) {
	s := newMemStore(t)
	appendEvent(t, s, model.TypeReminder, model.ReminderPayload{Medication: "Metformin", Time: "08:00"})
	appendEvent(t, s, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Metformin", Time: "08:01", Date: "2025-11-28"})
	appendEvent(t, s, model.TypeReminder, model.ReminderPayload{Medication: "Aspirin", Time: "21:00"})

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), s, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 3 events
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.EventCount != 3 || h.TypeCounts[model.TypeReminder] != 2 || h.TypeCounts[model.TypeAdherenceLog] != 1 {
		t.Fatalf("unexpected header: %+v", h)
	}

	for i, line := range lines[1:] {
		var rec struct {
			Type string      `json:"type"`
			Data model.Event `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal record %d: %v", i, err)
		}
		if rec.Type != "event" {
			t.Errorf("record %d type = %q, want event", i, rec.Type)
		}
		if rec.Data.ID != int64(i+1) {
			t.Errorf("record %d id = %d, want %d (creation order)", i, rec.Data.ID, i+1)
		}
	}
}

func TestExportJSONL_CancelledContext(t *testing.T) {
	s := newMemStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s, &buf); err == nil {
		t.Fatal("expected error for a cancelled context")
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing may be written on failure, got %q", buf.String())
	}
}
