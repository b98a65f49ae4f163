package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/model"
)

func testEvent() *model.Event {
	return &model.Event{
		ID:        4,
		Type:      model.TypeReminder,
		Timestamp: time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC),
		Payload:   model.MustPayload(model.ReminderPayload{Medication: "Aspirin", Dose: "81mg", Time: "21:00", Frequency: "daily"}),
		Keywords:  []string{"aspirin"},
	}
}

func withFormat(t *testing.T, f string) {
	t.Helper()
	prev := outputFormat
	outputFormat = f
	t.Cleanup(func() { outputFormat = prev })
}

func TestPrintStructured(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"medication": "Aspirin"`},
		{"yaml", "medication: Aspirin"},
	}
	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			withFormat(t, tc.format)
			var buf bytes.Buffer
			if err := printStructured(&buf, testEvent()); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tc.want) {
				t.Errorf("output missing %q:\n%s", tc.want, buf.String())
			}
		})
	}

	withFormat(t, "xml")
	if err := printStructured(&bytes.Buffer{}, testEvent()); err == nil {
		t.Error("expected error for an unknown format")
	}
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, &engine.Response{
		Answer:    "- Aspirin 81mg at 21:00 (daily)",
		Source:    engine.SourceMemory,
		Citations: []int64{4, 2},
		Findings:  []conflict.Finding{{Code: "INTERACTION_RISK", Message: "Aspirin interacts with Warfarin", Severity: "high"}},
		Warnings:  []string{"could not record interaction"},
	})

	out := buf.String()
	for _, want := range []string{
		"- Aspirin 81mg at 21:00",
		"(source: memory; cites #4, #2)",
		"[INTERACTION_RISK] Aspirin interacts with Warfarin",
		"warning: could not record interaction",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintEventTableAndDetail(t *testing.T) {
	var buf bytes.Buffer
	printEventTable(&buf, []*model.Event{testEvent()})
	out := buf.String()
	if !strings.Contains(out, "ID") || !strings.Contains(out, "reminder") || !strings.Contains(out, "1 events") {
		t.Errorf("table:\n%s", out)
	}

	buf.Reset()
	if err := printEventDetail(&buf, testEvent()); err != nil {
		t.Fatal(err)
	}
	out = buf.String()
	for _, want := range []string{"ID:          4", "Keywords:    aspirin", "  dose: 81mg", "  medication: Aspirin"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q:\n%s", want, out)
		}
	}
}
