package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Classification
	}{
		{
			"Did I take my Metformin today?",
			Classification{Intent: IntentInformational},
		},
		{
			"What did my cardiologist advise?",
			Classification{Intent: IntentInformational},
		},
		{
			"When is my aspirin reminder",
			Classification{Intent: IntentInformational},
		},
		{
			"I took my Metformin 500mg at 8:05",
			Classification{Intent: IntentTook, Medication: "Metformin 500mg", Dose: "500mg", Time: "08:05"},
		},
		{
			"just took aspirin",
			Classification{Intent: IntentTook, Medication: "aspirin"},
		},
		{
			"I took Lisinopril 10 mg yesterday",
			Classification{Intent: IntentTook, Medication: "Lisinopril 10mg", Dose: "10mg", Yesterday: true},
		},
		{
			"Remind me to take Aspirin 81mg at 9pm daily",
			Classification{Intent: IntentRemind, Medication: "Aspirin 81mg", Dose: "81mg", Time: "21:00", Frequency: "daily"},
		},
		{
			"Can you remind me about my Vitamin D at noon?",
			Classification{Intent: IntentRemind, Medication: "Vitamin D", Time: "12:00"},
		},
		{
			"schedule a reminder for Metformin 500mg at 08:30 twice a day",
			Classification{Intent: IntentRemind, Medication: "Metformin 500mg", Dose: "500mg", Time: "08:30", Frequency: "twice daily"},
		},
		{
			"Remind me to take aspirin this afternoon",
			Classification{Intent: IntentRemind, Medication: "aspirin"},
		},
		{
			"remind me to take my pills",
			Classification{Intent: IntentRemind, Medication: "pills"},
		},
		{
			"",
			Classification{Intent: IntentInformational},
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.query), tt.query)
	}
}

func TestClassificationPredicates(t *testing.T) {
	assert.True(t, Classification{Intent: IntentTook, Medication: "x"}.CanLog())
	assert.False(t, Classification{Intent: IntentTook}.CanLog())
	assert.True(t, Classification{Intent: IntentRemind, Medication: "x", Time: "08:00"}.CanSchedule())
	assert.False(t, Classification{Intent: IntentRemind, Medication: "x"}.CanSchedule())
}

func TestExtractTime(t *testing.T) {
	tests := map[string]string{
		"at 8:05":               "08:05",
		"at 12am":               "00:00",
		"at 12pm":               "12:00",
		"at 7:15 pm":            "19:15",
		"at 23:10":              "23:10",
		"at midnight":           "00:00",
		"at noon":               "12:00",
		"this afternoon":        "",
		"afternoon walk":        "",
		"at 3pm this afternoon": "15:00",
		"after midnights":       "",
		"at 13pm":               "",
		"no time here":          "",
		"take 500mg now":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractTime(in), in)
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateRetrieving))
	assert.True(t, CanTransition(StateInvokingFallback, StateDegradedResponse))
	assert.False(t, CanTransition(StateRespondingFromMemory, StateInvokingFallback))
	assert.False(t, CanTransition(StateIdle, StateRecording))
}

func TestBullets(t *testing.T) {
	ts := time.Date(2025, 11, 28, 7, 45, 0, 0, time.UTC)
	event := func(id int64, typ model.EventType, payload any) *model.Event {
		return &model.Event{ID: id, Type: typ, Timestamp: ts, Payload: model.MustPayload(payload)}
	}

	tests := []struct {
		event *model.Event
		want  string
	}{
		{
			event(1, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Metformin", Time: "08:01", Date: "2025-11-28"}),
			"- Took Metformin at 08:01 on 2025-11-28 (#1)",
		},
		{
			event(2, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Aspirin"}),
			"- Took Aspirin at 07:45 on 2025-11-28 (#2)",
		},
		{
			event(3, model.TypeReminder, model.ReminderPayload{Medication: "Aspirin", Time: "21:00"}),
			"- Reminder: Aspirin at 21:00, daily (#3)",
		},
		{
			event(4, model.TypeDoctorAdvice, model.AdvicePayload{DoctorID: "rao", AdviceText: "Walk daily.", Specialties: []string{"Cardiology"}}),
			"- Doctor rao advised: Walk daily. [Cardiology] (#4)",
		},
		{
			event(5, model.TypePrescriptionSummary, model.PrescriptionPayload{Keywords: []string{"chest pain"}, SuggestedSpecialties: []string{"Cardiology"}}),
			"- Uploaded doc keywords: chest pain. Suggested: Cardiology (#5)",
		},
		{
			event(6, model.TypeConflictFlag, model.ConflictPayload{Code: "DUPLICATE_TIMING", Medication: "Aspirin", Message: "too close"}),
			"- Conflict DUPLICATE_TIMING: too close (#6)",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bullet(tt.event))
	}

	var many []*model.Event
	for i := int64(1); i <= 12; i++ {
		many = append(many, event(i, model.TypeReminder, model.ReminderPayload{Medication: "A", Time: "08:00"}))
	}
	assert.Len(t, splitLines(Summarize(many)), maxBullets)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
