package engine

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// maxBullets caps the notes quoted in one answer.
const maxBullets = 8

// Bullet renders one event as a single line quoting its recorded fields.
func Bullet(e *model.Event) string {
	var line string
	switch e.Type {
	case model.TypeAdherenceLog:
		var p model.AdherencePayload
		_ = e.Decode(&p)
		day := p.Date
		if day == "" {
			day = e.Timestamp.Format("2006-01-02")
		}
		at := p.Time
		if at == "" {
			at = e.Timestamp.Format("15:04")
		}
		line = fmt.Sprintf("Took %s at %s on %s", p.Medication, at, day)
	case model.TypeReminder:
		var p model.ReminderPayload
		_ = e.Decode(&p)
		freq := p.Frequency
		if freq == "" {
			freq = "daily"
		}
		line = fmt.Sprintf("Reminder: %s at %s, %s", p.Medication, p.Time, freq)
		if !p.IsActive() {
			line += " (off)"
		}
	case model.TypeDoctorAdvice:
		var p model.AdvicePayload
		_ = e.Decode(&p)
		line = fmt.Sprintf("Doctor %s advised: %s", p.DoctorID, p.AdviceText)
		if len(p.Specialties) > 0 {
			line += " [" + strings.Join(p.Specialties, ", ") + "]"
		}
	case model.TypePrescriptionSummary:
		var p model.PrescriptionPayload
		_ = e.Decode(&p)
		kw := p.Keywords
		if len(kw) > 6 {
			kw = kw[:6]
		}
		line = fmt.Sprintf("Uploaded doc keywords: %s. Suggested: %s", strings.Join(kw, ", "), strings.Join(p.SuggestedSpecialties, ", "))
	case model.TypeConflictFlag:
		var p model.ConflictPayload
		_ = e.Decode(&p)
		line = fmt.Sprintf("Conflict %s: %s", p.Code, p.Message)
	case model.TypeInteractionLog:
		var p model.InteractionPayload
		_ = e.Decode(&p)
		line = fmt.Sprintf("Asked %q, answered %q", p.Query, p.Answer)
	default:
		line = fmt.Sprintf("%s: %s", e.Type, e.Payload)
	}
	return fmt.Sprintf("- %s (#%d)", line, e.ID)
}

// Summarize renders events as bullets, at most maxBullets of them.
func Summarize(events []*model.Event) string {
	if len(events) > maxBullets {
		events = events[:maxBullets]
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = Bullet(e)
	}
	return strings.Join(lines, "\n")
}
