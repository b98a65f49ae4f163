package model

import (
	"encoding/json"

	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// typeTags are added to every event of a type so that generic questions
// ("what did my doctor say?", "which meds have I taken?") reach it.
var typeTags = map[EventType][]string{
	TypeReminder:            {"remind", "reminder", "schedule", "scheduled"},
	TypeAdherenceLog:        {"took", "taken", "adherence"},
	TypeDoctorAdvice:        {"doctor", "advice", "advised"},
	TypePrescriptionSummary: {"prescription", "document", "specialist", "specialty"},
	TypeConflictFlag:        {"conflict", "interaction"},
}

// DeriveKeywords computes the searchable token set of an event from its type
// and payload. It is a pure function: the same inputs always produce the
// same sorted, de-duplicated slice. Interaction logs deliberately carry no
// content keywords so earlier model answers are never served back as memory.
func DeriveKeywords(t EventType, payload json.RawMessage) []string {
	lists := [][]string{typeTags[t]}

	switch t {
	case TypeReminder:
		var p ReminderPayload
		_ = json.Unmarshal(payload, &p)
		lists = append(lists, textnorm.Tokens(p.Medication), textnorm.Tokens(p.Dose), textnorm.Content(p.Frequency))
	case TypeAdherenceLog:
		var p AdherencePayload
		_ = json.Unmarshal(payload, &p)
		lists = append(lists, textnorm.Tokens(p.Medication), textnorm.Tokens(p.Dose), textnorm.Content(p.Frequency))
	case TypeDoctorAdvice:
		var p AdvicePayload
		_ = json.Unmarshal(payload, &p)
		lists = append(lists, textnorm.Tokens(p.DoctorID), textnorm.Content(p.AdviceText))
		for _, s := range p.Specialties {
			lists = append(lists, textnorm.Tokens(s))
		}
	case TypePrescriptionSummary:
		var p PrescriptionPayload
		_ = json.Unmarshal(payload, &p)
		for _, k := range p.Keywords {
			lists = append(lists, textnorm.Content(k))
		}
		for _, s := range p.SuggestedSpecialties {
			lists = append(lists, textnorm.Tokens(s))
		}
	case TypeConflictFlag:
		var p ConflictPayload
		_ = json.Unmarshal(payload, &p)
		lists = append(lists, textnorm.Tokens(p.Medication), textnorm.Tokens(p.OtherMedication))
	}

	return textnorm.Set(lists...)
}
