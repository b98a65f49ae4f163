package model

import (
	"encoding/json"
	"fmt"
)

// ReminderPayload is the payload of a reminder event.
type ReminderPayload struct {
	Medication string `json:"medication"`
	Dose       string `json:"dose,omitempty"`
	Time       string `json:"time"`
	Frequency  string `json:"frequency,omitempty"`
	Active     *bool  `json:"active,omitempty"`
	Query      string `json:"query,omitempty"`
}

// IsActive reports whether the reminder is active; reminders are active
// unless explicitly switched off.
func (p ReminderPayload) IsActive() bool {
	return p.Active == nil || *p.Active
}

// AdherencePayload is the payload of an adherence_log event.
type AdherencePayload struct {
	Medication string `json:"medication"`
	Dose       string `json:"dose,omitempty"`
	Time       string `json:"time,omitempty"`
	Date       string `json:"date,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
	Query      string `json:"query,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

// AdvicePayload is the payload of a doctor_advice event.
type AdvicePayload struct {
	DoctorID                string   `json:"doctor_id"`
	AdviceText              string   `json:"advice_text"`
	Specialties             []string `json:"specialties"`
	UnverifiedSpecialty     bool     `json:"unverified_specialty,omitempty"`
	UnrecognizedSpecialties []string `json:"unrecognized_specialties,omitempty"`
}

// PrescriptionPayload is the payload of a prescription_summary event.
type PrescriptionPayload struct {
	Keywords             []string `json:"keywords"`
	SuggestedSpecialties []string `json:"suggested_specialties"`
	RawExcerpt           string   `json:"raw_excerpt,omitempty"`
	Source               string   `json:"source,omitempty"`
}

// ConflictPayload is the payload of a conflict_flag event.
type ConflictPayload struct {
	Code            string  `json:"code"`
	Medication      string  `json:"medication"`
	Message         string  `json:"message"`
	OtherMedication string  `json:"other_medication,omitempty"`
	CandidateTime   string  `json:"candidate_time,omitempty"`
	Severity        string  `json:"severity,omitempty"`
	RelatedEventIDs []int64 `json:"related_event_ids,omitempty"`
}

// InteractionPayload is the payload of an interaction_log event.
type InteractionPayload struct {
	Query          string   `json:"query"`
	Answer         string   `json:"answer"`
	Source         string   `json:"source"`
	Classification string   `json:"classification,omitempty"`
	Citations      []int64  `json:"citations,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// MustPayload marshals v for use as an event payload. It panics only on
// values encoding/json cannot represent, which the payload types above never
// contain.
func MustPayload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("model: marshal payload: %v", err))
	}
	return data
}
