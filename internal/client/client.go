// Package client provides a transport-agnostic interface for the medbuddy
// assistant, an HTTP/JSON implementation that talks to the medbuddy REST API
// and a local implementation over an open session.
package client

import (
	"context"

	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/session"
)

// Client is the interface that all medbuddy CLI commands use. It is
// implemented by HTTPClient and Local.
type Client interface {
	Ask(ctx context.Context, query string) (*engine.Response, error)
	AddAdvice(ctx context.Context, req *AdviceRequest) (*model.Event, error)
	IngestDocument(ctx context.Context, path string) (*model.Event, error)
	CheckReminder(ctx context.Context, req *ReminderRequest) ([]conflict.Finding, error)
	AddReminder(ctx context.Context, req *ReminderRequest) (*session.ReminderResult, error)
	ListEvents(ctx context.Context, req *ListEventsRequest) ([]*model.Event, error)
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	RecentAdherence(ctx context.Context, n int) ([]*model.Event, error)
	Health(ctx context.Context) (string, error)
	Close() error
}

// AdviceRequest carries a doctor's instruction.
type AdviceRequest struct {
	DoctorID    string   `json:"doctor_id"`
	AdviceText  string   `json:"advice_text"`
	Specialties []string `json:"specialties"`
}

// ReminderRequest describes a proposed reminder.
type ReminderRequest struct {
	Medication string `json:"medication"`
	Dose       string `json:"dose,omitempty"`
	Time       string `json:"time"`
	Frequency  string `json:"frequency,omitempty"`
}

func (r *ReminderRequest) candidate() conflict.Candidate {
	return conflict.Candidate{Medication: r.Medication, Time: r.Time, Frequency: r.Frequency}
}

// ListEventsRequest filters an event listing. Limit keeps only the most
// recent events; zero means all.
type ListEventsRequest struct {
	Type  model.EventType
	Limit int
}
