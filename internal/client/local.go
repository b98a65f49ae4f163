package client

import (
	"context"

	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/session"
)

// Local implements Client directly over a session, without a server.
type Local struct {
	sess *session.Session
}

var _ Client = (*Local)(nil)

// NewLocal returns a client over sess. Close closes the session.
func NewLocal(sess *session.Session) *Local {
	return &Local{sess: sess}
}

func (l *Local) Ask(ctx context.Context, query string) (*engine.Response, error) {
	return l.sess.Ask(ctx, query)
}

func (l *Local) AddAdvice(ctx context.Context, req *AdviceRequest) (*model.Event, error) {
	return l.sess.AddAdvice(ctx, req.DoctorID, req.AdviceText, req.Specialties)
}

func (l *Local) IngestDocument(ctx context.Context, path string) (*model.Event, error) {
	return l.sess.IngestDocument(ctx, path)
}

func (l *Local) CheckReminder(ctx context.Context, req *ReminderRequest) ([]conflict.Finding, error) {
	return l.sess.CheckReminder(ctx, req.candidate())
}

func (l *Local) AddReminder(ctx context.Context, req *ReminderRequest) (*session.ReminderResult, error) {
	return l.sess.AddReminder(ctx, req.candidate(), req.Dose)
}

func (l *Local) ListEvents(ctx context.Context, req *ListEventsRequest) ([]*model.Event, error) {
	events, err := l.sess.Events(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && req.Limit < len(events) {
		events = events[len(events)-req.Limit:]
	}
	return events, nil
}

func (l *Local) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	return l.sess.Event(ctx, id)
}

func (l *Local) RecentAdherence(ctx context.Context, n int) ([]*model.Event, error) {
	return l.sess.RecentAdherence(ctx, n)
}

func (l *Local) Health(context.Context) (string, error) {
	return "ok", nil
}

func (l *Local) Close() error {
	return l.sess.Close()
}
