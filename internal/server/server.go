package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/session"
)

// Assistant is what the server exposes. *session.Session implements it.
type Assistant interface {
	Ask(ctx context.Context, query string) (*engine.Response, error)
	AddAdvice(ctx context.Context, doctorID, adviceText string, specialties []string) (*model.Event, error)
	IngestDocument(ctx context.Context, path string) (*model.Event, error)
	IngestText(ctx context.Context, source, text string) (*model.Event, error)
	CheckReminder(ctx context.Context, c conflict.Candidate) ([]conflict.Finding, error)
	AddReminder(ctx context.Context, c conflict.Candidate, dose string) (*session.ReminderResult, error)
	Events(ctx context.Context, t model.EventType) ([]*model.Event, error)
	Event(ctx context.Context, id int64) (*model.Event, error)
	RecentAdherence(ctx context.Context, n int) ([]*model.Event, error)
}

var _ Assistant = (*session.Session)(nil)

// Server serves an Assistant over HTTP and gRPC.
type Server struct {
	assistant Assistant
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	recorder  *audit.Recorder
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes the metrics of g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRecorder audits every HTTP request and RPC through rec.
func WithRecorder(rec *audit.Recorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// New returns a Server for a.
func New(a Assistant, opts ...Option) *Server {
	s := &Server{assistant: a, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// statusFor maps an assistant error to an HTTP status.
func statusFor(err error) int {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status it maps to. Server-side failures are
// logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, code, map[string]any{"error": ve.Error(), "fields": ve.Errors})
		return
	}
	writeError(w, code, err.Error())
}
