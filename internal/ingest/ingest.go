// Package ingest turns doctor advice and uploaded documents into events.
package ingest

import (
	"log/slog"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/llm"
	"github.com/alfredjeanlab/medbuddy/internal/rules"
)

// DefaultModelTimeout bounds the specialty-suggestion model call.
const DefaultModelTimeout = 20 * time.Second

// ExcerptLength is the number of characters of a document kept verbatim.
const ExcerptLength = 500

type options struct {
	rules        *rules.Rules
	logger       *slog.Logger
	audit        *audit.Recorder
	generator    llm.Generator
	modelTimeout time.Duration
}

func defaultOptions() options {
	return options{
		rules:        rules.Default(),
		logger:       slog.Default(),
		modelTimeout: DefaultModelTimeout,
	}
}

// Option configures an ingestor.
type Option func(*options)

// WithRules replaces the built-in specialty vocabulary and map.
func WithRules(r *rules.Rules) Option {
	return func(o *options) { o.rules = r }
}

// WithLogger sets the ingestor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder reports ingestions to an audit recorder.
func WithRecorder(rec *audit.Recorder) Option {
	return func(o *options) { o.audit = rec }
}

// WithGenerator lets the document ingestor ask a model for specialties when
// the specialty map has no match.
func WithGenerator(g llm.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithModelTimeout bounds the model call.
func WithModelTimeout(d time.Duration) Option {
	return func(o *options) { o.modelTimeout = d }
}
