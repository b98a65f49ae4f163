// Package session owns the collaborators of one assistant run: it opens the
// event store at start, wires the retriever, conflict detector, ingestors and
// decision engine around it, and closes everything at the end.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/config"
	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/ingest"
	"github.com/alfredjeanlab/medbuddy/internal/llm"
	"github.com/alfredjeanlab/medbuddy/internal/metrics"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/rules"
	"github.com/alfredjeanlab/medbuddy/internal/store"
	"github.com/alfredjeanlab/medbuddy/internal/store/filestore"
	"github.com/alfredjeanlab/medbuddy/internal/store/postgres"
)

// Session is an open event store plus everything that works on it.
type Session struct {
	store     store.Store
	publisher audit.Publisher
	recorder  *audit.Recorder
	rules     *rules.Rules
	detector  *conflict.Detector
	engine    *engine.Engine
	advice    *ingest.AdviceIngestor
	documents *ingest.DocumentIngestor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       *config.Config
}

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	generator  llm.Generator
	store      store.Store
	publishers []audit.Publisher
	clock      func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer registers the session's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithGenerator replaces the configured model provider.
func WithGenerator(g llm.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithStore uses s instead of opening the configured backend. The session
// still closes it.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithPublisher adds an audit destination.
func WithPublisher(p audit.Publisher) Option {
	return func(o *options) { o.publishers = append(o.publishers, p) }
}

// WithClock sets the clock used for timestamps and "today".
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// Open opens the store described by cfg and wires the assistant around it.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	r, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	gen := o.generator
	if gen == nil {
		gen, err = llm.New(llm.Config{
			Provider:      cfg.Model.Provider,
			APIKey:        cfg.Model.APIKey,
			BaseURL:       cfg.Model.BaseURL,
			Model:         cfg.Model.Model,
			RatePerMinute: cfg.Model.RatePerMinute,
			HTTPTimeout:   cfg.Model.Timeout + 5*time.Second,
		})
		if err != nil {
			return nil, err
		}
	}

	raw := o.store
	if raw == nil {
		raw, err = openStore(cfg, o.clock, logger)
		if err != nil {
			return nil, err
		}
	}

	m := metrics.New(o.registerer)

	publisher, err := openPublisher(cfg, o.publishers, logger, m)
	if err != nil {
		raw.Close()
		return nil, err
	}
	rec := audit.NewRecorder(publisher, logger)
	s := audit.WrapStore(raw, rec)

	detector := conflict.New(s,
		conflict.WithRules(r),
		conflict.WithMinSeparation(cfg.Conflict.MinSeparation),
		conflict.WithLogger(logger),
		conflict.WithRecorder(rec),
	)

	modelOpts := llm.DefaultOptions()
	modelOpts.MaxOutputTokens = cfg.Model.MaxOutputTokens
	eng := engine.New(s, gen,
		engine.WithConfig(engine.Config{
			ContextEvents:         cfg.Engine.ContextEvents,
			ModelTimeout:          cfg.Model.Timeout,
			Options:               modelOpts,
			StrictMaxOutputTokens: cfg.Model.StrictMaxOutputTokens,
			PersistConflictFlags:  cfg.Engine.PersistConflictFlags,
		}),
		engine.WithLogger(logger),
		engine.WithRecorder(rec),
		engine.WithMetrics(m),
		engine.WithClock(o.clock),
		engine.WithDetector(detector),
	)

	ingestOpts := []ingest.Option{
		ingest.WithRules(r),
		ingest.WithLogger(logger),
		ingest.WithRecorder(rec),
		ingest.WithGenerator(gen),
		ingest.WithModelTimeout(cfg.Model.Timeout),
	}

	logger.Info("session opened",
		"backend", cfg.Store.Backend,
		"model", gen.Name(),
	)

	return &Session{
		store:     s,
		publisher: publisher,
		recorder:  rec,
		rules:     r,
		detector:  detector,
		engine:    eng,
		advice:    ingest.NewAdviceIngestor(s, ingestOpts...),
		documents: ingest.NewDocumentIngestor(s, ingestOpts...),
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

func openStore(cfg *config.Config, clock func() time.Time, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		s, err := postgres.New(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s.WithClock(clock), nil
	case "file", "":
		return filestore.Open(cfg.Store.Path, filestore.WithClock(clock), filestore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openPublisher fans audit records out to the configured sinks behind an
// asynchronous queue.
func openPublisher(cfg *config.Config, extra []audit.Publisher, logger *slog.Logger, m *metrics.Metrics) (audit.Publisher, error) {
	sinks := audit.Multi{&audit.LogPublisher{Logger: logger}}
	if cfg.Audit.File != "" {
		p, err := audit.NewJSONLPublisher(cfg.Audit.File)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p)
	}
	if cfg.Audit.NATSURL != "" {
		p, err := audit.NewNATSPublisher(cfg.Audit.NATSURL)
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("connect audit NATS: %w", err)
		}
		sinks = append(sinks, p)
		logger.Info("audit events enabled", "nats_url", cfg.Audit.NATSURL)
	}
	sinks = append(sinks, extra...)
	return audit.NewAsync(sinks, cfg.Audit.BufferSize, logger, m.AuditDropped), nil
}

// Close flushes the audit queue and closes the store.
func (s *Session) Close() error {
	return errors.Join(s.publisher.Close(), s.store.Close())
}

// Store returns the audited event store.
func (s *Session) Store() store.Store { return s.store }

// Engine returns the decision engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Rules returns the loaded rule set.
func (s *Session) Rules() *rules.Rules { return s.rules }

// Metrics returns the session's metrics.
func (s *Session) Metrics() *metrics.Metrics { return s.metrics }

// Recorder returns the audit recorder.
func (s *Session) Recorder() *audit.Recorder { return s.recorder }

// Ask runs one query through the decision engine.
func (s *Session) Ask(ctx context.Context, query string) (*engine.Response, error) {
	return s.engine.HandleQuery(ctx, query)
}

// AddAdvice records a doctor's instruction.
func (s *Session) AddAdvice(ctx context.Context, doctorID, adviceText string, specialties []string) (*model.Event, error) {
	e, err := s.advice.Ingest(ctx, doctorID, adviceText, specialties)
	if err != nil {
		return nil, err
	}
	s.metrics.Recorded(string(e.Type))
	return e, nil
}

// IngestDocument extracts the text of the file at path and records a
// prescription summary.
func (s *Session) IngestDocument(ctx context.Context, path string) (*model.Event, error) {
	e, err := s.documents.IngestFile(ctx, path)
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentProcessed()
	s.metrics.Recorded(string(e.Type))
	return e, nil
}

// IngestText records a prescription summary for already extracted text.
func (s *Session) IngestText(ctx context.Context, source, text string) (*model.Event, error) {
	e, err := s.documents.Ingest(ctx, source, text)
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentProcessed()
	s.metrics.Recorded(string(e.Type))
	return e, nil
}

// CheckReminder reports conflicts a new reminder would raise without
// recording anything.
func (s *Session) CheckReminder(ctx context.Context, c conflict.Candidate) ([]conflict.Finding, error) {
	findings, err := s.detector.Check(ctx, c)
	if err != nil {
		return nil, err
	}
	for _, f := range findings {
		s.metrics.Finding(f.Code)
	}
	return findings, nil
}

// ReminderResult is the outcome of AddReminder.
type ReminderResult struct {
	Reminder *model.Event      `json:"reminder"`
	Findings []conflict.Finding `json:"findings,omitempty"`
	Flags    []*model.Event     `json:"flags,omitempty"`
}

// AddReminder checks a reminder for conflicts, then records it. Findings
// never block the reminder; they are persisted as conflict flags when the
// configuration asks for it.
func (s *Session) AddReminder(ctx context.Context, c conflict.Candidate, dose string) (*ReminderResult, error) {
	findings, err := s.CheckReminder(ctx, c)
	if err != nil {
		return nil, err
	}

	freq := c.Frequency
	if freq == "" {
		freq = conflict.DefaultFrequency
	}
	e, err := s.store.Append(ctx, model.TypeReminder, model.MustPayload(model.ReminderPayload{
		Medication: c.Medication,
		Dose:       dose,
		Time:       c.Time,
		Frequency:  freq,
	}))
	if err != nil {
		s.metrics.RecordFailed()
		return nil, err
	}
	s.metrics.Recorded(string(e.Type))

	res := &ReminderResult{Reminder: e, Findings: findings}
	if !s.cfg.Engine.PersistConflictFlags {
		return res, nil
	}
	for _, f := range findings {
		f.RelatedEventIDs = append(f.RelatedEventIDs, e.ID)
		flag, err := s.detector.Flag(ctx, f)
		if err != nil {
			s.logger.Warn("failed to persist conflict flag", "code", f.Code, "err", err)
			continue
		}
		s.metrics.Recorded(string(flag.Type))
		res.Flags = append(res.Flags, flag)
	}
	return res, nil
}

// Events lists events in creation order, optionally of one type.
func (s *Session) Events(ctx context.Context, t model.EventType) ([]*model.Event, error) {
	if t == "" {
		return s.store.All(ctx)
	}
	return s.store.ByType(ctx, t)
}

// RecentAdherence returns the n most recent adherence logs, newest first.
func (s *Session) RecentAdherence(ctx context.Context, n int) ([]*model.Event, error) {
	return s.engine.RecentAdherence(ctx, n)
}

// Event returns one event by id.
func (s *Session) Event(ctx context.Context, id int64) (*model.Event, error) {
	return s.store.Get(ctx, id)
}
