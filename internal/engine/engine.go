// Package engine is the memory-first decision engine. A query is answered
// from the event store whenever local memory is strong enough; only
// otherwise is the external model asked, and when the model fails too the
// user still gets a useful, degraded answer. Every answer is recorded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/idgen"
	"github.com/alfredjeanlab/medbuddy/internal/llm"
	"github.com/alfredjeanlab/medbuddy/internal/metrics"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/retrieval"
	"github.com/alfredjeanlab/medbuddy/internal/store"
)

// Config tunes the engine.
type Config struct {
	// ContextEvents is the number of retrieved events sent to the model.
	ContextEvents int
	// ModelTimeout bounds each model attempt.
	ModelTimeout time.Duration
	// Options configures the first model attempt.
	Options llm.Options
	// StrictMaxOutputTokens is the output budget of the retry.
	StrictMaxOutputTokens int
	// PersistConflictFlags stores conflict findings as conflict_flag events.
	PersistConflictFlags bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ContextEvents:         retrieval.DefaultContextSize,
		ModelTimeout:          30 * time.Second,
		Options:               llm.DefaultOptions(),
		StrictMaxOutputTokens: 2 * llm.DefaultMaxOutputTokens,
		PersistConflictFlags:  true,
	}
}

// Response is the outcome of one query.
type Response struct {
	RequestID      string             `json:"request_id"`
	Query          string             `json:"query"`
	Answer         string             `json:"answer"`
	Source         Source             `json:"source"`
	State          State              `json:"state"`
	Classification Classification     `json:"classification"`
	Citations      []int64            `json:"citations,omitempty"`
	Findings       []conflict.Finding `json:"findings,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	Recorded       *model.Event       `json:"recorded,omitempty"`
	Flags          []*model.Event     `json:"flags,omitempty"`
	ModelAttempts  int                `json:"model_attempts,omitempty"`
	Transitions    []State            `json:"transitions"`
}

// Engine handles queries against one event store.
type Engine struct {
	store     store.Store
	retriever *retrieval.Retriever
	detector  *conflict.Detector
	generator llm.Generator
	cfg       Config
	logger    *slog.Logger
	audit     *audit.Recorder
	metrics   *metrics.Metrics
	clock     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder reports every transition to an audit recorder.
func WithRecorder(rec *audit.Recorder) Option {
	return func(e *Engine) { e.audit = rec }
}

// WithMetrics records engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the clock used for "today" and for logged doses.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithDetector replaces the default conflict detector.
func WithDetector(d *conflict.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// New returns an engine over s that falls back to gen. A nil gen behaves
// like an unreachable model.
func New(s store.Store, gen llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		generator: gen,
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.generator == nil {
		e.generator = llm.Offline{}
	}
	if e.cfg.ContextEvents <= 0 {
		e.cfg.ContextEvents = retrieval.DefaultContextSize
	}
	e.retriever = retrieval.New(s, retrieval.WithClock(e.clock), retrieval.WithLogger(e.logger))
	if e.detector == nil {
		e.detector = conflict.New(s, conflict.WithLogger(e.logger), conflict.WithRecorder(e.audit))
	}
	return e
}

// run tracks one query through the state machine.
type run struct {
	e      *Engine
	id     string
	state  State
	trail  []State
	logger *slog.Logger
}

func (r *run) enter(ctx context.Context, to State, outcome string, kv ...any) {
	if !CanTransition(r.state, to) {
		r.logger.Error("invalid engine transition", "from", r.state, "to", to)
	}
	r.state = to
	r.trail = append(r.trail, to)
	r.e.audit.Record(ctx, audit.ComponentEngine, strings.ToLower(string(to)), outcome,
		append([]any{"request_id", r.id}, kv...)...)
}

// HandleQuery answers query. The only error returned for a query that was
// processed is a *model.ValidationError for blank input; a cancelled
// context returns the context's error and records nothing. Model and
// storage failures are folded into the Response.
func (e *Engine) HandleQuery(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		ve := &model.ValidationError{}
		ve.Add("query", "is required")
		return nil, ve
	}

	started := time.Now()
	r := &run{e: e, id: idgen.Request(), state: StateIdle}
	r.logger = e.logger.With("request_id", r.id)
	resp := &Response{RequestID: r.id, Query: query, Classification: Classify(query)}

	r.enter(ctx, StateRetrieving, audit.OutcomeOK)
	matches := e.retrieve(ctx, r, query)
	sufficient := retrieval.Sufficient(retrieval.ParseQuery(query), matches)

	c := resp.Classification
	if c.CanSchedule() {
		resp.Findings = e.checkConflicts(ctx, r, c)
	}

	switch {
	case c.CanLog() || c.CanSchedule():
		r.enter(ctx, StateRespondingFromMemory, audit.OutcomeOK, "intent", string(c.Intent))
		resp.Answer = e.confirmation(c, resp.Findings)
		resp.Source = SourceMemory
	case len(sufficient) > 0:
		r.enter(ctx, StateRespondingFromMemory, audit.OutcomeOK, "matches", len(sufficient))
		cited := retrieval.TopK(sufficient, maxBullets)
		resp.Answer = memoryAnswer(cited)
		resp.Citations = eventIDs(cited)
		resp.Source = SourceMemory
	default:
		r.enter(ctx, StateInvokingFallback, audit.OutcomeOK, "context_events", min(len(matches), e.cfg.ContextEvents))
		contextEvents := retrieval.TopK(matches, e.cfg.ContextEvents)
		answer, attempts, err := e.fallback(ctx, r, query, contextEvents)
		resp.ModelAttempts = attempts
		if err == nil {
			resp.Answer = answer
			resp.Citations = eventIDs(contextEvents)
			resp.Source = SourceModel
			break
		}
		r.enter(ctx, StateDegradedResponse, audit.OutcomeFailed, "kind", string(llm.KindOf(err)), "err", err)
		var best *model.Event
		if len(matches) > 0 {
			best = matches[0].Event
			resp.Citations = []int64{best.ID}
		}
		resp.Answer = degradedAnswer(best)
		resp.Source = SourceDegraded
	}
	resp.State = r.state

	if err := ctx.Err(); err != nil {
		r.enter(ctx, StateIdle, audit.OutcomeSkipped, "reason", "cancelled")
		r.logger.Info("query cancelled before recording", "err", err)
		return nil, fmt.Errorf("query cancelled: %w", err)
	}

	r.enter(ctx, StateRecording, audit.OutcomeOK)
	e.record(ctx, r, resp)
	r.enter(ctx, StateIdle, audit.OutcomeOK)
	resp.Transitions = r.trail

	e.metrics.ObserveQuery(string(resp.Source), time.Since(started))
	r.logger.Info("query handled", "source", resp.Source, "intent", c.Intent, "citations", resp.Citations, "warnings", len(resp.Warnings))
	return resp, nil
}

// retrieve runs the search. A failed search is logged and treated as an
// empty result.
func (e *Engine) retrieve(ctx context.Context, r *run, query string) []retrieval.Match {
	matches, err := e.retriever.Search(ctx, query)
	if err != nil {
		var re *retrieval.Error
		if !errors.As(err, &re) {
			err = &retrieval.Error{Query: query, Err: err}
		}
		r.logger.Warn("retrieval failed, continuing without memory", "err", err)
		e.audit.Record(ctx, audit.ComponentEngine, "retrieval_failure", audit.OutcomeFailed, "request_id", r.id, "err", err)
		e.metrics.RetrievalFailed()
		return nil
	}
	return matches
}

func (e *Engine) checkConflicts(ctx context.Context, r *run, c Classification) []conflict.Finding {
	findings, err := e.detector.Check(ctx, conflict.Candidate{Medication: c.Medication, Time: c.Time, Frequency: c.Frequency})
	if err != nil {
		r.logger.Warn("conflict check failed", "err", err)
		return nil
	}
	for _, f := range findings {
		e.metrics.Finding(f.Code)
	}
	return findings
}

// fallback asks the model, retrying once with the strict configuration.
func (e *Engine) fallback(ctx context.Context, r *run, query string, contextEvents []*model.Event) (string, int, error) {
	attempts := []struct {
		label string
		opts  llm.Options
	}{
		{"first", e.cfg.Options},
		{"retry", e.cfg.Options.Strict(e.cfg.StrictMaxOutputTokens)},
	}

	var lastErr error
	n := 0
	for _, a := range attempts {
		if ctx.Err() != nil {
			break
		}
		n++
		text, err := e.generate(ctx, query, contextEvents, a.opts)
		if err == nil {
			e.metrics.ModelCall(a.label, "ok")
			return text, n, nil
		}
		lastErr = err
		e.metrics.ModelCall(a.label, string(llm.KindOf(err)))
		r.logger.Warn("model attempt failed", "attempt", a.label, "provider", e.generator.Name(), "kind", llm.KindOf(err), "err", err)
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", n, lastErr
}

// generate makes one bounded model call. Every failure, including an empty
// reply or a panic in the provider, comes back as an *llm.Error.
func (e *Engine) generate(ctx context.Context, query string, contextEvents []*model.Event, opts llm.Options) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = &llm.Error{Kind: llm.KindUnavailable, Provider: e.generator.Name(), Msg: fmt.Sprintf("provider panicked: %v", p)}
		}
	}()

	text, err = e.generator.Generate(ctx, query, contextEvents, opts)
	if err != nil {
		var le *llm.Error
		if !errors.As(err, &le) {
			err = &llm.Error{Kind: llm.KindUnavailable, Provider: e.generator.Name(), Msg: "request failed", Err: err}
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &llm.Error{Kind: llm.KindMalformed, Provider: e.generator.Name(), Msg: "empty answer"}
	}
	return text, nil
}

// record appends the event describing this query. Failures become warnings;
// the answer stands.
func (e *Engine) record(ctx context.Context, r *run, resp *Response) {
	t, payload := e.recordFor(resp)
	ev, err := e.store.Append(ctx, t, model.MustPayload(payload))
	if err != nil {
		resp.Warnings = append(resp.Warnings, "your answer was not saved: "+err.Error())
		e.metrics.RecordFailed()
		r.logger.Error("recording failed", "type", t, "err", err)
		e.audit.Record(ctx, audit.ComponentEngine, "record", audit.OutcomeFailed, "request_id", r.id, "type", string(t), "err", err)
	} else {
		resp.Recorded = ev
		e.metrics.Recorded(string(t))
		e.audit.Record(ctx, audit.ComponentEngine, "record", audit.OutcomeOK, "request_id", r.id, "type", string(t), "event_id", ev.ID)
	}

	if !e.cfg.PersistConflictFlags {
		return
	}
	for _, f := range resp.Findings {
		if ev != nil {
			f.RelatedEventIDs = append(slices.Clone(f.RelatedEventIDs), ev.ID)
		}
		flag, err := e.detector.Flag(ctx, f)
		if err != nil {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("conflict %s was not saved: %v", f.Code, err))
			continue
		}
		resp.Flags = append(resp.Flags, flag)
	}
}

// recordFor picks the event type and payload for resp: a dose for a
// took-intent query, a reminder for a remind-intent query, otherwise an
// interaction log.
func (e *Engine) recordFor(resp *Response) (model.EventType, any) {
	c := resp.Classification
	now := e.clock()
	switch {
	case c.CanLog():
		day := now
		at := c.Time
		if c.Yesterday {
			day = now.AddDate(0, 0, -1)
		} else if at == "" {
			at = now.Format("15:04")
		}
		return model.TypeAdherenceLog, model.AdherencePayload{
			Medication: c.Medication,
			Dose:       c.Dose,
			Time:       at,
			Date:       day.Format(time.DateOnly),
			Frequency:  c.Frequency,
			Query:      resp.Query,
			Answer:     resp.Answer,
		}
	case c.CanSchedule():
		freq := c.Frequency
		if freq == "" {
			freq = conflict.DefaultFrequency
		}
		return model.TypeReminder, model.ReminderPayload{
			Medication: c.Medication,
			Dose:       c.Dose,
			Time:       c.Time,
			Frequency:  freq,
			Query:      resp.Query,
		}
	}
	return model.TypeInteractionLog, model.InteractionPayload{
		Query:          resp.Query,
		Answer:         resp.Answer,
		Source:         string(resp.Source),
		Classification: string(c.Intent),
		Citations:      resp.Citations,
		Warnings:       resp.Warnings,
	}
}

// RecentAdherence returns the n most recent adherence logs, newest first.
func (e *Engine) RecentAdherence(ctx context.Context, n int) ([]*model.Event, error) {
	logs, err := e.store.ByType(ctx, model.TypeAdherenceLog)
	if err != nil {
		return nil, fmt.Errorf("loading adherence logs: %w", err)
	}
	n = max(n, 0)
	out := make([]*model.Event, 0, min(n, len(logs)))
	for i := len(logs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, logs[i])
	}
	return out, nil
}

func eventIDs(events []*model.Event) []int64 {
	if len(events) == 0 {
		return nil
	}
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}
