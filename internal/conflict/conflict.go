// Package conflict checks a proposed reminder against the reminders already
// on record. Findings are advisory: they never stop a reminder from being
// stored.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/rules"
	"github.com/alfredjeanlab/medbuddy/internal/store"
	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// Finding codes, in the order the rules run.
const (
	CodeDuplicateTiming   = "DUPLICATE_TIMING"
	CodeFrequencyConflict = "FREQUENCY_CONFLICT"
	CodeInteractionRisk   = "INTERACTION_RISK"
	CodeSameTimeDosing    = "SAME_TIME_DOSING"
)

// DefaultMinSeparation is the closest two reminders for the same
// medication may be before they are reported as duplicates.
const DefaultMinSeparation = 2 * time.Hour

// DefaultFrequency applies to reminders that do not name one.
const DefaultFrequency = "daily"

// Candidate is a reminder that has been proposed but not yet stored.
type Candidate struct {
	Medication string `json:"medication"`
	Time       string `json:"time"`
	Frequency  string `json:"frequency,omitempty"`
}

// Validate checks the candidate's fields.
func (c Candidate) Validate() error {
	var ve model.ValidationError
	if textnorm.Name(c.Medication) == "" {
		ve.Add("medication", "is required")
	}
	if _, err := model.ParseClock(c.Time); err != nil {
		ve.Add("time", "must be HH:MM")
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// Finding is one advisory result of a check.
type Finding struct {
	Code            string  `json:"code"`
	Medication      string  `json:"medication"`
	Message         string  `json:"message"`
	OtherMedication string  `json:"other_medication,omitempty"`
	CandidateTime   string  `json:"candidate_time,omitempty"`
	Severity        string  `json:"severity,omitempty"`
	RelatedEventIDs []int64 `json:"related_event_ids,omitempty"`
}

// Payload converts the finding into a conflict_flag payload.
func (f Finding) Payload() model.ConflictPayload {
	return model.ConflictPayload{
		Code:            f.Code,
		Medication:      f.Medication,
		Message:         f.Message,
		OtherMedication: f.OtherMedication,
		CandidateTime:   f.CandidateTime,
		Severity:        f.Severity,
		RelatedEventIDs: slices.Clone(f.RelatedEventIDs),
	}
}

// Detector runs the conflict rules against an event store.
type Detector struct {
	store         store.Store
	rules         *rules.Rules
	minSeparation time.Duration
	logger        *slog.Logger
	audit         *audit.Recorder
}

// Option configures a Detector.
type Option func(*Detector)

// WithRules replaces the built-in rule tables.
func WithRules(r *rules.Rules) Option {
	return func(d *Detector) { d.rules = r }
}

// WithMinSeparation sets the duplicate-timing window.
func WithMinSeparation(sep time.Duration) Option {
	return func(d *Detector) { d.minSeparation = sep }
}

// WithLogger sets the detector's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// WithRecorder reports checks and flags to an audit recorder.
func WithRecorder(rec *audit.Recorder) Option {
	return func(d *Detector) { d.audit = rec }
}

// New returns a detector over s.
func New(s store.Store, opts ...Option) *Detector {
	d := &Detector{
		store:         s,
		rules:         rules.Default(),
		minSeparation: DefaultMinSeparation,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// schedule is an active reminder reduced to what the rules compare.
type schedule struct {
	id        int64
	name      string // textnorm.Name of the medication
	display   string
	minute    int
	time      string
	frequency string
}

// Check evaluates the candidate against every active reminder. It reads the
// store and has no other effect.
func (d *Detector) Check(ctx context.Context, c Candidate) ([]Finding, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	minute, _ := model.ParseClock(c.Time)
	name := textnorm.Name(c.Medication)
	freq := normalizeFrequency(c.Frequency)

	active, err := d.activeSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading reminders: %w", err)
	}

	var same, others []schedule
	for _, s := range active {
		if s.name == name {
			same = append(same, s)
		} else {
			others = append(others, s)
		}
	}

	var findings []Finding
	findings = append(findings, d.duplicateTiming(c, minute, same)...)
	findings = append(findings, frequencyConflict(c, freq, same)...)
	findings = append(findings, d.interactionRisk(c, others)...)
	findings = append(findings, sameTimeDosing(c, minute, others)...)

	d.logger.Debug("conflict check", "medication", c.Medication, "time", c.Time, "findings", len(findings))
	d.audit.Record(ctx, audit.ComponentConflict, "check", audit.OutcomeOK,
		"medication", c.Medication, "time", c.Time, "findings", codes(findings))
	return findings, nil
}

// Flag persists f as a conflict_flag event. Whether to flag is the caller's
// decision; Check never writes.
func (d *Detector) Flag(ctx context.Context, f Finding) (*model.Event, error) {
	e, err := d.store.Append(ctx, model.TypeConflictFlag, model.MustPayload(f.Payload()))
	if err != nil {
		d.audit.Record(ctx, audit.ComponentConflict, "flag", audit.OutcomeFailed, "code", f.Code, "err", err)
		return nil, fmt.Errorf("flagging %s: %w", f.Code, err)
	}
	d.audit.Record(ctx, audit.ComponentConflict, "flag", audit.OutcomeOK, "code", f.Code, "event_id", e.ID)
	return e, nil
}

// activeSchedules returns the reminders that are switched on and have not
// been corrected by a later event.
func (d *Detector) activeSchedules(ctx context.Context) ([]schedule, error) {
	reminders, err := d.store.ByType(ctx, model.TypeReminder)
	if err != nil {
		return nil, err
	}
	superseded := store.SupersededIDs(reminders)

	var out []schedule
	for _, e := range reminders {
		if superseded[e.ID] {
			continue
		}
		var p model.ReminderPayload
		if err := e.Decode(&p); err != nil {
			d.logger.Warn("skipping unreadable reminder", "id", e.ID, "err", err)
			continue
		}
		if !p.IsActive() {
			continue
		}
		minute, err := model.ParseClock(p.Time)
		if err != nil {
			d.logger.Warn("skipping reminder with bad time", "id", e.ID, "time", p.Time)
			continue
		}
		out = append(out, schedule{
			id:        e.ID,
			name:      textnorm.Name(p.Medication),
			display:   p.Medication,
			minute:    minute,
			time:      model.FormatClock(minute),
			frequency: normalizeFrequency(p.Frequency),
		})
	}
	return out, nil
}

func (d *Detector) duplicateTiming(c Candidate, minute int, same []schedule) []Finding {
	window := int(d.minSeparation / time.Minute)
	var hits []schedule
	for _, s := range same {
		if model.ClockDistance(s.minute, minute) < window {
			hits = append(hits, s)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	return []Finding{{
		Code:       CodeDuplicateTiming,
		Medication: c.Medication,
		Message: fmt.Sprintf("%s is already scheduled at %s, within %s of %s",
			c.Medication, joinTimes(hits), formatWindow(d.minSeparation), c.Time),
		CandidateTime:   c.Time,
		Severity:        "moderate",
		RelatedEventIDs: scheduleIDs(hits),
	}}
}

func frequencyConflict(c Candidate, freq string, same []schedule) []Finding {
	var hits []schedule
	for _, s := range same {
		if s.frequency != freq {
			hits = append(hits, s)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	return []Finding{{
		Code:       CodeFrequencyConflict,
		Medication: c.Medication,
		Message: fmt.Sprintf("%s is scheduled %s, but the new reminder is %s",
			c.Medication, hits[0].frequency, freq),
		CandidateTime:   c.Time,
		Severity:        "low",
		RelatedEventIDs: scheduleIDs(hits),
	}}
}

func (d *Detector) interactionRisk(c Candidate, others []schedule) []Finding {
	var findings []Finding
	for _, pair := range d.rules.AntagonistsOf(c.Medication) {
		partner := rules.BaseName(pair.Other(c.Medication))
		var hits []schedule
		for _, s := range others {
			if rules.BaseName(s.name) == partner {
				hits = append(hits, s)
			}
		}
		if len(hits) == 0 {
			continue
		}
		msg := fmt.Sprintf("%s interacts with %s", c.Medication, hits[0].display)
		if pair.Note != "" {
			msg += ": " + pair.Note
		}
		findings = append(findings, Finding{
			Code:            CodeInteractionRisk,
			Medication:      c.Medication,
			Message:         msg,
			OtherMedication: hits[0].display,
			CandidateTime:   c.Time,
			Severity:        pair.Severity,
			RelatedEventIDs: scheduleIDs(hits),
		})
	}
	return findings
}

// sameTimeDosing reports other medications due at exactly the candidate's
// time.
func sameTimeDosing(c Candidate, minute int, others []schedule) []Finding {
	var findings []Finding
	seen := make(map[string]int)
	for _, s := range others {
		if s.minute != minute {
			continue
		}
		if i, ok := seen[s.name]; ok {
			findings[i].RelatedEventIDs = append(findings[i].RelatedEventIDs, s.id)
			continue
		}
		seen[s.name] = len(findings)
		findings = append(findings, Finding{
			Code:            CodeSameTimeDosing,
			Medication:      c.Medication,
			Message:         fmt.Sprintf("%s and %s are both due at %s", c.Medication, s.display, s.time),
			OtherMedication: s.display,
			CandidateTime:   c.Time,
			Severity:        "low",
			RelatedEventIDs: []int64{s.id},
		})
	}
	return findings
}

func normalizeFrequency(f string) string {
	if n := textnorm.Name(f); n != "" {
		return n
	}
	return DefaultFrequency
}

func scheduleIDs(ss []schedule) []int64 {
	ids := make([]int64, len(ss))
	for i, s := range ss {
		ids[i] = s.id
	}
	return ids
}

func joinTimes(ss []schedule) string {
	times := make([]string, len(ss))
	for i, s := range ss {
		times[i] = s.time
	}
	return textnorm.JoinList(times)
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

func codes(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Code
	}
	return out
}
