package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// AdviceIngestor records doctor advice.
type AdviceIngestor struct {
	store store.Appender
	opts  options
}

// NewAdviceIngestor returns an ingestor appending to s.
func NewAdviceIngestor(s store.Appender, opts ...Option) *AdviceIngestor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &AdviceIngestor{store: s, opts: o}
}

// Ingest validates the advice and appends it as a doctor_advice event.
// Specialties outside the recognised vocabulary are kept and the event is
// marked unverified; advice is never rejected for its specialties alone.
func (a *AdviceIngestor) Ingest(ctx context.Context, doctorID, adviceText string, specialties []string) (*model.Event, error) {
	doctorID = strings.TrimSpace(doctorID)
	adviceText = strings.TrimSpace(adviceText)

	var ve model.ValidationError
	if doctorID == "" {
		ve.Add("doctor_id", "is required")
	}
	if adviceText == "" {
		ve.Add("advice_text", "is required")
	}
	names, unrecognized := a.resolveSpecialties(specialties)
	if len(names) == 0 {
		ve.Add("specialties", "at least one specialty is required")
	}
	if ve.HasErrors() {
		a.opts.audit.Record(ctx, audit.ComponentIngest, "ingest", audit.OutcomeFailed, "err", ve.Error())
		return nil, &ve
	}

	payload := model.AdvicePayload{
		DoctorID:                doctorID,
		AdviceText:              adviceText,
		Specialties:             names,
		UnverifiedSpecialty:     len(unrecognized) > 0,
		UnrecognizedSpecialties: unrecognized,
	}
	e, err := a.store.Append(ctx, model.TypeDoctorAdvice, model.MustPayload(payload))
	if err != nil {
		a.opts.audit.Record(ctx, audit.ComponentIngest, "ingest", audit.OutcomeFailed, "doctor_id", doctorID, "err", err)
		return nil, fmt.Errorf("recording advice: %w", err)
	}

	if payload.UnverifiedSpecialty {
		a.opts.logger.Info("advice has unrecognized specialties", "event_id", e.ID, "specialties", unrecognized)
	}
	a.opts.audit.Record(ctx, audit.ComponentIngest, "ingest", audit.OutcomeOK,
		"event_id", e.ID, "doctor_id", doctorID, "unverified_specialty", payload.UnverifiedSpecialty)
	return e, nil
}

// resolveSpecialties trims and de-duplicates the given names, spelling
// recognised ones the way the vocabulary does.
func (a *AdviceIngestor) resolveSpecialties(in []string) (names, unrecognized []string) {
	seen := make(map[string]bool)
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := textnorm.Name(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		canonical, ok := a.opts.rules.CanonicalSpecialty(s)
		if !ok {
			unrecognized = append(unrecognized, s)
		}
		names = append(names, canonical)
	}
	return names, unrecognized
}
