package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/docs"
	"github.com/alfredjeanlab/medbuddy/internal/llm"
	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// maxModelSpecialties caps how many model suggestions are kept.
const maxModelSpecialties = 6

// DocumentIngestor turns the text of a prescription or medical record into
// a prescription_summary event with suggested specialties.
type DocumentIngestor struct {
	store store.Appender
	opts  options
}

// NewDocumentIngestor returns an ingestor appending to s.
func NewDocumentIngestor(s store.Appender, opts ...Option) *DocumentIngestor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &DocumentIngestor{store: s, opts: o}
}

// IngestFile extracts the text of the file at path and ingests it.
func (d *DocumentIngestor) IngestFile(ctx context.Context, path string) (*model.Event, error) {
	text, err := docs.ExtractText(path)
	if err != nil {
		d.opts.audit.Record(ctx, audit.ComponentDocuments, "extract", audit.OutcomeFailed, "path", path, "err", err)
		return nil, err
	}
	return d.Ingest(ctx, filepath.Base(path), text)
}

// Ingest summarises text. Specialties come from the specialty map; when it
// has nothing to say the model is asked, and when that fails too the
// default specialties are used.
func (d *DocumentIngestor) Ingest(ctx context.Context, source, text string) (*model.Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		ve := &model.ValidationError{}
		ve.Add("text", "document has no text")
		return nil, ve
	}

	keywords := docs.ExtractKeywords(text, d.opts.rules.MedicalTerms, docs.DefaultTopK)
	specialties := d.opts.rules.SuggestSpecialties(keywords)
	origin := "rules"
	if len(specialties) == 0 {
		specialties = d.askModel(ctx, keywords)
		origin = "model"
	}
	if len(specialties) == 0 {
		specialties = slices.Clone(d.opts.rules.DefaultSpecialties)
		origin = "default"
	}

	payload := model.PrescriptionPayload{
		Keywords:             keywords,
		SuggestedSpecialties: specialties,
		RawExcerpt:           docs.Excerpt(text, ExcerptLength),
		Source:               source,
	}
	if payload.Keywords == nil {
		payload.Keywords = []string{}
	}
	e, err := d.store.Append(ctx, model.TypePrescriptionSummary, model.MustPayload(payload))
	if err != nil {
		d.opts.audit.Record(ctx, audit.ComponentDocuments, "ingest", audit.OutcomeFailed, "source", source, "err", err)
		return nil, fmt.Errorf("recording document summary: %w", err)
	}

	d.opts.logger.Info("document processed", "event_id", e.ID, "source", source, "specialties", specialties, "origin", origin)
	d.opts.audit.Record(ctx, audit.ComponentDocuments, "ingest", audit.OutcomeOK,
		"event_id", e.ID, "source", source, "specialty_origin", origin)
	return e, nil
}

// askModel asks the generator for specialties. Any failure yields nil.
func (d *DocumentIngestor) askModel(ctx context.Context, keywords []string) []string {
	if d.opts.generator == nil || len(keywords) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.modelTimeout)
	defer cancel()

	prompt := fmt.Sprintf("Given these keywords extracted from a medical record: %s. "+
		"List the medical specialties the patient should visit, separated by commas, with no other text.",
		strings.Join(keywords, ", "))
	opts := llm.DefaultOptions()
	opts.MaxOutputTokens = 200

	text, err := d.opts.generator.Generate(ctx, prompt, nil, opts)
	if err != nil {
		d.opts.logger.Warn("specialty suggestion failed", "kind", llm.KindOf(err), "err", err)
		return nil
	}
	return d.parseSpecialties(text)
}

var listSeparators = regexp.MustCompile(`[,;\n]+`)

// parseSpecialties splits a model reply into specialty names, dropping list
// markers and fragments too short to be a name.
func (d *DocumentIngestor) parseSpecialties(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range listSeparators.Split(text, -1) {
		part = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "-*•0123456789.) "))
		part = strings.TrimRight(part, ".")
		key := textnorm.Name(part)
		if len(key) <= 2 || seen[key] {
			continue
		}
		seen[key] = true
		canonical, _ := d.opts.rules.CanonicalSpecialty(part)
		out = append(out, canonical)
		if len(out) == maxModelSpecialties {
			break
		}
	}
	return out
}
