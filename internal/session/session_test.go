package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/config"
	"github.com/alfredjeanlab/medbuddy/internal/conflict"
	"github.com/alfredjeanlab/medbuddy/internal/engine"
	"github.com/alfredjeanlab/medbuddy/internal/llm"
	"github.com/alfredjeanlab/medbuddy/internal/model"
)

var fixedNow = time.Date(2025, 11, 28, 9, 30, 0, 0, time.UTC)

type memPublisher struct {
	mu      sync.Mutex
	records []audit.Record
}

func (p *memPublisher) Publish(_ context.Context, rec audit.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func (p *memPublisher) actions(component string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, r := range p.records {
		if r.Component == component {
			out = append(out, r.Action)
		}
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "events.jsonl")
	cfg.Model.Provider = "offline"
	return cfg
}

func openSession(t *testing.T, cfg *config.Config, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return s
}

func TestOpen_PersistsAcrossSessions(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	s := openSession(t, cfg)
	res, err := s.AddReminder(ctx, conflict.Candidate{Medication: "Metformin", Time: "08:00"}, "500mg")
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	require.NoError(t, s.Close())

	s = openSession(t, cfg)
	defer s.Close()
	events, err := s.Events(ctx, model.TypeReminder)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, res.Reminder.ID, events[0].ID)

	var p model.ReminderPayload
	require.NoError(t, events[0].Decode(&p))
	assert.Equal(t, "daily", p.Frequency)
	assert.Equal(t, "500mg", p.Dose)
}

func TestAsk_AnswersFromMemoryWithoutModel(t *testing.T) {
	called := false
	gen := llm.Func(func(context.Context, string, []*model.Event, llm.Options) (string, error) {
		called = true
		return "model answer", nil
	})
	s := openSession(t, testConfig(t), WithGenerator(gen))
	defer s.Close()
	ctx := context.Background()

	_, err := s.AddReminder(ctx, conflict.Candidate{Medication: "Metformin", Time: "08:00"}, "")
	require.NoError(t, err)

	resp, err := s.Ask(ctx, "When is my Metformin reminder?")
	require.NoError(t, err)
	assert.Equal(t, engine.SourceMemory, resp.Source)
	assert.False(t, called)
	assert.Contains(t, resp.Answer, "Reminder: Metformin at 08:00, daily")
}

func TestAsk_OfflineModelDegrades(t *testing.T) {
	s := openSession(t, testConfig(t))
	defer s.Close()

	resp, err := s.Ask(context.Background(), "Is my blood pressure medication safe with grapefruit?")
	require.NoError(t, err)
	assert.Equal(t, engine.SourceDegraded, resp.Source)
	assert.Equal(t, 2, resp.ModelAttempts)
	require.NotNil(t, resp.Recorded)
	assert.Equal(t, model.TypeInteractionLog, resp.Recorded.Type)
}

func TestAddReminder_DuplicateTimingIsFlagged(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := openSession(t, testConfig(t), WithRegisterer(reg))
	defer s.Close()
	ctx := context.Background()

	first, err := s.AddReminder(ctx, conflict.Candidate{Medication: "Metformin", Time: "08:00"}, "")
	require.NoError(t, err)

	second, err := s.AddReminder(ctx, conflict.Candidate{Medication: "metformin", Time: "08:30"}, "")
	require.NoError(t, err)
	require.Len(t, second.Findings, 1)
	assert.Equal(t, conflict.CodeDuplicateTiming, second.Findings[0].Code)
	require.Len(t, second.Flags, 1)

	var p model.ConflictPayload
	require.NoError(t, second.Flags[0].Decode(&p))
	assert.Equal(t, []int64{first.Reminder.ID, second.Reminder.ID}, p.RelatedEventIDs)

	all, err := s.Events(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	m := s.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictFindings.WithLabelValues(conflict.CodeDuplicateTiming)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsAppended.WithLabelValues(string(model.TypeReminder))))
}

func TestAddReminder_FlagsOff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.PersistConflictFlags = false
	s := openSession(t, cfg)
	defer s.Close()
	ctx := context.Background()

	_, err := s.AddReminder(ctx, conflict.Candidate{Medication: "Aspirin", Time: "21:00"}, "")
	require.NoError(t, err)
	res, err := s.AddReminder(ctx, conflict.Candidate{Medication: "Aspirin", Time: "21:15"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Findings)
	assert.Empty(t, res.Flags)

	flags, err := s.Events(ctx, model.TypeConflictFlag)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestAddReminder_InvalidCandidate(t *testing.T) {
	s := openSession(t, testConfig(t))
	defer s.Close()

	_, err := s.AddReminder(context.Background(), conflict.Candidate{Medication: "Aspirin", Time: "9pm"}, "")
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))

	all, err := s.Events(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCheckReminder_WritesNothing(t *testing.T) {
	s := openSession(t, testConfig(t))
	defer s.Close()
	ctx := context.Background()

	_, err := s.AddReminder(ctx, conflict.Candidate{Medication: "Warfarin", Time: "20:00"}, "")
	require.NoError(t, err)

	findings, err := s.CheckReminder(ctx, conflict.Candidate{Medication: "Aspirin", Time: "08:00"})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, conflict.CodeInteractionRisk, findings[0].Code)

	all, err := s.Events(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAddAdvice(t *testing.T) {
	s := openSession(t, testConfig(t))
	defer s.Close()
	ctx := context.Background()

	e, err := s.AddAdvice(ctx, "dr-rao", "Walk 30 minutes daily.", []string{"cardiology"})
	require.NoError(t, err)
	assert.Equal(t, model.TypeDoctorAdvice, e.Type)

	got, err := s.Event(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	_, err = s.AddAdvice(ctx, "", "text", []string{"Cardiology"})
	var ve *model.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = s.Event(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestIngestText_CountsDocuments(t *testing.T) {
	s := openSession(t, testConfig(t))
	defer s.Close()

	e, err := s.IngestText(context.Background(), "lab.txt", "Patient reports chest pain and high blood pressure.")
	require.NoError(t, err)
	assert.Equal(t, model.TypePrescriptionSummary, e.Type)

	var p model.PrescriptionPayload
	require.NoError(t, e.Decode(&p))
	assert.Contains(t, p.SuggestedSpecialties, "Cardiology")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().DocumentsProcessed))
}

func TestClose_FlushesAudit(t *testing.T) {
	pub := &memPublisher{}
	s := openSession(t, testConfig(t), WithPublisher(pub))

	_, err := s.AddReminder(context.Background(), conflict.Candidate{Medication: "Aspirin", Time: "21:00"}, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"append"}, pub.actions(audit.ComponentStore))
	assert.Equal(t, []string{"check"}, pub.actions(audit.ComponentConflict))
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "sqlite"
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
