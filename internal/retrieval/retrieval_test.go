package retrieval

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store/filestore"
)

var now = time.Date(2025, 11, 28, 10, 0, 0, 0, time.UTC)

// tickingClock returns a clock that advances one minute per call, starting
// at start.
func tickingClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Minute)
		return t
	}
}

func newStore(t *testing.T, clock func() time.Time) *filestore.FileStore {
	t.Helper()
	s, err := filestore.Open("", filestore.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAppend(t *testing.T, s *filestore.FileStore, typ model.EventType, payload any) *model.Event {
	t.Helper()
	e, err := s.Append(context.Background(), typ, model.MustPayload(payload))
	require.NoError(t, err)
	return e
}

func ids(matches []Match) []int64 {
	out := make([]int64, len(matches))
	for i, m := range matches {
		out[i] = m.Event.ID
	}
	return out
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		text     string
		tokens   []string
		temporal string
	}{
		{"Did I take my Metformin today?", []string{"take", "metformin"}, Today},
		{"What did Dr. Rao advise yesterday", []string{"dr", "rao", "advise"}, Yesterday},
		{"metformin, METFORMIN!", []string{"metformin"}, ""},
		{"is it the?", nil, ""},
		{"today", nil, Today},
	}
	for _, tt := range tests {
		q := ParseQuery(tt.text)
		assert.Equal(t, tt.tokens, q.Tokens, tt.text)
		assert.Equal(t, tt.temporal, q.Temporal, tt.text)
	}

	assert.True(t, ParseQuery("metformin?").Ambiguous())
	assert.False(t, ParseQuery("metformin dose").Ambiguous())
	assert.True(t, ParseQuery("the").Empty())
}

func TestQueryDay(t *testing.T) {
	day, ok := ParseQuery("today").Day(now)
	assert.True(t, ok)
	assert.Equal(t, "2025-11-28", day)

	day, ok = ParseQuery("yesterday").Day(now)
	assert.True(t, ok)
	assert.Equal(t, "2025-11-27", day)

	_, ok = ParseQuery("metformin").Day(now)
	assert.False(t, ok)
}

func TestSearch_MetforminToday(t *testing.T) {
	s := newStore(t, tickingClock(now.Add(-2*time.Hour)))
	logged := mustAppend(t, s, model.TypeAdherenceLog, model.AdherencePayload{
		Medication: "Metformin 500mg", Time: "08:01", Date: "2025-11-28",
	})
	mustAppend(t, s, model.TypeDoctorAdvice, model.AdvicePayload{
		DoctorID: "dr-rao", AdviceText: "Keep walking daily", Specialties: []string{"Cardiology"},
	})

	r := New(s, WithClock(func() time.Time { return now }))
	matches, err := r.Search(context.Background(), "Did I take my Metformin today?")
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, logged.ID, matches[0].Event.ID)
	assert.Equal(t, 2, matches[0].Score)

	q := ParseQuery("Did I take my Metformin today?")
	assert.Len(t, Sufficient(q, matches), 1)
}

func TestSearch_PayloadDateWinsOverTimestamp(t *testing.T) {
	// Recorded today, but the dose was taken yesterday.
	s := newStore(t, tickingClock(now))
	mustAppend(t, s, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Aspirin", Date: "2025-11-27"})

	r := New(s, WithClock(func() time.Time { return now }))

	matches, err := r.Search(context.Background(), "aspirin yesterday")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Score)

	matches, err = r.Search(context.Background(), "aspirin today")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Score)
}

func TestSearch_TimestampDayWithoutPayloadDate(t *testing.T) {
	s := newStore(t, tickingClock(now.AddDate(0, 0, -1)))
	mustAppend(t, s, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Aspirin"})

	r := New(s, WithClock(func() time.Time { return now }))
	matches, err := r.Search(context.Background(), "aspirin yesterday")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Score)
}

func TestSearch_Ordering(t *testing.T) {
	s := newStore(t, func() time.Time { return now })
	rem := mustAppend(t, s, model.TypeReminder, model.ReminderPayload{Medication: "Metformin", Time: "08:00", Frequency: "daily"})
	log1 := mustAppend(t, s, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Metformin"})
	log2 := mustAppend(t, s, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Metformin"})

	r := New(s, WithClock(func() time.Time { return now }))

	// Equal scores: the adherence logs have fewer keywords, so a higher
	// ratio; the two identical logs share a timestamp and fall back to id.
	matches, err := r.Search(context.Background(), "metformin")
	require.NoError(t, err)
	assert.Equal(t, []int64{log2.ID, log1.ID, rem.ID}, ids(matches))

	// A higher score beats any ratio.
	matches, err = r.Search(context.Background(), "metformin reminder")
	require.NoError(t, err)
	assert.Equal(t, rem.ID, matches[0].Event.ID)
	assert.Equal(t, 2, matches[0].Score)
}

func TestSearch_RecencyBreaksRatioTies(t *testing.T) {
	s := newStore(t, tickingClock(now.Add(-time.Hour)))
	older := mustAppend(t, s, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Aspirin"})
	newer := mustAppend(t, s, model.TypeAdherenceLog, model.AdherencePayload{Medication: "Aspirin"})

	matches := []Match{
		{Event: older, Score: 1, Ratio: 0.25},
		{Event: newer, Score: 1, Ratio: 0.25},
	}
	Sort(matches)
	assert.Equal(t, []int64{newer.ID, older.ID}, ids(matches))
}

func TestSufficient(t *testing.T) {
	s := newStore(t, func() time.Time { return now })
	mustAppend(t, s, model.TypeReminder, model.ReminderPayload{Medication: "Metformin", Time: "08:00"})
	r := New(s, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	tests := []struct {
		query string
		want  int
	}{
		// One content token needs two points.
		{"metformin?", 0},
		{"metformin reminder", 1},
		{"when is my metformin", 0},
		{"metformin dose", 1},
		{"blood pressure", 0},
		{"the", 0},
	}
	for _, tt := range tests {
		matches, err := r.Search(ctx, tt.query)
		require.NoError(t, err)
		assert.Len(t, Sufficient(ParseQuery(tt.query), matches), tt.want, tt.query)
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	r := New(newStore(t, time.Now))
	matches, err := r.Search(context.Background(), "Should I check my BP today?")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearch_InteractionLogsNeverMatch(t *testing.T) {
	s := newStore(t, time.Now)
	mustAppend(t, s, model.TypeInteractionLog, model.InteractionPayload{
		Query: "What is metformin for?", Answer: "Metformin lowers blood sugar.", Source: "model",
	})
	r := New(s)
	matches, err := r.Search(context.Background(), "metformin blood sugar")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

type failingReader struct{}

var errDisk = errors.New("disk on fire")

func (failingReader) All(context.Context) ([]*model.Event, error) { return nil, errDisk }

func (failingReader) ByType(context.Context, model.EventType) ([]*model.Event, error) {
	return nil, errDisk
}

func (failingReader) Get(context.Context, int64) (*model.Event, error) { return nil, errDisk }

func TestSearch_StoreErrorIsRetrievalError(t *testing.T) {
	r := New(failingReader{})
	_, err := r.Search(context.Background(), "metformin")

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "metformin", re.Query)
	assert.ErrorIs(t, err, errDisk)
}

func TestTopK(t *testing.T) {
	var matches []Match
	for i := int64(1); i <= 5; i++ {
		matches = append(matches, Match{Event: &model.Event{ID: i}, Score: 1})
	}
	assert.Len(t, TopK(matches, 0), DefaultContextSize)
	assert.Len(t, TopK(matches, 10), 5)
	assert.Equal(t, int64(1), TopK(matches, 1)[0].ID)
	assert.Empty(t, TopK(nil, 3))
}

func TestSearch_Deterministic(t *testing.T) {
	meds := []string{"Metformin 500mg", "Aspirin", "Warfarin", "Lisinopril 10mg"}
	queries := []string{
		"did I take metformin today",
		"aspirin reminder",
		"warfarin aspirin interaction",
		"lisinopril 10mg taken yesterday",
		"metformin",
	}

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("same snapshot and query give the same ordering", prop.ForAll(
		func(picks []int, query string, seed int64) bool {
			s, err := filestore.Open("", filestore.WithClock(tickingClock(now.Add(-48*time.Hour))))
			if err != nil {
				return false
			}
			defer s.Close()
			ctx := context.Background()
			for i, p := range picks {
				med := meds[p%len(meds)]
				var err error
				if i%2 == 0 {
					_, err = s.Append(ctx, model.TypeAdherenceLog, model.MustPayload(model.AdherencePayload{Medication: med}))
				} else {
					_, err = s.Append(ctx, model.TypeReminder, model.MustPayload(model.ReminderPayload{Medication: med, Time: "08:00"}))
				}
				if err != nil {
					return false
				}
			}

			r := New(s, WithClock(func() time.Time { return now }))
			first, err := r.Search(ctx, query)
			if err != nil {
				return false
			}
			second, err := r.Search(ctx, query)
			if err != nil {
				return false
			}

			// Sorting any permutation restores the same order.
			shuffled := append([]Match(nil), first...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			Sort(shuffled)

			a, b, c := ids(first), ids(second), ids(shuffled)
			return assert.ObjectsAreEqual(a, b) && assert.ObjectsAreEqual(a, c)
		},
		gen.SliceOfN(12, gen.IntRange(0, 100)),
		gen.OneConstOf(queries[0], queries[1], queries[2], queries[3], queries[4]),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
