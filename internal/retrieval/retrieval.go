// Package retrieval answers the question "does local memory already know
// this?". It scores stored events against a query by keyword overlap and
// decides whether the best matches are strong enough to answer from memory.
package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/model"
	"github.com/alfredjeanlab/medbuddy/internal/store"
)

// Thresholds and limits.
const (
	// MinScore is the score a match needs to count as sufficient.
	MinScore = 1
	// MinScoreAmbiguous applies to queries with a single content token.
	MinScoreAmbiguous = 2
	// TemporalBonus is added when the query names a day the event falls in.
	TemporalBonus = 1
	// DefaultContextSize is the number of events handed to the fallback.
	DefaultContextSize = 3
)

// Match is one scored event.
type Match struct {
	Event *model.Event `json:"event"`
	// Score is the keyword overlap plus any temporal bonus.
	Score int `json:"score"`
	// Ratio is the keyword overlap divided by the event's keyword count.
	Ratio float64 `json:"ratio"`
}

// Error reports that the store could not be read during a search. The
// decision engine treats it as an empty result.
type Error struct {
	Query string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval for %q: %v", e.Query, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retriever searches an event store. It never writes.
type Retriever struct {
	store  store.Reader
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithClock sets the clock used to resolve "today" and "yesterday".
func WithClock(clock func() time.Time) Option {
	return func(r *Retriever) { r.clock = clock }
}

// WithLogger sets the retriever's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

// New returns a retriever reading from s.
func New(s store.Reader, opts ...Option) *Retriever {
	r := &Retriever{store: s, clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search scores every stored event against text and returns those sharing
// at least one keyword with it, most relevant first. The ordering is total,
// so the same snapshot and query always give the same result.
func (r *Retriever) Search(ctx context.Context, text string) ([]Match, error) {
	q := ParseQuery(text)
	if q.Empty() {
		return nil, nil
	}

	events, err := r.store.All(ctx)
	if err != nil {
		return nil, &Error{Query: text, Err: err}
	}

	now := r.clock()
	day, hasDay := q.Day(now)

	var matches []Match
	for _, e := range events {
		overlap := overlapCount(q, e.Keywords)
		if overlap == 0 {
			continue
		}
		score := overlap
		if hasDay && eventDay(e, now.Location()) == day {
			score += TemporalBonus
		}
		matches = append(matches, Match{
			Event: e,
			Score: score,
			Ratio: float64(overlap) / float64(len(e.Keywords)),
		})
	}

	Sort(matches)
	r.logger.Debug("retrieval search", "query", text, "tokens", q.Tokens, "temporal", q.Temporal, "matches", len(matches))
	return matches, nil
}

// Sort orders matches by score, then overlap ratio, then recency, then id,
// all descending.
func Sort(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Ratio, a.Ratio); c != 0 {
			return c
		}
		if c := b.Event.Timestamp.Compare(a.Event.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.Event.ID, a.Event.ID)
	})
}

// Threshold returns the minimum sufficient score for q.
func Threshold(q Query) int {
	if q.Ambiguous() {
		return MinScoreAmbiguous
	}
	return MinScore
}

// Sufficient returns the matches strong enough to answer q from memory,
// keeping their order. An empty result means the query needs the fallback.
func Sufficient(q Query, matches []Match) []Match {
	if q.Empty() {
		return nil
	}
	threshold := Threshold(q)
	var out []Match
	for _, m := range matches {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	return out
}

// TopK returns the events of the first k matches. A non-positive k means
// DefaultContextSize.
func TopK(matches []Match, k int) []*model.Event {
	if k <= 0 {
		k = DefaultContextSize
	}
	k = min(k, len(matches))
	events := make([]*model.Event, 0, k)
	for _, m := range matches[:k] {
		events = append(events, m.Event)
	}
	return events
}

func overlapCount(q Query, keywords []string) int {
	n := 0
	for _, tok := range q.Tokens {
		if slices.Contains(keywords, tok) {
			n++
		}
	}
	return n
}

// eventDay is the calendar day an event refers to: its payload date when it
// has one, otherwise the day it was recorded.
func eventDay(e *model.Event, loc *time.Location) string {
	var p struct {
		Date string `json:"date"`
	}
	if err := e.Decode(&p); err == nil && p.Date != "" {
		if d, err := time.Parse(time.DateOnly, p.Date); err == nil {
			return d.Format(time.DateOnly)
		}
	}
	return e.Timestamp.In(loc).Format(time.DateOnly)
}
