package retrieval

import (
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// Temporal words recognised in queries.
const (
	Today     = "today"
	Yesterday = "yesterday"
)

// Query is a normalised query: its content tokens and the day it refers to,
// if any.
type Query struct {
	Text string
	// Tokens are the folded, de-duplicated, stop-word-free tokens of Text
	// in order of first appearance, temporal words excluded.
	Tokens []string
	// Temporal is Today, Yesterday or empty.
	Temporal string
}

// ParseQuery normalises text.
func ParseQuery(text string) Query {
	q := Query{Text: text}
	for _, tok := range textnorm.Content(text) {
		switch tok {
		case Today, Yesterday:
			if q.Temporal == "" {
				q.Temporal = tok
			}
		default:
			q.Tokens = append(q.Tokens, tok)
		}
	}
	return q
}

// Ambiguous reports whether the query has exactly one content token.
func (q Query) Ambiguous() bool {
	return len(q.Tokens) == 1
}

// Empty reports whether the query has no content tokens at all.
func (q Query) Empty() bool {
	return len(q.Tokens) == 0
}

// Day returns the calendar day the query refers to, relative to now, in
// now's location. ok is false for queries without a temporal word.
func (q Query) Day(now time.Time) (day string, ok bool) {
	switch q.Temporal {
	case Today:
		return now.Format(time.DateOnly), true
	case Yesterday:
		return now.AddDate(0, 0, -1).Format(time.DateOnly), true
	}
	return "", false
}
