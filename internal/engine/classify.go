package engine

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// Intent is what a query asks the assistant to do.
type Intent string

const (
	// IntentInformational asks about history or advice.
	IntentInformational Intent = "informational"
	// IntentTook reports a dose that was taken.
	IntentTook Intent = "took"
	// IntentRemind asks for a new reminder.
	IntentRemind Intent = "remind"
)

// Classification is the result of classifying a query.
type Classification struct {
	Intent     Intent `json:"intent"`
	Medication string `json:"medication,omitempty"`
	Dose       string `json:"dose,omitempty"`
	Time       string `json:"time,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
	// Yesterday is set when a reported dose was taken the day before.
	Yesterday bool `json:"yesterday,omitempty"`
}

// CanLog reports whether a took-intent query names enough to log a dose.
func (c Classification) CanLog() bool {
	return c.Intent == IntentTook && c.Medication != ""
}

// CanSchedule reports whether a remind-intent query names enough to create a
// reminder.
func (c Classification) CanSchedule() bool {
	return c.Intent == IntentRemind && c.Medication != "" && c.Time != ""
}

var (
	questionWords = []string{
		"am", "are", "can", "could", "did", "do", "does", "has", "have", "how",
		"is", "should", "was", "were", "what", "when", "where", "which", "who", "why", "will",
	}
	tookWords   = []string{"took", "taken"}
	remindWords = []string{"remind", "reminder", "schedule"}

	// medicationVerbs introduce the medication name.
	medicationVerbs = []string{"take", "took", "taken", "about", "for", "of"}
	// medicationEnd ends the medication name.
	medicationEnd = []string{
		"at", "every", "each", "daily", "twice", "once", "weekly", "in", "this", "today",
		"yesterday", "tonight", "with", "before", "after", "and", "on", "around", "please",
	}
	// skipWords are dropped from the front of a medication name.
	skipWords = []string{"my", "the", "a", "an", "some", "me", "to", "take", "dose", "of"}

	clockPattern    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`)
	meridiemPattern = regexp.MustCompile(`\b(\d{1,2})\s*(am|pm)\b`)
	dosePattern     = regexp.MustCompile(`^\d+(\.\d+)?(mg|mcg|g|ml|iu|units?)$`)
	doseUnits       = []string{"mg", "mcg", "g", "ml", "iu", "unit", "units"}
)

// Classify decides the intent of query and extracts the reminder or dose
// details it carries. Questions are informational even when they mention a
// dose ("did I take ...?"), except explicit "remind me" requests.
func Classify(query string) Classification {
	folded := textnorm.Fold(query)
	tokens := textnorm.Tokens(query)
	c := Classification{Intent: IntentInformational}
	if len(tokens) == 0 {
		return c
	}

	question := strings.HasSuffix(strings.TrimSpace(query), "?") || slices.Contains(questionWords, tokens[0])
	remindMe := strings.Contains(" "+strings.Join(tokens, " ")+" ", " remind me ")

	switch {
	case remindMe || (!question && containsAny(tokens, remindWords)):
		c.Intent = IntentRemind
	case !question && containsAny(tokens, tookWords):
		c.Intent = IntentTook
	default:
		return c
	}

	c.Medication, c.Dose = extractMedication(query)
	c.Time = extractTime(folded)
	c.Frequency = extractFrequency(folded)
	c.Yesterday = slices.Contains(tokens, "yesterday")
	return c
}

func containsAny(tokens, words []string) bool {
	for _, w := range words {
		if slices.Contains(tokens, w) {
			return true
		}
	}
	return false
}

// extractMedication returns the words following the first medication verb,
// in their original spelling, up to a word that starts a time, frequency or
// clause. A trailing strength ("500mg", "500 mg") is kept in the name and
// returned separately as the dose.
func extractMedication(query string) (name, dose string) {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '?' || r == '!' || r == ';'
	})
	words = slices.DeleteFunc(words, func(w string) bool { return strings.Trim(w, ".") == "" })

	start := -1
	for i, w := range words {
		if slices.Contains(medicationVerbs, key(w)) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", ""
	}

	var parts []string
	for _, w := range words[start:] {
		k := key(w)
		if len(parts) == 0 && slices.Contains(skipWords, k) {
			continue
		}
		if slices.Contains(medicationEnd, k) || clockPattern.MatchString(k) || meridiemPattern.MatchString(k) {
			break
		}
		if len(parts) > 0 && slices.Contains(doseUnits, k) && isNumber(key(parts[len(parts)-1])) {
			parts[len(parts)-1] += strings.Trim(w, ".")
			continue
		}
		parts = append(parts, strings.Trim(w, "."))
	}
	for _, p := range parts {
		if dosePattern.MatchString(key(p)) {
			dose = p
		}
	}
	return strings.Join(parts, " "), dose
}

func key(w string) string {
	return textnorm.Fold(strings.Trim(w, ".:"))
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// extractTime finds a time of day and renders it as HH:MM.
func extractTime(folded string) string {
	if m := clockPattern.FindStringSubmatch(folded); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		if h, ok := meridiem(h, m[3]); ok && mins < 60 {
			return fmt.Sprintf("%02d:%02d", h, mins)
		}
	}
	if m := meridiemPattern.FindStringSubmatch(folded); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h, ok := meridiem(h, m[2]); ok {
			return fmt.Sprintf("%02d:00", h)
		}
	}
	tokens := textnorm.Tokens(folded)
	switch {
	case slices.Contains(tokens, "noon"):
		return "12:00"
	case slices.Contains(tokens, "midnight"):
		return "00:00"
	}
	return ""
}

func meridiem(h int, suffix string) (int, bool) {
	switch suffix {
	case "":
		return h, h <= 23
	case "am":
		if h < 1 || h > 12 {
			return 0, false
		}
		return h % 12, true
	case "pm":
		if h < 1 || h > 12 {
			return 0, false
		}
		return h%12 + 12, true
	}
	return 0, false
}

var frequencies = []struct {
	phrase, frequency string
}{
	{"three times a day", "three times daily"},
	{"three times daily", "three times daily"},
	{"twice a day", "twice daily"},
	{"twice daily", "twice daily"},
	{"every week", "weekly"},
	{"weekly", "weekly"},
	{"every day", "daily"},
	{"each day", "daily"},
	{"once a day", "daily"},
	{"daily", "daily"},
}

func extractFrequency(folded string) string {
	for _, f := range frequencies {
		if strings.Contains(folded, f.phrase) {
			return f.frequency
		}
	}
	return ""
}
