// Package textnorm turns free text into the normalised token sets used for
// keyword derivation and retrieval.
package textnorm

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped from queries and free-text payload fields.
var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "am": true, "an": true,
	"and": true, "any": true, "are": true, "as": true, "at": true, "be": true,
	"been": true, "before": true, "but": true, "by": true, "can": true, "could": true,
	"did": true, "do": true, "does": true, "for": true, "from": true, "get": true,
	"had": true, "has": true, "have": true, "he": true, "her": true, "his": true,
	"how": true, "i": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "just": true, "me": true, "my": true, "of": true,
	"on": true, "or": true, "our": true, "please": true, "s": true, "she": true,
	"should": true, "so": true, "tell": true, "than": true, "that": true, "the": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "to": true, "up": true, "us": true, "was": true,
	"we": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
}

// Fold lower-cases s and strips combining marks so "Métformine" and
// "metformine" compare equal. Transformers are not safe for concurrent use,
// so a fresh chain is built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Lower(language.Und).String(out)
}

// Tokens folds s and splits it on anything that is not a letter or digit.
// Order is preserved and duplicates are kept.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Content returns the de-duplicated, stop-word-free tokens of s in order of
// first appearance.
func Content(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range Tokens(s) {
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Set returns the sorted unique union of the given token lists.
func Set(lists ...[]string) []string {
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, tok := range l {
			if tok != "" {
				seen[tok] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// Name normalises a medication or specialty name for equality checks:
// folded tokens joined by single spaces. "  Metformin   500MG " becomes
// "metformin 500mg".
func Name(s string) string {
	return strings.Join(Tokens(s), " ")
}

// JoinList joins items as an English list: "a", "a and b", "a, b and c".
func JoinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
