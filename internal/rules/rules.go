// Package rules holds the static tables the assistant reasons with: the
// medication antagonist pairs, the recognised specialty vocabulary, and the
// document-term to specialty map. Defaults are built in; a TOML file can
// replace any table.
package rules

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// Antagonist is a pair of medications that should not be scheduled together.
type Antagonist struct {
	A        string `toml:"a"`
	B        string `toml:"b"`
	Severity string `toml:"severity"`
	Note     string `toml:"note"`
}

// Other returns the partner of med in the pair, or "" if med is not in it.
// Names are compared on their base name, so "Aspirin 81mg" matches "Aspirin".
func (a Antagonist) Other(med string) string {
	base := BaseName(med)
	switch base {
	case BaseName(a.A):
		return a.B
	case BaseName(a.B):
		return a.A
	}
	return ""
}

// SpecialtyRule maps a term found in a document to the specialties that
// treat it.
type SpecialtyRule struct {
	Term        string   `toml:"term"`
	Specialties []string `toml:"specialties"`
}

// Rules is the full rule set.
type Rules struct {
	Antagonists        []Antagonist    `toml:"antagonists"`
	Specialties        []string        `toml:"specialties"`
	SpecialtyMap       []SpecialtyRule `toml:"specialty_map"`
	MedicalTerms       []string        `toml:"medical_terms"`
	DefaultSpecialties []string        `toml:"default_specialties"`
}

// Default returns the built-in rule set.
func Default() *Rules {
	return &Rules{
		Antagonists: []Antagonist{
			{A: "Warfarin", B: "Aspirin", Severity: "high", Note: "Bleeding risk"},
			{A: "Metformin", B: "Contrast", Severity: "moderate", Note: "Consider holding Metformin around contrast imaging"},
		},
		Specialties: []string{
			"Cardiology", "Clinical Pathology", "Dermatology", "Endocrinology",
			"Gastroenterology", "General Practice", "Internal Medicine", "Nephrology",
			"Neurology", "Obstetrics and Gynecology", "Oncology", "Ophthalmology",
			"Orthopedics", "Pediatrics", "Primary Care", "Psychiatry", "Pulmonology",
			"Radiology", "Rheumatology", "Urology",
		},
		SpecialtyMap: []SpecialtyRule{
			{Term: "chest pain", Specialties: []string{"Cardiology"}},
			{Term: "shortness of breath", Specialties: []string{"Pulmonology", "Cardiology"}},
			{Term: "high blood pressure", Specialties: []string{"Cardiology", "Internal Medicine"}},
			{Term: "diabetes", Specialties: []string{"Endocrinology", "Internal Medicine"}},
			{Term: "elevated lipids", Specialties: []string{"Cardiology", "Endocrinology"}},
			{Term: "fracture", Specialties: []string{"Orthopedics"}},
			{Term: "skin rash", Specialties: []string{"Dermatology"}},
			{Term: "abdominal pain", Specialties: []string{"Gastroenterology"}},
		},
		MedicalTerms: []string{
			"pain", "pressure", "diabetes", "fever", "cough", "fracture", "rash",
			"lipid", "cholesterol", "blood", "metformin", "atorvastatin", "aspirin", "warfarin",
		},
		DefaultSpecialties: []string{"Primary Care", "Internal Medicine"},
	}
}

// Load reads a TOML rules file. Tables present in the file replace the
// built-in ones; absent tables keep their defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Rules, error) {
	r := Default()
	if path == "" {
		return r, nil
	}

	var file Rules
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("decode rules %s: %w", path, err)
	}

	if file.Antagonists != nil {
		r.Antagonists = file.Antagonists
	}
	if file.Specialties != nil {
		r.Specialties = file.Specialties
	}
	if file.SpecialtyMap != nil {
		r.SpecialtyMap = file.SpecialtyMap
	}
	if file.MedicalTerms != nil {
		r.MedicalTerms = file.MedicalTerms
	}
	if file.DefaultSpecialties != nil {
		r.DefaultSpecialties = file.DefaultSpecialties
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

// Validate checks the rule set for entries that can never match.
func (r *Rules) Validate() error {
	for i, a := range r.Antagonists {
		if BaseName(a.A) == "" || BaseName(a.B) == "" {
			return fmt.Errorf("antagonists[%d]: both medications are required", i)
		}
	}
	for i, m := range r.SpecialtyMap {
		if textnorm.Name(m.Term) == "" || len(m.Specialties) == 0 {
			return fmt.Errorf("specialty_map[%d]: term and specialties are required", i)
		}
	}
	return nil
}

// Encode writes r as TOML.
func (r *Rules) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(r)
}

// AntagonistsOf returns the pairs that include med.
func (r *Rules) AntagonistsOf(med string) []Antagonist {
	var out []Antagonist
	for _, a := range r.Antagonists {
		if a.Other(med) != "" {
			out = append(out, a)
		}
	}
	return out
}

// CanonicalSpecialty returns the vocabulary spelling of s and whether s is
// recognised. Matching ignores case and accents.
func (r *Rules) CanonicalSpecialty(s string) (string, bool) {
	name := textnorm.Name(s)
	for _, v := range r.Specialties {
		if textnorm.Name(v) == name {
			return v, true
		}
	}
	return s, false
}

// SuggestSpecialties returns the specialties whose map term occurs in any of
// the keywords, in rule order without duplicates.
func (r *Rules) SuggestSpecialties(keywords []string) []string {
	var out []string
	for _, m := range r.SpecialtyMap {
		term := textnorm.Name(m.Term)
		for _, kw := range keywords {
			if containsPhrase(textnorm.Name(kw), term) {
				for _, s := range m.Specialties {
					if !slices.Contains(out, s) {
						out = append(out, s)
					}
				}
				break
			}
		}
	}
	return out
}

// containsPhrase reports whether phrase occurs in text on token boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// BaseName returns the first token of a normalised medication name:
// "Metformin 500mg" becomes "metformin".
func BaseName(med string) string {
	toks := textnorm.Tokens(med)
	if len(toks) == 0 {
		return ""
	}
	return toks[0]
}
