// Package docs extracts text and keywords from uploaded prescriptions and
// medical records.
package docs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/alfredjeanlab/medbuddy/internal/textnorm"
)

// MaxTextBytes bounds how much of a plain-text document is read.
const MaxTextBytes = 1 << 20

// DefaultTopK is the default number of keywords ExtractKeywords returns.
const DefaultTopK = 20

// ExtractText returns the text content of the document at path. PDF and
// Excel workbooks are parsed; anything else is read as plain text.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return parsePDF(path)
	case ".xlsx", ".xlsm", ".xltx":
		return parseWorkbook(path)
	default:
		return readText(path)
	}
}

func parsePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		sb.WriteString(cleanText(text))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func parseWorkbook(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxTextBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return cleanText(string(data)), nil
}

// cleanText normalises line endings and drops NUL bytes left by extractors.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}

// ExtractKeywords returns up to topK phrases of one to three words from
// text. Phrases that contain one of terms come first; when none do, all
// phrases are candidates. Order is by first appearance, then phrase length,
// so the result is deterministic.
func ExtractKeywords(text string, terms []string, topK int) []string {
	if topK <= 0 {
		topK = DefaultTopK
	}

	folded := textnorm.Fold(text)
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	words := tokens[:0]
	for _, tok := range tokens {
		if len([]rune(tok)) > 2 {
			words = append(words, tok)
		}
	}

	seen := make(map[string]bool)
	var all, prioritized []string
	for i := range words {
		for n := 1; n <= 3 && i+n <= len(words); n++ {
			phrase := strings.Join(words[i:i+n], " ")
			if seen[phrase] {
				continue
			}
			seen[phrase] = true
			all = append(all, phrase)
			if containsAny(phrase, terms) {
				prioritized = append(prioritized, phrase)
			}
		}
	}

	out := prioritized
	if len(out) == 0 {
		out = all
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func containsAny(phrase string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(phrase, textnorm.Fold(t)) {
			return true
		}
	}
	return false
}

// Excerpt returns the first n runes of text.
func Excerpt(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
