package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExtractTextPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("Rx: Metformin 500mg\r\nTake daily\x00\n"), 0o600))

	text, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "Rx: Metformin 500mg\nTake daily", text)
}

func TestExtractTextWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labs.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Test"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Result"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "LDL cholesterol"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "elevated lipids"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	text, err := ExtractText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "LDL cholesterol elevated lipids")
}

func TestExtractTextBadPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))

	_, err := ExtractText(path)
	assert.Error(t, err)
}

func TestExtractTextMissingFile(t *testing.T) {
	_, err := ExtractText(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestExtractKeywordsPrioritisesMedicalTerms(t *testing.T) {
	text := "Patient has chest pain and high blood pressure. Follow up in two weeks."
	got := ExtractKeywords(text, []string{"pain", "pressure", "blood"}, 0)

	assert.Contains(t, got, "chest pain")
	assert.Contains(t, got, "high blood pressure")
	assert.NotContains(t, got, "follow")
	assert.Equal(t, got, ExtractKeywords(text, []string{"pain", "pressure", "blood"}, 0), "must be deterministic")
}

func TestExtractKeywordsFallsBackToAllPhrases(t *testing.T) {
	got := ExtractKeywords("Routine checkup scheduled", []string{"fever"}, 3)
	assert.Equal(t, []string{"routine", "routine checkup", "routine checkup scheduled"}, got)
}

func TestExtractKeywordsDropsShortWords(t *testing.T) {
	got := ExtractKeywords("an ox is at BP", nil, 10)
	assert.Empty(t, got)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "héllo", Excerpt("héllo world", 5))
	assert.Equal(t, "hi", Excerpt("hi", 5))
}
