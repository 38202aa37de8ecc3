package textnorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDeterministic(t *testing.T) {
	in := "Survey  No. 45/2A\r\nOwner:   RAVI KUMAR\x00\x07\n\n\n\nVillage: HEBBAL"
	first := Normalize(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Normalize(in))
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "ಸರ್ವೆ ನಂಬರ್ 178/1  Owner: Rajesh   Kumar\r\nPage 1 of 3"
	once := Normalize(in)
	assert.Equal(t, once, Normalize(once))
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	out := Normalize("a   b\t\tc")
	assert.Equal(t, "a b c", out)
}

func TestNormalizeStripsControlKeepsNewline(t *testing.T) {
	out := Normalize("line1\x01\x02\nline2\x7F")
	assert.Equal(t, "line1\nline2", out)
}

func TestNormalizeKeepsKannada(t *testing.T) {
	in := "ಹೆಬ್ಬಾಳ ಗ್ರಾಮ Survey No. 45/2A"
	out := Normalize(in)
	assert.Contains(t, out, "ಹೆಬ್ಬಾಳ")
	assert.Contains(t, out, "45/2A")
}

func TestConfusablesOnlyInNumericTokens(t *testing.T) {
	out := Normalize("Owner RAVI survey 4O/2A loan l20000")
	// the word keeps its letters; the numeric tokens get repaired
	assert.Contains(t, out, "Owner")
	assert.Contains(t, out, "RAVI")
	assert.Contains(t, out, "40/2A")
	assert.Contains(t, out, "120000")
}

func TestNormalizeRemovesBoilerplate(t *testing.T) {
	in := "First Previous Next Last\nSurvey No. 178/1\nPrint Page No: 2\nhttp://landrecords.example/page"
	out := Normalize(in)
	assert.NotContains(t, out, "Previous")
	assert.NotContains(t, out, "Print Page")
	assert.NotContains(t, out, "http://")
	assert.Contains(t, out, "178/1")
}

func TestNormalizeTruncatesAtRuneBoundary(t *testing.T) {
	// Kannada runes are 3 bytes each; build input just over the cap
	big := strings.Repeat("ಕ", MaxCleanedBytes/3+10)
	out := Normalize(big)
	require.LessOrEqual(t, len(out), MaxCleanedBytes)
	assert.True(t, strings.HasSuffix(out, "ಕ"), "must cut on a rune boundary")
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   \n\t  "))
}
