// Package textnorm is the deterministic cleaning stage between OCR and
// extraction. Identical input bytes must produce identical output bytes
// across runs and processes; everything here is pure string work.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxCleanedBytes bounds the normalizer output.
const MaxCleanedBytes = 1 << 20 // 1 MiB

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reSpaces     = regexp.MustCompile(`[ \t]+`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// boilerplate matches repeated page-header/footer noise from scanned
// government portals. The set is bounded and ordered; extend with care,
// every change shifts fingerprints.
var boilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?i)First\s+Previous\s+Next\s+Last`),
	regexp.MustCompile(`(?i)Print\s+Page[_\s]*No[.:\s]*\d*`),
	regexp.MustCompile(`(?i)Page\s+\d+\s+of\s+\d+`),
	regexp.MustCompile(`https?://\S+|www\.\S+`),
	regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`),
}

// ConfusableTable is the published digit-vs-letter substitution map. It is
// applied only inside tokens that match a numeric context (see numericToken),
// so "Owner" keeps its O while "4O/2A" becomes "40/2A".
var ConfusableTable = map[rune]rune{
	'O': '0',
	'o': '0',
	'l': '1',
	'I': '1',
	'|': '1',
	'S': '5',
	'B': '8',
}

// numericToken: a token is numeric context when digits dominate it —
// at least two digits and one or two letters.
func numericToken(tok string) bool {
	digits, letters := 0, 0
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		}
	}
	return digits >= 2 && letters > 0 && letters <= 2
}

func fixConfusables(s string) string {
	fields := strings.Split(s, " ")
	for i, tok := range fields {
		if !numericToken(tok) {
			continue
		}
		var b strings.Builder
		b.Grow(len(tok))
		for _, r := range tok {
			if sub, ok := ConfusableTable[r]; ok {
				b.WriteRune(sub)
			} else {
				b.WriteRune(r)
			}
		}
		fields[i] = b.String()
	}
	return strings.Join(fields, " ")
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize applies the full cleaning sequence in fixed order:
// NFC, whitespace collapse, control-character strip, confusable repair in
// numeric tokens, boilerplate removal, truncation to MaxCleanedBytes.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	s = reSpaces.ReplaceAllString(s, " ")
	s = stripControl(s)
	s = fixConfusables(s)
	for _, re := range boilerplate {
		s = re.ReplaceAllString(s, "")
	}
	s = reSpaces.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.TrimSpace(strings.Join(lines, "\n"))

	return truncateBytes(s, MaxCleanedBytes)
}

// truncateBytes cuts at a rune boundary so truncation stays valid UTF-8
// and therefore reproducible.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
