package ner

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// minLoanAmount filters OCR digit noise out of the loan list; genuine
// agricultural loans on these records never fall below this.
const minLoanAmount = 1000

var (
	reAmountNoise = regexp.MustCompile(`[₹\s]|/-$|Rs\.?|INR`)
	reAcresGuntas = regexp.MustCompile(`(?i)(\d{1,4})\s*Acres?\s+(\d{1,3})\s*Guntas?`)
	reAcresOnly   = regexp.MustCompile(`(?i)(\d{1,4}(?:\.\d+)?)\s*Acres?`)
	reGuntasOnly  = regexp.MustCompile(`(?i)(\d{1,3})\s*Guntas?`)
)

// NormalizeAmount parses a currency mention into whole rupees. Indian
// grouping (5,00,000), western grouping, a trailing "/-" and a rupee symbol
// are all tolerated; paise are truncated. Returns (0, false) for noise.
func NormalizeAmount(raw string) (int64, bool) {
	s := reAmountNoise.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if d.IsNegative() {
		return 0, false
	}
	rupees := d.Truncate(0).IntPart()
	if rupees < minLoanAmount {
		return 0, false
	}
	return rupees, true
}

// SplitExtent parses a land-extent mention into whole acres and guntas
// (1 acre = 40 guntas). Fractional acres fold into guntas.
func SplitExtent(raw string) (acres, guntas int, ok bool) {
	if m := reAcresGuntas.FindStringSubmatch(raw); m != nil {
		return atoiSafe(m[1]), atoiSafe(m[2]), true
	}
	if m := reAcresOnly.FindStringSubmatch(raw); m != nil {
		d, err := decimal.NewFromString(m[1])
		if err != nil {
			return 0, 0, false
		}
		whole := d.Truncate(0)
		frac := d.Sub(whole)
		acres = int(whole.IntPart())
		guntas = int(frac.Mul(decimal.NewFromInt(40)).Round(0).IntPart())
		return acres, guntas, true
	}
	if m := reGuntasOnly.FindStringSubmatch(raw); m != nil {
		return 0, atoiSafe(m[1]), true
	}
	return 0, 0, false
}

// isoDate converts DD/MM/YYYY (or DD-MM-YYYY, or YYYY-MM-DD) into
// YYYY-MM-DD; returns "" when the candidate is not a full date.
func isoDate(raw string) string {
	s := strings.ReplaceAll(raw, "-", "/")
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return ""
	}
	pad := func(p string) string {
		if len(p) == 1 {
			return "0" + p
		}
		return p
	}
	if len(parts[0]) == 4 {
		return parts[0] + "-" + pad(parts[1]) + "-" + pad(parts[2])
	}
	if len(parts[2]) == 4 {
		return parts[2] + "-" + pad(parts[1]) + "-" + pad(parts[0])
	}
	return ""
}
