// Package canonical produces the byte-stable projection of a verification
// and its SHA-256 fingerprint. The serialization here is an external
// contract: sorted keys, no insignificant whitespace, UTF-8, integer
// amounts, NFC strings. Any change to this package shifts every fingerprint
// the engine will ever anchor.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/proptrust/proptrust/internal/entity"
)

// FingerprintSize is the digest length in bytes.
const FingerprintSize = sha256.Size

// CanonicalLoan is the projected loan entry: amount in whole rupees plus
// the canonical bank name. Context never participates.
type CanonicalLoan struct {
	Amount int64  `json:"amount"`
	Bank   string `json:"bank"`
}

// Record is the canonical projection. Struct fields are declared in
// alphabetical key order; the encoder emits them in declaration order, which
// is how the sorted-keys guarantee is kept. Excluded by construction:
// timestamps, UUIDs, confidences, OCR statistics, recommendations.
type Record struct {
	CaseNumbers         []string        `json:"case_numbers"`
	ClassificationLabel string          `json:"classification_label"`
	District            string          `json:"district"`
	ExtentAcres         int             `json:"extent_acres"`
	ExtentGuntas        int             `json:"extent_guntas"`
	HissaNumber         string          `json:"hissa_number"`
	Loans               []CanonicalLoan `json:"loans"`
	Owner               string          `json:"owner"`
	PropertyID          string          `json:"property_id"`
	RiskScore           *int            `json:"risk_score,omitempty"`
	SurveyNumber        string          `json:"survey_number"`
	Taluk               string          `json:"taluk"`
	Village             string          `json:"village"`
}

// Project builds the canonical record. classificationLabel must already be
// floor-filtered by the caller: pass the empty string when the classifier's
// confidence fell below the configured floor.
func Project(propertyID string, detail entity.EntityBundle, riskScore int, classificationLabel string) Record {
	loans := make([]CanonicalLoan, 0, len(detail.Loans))
	for _, l := range detail.Loans {
		loans = append(loans, CanonicalLoan{Amount: l.Amount, Bank: cleanString(l.Bank)})
	}
	// amount desc, then bank asc
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].Amount != loans[j].Amount {
			return loans[i].Amount > loans[j].Amount
		}
		return loans[i].Bank < loans[j].Bank
	})

	cases := make([]string, 0, len(detail.Cases))
	for _, c := range detail.Cases {
		cases = append(cases, cleanString(c))
	}
	sort.Strings(cases)

	score := riskScore
	return Record{
		CaseNumbers:         cases,
		ClassificationLabel: classificationLabel,
		District:            cleanString(detail.District),
		ExtentAcres:         detail.ExtentAcres,
		ExtentGuntas:        detail.ExtentGuntas,
		HissaNumber:         normalizeSurvey(detail.HissaNumber),
		Loans:               loans,
		Owner:               normalizeName(detail.Owner),
		PropertyID:          propertyID,
		RiskScore:           &score,
		SurveyNumber:        normalizeSurvey(detail.SurveyNumber),
		Taluk:               cleanString(detail.Taluk),
		Village:             cleanString(detail.Village),
	}
}

// Encode serializes the record into its canonical bytes.
func Encode(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("canonical encode: %w", err)
	}
	// Encoder appends a newline; the contract has none.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Fingerprint digests the canonical form including risk_score. This is the
// anchoring fingerprint.
func Fingerprint(r Record) ([]byte, error) {
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// ComparisonFingerprint digests the canonical form without risk_score. Used
// only to separate re-scoring drift from canonical-field tampering.
func ComparisonFingerprint(r Record) ([]byte, error) {
	r.RiskScore = nil
	return Fingerprint(r)
}

// normalizeName uppercases and collapses inner whitespace: the same owner
// scanned twice must project identically.
func normalizeName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(cleanString(s)), " "))
}

// normalizeSurvey uppercases and removes all spaces.
func normalizeSurvey(s string) string {
	return strings.ToUpper(strings.ReplaceAll(cleanString(s), " ", ""))
}

func cleanString(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
