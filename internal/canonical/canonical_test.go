package canonical

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptrust/proptrust/internal/entity"
)

func sampleBundle() entity.EntityBundle {
	return entity.EntityBundle{
		Owner:        "Ravi  Kumar",
		SurveyNumber: "45/2a",
		HissaNumber:  "2",
		Village:      "HEBBAL",
		Taluk:        "Bangalore North",
		District:     "Bangalore Urban",
		ExtentAcres:  2,
		ExtentGuntas: 10,
		Loans: []entity.Loan{
			{Amount: 500000, Bank: "State Bank of India", Context: "loan granted"},
		},
		Cases: []string{"45/2012", "12/2009"},
		Dates: []string{"2021-01-01"},
	}
}

func TestFingerprintIs32Bytes(t *testing.T) {
	fp, err := Fingerprint(Project("PRT-1", sampleBundle(), 30, "LOAN_DETECTED"))
	require.NoError(t, err)
	assert.Len(t, fp, FingerprintSize)
}

func TestFingerprintStability(t *testing.T) {
	r1 := Project("PRT-1", sampleBundle(), 30, "LOAN_DETECTED")
	r2 := Project("PRT-1", sampleBundle(), 30, "LOAN_DETECTED")
	fp1, err := Fingerprint(r1)
	require.NoError(t, err)
	fp2, err := Fingerprint(r2)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Project("PRT-1", sampleBundle(), 30, "LOAN_DETECTED")
	baseFP, err := Fingerprint(base)
	require.NoError(t, err)

	cases := map[string]func(b *entity.EntityBundle){
		"owner":   func(b *entity.EntityBundle) { b.Owner = "Ravi Kumas" },
		"survey":  func(b *entity.EntityBundle) { b.SurveyNumber = "45/2B" },
		"village": func(b *entity.EntityBundle) { b.Village = "HEBBALA" },
		"loan":    func(b *entity.EntityBundle) { b.Loans[0].Amount = 500001 },
		"case":    func(b *entity.EntityBundle) { b.Cases = append(b.Cases, "99/2020") },
		"extent":  func(b *entity.EntityBundle) { b.ExtentGuntas = 11 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := sampleBundle()
			mutate(&b)
			fp, err := Fingerprint(Project("PRT-1", b, 30, "LOAN_DETECTED"))
			require.NoError(t, err)
			assert.NotEqual(t, baseFP, fp)
		})
	}

	t.Run("risk_score", func(t *testing.T) {
		fp, err := Fingerprint(Project("PRT-1", sampleBundle(), 31, "LOAN_DETECTED"))
		require.NoError(t, err)
		assert.NotEqual(t, baseFP, fp)
	})
	t.Run("property_id", func(t *testing.T) {
		fp, err := Fingerprint(Project("PRT-2", sampleBundle(), 30, "LOAN_DETECTED"))
		require.NoError(t, err)
		assert.NotEqual(t, baseFP, fp)
	})
}

func TestFingerprintInsensitiveToExcludedFields(t *testing.T) {
	base := sampleBundle()
	baseFP, err := Fingerprint(Project("PRT-1", base, 30, "LOAN_DETECTED"))
	require.NoError(t, err)

	// loan context, extracted date list, validity dates never project
	changed := sampleBundle()
	changed.Loans[0].Context = "completely different context"
	changed.Dates = []string{"1999-12-31", "2000-01-01"}
	changed.ValidFrom = "2020-01-01"
	changed.ValidTo = "2021-01-01"
	changed.DigitallySignedDate = "2020-06-01"
	fp, err := Fingerprint(Project("PRT-1", changed, 30, "LOAN_DETECTED"))
	require.NoError(t, err)
	assert.Equal(t, baseFP, fp)
}

func TestOwnerAndSurveyNormalization(t *testing.T) {
	a := sampleBundle()
	a.Owner = "  ravi   kumar "
	a.SurveyNumber = "45 / 2 A"
	b := sampleBundle()
	b.Owner = "RAVI KUMAR"
	b.SurveyNumber = "45/2A"

	fpA, err := Fingerprint(Project("PRT-1", a, 30, ""))
	require.NoError(t, err)
	fpB, err := Fingerprint(Project("PRT-1", b, 30, ""))
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestLoanOrderingDoesNotMatter(t *testing.T) {
	a := sampleBundle()
	a.Loans = []entity.Loan{{Amount: 100000, Bank: "Canara Bank"}, {Amount: 500000, Bank: "State Bank of India"}}
	b := sampleBundle()
	b.Loans = []entity.Loan{{Amount: 500000, Bank: "State Bank of India"}, {Amount: 100000, Bank: "Canara Bank"}}

	fpA, err := Fingerprint(Project("PRT-1", a, 30, ""))
	require.NoError(t, err)
	fpB, err := Fingerprint(Project("PRT-1", b, 30, ""))
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestCaseOrderingDoesNotMatter(t *testing.T) {
	a := sampleBundle()
	a.Cases = []string{"12/2009", "45/2012"}
	fpA, err := Fingerprint(Project("PRT-1", a, 30, ""))
	require.NoError(t, err)
	fpB, err := Fingerprint(Project("PRT-1", sampleBundle(), 30, ""))
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestComparisonFingerprintIgnoresRiskScore(t *testing.T) {
	a, err := ComparisonFingerprint(Project("PRT-1", sampleBundle(), 30, ""))
	require.NoError(t, err)
	b, err := ComparisonFingerprint(Project("PRT-1", sampleBundle(), 70, ""))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	std, err := Fingerprint(Project("PRT-1", sampleBundle(), 30, ""))
	require.NoError(t, err)
	assert.NotEqual(t, a, std)
}

func TestEncodeContract(t *testing.T) {
	data, err := Encode(Project("PRT-1", sampleBundle(), 30, "LOAN_DETECTED"))
	require.NoError(t, err)

	// no insignificant whitespace, keys in sorted order
	s := string(data)
	indexOf := strings.Index
	assert.NotContains(t, s, ": ")
	assert.NotContains(t, s, "\n")
	assert.Less(t, indexOf(s, `"case_numbers"`), indexOf(s, `"classification_label"`))
	assert.Less(t, indexOf(s, `"classification_label"`), indexOf(s, `"district"`))
	assert.Less(t, indexOf(s, `"property_id"`), indexOf(s, `"risk_score"`))
	assert.Less(t, indexOf(s, `"risk_score"`), indexOf(s, `"survey_number"`))

	// round-trips as JSON
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "RAVI KUMAR", m["owner"])
	assert.Equal(t, "45/2A", m["survey_number"])
}
