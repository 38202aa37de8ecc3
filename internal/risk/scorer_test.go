package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/entity"
)

var today = time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)

func cleanInput() Input {
	return Input{
		Entities: entity.EntityBundle{
			Owner:        "RAVI KUMAR",
			SurveyNumber: "45/2A",
			Village:      "HEBBAL",
			ExtentAcres:  2,
			ExtentGuntas: 10,
		},
		Classification: entity.Classification{Label: constants.LabelClearTitle, Confidence: 0.85},
		CharsCleaned:   1000,
		Today:          today,
	}
}

func TestCleanDocumentScoresZero(t *testing.T) {
	out := NewScorer(0).Score(cleanInput())
	assert.Equal(t, 0, out.Score)
	assert.Equal(t, constants.RiskLow, out.Level)
	assert.Empty(t, out.Factors)
}

func TestLoanAloneIsBoundaryLow(t *testing.T) {
	in := cleanInput()
	in.Entities.Loans = []entity.Loan{{Amount: 500000, Bank: "State Bank of India"}}
	out := NewScorer(0).Score(in)
	assert.Equal(t, 30, out.Score)
	assert.Equal(t, constants.RiskLow, out.Level, "score 30 sits on the LOW side of the boundary")
	require.Len(t, out.Factors, 1)
	assert.Equal(t, FactorLoanPresent, out.Factors[0].Code)
}

func TestMultipleFactors(t *testing.T) {
	in := cleanInput()
	in.Entities.SurveyNumber = ""
	in.Entities.Loans = []entity.Loan{{Amount: 200000, Bank: "Canara Bank"}}
	in.Entities.Cases = []string{"45/2012"}
	in.CharsCleaned = 120
	out := NewScorer(200).Score(in)

	assert.Equal(t, 70, out.Score) // 30 + 15 + 15 + 10
	assert.Equal(t, constants.RiskHigh, out.Level)
	codes := factorCodes(out)
	assert.ElementsMatch(t, []string{FactorLoanPresent, FactorLegalCase, FactorSurveyMissing, FactorDataQualityLow}, codes)
}

func TestFactorTable(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Input)
		code   string
		weight int
	}{
		{"loan", func(in *Input) { in.Entities.Loans = []entity.Loan{{Amount: 1000}} }, FactorLoanPresent, 30},
		{"case", func(in *Input) { in.Entities.Cases = []string{"1/2020"} }, FactorLegalCase, 15},
		{"mutation_label", func(in *Input) {
			in.Classification = entity.Classification{Label: constants.LabelMutationPending, Confidence: 0.9}
		}, FactorMutationPending, 20},
		{"mutation_flag", func(in *Input) {
			in.Entities.Mutations = []entity.Mutation{{RecordNumber: "9/4", Pending: true}}
		}, FactorMutationPending, 20},
		{"owner_missing", func(in *Input) { in.Entities.Owner = "" }, FactorOwnerMissing, 15},
		{"survey_missing", func(in *Input) { in.Entities.SurveyNumber = "" }, FactorSurveyMissing, 15},
		{"data_quality", func(in *Input) { in.CharsCleaned = 10 }, FactorDataQualityLow, 10},
		{"expired", func(in *Input) { in.Entities.ValidTo = "2020-01-01" }, FactorValidityExpired, 10},
		{"court_case_label", func(in *Input) {
			in.Classification = entity.Classification{Label: constants.LabelCourtCase, Confidence: 0.9}
		}, FactorClassifierHighRisk, 20},
		{"forgery_label", func(in *Input) {
			in.Classification = entity.Classification{Label: constants.LabelForgerySuspected, Confidence: 0.9}
		}, FactorClassifierHighRisk, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := cleanInput()
			tc.mutate(&in)
			out := NewScorer(200).Score(in)
			found := false
			for _, f := range out.Factors {
				if f.Code == tc.code {
					found = true
					assert.Equal(t, tc.weight, f.Weight)
					assert.NotEmpty(t, f.Description)
				}
			}
			assert.True(t, found, "factor %s must fire", tc.code)
		})
	}
}

func TestScoreClampedTo100(t *testing.T) {
	in := Input{
		Entities: entity.EntityBundle{
			Loans:     []entity.Loan{{Amount: 1000}},
			Cases:     []string{"1/2020"},
			Mutations: []entity.Mutation{{RecordNumber: "1", Pending: true}},
			ValidTo:   "2019-01-01",
		},
		Classification: entity.Classification{Label: constants.LabelCourtCase, Confidence: 0.9},
		CharsCleaned:   0,
		Today:          today,
	}
	out := NewScorer(200).Score(in)
	assert.Equal(t, 100, out.Score) // raw 30+15+20+15+15+10+10+20 = 135
	assert.Equal(t, constants.RiskHigh, out.Level)
}

func TestMonotonicityOnFactors(t *testing.T) {
	in := cleanInput()
	base := NewScorer(0).Score(in)

	in.Entities.Loans = []entity.Loan{{Amount: 500000}}
	withLoan := NewScorer(0).Score(in)
	assert.GreaterOrEqual(t, withLoan.Score, base.Score)

	in.Entities.Cases = []string{"7/2015"}
	withCase := NewScorer(0).Score(in)
	assert.GreaterOrEqual(t, withCase.Score, withLoan.Score)
}

func TestLevelBoundaries(t *testing.T) {
	assert.Equal(t, constants.RiskLow, constants.LevelOfScore(0))
	assert.Equal(t, constants.RiskLow, constants.LevelOfScore(30))
	assert.Equal(t, constants.RiskMedium, constants.LevelOfScore(31))
	assert.Equal(t, constants.RiskMedium, constants.LevelOfScore(60))
	assert.Equal(t, constants.RiskHigh, constants.LevelOfScore(61))
	assert.Equal(t, constants.RiskHigh, constants.LevelOfScore(100))
}

func TestRecommendationsDeterministic(t *testing.T) {
	in := cleanInput()
	in.Entities.Loans = []entity.Loan{{Amount: 500000}}
	a := NewScorer(0).Score(in)
	b := NewScorer(0).Score(in)
	assert.Equal(t, a.Recommendations, b.Recommendations)
	assert.NotEmpty(t, a.Recommendations)
}

func TestValidityNotExpired(t *testing.T) {
	in := cleanInput()
	in.Entities.ValidTo = "2099-01-01"
	out := NewScorer(0).Score(in)
	assert.NotContains(t, factorCodes(out), FactorValidityExpired)
}

func factorCodes(a entity.RiskAssessment) []string {
	codes := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		codes = append(codes, f.Code)
	}
	return codes
}
