// Package risk turns a verification detail into an auditable score.
// No model involvement: every point traces to a named factor with a fixed
// weight, which is what makes the output defensible in a dispute.
package risk

import (
	"sort"
	"time"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/entity"
)

// Factor codes. Stable strings: they persist in verification details and
// feed tamper-check warnings.
const (
	FactorLoanPresent        = "loan_present"
	FactorLegalCase          = "legal_case"
	FactorMutationPending    = "mutation_pending"
	FactorOwnerMissing       = "owner_missing"
	FactorSurveyMissing      = "survey_missing"
	FactorDataQualityLow     = "data_quality_low"
	FactorValidityExpired    = "validity_expired"
	FactorClassifierHighRisk = "classifier_high_risk"
)

var weights = map[string]int{
	FactorLoanPresent:        30,
	FactorLegalCase:          15,
	FactorMutationPending:    20,
	FactorOwnerMissing:       15,
	FactorSurveyMissing:      15,
	FactorDataQualityLow:     10,
	FactorValidityExpired:    10,
	FactorClassifierHighRisk: 20,
}

var descriptions = map[string]string{
	FactorLoanPresent:        "active loan or encumbrance on record",
	FactorLegalCase:          "court case referenced on record",
	FactorMutationPending:    "mutation not reflected in revenue records",
	FactorOwnerMissing:       "owner name could not be extracted",
	FactorSurveyMissing:      "survey number could not be extracted",
	FactorDataQualityLow:     "too little legible text to trust extraction",
	FactorValidityExpired:    "record validity period has lapsed",
	FactorClassifierHighRisk: "classifier flagged a high-risk document",
}

// recommendations maps each fired factor onto its advice lines. Order within
// a factor is fixed; factors emit in weight-then-code order.
var recommendations = map[string][]string{
	FactorLoanPresent: {
		"Obtain a No Objection Certificate from every lender on record",
		"Verify the outstanding loan amount with the named bank",
	},
	FactorLegalCase: {
		"Obtain certified copies of the referenced case and its current status",
	},
	FactorMutationPending: {
		"Complete the mutation process and obtain an updated khata extract",
	},
	FactorOwnerMissing: {
		"Verify ownership from the original record; extraction found no owner",
	},
	FactorSurveyMissing: {
		"Confirm the survey number against the village revenue map",
	},
	FactorDataQualityLow: {
		"Re-scan the document at higher quality and re-verify",
	},
	FactorValidityExpired: {
		"Obtain a current-year extract; this record has lapsed",
	},
	FactorClassifierHighRisk: {
		"Halt the transaction pending legal review of the flagged document",
	},
}

// Input is everything the scorer looks at. Today is injected so the scorer
// stays a pure function.
type Input struct {
	Entities       entity.EntityBundle
	Classification entity.Classification
	CharsCleaned   int
	Today          time.Time
}

type Scorer struct {
	DataQualityCharsFloor int // default 200
}

func NewScorer(dataQualityCharsFloor int) *Scorer {
	if dataQualityCharsFloor <= 0 {
		dataQualityCharsFloor = 200
	}
	return &Scorer{DataQualityCharsFloor: dataQualityCharsFloor}
}

// Score sums the fired factors and clamps to 100.
func (s *Scorer) Score(in Input) entity.RiskAssessment {
	fired := make([]string, 0, len(weights))

	if in.Entities.HasLoan() {
		fired = append(fired, FactorLoanPresent)
	}
	if in.Entities.HasCase() {
		fired = append(fired, FactorLegalCase)
	}
	if in.Classification.Label == constants.LabelMutationPending || in.Entities.HasPendingMutation() {
		fired = append(fired, FactorMutationPending)
	}
	if in.Entities.Owner == "" {
		fired = append(fired, FactorOwnerMissing)
	}
	if in.Entities.SurveyNumber == "" {
		fired = append(fired, FactorSurveyMissing)
	}
	if in.CharsCleaned < s.DataQualityCharsFloor {
		fired = append(fired, FactorDataQualityLow)
	}
	if expired(in.Entities.ValidTo, in.Today) {
		fired = append(fired, FactorValidityExpired)
	}
	if in.Classification.Label == constants.LabelCourtCase || in.Classification.Label == constants.LabelForgerySuspected {
		fired = append(fired, FactorClassifierHighRisk)
	}

	sort.Slice(fired, func(i, j int) bool {
		if weights[fired[i]] != weights[fired[j]] {
			return weights[fired[i]] > weights[fired[j]]
		}
		return fired[i] < fired[j]
	})

	score := 0
	factors := make([]entity.RiskFactor, 0, len(fired))
	recs := make([]string, 0, len(fired))
	for _, code := range fired {
		score += weights[code]
		factors = append(factors, entity.RiskFactor{
			Code:        code,
			Weight:      weights[code],
			Description: descriptions[code],
		})
		recs = append(recs, recommendations[code]...)
	}
	if score > 100 {
		score = 100
	}

	return entity.RiskAssessment{
		Score:           score,
		Level:           constants.LevelOfScore(score),
		Factors:         factors,
		Recommendations: recs,
	}
}

// expired reports whether an ISO date lies strictly before today.
func expired(validTo string, today time.Time) bool {
	if validTo == "" || today.IsZero() {
		return false
	}
	t, err := time.Parse("2006-01-02", validTo)
	if err != nil {
		return false
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return t.Before(day)
}
