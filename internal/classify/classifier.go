// Package classify wraps the document-classifier capability. Two backends
// satisfy the same contract: a deterministic rule backend (default, offline)
// and a remote model service.
package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/entity"
)

// Classifier is Stage 4b: cleaned text -> label + confidence. Runs in
// parallel with entity extraction, so it may depend only on the text.
type Classifier interface {
	Classify(ctx context.Context, text string) (entity.Classification, error)
}

// ApplyFloor collapses a low-confidence verdict to UNKNOWN. The canonical
// projection applies the same floor independently, so model drift below the
// floor can never move a fingerprint.
func ApplyFloor(c entity.Classification, floor float64) entity.Classification {
	if c.Confidence < floor {
		return entity.Classification{Label: constants.LabelUnknown, Confidence: c.Confidence}
	}
	return c
}

var (
	reLoanEvidence    = regexp.MustCompile(`(?i)\b(loan|mortgage|encumbrance|hypothecation|charge\s+created)\b`)
	reCaseEvidence    = regexp.MustCompile(`(?i)\b(court|civil\s+suit|o\.?s\.?\s*no|case\s+no|litigation|injunction)\b`)
	reMutationPending = regexp.MustCompile(`(?i)mutation[^.\n]{0,40}\b(pending|not\s+(?:yet\s+)?(?:effected|updated))\b`)
	reForgeryEvidence = regexp.MustCompile(`(?i)\b(forg(?:ed|ery)|fabricat|counterfeit|tamper)\w*\b`)
	reSurveyEvidence  = regexp.MustCompile(`(?i)\b(?:survey|sy\.?)\s*no`)
)

// Rules is the offline rule-based backend, a port of the evidence scoring
// used on the original Karnataka record corpus.
type Rules struct{}

func NewRules() Rules { return Rules{} }

func (Rules) Classify(_ context.Context, text string) (entity.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return entity.Classification{Label: constants.LabelUnknown, Confidence: 0}, nil
	}

	hasLoan := reLoanEvidence.MatchString(text)
	hasCase := reCaseEvidence.MatchString(text)
	hasMutationPending := reMutationPending.MatchString(text)
	hasForgery := reForgeryEvidence.MatchString(text)
	hasSurvey := reSurveyEvidence.MatchString(text)

	issues := 0
	for _, hit := range []bool{hasLoan, hasCase, hasMutationPending, hasForgery} {
		if hit {
			issues++
		}
	}

	switch {
	case hasForgery:
		return entity.Classification{Label: constants.LabelForgerySuspected, Confidence: 0.85}, nil
	case issues >= 2:
		return entity.Classification{Label: constants.LabelMultipleIssues, Confidence: 0.80}, nil
	case hasCase:
		return entity.Classification{Label: constants.LabelCourtCase, Confidence: 0.85}, nil
	case hasLoan:
		return entity.Classification{Label: constants.LabelLoanDetected, Confidence: 0.90}, nil
	case hasMutationPending:
		return entity.Classification{Label: constants.LabelMutationPending, Confidence: 0.80}, nil
	case hasSurvey:
		return entity.Classification{Label: constants.LabelClearTitle, Confidence: 0.85}, nil
	default:
		return entity.Classification{Label: constants.LabelUnknown, Confidence: 0.40}, nil
	}
}
