package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/canonical"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
	"github.com/proptrust/proptrust/internal/ledger"
)

// WarnRiskScoreChanged marks a mismatch explained entirely by re-scoring:
// the comparison fingerprints agree while the anchored ones do not.
const WarnRiskScoreChanged = "RISK_SCORE_CHANGED"

// CheckTamper re-runs the pipeline on fresh bytes and contrasts the result
// with the anchored fingerprint. It never writes to the ledger.
func (o *Orchestrator) CheckTamper(ctx context.Context, propertyID string, doc []byte, format constants.Format) (entity.TamperCheck, error) {
	if propertyID == "" {
		return entity.TamperCheck{}, common.NewAppError(common.KindBadInput, "MISSING_PROPERTY_ID", "property_id is required", common.ErrInvalidInput)
	}
	if len(doc) == 0 {
		return entity.TamperCheck{}, common.NewAppError(common.KindBadInput, "EMPTY_DOCUMENT", "no document bytes supplied", common.ErrInvalidInput)
	}

	check := entity.TamperCheck{
		TamperCheckID: o.deps.IDs.NewTamperCheckID(),
		PropertyID:    propertyID,
		CreatedAt:     o.deps.Clock.Now().UTC(),
	}

	// Step 1: the anchored entry. NotFound is an answer, not an error.
	lctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Ledger)
	anchored, err := o.deps.Ledger.Get(lctx, propertyID)
	cancel()
	if errors.Is(err, ledger.ErrNotFound) {
		check.Status = constants.TamperNotFound
		check.Warnings = []string{"property has never been anchored"}
		o.persistCheck(ctx, check, "no anchored fingerprint")
		return check, nil
	}
	if err != nil {
		o.deps.Metrics.LedgerOp("get", "failure")
		return entity.TamperCheck{}, common.StageError(common.KindExternalUnavailable, "ledger",
			"LEDGER_GET", "reading anchored entry", err)
	}
	o.deps.Metrics.LedgerOp("get", "success")
	check.AnchoredFingerprint = anchored.Fingerprint

	// Step 2: full pipeline on the new bytes, no anchoring, same property id
	// so the canonical projections are comparable.
	pr, err := o.runPipeline(ctx, doc, format, propertyID)
	if err != nil {
		check.Status = constants.TamperError
		check.Warnings = []string{err.Error()}
		o.persistCheck(ctx, check, "pipeline failed during re-verification")
		return check, err
	}

	// Step 3: both fingerprints of the fresh record.
	check.RecomputedFingerprint = pr.Fingerprint
	newComparison, err := canonical.ComparisonFingerprint(pr.Canonical)
	if err != nil {
		return entity.TamperCheck{}, common.StageError(common.KindInternal, "fingerprint",
			"FINGERPRINT", "computing comparison fingerprint", err)
	}

	// Step 4: contrast with the anchor. Any canonical-field difference is
	// tampering; a pure risk-score change is called out separately.
	check.HashMatched = bytes.Equal(pr.Fingerprint, anchored.Fingerprint)
	check.RiskScoreDelta = pr.Assessment.Score - anchored.RiskScore

	if check.HashMatched {
		check.Status = constants.TamperVerified
	} else {
		check.Status = constants.TamperTampered
		check.Warnings = append(check.Warnings, o.mismatchWarnings(ctx, anchored, pr, newComparison)...)
	}

	o.persistCheck(ctx, check, fmt.Sprintf("hash_matched=%t delta=%d", check.HashMatched, check.RiskScoreDelta))
	o.deps.Metrics.TamperCheck(string(check.Status))

	o.logger.Info("tamper.check.done",
		"property_id", propertyID,
		"status", string(check.Status),
		"hash_matched", check.HashMatched,
		"risk_score_delta", check.RiskScoreDelta,
	)
	return check, nil
}

// mismatchWarnings explains a failed hash comparison: re-scoring drift,
// changed canonical fields, and the factor diff against the stored run.
func (o *Orchestrator) mismatchWarnings(ctx context.Context, anchored ledger.Entry, pr pipelineResult, newComparison []byte) []string {
	var warnings []string

	prevRec, prevDet, err := o.deps.Verifications.LatestByProperty(ctx, anchored.PropertyID)
	if err != nil {
		warnings = append(warnings, "stored verification unavailable; field diff skipped")
		return warnings
	}

	prevCanonical := canonical.Project(anchored.PropertyID, prevDet.Entities, prevRec.RiskScore,
		canonicalLabel(entity.Classification{Label: prevRec.ClassificationLabel, Confidence: prevRec.ClassificationConfidence}, o.cfg.ConfidenceFloor))

	if prevComparison, cmpErr := canonical.ComparisonFingerprint(prevCanonical); cmpErr == nil {
		if bytes.Equal(newComparison, prevComparison) {
			warnings = append(warnings, WarnRiskScoreChanged)
		}
	}

	warnings = append(warnings, diffCanonical(prevCanonical, pr.Canonical)...)
	warnings = append(warnings, diffFactors(prevDet.Factors, pr.Assessment.Factors)...)
	return warnings
}

// diffCanonical names every canonical field whose projected value moved.
func diffCanonical(prev, cur canonical.Record) []string {
	var out []string
	field := func(name, a, b string) {
		if a != b {
			out = append(out, fmt.Sprintf("field_changed:%s", name))
		}
	}
	field("owner", prev.Owner, cur.Owner)
	field("survey_number", prev.SurveyNumber, cur.SurveyNumber)
	field("hissa_number", prev.HissaNumber, cur.HissaNumber)
	field("village", prev.Village, cur.Village)
	field("taluk", prev.Taluk, cur.Taluk)
	field("district", prev.District, cur.District)
	field("classification_label", prev.ClassificationLabel, cur.ClassificationLabel)
	if prev.ExtentAcres != cur.ExtentAcres || prev.ExtentGuntas != cur.ExtentGuntas {
		out = append(out, "field_changed:extent")
	}
	if fmt.Sprint(prev.CaseNumbers) != fmt.Sprint(cur.CaseNumbers) {
		out = append(out, "field_changed:case_numbers")
	}
	if fmt.Sprint(prev.Loans) != fmt.Sprint(cur.Loans) {
		out = append(out, "field_changed:loans")
	}
	return out
}

// diffFactors reports factors that fired on one run but not the other.
func diffFactors(prev, cur []entity.RiskFactor) []string {
	prevSet := make(map[string]bool, len(prev))
	for _, f := range prev {
		prevSet[f.Code] = true
	}
	curSet := make(map[string]bool, len(cur))
	for _, f := range cur {
		curSet[f.Code] = true
	}
	var out []string
	for code := range curSet {
		if !prevSet[code] {
			out = append(out, "factor_added:"+code)
		}
	}
	for code := range prevSet {
		if !curSet[code] {
			out = append(out, "factor_removed:"+code)
		}
	}
	sort.Strings(out)
	return out
}

func (o *Orchestrator) persistCheck(ctx context.Context, check entity.TamperCheck, message string) {
	ctx = context.WithoutCancel(ctx)
	if err := o.deps.Tampers.Insert(ctx, check); err != nil {
		o.logger.Error("tamper.persist.failed", "property_id", check.PropertyID, "error", err)
	}
	status := constants.AuditSuccess
	if check.Status == constants.TamperError {
		status = constants.AuditFailure
	}
	o.deps.Audits.Append(ctx, constants.OpTamperCheck, check.PropertyID, status,
		fmt.Sprintf("status=%s %s", check.Status, message))
}
