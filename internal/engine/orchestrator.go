package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/canonical"
	"github.com/proptrust/proptrust/internal/classify"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
	"github.com/proptrust/proptrust/internal/risk"
	"github.com/proptrust/proptrust/internal/textnorm"
	"github.com/proptrust/proptrust/internal/translate"
)

// WarnClassifierUnavailable annotates a run whose classifier stage degraded.
const WarnClassifierUnavailable = "classifier_unavailable"

// Orchestrator is the public verification engine.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.IDs == nil {
		deps.IDs = UUIDGenerator()
	}
	return &Orchestrator{cfg: cfg.withDefaults(), deps: deps, logger: logger}
}

// VerifyRequest describes one document upload.
type VerifyRequest struct {
	Document     []byte
	Format       constants.Format // "" lets the extractor sniff
	DeclaredType constants.DocumentType
	PropertyID   string // "" allocates a fresh property
	Anchor       bool
}

// VerifyResult is the engine's answer: the persisted record plus its detail.
type VerifyResult struct {
	Property entity.Property
	Record   entity.VerificationRecord
	Detail   entity.VerificationDetail
	Anchored bool
}

// pipelineResult is the shared outcome of stages 1-4 plus scoring and
// canonicalization; Verify and CheckTamper both build on it.
type pipelineResult struct {
	Bundle         entity.EntityBundle
	Classification entity.Classification
	Assessment     entity.RiskAssessment
	Stats          entity.OCRStats
	Preview        string
	Warnings       []string

	Canonical   canonical.Record
	Fingerprint []byte
}

// Verify runs the full pipeline, persists the result atomically, and
// anchors the fingerprint when asked to. A ledger failure after persistence
// is non-fatal: the record survives with null anchor fields.
func (o *Orchestrator) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if len(req.Document) == 0 {
		return VerifyResult{}, common.NewAppError(common.KindBadInput, "EMPTY_DOCUMENT", "no document bytes supplied", common.ErrInvalidInput)
	}
	if req.DeclaredType == "" {
		req.DeclaredType = constants.DocTypeUnknown
	}

	propertyID := req.PropertyID
	if propertyID == "" {
		propertyID = o.deps.IDs.NewPropertyID()
	}
	verificationID := o.deps.IDs.NewVerificationID()

	pr, err := o.runPipeline(ctx, req.Document, req.Format, propertyID)
	if err != nil {
		o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpVerify, propertyID, constants.AuditFailure, err.Error())
		o.deps.Metrics.Verification("failure")
		return VerifyResult{}, err
	}

	now := o.deps.Clock.Now().UTC()
	prop := entity.Property{
		PropertyID:   propertyID,
		DocumentType: req.DeclaredType,
		OwnerName:    pr.Bundle.Owner,
		SurveyNumber: pr.Bundle.SurveyNumber,
		CreatedAt:    now,
	}
	rec := entity.VerificationRecord{
		VerificationID:           verificationID,
		PropertyID:               propertyID,
		RiskScore:                pr.Assessment.Score,
		RiskLevel:                pr.Assessment.Level,
		ClassificationLabel:      pr.Classification.Label,
		ClassificationConfidence: pr.Classification.Confidence,
		Fingerprint:              pr.Fingerprint,
		CreatedAt:                now,
	}
	det := entity.VerificationDetail{
		VerificationID:  verificationID,
		Entities:        pr.Bundle,
		CleanedPreview:  pr.Preview,
		OCRStats:        pr.Stats,
		Factors:         pr.Assessment.Factors,
		Recommendations: pr.Assessment.Recommendations,
		Warnings:        pr.Warnings,
	}

	if err := o.deps.Verifications.InsertRun(ctx, prop, rec, det); err != nil {
		o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpVerify, propertyID, constants.AuditFailure, err.Error())
		o.deps.Metrics.Verification("failure")
		return VerifyResult{}, err
	}

	res := VerifyResult{Property: prop, Record: rec, Detail: det}

	// A cancellation observed here leaves a valid record with null anchor
	// fields; the run itself succeeded.
	if req.Anchor && ctx.Err() == nil {
		if anchored := o.anchor(ctx, &res.Record); anchored {
			res.Anchored = true
		}
	} else if req.Anchor {
		o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpLedgerFailure, propertyID,
			constants.AuditFailure, "anchoring skipped: request cancelled after persistence")
	}

	o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpVerify, propertyID, constants.AuditSuccess,
		fmt.Sprintf("verification %s risk=%d level=%s anchored=%t",
			verificationID, rec.RiskScore, rec.RiskLevel, res.Anchored))
	o.deps.Metrics.Verification("success")

	o.logger.Info("verify.pipeline.ok",
		"property_id", propertyID,
		"verification_id", verificationID.String(),
		"risk_score", rec.RiskScore,
		"risk_level", string(rec.RiskLevel),
		"anchored", res.Anchored,
	)
	return res, nil
}

// anchor performs Ledger.put and records the anchor fields in a second
// transaction. Returns false (after auditing) on any failure.
func (o *Orchestrator) anchor(ctx context.Context, rec *entity.VerificationRecord) bool {
	lctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Ledger)
	defer cancel()

	put, err := o.deps.Ledger.Put(lctx, rec.PropertyID, rec.Fingerprint, rec.RiskScore)
	if err != nil {
		o.logger.Warn("verify.anchor.failed", "property_id", rec.PropertyID, "error", err)
		o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpLedgerFailure, rec.PropertyID,
			constants.AuditFailure, fmt.Sprintf("ledger put failed: %v", err))
		o.deps.Metrics.LedgerOp("put", "failure")
		return false
	}
	o.deps.Metrics.LedgerOp("put", "success")

	if err := o.deps.Verifications.SetAnchor(ctx, rec.VerificationID, put.Handle, put.BlockHeight, put.LedgerTimestamp); err != nil {
		o.logger.Error("verify.anchor.record_update_failed", "verification_id", rec.VerificationID.String(), "error", err)
		o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpLedgerFailure, rec.PropertyID,
			constants.AuditFailure, fmt.Sprintf("anchor recorded on ledger but not in store: %v", err))
		return false
	}

	rec.AnchorReference = &put.Handle
	height := put.BlockHeight
	rec.AnchorBlockHeight = &height
	ts := put.LedgerTimestamp
	rec.AnchorTimestamp = &ts

	o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpLedgerPut, rec.PropertyID, constants.AuditSuccess,
		fmt.Sprintf("anchored at block %d", put.BlockHeight))
	return true
}

// runPipeline executes stages 1-4, scores, and canonicalizes. It persists
// nothing.
func (o *Orchestrator) runPipeline(ctx context.Context, doc []byte, format constants.Format, propertyID string) (pipelineResult, error) {
	var pr pipelineResult

	// Stage 1: extraction
	ectx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Extraction)
	start := o.deps.Clock.Now()
	extracted, err := o.deps.Extractor.Extract(ectx, doc, format)
	cancel()
	o.deps.Metrics.ObserveStage("extraction", o.deps.Clock.Now().Sub(start))
	if err != nil {
		if ctx.Err() != nil {
			return pr, common.FromContextErr("extraction", ctx.Err())
		}
		return pr, err
	}
	pr.Warnings = append(pr.Warnings, extracted.Warnings...)

	if err := ctx.Err(); err != nil {
		return pr, common.FromContextErr("pipeline", err)
	}

	// Stage 2: deterministic cleaning
	cleaned := textnorm.Normalize(extracted.Text())

	// Stage 3: translation (best-effort)
	tctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Translation)
	translated, err := o.deps.Translator.Translate(tctx, cleaned, extracted.LanguageHint)
	cancel()
	if err != nil {
		// the adapter degrades internally; an error here is a hard bug or a
		// cancellation
		if ctx.Err() != nil {
			return pr, common.FromContextErr("translation", ctx.Err())
		}
		o.logger.Warn("verify.translate.failed", "error", err)
		translated = entity.TranslationResult{Text: cleaned, Warnings: []string{translate.WarnTranslationUnavailable}}
	}
	pr.Warnings = append(pr.Warnings, translated.Warnings...)
	text := translated.Text

	if err := ctx.Err(); err != nil {
		return pr, common.FromContextErr("pipeline", err)
	}

	// Stages 4a/4b in parallel: both are pure functions of the text.
	g, gctx := errgroup.WithContext(ctx)
	var bundle entity.EntityBundle
	var nerWarnings []string
	g.Go(func() error {
		start := o.deps.Clock.Now()
		bundle, nerWarnings = o.deps.Entities.Extract(gctx, text)
		o.deps.Metrics.ObserveStage("entities", o.deps.Clock.Now().Sub(start))
		return nil
	})
	var classification entity.Classification
	var classifierWarning string
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, o.cfg.Timeouts.Classification)
		defer cancel()
		start := o.deps.Clock.Now()
		c, cerr := o.deps.Classifier.Classify(cctx, text)
		o.deps.Metrics.ObserveStage("classification", o.deps.Clock.Now().Sub(start))
		if cerr != nil {
			// degraded, not fatal: UNKNOWN with zero confidence
			classifierWarning = WarnClassifierUnavailable
			classification = entity.Classification{Label: constants.LabelUnknown, Confidence: 0}
			return nil
		}
		classification = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return pr, err
	}
	if err := ctx.Err(); err != nil {
		return pr, common.FromContextErr("pipeline", err)
	}

	pr.Bundle = bundle
	pr.Warnings = append(pr.Warnings, nerWarnings...)
	if classifierWarning != "" {
		pr.Warnings = append(pr.Warnings, classifierWarning)
	}
	pr.Classification = classify.ApplyFloor(classification, o.cfg.ConfidenceFloor)

	pr.Stats = entity.OCRStats{
		PagesProcessed: extracted.PagesProcessed,
		CharsOriginal:  extracted.CharsOriginal,
		CharsCleaned:   len(cleaned),
		LanguageHint:   extracted.LanguageHint,
		Method:         extracted.Method,
	}
	pr.Preview = preview(cleaned, o.cfg.PreviewMaxChars)

	// Stage 5: risk scoring
	pr.Assessment = o.deps.Scorer.Score(risk.Input{
		Entities:       bundle,
		Classification: pr.Classification,
		CharsCleaned:   len(cleaned),
		Today:          o.deps.Clock.Now(),
	})

	// Stage 6: canonical form + fingerprint
	pr.Canonical = canonical.Project(propertyID, bundle, pr.Assessment.Score, canonicalLabel(pr.Classification, o.cfg.ConfidenceFloor))
	fp, err := canonical.Fingerprint(pr.Canonical)
	if err != nil {
		return pr, common.StageError(common.KindInternal, "fingerprint", "FINGERPRINT", "computing fingerprint", err)
	}
	pr.Fingerprint = fp
	return pr, nil
}

// canonicalLabel is the label admitted into the canonical projection: empty
// unless the classifier cleared the confidence floor. This is what insulates
// fingerprints from model drift.
func canonicalLabel(c entity.Classification, floor float64) string {
	if c.Confidence < floor {
		return ""
	}
	return string(c.Label)
}

func preview(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
