package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/proptrust/proptrust/constants"
)

// RiskFactor is one fired scoring component.
type RiskFactor struct {
	Code        string `json:"code"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

// RiskAssessment is the risk scorer's full output.
type RiskAssessment struct {
	Score           int                 `json:"score"`
	Level           constants.RiskLevel `json:"level"`
	Factors         []RiskFactor        `json:"factors"`
	Recommendations []string            `json:"recommendations"`
}

// VerificationRecord is the immutable artifact of one pipeline run.
type VerificationRecord struct {
	VerificationID           uuid.UUID                     `json:"verification_id"`
	PropertyID               string                        `json:"property_id"`
	RiskScore                int                           `json:"risk_score"`
	RiskLevel                constants.RiskLevel           `json:"risk_level"`
	ClassificationLabel      constants.ClassificationLabel `json:"classification_label"`
	ClassificationConfidence float64                       `json:"classification_confidence"`
	Fingerprint              []byte                        `json:"fingerprint"` // exactly 32 bytes

	// Anchor fields are nil until (and unless) Ledger.put succeeds.
	AnchorReference   *string    `json:"anchor_reference,omitempty"`
	AnchorBlockHeight *int64     `json:"anchor_block_height,omitempty"`
	AnchorTimestamp   *time.Time `json:"anchor_timestamp,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// VerificationDetail is one-to-one with VerificationRecord.
type VerificationDetail struct {
	VerificationID  uuid.UUID    `json:"verification_id"`
	Entities        EntityBundle `json:"entities"`
	CleanedPreview  string       `json:"cleaned_preview"` // bounded length
	OCRStats        OCRStats     `json:"ocr_stats"`
	Factors         []RiskFactor `json:"factors"`
	Recommendations []string     `json:"recommendations"`
	Warnings        []string     `json:"warnings,omitempty"`
}
