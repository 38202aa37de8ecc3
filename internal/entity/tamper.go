package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/proptrust/proptrust/constants"
)

// TamperCheck is the result of one re-verification against the anchored
// fingerprint.
type TamperCheck struct {
	TamperCheckID         uuid.UUID              `json:"tamper_check_id"`
	PropertyID            string                 `json:"property_id"`
	AnchoredFingerprint   []byte                 `json:"anchored_fingerprint,omitempty"`
	RecomputedFingerprint []byte                 `json:"recomputed_fingerprint,omitempty"`
	HashMatched           bool                   `json:"hash_matched"`
	RiskScoreDelta        int                    `json:"risk_score_delta"`
	Status                constants.TamperStatus `json:"status"`
	Warnings              []string               `json:"warnings,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
}
