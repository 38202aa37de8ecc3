package entity

import (
	"time"

	"github.com/proptrust/proptrust/constants"
)

// Property is the durable identity for a parcel as observed by this system.
// Created on first successful verification; never deleted by the engine.
type Property struct {
	PropertyID   string                 `json:"property_id"`
	DocumentType constants.DocumentType `json:"document_type"`
	OwnerName    string                 `json:"owner_name,omitempty"`    // denormalized last-seen owner
	SurveyNumber string                 `json:"survey_number,omitempty"` // denormalized last-seen survey
	CreatedAt    time.Time              `json:"created_at"`
}
