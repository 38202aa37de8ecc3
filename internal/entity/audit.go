package entity

import (
	"time"

	"github.com/proptrust/proptrust/constants"
)

// AuditLog is one entry in the append-only engine operation trail.
type AuditLog struct {
	ID         int64                 `json:"id"`
	Operation  constants.Operation   `json:"operation"`
	PropertyID string                `json:"property_id,omitempty"`
	Status     constants.AuditStatus `json:"status"`
	Message    string                `json:"message"`
	CreatedAt  time.Time             `json:"created_at"`
}
