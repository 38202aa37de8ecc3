package repository

import (
	"time"
)

// Row types map 1:1 onto tables. JSON document columns hold the nested
// extraction output; everything queried gets its own column.

type propertyRow struct {
	PropertyID   string    `gorm:"column:property_id;primaryKey;size:100"`
	DocumentType string    `gorm:"column:document_type;size:50;not null"`
	OwnerName    string    `gorm:"column:owner_name;size:200"`
	SurveyNumber string    `gorm:"column:survey_number;size:100"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (propertyRow) TableName() string { return "properties" }

type verificationRecordRow struct {
	VerificationID           string     `gorm:"column:verification_id;primaryKey;size:36"`
	PropertyID               string     `gorm:"column:property_id;size:100;index;not null"`
	RiskScore                int        `gorm:"column:risk_score;not null"`
	RiskLevel                string     `gorm:"column:risk_level;size:20;not null"`
	ClassificationLabel      string     `gorm:"column:classification_label;size:50"`
	ClassificationConfidence float64    `gorm:"column:classification_confidence"`
	Fingerprint              []byte     `gorm:"column:fingerprint;size:32;not null"`
	AnchorReference          *string    `gorm:"column:anchor_reference;size:128"`
	AnchorBlockHeight        *int64     `gorm:"column:anchor_block_height"`
	AnchorTimestamp          *time.Time `gorm:"column:anchor_timestamp"`
	CreatedAt                time.Time  `gorm:"column:created_at;index;not null"`
}

func (verificationRecordRow) TableName() string { return "verification_records" }

type verificationDetailRow struct {
	VerificationID   string `gorm:"column:verification_id;primaryKey;size:36"`
	PropertyID       string `gorm:"column:property_id;size:100;index;not null"`
	EntitiesJSON     string `gorm:"column:entities_json;type:text"`
	FactorsJSON      string `gorm:"column:factors_json;type:text"`
	RecsJSON         string `gorm:"column:recommendations_json;type:text"`
	WarningsJSON     string `gorm:"column:warnings_json;type:text"`
	CleanedPreview   string `gorm:"column:cleaned_preview;type:text"`
	PagesProcessed   int    `gorm:"column:pages_processed"`
	CharsOriginal    int    `gorm:"column:chars_original"`
	CharsCleaned     int    `gorm:"column:chars_cleaned"`
	LanguageHint     string `gorm:"column:language_hint;size:16"`
	ExtractionMethod string `gorm:"column:extraction_method;size:32"`
}

func (verificationDetailRow) TableName() string { return "verification_details" }

type tamperCheckRow struct {
	TamperCheckID         string    `gorm:"column:tamper_check_id;primaryKey;size:36"`
	PropertyID            string    `gorm:"column:property_id;size:100;index;not null"`
	AnchoredFingerprint   []byte    `gorm:"column:anchored_fingerprint;size:32"`
	RecomputedFingerprint []byte    `gorm:"column:recomputed_fingerprint;size:32"`
	HashMatched           bool      `gorm:"column:hash_matched;not null"`
	RiskScoreDelta        int       `gorm:"column:risk_score_delta;not null"`
	Status                string    `gorm:"column:status;size:20;not null"`
	WarningsJSON          string    `gorm:"column:warnings_json;type:text"`
	CreatedAt             time.Time `gorm:"column:created_at;not null"`
}

func (tamperCheckRow) TableName() string { return "tamper_checks" }

type auditLogRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Operation  string    `gorm:"column:operation;size:50;not null"`
	PropertyID string    `gorm:"column:property_id;size:100"`
	Status     string    `gorm:"column:status;size:20;not null"`
	Message    string    `gorm:"column:message;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;index;not null"`
}

func (auditLogRow) TableName() string { return "audit_logs" }
