package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
)

// VerificationRepository persists pipeline runs and serves them back.
type VerificationRepository interface {
	// InsertRun upserts the property and inserts record + detail in one
	// transaction. The record is immutable once written, except for the
	// anchor fields which SetAnchor fills in a second transaction.
	InsertRun(ctx context.Context, prop entity.Property, rec entity.VerificationRecord, det entity.VerificationDetail) error
	SetAnchor(ctx context.Context, verificationID uuid.UUID, reference string, blockHeight int64, ts time.Time) error
	LatestByProperty(ctx context.Context, propertyID string) (entity.VerificationRecord, entity.VerificationDetail, error)
	ListRecords(ctx context.Context, limit int) ([]entity.VerificationRecord, error)
	// DeleteByProperty cascades to records, details and tamper checks.
	// It never touches the ledger. Returns false when the property is absent.
	DeleteByProperty(ctx context.Context, propertyID string) (bool, error)
}

type verificationRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewVerificationRepository(db *gorm.DB, logger *slog.Logger) VerificationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &verificationRepository{db: db, logger: logger}
}

func (r *verificationRepository) InsertRun(ctx context.Context, prop entity.Property, rec entity.VerificationRecord, det entity.VerificationDetail) error {
	recRow, err := toRecordRow(rec)
	if err != nil {
		return common.NewAppError(common.KindInternal, "ENCODE_RECORD", "encoding verification record", err)
	}
	detRow, err := toDetailRow(rec.PropertyID, det)
	if err != nil {
		return common.NewAppError(common.KindInternal, "ENCODE_DETAIL", "encoding verification detail", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		propRow := propertyRow{
			PropertyID:   prop.PropertyID,
			DocumentType: string(prop.DocumentType),
			OwnerName:    prop.OwnerName,
			SurveyNumber: prop.SurveyNumber,
			CreatedAt:    prop.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "property_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"document_type", "owner_name", "survey_number",
			}),
		}).Create(&propRow).Error; err != nil {
			return fmt.Errorf("upsert property: %w", err)
		}
		if err := tx.Create(&recRow).Error; err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		if err := tx.Create(&detRow).Error; err != nil {
			return fmt.Errorf("insert detail: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("repository.insert_run.failed", "property_id", prop.PropertyID, "error", err)
		return common.NewAppError(common.KindPersistenceFailed, "INSERT_RUN", "persisting verification run", err)
	}
	return nil
}

func (r *verificationRepository) SetAnchor(ctx context.Context, verificationID uuid.UUID, reference string, blockHeight int64, ts time.Time) error {
	res := r.db.WithContext(ctx).Model(&verificationRecordRow{}).
		Where("verification_id = ?", verificationID.String()).
		Updates(map[string]any{
			"anchor_reference":    reference,
			"anchor_block_height": blockHeight,
			"anchor_timestamp":    ts,
		})
	if res.Error != nil {
		return common.NewAppError(common.KindPersistenceFailed, "SET_ANCHOR", "recording anchor fields", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.NewAppError(common.KindNotFound, "RECORD_NOT_FOUND", "verification record not found", common.ErrNotFound)
	}
	return nil
}

func (r *verificationRepository) LatestByProperty(ctx context.Context, propertyID string) (entity.VerificationRecord, entity.VerificationDetail, error) {
	var recRow verificationRecordRow
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		First(&recRow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.VerificationRecord{}, entity.VerificationDetail{}, common.ErrNotFound
	}
	if err != nil {
		return entity.VerificationRecord{}, entity.VerificationDetail{}, common.NewAppError(common.KindPersistenceFailed, "QUERY_RECORD", "reading verification record", err)
	}

	var detRow verificationDetailRow
	err = r.db.WithContext(ctx).
		Where("verification_id = ?", recRow.VerificationID).
		First(&detRow).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.VerificationRecord{}, entity.VerificationDetail{}, common.NewAppError(common.KindPersistenceFailed, "QUERY_DETAIL", "reading verification detail", err)
	}

	rec, convErr := fromRecordRow(recRow)
	if convErr != nil {
		return entity.VerificationRecord{}, entity.VerificationDetail{}, convErr
	}
	det, convErr := fromDetailRow(detRow)
	if convErr != nil {
		return entity.VerificationRecord{}, entity.VerificationDetail{}, convErr
	}
	return rec, det, nil
}

func (r *verificationRepository) ListRecords(ctx context.Context, limit int) ([]entity.VerificationRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []verificationRecordRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, common.NewAppError(common.KindPersistenceFailed, "QUERY_RECORDS", "listing verification records", err)
	}
	out := make([]entity.VerificationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRecordRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *verificationRepository) DeleteByProperty(ctx context.Context, propertyID string) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("property_id = ?", propertyID).Delete(&propertyRow{})
		if res.Error != nil {
			return fmt.Errorf("delete property: %w", res.Error)
		}
		found = res.RowsAffected > 0
		if !found {
			return nil
		}
		if err := tx.Where("property_id = ?", propertyID).Delete(&verificationDetailRow{}).Error; err != nil {
			return fmt.Errorf("delete details: %w", err)
		}
		if err := tx.Where("property_id = ?", propertyID).Delete(&verificationRecordRow{}).Error; err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		if err := tx.Where("property_id = ?", propertyID).Delete(&tamperCheckRow{}).Error; err != nil {
			return fmt.Errorf("delete tamper checks: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, common.NewAppError(common.KindPersistenceFailed, "DELETE_PROPERTY", "cascade delete", err)
	}
	return found, nil
}

func toRecordRow(rec entity.VerificationRecord) (verificationRecordRow, error) {
	if len(rec.Fingerprint) != 32 {
		return verificationRecordRow{}, fmt.Errorf("fingerprint must be 32 bytes, got %d", len(rec.Fingerprint))
	}
	return verificationRecordRow{
		VerificationID:           rec.VerificationID.String(),
		PropertyID:               rec.PropertyID,
		RiskScore:                rec.RiskScore,
		RiskLevel:                string(rec.RiskLevel),
		ClassificationLabel:      string(rec.ClassificationLabel),
		ClassificationConfidence: rec.ClassificationConfidence,
		Fingerprint:              rec.Fingerprint,
		AnchorReference:          rec.AnchorReference,
		AnchorBlockHeight:        rec.AnchorBlockHeight,
		AnchorTimestamp:          rec.AnchorTimestamp,
		CreatedAt:                rec.CreatedAt,
	}, nil
}

func fromRecordRow(row verificationRecordRow) (entity.VerificationRecord, error) {
	id, err := uuid.Parse(row.VerificationID)
	if err != nil {
		return entity.VerificationRecord{}, common.NewAppError(common.KindInternal, "DECODE_RECORD", "malformed verification id", err)
	}
	return entity.VerificationRecord{
		VerificationID:           id,
		PropertyID:               row.PropertyID,
		RiskScore:                row.RiskScore,
		RiskLevel:                constants.RiskLevel(row.RiskLevel),
		ClassificationLabel:      constants.ClassificationLabel(row.ClassificationLabel),
		ClassificationConfidence: row.ClassificationConfidence,
		Fingerprint:              row.Fingerprint,
		AnchorReference:          row.AnchorReference,
		AnchorBlockHeight:        row.AnchorBlockHeight,
		AnchorTimestamp:          row.AnchorTimestamp,
		CreatedAt:                row.CreatedAt,
	}, nil
}

func toDetailRow(propertyID string, det entity.VerificationDetail) (verificationDetailRow, error) {
	entities, err := json.Marshal(det.Entities)
	if err != nil {
		return verificationDetailRow{}, err
	}
	factors, err := json.Marshal(det.Factors)
	if err != nil {
		return verificationDetailRow{}, err
	}
	recs, err := json.Marshal(det.Recommendations)
	if err != nil {
		return verificationDetailRow{}, err
	}
	warnings, err := json.Marshal(det.Warnings)
	if err != nil {
		return verificationDetailRow{}, err
	}
	return verificationDetailRow{
		VerificationID:   det.VerificationID.String(),
		PropertyID:       propertyID,
		EntitiesJSON:     string(entities),
		FactorsJSON:      string(factors),
		RecsJSON:         string(recs),
		WarningsJSON:     string(warnings),
		CleanedPreview:   det.CleanedPreview,
		PagesProcessed:   det.OCRStats.PagesProcessed,
		CharsOriginal:    det.OCRStats.CharsOriginal,
		CharsCleaned:     det.OCRStats.CharsCleaned,
		LanguageHint:     det.OCRStats.LanguageHint,
		ExtractionMethod: det.OCRStats.Method,
	}, nil
}

func fromDetailRow(row verificationDetailRow) (entity.VerificationDetail, error) {
	var det entity.VerificationDetail
	if row.VerificationID == "" {
		return det, nil
	}
	id, err := uuid.Parse(row.VerificationID)
	if err != nil {
		return det, common.NewAppError(common.KindInternal, "DECODE_DETAIL", "malformed verification id", err)
	}
	det.VerificationID = id
	decode := func(src string, dst any) error {
		if src == "" {
			return nil
		}
		return json.Unmarshal([]byte(src), dst)
	}
	if err := decode(row.EntitiesJSON, &det.Entities); err != nil {
		return det, common.NewAppError(common.KindInternal, "DECODE_DETAIL", "malformed entities document", err)
	}
	if err := decode(row.FactorsJSON, &det.Factors); err != nil {
		return det, common.NewAppError(common.KindInternal, "DECODE_DETAIL", "malformed factors document", err)
	}
	if err := decode(row.RecsJSON, &det.Recommendations); err != nil {
		return det, common.NewAppError(common.KindInternal, "DECODE_DETAIL", "malformed recommendations document", err)
	}
	if err := decode(row.WarningsJSON, &det.Warnings); err != nil {
		return det, common.NewAppError(common.KindInternal, "DECODE_DETAIL", "malformed warnings document", err)
	}
	det.CleanedPreview = row.CleanedPreview
	det.OCRStats = entity.OCRStats{
		PagesProcessed: row.PagesProcessed,
		CharsOriginal:  row.CharsOriginal,
		CharsCleaned:   row.CharsCleaned,
		LanguageHint:   row.LanguageHint,
		Method:         row.ExtractionMethod,
	}
	return det, nil
}
