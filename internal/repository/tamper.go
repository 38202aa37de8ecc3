package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
)

// TamperRepository persists tamper-check outcomes.
type TamperRepository interface {
	Insert(ctx context.Context, check entity.TamperCheck) error
	ListByProperty(ctx context.Context, propertyID string, limit int) ([]entity.TamperCheck, error)
}

type tamperRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewTamperRepository(db *gorm.DB, logger *slog.Logger) TamperRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &tamperRepository{db: db, logger: logger}
}

func (r *tamperRepository) Insert(ctx context.Context, check entity.TamperCheck) error {
	warnings, err := json.Marshal(check.Warnings)
	if err != nil {
		return common.NewAppError(common.KindInternal, "ENCODE_TAMPER", "encoding warnings", err)
	}
	row := tamperCheckRow{
		TamperCheckID:         check.TamperCheckID.String(),
		PropertyID:            check.PropertyID,
		AnchoredFingerprint:   check.AnchoredFingerprint,
		RecomputedFingerprint: check.RecomputedFingerprint,
		HashMatched:           check.HashMatched,
		RiskScoreDelta:        check.RiskScoreDelta,
		Status:                string(check.Status),
		WarningsJSON:          string(warnings),
		CreatedAt:             check.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.logger.Error("repository.tamper.insert_failed", "property_id", check.PropertyID, "error", err)
		return common.NewAppError(common.KindPersistenceFailed, "INSERT_TAMPER", "persisting tamper check", err)
	}
	return nil
}

func (r *tamperRepository) ListByProperty(ctx context.Context, propertyID string, limit int) ([]entity.TamperCheck, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []tamperCheckRow
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, common.NewAppError(common.KindPersistenceFailed, "QUERY_TAMPER", "listing tamper checks", err)
	}
	out := make([]entity.TamperCheck, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.TamperCheckID)
		if err != nil {
			return nil, common.NewAppError(common.KindInternal, "DECODE_TAMPER", "malformed tamper check id", err)
		}
		var warnings []string
		if row.WarningsJSON != "" {
			if err := json.Unmarshal([]byte(row.WarningsJSON), &warnings); err != nil {
				return nil, common.NewAppError(common.KindInternal, "DECODE_TAMPER", "malformed warnings document", err)
			}
		}
		out = append(out, entity.TamperCheck{
			TamperCheckID:         id,
			PropertyID:            row.PropertyID,
			AnchoredFingerprint:   row.AnchoredFingerprint,
			RecomputedFingerprint: row.RecomputedFingerprint,
			HashMatched:           row.HashMatched,
			RiskScoreDelta:        row.RiskScoreDelta,
			Status:                constants.TamperStatus(row.Status),
			Warnings:              warnings,
			CreatedAt:             row.CreatedAt,
		})
	}
	return out, nil
}
