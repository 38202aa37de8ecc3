package repository

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
)

// AuditRepository is the append-only operation trail. Append must never take
// down the caller: a failed audit write is logged and swallowed.
type AuditRepository interface {
	Append(ctx context.Context, op constants.Operation, propertyID string, status constants.AuditStatus, message string)
	ListRecent(ctx context.Context, propertyID string, limit int) ([]entity.AuditLog, error)
}

type auditRepository struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditRepository(db *gorm.DB, logger *slog.Logger) AuditRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &auditRepository{db: db, logger: logger, now: time.Now}
}

func (r *auditRepository) Append(ctx context.Context, op constants.Operation, propertyID string, status constants.AuditStatus, message string) {
	row := auditLogRow{
		Operation:  string(op),
		PropertyID: propertyID,
		Status:     string(status),
		Message:    message,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.logger.Error("repository.audit.append_failed",
			"operation", string(op),
			"property_id", propertyID,
			"error", err,
		)
	}
}

func (r *auditRepository) ListRecent(ctx context.Context, propertyID string, limit int) ([]entity.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if propertyID != "" {
		q = q.Where("property_id = ?", propertyID)
	}
	var rows []auditLogRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, common.NewAppError(common.KindPersistenceFailed, "QUERY_AUDIT", "listing audit logs", err)
	}
	out := make([]entity.AuditLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.AuditLog{
			ID:         row.ID,
			Operation:  constants.Operation(row.Operation),
			PropertyID: row.PropertyID,
			Status:     constants.AuditStatus(row.Status),
			Message:    row.Message,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}
