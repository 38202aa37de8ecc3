package repository

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/proptrust/proptrust/internal/common"
)

// Statistics is the aggregate view served by GET /statistics.
type Statistics struct {
	Properties    int64            `json:"properties"`
	Verifications int64            `json:"verifications"`
	TamperChecks  int64            `json:"tamper_checks"`
	RiskBuckets   map[string]int64 `json:"risk_buckets"` // keyed by risk level
}

// StatsRepository serves aggregate counts.
type StatsRepository interface {
	Statistics(ctx context.Context) (Statistics, error)
}

type statsRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStatsRepository(db *gorm.DB, logger *slog.Logger) StatsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &statsRepository{db: db, logger: logger}
}

func (r *statsRepository) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{RiskBuckets: map[string]int64{}}
	fail := func(err error) (Statistics, error) {
		return Statistics{}, common.NewAppError(common.KindPersistenceFailed, "QUERY_STATS", "computing statistics", err)
	}

	if err := r.db.WithContext(ctx).Model(&propertyRow{}).Count(&stats.Properties).Error; err != nil {
		return fail(err)
	}
	if err := r.db.WithContext(ctx).Model(&verificationRecordRow{}).Count(&stats.Verifications).Error; err != nil {
		return fail(err)
	}
	if err := r.db.WithContext(ctx).Model(&tamperCheckRow{}).Count(&stats.TamperChecks).Error; err != nil {
		return fail(err)
	}

	type bucket struct {
		RiskLevel string
		N         int64
	}
	var buckets []bucket
	err := r.db.WithContext(ctx).Model(&verificationRecordRow{}).
		Select("risk_level, COUNT(*) AS n").
		Group("risk_level").
		Scan(&buckets).Error
	if err != nil {
		return fail(err)
	}
	for _, b := range buckets {
		stats.RiskBuckets[b.RiskLevel] = b.N
	}
	return stats, nil
}
