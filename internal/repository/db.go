// Package repository is the relational persistence layer: properties,
// verification records and details, tamper checks, and the audit trail.
// SQLite is the default backend; MySQL is available for shared deployments.
package repository

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/proptrust/proptrust/internal/common"
)

type Config struct {
	Backend string // "sqlite" | "mysql"
	Path    string // sqlite file path (":memory:" for tests)
	DSN     string // mysql DSN
}

// Open connects to the configured backend and migrates the schema.
func Open(cfg Config, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gcfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var db *gorm.DB
	var err error
	switch cfg.Backend {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "proptrust.db"
		}
		db, err = gorm.Open(sqlite.Open(path), gcfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.DSN), gcfg)
	default:
		return nil, common.NewAppError(common.KindBadInput, "CONFIG_ERROR",
			fmt.Sprintf("unknown database backend %q", cfg.Backend), common.ErrInvalidInput)
	}
	if err != nil {
		logger.Error("repository.open.failed", "backend", cfg.Backend, "error", err)
		return nil, common.NewAppError(common.KindPersistenceFailed, "DB_OPEN",
			"failed to open database", err)
	}

	if err := db.AutoMigrate(
		&propertyRow{},
		&verificationRecordRow{},
		&verificationDetailRow{},
		&tamperCheckRow{},
		&auditLogRow{},
	); err != nil {
		return nil, common.NewAppError(common.KindPersistenceFailed, "DB_MIGRATE",
			"failed to migrate schema", err)
	}

	logger.Info("repository.open.ok", "backend", cfg.Backend)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("repository.close.failed", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("repository.close.failed", "error", err)
	}
}
