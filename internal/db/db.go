package db

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"batchtrack-backend/config"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
)

// Init opens the PostgreSQL connection pool and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dsn := withStatementTimeout(cfg.DSN, cfg.StatementTimeoutSeconds)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := Migrate(db, log); err != nil {
		return nil, err
	}
	log.Info("database initialization complete")
	return db, nil
}

// OpenSQLite opens a SQLite database, used by tests and local tooling. The pool
// is pinned to one connection so transactions serialize like row locks would.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the shared tables and every per-line partition.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	if err := db.AutoMigrate(
		&model.CollectionCenter{},
		&model.BatchSequence{},
	); err != nil {
		return fmt.Errorf("automigrate reference tables failed: %w", err)
	}

	registry := partition.NewRegistry()
	for i, line := range model.ProductLines {
		set := registry.Line(line)
		tables := []struct {
			handle partition.Handle
			value  any
		}{
			{set.Drafts, &model.Draft{}},
			{set.Completions, &model.CenterCompletion{}},
			{set.Cans, &model.Can{}},
			{set.Processing, &model.ProcessingBatch{}},
			{set.Assignments, &model.ProcessingAssignment{}},
			{set.Packaging, &model.PackagingBatch{}},
			{set.Labeling, &model.LabelingBatch{}},
		}
		for _, t := range tables {
			// shared tables are migrated with the first line only
			if t.handle.Shared() && i > 0 {
				continue
			}
			if err := migrateTable(db, t.handle, t.value); err != nil {
				return err
			}
		}
		log.Debug("partition migrated", zap.String("line", string(line)))
	}
	return nil
}

func migrateTable(db *gorm.DB, h partition.Handle, value any) error {
	if err := h.Scope(db).AutoMigrate(value); err != nil {
		return fmt.Errorf("automigrate %s failed: %w", h.Table(), err)
	}
	return nil
}

// Seed inserts default collection centers when none exist.
func Seed(db *gorm.DB, log *zap.Logger, centers []model.CollectionCenter) error {
	var count int64
	if err := db.Model(&model.CollectionCenter{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count collection centers: %w", err)
	}
	if count > 0 {
		log.Info("seed data already exists, skipping")
		return nil
	}
	if len(centers) == 0 {
		return nil
	}
	if err := db.Create(&centers).Error; err != nil {
		return fmt.Errorf("seed collection centers: %w", err)
	}
	log.Info("seeded collection centers", zap.Int("count", len(centers)))
	return nil
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// withStatementTimeout adds a statement_timeout runtime parameter to dsn so
// every pooled connection inherits it.
func withStatementTimeout(dsn string, seconds int) string {
	if seconds <= 0 || dsn == "" || strings.Contains(dsn, "statement_timeout") {
		return dsn
	}
	ms := seconds * 1000
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		q.Set("statement_timeout", fmt.Sprintf("%d", ms))
		u.RawQuery = q.Encode()
		return u.String()
	}
	return fmt.Sprintf("%s statement_timeout=%d", dsn, ms)
}
