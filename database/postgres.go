package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"splitledger/config"
	"splitledger/models"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database named by cfg.DBDriver and cfg.DatabaseURL.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres", "postgresql", "":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn), cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// One writer at a time; also makes PRAGMA foreign_keys stick.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	slog.Info("Database connected", "driver", db.Dialector.Name())
	return db, nil
}

// Migrate creates or updates every ledger table.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Expense{},
		&models.ExpenseShare{},
		&models.Settlement{},
		&models.Activity{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	slog.Info("Database migrated")
	return nil
}

// snapshotOptions picks the isolation used for consistent ledger reads.
// SQLite transactions are already serializable and reject explicit levels.
func snapshotOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// newGormLogger writes gorm's SQL log through w. Lookups that find nothing
// are normal control flow here and are not logged as errors.
func newGormLogger(w logger.Writer, level string) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLogLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "warn", "info":
		return logger.Warn
	default:
		return logger.Error
	}
}
