package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the local cache database selected by CACHE_DRIVER.
func Connect(cfg *config.Config) error {
	db, err := Open(cfg.CacheDriver, dsnFor(cfg))
	if err != nil {
		return err
	}
	DB = db
	slog.Info("database connected", "driver", cfg.CacheDriver)
	return nil
}

func dsnFor(cfg *config.Config) string {
	if cfg.CacheDriver == "postgres" {
		return cfg.PostgresDSN()
	}
	return cfg.SQLiteDSN()
}

// Open returns a configured handle without touching the package-level DB.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if driver == "sqlite" {
		// One writer at a time; extra connections only produce SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}
	return db, nil
}

// Migrate creates the cache and log tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CachedPatient{},
		&models.CachedCapture{},
		&models.SystemLog{},
	)
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
