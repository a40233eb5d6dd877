// Package database opens the SQL store that backs persisted credentials
package database

import (
	"fmt"

	"gorm.io/gorm"

	appLogger "github.com/drallgood/ebook-reader/internal/logger"
)

// Database wraps the GORM database connection
type Database struct {
	db     *gorm.DB
	config *DatabaseConfig
	logger *appLogger.Logger
}

// Open connects with the driver for config.Type and migrates the schema
func Open(config *DatabaseConfig, log *appLogger.Logger) (*Database, error) {
	if log == nil {
		log = appLogger.Component("database")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	driver, err := GetDatabaseDriver(config.Type)
	if err != nil {
		return nil, err
	}

	db, err := driver.Connect(config, log)
	if err != nil {
		return nil, err
	}

	database := &Database{db: db, config: config, logger: log}
	if err := database.migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database connection established", map[string]interface{}{
		"type": config.Type,
	})
	return database, nil
}

func (d *Database) migrate() error {
	if err := d.db.AutoMigrate(&Credential{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.logger.Debug("Database connection closed")
	return nil
}

// GetDB returns the underlying GORM database instance
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// Health checks the database connection
func (d *Database) Health() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
