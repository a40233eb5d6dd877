package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// Pure Go SQLite driver (no CGO required)
	_ "modernc.org/sqlite"

	appLogger "github.com/drallgood/ebook-reader/internal/logger"
)

// DatabaseDriver opens a gorm connection for one database type
type DatabaseDriver interface {
	Connect(config *DatabaseConfig, log *appLogger.Logger) (*gorm.DB, error)
	GetDialector(config *DatabaseConfig) gorm.Dialector
}

// SQLiteDriver uses modernc.org/sqlite through the gorm sqlite dialector
type SQLiteDriver struct{}

func (d *SQLiteDriver) Connect(config *DatabaseConfig, log *appLogger.Logger) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(d.GetDialector(config), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil && log != nil {
		log.Warn("Failed to enable WAL mode", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return db, nil
}

func (d *SQLiteDriver) GetDialector(config *DatabaseConfig) gorm.Dialector {
	return sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        config.Path,
	}
}

// PostgreSQLDriver implements DatabaseDriver for PostgreSQL
type PostgreSQLDriver struct{}

func (d *PostgreSQLDriver) Connect(config *DatabaseConfig, log *appLogger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(d.GetDialector(config), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}
	if err := configurePool(db, config); err != nil {
		return nil, err
	}
	return db, nil
}

func (d *PostgreSQLDriver) GetDialector(config *DatabaseConfig) gorm.Dialector {
	return postgres.Open(config.DSN)
}

// MySQLDriver implements DatabaseDriver for MySQL and MariaDB
type MySQLDriver struct{}

func (d *MySQLDriver) Connect(config *DatabaseConfig, log *appLogger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(d.GetDialector(config), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}
	if err := configurePool(db, config); err != nil {
		return nil, err
	}
	return db, nil
}

func (d *MySQLDriver) GetDialector(config *DatabaseConfig) gorm.Dialector {
	return mysql.Open(config.DSN)
}

func configurePool(db *gorm.DB, config *DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Minute)
	}
	return nil
}

// GetDatabaseDriver returns the appropriate driver for the given database type
func GetDatabaseDriver(dbType DatabaseType) (DatabaseDriver, error) {
	switch dbType {
	case DatabaseTypeSQLite:
		return &SQLiteDriver{}, nil
	case DatabaseTypePostgreSQL:
		return &PostgreSQLDriver{}, nil
	case DatabaseTypeMySQL:
		return &MySQLDriver{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
