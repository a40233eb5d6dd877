package database

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DatabaseType represents the supported database types
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeMySQL      DatabaseType = "mysql"
)

// ParseDatabaseType accepts the common spellings of each type
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgreSQL, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// DatabaseConfig holds the configuration for database connections
type DatabaseConfig struct {
	Type DatabaseType `yaml:"type"`
	// Path is the SQLite file
	Path string `yaml:"path"`
	// DSN is the connection string for PostgreSQL and MySQL
	DSN string `yaml:"dsn"`

	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"` // minutes
}

// DefaultDatabaseConfig returns a SQLite config rooted in dataDir
func DefaultDatabaseConfig(dataDir string) *DatabaseConfig {
	return &DatabaseConfig{
		Type:            DatabaseTypeSQLite,
		Path:            DefaultDatabasePath(dataDir),
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 60,
	}
}

// DefaultDatabasePath returns the SQLite file used when none is configured
func DefaultDatabasePath(dataDir string) string {
	if dataDir == "" {
		dataDir = "./data"
	}
	return filepath.Join(dataDir, "ebook-reader.db")
}

// Validate checks if the database configuration is valid
func (c *DatabaseConfig) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.Path == "" {
			return fmt.Errorf("SQLite database path is required")
		}
	case DatabaseTypePostgreSQL, DatabaseTypeMySQL:
		if c.DSN == "" {
			return fmt.Errorf("database DSN is required for %s", c.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}
