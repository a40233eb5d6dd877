// Package config loads application settings from YAML and the environment
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drallgood/ebook-reader/internal/logger"
)

// DefaultAPIURL is the production API root
const DefaultAPIURL = "https://api.volcanion-ebook.com/v1"

// Config holds all configuration for the application
type Config struct {
	API struct {
		URL string `yaml:"url"`
		// RateLimit is the minimum spacing between requests; 0 disables throttling
		RateLimit time.Duration `yaml:"rate_limit"`
		RateBurst int           `yaml:"rate_burst"`
	} `yaml:"api"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Credential storage
	Storage struct {
		Backend       string `yaml:"backend"`
		Path          string `yaml:"path"`
		DSN           string `yaml:"dsn"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		Scope         string `yaml:"scope"`
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"storage"`

	Push struct {
		// DedupeWindow is how long a delivered push id is remembered
		DedupeWindow time.Duration `yaml:"dedupe_window"`
		// DailyReminder is a cron spec; empty disables the reminder
		DailyReminder string `yaml:"daily_reminder"`
	} `yaml:"push"`

	Paths struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"paths"`
}

var storageBackends = map[string]bool{
	"file": true, "sqlite": true, "postgres": true, "mysql": true, "redis": true, "memory": true,
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	cfg.API.URL = DefaultAPIURL
	cfg.API.RateBurst = 5
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Storage.Backend = "file"
	cfg.Storage.Scope = "default"
	cfg.Push.DedupeWindow = 10 * time.Minute
	cfg.Paths.DataDir = defaultDataDir()
	return cfg
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ebook-reader")
	}
	return "./data"
}

// Load reads configFile (optional) over the defaults, then applies
// environment overrides and validates the result.
// Priority: environment, config file, defaults.
func Load(configFile string) (*Config, error) {
	log := logger.Component("config")
	cfg := Default()

	if configFile != "" {
		if err := cfg.loadFile(configFile); err != nil {
			return nil, err
		}
		log.Debug("Loaded configuration file", map[string]interface{}{"path": configFile})
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug("Configuration loaded", map[string]interface{}{
		"api_url":         cfg.API.URL,
		"storage_backend": cfg.Storage.Backend,
		"data_dir":        cfg.Paths.DataDir,
		"rate_limit":      cfg.API.RateLimit.String(),
		"has_encryption":  cfg.Storage.EncryptionKey != "",
	})
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ConfigError{Field: "config file", Msg: fmt.Sprintf("%s does not exist", path)}
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys absent from the file keep their defaults.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("EBOOK_API_URL"); v != "" {
		c.API.URL = strings.TrimSuffix(v, "/")
	}
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		d, err := parseRate(v)
		if err != nil {
			return &ConfigError{Field: "API_RATE_LIMIT", Msg: err.Error()}
		}
		c.API.RateLimit = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Storage.RedisPassword = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.Storage.EncryptionKey = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	return nil
}

// parseRate accepts a duration ("250ms") or a number of requests per second ("4")
func parseRate(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	perSecond, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a duration or requests per second, got %q", v)
	}
	if perSecond <= 0 {
		return 0, nil
	}
	return time.Duration(float64(time.Second) / perSecond), nil
}

// Validate checks that the configuration can be used
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "api.url", Msg: fmt.Sprintf("must be an absolute URL, got %q", c.API.URL)}
	}
	if c.API.RateLimit < 0 {
		return &ConfigError{Field: "api.rate_limit", Msg: "must not be negative"}
	}

	if !storageBackends[c.Storage.Backend] {
		return &ConfigError{Field: "storage.backend", Msg: fmt.Sprintf("unknown backend %q", c.Storage.Backend)}
	}
	switch c.Storage.Backend {
	case "postgres", "mysql":
		if c.Storage.DSN == "" {
			return &ConfigError{Field: "DATABASE_DSN", Msg: "is required for the " + c.Storage.Backend + " backend"}
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return &ConfigError{Field: "REDIS_ADDR", Msg: "is required for the redis backend"}
		}
	}

	if c.Paths.DataDir == "" {
		return &ConfigError{Field: "paths.data_dir", Msg: "must not be empty"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Msg
}
