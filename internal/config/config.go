package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	CategoriesFromStore  = "store"
	CategoriesFromSheets = "sheets"
)

type Config struct {
	// Backend selection
	DataBackend     string `toml:"backend"`
	CategoryBackend string `toml:"category_backend"`

	// Database
	SQLiteDBPath string `toml:"sqlite_db_path"`

	// Memory backend seed directory (seed_categories.txt)
	SeedDir string `toml:"seed_dir"`

	// AMQP, empty URL disables cross-process notifications
	AMQPURL         string `toml:"amqp_url"`
	AMQPExchange    string `toml:"amqp_exchange"`
	AMQPMirrorQueue string `toml:"amqp_mirror_queue"`

	// Google Sheets
	GoogleSpreadsheetID   string `toml:"google_spreadsheet_id"`
	GoogleCategoriesSheet string `toml:"google_categories_sheet"`
	GoogleEntriesSheet    string `toml:"google_entries_sheet"`
	GoogleCredentialsFile string `toml:"google_credentials_file"`
	GoogleCredentialsJSON string `toml:"-"` // environment only

	// Session
	UserID       string        `toml:"user_id"`
	WriteTimeout time.Duration `toml:"write_timeout"` // "10s" style strings

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DataBackend:           BackendSQLite,
		CategoryBackend:       CategoriesFromStore,
		SQLiteDBPath:          "./data/kakeibo.db",
		AMQPExchange:          "kakeibo.events",
		AMQPMirrorQueue:       "kakeibo.mirror",
		GoogleCategoriesSheet: "Categories",
		GoogleEntriesSheet:    "Entries",
		WriteTimeout:          10 * time.Second,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load reads the environment over the defaults. When KAKEIBO_CONFIG names a
// file it is applied first, so environment variables always win.
func Load() (*Config, error) {
	return LoadWithFile(os.Getenv("KAKEIBO_CONFIG"))
}

// LoadWithFile applies defaults, then the TOML file at path (if non-empty),
// then the environment.
func LoadWithFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataBackend = getEnv("KAKEIBO_BACKEND", c.DataBackend)
	c.CategoryBackend = getEnv("KAKEIBO_CATEGORY_BACKEND", c.CategoryBackend)
	c.SQLiteDBPath = getEnv("KAKEIBO_SQLITE_DB_PATH", c.SQLiteDBPath)
	c.SeedDir = getEnv("KAKEIBO_SEED_DIR", c.SeedDir)

	c.AMQPURL = getEnv("KAKEIBO_AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("KAKEIBO_AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPMirrorQueue = getEnv("KAKEIBO_AMQP_MIRROR_QUEUE", c.AMQPMirrorQueue)

	c.GoogleSpreadsheetID = getEnv("KAKEIBO_GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleCategoriesSheet = getEnv("KAKEIBO_GOOGLE_CATEGORIES_SHEET", c.GoogleCategoriesSheet)
	c.GoogleEntriesSheet = getEnv("KAKEIBO_GOOGLE_ENTRIES_SHEET", c.GoogleEntriesSheet)
	c.GoogleCredentialsFile = getEnv("KAKEIBO_GOOGLE_CREDENTIALS_FILE", c.GoogleCredentialsFile)
	c.GoogleCredentialsJSON = getEnv("KAKEIBO_GOOGLE_CREDENTIALS_JSON", c.GoogleCredentialsJSON)

	c.UserID = getEnv("KAKEIBO_USER_ID", c.UserID)
	c.WriteTimeout = getEnvDuration("KAKEIBO_WRITE_TIMEOUT", c.WriteTimeout)

	c.LogLevel = getEnv("KAKEIBO_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("KAKEIBO_LOG_FORMAT", c.LogFormat)
}

// SheetsConfigured reports whether a spreadsheet is set up.
func (c *Config) SheetsConfigured() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	validBackends := []string{BackendMemory, BackendSQLite}
	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	validCategoryBackends := []string{CategoriesFromStore, CategoriesFromSheets}
	if !contains(validCategoryBackends, c.CategoryBackend) {
		errors = append(errors, fmt.Sprintf("invalid category backend '%s': must be one of %v", c.CategoryBackend, validCategoryBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == BackendMemory && c.SeedDir != "" {
		if info, err := os.Stat(c.SeedDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("seed directory does not exist: %s", c.SeedDir))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPMirrorQueue == "" {
			errors = append(errors, "AMQP mirror queue name cannot be empty when AMQP URL is provided")
		}
		if c.DataBackend == BackendMemory {
			errors = append(errors, "AMQP notifications require the sqlite backend")
		}
	}

	// Validate Google Sheets configuration if categories come from sheets
	if c.CategoryBackend == CategoriesFromSheets && !c.SheetsConfigured() {
		errors = append(errors, "Google Spreadsheet ID is required when categories come from sheets")
	}
	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	if c.WriteTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid write timeout %v: must not be negative", c.WriteTimeout))
	} else if c.WriteTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid write timeout %v: must be at most 5 minutes", c.WriteTimeout))
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
