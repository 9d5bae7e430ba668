package backend

import (
	"fmt"

	"kakeibo/internal/config"
	"kakeibo/internal/remote/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	cfg := Config{
		Type:       backendType,
		Categories: CategorySource(appConfig.CategoryBackend),

		SQLiteDBPath:    appConfig.SQLiteDBPath,
		AMQPURL:         appConfig.AMQPURL,
		AMQPExchange:    appConfig.AMQPExchange,
		AMQPMirrorQueue: appConfig.AMQPMirrorQueue,

		Sheets: google.Config{
			SpreadsheetID:      appConfig.GoogleSpreadsheetID,
			CategoriesSheet:    appConfig.GoogleCategoriesSheet,
			EntriesSheet:       appConfig.GoogleEntriesSheet,
			ServiceAccountJSON: appConfig.GoogleCredentialsJSON,
			ServiceAccountFile: appConfig.GoogleCredentialsFile,
		},

		SeedDir: appConfig.SeedDir,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Categories.IsValid() {
		return fmt.Errorf("invalid category source: %s", c.Categories)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		// AMQP is optional, so we don't validate it
	case MemoryBackend:
		if c.AMQPURL != "" {
			return fmt.Errorf("AMQP notifications need the sqlite backend")
		}
	}

	if c.Categories == CategoriesFromSheets && c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets categories")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
