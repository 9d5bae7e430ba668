package backend

import (
	"context"

	"kakeibo/internal/amqp"
	"kakeibo/internal/remote"
	"kakeibo/internal/remote/google"
	"kakeibo/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the stores a process works against and the optional
// infrastructure behind them.
type Result struct {
	Entries    remote.EntryStore
	Categories remote.CategoryStore

	// Repository is the SQLite storage. Nil for the memory backend.
	Repository *storage.SQLiteRepository
	// Events is set when AMQP notifications are enabled.
	Events *amqp.Client
	// Sheets is set when a spreadsheet is configured and reachable.
	Sheets *google.Client

	// Listen feeds change messages from other processes into the entry
	// watchers until ctx is done. Nil when AMQP is disabled.
	Listen func(ctx context.Context) error

	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type       BackendType
	Categories CategorySource

	// SQLite specific
	SQLiteDBPath    string
	AMQPURL         string
	AMQPExchange    string
	AMQPMirrorQueue string

	// Google Sheets specific
	Sheets google.Config

	// Memory backend specific
	SeedDir string
}

// BackendType represents the type of entry backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CategorySource selects where the taxonomy lives.
type CategorySource string

const (
	// CategoriesFromStore keeps categories next to the entries.
	CategoriesFromStore  CategorySource = "store"
	CategoriesFromSheets CategorySource = "sheets"
)

func (cs CategorySource) IsValid() bool {
	return cs == CategoriesFromStore || cs == CategoriesFromSheets
}
