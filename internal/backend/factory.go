package backend

import (
	"context"
	"errors"
	"fmt"

	"kakeibo/internal/adapters"
	"kakeibo/internal/amqp"
	"kakeibo/internal/log"
	"kakeibo/internal/remote/google"
	"kakeibo/internal/remote/memory"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
	"kakeibo/internal/taxonomy"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := f.attachSheets(ctx, config, res); err != nil {
		res.Close()
		return nil, err
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.Categories == CategoriesFromStore {
		if _, err := sqliteRepo.SeedCategories(ctx, taxonomy.DefaultCategories()); err != nil {
			f.logger.Warn("Failed to seed default categories", log.FieldError, err)
		}
	}

	// Initialize AMQP client (optional)
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange)
		}
	}

	entryService := services.NewEntryService(sqliteRepo)
	if amqpClient != nil {
		entryService.AddNotifier(amqpClient)
	}
	adapter := adapters.NewSQLiteAdapter(sqliteRepo, entryService)

	res := &Result{
		Entries:    adapter,
		Categories: adapter.Categories(),
		Repository: sqliteRepo,
		Cleanup:    adapter.Close,
	}
	if amqpClient != nil {
		adapter.SetOrigin(amqpClient.Origin())
		res.Events = amqpClient
		res.Listen = func(ctx context.Context) error {
			// A server-named queue per process: every process sees every change.
			return amqpClient.Consume(ctx, amqp.QueueOptions{}, adapter.HandleEntriesChanged)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	store := memory.New(nil)
	if config.SeedDir != "" {
		store = memory.NewFromFiles(config.SeedDir)
	}

	f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)

	return &Result{
		Entries:    store,
		Categories: store.Categories(),
		Cleanup:    store.Close,
	}, nil
}

// attachSheets connects the spreadsheet when one is configured. It is
// required only when the taxonomy lives there.
func (f *DefaultFactory) attachSheets(ctx context.Context, config Config, res *Result) error {
	if config.Sheets.SpreadsheetID == "" {
		return nil
	}

	cli, err := google.New(ctx, config.Sheets)
	if err != nil {
		if config.Categories == CategoriesFromSheets {
			return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Warn("Google Sheets unavailable, mirroring disabled", log.FieldError, err)
		return nil
	}

	res.Sheets = cli
	if config.Categories == CategoriesFromSheets {
		res.Categories = cli
	}
	f.logger.Info("Initialized Google Sheets client",
		"categories_from_sheets", config.Categories == CategoriesFromSheets)
	return nil
}

// ErrNoMirror is returned by CanMirror when the worker cannot run.
var ErrNoMirror = errors.New("mirror needs the sqlite backend, AMQP and a spreadsheet")

// CanMirror reports whether res has everything the Sheets mirror worker needs.
func (r *Result) CanMirror() error {
	if r.Repository == nil || r.Events == nil || r.Sheets == nil {
		return ErrNoMirror
	}
	return nil
}
