package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"kakeibo/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by GetEntry for unknown ids.
var ErrNotFound = errors.New("entry not found")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateEntry stores e under a freshly generated id and returns the stored entry.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, userID string, e core.Entry) (core.Entry, error) {
	e.ID = uuid.NewString()
	if err := r.queries.UpsertEntry(ctx, toRow(userID, e)); err != nil {
		return core.Entry{}, fmt.Errorf("create entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", e.ID,
		"user_id", userID,
		"date", e.Date,
		"category", e.Category,
		"amount", int64(e.Amount))
	return e, nil
}

// ReplaceEntry overwrites the entry with e.ID, inserting it if absent.
func (r *SQLiteRepository) ReplaceEntry(ctx context.Context, userID string, e core.Entry) error {
	if err := r.queries.UpsertEntry(ctx, toRow(userID, e)); err != nil {
		return fmt.Errorf("replace entry %s: %w", e.ID, err)
	}
	slog.InfoContext(ctx, "Entry replaced in SQLite", "id", e.ID, "user_id", userID)
	return nil
}

// DeleteEntry removes an entry and reports whether a row was deleted.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, userID, id string) (bool, error) {
	n, err := r.queries.DeleteEntry(ctx, userID, id)
	if err != nil {
		return false, fmt.Errorf("delete entry %s: %w", id, err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Delete of unknown entry ignored", "id", id, "user_id", userID)
		return false, nil
	}
	slog.InfoContext(ctx, "Entry deleted from SQLite", "id", id, "user_id", userID)
	return true, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, userID, id string) (core.Entry, error) {
	row, err := r.queries.GetEntry(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return fromRow(row), nil
}

// ListEntries returns a user's full collection.
func (r *SQLiteRepository) ListEntries(ctx context.Context, userID string) ([]core.Entry, error) {
	rows, err := r.queries.ListEntriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out := make([]core.Entry, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// ListUsers returns every user id that owns at least one entry.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	users, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		subs := []string{}
		if err := json.Unmarshal([]byte(row.Subs), &subs); err != nil {
			slog.WarnContext(ctx, "Skipping unreadable sub-category list",
				"category", row.Name, "error", err)
		}
		out = append(out, core.Category{Name: row.Name, Sub: subs})
	}
	return out, nil
}

func (r *SQLiteRepository) PutCategory(ctx context.Context, c core.Category) error {
	subs := c.Sub
	if subs == nil {
		subs = []string{}
	}
	raw, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("encode sub-categories: %w", err)
	}
	if err := r.queries.UpsertCategory(ctx, CategoryRow{Name: c.Name, Subs: string(raw)}); err != nil {
		return fmt.Errorf("put category %s: %w", c.Name, err)
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "category", c.Name, "subs", len(subs))
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, name string) error {
	if err := r.queries.DeleteCategory(ctx, name); err != nil {
		return fmt.Errorf("delete category %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Category deleted from SQLite", "category", name)
	return nil
}

// SeedCategories stores cats when the categories table is empty. It reports
// whether anything was written.
func (r *SQLiteRepository) SeedCategories(ctx context.Context, cats []core.Category) (bool, error) {
	existing, err := r.ListCategories(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 || len(cats) == 0 {
		return false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, c := range cats {
		raw, err := json.Marshal(append([]string{}, c.Sub...))
		if err != nil {
			return false, fmt.Errorf("encode sub-categories: %w", err)
		}
		if err := q.UpsertCategory(ctx, CategoryRow{Name: c.Name, Subs: string(raw)}); err != nil {
			return false, fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	slog.InfoContext(ctx, "Categories seeded", "count", len(cats))
	return true, nil
}

func toRow(userID string, e core.Entry) EntryRow {
	return EntryRow{
		ID:          e.ID,
		UserID:      userID,
		Date:        e.Date,
		Category:    e.Category,
		SubCategory: e.SubCategory,
		Amount:      int64(e.Amount),
		Type:        string(e.Type),
		Memo:        e.Memo,
	}
}

func fromRow(row EntryRow) core.Entry {
	return core.Entry{
		ID:          row.ID,
		Date:        row.Date,
		Category:    row.Category,
		SubCategory: row.SubCategory,
		Amount:      core.Amount(row.Amount),
		Type:        core.EntryType(row.Type),
		Memo:        row.Memo,
	}
}
