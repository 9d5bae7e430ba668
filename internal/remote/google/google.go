package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	"kakeibo/internal/remote"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID      string
	CategoriesSheet    string // default "Categories"
	EntriesSheet       string // default "Entries"
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client stores the category collection in one sheet (column A the name,
// column B the comma-separated subs) and mirrors entry snapshots to another.
type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	categoriesSheet string
	entriesSheet    string
}

// Ensure interface conformance
var _ remote.CategoryStore = (*Client)(nil)

var errNoService = errors.New("sheets service not initialized")

// New creates a Sheets client from cfg. Credentials come from
// cfg.ServiceAccountJSON, cfg.ServiceAccountFile or, failing both,
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, spreadsheetID, cfg), nil
}

func newClient(svc *gsheet.Service, spreadsheetID string, cfg Config) *Client {
	cats := strings.TrimSpace(cfg.CategoriesSheet)
	if cats == "" {
		cats = "Categories"
	}
	entries := strings.TrimSpace(cfg.EntriesSheet)
	if entries == "" {
		entries = "Entries"
	}
	return &Client{
		svc:             svc,
		spreadsheetID:   spreadsheetID,
		categoriesSheet: cats,
		entriesSheet:    entries,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set KAKEIBO_GOOGLE_CREDENTIALS_JSON, KAKEIBO_GOOGLE_CREDENTIALS_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// List implements remote.CategoryStore
func (c *Client) List(ctx context.Context) ([]core.Category, error) {
	values, err := c.readCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return parseCategoryRows(values), nil
}

// Put implements remote.CategoryStore. An existing row is overwritten in
// place; a new category is appended after the last row.
func (c *Client) Put(ctx context.Context, cat core.Category) error {
	if strings.TrimSpace(cat.Name) == "" {
		return remote.WrapWrite("put", errors.New("empty category name"))
	}
	values, err := c.readCategories(ctx)
	if err != nil {
		return remote.WrapWrite("put", err)
	}

	row := []any{cat.Name, joinSubs(cat.Sub)}
	if i := findRow(values, cat.Name); i >= 0 {
		rng := fmt.Sprintf("%s!A%d:B%d", c.categoriesSheet, i+firstDataRow, i+firstDataRow)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("RAW").Context(ctx).Do()
	} else {
		rng := fmt.Sprintf("%s!A:B", c.categoriesSheet)
		_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	}
	if err != nil {
		return remote.WrapWrite("put", fmt.Errorf("write category %s: %w", cat.Name, err))
	}
	slog.InfoContext(ctx, "Category written to sheet", "category", cat.Name, "sheet", c.categoriesSheet)
	return nil
}

// Delete implements remote.CategoryStore. The row is blanked, which List skips.
func (c *Client) Delete(ctx context.Context, name string) error {
	values, err := c.readCategories(ctx)
	if err != nil {
		return remote.WrapWrite("delete", err)
	}
	i := findRow(values, name)
	if i < 0 {
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:B%d", c.categoriesSheet, i+firstDataRow, i+firstDataRow)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return remote.WrapWrite("delete", fmt.Errorf("clear %s: %w", rng, err))
	}
	slog.InfoContext(ctx, "Category cleared from sheet", "category", name, "range", rng)
	return nil
}

func (c *Client) readCategories(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errNoService
	}
	rng := fmt.Sprintf("%s!A%d:B", c.categoriesSheet, firstDataRow)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// ReplaceEntries overwrites the entries sheet with a header and one row per
// entry, oldest first, and returns the written range.
func (c *Client) ReplaceEntries(ctx context.Context, entries []core.Entry) (string, error) {
	if c.svc == nil {
		return "", errNoService
	}

	clearRng := fmt.Sprintf("%s!A:G", c.entriesSheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRng, err)
	}

	rows := entryRows(entries)
	rng := fmt.Sprintf("%s!A1:G%d", c.entriesSheet, len(rows))
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", rng, err)
	}
	if resp != nil && resp.UpdatedRange != "" {
		rng = resp.UpdatedRange
	}
	return rng, nil
}
