// Package export serializes a read-only snapshot of entries for
// spreadsheet applications.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"kakeibo/internal/core"
)

// Header is the fixed column order: date, category, amount, type, id.
var Header = []string{"日付", "カテゴリ", "金額", "タイプ", "ID"}

const (
	bom       = "\ufeff"
	sheetName = "家計簿"
)

var columnWidths = map[string]float64{"A": 12, "B": 15, "C": 12, "D": 8, "E": 38}

type Options struct {
	// BOM prefixes the CSV with a UTF-8 byte order mark so spreadsheet
	// applications detect the encoding.
	BOM bool
}

// DefaultOptions matches what spreadsheet users expect.
func DefaultOptions() Options {
	return Options{BOM: true}
}

func record(e core.Entry) []string {
	return []string{
		e.Date,
		e.Category,
		strconv.FormatInt(int64(e.Amount), 10),
		string(e.Type),
		e.ID,
	}
}

// WriteCSV writes the header and one line per entry, in input order. Data
// fields are always double-quoted with embedded quotes doubled, and lines are
// joined with CRLF. An empty snapshot produces no output at all.
func WriteCSV(w io.Writer, entries []core.Entry, opts Options) error {
	if len(entries) == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	if opts.BOM {
		bw.WriteString(bom)
	}
	bw.WriteString(strings.Join(Header, ","))
	for _, e := range entries {
		bw.WriteString("\r\n")
		for i, field := range record(e) {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quote(field))
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteXLSX writes the same columns as WriteCSV to a single-sheet workbook.
// Amounts are stored as numbers.
func WriteXLSX(w io.Writer, entries []core.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.Date, e.Category, int64(e.Amount), string(e.Type), e.ID}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for col, width := range columnWidths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set width of column %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
