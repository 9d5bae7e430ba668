package google

import (
	"fmt"
	"strings"

	"kakeibo/internal/core"
)

// Row 1 of the categories sheet is a header.
const firstDataRow = 2

var entriesHeader = []any{"日付", "カテゴリ", "サブカテゴリ", "金額", "タイプ", "メモ", "ID"}

// parseCategoryRows converts the A:B values of the categories sheet into
// categories. Blank names and # comments are skipped, duplicates merged.
func parseCategoryRows(values [][]any) []core.Category {
	index := map[string]int{}
	out := []core.Category{}
	for _, raw := range values {
		row := toStrings(raw)
		name := safeGet(row, 0)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, core.Category{Name: name, Sub: []string{}})
		}
		for _, sub := range splitSubs(safeGet(row, 1)) {
			if !out[i].HasSub(sub) {
				out[i].Sub = append(out[i].Sub, sub)
			}
		}
	}
	return out
}

// splitSubs splits on ASCII or ideographic commas.
func splitSubs(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '、' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func joinSubs(subs []string) string {
	return strings.Join(subs, ", ")
}

// findRow returns the index within values of the row named name, or -1.
func findRow(values [][]any, name string) int {
	for i, raw := range values {
		if safeGet(toStrings(raw), 0) == name {
			return i
		}
	}
	return -1
}

func entryRows(entries []core.Entry) [][]any {
	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, entriesHeader)
	for _, e := range core.SortByDate(entries, false) {
		rows = append(rows, []any{
			e.Date,
			e.Category,
			e.SubCategory,
			int64(e.Amount),
			string(e.Type),
			e.Memo,
			e.ID,
		})
	}
	return rows
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
