package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"kakeibo/internal/core"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	incomeStyle  = numberStyle.Foreground(lipgloss.Color("2"))
	expenseStyle = numberStyle.Foreground(lipgloss.Color("1"))
)

// newTable returns a bordered table whose listed columns are right-aligned.
func newTable(headers []string, numeric ...int) *table.Table {
	right := map[int]bool{}
	for _, c := range numeric {
		right[c] = true
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case right[col]:
				return numberStyle
			default:
				return cellStyle
			}
		})
}

func entryTable(entries []core.Entry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("日付", "タイプ", "カテゴリ", "サブカテゴリ", "金額", "メモ", "ID")
	for _, e := range entries {
		t.Row(e.Date, string(e.Type), e.Category, e.SubCategory, e.Amount.Yen(), e.Memo, e.ID)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col != 4 || row < 0 || row >= len(entries) {
			return cellStyle
		}
		if entries[row].Type == core.Income {
			return incomeStyle
		}
		return expenseStyle
	})
	return t.String()
}

// share formats part of total as a percentage with one decimal.
func share(part, total core.Amount) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

func distributionTable(dist []core.CategoryAmount) string {
	var total core.Amount
	for _, d := range dist {
		total += d.Amount
	}
	t := newTable([]string{"カテゴリ", "金額", "割合"}, 1, 2)
	for _, d := range dist {
		t.Row(d.Name, d.Amount.Yen(), share(d.Amount, total))
	}
	return t.String()
}

func overviewLine(o core.MonthOverview) string {
	return strings.Join([]string{
		o.Month,
		"収入 " + o.Income.Yen(),
		"支出 " + o.Expense.Yen(),
		"収支 " + o.Balance.Yen(),
		fmt.Sprintf("(%d件)", o.Count),
	}, "  ")
}
