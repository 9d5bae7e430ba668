package core

// Unclassified is the bucket used for entries without a sub-category.
const Unclassified = "(unclassified)"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Amount `json:"value"`
}

// Totals holds income and expense sums for a set of entries.
type Totals struct {
	Income  Amount `json:"income"`
	Expense Amount `json:"expense"`
}

// Balance is income minus expense.
func (t Totals) Balance() Amount {
	return t.Income - t.Expense
}

// AssetPoint is one point of the cumulative asset series.
type AssetPoint struct {
	Date  string `json:"date"`
	Asset Amount `json:"asset"`
}

// MonthOverview is a compact summary for a specific year-month.
type MonthOverview struct {
	Month   string `json:"month"` // YYYY-MM
	Income  Amount `json:"income"`
	Expense Amount `json:"expense"`
	Balance Amount `json:"balance"`
	Count   int    `json:"count"`
}
