package core

import (
	"sort"
	"strings"
)

// The functions in this file derive views from an entry collection. They
// never modify their input, never fail, and return empty (non-nil) results
// for empty input.

// MonthKeyOf returns the YYYY-MM bucket of an ISO date.
func MonthKeyOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// FilterByMonth returns the entries whose date falls in monthKey, keeping
// input order.
func FilterByMonth(entries []Entry, monthKey string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if MonthKeyOf(e.Date) == monthKey {
			out = append(out, e)
		}
	}
	return out
}

// TotalsByType sums amounts per type. Entries with an unknown type
// contribute to neither total.
func TotalsByType(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		switch e.Type {
		case Income:
			t.Income += e.Amount
		case Expense:
			t.Expense += e.Amount
		}
	}
	return t
}

// NetAsset is total income minus total expense over the whole collection.
// Callers must pass the unfiltered collection; month filters do not apply.
func NetAsset(entries []Entry) Amount {
	return TotalsByType(entries).Balance()
}

// SortByDate returns a copy sorted by date. The sort is stable, so entries
// sharing a date keep their relative input order.
func SortByDate(entries []Entry, descending bool) []Entry {
	out := append(make([]Entry, 0, len(entries)), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Date > out[j].Date
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// AssetHistory returns the running balance with at most one point per date.
// A point holds the balance after every entry of that date has been applied.
func AssetHistory(entries []Entry) []AssetPoint {
	sorted := SortByDate(entries, false)
	out := make([]AssetPoint, 0, len(sorted))
	var asset Amount
	for _, e := range sorted {
		switch e.Type {
		case Income:
			asset += e.Amount
		case Expense:
			asset -= e.Amount
		}
		if n := len(out); n > 0 && out[n-1].Date == e.Date {
			out[n-1].Asset = asset
			continue
		}
		out = append(out, AssetPoint{Date: e.Date, Asset: asset})
	}
	return out
}

// CategoryDistribution sums amounts of the given type by category, in the
// order categories are first seen in the input.
func CategoryDistribution(entries []Entry, t EntryType) []CategoryAmount {
	return distribute(entries, t, func(e Entry) string { return e.Category })
}

// SubCategoryDistribution is CategoryDistribution keyed by sub-category.
// Blank sub-categories are reported under Unclassified.
func SubCategoryDistribution(entries []Entry, t EntryType) []CategoryAmount {
	return distribute(entries, t, func(e Entry) string {
		if strings.TrimSpace(e.SubCategory) == "" {
			return Unclassified
		}
		return e.SubCategory
	})
}

func distribute(entries []Entry, t EntryType, key func(Entry) string) []CategoryAmount {
	index := map[string]int{}
	out := make([]CategoryAmount, 0)
	for _, e := range entries {
		if e.Type != t {
			continue
		}
		k := key(e)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, CategoryAmount{Name: k})
		}
		out[i].Amount += e.Amount
	}
	return out
}

// MonthKeys lists the distinct year-months present, newest first.
func MonthKeys(entries []Entry) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, e := range entries {
		k := MonthKeyOf(e.Date)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// MonthlySummary returns income, expense and balance for one month.
func MonthlySummary(entries []Entry, monthKey string) MonthOverview {
	month := FilterByMonth(entries, monthKey)
	t := TotalsByType(month)
	return MonthOverview{
		Month:   monthKey,
		Income:  t.Income,
		Expense: t.Expense,
		Balance: t.Balance(),
		Count:   len(month),
	}
}
