package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func currentMonth() string {
	return time.Now().Format("2006-01")
}

func newSummaryCmd(a *app) *cobra.Command {
	var (
		month string
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Income, expense and balance for a month plus the net asset",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			snap, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			entries := snap.Entries()
			out := cmd.OutOrStdout()

			if all {
				months := core.MonthKeys(entries)
				if len(months) == 0 {
					fmt.Fprintln(out, "No entries.")
				}
				for _, m := range months {
					fmt.Fprintln(out, overviewLine(core.MonthlySummary(entries, m)))
				}
			} else {
				fmt.Fprintln(out, overviewLine(core.MonthlySummary(entries, month)))
			}

			totals := core.TotalsByType(entries)
			fmt.Fprintf(out, "総資産 %s  (収入 %s / 支出 %s)\n",
				core.NetAsset(entries).Yen(), totals.Income.Yen(), totals.Expense.Yen())
			return nil
		}),
	}
	cmd.Flags().StringVar(&month, "month", currentMonth(), "month YYYY-MM")
	cmd.Flags().BoolVar(&all, "all", false, "one line per month present, newest first")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Running asset balance by date",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			snap, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			points := core.AssetHistory(snap.Entries())
			out := cmd.OutOrStdout()
			if len(points) == 0 {
				fmt.Fprintln(out, "No entries.")
				return nil
			}
			t := newTable([]string{"日付", "資産"}, 1)
			for _, p := range points {
				t.Row(p.Date, p.Asset.Yen())
			}
			fmt.Fprintln(out, t.String())
			return nil
		}),
	}
}

func newBreakdownCmd(a *app) *cobra.Command {
	var (
		typ   string
		sub   bool
		month string
	)
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Amounts per category for one entry type",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			t, err := core.ParseEntryType(typ)
			if err != nil {
				return err
			}
			snap, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			entries := snap.Entries()
			if month != "" {
				entries = core.FilterByMonth(entries, month)
			}

			dist := core.CategoryDistribution(entries, t)
			if sub {
				dist = core.SubCategoryDistribution(entries, t)
			}
			out := cmd.OutOrStdout()
			if len(dist) == 0 {
				fmt.Fprintf(out, "No %s entries.\n", t.English())
				return nil
			}
			fmt.Fprintln(out, distributionTable(dist))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "expense", "expense|income")
	cmd.Flags().BoolVar(&sub, "sub", false, "group by sub-category")
	cmd.Flags().StringVar(&month, "month", "", "only entries of YYYY-MM")
	return cmd
}
