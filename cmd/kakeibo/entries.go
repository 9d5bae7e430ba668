package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

// entryFlags are the editable fields shared by add and update.
type entryFlags struct {
	date     string
	category string
	sub      string
	amount   string
	typ      string
	memo     string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category")
	cmd.Flags().StringVarP(&f.sub, "sub", "s", "", "sub-category")
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "amount, e.g. 1,200 or ¥1200")
	cmd.Flags().StringVarP(&f.typ, "type", "t", "expense", "expense|income (支出|収入)")
	cmd.Flags().StringVarP(&f.memo, "memo", "m", "", "free-text note")
}

// apply overlays the flags the user set onto base.
func (f *entryFlags) apply(cmd *cobra.Command, base core.Entry) (core.Entry, error) {
	e := base
	changed := cmd.Flags().Changed
	if changed("date") {
		e.Date = strings.TrimSpace(f.date)
	}
	if changed("category") {
		e.Category = strings.TrimSpace(f.category)
	}
	if changed("sub") {
		e.SubCategory = strings.TrimSpace(f.sub)
	}
	if changed("memo") {
		e.Memo = f.memo
	}
	if changed("amount") {
		amount, err := core.ParseAmount(f.amount)
		if err != nil {
			return e, err
		}
		e.Amount = amount
	}
	if changed("type") || e.Type == "" {
		typ, err := core.ParseEntryType(f.typ)
		if err != nil {
			return e, err
		}
		e.Type = typ
	}
	return e, nil
}

func today() string {
	return time.Now().Format(core.DateLayout)
}

func describe(e core.Entry) string {
	s := fmt.Sprintf("%s %s %s", e.Date, e.Type, e.Category)
	if e.SubCategory != "" {
		s += "/" + e.SubCategory
	}
	return s + " " + e.Amount.Yen()
}

func newAddCmd(a *app) *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income or expense",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			e, err := f.apply(cmd, core.Entry{Date: today()})
			if err != nil {
				return err
			}
			if err := e.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			l, _, err := a.session(ctx)
			if err != nil {
				return err
			}
			if !a.knownCategory(cmd, e.Category) {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: %q is not in the category list\n", e.Category)
			}
			if err := l.Add(ctx, e).Wait(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", describe(e))
			return nil
		}),
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// knownCategory is advisory only; entries may use any category string.
func (a *app) knownCategory(cmd *cobra.Command, name string) bool {
	tax, err := a.taxonomy(cmd.Context())
	if err != nil {
		return true
	}
	return tax.Has(name)
}

func newUpdateCmd(a *app) *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an entry; unknown ids are created",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, snap, err := a.session(ctx)
			if err != nil {
				return err
			}

			id := args[0]
			base, ok := snap.Find(id)
			if !ok {
				base = core.Entry{ID: id, Date: today()}
			}
			e, err := f.apply(cmd, base)
			if err != nil {
				return err
			}
			if err := l.Update(ctx, e).Wait(ctx); err != nil {
				return err
			}

			verb := "Updated"
			if !ok {
				verb = "Created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", verb, id, describe(e))
			return nil
		}),
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an entry",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, snap, err := a.session(ctx)
			if err != nil {
				return err
			}
			id := args[0]
			if err := l.Delete(ctx, id).Wait(ctx); err != nil {
				return err
			}
			if _, ok := snap.Find(id); !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No entry %s (nothing to delete)\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		}),
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		month string
		asc   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			snap, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			entries := snap.Entries()
			if month != "" {
				entries = core.FilterByMonth(entries, month)
			}
			entries = core.SortByDate(entries, !asc)

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries.")
				return nil
			}
			fmt.Fprintln(out, entryTable(entries))
			return nil
		}),
	}
	cmd.Flags().StringVar(&month, "month", "", "only entries of YYYY-MM")
	cmd.Flags().BoolVar(&asc, "asc", false, "oldest first")
	return cmd
}
