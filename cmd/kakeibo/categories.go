package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kakeibo/internal/taxonomy"
)

func newCategoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "Show and edit the category taxonomy",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List categories and their sub-categories",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, _ []string) error {
				tax, err := a.taxonomy(cmd.Context())
				if err != nil {
					return err
				}
				printCategories(cmd.OutOrStdout(), tax)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a category",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				tax, err := a.taxonomy(ctx)
				if err != nil {
					return err
				}
				name := strings.TrimSpace(args[0])
				if tax.Has(name) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", name)
					return nil
				}
				if err := tax.AddCategory(ctx, name).Wait(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added category %s\n", name)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add-sub <category> <sub>",
			Short: "Add a sub-category to an existing category",
			Args:  cobra.ExactArgs(2),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				tax, err := a.taxonomy(ctx)
				if err != nil {
					return err
				}
				category, sub := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
				if !tax.Has(category) {
					return fmt.Errorf("unknown category %s", category)
				}
				if err := tax.AddSubCategory(ctx, category, sub).Wait(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", category, strings.Join(tax.SubCategories(category), ", "))
				return nil
			}),
		},
		newRemoveCategoryCmd(a),
		newRemoveSubCategoryCmd(a),
		newReconcileCmd(a),
	)
	return cmd
}

func printCategories(w io.Writer, tax *taxonomy.Taxonomy) {
	for _, c := range tax.Categories() {
		if len(c.Sub) == 0 {
			fmt.Fprintln(w, c.Name)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", c.Name, strings.Join(c.Sub, ", "))
	}
}

// Deletions only change the local copy. Without --reconcile the stored
// taxonomy keeps the removed names and the divergence is reported.
func newRemoveCategoryCmd(a *app) *cobra.Command {
	var reconcile bool
	cmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a category (entries keep their category string)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			tax, err := a.taxonomy(cmd.Context())
			if err != nil {
				return err
			}
			if !tax.DeleteCategory(strings.TrimSpace(args[0])) {
				return fmt.Errorf("unknown category %s", args[0])
			}
			return finishRemoval(cmd, tax, reconcile)
		}),
	}
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "also remove it from the store")
	return cmd
}

func newRemoveSubCategoryCmd(a *app) *cobra.Command {
	var reconcile bool
	cmd := &cobra.Command{
		Use:   "rm-sub <category> <sub>",
		Short: "Remove a sub-category",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			tax, err := a.taxonomy(cmd.Context())
			if err != nil {
				return err
			}
			if !tax.DeleteSubCategory(strings.TrimSpace(args[0]), strings.TrimSpace(args[1])) {
				return fmt.Errorf("unknown sub-category %s/%s", args[0], args[1])
			}
			return finishRemoval(cmd, tax, reconcile)
		}),
	}
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "also remove it from the store")
	return cmd
}

// newReconcileCmd removes every named category or category/sub locally and
// pushes all of them to the store in one pass.
func newReconcileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <category|category/sub>...",
		Short: "Remove categories or sub-categories and sync the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			tax, err := a.taxonomy(cmd.Context())
			if err != nil {
				return err
			}
			for _, arg := range args {
				category, sub, isSub := strings.Cut(arg, "/")
				var ok bool
				if isSub {
					ok = tax.DeleteSubCategory(strings.TrimSpace(category), strings.TrimSpace(sub))
				} else {
					ok = tax.DeleteCategory(strings.TrimSpace(category))
				}
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping unknown %s\n", arg)
				}
			}
			return finishRemoval(cmd, tax, true)
		}),
	}
}

func finishRemoval(cmd *cobra.Command, tax *taxonomy.Taxonomy, reconcile bool) error {
	out := cmd.OutOrStdout()
	if reconcile {
		if err := tax.Reconcile(cmd.Context()); err != nil {
			printDivergence(out, tax.Divergence())
			return fmt.Errorf("reconcile: %w", err)
		}
		fmt.Fprintln(out, "Store updated.")
		printCategories(out, tax)
		return nil
	}
	printCategories(out, tax)
	printDivergence(out, tax.Divergence())
	return nil
}

func printDivergence(w io.Writer, d taxonomy.Divergence) {
	if d.Empty() {
		return
	}
	fmt.Fprintln(w, "Not removed from the store (use --reconcile):")
	for _, c := range d.Categories {
		fmt.Fprintf(w, "  %s\n", c)
	}
	names := make([]string, 0, len(d.SubCategories))
	for c := range d.SubCategories {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		fmt.Fprintf(w, "  %s: %s\n", c, strings.Join(d.SubCategories[c], ", "))
	}
}
