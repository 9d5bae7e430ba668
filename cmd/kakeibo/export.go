package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
	"kakeibo/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
		month  string
		noBOM  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write entries as CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unknown format %q: must be csv or xlsx", format)
			}
			if format == "xlsx" && out == "" {
				return fmt.Errorf("xlsx export needs --out")
			}

			snap, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			entries := snap.Entries()
			if month != "" {
				entries = core.FilterByMonth(entries, month)
			}
			entries = core.SortByDate(entries, false)

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "xlsx":
				err = export.WriteXLSX(w, entries)
			default:
				opts := export.DefaultOptions()
				opts.BOM = !noBOM
				err = export.WriteCSV(w, entries, opts)
			}
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d entries to %s\n", len(entries), out)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv|xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout, csv only)")
	cmd.Flags().StringVar(&month, "month", "", "only entries of YYYY-MM")
	cmd.Flags().BoolVar(&noBOM, "no-bom", false, "omit the UTF-8 byte order mark")
	return cmd
}
