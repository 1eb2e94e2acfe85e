package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/report"
	"github.com/hazardmaps/floodrisk-cli/internal/risk"
)

var (
	damsLimit int
	damsOut   string
)

var riskDamsCmd = &cobra.Command{
	Use:   "dams",
	Short: "List dams by inundation area, largest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		opts := riskOptions(cmd)
		if damsLimit != 0 {
			opts.DamLimit = damsLimit
		}

		dams, err := risk.Dams(ctx, pool, opts)
		if err != nil {
			return err
		}
		if len(dams) == 0 {
			fmt.Printf("No rows in %s.\n", opts.DamsTable)
			return nil
		}

		formatDams(os.Stdout, dams)

		if damsOut != "" {
			if err := report.Write(damsOut, []report.Table{damsReportTable(dams)}); err != nil {
				return err
			}
			fmt.Printf("Written to %s\n", damsOut)
		}
		return nil
	},
}

func init() {
	riskDamsCmd.Flags().IntVar(&damsLimit, "limit", 0, "max dams to list, -1 for all (default from config)")
	riskDamsCmd.Flags().StringVar(&damsOut, "out", "", "also write the listing to a .csv or .xlsx file")
	riskCmd.AddCommand(riskDamsCmd)
}

// formatDams writes the dam listing to w.
func formatDams(out io.Writer, dams []risk.Dam) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DAM\tTYPE\tAREA_SQ_KM")
	_, _ = fmt.Fprintln(w, "---\t----\t----------")

	for _, d := range dams {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\n", truncate(d.Name, 45), d.Type, d.AreaKm2)
	}
	_ = w.Flush()
}

func damsReportTable(dams []risk.Dam) report.Table {
	t := report.Table{
		Title:   "Dams by inundation area",
		Headers: []string{"Dam", "Type", "Area (sq km)"},
	}
	for _, d := range dams {
		t.Rows = append(t.Rows, []string{d.Name, d.Type, fmt.Sprintf("%.2f", d.AreaKm2)})
	}
	return t
}
