package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/analysis"
)

var analyzeSummaryCmd = &cobra.Command{
	Use:   "summary <table>",
	Short: "Type counts, top capacities, and extent quadrants",
	Long:  "Rolls a table up three ways. Sections whose columns the table lacks are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		sum, err := analysis.Summarize(ctx, pool, args[0])
		if err != nil {
			return err
		}

		formatSummary(os.Stdout, sum)
		return nil
	},
}

func init() {
	analyzeCmd.AddCommand(analyzeSummaryCmd)
}

// formatSummary writes the three roll-ups, skipping empty sections.
func formatSummary(out io.Writer, sum *analysis.Summary) {
	if len(sum.TypeCounts) > 0 {
		_, _ = fmt.Fprintln(out, "Rows by type:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, tc := range sum.TypeCounts {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", tc.Type, tc.Count)
		}
		_ = w.Flush()
		_, _ = fmt.Fprintln(out)
	}

	if len(sum.Top) > 0 {
		_, _ = fmt.Fprintln(out, "Top by capacity:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "  NAME\tTYPE\tVALUE")
		for _, row := range sum.Top {
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%.1f\n", truncate(row.Name, 45), row.Type, row.Value)
		}
		_ = w.Flush()
		_, _ = fmt.Fprintln(out)
	}

	if len(sum.Quadrants) > 0 {
		_, _ = fmt.Fprintln(out, "Rows by extent quadrant:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, q := range sum.Quadrants {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", q.Quadrant, q.Count)
		}
		_ = w.Flush()
	}
}
