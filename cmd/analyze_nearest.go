package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/analysis"
)

var (
	nearestType  string
	nearestLimit int
)

var analyzeNearestCmd = &cobra.Command{
	Use:   "nearest <table>",
	Short: "Nearest feature of a given type for each row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		pairs, err := analysis.Nearest(ctx, pool, args[0], nearestType, nearestLimit)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			fmt.Printf("No rows of type %q in %s.\n", nearestType, args[0])
			return nil
		}

		formatNearestPairs(os.Stdout, pairs)
		return nil
	},
}

func init() {
	analyzeNearestCmd.Flags().StringVar(&nearestType, "type", "", "feature type to measure against (required)")
	analyzeNearestCmd.Flags().IntVar(&nearestLimit, "limit", 20, "max rows to return")
	_ = analyzeNearestCmd.MarkFlagRequired("type")
	analyzeCmd.AddCommand(analyzeNearestCmd)
}

func formatNearestPairs(out io.Writer, pairs []analysis.NearestPair) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FROM\tNEAREST\tTYPE\tDISTANCE_KM")
	_, _ = fmt.Fprintln(w, "----\t-------\t----\t-----------")

	for _, p := range pairs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", truncate(p.From, 40), truncate(p.To, 40), p.ToType, p.DistanceKm)
	}
	_ = w.Flush()
}
