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
	nearLon      float64
	nearLat      float64
	nearRadiusKm float64
	nearLimit    int
)

var analyzeNearCmd = &cobra.Command{
	Use:   "near <table>",
	Short: "Rows within a radius of a point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		places, err := analysis.Near(ctx, pool, args[0], nearLon, nearLat, nearRadiusKm, nearLimit)
		if err != nil {
			return err
		}
		if len(places) == 0 {
			fmt.Printf("Nothing within %.1f km of (%.4f, %.4f).\n", nearRadiusKm, nearLon, nearLat)
			return nil
		}

		formatNearPlaces(os.Stdout, places)
		return nil
	},
}

func init() {
	analyzeNearCmd.Flags().Float64Var(&nearLon, "lon", 0, "longitude of the search point (required)")
	analyzeNearCmd.Flags().Float64Var(&nearLat, "lat", 0, "latitude of the search point (required)")
	analyzeNearCmd.Flags().Float64Var(&nearRadiusKm, "radius-km", 50, "search radius in kilometres")
	analyzeNearCmd.Flags().IntVar(&nearLimit, "limit", 100, "max rows to return")
	_ = analyzeNearCmd.MarkFlagRequired("lon")
	_ = analyzeNearCmd.MarkFlagRequired("lat")
	analyzeCmd.AddCommand(analyzeNearCmd)
}

func formatNearPlaces(out io.Writer, places []analysis.NearPlace) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tDISTANCE_KM")
	_, _ = fmt.Fprintln(w, "----\t----\t-----------")

	for _, p := range places {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\n", truncate(p.Name, 45), p.Type, p.DistanceKm)
	}
	_ = w.Flush()
}
