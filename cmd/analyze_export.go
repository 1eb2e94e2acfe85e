package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/analysis"
)

var (
	exportLimit int
	exportOut   string
)

var analyzeExportCmd = &cobra.Command{
	Use:   "export <table>",
	Short: "Export a table back to GeoJSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		doc, err := analysis.ExportGeoJSON(ctx, pool, args[0], exportLimit)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = args[0] + ".geojson"
		}
		if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
			return eris.Wrapf(err, "export: write %s", out)
		}

		fmt.Printf("Wrote %s (%d bytes)\n", out, len(doc))
		return nil
	},
}

func init() {
	analyzeExportCmd.Flags().IntVar(&exportLimit, "limit", 100, "max features to export")
	analyzeExportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default <table>.geojson)")
	analyzeCmd.AddCommand(analyzeExportCmd)
}
