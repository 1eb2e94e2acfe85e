package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/catalog"
	"github.com/hazardmaps/floodrisk-cli/internal/ingest"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the PostGIS version and recent ingest runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		version, err := catalog.PostGISVersion(ctx, pool)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		fmt.Printf("PostGIS version: %s\n\n", version)

		runs, err := ingest.RecentRuns(ctx, pool, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status: read ingest_log (run `floodrisk migrate` first)")
		}
		if len(runs) == 0 {
			fmt.Println("No ingest runs recorded yet.")
			return nil
		}

		formatIngestRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "max ingest runs to display")
	rootCmd.AddCommand(statusCmd)
}

// formatIngestRuns writes a tabular list of ingest_log entries to w.
func formatIngestRuns(out io.Writer, runs []ingest.LogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTABLE\tFEATURES\tSRID\tSOURCE\tINGESTED")
	_, _ = fmt.Fprintln(w, "--\t-----\t--------\t----\t------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.TargetTable,
			r.FeatureCount,
			r.SourceSRID,
			truncate(r.SourcePath, 40),
			r.IngestedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
