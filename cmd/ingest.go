package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/ingest"
)

var (
	ingestTable      string
	ingestSourceSRID int
	ingestYes        bool
	ingestDDLOut     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Load a GeoJSON or shapefile source into PostGIS",
	Long: `Parses the source file, infers a column schema, and loads one row per
feature with geometry stored in EPSG:4326. The plan (table, schema, DDL) is
shown for confirmation before anything is written. Re-running against an
existing table appends rows; the CREATE TABLE is IF NOT EXISTS.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		var detail string
		defer func() { recordRun("ingest", args, time.Since(start), detail, err) }()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		opts := ingest.Options{
			Table:         ingestTable,
			SourceSRID:    ingestSourceSRID,
			ProgressEvery: cfg.Ingest.ProgressEvery,
			BatchSize:     cfg.Ingest.CopyBatchSize,
		}

		plan, err := ingest.Inspect(args[0], opts)
		if err != nil {
			return err
		}

		formatPlan(os.Stdout, plan)

		if ingestDDLOut != "" {
			ddl := plan.CreateSQL + "\n\n" + plan.IndexSQL + "\n"
			if err := os.WriteFile(ingestDDLOut, []byte(ddl), 0o644); err != nil {
				return eris.Wrapf(err, "ingest: write ddl to %s", ingestDDLOut)
			}
			fmt.Printf("DDL written to %s\n", ingestDDLOut)
		}

		if !ingestYes {
			ok, err := confirm(os.Stdin, fmt.Sprintf("Load %d features into %q?", plan.Features, plan.Table))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		pool, err := openPool(ctx, "ingest")
		if err != nil {
			return err
		}
		defer pool.Close()

		res, err := ingest.Load(ctx, pool, plan, opts)
		if err != nil {
			return err
		}

		detail = fmt.Sprintf("%d features into %s", res.Inserted, res.Table)
		fmt.Printf("Inserted %d features into %s in %s\n",
			res.Inserted, res.Table, res.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTable, "table", "", "destination table (default: derived from the file name)")
	ingestCmd.Flags().IntVar(&ingestSourceSRID, "source-srid", 0, "source CRS when the file does not declare one (default: detect, else 4326)")
	ingestCmd.Flags().BoolVar(&ingestYes, "yes", false, "skip the confirmation prompt")
	ingestCmd.Flags().StringVar(&ingestDDLOut, "ddl-out", "", "also write the generated DDL to this file")
	rootCmd.AddCommand(ingestCmd)
}

// formatPlan prints what a run will do before the confirmation prompt.
func formatPlan(out io.Writer, plan *ingest.Plan) {
	_, _ = fmt.Fprintf(out, "Source:   %s (%s)\n", plan.Source, plan.Format)
	_, _ = fmt.Fprintf(out, "Table:    %s\n", plan.Table)
	_, _ = fmt.Fprintf(out, "Geometry: %s, source SRID %d, stored as EPSG:4326\n", plan.GeomType, plan.SRID)
	_, _ = fmt.Fprintf(out, "Features: %d", plan.Features)
	if plan.Skipped > 0 {
		_, _ = fmt.Fprintf(out, " (%d null shapes skipped)", plan.Skipped)
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COLUMN\tTYPE")
	_, _ = fmt.Fprintln(w, "------\t----")
	_, _ = fmt.Fprintln(w, "id\tSERIAL PRIMARY KEY")
	for _, c := range plan.Schema {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", c.Name, c.SQLType)
	}
	_, _ = fmt.Fprintf(w, "geom\tGEOMETRY(%s, 4326)\n", plan.GeomType)
	_ = w.Flush()
	_, _ = fmt.Fprintln(out)
}

// confirm prompts on in and accepts y/yes, case-insensitive. EOF counts as no.
func confirm(in io.Reader, prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, eris.Wrap(err, "read confirmation")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
