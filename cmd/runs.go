package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/history"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent CLI runs from the local journal",
	Long: `Lists ingest, fetch, and report runs recorded in the local SQLite journal.
The journal lives next to the CLI and needs no database connection.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openJournal(ctx)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.List(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded yet.")
			return nil
		}

		formatHistory(os.Stdout, entries)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to display")
	rootCmd.AddCommand(runsCmd)
}

// formatHistory writes a tabular list of journal entries to w.
func formatHistory(out io.Writer, entries []history.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMMAND\tSTATUS\tSTARTED\tDURATION\tDETAIL")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-------\t--------\t------")

	for _, e := range entries {
		command := e.Command
		if len(e.Args) > 0 {
			command += " " + strings.Join(e.Args, " ")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			truncate(command, 40),
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			e.Duration.Round(time.Millisecond),
			truncate(e.Detail, 40),
		)
	}
	_ = w.Flush()
}

// truncateID compacts a UUID to its leading block for display.
func truncateID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
