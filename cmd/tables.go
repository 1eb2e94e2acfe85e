package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/catalog"
)

var tablesCmd = &cobra.Command{
	Use:   "tables [table]",
	Short: "List user tables or describe one",
	Long:  "Without an argument, lists every user table. With a table name, shows its columns, geometry registration, and row count.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		if len(args) == 0 {
			tables, err := catalog.ListTables(ctx, pool)
			if err != nil {
				return eris.Wrap(err, "tables")
			}
			if len(tables) == 0 {
				fmt.Println("No tables found.")
				return nil
			}
			for _, t := range tables {
				fmt.Printf("%s.%s\n", t.Schema, t.Name)
			}
			return nil
		}

		desc, err := catalog.Describe(ctx, pool, args[0])
		if err != nil {
			return eris.Wrap(err, "tables")
		}
		formatDescription(os.Stdout, desc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

// formatDescription writes the column and geometry details of one table.
func formatDescription(out io.Writer, desc *catalog.Description) {
	_, _ = fmt.Fprintf(out, "Table %s (%d rows)\n\n", desc.Table, desc.RowCount)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COLUMN\tTYPE\tNULLABLE\tMAX_LEN")
	_, _ = fmt.Fprintln(w, "------\t----\t--------\t-------")
	for _, c := range desc.Columns {
		maxLen := ""
		if c.MaxLength != nil {
			maxLen = strconv.Itoa(*c.MaxLength)
		}
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.DataType, nullable, maxLen)
	}
	_ = w.Flush()

	for _, g := range desc.Geometry {
		_, _ = fmt.Fprintf(out, "\ngeometry: %s %s SRID=%d\n", g.Column, g.Type, g.SRID)
	}
}
