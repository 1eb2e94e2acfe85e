package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/report"
	"github.com/hazardmaps/floodrisk-cli/internal/risk"
)

var (
	reportDam string
	reportOut string
)

var riskReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report power plants inside dam inundation zones",
	Long: `Lists the power plants whose location falls inside a dam's inundation
polygon. --dam ALL reports every dam; without --dam the largest dam by
inundation area is used.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		start := time.Now()
		var detail string
		defer func() { recordRun("risk report", []string{"--dam", reportDam}, time.Since(start), detail, err) }()

		pool, err := openPool(ctx, "query")
		if err != nil {
			return err
		}
		defer pool.Close()

		rep, err := risk.BuildReport(ctx, pool, riskOptions(cmd), reportDam)
		if err != nil {
			return err
		}

		formatRiskReport(os.Stdout, rep)

		if reportOut != "" {
			if err := report.Write(reportOut, reportTables(rep)); err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", reportOut)
		}

		detail = fmt.Sprintf("%d plants at risk across %d dams", rep.Total, len(rep.Sections))
		return nil
	},
}

func init() {
	riskReportCmd.Flags().StringVar(&reportDam, "dam", "", "dam name, or ALL for every dam (default: largest by area)")
	riskReportCmd.Flags().StringVar(&reportOut, "out", "", "also write the report to a .csv or .xlsx file")
	riskCmd.AddCommand(riskReportCmd)
}

// formatRiskReport writes one section per dam plus the overall total.
func formatRiskReport(out io.Writer, rep *risk.Report) {
	for _, sec := range rep.Sections {
		_, _ = fmt.Fprintf(out, "\nPOWER-PLANT RISK REPORT FOR %s\n", strings.ToUpper(sec.Dam))

		if len(sec.Plants) == 0 {
			_, _ = fmt.Fprintf(out, "No power plants found within the inundation zone of '%s'\n", sec.Dam)
			continue
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PLANT\tTYPE\tPRIMARY_FUEL\tCAPACITY_MW")
		_, _ = fmt.Fprintln(w, "-----\t----\t------------\t-----------")
		for _, p := range sec.Plants {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				truncate(p.Name, 45), p.Type, p.PrimaryFuel, formatCapacity(p.CapacityMW))
		}
		_ = w.Flush()
		_, _ = fmt.Fprintf(out, "Plants at risk: %d\n", len(sec.Plants))
	}

	_, _ = fmt.Fprintf(out, "\nTOTAL PLANTS AT RISK: %d\n", rep.Total)
}

// formatCapacity renders a nullable megawatt value; missing stays blank.
func formatCapacity(mw *float64) string {
	if mw == nil {
		return ""
	}
	return strconv.FormatFloat(*mw, 'f', 1, 64)
}

func reportTables(rep *risk.Report) []report.Table {
	var tables []report.Table
	for _, sec := range rep.Sections {
		t := report.Table{
			Title:   "Dam: " + sec.Dam,
			Headers: []string{"Plant", "Type", "Primary fuel", "Capacity (MW)"},
		}
		for _, p := range sec.Plants {
			t.Rows = append(t.Rows, []string{p.Name, p.Type, p.PrimaryFuel, formatCapacity(p.CapacityMW)})
		}
		tables = append(tables, t)
	}
	return tables
}
