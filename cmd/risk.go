package main

import (
	"github.com/spf13/cobra"

	"github.com/hazardmaps/floodrisk-cli/internal/risk"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Flood-risk queries over dams and power plants",
	Long:  "Queries PostGIS for the power plants whose location falls inside dam inundation polygons.",
}

func init() {
	riskCmd.PersistentFlags().String("dams-table", "", "dams table (default from config)")
	riskCmd.PersistentFlags().String("plants-table", "", "plants table (default from config)")
	rootCmd.AddCommand(riskCmd)
}

// riskOptions resolves the table flags against config defaults.
func riskOptions(cmd *cobra.Command) risk.Options {
	opts := risk.Options{
		DamsTable:   cfg.Risk.DamsTable,
		PlantsTable: cfg.Risk.PlantsTable,
		DamLimit:    cfg.Risk.DamLimit,
	}
	if v, _ := cmd.Flags().GetString("dams-table"); v != "" {
		opts.DamsTable = v
	}
	if v, _ := cmd.Flags().GetString("plants-table"); v != "" {
		opts.PlantsTable = v
	}
	return opts
}
