package main

import (
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ad hoc spatial analysis over ingested tables",
	Long:  "Exploratory queries that adapt to whatever attribute columns a table has: type roll-ups, radius and nearest-neighbour searches, GeoJSON export.",
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
