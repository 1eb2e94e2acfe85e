package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hazardmaps/floodrisk-cli/internal/config"
	"github.com/hazardmaps/floodrisk-cli/internal/db"
	"github.com/hazardmaps/floodrisk-cli/internal/history"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "floodrisk",
	Short: "Hazard dataset loader and flood-risk queries for PostGIS",
	Long:  "Loads GeoJSON and shapefile hazard datasets (dam inundation areas, power plants) into PostGIS and reports which assets fall inside dam flood zones.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openPool validates the config for the given command mode and connects.
func openPool(ctx context.Context, mode string) (*pgxpool.Pool, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.Database.URL)
}

// openJournal opens the local run journal and applies its schema.
func openJournal(ctx context.Context) (*history.Store, error) {
	st, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// recordRun journals one CLI invocation locally. Journal problems are logged
// and swallowed, and a fresh context is used so the entry is written even
// when the command itself was cancelled.
func recordRun(command string, args []string, took time.Duration, detail string, runErr error) {
	ctx := context.Background()

	st, err := openJournal(ctx)
	if err != nil {
		zap.L().Warn("history: open journal", zap.Error(err))
		return
	}
	defer st.Close() //nolint:errcheck

	status := history.StatusOK
	if runErr != nil {
		status = history.StatusFailed
		if detail == "" {
			detail = runErr.Error()
		}
	}

	if _, err := st.Record(ctx, history.Entry{
		Command:  command,
		Args:     args,
		Status:   status,
		Detail:   detail,
		Duration: took,
	}); err != nil {
		zap.L().Warn("history: record run", zap.Error(err))
	}
}

// truncate shortens a value for compact tabular display.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
