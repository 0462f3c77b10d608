package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jwulff/vitalsync-go/internal/config"
	"github.com/jwulff/vitalsync-go/internal/storage/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vitalsync",
	Short: "Personal health telemetry collector",
	Long: `Vitalsync polls glucose and wearable providers on a schedule and
stores the normalized readings in a local SQLite database.

  $ vitalsync run                      # Start the collection daemon
  $ vitalsync stats --days 14          # Glycemic statistics over a window
  $ vitalsync meal "two eggs on toast" # Log a meal with a macro estimate
  $ vitalsync forecast                 # Short-horizon glucose forecast`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*sqlite.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := sqlite.NewFileStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
	}
	return store, nil
}
