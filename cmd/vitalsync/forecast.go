package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwulff/vitalsync-go/internal/forecast"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Short-horizon glucose forecast",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Forecast.BaseURL == "" {
			return fmt.Errorf("forecast.base_url is not configured")
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		now := time.Now().UTC()
		readings, err := store.GlucoseRange(cmd.Context(), cfg.SubjectID, now.Add(-6*time.Hour), now)
		if err != nil {
			return fmt.Errorf("failed to load readings: %w", err)
		}
		if len(readings) == 0 {
			return fmt.Errorf("no recent readings to forecast from")
		}

		features := forecast.BuildFeatures(readings, now)
		predictions, err := forecast.NewClient(cfg.Forecast.BaseURL).Predict(cmd.Context(), features)
		if err != nil {
			return err
		}

		fmt.Printf("Now: %.1f mmol/L\n", features.LatestMmol)
		for _, p := range predictions {
			fmt.Printf("  +%dm  %.1f mmol/L\n", p.HorizonMinutes, p.Mmol)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)
}
