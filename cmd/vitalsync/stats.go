package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwulff/vitalsync-go/internal/glycemic"
	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Glycemic statistics over a recent window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		until := time.Now().UTC()
		since := until.AddDate(0, 0, -statsDays)
		readings, err := store.GlucoseRange(cmd.Context(), cfg.SubjectID, since, until)
		if err != nil {
			return fmt.Errorf("failed to load readings: %w", err)
		}

		stats := glycemic.ComputeStats(readings)

		fmt.Printf("Glucose statistics, last %d days (%d readings)\n\n", statsDays, stats.TotalReadings)
		if stats.TotalReadings == 0 {
			fmt.Println("No readings in window.")
			return nil
		}

		fmt.Println(latestLine(readings[len(readings)-1]))
		fmt.Println()
		printStat("Average", stats.AverageMmol, "mmol/L")
		printStat("Time in range", stats.TIR, "%")
		printStat("Time below range", stats.TBR, "%")
		printStat("Time above range", stats.TAR, "%")
		printStat("CV", stats.CV, "%")
		printStat("LBGI", stats.LBGI, "")
		printStat("HBGI", stats.HBGI, "")
		return nil
	},
}

// latestLine renders the most recent reading with its trend arrow and range
// classification, flagging it when it is old enough to be stale.
func latestLine(r telemetry.GlucoseReading) string {
	line := fmt.Sprintf("  Latest: %.1f mmol/L %s (%s)",
		r.Mmol, telemetry.MapTrendArrow(r.Trend), telemetry.ClassifyRange(r.MgDL))
	if telemetry.IsStaleReading(r.Timestamp) {
		line += " [stale]"
	}
	return line
}

func printStat(label string, value *float64, unit string) {
	if value == nil {
		fmt.Printf("  %-18s n/a\n", label)
		return
	}
	if unit != "" {
		fmt.Printf("  %-18s %.1f %s\n", label, *value, unit)
		return
	}
	fmt.Printf("  %-18s %.2f\n", label, *value)
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 14, "window length in days")
	rootCmd.AddCommand(statsCmd)
}
