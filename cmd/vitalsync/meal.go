package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/vitalsync-go/internal/ingest"
	"github.com/jwulff/vitalsync-go/internal/nutrition"
	"github.com/jwulff/vitalsync-go/internal/storage"
)

var mealCmd = &cobra.Command{
	Use:   "meal <description>",
	Short: "Log a meal with an estimated macro breakdown",
	Long: `Meal sends the description to the configured nutrition estimator and
records the meal together with its estimate. If the estimator returns
something unusable the meal is still recorded, with unknown confidence.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Nutrition.BaseURL == "" {
			return fmt.Errorf("nutrition.base_url is not configured")
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		description := strings.Join(args, " ")

		estimator := nutrition.NewClient(cfg.Nutrition.BaseURL, log)
		estimate, err := estimator.EstimateMeal(cmd.Context(), description)
		if err != nil {
			return fmt.Errorf("failed to estimate meal: %w", err)
		}

		meal := &storage.MealRecord{
			ID:          uuid.NewString(),
			SubjectID:   cfg.SubjectID,
			Description: description,
			LoggedAt:    time.Now().UTC(),
		}
		detail := &storage.MealEstimate{
			MealID:     meal.ID,
			Calories:   estimate.Calories,
			ProteinG:   estimate.ProteinG,
			CarbsG:     estimate.CarbsG,
			FatG:       estimate.FatG,
			Confidence: estimate.Confidence,
		}

		writer := ingest.NewWriter(store, log)
		if err := writer.InsertMealWithEstimate(cmd.Context(), meal, detail); err != nil {
			return err
		}

		fmt.Printf("Logged %q\n", description)
		fmt.Printf("  %.0f kcal  %.0fg protein  %.0fg carbs  %.0fg fat  (%s confidence)\n",
			estimate.Calories, estimate.ProteinG, estimate.CarbsG, estimate.FatG, estimate.Confidence)
		return nil
	},
}

var mealsLimit int

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "List recently logged meals",
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

		meals, err := store.ListMeals(cmd.Context(), cfg.SubjectID, mealsLimit)
		if err != nil {
			return fmt.Errorf("failed to list meals: %w", err)
		}
		if len(meals) == 0 {
			fmt.Println("No meals logged.")
			return nil
		}
		for _, m := range meals {
			fmt.Printf("%s  %s\n", m.LoggedAt.Local().Format("2006-01-02 15:04"), m.Description)
		}
		return nil
	},
}

func init() {
	mealsCmd.Flags().IntVar(&mealsLimit, "limit", 20, "maximum meals to show")
	rootCmd.AddCommand(mealCmd)
	rootCmd.AddCommand(mealsCmd)
}
