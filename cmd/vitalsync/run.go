package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/vitalsync-go/internal/dexcom"
	"github.com/jwulff/vitalsync-go/internal/fitbit"
	"github.com/jwulff/vitalsync-go/internal/ingest"
)

var runVerbose bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the collection daemon",
	Long: `Run polls every configured provider on a fixed interval and writes
normalized readings to the local database. A source that fails to
initialize is excluded for the life of the process; a source whose
previous cycle is still in flight is skipped for that tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := zerolog.InfoLevel
		if runVerbose {
			level = zerolog.DebugLevel
		}
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		writer := ingest.NewWriter(store, log)
		scheduler := ingest.NewScheduler(log)

		if cfg.Dexcom.Enabled() {
			client := dexcom.NewClient(cfg.Dexcom.Username, cfg.Dexcom.Password)
			scheduler.Register(ingest.NewGlucoseSource(cfg.SubjectID, client, store, writer, log))
		}
		if cfg.Fitbit.Enabled() {
			tokens := fitbit.NewTokenManager(cfg.Fitbit.ClientID, cfg.Fitbit.ClientSecret, fitbit.TokenSet{
				AccessToken:  cfg.Fitbit.AccessToken,
				RefreshToken: cfg.Fitbit.RefreshToken,
				ExpiresAt:    cfg.Fitbit.ExpiresAt,
			})
			client := fitbit.NewClient(tokens)
			scheduler.Register(ingest.NewWearableSource(cfg.SubjectID, client, store, writer, log))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info().
			Str("subject", cfg.SubjectID).
			Str("db", cfg.DBPath).
			Dur("interval", cfg.Interval()).
			Msg("starting collection")
		scheduler.Start(ctx, cfg.Interval())

		<-ctx.Done()
		log.Info().Msg("shutting down")
		scheduler.Stop()
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(runCmd)
}
