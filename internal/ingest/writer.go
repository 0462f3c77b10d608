package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwulff/vitalsync-go/internal/storage"
	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

// Writer is the ingestion write path. It hands batches to the store's
// insert-or-ignore upserts and logs how each batch resolved. The duplicate
// counts it reports are observability data, not a guarantee.
type Writer struct {
	store storage.Store
	log   zerolog.Logger
}

// NewWriter creates a writer over the given store.
func NewWriter(store storage.Store, log zerolog.Logger) *Writer {
	return &Writer{
		store: store,
		log:   log.With().Str("component", "writer").Logger(),
	}
}

// UpsertGlucose writes a batch of normalized glucose readings. The whole
// batch commits or none of it does; rows already present are left untouched.
func (w *Writer) UpsertGlucose(ctx context.Context, readings []telemetry.GlucoseReading) (storage.UpsertResult, error) {
	result, err := w.store.UpsertGlucoseReadings(ctx, readings)
	if err != nil {
		return result, fmt.Errorf("upsert glucose batch: %w", err)
	}
	w.logBatch(telemetry.MetricGlucose, result)
	return result, nil
}

// UpsertWearable writes one metric's batch.

func (w *Writer) UpsertHeartRate(ctx context.Context, samples []telemetry.HeartRateSample) (storage.UpsertResult, error) {
	result, err := w.store.UpsertHeartRateSamples(ctx, samples)
	if err != nil {
		return result, fmt.Errorf("upsert heart rate batch: %w", err)
	}
	w.logBatch(telemetry.MetricHeartRate, result)
	return result, nil
}

func (w *Writer) UpsertHRVDaily(ctx context.Context, summaries []telemetry.HRVDailySummary) (storage.UpsertResult, error) {
	result, err := w.store.UpsertHRVDailySummaries(ctx, summaries)
	if err != nil {
		return result, fmt.Errorf("upsert hrv daily batch: %w", err)
	}
	w.logBatch(telemetry.MetricHRVDaily, result)
	return result, nil
}

func (w *Writer) UpsertHRVIntraday(ctx context.Context, samples []telemetry.HRVIntradaySample) (storage.UpsertResult, error) {
	result, err := w.store.UpsertHRVIntradaySamples(ctx, samples)
	if err != nil {
		return result, fmt.Errorf("upsert hrv intraday batch: %w", err)
	}
	w.logBatch(telemetry.MetricHRVIntraday, result)
	return result, nil
}

func (w *Writer) UpsertSleep(ctx context.Context, sessions []telemetry.SleepSession) (storage.UpsertResult, error) {
	result, err := w.store.UpsertSleepSessions(ctx, sessions)
	if err != nil {
		return result, fmt.Errorf("upsert sleep batch: %w", err)
	}
	w.logBatch(telemetry.MetricSleep, result)
	return result, nil
}

func (w *Writer) UpsertActivityDaily(ctx context.Context, summaries []telemetry.ActivityDailySummary) (storage.UpsertResult, error) {
	result, err := w.store.UpsertActivityDailySummaries(ctx, summaries)
	if err != nil {
		return result, fmt.Errorf("upsert activity daily batch: %w", err)
	}
	w.logBatch(telemetry.MetricActivityDaily, result)
	return result, nil
}

func (w *Writer) UpsertStepsIntraday(ctx context.Context, samples []telemetry.StepsIntradaySample) (storage.UpsertResult, error) {
	result, err := w.store.UpsertStepsIntradaySamples(ctx, samples)
	if err != nil {
		return result, fmt.Errorf("upsert steps batch: %w", err)
	}
	w.logBatch(telemetry.MetricStepsIntraday, result)
	return result, nil
}

// InsertMealWithEstimate runs the compound write: parent meal first, then the
// estimate detail, with the store rolling the parent back if the detail
// insert fails. The detail is always keyed to the parent being created; a
// MealID set by the caller is overwritten so a stale ID cannot attach the
// estimate to some other meal and strand the new parent.
func (w *Writer) InsertMealWithEstimate(ctx context.Context, meal *storage.MealRecord, estimate *storage.MealEstimate) error {
	estimate.MealID = meal.ID
	if err := w.store.InsertMealWithEstimate(ctx, meal, estimate); err != nil {
		return fmt.Errorf("insert meal record: %w", err)
	}
	w.log.Info().Str("meal_id", meal.ID).Str("subject", meal.SubjectID).Msg("meal recorded")
	return nil
}

func (w *Writer) logBatch(metric telemetry.Metric, result storage.UpsertResult) {
	if result.Total() == 0 {
		return
	}
	w.log.Debug().Str("metric", string(metric)).
		Int("inserted", result.Inserted).Int("skipped", result.Skipped).
		Msg("batch written")
}
