package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/vitalsync-go/internal/storage"
	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func glucoseAt(ts time.Time, mgdl float64) telemetry.GlucoseReading {
	return telemetry.NewGlucoseReading("subject-1", ts, mgdl, "Flat")
}

func TestNewMemoryStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store)
}

func TestNewFileStore(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewFileStore(tmpDir + "/test.db")
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store)
}

// Glucose tests

func TestUpsertGlucoseReadings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	readings := []telemetry.GlucoseReading{
		glucoseAt(base, 110),
		glucoseAt(base.Add(5*time.Minute), 115),
		glucoseAt(base.Add(10*time.Minute), 121),
	}

	result, err := store.UpsertGlucoseReadings(ctx, readings)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 0, result.Skipped)

	count, err := store.CountGlucoseReadings(ctx, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUpsertGlucoseIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	readings := []telemetry.GlucoseReading{
		glucoseAt(base, 110),
		glucoseAt(base.Add(5*time.Minute), 115),
	}

	_, err := store.UpsertGlucoseReadings(ctx, readings)
	require.NoError(t, err)

	// Second identical batch: rows already present are left untouched.
	result, err := store.UpsertGlucoseReadings(ctx, readings)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Skipped)

	count, err := store.CountGlucoseReadings(ctx, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertGlucosePartialOverlap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	_, err := store.UpsertGlucoseReadings(ctx, []telemetry.GlucoseReading{glucoseAt(base, 110)})
	require.NoError(t, err)

	result, err := store.UpsertGlucoseReadings(ctx, []telemetry.GlucoseReading{
		glucoseAt(base, 110),
		glucoseAt(base.Add(5*time.Minute), 118),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
}

func TestUpsertGlucoseNeverOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	_, err := store.UpsertGlucoseReadings(ctx, []telemetry.GlucoseReading{glucoseAt(ts, 110)})
	require.NoError(t, err)

	// A conflicting value for the same key is ignored, not applied.
	_, err = store.UpsertGlucoseReadings(ctx, []telemetry.GlucoseReading{glucoseAt(ts, 999)})
	require.NoError(t, err)

	readings, err := store.GlucoseRange(ctx, "subject-1", ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 110.0, readings[0].MgDL)
}

func TestUpsertGlucoseEmptyBatch(t *testing.T) {
	store := newTestStore(t)

	result, err := store.UpsertGlucoseReadings(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total())
}

func TestGlucoseRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	var readings []telemetry.GlucoseReading
	for i := 0; i < 6; i++ {
		readings = append(readings, glucoseAt(base.Add(time.Duration(i)*time.Hour), 100+float64(i)))
	}
	_, err := store.UpsertGlucoseReadings(ctx, readings)
	require.NoError(t, err)

	got, err := store.GlucoseRange(ctx, "subject-1", base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, 101.0, got[0].MgDL)
	assert.Equal(t, 103.0, got[2].MgDL)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

// Wearable tests

func TestUpsertHeartRateSamplesIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	samples := []telemetry.HeartRateSample{
		{SubjectID: "subject-1", Timestamp: base, BPM: 61},
		{SubjectID: "subject-1", Timestamp: base.Add(time.Minute), BPM: 63},
	}

	result, err := store.UpsertHeartRateSamples(ctx, samples)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	result, err = store.UpsertHeartRateSamples(ctx, samples)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Skipped)
}

func TestUpsertSleepSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := telemetry.SleepSession{
		SubjectID:    "subject-1",
		StartTime:    time.Date(2024, 1, 1, 23, 10, 0, 0, time.UTC),
		EndTime:      time.Date(2024, 1, 2, 7, 2, 0, 0, time.UTC),
		DeepMinutes:  85,
		LightMinutes: 230,
		REMMinutes:   95,
		WakeMinutes:  42,
		Efficiency:   92,
		IsMainSleep:  true,
	}

	result, err := store.UpsertSleepSessions(ctx, []telemetry.SleepSession{session})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	result, err = store.UpsertSleepSessions(ctx, []telemetry.SleepSession{session})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
}

func TestUpsertActivityAndStepsAndHRV(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	activity, err := store.UpsertActivityDailySummaries(ctx, []telemetry.ActivityDailySummary{
		{SubjectID: "subject-1", Date: day, Steps: 10432, CaloriesOut: 2650, DistanceKM: 7.9},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, activity.Inserted)

	steps, err := store.UpsertStepsIntradaySamples(ctx, []telemetry.StepsIntradaySample{
		{SubjectID: "subject-1", Timestamp: day.Add(8 * time.Hour), Steps: 312},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, steps.Inserted)

	hrvDaily, err := store.UpsertHRVDailySummaries(ctx, []telemetry.HRVDailySummary{
		{SubjectID: "subject-1", Date: day, DailyRMSSD: 32.5, DeepRMSSD: 41.2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, hrvDaily.Inserted)

	hrvIntraday, err := store.UpsertHRVIntradaySamples(ctx, []telemetry.HRVIntradaySample{
		{SubjectID: "subject-1", Timestamp: day.Add(8 * time.Hour), RMSSD: 28.1, Coverage: 0.98},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, hrvIntraday.Inserted)
}

// Cursor tests

func TestCursorNotFoundBeforeFirstFetch(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetCursor(context.Background(), "subject-1", "dexcom", telemetry.MetricHeartRate)
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))
}

func TestAdvanceCursor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AdvanceCursor(ctx, "subject-1", "fitbit", telemetry.MetricHeartRate, ts))

	cursor, err := store.GetCursor(ctx, "subject-1", "fitbit", telemetry.MetricHeartRate)
	require.NoError(t, err)
	assert.Equal(t, ts, cursor.LastTimestamp)

	later := ts.Add(time.Hour)
	require.NoError(t, store.AdvanceCursor(ctx, "subject-1", "fitbit", telemetry.MetricHeartRate, later))

	cursor, err = store.GetCursor(ctx, "subject-1", "fitbit", telemetry.MetricHeartRate)
	require.NoError(t, err)
	assert.Equal(t, later, cursor.LastTimestamp)
}

func TestAdvanceCursorNeverRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AdvanceCursor(ctx, "subject-1", "fitbit", telemetry.MetricSleep, ts))
	// An overlapping, slower writer reporting an older high-water mark
	// must not move the cursor backwards.
	require.NoError(t, store.AdvanceCursor(ctx, "subject-1", "fitbit", telemetry.MetricSleep, ts.Add(-time.Hour)))

	cursor, err := store.GetCursor(ctx, "subject-1", "fitbit", telemetry.MetricSleep)
	require.NoError(t, err)
	assert.Equal(t, ts, cursor.LastTimestamp)
}

// Compound record tests

func TestInsertMealWithEstimate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meal := &storage.MealRecord{
		ID:          uuid.NewString(),
		SubjectID:   "subject-1",
		Description: "oatmeal with berries",
		LoggedAt:    time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
	}
	estimate := &storage.MealEstimate{
		MealID:     meal.ID,
		Calories:   320,
		ProteinG:   11,
		CarbsG:     54,
		FatG:       7,
		Confidence: "high",
	}

	require.NoError(t, store.InsertMealWithEstimate(ctx, meal, estimate))

	meals, err := store.ListMeals(ctx, "subject-1", 10)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, "oatmeal with berries", meals[0].Description)
}

func TestInsertMealRollsBackParentOnDetailFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &storage.MealRecord{
		ID:          uuid.NewString(),
		SubjectID:   "subject-1",
		Description: "lunch",
		LoggedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.InsertMealWithEstimate(ctx, first, &storage.MealEstimate{MealID: first.ID}))

	// Detail keyed to an already-used estimate ID fails its insert; the
	// just-created parent must be deleted.
	second := &storage.MealRecord{
		ID:          uuid.NewString(),
		SubjectID:   "subject-2",
		Description: "dinner",
		LoggedAt:    time.Now().UTC(),
	}
	err := store.InsertMealWithEstimate(ctx, second, &storage.MealEstimate{MealID: first.ID})
	require.Error(t, err)

	meals, err := store.ListMeals(ctx, "subject-2", 10)
	require.NoError(t, err)
	assert.Empty(t, meals)
}
