// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jwulff/vitalsync-go/internal/storage"
	"github.com/jwulff/vitalsync-go/internal/telemetry"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one so
	// every query sees the same schema and rows.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure: %w", err)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// upsertBatch runs one INSERT OR IGNORE statement per row inside a single
// transaction. A failure rolls back the whole batch; on success the
// inserted/skipped split comes from per-statement RowsAffected.
func (s *Store) upsertBatch(ctx context.Context, query string, rows [][]any) (storage.UpsertResult, error) {
	var result storage.UpsertResult
	if len(rows) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return result, err
	}
	defer stmt.Close()

	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return storage.UpsertResult{}, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return storage.UpsertResult{}, err
		}
		if affected > 0 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.UpsertResult{}, err
	}
	return result, nil
}

// Glucose methods

func (s *Store) UpsertGlucoseReadings(ctx context.Context, readings []telemetry.GlucoseReading) (storage.UpsertResult, error) {
	rows := make([][]any, len(readings))
	for i, r := range readings {
		rows[i] = []any{r.SubjectID, r.Timestamp.UTC(), r.MgDL, r.Mmol, r.Trend}
	}
	return s.upsertBatch(ctx, `
		INSERT OR IGNORE INTO glucose_readings (subject_id, timestamp, mgdl, mmol, trend)
		VALUES (?, ?, ?, ?, ?)
	`, rows)
}

func (s *Store) GlucoseRange(ctx context.Context, subjectID string, since, until time.Time) ([]telemetry.GlucoseReading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject_id, timestamp, mgdl, mmol, trend FROM glucose_readings
		WHERE subject_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, subjectID, since.UTC(), until.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []telemetry.GlucoseReading
	for rows.Next() {
		var r telemetry.GlucoseReading
		if err := rows.Scan(&r.SubjectID, &r.Timestamp, &r.MgDL, &r.Mmol, &r.Trend); err != nil {
			return nil, err
		}
		r.Timestamp = r.Timestamp.UTC()
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *Store) CountGlucoseReadings(ctx context.Context, subjectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM glucose_readings WHERE subject_id = ?", subjectID).Scan(&count)
	return count, err
}

// Wearable methods

func (s *Store) UpsertHeartRateSamples(ctx context.Context, samples []telemetry.HeartRateSample) (storage.UpsertResult, error) {
	rows := make([][]any, len(samples))
	for i, sample := range samples {
		rows[i] = []any{sample.SubjectID, sample.Timestamp.UTC(), sample.BPM}
	}
	return s.upsertBatch(ctx, `
		INSERT OR IGNORE INTO heart_rate_samples (subject_id, timestamp, bpm)
		VALUES (?, ?, ?)
	`, rows)
}

func (s *Store) UpsertHRVDailySummaries(ctx context.Context, summaries []telemetry.HRVDailySummary) (storage.UpsertResult, error) {
	rows := make([][]any, len(summaries))
	for i, summary := range summaries {
		rows[i] = []any{summary.SubjectID, summary.Date.UTC(), summary.DailyRMSSD, summary.DeepRMSSD}
	}
	return s.upsertBatch(ctx, `
		INSERT OR IGNORE INTO hrv_daily_summaries (subject_id, date, daily_rmssd, deep_rmssd)
		VALUES (?, ?, ?, ?)
	`, rows)
}

func (s *Store) UpsertHRVIntradaySamples(ctx context.Context, samples []telemetry.HRVIntradaySample) (storage.UpsertResult, error) {
	rows := make([][]any, len(samples))
	for i, sample := range samples {
		rows[i] = []any{sample.SubjectID, sample.Timestamp.UTC(), sample.RMSSD, sample.Coverage, sample.LF, sample.HF}
	}
	return s.upsertBatch(ctx, `
		INSERT OR IGNORE INTO hrv_intraday_samples (subject_id, timestamp, rmssd, coverage, lf, hf)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rows)
}

func (s *Store) UpsertSleepSessions(ctx context.Context, sessions []telemetry.SleepSession) (storage.UpsertResult, error) {
	rows := make([][]any, len(sessions))
	for i, session := range sessions {
		rows[i] = []any{
			session.SubjectID, session.StartTime.UTC(), session.EndTime.UTC(),
			session.DeepMinutes, session.LightMinutes, session.REMMinutes, session.WakeMinutes,
			session.Efficiency, session.IsMainSleep,
		}
	}
	return s.upsertBatch(ctx, `
		INSERT OR IGNORE INTO sleep_sessions
			(subject_id, start_time, end_time, deep_minutes, light_minutes, rem_minutes, wake_minutes, efficiency, is_main_sleep)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rows)
}

func (s *Store) UpsertActivityDailySummaries(ctx context.Context, summaries []telemetry.ActivityDailySummary) (storage.UpsertResult, error) {
	rows := make([][]any, len(summaries))
	for i, summary := range summaries {
		rows[i] = []any{
			summary.SubjectID, summary.Date.UTC(), summary.Steps, summary.CaloriesOut, summary.DistanceKM,
			summary.SedentaryMinutes, summary.LightlyActiveMin, summary.FairlyActiveMin, summary.VeryActiveMinutes,
		}
	}
	return s.upsertBatch(ctx, `
		INSERT OR IGNORE INTO activity_daily_summaries
			(subject_id, date, steps, calories_out, distance_km, sedentary_minutes, lightly_active_minutes, fairly_active_minutes, very_active_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rows)
}

func (s *Store) UpsertStepsIntradaySamples(ctx context.Context, samples []telemetry.StepsIntradaySample) (storage.UpsertResult, error) {
	rows := make([][]any, len(samples))
	for i, sample := range samples {
		rows[i] = []any{sample.SubjectID, sample.Timestamp.UTC(), sample.Steps}
	}
	return s.upsertBatch(ctx, `
		INSERT OR IGNORE INTO steps_intraday_samples (subject_id, timestamp, steps)
		VALUES (?, ?, ?)
	`, rows)
}

// Cursor methods

func (s *Store) GetCursor(ctx context.Context, subjectID, source string, metric telemetry.Metric) (*storage.PollCursor, error) {
	cursor := storage.PollCursor{SubjectID: subjectID, Source: source, Metric: metric}
	err := s.db.QueryRowContext(ctx, `
		SELECT last_timestamp FROM poll_cursors
		WHERE subject_id = ? AND source = ? AND metric = ?
	`, subjectID, source, string(metric)).Scan(&cursor.LastTimestamp)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "poll_cursor", ID: subjectID + "/" + source + "/" + string(metric)}
	}
	if err != nil {
		return nil, err
	}
	cursor.LastTimestamp = cursor.LastTimestamp.UTC()
	return &cursor, nil
}

// AdvanceCursor moves a cursor forward. The conflict clause keeps advancement
// monotonic: an older timestamp never overwrites a newer one.
func (s *Store) AdvanceCursor(ctx context.Context, subjectID, source string, metric telemetry.Metric, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_cursors (subject_id, source, metric, last_timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject_id, source, metric) DO UPDATE SET
			last_timestamp = excluded.last_timestamp
		WHERE excluded.last_timestamp > poll_cursors.last_timestamp
	`, subjectID, source, string(metric), ts.UTC())
	return err
}

// Compound record methods

// InsertMealWithEstimate inserts the parent meal row, then the estimate
// detail. A detail failure deletes the just-created parent before surfacing
// the error so no orphaned parent ever persists.
func (s *Store) InsertMealWithEstimate(ctx context.Context, meal *storage.MealRecord, estimate *storage.MealEstimate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meals (id, subject_id, description, logged_at)
		VALUES (?, ?, ?, ?)
	`, meal.ID, meal.SubjectID, meal.Description, meal.LoggedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meal_estimates (meal_id, calories, protein_g, carbs_g, fat_g, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
	`, estimate.MealID, estimate.Calories, estimate.ProteinG, estimate.CarbsG, estimate.FatG, estimate.Confidence)
	if err != nil {
		if _, delErr := s.db.ExecContext(ctx, "DELETE FROM meals WHERE id = ?", meal.ID); delErr != nil {
			return fmt.Errorf("insert meal estimate: %w (orphan cleanup failed: %v)", err, delErr)
		}
		return fmt.Errorf("insert meal estimate: %w", err)
	}
	return nil
}

func (s *Store) ListMeals(ctx context.Context, subjectID string, limit int) ([]*storage.MealRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, description, logged_at FROM meals
		WHERE subject_id = ?
		ORDER BY logged_at DESC
		LIMIT ?
	`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meals []*storage.MealRecord
	for rows.Next() {
		var meal storage.MealRecord
		if err := rows.Scan(&meal.ID, &meal.SubjectID, &meal.Description, &meal.LoggedAt); err != nil {
			return nil, err
		}
		meal.LoggedAt = meal.LoggedAt.UTC()
		meals = append(meals, &meal)
	}
	return meals, rows.Err()
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
