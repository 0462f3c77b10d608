// Package storage provides storage abstractions for the ingestion pipeline.
package storage

import (
	"context"
	"time"

	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

// Store is the interface for persistent storage. Implementations must provide
// insert-or-ignore batch upserts keyed on the natural uniqueness of each
// reading kind, and a transactional compound write with rollback on detail
// failure; the pipeline takes no application-level locks around writes.
type Store interface {
	// Glucose
	UpsertGlucoseReadings(ctx context.Context, readings []telemetry.GlucoseReading) (UpsertResult, error)
	GlucoseRange(ctx context.Context, subjectID string, since, until time.Time) ([]telemetry.GlucoseReading, error)
	CountGlucoseReadings(ctx context.Context, subjectID string) (int, error)

	// Wearable metrics
	UpsertHeartRateSamples(ctx context.Context, samples []telemetry.HeartRateSample) (UpsertResult, error)
	UpsertHRVDailySummaries(ctx context.Context, summaries []telemetry.HRVDailySummary) (UpsertResult, error)
	UpsertHRVIntradaySamples(ctx context.Context, samples []telemetry.HRVIntradaySample) (UpsertResult, error)
	UpsertSleepSessions(ctx context.Context, sessions []telemetry.SleepSession) (UpsertResult, error)
	UpsertActivityDailySummaries(ctx context.Context, summaries []telemetry.ActivityDailySummary) (UpsertResult, error)
	UpsertStepsIntradaySamples(ctx context.Context, samples []telemetry.StepsIntradaySample) (UpsertResult, error)

	// Poll cursors
	GetCursor(ctx context.Context, subjectID, source string, metric telemetry.Metric) (*PollCursor, error)
	AdvanceCursor(ctx context.Context, subjectID, source string, metric telemetry.Metric, ts time.Time) error

	// Compound records
	InsertMealWithEstimate(ctx context.Context, meal *MealRecord, estimate *MealEstimate) error
	ListMeals(ctx context.Context, subjectID string, limit int) ([]*MealRecord, error)

	// Lifecycle
	Close() error
}

// UpsertResult reports how a batch upsert resolved. Counts are best-effort:
// they come from the store's conflict-ignored row reporting and are meant for
// observability, not as a correctness-bearing return value.
type UpsertResult struct {
	Inserted int
	Skipped  int
}

// Total returns the batch size the result describes.
func (r UpsertResult) Total() int {
	return r.Inserted + r.Skipped
}

// PollCursor is the per (subject, source, metric) high-water mark of
// successfully ingested data. It is created on first successful fetch,
// advanced monotonically, and never rolled back.
type PollCursor struct {
	SubjectID     string
	Source        string
	Metric        telemetry.Metric
	LastTimestamp time.Time
}

// MealRecord is the parent row of a compound meal write.
type MealRecord struct {
	ID          string
	SubjectID   string
	Description string
	LoggedAt    time.Time
}

// MealEstimate is the detail row of a compound meal write: the structured
// macro estimate produced by the nutrition collaborator.
type MealEstimate struct {
	MealID     string
	Calories   float64
	ProteinG   float64
	CarbsG     float64
	FatG       float64
	Confidence string
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
