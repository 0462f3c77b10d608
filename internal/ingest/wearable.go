package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwulff/vitalsync-go/internal/fitbit"
	"github.com/jwulff/vitalsync-go/internal/storage"
	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

const wearableSourceName = "fitbit"

// WearableSource polls every wearable metric for the current day. Metrics
// fetch concurrently within a cycle; one metric's failure never blocks the
// others, and each metric keeps its own poll cursor.
type WearableSource struct {
	subjectID string
	client    *fitbit.Client
	store     storage.Store
	writer    *Writer
	log       zerolog.Logger
	now       func() time.Time
}

// NewWearableSource creates the wearable source adapter.
func NewWearableSource(subjectID string, client *fitbit.Client, store storage.Store, writer *Writer, log zerolog.Logger) *WearableSource {
	return &WearableSource{
		subjectID: subjectID,
		client:    client,
		store:     store,
		writer:    writer,
		log:       log.With().Str("component", "wearable-source").Logger(),
		now:       time.Now,
	}
}

func (s *WearableSource) Name() string { return wearableSourceName }

// Initialize verifies the subject's wearable connection is authorized. The
// token itself is refreshed lazily by the request gate.
func (s *WearableSource) Initialize(ctx context.Context) error {
	if !s.client.Tokens.IsAuthenticated() {
		return errors.New("wearable connection not authorized: no token set")
	}
	return nil
}

// fetchFunc polls one metric for a date, returning the timestamp the metric's
// cursor should advance to (zero when nothing was written).
type fetchFunc func(ctx context.Context, date time.Time, since *time.Time) (advanceTo time.Time, err error)

// fetchers maps each metric to its poll method. Keyed by the canonical
// telemetry.WearableMetrics list so the adapter cannot silently drop a metric.
func (s *WearableSource) fetchers() map[telemetry.Metric]fetchFunc {
	return map[telemetry.Metric]fetchFunc{
		telemetry.MetricHeartRate:     s.pollHeartRate,
		telemetry.MetricHRVDaily:      s.pollHRVDaily,
		telemetry.MetricHRVIntraday:   s.pollHRVIntraday,
		telemetry.MetricSleep:         s.pollSleep,
		telemetry.MetricActivityDaily: s.pollActivityDaily,
		telemetry.MetricStepsIntraday: s.pollStepsIntraday,
	}
}

// Poll fetches all metrics for today's date concurrently and returns the
// failures joined, so the scheduler logs them as one cycle error while every
// metric still got its attempt.
func (s *WearableSource) Poll(ctx context.Context) error {
	date := s.now().UTC()
	fetchers := s.fetchers()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, metric := range telemetry.WearableMetrics {
		run, ok := fetchers[metric]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no fetcher registered", metric))
			continue
		}
		wg.Add(1)
		go func(metric telemetry.Metric, run fetchFunc) {
			defer wg.Done()

			since := s.cursorTime(ctx, metric)
			advanceTo, err := run(ctx, date, since)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", metric, err))
				mu.Unlock()
				return
			}
			if advanceTo.IsZero() {
				return
			}
			if err := s.store.AdvanceCursor(ctx, s.subjectID, wearableSourceName, metric, advanceTo); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: advance cursor: %w", metric, err))
				mu.Unlock()
			}
		}(metric, run)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// cursorTime loads a metric's cursor, returning nil when none exists yet.
func (s *WearableSource) cursorTime(ctx context.Context, metric telemetry.Metric) *time.Time {
	cursor, err := s.store.GetCursor(ctx, s.subjectID, wearableSourceName, metric)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.log.Warn().Err(err).Str("metric", string(metric)).Msg("cursor lookup failed")
		}
		return nil
	}
	ts := cursor.LastTimestamp
	return &ts
}

func (s *WearableSource) pollHeartRate(ctx context.Context, date time.Time, since *time.Time) (time.Time, error) {
	samples, err := s.client.FetchHeartRate(ctx, date, since)
	if err != nil || len(samples) == 0 {
		return time.Time{}, err
	}
	for i := range samples {
		samples[i].SubjectID = s.subjectID
	}
	if _, err := s.writer.UpsertHeartRate(ctx, samples); err != nil {
		return time.Time{}, err
	}
	return latest(samples, func(v telemetry.HeartRateSample) time.Time { return v.Timestamp }), nil
}

func (s *WearableSource) pollHRVDaily(ctx context.Context, date time.Time, since *time.Time) (time.Time, error) {
	summaries, err := s.client.FetchHRVDaily(ctx, date, since)
	if err != nil || len(summaries) == 0 {
		return time.Time{}, err
	}
	for i := range summaries {
		summaries[i].SubjectID = s.subjectID
	}
	if _, err := s.writer.UpsertHRVDaily(ctx, summaries); err != nil {
		return time.Time{}, err
	}
	return latest(summaries, func(v telemetry.HRVDailySummary) time.Time { return v.Date }), nil
}

func (s *WearableSource) pollHRVIntraday(ctx context.Context, date time.Time, since *time.Time) (time.Time, error) {
	samples, err := s.client.FetchHRVIntraday(ctx, date, since)
	if err != nil || len(samples) == 0 {
		return time.Time{}, err
	}
	for i := range samples {
		samples[i].SubjectID = s.subjectID
	}
	if _, err := s.writer.UpsertHRVIntraday(ctx, samples); err != nil {
		return time.Time{}, err
	}
	return latest(samples, func(v telemetry.HRVIntradaySample) time.Time { return v.Timestamp }), nil
}

func (s *WearableSource) pollSleep(ctx context.Context, date time.Time, since *time.Time) (time.Time, error) {
	sessions, err := s.client.FetchSleep(ctx, date, since)
	if err != nil || len(sessions) == 0 {
		return time.Time{}, err
	}
	for i := range sessions {
		sessions[i].SubjectID = s.subjectID
	}
	if _, err := s.writer.UpsertSleep(ctx, sessions); err != nil {
		return time.Time{}, err
	}
	return latest(sessions, func(v telemetry.SleepSession) time.Time { return v.EndTime }), nil
}

func (s *WearableSource) pollActivityDaily(ctx context.Context, date time.Time, since *time.Time) (time.Time, error) {
	summaries, err := s.client.FetchActivityDaily(ctx, date, since)
	if err != nil || len(summaries) == 0 {
		return time.Time{}, err
	}
	for i := range summaries {
		summaries[i].SubjectID = s.subjectID
	}
	if _, err := s.writer.UpsertActivityDaily(ctx, summaries); err != nil {
		return time.Time{}, err
	}
	return latest(summaries, func(v telemetry.ActivityDailySummary) time.Time { return v.Date }), nil
}

func (s *WearableSource) pollStepsIntraday(ctx context.Context, date time.Time, since *time.Time) (time.Time, error) {
	samples, err := s.client.FetchStepsIntraday(ctx, date, since)
	if err != nil || len(samples) == 0 {
		return time.Time{}, err
	}
	for i := range samples {
		samples[i].SubjectID = s.subjectID
	}
	if _, err := s.writer.UpsertStepsIntraday(ctx, samples); err != nil {
		return time.Time{}, err
	}
	return latest(samples, func(v telemetry.StepsIntradaySample) time.Time { return v.Timestamp }), nil
}

// latest returns the newest timestamp in a batch.
func latest[T any](items []T, ts func(T) time.Time) time.Time {
	newest := ts(items[0])
	for _, item := range items[1:] {
		if t := ts(item); t.After(newest) {
			newest = t
		}
	}
	return newest
}
