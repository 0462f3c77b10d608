package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/vitalsync-go/internal/fitbit"
	"github.com/jwulff/vitalsync-go/internal/storage/sqlite"
	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

// fakeWearableProvider serves every metric endpoint and records the paths it
// was asked for.
type fakeWearableProvider struct {
	mu        sync.Mutex
	paths     []string
	failSleep bool
}

func (p *fakeWearableProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.paths = append(p.paths, r.URL.Path)
	p.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.Contains(path, "/activities/heart/"):
		w.Write([]byte(`{"activities-heart-intraday":{"dataset":[
			{"time":"08:00:00","value":62},{"time":"08:01:00","value":64}]}}`))
	case strings.Contains(path, "/hrv/") && strings.Contains(path, "/all"):
		w.Write([]byte(`{"hrv":[{"minutes":[{"minute":"2024-01-02T08:05:00","value":{"rmssd":28.1,"coverage":0.98}}]}]}`))
	case strings.Contains(path, "/hrv/"):
		w.Write([]byte(`{"hrv":[{"value":{"dailyRmssd":32.5,"deepRmssd":41.2},"dateTime":"2024-01-02"}]}`))
	case strings.Contains(path, "/sleep/"):
		if p.failSleep {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"sleep":[{"startTime":"2024-01-01T23:10:00.000","endTime":"2024-01-02T07:02:00.000",
			"isMainSleep":true,"efficiency":92,
			"levels":{"summary":{"deep":{"minutes":85},"light":{"minutes":230},"rem":{"minutes":95},"wake":{"minutes":42}}}}]}`))
	case strings.Contains(path, "/activities/steps/"):
		w.Write([]byte(`{"activities-steps-intraday":{"dataset":[{"time":"08:15:00","value":312}]}}`))
	case strings.Contains(path, "/activities/date/"):
		w.Write([]byte(`{"summary":{"steps":10432,"caloriesOut":2650,
			"distances":[{"activity":"total","distance":7.9}],
			"sedentaryMinutes":600,"lightlyActiveMinutes":210,"fairlyActiveMinutes":45,"veryActiveMinutes":30}}`))
	default:
		http.NotFound(w, r)
	}
}

func (p *fakeWearableProvider) requestedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func newWearableFixture(t *testing.T, provider *fakeWearableProvider) (*WearableSource, *sqlite.Store) {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	tokens := fitbit.NewTokenManager("client-id", "client-secret", fitbit.TokenSet{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	client := fitbit.NewClient(tokens)
	client.BaseURL = server.URL

	writer := NewWriter(store, zerolog.Nop())
	source := NewWearableSource("subject-1", client, store, writer, zerolog.Nop())
	source.now = func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }
	return source, store
}

func TestWearablePollFetchesEveryMetric(t *testing.T) {
	provider := &fakeWearableProvider{}
	source, store := newWearableFixture(t, provider)
	ctx := context.Background()

	require.NoError(t, source.Initialize(ctx))
	require.NoError(t, source.Poll(ctx))

	// All six metrics landed.
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, metric := range telemetry.WearableMetrics {
		cursor, err := store.GetCursor(ctx, "subject-1", "fitbit", metric)
		require.NoError(t, err, "cursor for %s", metric)
		assert.False(t, cursor.LastTimestamp.Before(day.Add(-24*time.Hour)), "cursor for %s", metric)
	}
	assert.Len(t, provider.requestedPaths(), len(telemetry.WearableMetrics))
}

func TestWearableFetcherRegisteredForEveryMetric(t *testing.T) {
	source, _ := newWearableFixture(t, &fakeWearableProvider{})

	fetchers := source.fetchers()
	for _, metric := range telemetry.WearableMetrics {
		assert.Contains(t, fetchers, metric)
	}
	assert.Len(t, fetchers, len(telemetry.WearableMetrics))
}

func TestWearablePollIsolatesMetricFailures(t *testing.T) {
	provider := &fakeWearableProvider{failSleep: true}
	source, store := newWearableFixture(t, provider)
	ctx := context.Background()

	err := source.Poll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sleep")

	// The failed metric has no cursor; the others were still ingested.
	_, cursorErr := store.GetCursor(ctx, "subject-1", "fitbit", telemetry.MetricSleep)
	assert.Error(t, cursorErr)

	hrCursor, err := store.GetCursor(ctx, "subject-1", "fitbit", telemetry.MetricHeartRate)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 1, 0, 0, time.UTC), hrCursor.LastTimestamp)
	assert.Len(t, provider.requestedPaths(), 6)
}

func TestWearableSecondPollUsesTimeRangedVariant(t *testing.T) {
	provider := &fakeWearableProvider{}
	source, _ := newWearableFixture(t, provider)
	ctx := context.Background()

	require.NoError(t, source.Poll(ctx))
	require.NoError(t, source.Poll(ctx))

	var sawTimeRangedHeart bool
	for _, path := range provider.requestedPaths() {
		if strings.Contains(path, "/activities/heart/") && strings.Contains(path, "/time/08:01/23:59") {
			sawTimeRangedHeart = true
		}
	}
	// The heart-rate cursor from the first poll (08:01 same day) switches
	// the second poll to the time-ranged intraday variant.
	assert.True(t, sawTimeRangedHeart, "paths: %v", provider.requestedPaths())
}

func TestWearablePollIdempotent(t *testing.T) {
	provider := &fakeWearableProvider{}
	source, store := newWearableFixture(t, provider)
	ctx := context.Background()

	require.NoError(t, source.Poll(ctx))
	require.NoError(t, source.Poll(ctx))

	result, err := store.UpsertHeartRateSamples(ctx, []telemetry.HeartRateSample{
		{SubjectID: "subject-1", Timestamp: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), BPM: 62},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
}

func TestWearableInitializeRequiresToken(t *testing.T) {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens := fitbit.NewTokenManager("client-id", "client-secret", fitbit.TokenSet{})
	client := fitbit.NewClient(tokens)
	source := NewWearableSource("subject-1", client, store, NewWriter(store, zerolog.Nop()), zerolog.Nop())

	assert.Error(t, source.Initialize(context.Background()))
}
