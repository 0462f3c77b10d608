package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwulff/vitalsync-go/internal/dexcom"
	"github.com/jwulff/vitalsync-go/internal/storage"
	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

const (
	glucoseSourceName = "dexcom"

	// defaultLookbackMinutes bounds the first fetch when no cursor exists.
	defaultLookbackMinutes = 24 * 60
	// maxReadingsPerFetch covers a full day of 5-minute CGM samples.
	maxReadingsPerFetch = 288
	// cursorOverlapMinutes re-fetches a little history past the cursor so a
	// reading published late is never missed; the store ignores duplicates.
	cursorOverlapMinutes = 10
)

// GlucoseSource polls the glucose telemetry provider and hands normalized
// readings to the ingestion writer. It owns its poll cursor.
type GlucoseSource struct {
	subjectID string
	client    *dexcom.Client
	store     storage.Store
	writer    *Writer
	log       zerolog.Logger
	now       func() time.Time
}

// NewGlucoseSource creates the glucose source adapter.
func NewGlucoseSource(subjectID string, client *dexcom.Client, store storage.Store, writer *Writer, log zerolog.Logger) *GlucoseSource {
	return &GlucoseSource{
		subjectID: subjectID,
		client:    client,
		store:     store,
		writer:    writer,
		log:       log.With().Str("component", "glucose-source").Logger(),
		now:       time.Now,
	}
}

func (g *GlucoseSource) Name() string { return glucoseSourceName }

// Initialize logs in against the provider and discovers the connection to
// poll. Failure here disables the whole adapter: no later cycle can succeed
// without a session.
func (g *GlucoseSource) Initialize(ctx context.Context) error {
	if err := g.client.Authenticate(ctx); err != nil {
		return err
	}
	g.log.Info().Str("connection", g.client.AccountID()).Msg("authenticated")
	return nil
}

// Poll fetches readings since the cursor, normalizes and writes them, then
// advances the cursor. Errors leave the cursor unchanged so the next tick
// retries from the same point; the provider client already performed its
// single re-login attempt before an auth error reaches here.
func (g *GlucoseSource) Poll(ctx context.Context) error {
	minutes := g.fetchWindowMinutes(ctx)

	raw, err := g.client.FetchReadings(ctx, maxReadingsPerFetch, minutes)
	if err != nil {
		return err
	}

	readings := g.normalize(raw)
	if len(readings) == 0 {
		g.log.Debug().Msg("no new glucose readings")
		return nil
	}

	if _, err := g.writer.UpsertGlucose(ctx, readings); err != nil {
		return err
	}

	// Cursor advances only after a successful write.
	newest := readings[0].Timestamp
	for _, r := range readings[1:] {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	return g.store.AdvanceCursor(ctx, g.subjectID, glucoseSourceName, telemetry.MetricGlucose, newest)
}

// fetchWindowMinutes computes the incremental window: from the cursor (plus a
// small overlap) when one exists, otherwise the default lookback.
func (g *GlucoseSource) fetchWindowMinutes(ctx context.Context) int {
	cursor, err := g.store.GetCursor(ctx, g.subjectID, glucoseSourceName, telemetry.MetricGlucose)
	if err != nil {
		if !storage.IsNotFound(err) {
			g.log.Warn().Err(err).Msg("cursor lookup failed, using default window")
		}
		return defaultLookbackMinutes
	}

	minutes := int(g.now().Sub(cursor.LastTimestamp).Minutes()) + cursorOverlapMinutes
	if minutes < cursorOverlapMinutes {
		minutes = cursorOverlapMinutes
	}
	if minutes > defaultLookbackMinutes {
		minutes = defaultLookbackMinutes
	}
	return minutes
}

// normalize converts provider readings to canonical form. Entries with an
// unparseable timestamp or non-positive value are dropped, not fatal.
func (g *GlucoseSource) normalize(raw []dexcom.Reading) []telemetry.GlucoseReading {
	var readings []telemetry.GlucoseReading
	for _, r := range raw {
		ms := dexcom.ParseTimestamp(r.WT)
		if ms == 0 || r.Value <= 0 {
			continue
		}
		readings = append(readings, telemetry.NewGlucoseReading(
			g.subjectID, time.UnixMilli(ms), float64(r.Value), r.Trend))
	}
	return readings
}
