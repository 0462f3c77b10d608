// Package ingest drives the periodic poll cycles that move provider data into
// durable storage: the scheduler, the per-provider source adapters, and the
// ingestion writer.
package ingest

import "context"

// Source is one telemetry provider adapter. Initialize runs once before
// polling starts; a failure there disables the source for the scheduler's
// lifetime, since no later cycle can succeed without it. Poll runs one fetch
// cycle; its errors abort only that cycle.
type Source interface {
	Name() string
	Initialize(ctx context.Context) error
	Poll(ctx context.Context) error
}
