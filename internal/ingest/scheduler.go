package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler fires poll cycles for every registered source at a fixed
// interval. Cycles for different sources run concurrently; a source whose
// previous cycle is still running when the next tick fires is skipped for
// that tick only. Failures inside one source's cycle never stop the scheduler
// or other sources.
type Scheduler struct {
	log     zerolog.Logger
	sources []*registeredSource

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	tickWG  sync.WaitGroup // ticker goroutine
	cycleWG sync.WaitGroup // in-flight cycles
}

type registeredSource struct {
	source   Source
	busy     atomic.Bool
	disabled bool
}

// NewScheduler creates a scheduler with no sources registered.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log.With().Str("component", "scheduler").Logger()}
}

// Register adds a source. Must be called before Start.
func (s *Scheduler) Register(src Source) {
	s.sources = append(s.sources, &registeredSource{source: src})
}

// Start initializes every source and begins firing ticks at the given
// interval. A source whose initialization fails is logged and excluded from
// polling; it does not prevent the scheduler from starting. The first cycle
// runs immediately rather than waiting one full interval.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	for _, rs := range s.sources {
		if err := rs.source.Initialize(ctx); err != nil {
			rs.disabled = true
			s.log.Error().Err(err).Str("source", rs.source.Name()).
				Msg("source initialization failed, excluded from polling")
			continue
		}
		s.log.Info().Str("source", rs.source.Name()).Msg("source initialized")
	}

	s.tickWG.Add(1)
	go func() {
		defer s.tickWG.Done()

		s.tick(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// tick starts one poll cycle per enabled source. Each cycle runs in its own
// goroutine; the busy flag enforces the no-overlap rule per source.
func (s *Scheduler) tick(ctx context.Context) {
	for _, rs := range s.sources {
		if rs.disabled {
			continue
		}
		if !rs.busy.CompareAndSwap(false, true) {
			s.log.Warn().Str("source", rs.source.Name()).
				Msg("previous cycle still running, skipping tick")
			continue
		}

		s.cycleWG.Add(1)
		go func(rs *registeredSource) {
			defer s.cycleWG.Done()
			defer rs.busy.Store(false)

			started := time.Now()
			if err := rs.source.Poll(ctx); err != nil {
				s.log.Error().Err(err).Str("source", rs.source.Name()).
					Dur("elapsed", time.Since(started)).Msg("poll cycle failed")
				return
			}
			s.log.Debug().Str("source", rs.source.Name()).
				Dur("elapsed", time.Since(started)).Msg("poll cycle complete")
		}(rs)
	}
}

// Stop halts future ticks and waits for in-flight cycles to finish. It is
// idempotent; calling it when already stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.tickWG.Wait()
	s.cycleWG.Wait()
}
