// Package scheduler runs decision cycles one at a time: once at start, then
// on every tick and whenever a run is requested.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pausee/internal/cache"
	"pausee/internal/engine"
	"pausee/internal/observability"
)

type Runner interface {
	RunCycle(ctx context.Context) (engine.CycleReport, error)
}

type Scheduler struct {
	runner  Runner
	every   time.Duration
	trigger chan struct{}
	last    cache.Snapshot[engine.CycleReport]
}

func New(r Runner, every time.Duration) *Scheduler {
	return &Scheduler{runner: r, every: every, trigger: make(chan struct{}, 1)}
}

// Run blocks until ctx is done. Cycles never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Dur("every", s.every).Msg("scheduler started")
	s.RunOnce(ctx)

	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return nil
		case <-t.C:
		case <-s.trigger:
			log.Info().Msg("cycle requested")
		}
		if ctx.Err() != nil {
			return nil
		}
		s.RunOnce(ctx)
	}
}

// Trigger requests a cycle as soon as the current one (if any) finishes.
// Requests made while one is pending are coalesced; false is returned for those.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Last returns the report of the most recent finished cycle.
func (s *Scheduler) Last() (engine.CycleReport, bool) { return s.last.Load() }

// RunOnce runs a single cycle. Errors and panics are logged and contained.
func (s *Scheduler) RunOnce(ctx context.Context) (rep engine.CycleReport) {
	id := uuid.NewString()
	logger := log.With().Str("cycle_id", id).Logger()
	ctx = logger.WithContext(ctx)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("panic", fmt.Sprint(r)).Msg("cycle panicked")
			rep = engine.CycleReport{ID: id, StartedAt: started, FinishedAt: time.Now(), Error: fmt.Sprintf("panic: %v", r)}
			observability.ObserveCycle(rep, observability.OutcomePanic)
			s.last.Store(rep)
		}
	}()

	rep, err := s.runner.RunCycle(ctx)
	rep.ID = id
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeAbort
		if rep.Error == "" {
			rep.Error = err.Error()
		}
		ev := logger.Error().Err(err)
		var abortErr *engine.CycleAbortError
		if errors.As(err, &abortErr) {
			ev = ev.Str("stage", abortErr.Stage)
		}
		ev.Msg("cycle aborted")
	} else {
		logger.Info().Str("branch", string(rep.Branch)).Bool("in_window", rep.InWindow).
			Int("installs", rep.TotalInstalls).Int("paused", rep.PausedCount).
			Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).Msg("cycle finished")
	}
	observability.ObserveCycle(rep, outcome)
	s.last.Store(rep)
	return rep
}
