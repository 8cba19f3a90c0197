package scheduler

import (
	"context"
	"sync"
	"watchtower/internals/modules/incident"
	"watchtower/internals/modules/state"
	"watchtower/internals/modules/target"

	"github.com/rs/zerolog"
)

// Scheduler owns one worker per configured target. Workers run concurrently
// and independently; a slow probe on one target never delays another.
type Scheduler struct {
	workers []*Worker
	cache   StatusCache
	orphans []string
	logger  *zerolog.Logger
	wg      sync.WaitGroup
}

// New builds the per-target workers. Open incidents found in storage seed
// their targets as Failing so remediation resumes instead of a duplicate
// incident being opened.
func New(
	registry *target.Registry,
	open []incident.Incident,
	runner CheckRunner,
	incidents IncidentService,
	engine Remediator,
	cache StatusCache,
	logger *zerolog.Logger,
) *Scheduler {

	openByTarget := make(map[string]*incident.Incident, len(open))
	for i := range open {
		openByTarget[open[i].TargetID] = &open[i]
	}

	s := &Scheduler{cache: cache, logger: logger}

	for _, t := range registry.All() {
		var machine *state.Machine
		if inc, ok := openByTarget[t.ID]; ok {
			machine = state.Restore(t.ID, t.FailureThreshold, t.SuccessThreshold, inc.ID)
			logger.Warn().
				Str("target_id", t.ID).
				Str("incident_id", inc.ID.String()).
				Msg("restored failing state from open incident")
			delete(openByTarget, t.ID)
		} else {
			machine = state.NewMachine(t.ID, t.FailureThreshold, t.SuccessThreshold)
		}

		s.workers = append(s.workers, NewWorker(t, machine, runner, incidents, engine, cache, logger))
	}

	// incidents whose target left the configuration are retained until an
	// operator closes them, never silently discarded
	for targetID, inc := range openByTarget {
		logger.Warn().
			Str("target_id", targetID).
			Str("incident_id", inc.ID.String()).
			Msg("open incident for unconfigured target retained, close it via the API")
		s.orphans = append(s.orphans, targetID)
	}

	return s
}

// Run starts every worker and blocks until ctx is cancelled and all workers
// have wound down.
func (s *Scheduler) Run(ctx context.Context) {
	s.clearOrphanStatuses(ctx)

	s.logger.Info().Int("targets", len(s.workers)).Msg("scheduler started")

	s.wg.Add(len(s.workers))
	for _, w := range s.workers {
		go func() {
			defer s.wg.Done()
			w.Run(ctx)
		}()
	}

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// RunOnce probes every target a single time, logs each result, and returns
// the number of failed checks. The one-shot mode: no state transitions, no
// incidents, just a report.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	failed := 0
	for _, w := range s.workers {
		res, err := w.runner.Run(ctx, w.target)
		if err != nil {
			s.logger.Error().Err(err).Str("target_id", w.target.ID).Msg("check could not run")
			failed++
			continue
		}

		if res.Success {
			s.logger.Info().
				Str("target_id", w.target.ID).
				Dur("latency", res.Latency).
				Msg("check passed")
			continue
		}

		s.logger.Warn().
			Str("target_id", w.target.ID).
			Str("detail", res.Detail).
			Dur("latency", res.Latency).
			Msg("check failed")
		failed++
	}
	return failed
}

// clearOrphanStatuses drops cached status entries for targets that left the
// configuration; no worker updates them anymore, so a stale entry would look
// live on the operator API forever.
func (s *Scheduler) clearOrphanStatuses(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, targetID := range s.orphans {
		if err := s.cache.DelStatus(ctx, targetID); err != nil {
			s.logger.Warn().Err(err).Str("target_id", targetID).Msg("failed to clear stale status")
		}
	}
}
