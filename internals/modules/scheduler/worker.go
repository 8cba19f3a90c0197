package scheduler

import (
	"context"
	"fmt"
	"time"
	"watchtower/internals/modules/incident"
	"watchtower/internals/modules/probe"
	"watchtower/internals/modules/state"
	"watchtower/internals/modules/target"
	"watchtower/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IncidentService is the slice of the incident manager the worker needs.
type IncidentService interface {
	Open(ctx context.Context, targetID string, cause string) (*incident.Incident, error)
	FindOpen(ctx context.Context, targetID string) (*incident.Incident, error)
	Close(ctx context.Context, id uuid.UUID) error
}

// Remediator runs the remediation sequence for a failing target. Blocks
// until done or cancelled; the worker runs it on its own goroutine.
type Remediator interface {
	Run(ctx context.Context, t target.Target, incidentID uuid.UUID, verifyCh chan<- probe.CheckResult)
}

// CheckRunner is the probe runner contract the worker consumes.
type CheckRunner interface {
	Run(ctx context.Context, t target.Target) (probe.CheckResult, error)
}

// StatusCache mirrors the latest state of a target for the operator API.
// Best effort, failures are logged and ignored.
type StatusCache interface {
	StoreStatus(ctx context.Context, targetID string, status string, success bool, latencyMs int64, checkedAt time.Time) error
	DelStatus(ctx context.Context, targetID string) error
}

// Worker owns one target end to end: it probes on the target's own interval,
// feeds results through the debouncer, drives the incident lifecycle and the
// remediation engine. All state mutation happens on the worker goroutine, so
// per-target ordering holds without locks.
type Worker struct {
	target    target.Target
	machine   *state.Machine
	runner    CheckRunner
	incidents IncidentService
	engine    Remediator
	cache     StatusCache
	logger    zerolog.Logger

	// verification results from the remediation engine join the scheduled
	// results here, keeping the target's timeline ordered
	verifyCh chan probe.CheckResult

	// repository writes that failed their bounded retries, replayed before
	// the next result is applied so no transition is ever dropped
	pending []func(ctx context.Context) error

	remediationCancel context.CancelFunc
	remediationDone   chan struct{}
}

func NewWorker(
	t target.Target,
	machine *state.Machine,
	runner CheckRunner,
	incidents IncidentService,
	engine Remediator,
	cache StatusCache,
	logger *zerolog.Logger,
) *Worker {
	return &Worker{
		target:    t,
		machine:   machine,
		runner:    runner,
		incidents: incidents,
		engine:    engine,
		cache:     cache,
		logger:    logger.With().Str("target_id", t.ID).Logger(),
		verifyCh:  make(chan probe.CheckResult, 4),
	}
}

// Run is the worker loop. It does an immediate pass, then probes each tick
// until ctx is cancelled. In-flight probes finish on their own timeout; the
// remediation engine is cancelled and waited for.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().
		Str("kind", string(w.target.Kind)).
		Dur("interval", w.target.CheckInterval).
		Msg("target worker started")

	// restart recovery: a machine restored as failing resumes remediation
	// against the adopted incident instead of opening a duplicate
	if w.machine.Status() == state.StatusFailing && w.machine.OpenIncidentID() != uuid.Nil {
		w.startRemediation(ctx)
	}

	ticker := time.NewTicker(w.target.CheckInterval)
	defer ticker.Stop()

	w.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.stopRemediation()
			w.logger.Info().Msg("target worker stopped")
			return

		case <-ticker.C:
			w.cycle(ctx)

		case res := <-w.verifyCh:
			w.apply(ctx, res)
		}
	}
}

func (w *Worker) cycle(ctx context.Context) {
	res, err := w.runner.Run(ctx, w.target)
	if err != nil {
		// malformed target, config validation should have caught this
		w.logger.Error().Err(err).Msg("probe could not run")
		return
	}
	w.apply(ctx, res)
}

// apply feeds one result through the debouncer and performs whatever side
// effect the transition demands.
func (w *Worker) apply(ctx context.Context, res probe.CheckResult) {
	w.flushPending(ctx)

	ev := w.machine.Apply(res.Success)

	w.logger.Debug().
		Bool("success", res.Success).
		Str("status", string(w.machine.Status())).
		Str("detail", res.Detail).
		Dur("latency", res.Latency).
		Msg("check applied")

	w.cacheStatus(ctx, res)

	switch ev {
	case state.EventOpenIncident:
		w.openIncident(ctx, res)
		if w.machine.OpenIncidentID() != uuid.Nil {
			w.startRemediation(ctx)
		}

	case state.EventResumeRemediation:
		w.startRemediation(ctx)

	case state.EventStartRecovery:
		w.stopRemediation()

	case state.EventCloseIncident:
		w.stopRemediation()
		w.closeIncident(ctx)
	}
}

func (w *Worker) openIncident(ctx context.Context, res probe.CheckResult) {
	cause := causeSummary(w.target, res)

	inc, err := w.incidents.Open(ctx, w.target.ID, cause)
	if apperror.IsKind(err, apperror.Conflict) {
		// defensive: adopt the already-open incident rather than losing it
		existing, findErr := w.incidents.FindOpen(ctx, w.target.ID)
		if findErr != nil || existing == nil {
			w.logger.Error().Err(findErr).Msg("open incident conflict but lookup failed")
			w.deferOpen(cause)
			return
		}
		w.logger.Warn().Str("incident_id", existing.ID.String()).Msg("adopted existing open incident")
		w.machine.SetOpenIncident(existing.ID)
		return
	}
	if err != nil {
		w.logger.Error().Err(err).Msg("incident open failed, holding transition pending")
		w.deferOpen(cause)
		return
	}

	w.machine.SetOpenIncident(inc.ID)
}

// deferOpen parks the incident-open write for the next cycle. The in-memory
// state is already Failing; the incident record follows as soon as the
// repository recovers, and remediation starts only once it exists.
func (w *Worker) deferOpen(cause string) {
	w.pending = append(w.pending, func(ctx context.Context) error {
		if w.machine.Status() != state.StatusFailing || w.machine.OpenIncidentID() != uuid.Nil {
			return nil // transition superseded
		}
		inc, err := w.incidents.Open(ctx, w.target.ID, cause)
		if apperror.IsKind(err, apperror.Conflict) {
			existing, findErr := w.incidents.FindOpen(ctx, w.target.ID)
			if findErr != nil || existing == nil {
				return err
			}
			w.machine.SetOpenIncident(existing.ID)
			w.startRemediation(ctx)
			return nil
		}
		if err != nil {
			return err
		}
		w.machine.SetOpenIncident(inc.ID)
		w.startRemediation(ctx)
		return nil
	})
}

func (w *Worker) closeIncident(ctx context.Context) {
	id := w.machine.OpenIncidentID()
	if id == uuid.Nil {
		return
	}

	err := w.incidents.Close(ctx, id)
	if apperror.IsKind(err, apperror.NotFound) {
		// already closed, nothing to retry
		w.machine.ClearOpenIncident()
		return
	}
	if err != nil {
		w.logger.Error().Err(err).Msg("incident close failed, holding transition pending")
		w.pending = append(w.pending, func(ctx context.Context) error {
			err := w.incidents.Close(ctx, id)
			if apperror.IsKind(err, apperror.NotFound) {
				return nil
			}
			return err
		})
	}

	w.machine.ClearOpenIncident()
}

// flushPending replays held repository writes in order. A write that fails
// again stays queued; nothing is dropped.
func (w *Worker) flushPending(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}

	remaining := w.pending[:0]
	for _, op := range w.pending {
		if err := op(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("pending repository write still failing")
			remaining = append(remaining, op)
		}
	}
	w.pending = remaining
}

func (w *Worker) startRemediation(ctx context.Context) {
	w.stopRemediation()

	incidentID := w.machine.OpenIncidentID()
	if incidentID == uuid.Nil {
		return
	}

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.remediationCancel = cancel
	w.remediationDone = done

	go func() {
		defer close(done)
		w.engine.Run(rctx, w.target, incidentID, w.verifyCh)
	}()
}

// stopRemediation cancels a queued or running remediation sequence and waits
// for it to wind down, draining verification results it may still emit.
func (w *Worker) stopRemediation() {
	if w.remediationCancel == nil {
		return
	}
	w.remediationCancel()
	w.remediationCancel = nil

	for {
		select {
		case <-w.remediationDone:
			w.remediationDone = nil
			return
		case <-w.verifyCh:
			// discard, the engine is shutting down
		}
	}
}

func (w *Worker) cacheStatus(ctx context.Context, res probe.CheckResult) {
	if w.cache == nil {
		return
	}
	err := w.cache.StoreStatus(ctx, w.target.ID, string(w.machine.Status()), res.Success, res.Latency.Milliseconds(), res.Timestamp)
	if err != nil {
		w.logger.Warn().Err(err).Msg("status cache write failed")
	}
}

func causeSummary(t target.Target, res probe.CheckResult) string {
	if res.Detail != "" {
		return res.Detail
	}
	switch t.Kind {
	case target.KindHost:
		return "host unreachable (ping failed)"
	case target.KindPort:
		return fmt.Sprintf("port %s not reachable", t.Address)
	default:
		return "http service error"
	}
}
