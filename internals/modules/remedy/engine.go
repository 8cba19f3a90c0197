package remedy

import (
	"context"
	"errors"
	"fmt"
	"time"
	"watchtower/internals/modules/incident"
	"watchtower/internals/modules/probe"
	"watchtower/internals/modules/target"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IncidentService is the slice of the incident manager the engine needs.
type IncidentService interface {
	MarkRemediating(ctx context.Context, id uuid.UUID) error
	RecordAttempt(ctx context.Context, attempt *incident.RemediationAttempt) error
	Escalate(ctx context.Context, id uuid.UUID) error
}

// Verifier re-probes the target between remediation attempts.
type Verifier interface {
	Run(ctx context.Context, t target.Target) (probe.CheckResult, error)
}

// Engine executes the bounded remediation sequence for a failing target:
// backoff, verify, act, record, and escalate when the plan is exhausted.
// One Run per failing episode; the owning worker cancels ctx when the
// target leaves Failing.
type Engine struct {
	registry      *Registry
	incidents     IncidentService
	verifier      Verifier
	backoffBase   time.Duration
	backoffMax    time.Duration
	actionTimeout time.Duration
	logger        *zerolog.Logger
}

func NewEngine(
	registry *Registry,
	incidents IncidentService,
	verifier Verifier,
	backoffBase time.Duration,
	backoffMax time.Duration,
	actionTimeout time.Duration,
	logger *zerolog.Logger,
) *Engine {
	return &Engine{
		registry:      registry,
		incidents:     incidents,
		verifier:      verifier,
		backoffBase:   backoffBase,
		backoffMax:    backoffMax,
		actionTimeout: actionTimeout,
		logger:        logger,
	}
}

// Run works through the target's action plan. Verification results are fed
// back to the worker through verifyCh so they join the target's ordered
// result stream. Returns when the target verifies healthy, the plan is
// exhausted (escalating first), or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, t target.Target, incidentID uuid.UUID, verifyCh chan<- probe.CheckResult) {
	log := e.logger.With().Str("target_id", t.ID).Str("incident_id", incidentID.String()).Logger()

	plan, err := e.registry.Plan(t)
	if err != nil {
		// plans are validated at startup, this is belt and braces
		log.Error().Err(err).Msg("remediation plan lookup failed")
		return
	}

	if err := e.incidents.MarkRemediating(ctx, incidentID); err != nil {
		log.Error().Err(err).Msg("failed to mark incident remediating")
	}

	for i, action := range plan {
		if i > 0 {
			if !e.wait(ctx, e.backoff(i-1)) {
				return
			}
			// the failure may have cleared on its own while we backed off
			if done := e.verify(ctx, t, verifyCh, &log); done {
				return
			}
		}

		outcome, recorded := e.attempt(ctx, t, incidentID, action, &log)
		if !recorded {
			// cancelled mid-action, attempt history stays at the last
			// completed attempt
			return
		}

		if outcome == incident.OutcomeSuccess {
			if done := e.verify(ctx, t, verifyCh, &log); done {
				return
			}
		}
	}

	// plan exhausted, confirm the target is still down before escalating
	if done := e.verify(ctx, t, verifyCh, &log); done {
		return
	}
	if ctx.Err() != nil {
		return
	}

	log.Warn().Int("actions", len(plan)).Msg("remediation exhausted, escalating")
	if err := e.incidents.Escalate(ctx, incidentID); err != nil {
		log.Error().Err(err).Msg("escalation failed")
	}
}

// attempt runs one action bounded by the action timeout and records the
// outcome. recorded=false means ctx was cancelled and nothing was written.
func (e *Engine) attempt(ctx context.Context, t target.Target, incidentID uuid.UUID, action Action, log *zerolog.Logger) (incident.AttemptOutcome, bool) {
	started := time.Now().UTC()

	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	err := e.execute(actionCtx, action, t)
	timedOut := errors.Is(actionCtx.Err(), context.DeadlineExceeded)
	cancel()

	if ctx.Err() != nil && !timedOut {
		return "", false
	}

	outcome := incident.OutcomeSuccess
	detail := ""
	switch {
	case err == nil:
	case timedOut || errors.Is(err, context.DeadlineExceeded):
		outcome = incident.OutcomeTimedOut
		detail = fmt.Sprintf("action timed out after %s", e.actionTimeout)
	default:
		outcome = incident.OutcomeFailed
		detail = err.Error()
	}

	attempt := &incident.RemediationAttempt{
		IncidentID: incidentID,
		ActionName: action.Name(),
		Outcome:    outcome,
		Detail:     detail,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := e.incidents.RecordAttempt(ctx, attempt); err != nil {
		log.Error().Err(err).Str("action", action.Name()).Msg("failed to record remediation attempt")
	}

	return outcome, true
}

// execute shields the engine from a panicking action: a crash inside an
// action is recorded as a failure, never taken down the scheduler.
func (e *Engine) execute(ctx context.Context, action Action, t target.Target) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("action %s panicked: %v", action.Name(), rec)
		}
	}()
	return action.Execute(ctx, t)
}

// verify re-probes the target and forwards the result to the worker. Returns
// true when remediation should stop (target verified healthy or ctx ended).
func (e *Engine) verify(ctx context.Context, t target.Target, verifyCh chan<- probe.CheckResult, log *zerolog.Logger) bool {
	if ctx.Err() != nil {
		return true
	}

	res, err := e.verifier.Run(ctx, t)
	if err != nil {
		log.Error().Err(err).Msg("verification probe failed to run")
		return false
	}

	select {
	case verifyCh <- res:
	case <-ctx.Done():
		return true
	}

	return res.Success
}

func (e *Engine) backoff(attempt int) time.Duration {
	d := e.backoffBase << attempt
	if d > e.backoffMax || d <= 0 {
		d = e.backoffMax
	}
	return d
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
