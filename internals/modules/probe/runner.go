package probe

import (
	"context"
	"time"
	"watchtower/internals/modules/target"
	"watchtower/pkg/apperror"
)

// Runner executes one probe for a target, bounded by the configured timeout.
// Safe for concurrent use across targets.
type Runner struct {
	registry *Registry
	timeout  time.Duration
}

func NewRunner(registry *Registry, timeout time.Duration) *Runner {
	return &Runner{
		registry: registry,
		timeout:  timeout,
	}
}

// Run probes the target once. Routine probe failure comes back as an
// unsuccessful CheckResult; an error return means the target itself is
// malformed. The probe context is detached from the caller's cancellation so
// an in-flight check runs to completion (or its timeout) during shutdown.
func (r *Runner) Run(ctx context.Context, t target.Target) (CheckResult, error) {
	const op string = "probe.runner.run"

	p, err := r.registry.ForKind(t.Kind)
	if err != nil {
		return CheckResult{}, apperror.New(apperror.InvalidInput, op, err)
	}

	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	out := p.Execute(probeCtx, t)

	return CheckResult{
		TargetID:  t.ID,
		Timestamp: time.Now().UTC(),
		Success:   out.Success,
		Latency:   out.Latency,
		Detail:    out.Detail,
	}, nil
}
