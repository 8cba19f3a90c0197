package probe

import (
	"context"
	"time"
	"watchtower/internals/modules/target"
)

// Outcome is what a single probe execution observed. Routine failure
// (unreachable host, closed port, bad HTTP status) is Success=false with a
// Detail, never a Go error.
type Outcome struct {
	Success bool
	Latency time.Duration
	Detail  string
}

// Probe is implemented per target kind (ICMP ping, TCP connect, HTTP GET).
type Probe interface {
	Execute(ctx context.Context, t target.Target) Outcome
}

// CheckResult is one probe execution attributed to a target.
type CheckResult struct {
	TargetID  string
	Timestamp time.Time
	Success   bool
	Latency   time.Duration
	Detail    string
}
