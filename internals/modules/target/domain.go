package target

import "time"

type Kind string

const (
	KindHost    Kind = "host"    // ICMP reachability of a machine
	KindService Kind = "service" // HTTP endpoint, expected status range
	KindPort    Kind = "port"    // raw TCP connect on host:port
)

// Target is a monitored entity. Immutable once scheduled; a config reload
// means a process restart.
type Target struct {
	ID               string
	Kind             Kind
	Address          string
	CheckInterval    time.Duration
	FailureThreshold int
	SuccessThreshold int

	// service kind only: accepted HTTP status range [Lo, Hi)
	ExpectedStatusLo int
	ExpectedStatusHi int

	// ordered remediation action names; empty falls back to the
	// per-kind default list
	Actions []string
}
