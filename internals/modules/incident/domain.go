package incident

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen        Status = "open"
	StatusRemediating Status = "remediating"
	StatusEscalated   Status = "escalated"
	StatusClosed      Status = "closed"
)

type AttemptOutcome string

const (
	OutcomeSuccess  AttemptOutcome = "success"
	OutcomeFailed   AttemptOutcome = "failed"
	OutcomeTimedOut AttemptOutcome = "timed_out"
)

// Incident tracks one failing episode of a target, from open through
// remediation to escalation or close. At most one non-closed incident may
// exist per target at any time.
type Incident struct {
	ID           uuid.UUID
	TargetID     string
	Status       Status
	CauseSummary string
	OpenedAt     time.Time
	ClosedAt     time.Time // zero until closed
	Attempts     []RemediationAttempt
}

// RemediationAttempt is the append-only record of one executed remediation
// action. AttemptNumber is assigned by the repository in insertion order.
type RemediationAttempt struct {
	ID            uuid.UUID
	IncidentID    uuid.UUID
	ActionName    string
	AttemptNumber int
	Outcome       AttemptOutcome
	Detail        string
	StartedAt     time.Time
	FinishedAt    time.Time
}
