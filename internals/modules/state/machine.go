package state

import "github.com/google/uuid"

type Status string

const (
	StatusHealthy    Status = "healthy"
	StatusSuspect    Status = "suspect"
	StatusFailing    Status = "failing"
	StatusRecovering Status = "recovering"
)

// Event tells the owning worker what side effect a transition requires.
type Event int

const (
	EventNone Event = iota
	EventOpenIncident       // suspect -> failing: open incident, start remediation
	EventResumeRemediation  // recovering -> failing: same incident, remediation resumes
	EventStartRecovery      // failing -> recovering: cancel queued remediation
	EventCloseIncident      // recovering -> healthy: sustained recovery, close incident
)

// Machine is the per-target debouncer. It owns the target's runtime state and
// is mutated only by that target's worker goroutine, so it carries no lock.
type Machine struct {
	targetID         string
	status           Status
	failureThreshold int
	successThreshold int

	consecutiveFailures  int
	consecutiveSuccesses int

	openIncidentID uuid.UUID // uuid.Nil when no incident is open
}

func NewMachine(targetID string, failureThreshold, successThreshold int) *Machine {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &Machine{
		targetID:         targetID,
		status:           StatusHealthy,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
	}
}

// Restore seeds a machine as already failing with an open incident, used when
// the process restarts and finds persisted open incidents.
func Restore(targetID string, failureThreshold, successThreshold int, incidentID uuid.UUID) *Machine {
	m := NewMachine(targetID, failureThreshold, successThreshold)
	m.status = StatusFailing
	m.consecutiveFailures = failureThreshold
	m.openIncidentID = incidentID
	return m
}

// Apply feeds one check result into the machine and returns the event the
// resulting transition demands. Results for one target must be applied in the
// order they were produced.
func (m *Machine) Apply(success bool) Event {
	if success {
		return m.applySuccess()
	}
	return m.applyFailure()
}

func (m *Machine) applySuccess() Event {
	m.consecutiveFailures = 0

	switch m.status {
	case StatusHealthy:
		m.consecutiveSuccesses++
		return EventNone

	case StatusSuspect:
		// a single success resets suspicion, no incident was opened
		m.status = StatusHealthy
		m.consecutiveSuccesses = 1
		return EventNone

	case StatusFailing:
		m.status = StatusRecovering
		m.consecutiveSuccesses = 1
		if m.consecutiveSuccesses >= m.successThreshold {
			m.status = StatusHealthy
			return EventCloseIncident
		}
		return EventStartRecovery

	case StatusRecovering:
		m.consecutiveSuccesses++
		if m.consecutiveSuccesses >= m.successThreshold {
			m.status = StatusHealthy
			return EventCloseIncident
		}
		return EventNone
	}

	return EventNone
}

func (m *Machine) applyFailure() Event {
	m.consecutiveSuccesses = 0

	switch m.status {
	case StatusHealthy:
		m.status = StatusSuspect
		m.consecutiveFailures = 1
		if m.consecutiveFailures >= m.failureThreshold {
			m.status = StatusFailing
			return EventOpenIncident
		}
		return EventNone

	case StatusSuspect:
		m.consecutiveFailures++
		if m.consecutiveFailures >= m.failureThreshold {
			m.status = StatusFailing
			return EventOpenIncident
		}
		return EventNone

	case StatusFailing:
		m.consecutiveFailures++
		return EventNone

	case StatusRecovering:
		// recovery progress resets, remediation picks back up
		m.status = StatusFailing
		m.consecutiveFailures = 1
		return EventResumeRemediation
	}

	return EventNone
}

func (m *Machine) TargetID() string { return m.targetID }

func (m *Machine) Status() Status { return m.status }

func (m *Machine) ConsecutiveFailures() int { return m.consecutiveFailures }

func (m *Machine) ConsecutiveSuccesses() int { return m.consecutiveSuccesses }

func (m *Machine) OpenIncidentID() uuid.UUID { return m.openIncidentID }

// SetOpenIncident records the incident bound to the current failing episode.
// Called by the worker once the repository write committed.
func (m *Machine) SetOpenIncident(id uuid.UUID) { m.openIncidentID = id }

func (m *Machine) ClearOpenIncident() { m.openIncidentID = uuid.Nil }
