package alert

import (
	"time"

	"github.com/google/uuid"
)

// EscalationEvent is the payload published to operators when an incident
// exhausts automated remediation.
type EscalationEvent struct {
	IncidentID   uuid.UUID `json:"incident_id"`
	TargetID     string    `json:"target_id"`
	CauseSummary string    `json:"cause_summary"`
	OpenedAt     time.Time `json:"opened_at"`
	Attempts     int       `json:"attempts"`
	EscalatedAt  time.Time `json:"escalated_at"`
}
