package incident

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists incidents and their remediation attempts. A write must
// be durable before it returns nil. Implementations are shared across all
// target workers and must tolerate concurrent calls.
type Repository interface {
	SaveIncident(ctx context.Context, inc *Incident) error
	UpdateIncident(ctx context.Context, inc *Incident) error
	AppendAttempt(ctx context.Context, attempt *RemediationAttempt) error
	GetIncident(ctx context.Context, id uuid.UUID) (*Incident, error)
	FindOpenIncident(ctx context.Context, targetID string) (*Incident, error)
	ListOpenIncidents(ctx context.Context) ([]Incident, error)
	ListIncidents(ctx context.Context, status Status, limit, offset int32) ([]Incident, error)
}
