package incident

import (
	"context"
	"sync"
	"time"
	"watchtower/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier delivers an escalation to operators. Fire-and-forget from the
// manager's perspective: delivery failure is the notifier's concern.
type Notifier interface {
	Notify(inc Incident)
}

// Manager owns incident lifecycle transitions. Repository writes are retried
// with backoff and happen before the caller may treat a transition as
// committed.
type Manager struct {
	repo     Repository
	notifier Notifier
	logger   *zerolog.Logger

	// serializes escalation per process so concurrent exhaustion/timeout
	// paths notify at most once
	escalateMu sync.Mutex
}

func NewManager(repo Repository, notifier Notifier, logger *zerolog.Logger) *Manager {
	return &Manager{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Open creates a new incident for the target. Returns a Conflict error when
// an open incident already exists; the debouncer invariant makes that a
// defensive path, hit legitimately only on restart recovery.
func (m *Manager) Open(ctx context.Context, targetID string, cause string) (*Incident, error) {
	const op string = "service.incident.open"

	existing, err := m.repo.FindOpenIncident(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &apperror.Error{
			Kind:    apperror.Conflict,
			Op:      op,
			Message: "open incident already exists for target",
		}
	}

	inc := &Incident{
		ID:           uuid.New(),
		TargetID:     targetID,
		Status:       StatusOpen,
		CauseSummary: cause,
		OpenedAt:     time.Now().UTC(),
	}

	if err := m.withRetry(ctx, func() error {
		return m.repo.SaveIncident(ctx, inc)
	}); err != nil {
		return nil, err
	}

	m.logger.Warn().
		Str("target_id", targetID).
		Str("incident_id", inc.ID.String()).
		Str("cause", cause).
		Msg("incident opened")

	return inc, nil
}

// FindOpen returns the open incident for a target, nil if none. Used to
// adopt an existing incident after a Conflict or on restart.
func (m *Manager) FindOpen(ctx context.Context, targetID string) (*Incident, error) {
	return m.repo.FindOpenIncident(ctx, targetID)
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Incident, error) {
	return m.repo.GetIncident(ctx, id)
}

func (m *Manager) List(ctx context.Context, status Status, limit, offset int32) ([]Incident, error) {
	return m.repo.ListIncidents(ctx, status, limit, offset)
}

// ListOpen feeds restart recovery: every non-closed incident maps back to a
// failing target state.
func (m *Manager) ListOpen(ctx context.Context) ([]Incident, error) {
	return m.repo.ListOpenIncidents(ctx)
}

// MarkRemediating flags that the remediation engine picked the incident up.
func (m *Manager) MarkRemediating(ctx context.Context, id uuid.UUID) error {
	inc, err := m.repo.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	if inc.Status != StatusOpen {
		return nil
	}

	inc.Status = StatusRemediating
	return m.withRetry(ctx, func() error {
		return m.repo.UpdateIncident(ctx, inc)
	})
}

// RecordAttempt appends one remediation attempt to the incident's history.
func (m *Manager) RecordAttempt(ctx context.Context, attempt *RemediationAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}

	err := m.withRetry(ctx, func() error {
		return m.repo.AppendAttempt(ctx, attempt)
	})
	if err != nil {
		return err
	}

	m.logger.Info().
		Str("incident_id", attempt.IncidentID.String()).
		Str("action", attempt.ActionName).
		Int("attempt", attempt.AttemptNumber).
		Str("outcome", string(attempt.Outcome)).
		Msg("remediation attempt recorded")

	return nil
}

// Escalate hands the incident to operators. Idempotent: once the incident is
// Escalated, repeated calls are no-ops and the notifier fires at most once.
func (m *Manager) Escalate(ctx context.Context, id uuid.UUID) error {
	m.escalateMu.Lock()
	defer m.escalateMu.Unlock()

	inc, err := m.repo.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	if inc.Status == StatusEscalated || inc.Status == StatusClosed {
		return nil
	}

	inc.Status = StatusEscalated
	if err := m.withRetry(ctx, func() error {
		return m.repo.UpdateIncident(ctx, inc)
	}); err != nil {
		return err
	}

	m.logger.Warn().
		Str("incident_id", inc.ID.String()).
		Str("target_id", inc.TargetID).
		Msg("incident escalated")

	if m.notifier != nil {
		m.notifier.Notify(*inc)
	}
	return nil
}

// Close marks the incident resolved. Returns NotFound when it is already
// closed.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	const op string = "service.incident.close"

	inc, err := m.repo.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	if inc.Status == StatusClosed {
		return &apperror.Error{
			Kind:    apperror.NotFound,
			Op:      op,
			Message: "incident already closed",
		}
	}

	inc.Status = StatusClosed
	inc.ClosedAt = time.Now().UTC()
	if err := m.withRetry(ctx, func() error {
		return m.repo.UpdateIncident(ctx, inc)
	}); err != nil {
		return err
	}

	m.logger.Info().
		Str("incident_id", inc.ID.String()).
		Str("target_id", inc.TargetID).
		Msg("incident closed")

	return nil
}

// withRetry runs a repository write with a bounded linear backoff. Conflict
// and NotFound are terminal, everything else gets retried.
func (m *Manager) withRetry(ctx context.Context, fn func() error) error {
	const attempts = 3

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if apperror.IsKind(err, apperror.Conflict) || apperror.IsKind(err, apperror.NotFound) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	return err
}
