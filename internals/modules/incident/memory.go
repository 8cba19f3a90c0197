package incident

import (
	"context"
	"sort"
	"sync"
	"watchtower/pkg/apperror"

	"github.com/google/uuid"
)

// MemoryRepository keeps incidents in process memory. Used when no database
// is configured (development) and by tests. Not durable.
type MemoryRepository struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]*Incident
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		incidents: make(map[uuid.UUID]*Incident),
	}
}

func (r *MemoryRepository) SaveIncident(ctx context.Context, inc *Incident) error {
	const op string = "repo.incident.save"

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.incidents {
		if existing.TargetID == inc.TargetID && existing.Status != StatusClosed {
			return &apperror.Error{
				Kind:    apperror.Conflict,
				Op:      op,
				Message: "open incident already exists for target",
			}
		}
	}

	cp := *inc
	r.incidents[inc.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdateIncident(ctx context.Context, inc *Incident) error {
	const op string = "repo.incident.update"

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.incidents[inc.ID]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "incident not found"}
	}
	existing.Status = inc.Status
	existing.ClosedAt = inc.ClosedAt
	return nil
}

func (r *MemoryRepository) AppendAttempt(ctx context.Context, attempt *RemediationAttempt) error {
	const op string = "repo.incident.append_attempt"

	r.mu.Lock()
	defer r.mu.Unlock()

	inc, ok := r.incidents[attempt.IncidentID]
	if !ok {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "incident not found"}
	}
	attempt.AttemptNumber = len(inc.Attempts) + 1
	inc.Attempts = append(inc.Attempts, *attempt)
	return nil
}

func (r *MemoryRepository) GetIncident(ctx context.Context, id uuid.UUID) (*Incident, error) {
	const op string = "repo.incident.get"

	r.mu.RLock()
	defer r.mu.RUnlock()

	inc, ok := r.incidents[id]
	if !ok {
		return nil, &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "incident not found"}
	}
	cp := r.copyOf(inc)
	return &cp, nil
}

func (r *MemoryRepository) FindOpenIncident(ctx context.Context, targetID string) (*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inc := range r.incidents {
		if inc.TargetID == targetID && inc.Status != StatusClosed {
			cp := r.copyOf(inc)
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListOpenIncidents(ctx context.Context) ([]Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Incident
	for _, inc := range r.incidents {
		if inc.Status != StatusClosed {
			out = append(out, r.copyOf(inc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (r *MemoryRepository) ListIncidents(ctx context.Context, status Status, limit, offset int32) ([]Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Incident
	for _, inc := range r.incidents {
		if status == "" || inc.Status == status {
			all = append(all, r.copyOf(inc))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })

	if int(offset) >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && int(limit) < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) copyOf(inc *Incident) Incident {
	cp := *inc
	cp.Attempts = append([]RemediationAttempt(nil), inc.Attempts...)
	return cp
}
