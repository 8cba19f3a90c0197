package target

import (
	"fmt"
	"watchtower/config"
)

// Registry is the owned collection of configured targets, built once at
// startup. Reads only after construction, so no locking.
type Registry struct {
	byID  map[string]Target
	order []string
}

func NewRegistry(cfgs []config.TargetConfig) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]Target, len(cfgs)),
		order: make([]string, 0, len(cfgs)),
	}

	for _, tc := range cfgs {
		kind := Kind(tc.Kind)
		switch kind {
		case KindHost, KindService, KindPort:
		default:
			return nil, fmt.Errorf("target %q: unknown kind %q", tc.ID, tc.Kind)
		}

		t := Target{
			ID:               tc.ID,
			Kind:             kind,
			Address:          tc.Address,
			CheckInterval:    tc.CheckInterval,
			FailureThreshold: tc.FailureThreshold,
			SuccessThreshold: tc.SuccessThreshold,
			ExpectedStatusLo: tc.ExpectedStatusLo,
			ExpectedStatusHi: tc.ExpectedStatusHi,
			Actions:          tc.Actions,
		}
		r.byID[t.ID] = t
		r.order = append(r.order, t.ID)
	}

	return r, nil
}

func (r *Registry) Get(id string) (Target, bool) {
	t, ok := r.byID[id]
	return t, ok
}

func (r *Registry) All() []Target {
	out := make([]Target, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.byID)
}
