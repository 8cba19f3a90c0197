package remedy

import (
	"fmt"
	"watchtower/config"
	"watchtower/internals/modules/target"
)

// Registry resolves configured action names to implementations and holds the
// per-kind default sequences. Built once at startup; unknown names are a
// configuration error and refuse startup.
type Registry struct {
	actions map[string]Action
	byKind  map[target.Kind][]Action
}

func NewRegistry(cfg *config.RemediationConfig) (*Registry, error) {
	r := &Registry{
		actions: make(map[string]Action, len(cfg.Actions)),
		byKind:  make(map[target.Kind][]Action, len(cfg.ByKind)),
	}

	for name, ac := range cfg.Actions {
		switch ac.Type {
		case "restart_service":
			r.actions[name] = NewSystemdRestartAction(name, ac.Unit)
		case "run_command":
			act, err := NewCommandAction(name, ac.Command)
			if err != nil {
				return nil, err
			}
			r.actions[name] = act
		default:
			return nil, fmt.Errorf("action %q: unknown type %q", name, ac.Type)
		}
	}

	for kind, names := range cfg.ByKind {
		seq, err := r.Resolve(names)
		if err != nil {
			return nil, fmt.Errorf("by_kind.%s: %w", kind, err)
		}
		r.byKind[target.Kind(kind)] = seq
	}

	return r, nil
}

// Resolve maps action names to implementations, failing on the first unknown
// name.
func (r *Registry) Resolve(names []string) ([]Action, error) {
	seq := make([]Action, 0, len(names))
	for _, name := range names {
		act, ok := r.actions[name]
		if !ok {
			return nil, fmt.Errorf("unknown action %q", name)
		}
		seq = append(seq, act)
	}
	return seq, nil
}

// Plan returns the action sequence for a target: its own list when set,
// otherwise the default for its kind. An empty plan is valid, the engine
// then escalates straight away.
func (r *Registry) Plan(t target.Target) ([]Action, error) {
	if len(t.Actions) > 0 {
		return r.Resolve(t.Actions)
	}
	return r.byKind[t.Kind], nil
}
