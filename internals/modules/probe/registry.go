package probe

import (
	"fmt"
	"net/http"
	"watchtower/internals/modules/target"
)

// Registry maps target kinds to probe implementations. Lookup of an
// unregistered kind is a configuration error and fails fast.
type Registry struct {
	byKind map[target.Kind]Probe
}

func NewRegistry(httpClient *http.Client) *Registry {
	return &Registry{
		byKind: map[target.Kind]Probe{
			target.KindHost:    NewPingProbe(),
			target.KindPort:    NewTCPProbe(),
			target.KindService: NewHTTPProbe(httpClient),
		},
	}
}

func (r *Registry) ForKind(kind target.Kind) (Probe, error) {
	p, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no probe registered for kind %q", kind)
	}
	return p, nil
}
