package probe

import (
	"fmt"
	"sync"
)

// Registry is an ordered, id-unique collection of probes. It is assembled
// once at startup and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	probes []Probe
	index  map[string]int
}

// NewRegistry returns a registry holding probes in the given order.
func NewRegistry(probes ...Probe) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(probes))}
	for _, p := range probes {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends p. It fails with ErrDuplicateProbe when the id is taken
// and ErrInvalidProbe for a nil probe or an empty id.
func (r *Registry) Register(p Probe) error {
	if p == nil {
		return fmt.Errorf("%w: nil probe", ErrInvalidProbe)
	}
	d := p.Descriptor()
	if d.ID == "" {
		return fmt.Errorf("%w: empty id (display name %q)", ErrInvalidProbe, d.DisplayName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if _, exists := r.index[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProbe, d.ID)
	}
	r.index[d.ID] = len(r.probes)
	r.probes = append(r.probes, p)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(p Probe) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Len returns the number of registered probes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.probes)
}

// Probes returns a snapshot of the probes in declaration order.
func (r *Registry) Probes() []Probe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Probe, len(r.probes))
	copy(out, r.probes)
	return out
}

// Descriptors returns the probe descriptors in declaration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.probes))
	for i, p := range r.probes {
		out[i] = p.Descriptor()
	}
	return out
}

// Lookup returns the probe registered under id.
func (r *Registry) Lookup(id string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.probes[i], true
}

// Select returns a new registry holding only the given ids, kept in this
// registry's declaration order. An empty ids list selects everything.
func (r *Registry) Select(ids ...string) (*Registry, error) {
	if len(ids) == 0 {
		return NewRegistry(r.Probes()...)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProbe, id)
		}
		want[id] = true
	}
	var picked []Probe
	for _, p := range r.Probes() {
		if want[p.Descriptor().ID] {
			picked = append(picked, p)
		}
	}
	return NewRegistry(picked...)
}
