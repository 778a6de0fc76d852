package registry

import (
	"fmt"
	"sort"
)

// Creator builds a component from its options.
type Creator[C any, O any] func(opts O) (C, error)

// Registry is a keyed factory for pluggable components.
type Registry[C any, O any] struct {
	creators map[string]Creator[C, O]
}

func NewRegistry[C any, O any]() *Registry[C, O] {
	return &Registry[C, O]{
		creators: make(map[string]Creator[C, O]),
	}
}

func (r *Registry[C, O]) Register(id string, creator Creator[C, O]) {
	if _, ok := r.creators[id]; ok {
		panic("component already registered: " + id)
	}
	r.creators[id] = creator
}

func (r *Registry[C, O]) New(id string, opts O) (C, error) {
	creator, ok := r.creators[id]
	if !ok {
		var component C
		return component, fmt.Errorf("component not found: %s", id)
	}
	return creator(opts)
}

// IDs returns registered component IDs in sorted order.
func (r *Registry[C, O]) IDs() []string {
	ids := make([]string, 0, len(r.creators))
	for id := range r.creators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
