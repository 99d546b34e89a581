package cmd

import (
	"fmt"
	"sort"
)

// Registry maps middleware kinds to implementations. It does not build
// chains itself; adapters resolve descriptor specs through it.
type Registry struct {
	middleware map[string]Middleware
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{middleware: make(map[string]Middleware)}
}

// Register adds a middleware under kind, replacing any previous one.
func (r *Registry) Register(kind string, m Middleware) {
	r.middleware[kind] = m
}

// Get returns the middleware registered under kind, or nil.
func (r *Registry) Get(kind string) Middleware {
	return r.middleware[kind]
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []string {
	list := make([]string, 0, len(r.middleware))
	for k := range r.middleware {
		list = append(list, k)
	}
	sort.Strings(list)
	return list
}

// Resolve parses specs and pairs each with its middleware, in order.
// Specs naming unknown kinds are left out of units and reported in unknown.
// A middleware implementing Validator rejects bad arguments here.
func (r *Registry) Resolve(specs []string) (units []Unit, unknown []string, err error) {
	for _, s := range specs {
		sp := ParseSpec(s)
		m, ok := r.middleware[sp.Kind]
		if !ok {
			unknown = append(unknown, sp.Kind)
			continue
		}
		if v, ok := m.(Validator); ok {
			if err := v.Validate(sp.Args...); err != nil {
				return nil, nil, fmt.Errorf("middleware %q: %w", sp, err)
			}
		}
		units = append(units, Unit{Spec: sp, Middleware: m})
	}
	return units, unknown, nil
}
