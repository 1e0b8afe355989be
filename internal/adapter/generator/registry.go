// Package generator provides content generators keyed by model id.
package generator

import "github.com/cwygoda/bulkseo/internal/domain"

// Registry holds registered content generators.
type Registry struct {
	generators []domain.ContentGenerator
}

// NewRegistry creates a new generator registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a generator. Earlier registrations win on overlapping models.
func (r *Registry) Register(g domain.ContentGenerator) {
	r.generators = append(r.generators, g)
}

// Match returns the first generator that serves the model, or nil.
func (r *Registry) Match(model string) domain.ContentGenerator {
	for _, g := range r.generators {
		if g.Match(model) {
			return g
		}
	}
	return nil
}
