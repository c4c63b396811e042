package deploy

import (
	"sort"

	"github.com/ralt/clusterdeploy/internal/models"
)

// Registry maps package identifiers to packages. It is filled once at
// startup and only read afterwards.
type Registry struct {
	packages map[string]*Package
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{packages: make(map[string]*Package)}
}

// Register adds p, failing if its identifier is already taken
func (r *Registry) Register(p *Package) error {
	if _, ok := r.packages[p.ID]; ok {
		return models.NewError(models.ErrDuplicateIdentifier, p.ID, "package %q is already registered", p.ID)
	}
	r.packages[p.ID] = p
	return nil
}

// Get returns the package registered under id
func (r *Registry) Get(id string) (*Package, error) {
	p, ok := r.packages[id]
	if !ok {
		return nil, models.NewError(models.ErrNotFound, id, "package %q has not been registered", id)
	}
	return p, nil
}

// List returns every package ordered by identifier
func (r *Registry) List() []*Package {
	out := make([]*Package, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
