package wallet

import "sync"

// Registry holds the available connection providers. Providers may register
// asynchronously after startup, so an empty list is a transient condition the
// retry policy polls through.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a provider. Duplicate IDs are ignored.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.providers {
		if existing.ID() == p.ID() {
			return
		}
	}
	r.providers = append(r.providers, p)
}

// List returns the providers in registration order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}
