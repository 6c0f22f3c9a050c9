package provider

import (
	"fmt"
	"sync"

	"github.com/ryan-d-young/money/dependency"
	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/router"
	"github.com/ryan-d-young/money/tablestore"
)

// Registry indexes built providers for lookup during dispatch.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*Provider)}
}

// Register adds a built provider. Duplicate names are an error.
func (r *Registry) Register(p *Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register",
			"provider cannot be nil")
	}
	if _, exists := r.providers[p.Name()]; exists {
		return errors.WrapInvalid(errors.ErrAlreadyRegistered, "Registry", "Register",
			fmt.Sprintf("provider %s already registered", p.Name()))
	}
	r.providers[p.Name()] = p
	return nil
}

// Provider returns a registered provider by name.
func (r *Registry) Provider(name string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Registry", "Provider",
			fmt.Sprintf("provider %s not registered", name))
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Router looks up one router.
func (r *Registry) Router(provider, name string) (router.Router, error) {
	p, err := r.Provider(provider)
	if err != nil {
		return router.Router{}, err
	}
	return p.Router(name)
}

// Routers returns a provider's routers.
func (r *Registry) Routers(provider string) (map[string]router.Router, error) {
	p, err := r.Provider(provider)
	if err != nil {
		return nil, err
	}
	return p.Routers(), nil
}

// Dependencies returns a provider's declared dependencies.
func (r *Registry) Dependencies(provider string) (map[string]dependency.Dependency, error) {
	p, err := r.Provider(provider)
	if err != nil {
		return nil, err
	}
	return p.Dependencies(), nil
}

// Tables returns a provider's declared table schemas.
func (r *Registry) Tables(provider string) (map[string]tablestore.Schema, error) {
	p, err := r.Provider(provider)
	if err != nil {
		return nil, err
	}
	return p.Tables(), nil
}

// Models returns a provider's declared models.
func (r *Registry) Models(provider string) (map[string]*record.Model, error) {
	p, err := r.Provider(provider)
	if err != nil {
		return nil, err
	}
	return p.Models(), nil
}

// Metadata returns a provider's schema descriptor.
func (r *Registry) Metadata(provider string) (Metadata, error) {
	p, err := r.Provider(provider)
	if err != nil {
		return Metadata{}, err
	}
	return p.Metadata(), nil
}
