// Package provider turns registration into discovery: each external data
// source ships a package that builds a Provider — its routers, declared
// dependencies, table schemas, and data models — and adds one Catalog entry.
// The session builds selected providers from the catalog at start and
// indexes them in a Registry. Dropping in a new provider is one catalog.Add
// call; there is no directory scanning.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/ryan-d-young/money/dependency"
	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/router"
	"github.com/ryan-d-young/money/tablestore"
)

// Provider is one external data source's contribution: routers keyed by
// name, the dependencies those routers need, and the tables and models they
// declare. Immutable after Build except for router call history.
type Provider struct {
	name         string
	routers      map[string]router.Router
	dependencies map[string]dependency.Dependency
	tables       map[string]tablestore.Schema
	models       map[string]*record.Model
}

// Name returns the provider's canonical name.
func (p *Provider) Name() string { return p.name }

// Router returns a router by name.
func (p *Provider) Router(name string) (router.Router, error) {
	r, ok := p.routers[name]
	if !ok {
		return router.Router{}, errors.WrapInvalid(errors.ErrNotFound, "Provider", "Router",
			fmt.Sprintf("router %s/%s", p.name, name))
	}
	return r, nil
}

// Routers returns the provider's routers. The map is a copy.
func (p *Provider) Routers() map[string]router.Router {
	out := make(map[string]router.Router, len(p.routers))
	for name, r := range p.routers {
		out[name] = r
	}
	return out
}

// Dependencies returns the provider's declared dependencies. The map is a
// copy.
func (p *Provider) Dependencies() map[string]dependency.Dependency {
	out := make(map[string]dependency.Dependency, len(p.dependencies))
	for name, d := range p.dependencies {
		out[name] = d
	}
	return out
}

// Tables returns the provider's declared table schemas. The map is a copy.
func (p *Provider) Tables() map[string]tablestore.Schema {
	out := make(map[string]tablestore.Schema, len(p.tables))
	for name, s := range p.tables {
		out[name] = s
	}
	return out
}

// Models returns the provider's declared models. The map is a copy.
func (p *Provider) Models() map[string]*record.Model {
	out := make(map[string]*record.Model, len(p.models))
	for name, m := range p.models {
		out[name] = m
	}
	return out
}

// RequiredDependencies returns the union of every router's required
// dependency names, the set the session must have live before any router
// of this provider can run.
func (p *Provider) RequiredDependencies() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, r := range p.routers {
		for _, dep := range r.Info().Requires {
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				names = append(names, dep)
			}
		}
	}
	return names
}

// RouterDescriptor is the schema descriptor for one router.
type RouterDescriptor struct {
	Name      string            `json:"name"`
	Accepts   string            `json:"accepts,omitempty"`
	Returns   string            `json:"returns,omitempty"`
	Stores    string            `json:"stores,omitempty"`
	Requires  map[string]string `json:"requires,omitempty"`
	RateLimit string            `json:"rate_limit,omitempty"`
}

// Metadata is the provider's schema descriptor surfaced through the
// registry's metadata lookup.
type Metadata struct {
	Name    string             `json:"name"`
	Routers []RouterDescriptor `json:"routers"`
	Tables  []string           `json:"tables"`
	Models  []string           `json:"models"`
}

// Metadata builds the provider's schema descriptor.
func (p *Provider) Metadata() Metadata {
	md := Metadata{Name: p.name}
	for _, r := range p.routers {
		info := r.Info()
		desc := RouterDescriptor{Name: info.Name, Requires: info.Requires}
		if info.Accepts != nil {
			desc.Accepts = info.Accepts.Name()
		}
		if info.Returns != nil {
			desc.Returns = info.Returns.Name()
		}
		if info.Stores != nil {
			desc.Stores = info.Stores.Qualified()
		}
		if info.RateLimit != nil {
			desc.RateLimit = fmt.Sprintf("%g/s burst %d", float64(info.RateLimit.Limit), info.RateLimit.Burst)
		}
		md.Routers = append(md.Routers, desc)
	}
	for name := range p.tables {
		md.Tables = append(md.Tables, name)
	}
	for name := range p.models {
		md.Models = append(md.Models, name)
	}
	return md
}

// Builder assembles a Provider declaratively.
type Builder struct {
	name    string
	routers []router.Router
	deps    []dependency.Dependency
	tables  []tablestore.Schema
	models  []*record.Model
}

// NewBuilder starts a provider definition.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// AddRouter adds a router.
func (b *Builder) AddRouter(r router.Router) *Builder {
	b.routers = append(b.routers, r)
	return b
}

// AddDependency declares a dependency the provider's routers use.
func (b *Builder) AddDependency(d dependency.Dependency) *Builder {
	b.deps = append(b.deps, d)
	return b
}

// AddTable declares a table schema.
func (b *Builder) AddTable(s tablestore.Schema) *Builder {
	b.tables = append(b.tables, s)
	return b
}

// AddModel declares a data model.
func (b *Builder) AddModel(m *record.Model) *Builder {
	b.models = append(b.models, m)
	return b
}

// Build assembles and verifies the provider. Routers, tables, and models
// that carry a different provider name than the one being built are a
// configuration error (ErrInconsistentProvider). A provider with zero
// routers is legal but logged.
func (b *Builder) Build(logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if b.name == "" {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "Builder", "Build",
			"provider name is required")
	}

	p := &Provider{
		name:         b.name,
		routers:      make(map[string]router.Router, len(b.routers)),
		dependencies: make(map[string]dependency.Dependency, len(b.deps)),
		tables:       make(map[string]tablestore.Schema, len(b.tables)),
		models:       make(map[string]*record.Model, len(b.models)),
	}

	for _, r := range b.routers {
		info := r.Info()
		if info.Provider != "" && info.Provider != b.name {
			return nil, errors.WrapInvalid(errors.ErrInconsistentProvider, "Builder", "Build",
				fmt.Sprintf("router %s claims provider %s, building %s", info.Name, info.Provider, b.name))
		}
		if info.Stores != nil && info.Stores.Provider() != b.name {
			return nil, errors.WrapInvalid(errors.ErrInconsistentProvider, "Builder", "Build",
				fmt.Sprintf("router %s stores into table of provider %s, building %s",
					info.Name, info.Stores.Provider(), b.name))
		}
		if _, dup := p.routers[info.Name]; dup {
			return nil, errors.WrapInvalid(errors.ErrAlreadyRegistered, "Builder", "Build",
				fmt.Sprintf("router %s declared twice", info.Name))
		}
		p.routers[info.Name] = r.WithProvider(b.name)
	}

	for _, s := range b.tables {
		if s.Provider() != b.name {
			return nil, errors.WrapInvalid(errors.ErrInconsistentProvider, "Builder", "Build",
				fmt.Sprintf("table %s claims provider %s, building %s", s.Name(), s.Provider(), b.name))
		}
		if _, dup := p.tables[s.Name()]; dup {
			return nil, errors.WrapInvalid(errors.ErrAlreadyRegistered, "Builder", "Build",
				fmt.Sprintf("table %s declared twice", s.Name()))
		}
		p.tables[s.Name()] = s
	}

	for _, m := range b.models {
		if m.Provider() != b.name {
			return nil, errors.WrapInvalid(errors.ErrInconsistentProvider, "Builder", "Build",
				fmt.Sprintf("model %s claims provider %s, building %s", m.Name(), m.Provider(), b.name))
		}
		if _, dup := p.models[m.Name()]; dup {
			return nil, errors.WrapInvalid(errors.ErrAlreadyRegistered, "Builder", "Build",
				fmt.Sprintf("model %s declared twice", m.Name()))
		}
		p.models[m.Name()] = m
	}

	for _, d := range b.deps {
		if _, dup := p.dependencies[d.Name()]; dup {
			return nil, errors.WrapInvalid(errors.ErrAlreadyRegistered, "Builder", "Build",
				fmt.Sprintf("dependency %s declared twice", d.Name()))
		}
		p.dependencies[d.Name()] = d
	}

	if len(p.routers) == 0 {
		logger.Warn("provider has no routers", "provider", b.name)
	}
	return p, nil
}
