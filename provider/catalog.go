package provider

import (
	"fmt"
	"sync"

	"github.com/ryan-d-young/money/errors"
)

// BuildFunc constructs one provider. Catalog entries are build funcs, not
// built providers, so a session can rebuild fresh provider state per start.
type BuildFunc func() (*Provider, error)

// Catalog is the registration table provider packages add themselves to,
// typically from their Register function at wiring time.
type Catalog struct {
	mu       sync.RWMutex
	builders map[string]BuildFunc
	order    []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{builders: make(map[string]BuildFunc)}
}

// Add registers a provider's build func under its name.
func (c *Catalog) Add(name string, build BuildFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Catalog", "Add",
			"provider name is required")
	}
	if build == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Catalog", "Add",
			fmt.Sprintf("provider %s has nil build func", name))
	}
	if _, exists := c.builders[name]; exists {
		return errors.WrapInvalid(errors.ErrAlreadyRegistered, "Catalog", "Add",
			fmt.Sprintf("provider %s already catalogued", name))
	}
	c.builders[name] = build
	c.order = append(c.order, name)
	return nil
}

// Names returns the catalogued provider names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Has reports whether a provider is catalogued.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.builders[name]
	return ok
}

// Default is the process-wide catalog provider packages register into from
// their init or wiring code. The daemon builds its session from it.
var Default = NewCatalog()

// Register adds a provider's build func to the default catalog, panicking
// on a duplicate or invalid registration. For package-level wiring.
func Register(name string, build BuildFunc) {
	if err := Default.Add(name, build); err != nil {
		panic(err)
	}
}

// Build constructs one catalogued provider.
func (c *Catalog) Build(name string) (*Provider, error) {
	c.mu.RLock()
	build, ok := c.builders[name]
	c.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Catalog", "Build",
			fmt.Sprintf("provider %s not catalogued", name))
	}
	return build()
}
