// Package dependency manages the named external resources routers need:
// lifecycle (start/stop/restart), lookup, and serialized access to
// resources whose underlying client forbids concurrent use.
//
// Most dependencies (a pooled HTTP client, the table store) are internally
// thread-safe and marked non-exclusive; their handles are read without
// locking. A dependency marked exclusive is serialized through a per-name
// lock held from Acquire until the returned handle is released — never
// across unrelated dependencies, so one serialized client cannot starve
// the rest of the process.
package dependency

import (
	"context"
	"sync"

	"github.com/ryan-d-young/money/config"
)

// Dependency is a named, lazily-started resource with a start/stop
// lifecycle. One live instance exists per name at a time.
type Dependency interface {
	// Name is the unique key the dependency is registered and acquired by.
	Name() string
	// Exclusive reports whether access must be serialized.
	Exclusive() bool
	// Start brings the instance up. Idempotent starts are ErrAlreadyStarted.
	Start(ctx context.Context, env config.Env) error
	// Stop tears the instance down and unsets it.
	Stop(ctx context.Context, env config.Env) error
	// Instance returns the live handle, or ErrNotStarted when unset.
	Instance() (any, error)
}

// Handle is an acquired dependency instance. For exclusive dependencies the
// per-name lock is held until Release; callers must release promptly and
// never hold a handle across an entire router invocation.
type Handle struct {
	name     string
	instance any
	release  func()
	once     *sync.Once
}

// Name returns the dependency name the handle was acquired under.
func (h Handle) Name() string { return h.name }

// Instance returns the live resource handle.
func (h Handle) Instance() any { return h.instance }

// Release returns the handle, unlocking exclusive access. Safe to call
// more than once.
func (h Handle) Release() {
	if h.once != nil && h.release != nil {
		h.once.Do(h.release)
	}
}
