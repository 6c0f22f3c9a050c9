// Package testutil provides shared fixtures for framework tests: an
// in-memory store dependency, a minimal echo provider, and an instrumented
// exclusive dependency for lock-contention tests.
package testutil

import (
	"context"
	"sync/atomic"

	"github.com/ryan-d-young/money/config"
	"github.com/ryan-d-young/money/dependency"
	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/provider"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/router"
	"github.com/ryan-d-young/money/tablestore"
)

// EchoModel validates the echo router's single string argument.
var EchoModel = record.MustModel("echo", "args", []byte(`{
	"type": "object",
	"properties": {"value": {"type": "string"}},
	"required": ["value"],
	"additionalProperties": false
}`))

// MemoryStore builds a store dependency backed by an in-memory table store,
// returning both so tests can inspect persisted rows.
func MemoryStore() (*dependency.Store, *tablestore.Memory) {
	mem := tablestore.NewMemory()
	dep := dependency.NewStore(dependency.WithOpener(
		func(_ context.Context, _ config.Env) (tablestore.Store, func(context.Context) error, error) {
			return mem, nil, nil
		}))
	return dep, mem
}

// EchoHandler yields one response carrying the request's arguments.
func EchoHandler(_ context.Context, req *record.Request, _ router.Deps, yield router.Yield) error {
	data, err := req.Data()
	if err != nil {
		return err
	}
	return yield(record.NewResponse(req, record.NewRecord(data)))
}

// EchoCatalog catalogues one provider, "echo", with a single validated
// router "say".
func EchoCatalog() *provider.Catalog {
	c := provider.NewCatalog()
	if err := c.Add("echo", func() (*provider.Provider, error) {
		return provider.NewBuilder("echo").
			AddRouter(router.MustDefine("say", EchoHandler, router.Accepts(EchoModel))).
			AddModel(EchoModel).
			Build(nil)
	}); err != nil {
		panic(err)
	}
	return c
}

// PagedHandler builds a handler serving a fixed dataset of total items in
// pages of pageSize. The page is selected by an integer "page" kwarg
// starting at 1; each item carries its index under "n".
func PagedHandler(total, pageSize int) router.Handler {
	return func(_ context.Context, req *record.Request, _ router.Deps, yield router.Yield) error {
		data, err := req.Data()
		if err != nil {
			return err
		}
		page := 1
		if v, ok := data["page"].(int); ok {
			page = v
		}

		start := (page - 1) * pageSize
		for i := start; i < start+pageSize && i < total; i++ {
			if err := yield(record.NewResponse(req, record.NewRecord(map[string]any{"n": i}))); err != nil {
				return err
			}
		}
		return nil
	}
}

// ExclusiveProbe is an exclusive dependency instrumented to detect
// overlapping critical sections: InCritical counts holders between Acquire
// and Release, MaxSeen records the highest concurrent count observed.
type ExclusiveProbe struct {
	name       string
	started    atomic.Bool
	InCritical atomic.Int32
	MaxSeen    atomic.Int32
}

// NewExclusiveProbe creates a probe registered under the given name.
func NewExclusiveProbe(name string) *ExclusiveProbe {
	return &ExclusiveProbe{name: name}
}

// Name implements dependency.Dependency.
func (p *ExclusiveProbe) Name() string { return p.name }

// Exclusive implements dependency.Dependency.
func (p *ExclusiveProbe) Exclusive() bool { return true }

// Start implements dependency.Dependency.
func (p *ExclusiveProbe) Start(_ context.Context, _ config.Env) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, p.name, "Start", "probe already started")
	}
	return nil
}

// Stop implements dependency.Dependency.
func (p *ExclusiveProbe) Stop(_ context.Context, _ config.Env) error {
	p.started.Store(false)
	return nil
}

// Instance returns the probe itself as the live handle.
func (p *ExclusiveProbe) Instance() (any, error) {
	if !p.started.Load() {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, p.name, "Instance", "probe not started")
	}
	return p, nil
}

// Enter marks the critical section occupied, recording the concurrent high
// water mark. Call from inside an acquired handle; pair with Exit.
func (p *ExclusiveProbe) Enter() {
	n := p.InCritical.Add(1)
	for {
		seen := p.MaxSeen.Load()
		if n <= seen || p.MaxSeen.CompareAndSwap(seen, n) {
			return
		}
	}
}

// Exit leaves the critical section.
func (p *ExclusiveProbe) Exit() {
	p.InCritical.Add(-1)
}
