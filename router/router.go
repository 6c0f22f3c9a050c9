// Package router defines the declared, metadata-carrying operations a
// provider exposes. A Router is an explicit value built with Define: a
// stream-producing handler plus the declared facts about it (what argument
// model it accepts, what model it returns, what table it stores into, which
// dependencies it requires, and its provider-side rate limit). Invocation
// is a pass-through whose only side effect is bookkeeping: the request is
// recorded into a bounded call history before the handler runs.
package router

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/pkg/buffer"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/tablestore"
)

// defaultHistoryCapacity bounds the per-router call history ring.
const defaultHistoryCapacity = 128

// Deps maps a handler's declared parameter names to acquired dependency
// instances.
type Deps map[string]any

// Yield emits one response into the invocation's stream. It returns an
// error when the stream's consumer is gone; handlers should stop producing
// when that happens.
type Yield func(record.Response) error

// Handler is the operation a router wraps: a stream producer yielding
// normalized responses for one request.
type Handler func(ctx context.Context, req *record.Request, deps Deps, yield Yield) error

// RateLimit describes a provider-side rate limit. It is descriptive
// metadata for callers scheduling their own throttling; the framework never
// enforces it.
type RateLimit struct {
	Limit rate.Limit
	Burst int
}

// Per describes a limit of n calls per period.
func Per(n int, period time.Duration) RateLimit {
	return RateLimit{Limit: rate.Every(period / time.Duration(n)), Burst: n}
}

// Info is the declared metadata of a router. Nil model/schema/limit fields
// mean "none declared".
type Info struct {
	Provider  string
	Name      string
	Accepts   *record.Model
	Returns   *record.Model
	Stores    *tablestore.Schema
	Requires  map[string]string // paramName -> dependency name
	RateLimit *RateLimit
}

// HistoryEntry is one recorded invocation.
type HistoryEntry struct {
	At      time.Time
	Request *record.Request
}

// Metadata is the router's runtime bookkeeping: a bounded ring of recent
// invocations.
type Metadata struct {
	history *buffer.Ring[HistoryEntry]
}

// History returns the recorded invocations, oldest first.
func (m *Metadata) History() []HistoryEntry {
	return m.history.Snapshot()
}

// Calls returns the lifetime invocation count, including entries the ring
// has dropped.
func (m *Metadata) Calls() uint64 {
	return m.history.Written()
}

// Router is a declared operation. Routers are immutable after Define except
// for their call history.
type Router struct {
	handler  Handler
	info     Info
	metadata *Metadata
}

// Option declares one fact about a router being defined.
type Option func(*Router)

// Accepts declares the argument model.
func Accepts(m *record.Model) Option {
	return func(r *Router) { r.info.Accepts = m }
}

// Returns declares the output model.
func Returns(m *record.Model) Option {
	return func(r *Router) { r.info.Returns = m }
}

// Stores declares the table the router's output persists into.
func Stores(schema tablestore.Schema) Option {
	return func(r *Router) { r.info.Stores = &schema }
}

// Requires declares a dependency injected under a parameter name.
func Requires(param, dependency string) Option {
	return func(r *Router) {
		if r.info.Requires == nil {
			r.info.Requires = make(map[string]string)
		}
		r.info.Requires[param] = dependency
	}
}

// Limit declares the provider-side rate limit.
func Limit(rl RateLimit) Option {
	return func(r *Router) { r.info.RateLimit = &rl }
}

// HistoryCapacity overrides the call-history ring size.
func HistoryCapacity(n int) Option {
	return func(r *Router) { r.metadata.history = buffer.NewRing[HistoryEntry](n) }
}

// Define builds a router from a handler and its declared facts.
func Define(name string, handler Handler, opts ...Option) (Router, error) {
	if name == "" {
		return Router{}, errors.WrapFatal(errors.ErrInvalidConfig, "router", "Define",
			"router name is required")
	}
	if handler == nil {
		return Router{}, errors.WrapFatal(errors.ErrInvalidConfig, "router", "Define",
			"router "+name+" has no handler")
	}

	r := Router{
		handler: handler,
		info:    Info{Name: name},
		metadata: &Metadata{
			history: buffer.NewRing[HistoryEntry](defaultHistoryCapacity),
		},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r, nil
}

// MustDefine is Define that panics on error, for package-level router
// declarations in provider packages.
func MustDefine(name string, handler Handler, opts ...Option) Router {
	r, err := Define(name, handler, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Info returns the declared metadata.
func (r Router) Info() Info { return r.info }

// Metadata returns the runtime bookkeeping.
func (r Router) Metadata() *Metadata { return r.metadata }

// IsZero reports whether the router is unset.
func (r Router) IsZero() bool { return r.handler == nil }

// WithProvider returns a copy of the router stamped with its provider name.
// Called during provider build; the copy shares the live call history.
func (r Router) WithProvider(provider string) Router {
	r.info.Provider = provider
	return r
}

// InvokeOption adjusts one invocation.
type InvokeOption func(*invokeConfig)

type invokeConfig struct {
	observer func(record.Response)
}

// WithObserver registers a callback invoked for every response the handler
// successfully yields. The session uses it for per-call accounting; the
// callback runs on the handler's goroutine and must not block.
func WithObserver(fn func(record.Response)) InvokeOption {
	return func(c *invokeConfig) { c.observer = fn }
}

// Invoke records the request into call history and runs the handler,
// pumping yielded responses into the returned stream. The handler runs in
// its own goroutine; cancelling ctx or closing the stream stops it.
func (r Router) Invoke(ctx context.Context, req *record.Request, deps Deps, opts ...InvokeOption) *Stream {
	var cfg invokeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r.metadata.history.Write(HistoryEntry{At: time.Now().UTC(), Request: req})

	ctx, cancel := context.WithCancel(ctx)
	s := newStream(cancel)

	yield := s.yieldFunc(ctx)
	if cfg.observer != nil {
		inner := yield
		yield = func(resp record.Response) error {
			if err := inner(resp); err != nil {
				return err
			}
			cfg.observer(resp)
			return nil
		}
	}

	go func() {
		err := r.handler(ctx, req, deps, yield)
		s.finish(err)
	}()
	return s
}
