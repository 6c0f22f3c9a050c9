// Package session is the single entry point client code calls. A Session
// builds selected providers from the catalog, starts their dependencies
// through one Manager, opens the persistence layer, and dispatches calls:
// lookup, request validation, dependency injection, invocation, and the
// response stream back to the caller. The session holds no per-call mutable
// state; concurrent calls contend only through dependency locking.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ryan-d-young/money/config"
	"github.com/ryan-d-young/money/dependency"
	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/health"
	"github.com/ryan-d-young/money/metric"
	"github.com/ryan-d-young/money/provider"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/router"
	"github.com/ryan-d-young/money/tablestore"
)

// Session lifecycle states, mirrored into the session status gauge.
const (
	stateStopped = iota
	stateStarting
	stateRunning
	stateStopping
)

// Selection names which catalogued providers a session loads at start.
type Selection struct {
	all   bool
	names []string
}

// All selects every catalogued provider.
func All() Selection { return Selection{all: true} }

// None selects no providers; the session still starts the core
// dependencies.
func None() Selection { return Selection{} }

// Providers selects the named providers.
func Providers(names ...string) Selection {
	return Selection{names: append([]string(nil), names...)}
}

func (sel Selection) resolve(catalog *provider.Catalog) ([]string, error) {
	if sel.all {
		return catalog.Names(), nil
	}
	for _, name := range sel.names {
		if !catalog.Has(name) {
			return nil, errors.WrapInvalid(errors.ErrNotFound, "Session", "Start",
				fmt.Sprintf("provider %s not catalogued", name))
		}
	}
	return append([]string(nil), sel.names...), nil
}

// Session orchestrates provider loading, dependency lifecycle, and per-call
// injection.
type Session struct {
	logger     *slog.Logger
	metrics    *metric.Metrics
	metricsReg *metric.MetricsRegistry
	catalog    *provider.Catalog
	env        config.Env
	monitor    *health.Monitor

	manager  *dependency.Manager
	storeDep *dependency.Store
	httpDep  *dependency.HTTP

	mu       sync.RWMutex
	state    int
	registry *provider.Registry
	store    tablestore.Store
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics wires session activity into the framework metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Session) {
		if registry != nil {
			s.metricsReg = registry
			s.metrics = registry.CoreMetrics()
		}
	}
}

// WithCatalog sets the provider catalog the session builds from.
func WithCatalog(catalog *provider.Catalog) Option {
	return func(s *Session) {
		if catalog != nil {
			s.catalog = catalog
		}
	}
}

// WithEnv sets the environment handed to dependency start/stop.
func WithEnv(env config.Env) Option {
	return func(s *Session) { s.env = env.Clone() }
}

// WithStore replaces the core persistence dependency, letting tests run the
// session against an in-memory store.
func WithStore(store *dependency.Store) Option {
	return func(s *Session) {
		if store != nil {
			s.storeDep = store
		}
	}
}

// WithMonitor publishes dependency health into the given monitor.
func WithMonitor(monitor *health.Monitor) Option {
	return func(s *Session) { s.monitor = monitor }
}

// New creates a stopped session. Call Start to load providers and bring
// dependencies up, or use Connect to do both in one step.
func New(opts ...Option) *Session {
	s := &Session{
		logger:  slog.Default(),
		catalog: provider.NewCatalog(),
		env:     make(config.Env),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.manager = s.newManager()

	if s.storeDep == nil {
		storeOpts := []dependency.StoreOption{dependency.WithStoreLogger(s.logger)}
		if s.metricsReg != nil {
			storeOpts = append(storeOpts, dependency.WithStoreMetrics(s.metricsReg))
		}
		s.storeDep = dependency.NewStore(storeOpts...)
	}
	s.httpDep = dependency.NewHTTP()
	return s
}

// newManager builds a fresh dependency manager. Start replaces the manager
// each time so registrations reflect only the current selection.
func (s *Session) newManager() *dependency.Manager {
	opts := []dependency.ManagerOption{dependency.WithLogger(s.logger)}
	if s.metricsReg != nil {
		opts = append(opts, dependency.WithMetrics(s.metricsReg))
	}
	return dependency.NewManager(opts...)
}

// Connect creates a session and starts it with every catalogued provider.
func Connect(ctx context.Context, opts ...Option) (*Session, error) {
	s := New(opts...)
	if err := s.Start(ctx, All()); err != nil {
		return nil, err
	}
	return s, nil
}

// Start resolves the selection, builds matching providers from the catalog,
// merges and starts their dependencies plus the core set, and ensures every
// declared table exists. A provider that fails its consistency check is
// skipped with an error logged; the rest still load.
func (s *Session) Start(ctx context.Context, sel Selection) error {
	s.mu.Lock()
	if s.state != stateStopped {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Session", "Start", "session is not stopped")
	}
	s.state = stateStarting
	s.manager = s.newManager()
	s.mu.Unlock()
	s.recordState(stateStarting)

	registry, err := s.loadProviders(sel)
	if err != nil {
		s.setState(stateStopped)
		return err
	}

	if err := s.registerDependencies(registry); err != nil {
		s.setState(stateStopped)
		return err
	}

	if err := s.manager.StartAll(ctx, s.env); err != nil {
		// Dependencies that did come up are torn down so a failed start
		// leaves nothing running.
		if stopErr := s.manager.StopAll(ctx, s.env); stopErr != nil {
			s.logger.Error("teardown after failed start", "error", stopErr)
		}
		s.setState(stateStopped)
		return errors.Wrap(err, "Session", "Start", "start dependencies")
	}

	store, err := s.storeDep.TableStore()
	if err != nil {
		s.setState(stateStopped)
		return errors.Wrap(err, "Session", "Start", "open table store")
	}
	if err := s.ensureTables(ctx, registry, store); err != nil {
		if stopErr := s.manager.StopAll(ctx, s.env); stopErr != nil {
			s.logger.Error("teardown after failed start", "error", stopErr)
		}
		s.setState(stateStopped)
		return err
	}

	s.mu.Lock()
	s.registry = registry
	s.store = store
	s.state = stateRunning
	s.mu.Unlock()
	s.recordState(stateRunning)

	if s.monitor != nil {
		for _, name := range s.manager.Names() {
			s.monitor.SetHealthy(name, "started")
		}
	}
	s.logger.Info("session started", "providers", registry.Names())
	return nil
}

// Stop stops every dependency and closes the persistence layer, committing
// pending writes first when commit is true.
func (s *Session) Stop(ctx context.Context, commit bool) error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Session", "Stop", "session is not running")
	}
	s.state = stateStopping
	manager := s.manager
	s.mu.Unlock()
	s.recordState(stateStopping)

	env := s.env.Clone()
	env["commit_on_stop"] = strconv.FormatBool(commit)

	err := manager.StopAll(ctx, env)

	s.mu.Lock()
	s.registry = nil
	s.store = nil
	s.state = stateStopped
	s.mu.Unlock()
	s.recordState(stateStopped)

	if s.monitor != nil {
		for _, name := range manager.Names() {
			s.monitor.Remove(name)
		}
	}
	if err != nil {
		return errors.Wrap(err, "Session", "Stop", "stop dependencies")
	}
	s.logger.Info("session stopped", "committed", commit)
	return nil
}

// Call dispatches one router invocation: lookup, request build, dependency
// injection, invoke. The returned stream carries the router's responses;
// dispatch failures are returned instead of a stream.
func (s *Session) Call(ctx context.Context, providerName, routerName string, kwargs map[string]any) (*router.Stream, error) {
	s.mu.RLock()
	registry := s.registry
	running := s.state == stateRunning
	s.mu.RUnlock()

	if !running {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "Session", "Call", "session is not running")
	}

	r, err := registry.Router(providerName, routerName)
	if err != nil {
		s.recordCall(providerName, routerName, "not_found")
		return nil, err
	}
	info := r.Info()

	req := record.NewRequest(info.Accepts)
	if err := req.Make(kwargs); err != nil {
		s.recordCall(providerName, routerName, "invalid")
		return nil, err
	}

	deps, err := s.injectDependencies(ctx, info)
	if err != nil {
		s.recordCall(providerName, routerName, "not_started")
		return nil, err
	}

	started := time.Now()
	stream := r.Invoke(ctx, req, deps, router.WithObserver(func(record.Response) {
		if s.metrics != nil {
			s.metrics.RecordResponse(providerName, routerName)
		}
	}))

	go func() {
		<-stream.Done()
		status := "ok"
		if streamErr := stream.Err(); streamErr != nil {
			status = "error"
			s.logger.Warn("call stream ended with error",
				"provider", providerName, "router", routerName, "error", streamErr)
		}
		s.recordCall(providerName, routerName, status)
		if s.metrics != nil {
			s.metrics.RecordCallDuration(providerName, routerName, time.Since(started))
		}
	}()

	return stream, nil
}

// injectDependencies acquires every dependency the router requires and maps
// instances under the handler's parameter names. Exclusive locks are held
// only for the acquisition itself, never across the invocation.
func (s *Session) injectDependencies(ctx context.Context, info router.Info) (router.Deps, error) {
	if len(info.Requires) == 0 {
		return nil, nil
	}

	params := make([]string, 0, len(info.Requires))
	for param := range info.Requires {
		params = append(params, param)
	}
	sort.Strings(params)

	manager := s.Manager()
	deps := make(router.Deps, len(params))
	handles := make([]dependency.Handle, 0, len(params))
	for _, param := range params {
		handle, err := manager.Acquire(ctx, info.Requires[param])
		if err != nil {
			for _, h := range handles {
				h.Release()
			}
			return nil, err
		}
		handles = append(handles, handle)
		deps[param] = handle.Instance()
	}
	for _, h := range handles {
		h.Release()
	}
	return deps, nil
}

// Restart stops then starts one dependency, for live credential or
// connection rotation.
func (s *Session) Restart(ctx context.Context, name string) error {
	err := s.Manager().Restart(ctx, name, s.env)
	if s.monitor != nil {
		if err != nil {
			s.monitor.Set(name, health.FromError(name, err))
		} else {
			s.monitor.SetHealthy(name, "restarted")
		}
	}
	return err
}

// Registry returns the live provider registry, or ErrNotStarted when the
// session is not running.
func (s *Session) Registry() (*provider.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != stateRunning {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "Session", "Registry", "session is not running")
	}
	return s.registry, nil
}

// Store returns the live table store, or ErrNotStarted when the session is
// not running.
func (s *Session) Store() (tablestore.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != stateRunning {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "Session", "Store", "session is not running")
	}
	return s.store, nil
}

// RouterInfo returns the declared metadata of one loaded router. The
// compose engine uses it to find a router's stores target.
func (s *Session) RouterInfo(providerName, routerName string) (router.Info, error) {
	registry, err := s.Registry()
	if err != nil {
		return router.Info{}, err
	}
	r, err := registry.Router(providerName, routerName)
	if err != nil {
		return router.Info{}, err
	}
	return r.Info(), nil
}

// Manager returns the session's current dependency manager. Start replaces
// it, so callers should not hold the value across a restart.
func (s *Session) Manager() *dependency.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager
}

// Env returns a copy of the session's environment.
func (s *Session) Env() config.Env { return s.env.Clone() }

// Running reports whether the session is dispatching calls.
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == stateRunning
}

// loadProviders builds the selected providers into a fresh registry. An
// inconsistent provider is skipped; any other build failure aborts the
// start.
func (s *Session) loadProviders(sel Selection) (*provider.Registry, error) {
	names, err := sel.resolve(s.catalog)
	if err != nil {
		return nil, err
	}

	registry := provider.NewRegistry()
	for _, name := range names {
		p, err := s.catalog.Build(name)
		if err != nil {
			if errors.Is(err, errors.ErrInconsistentProvider) {
				s.logger.Error("skipping inconsistent provider", "provider", name, "error", err)
				if s.metrics != nil {
					s.metrics.RecordError("session", "invalid")
				}
				continue
			}
			return nil, errors.Wrap(err, "Session", "Start", fmt.Sprintf("build provider %s", name))
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// registerDependencies merges the core dependency set with every loaded
// provider's declarations. Shared names resolve to one live instance.
func (s *Session) registerDependencies(registry *provider.Registry) error {
	if err := s.manager.RegisterShared(s.httpDep); err != nil {
		return err
	}
	if err := s.manager.RegisterShared(s.storeDep); err != nil {
		return err
	}

	registered := make(map[string]struct{})
	for _, name := range s.manager.Names() {
		registered[name] = struct{}{}
	}

	for _, providerName := range registry.Names() {
		deps, err := registry.Dependencies(providerName)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := s.manager.RegisterShared(dep); err != nil {
				return errors.Wrap(err, "Session", "Start",
					fmt.Sprintf("register dependency %s of provider %s", dep.Name(), providerName))
			}
			registered[dep.Name()] = struct{}{}
		}

		p, err := registry.Provider(providerName)
		if err != nil {
			return err
		}
		for _, required := range p.RequiredDependencies() {
			if _, ok := registered[required]; !ok {
				s.logger.Warn("router requires undeclared dependency",
					"provider", providerName, "dependency", required)
			}
		}
	}
	return nil
}

// ensureTables creates every table declared by a loaded provider, both
// provider-level tables and router stores targets.
func (s *Session) ensureTables(ctx context.Context, registry *provider.Registry, store tablestore.Store) error {
	seen := make(map[string]struct{})
	for _, providerName := range registry.Names() {
		tables, err := registry.Tables(providerName)
		if err != nil {
			return err
		}
		for _, schema := range tables {
			if err := s.ensureTable(ctx, store, schema, seen); err != nil {
				return err
			}
		}

		routers, err := registry.Routers(providerName)
		if err != nil {
			return err
		}
		for _, r := range routers {
			if stores := r.Info().Stores; stores != nil {
				if err := s.ensureTable(ctx, store, *stores, seen); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Session) ensureTable(ctx context.Context, store tablestore.Store, schema tablestore.Schema, seen map[string]struct{}) error {
	if _, done := seen[schema.Qualified()]; done {
		return nil
	}
	seen[schema.Qualified()] = struct{}{}
	if err := store.EnsureTable(ctx, schema); err != nil {
		return errors.Wrap(err, "Session", "Start",
			fmt.Sprintf("ensure table %s", schema.Qualified()))
	}
	return nil
}

func (s *Session) setState(state int) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.recordState(state)
}

func (s *Session) recordState(state int) {
	if s.metrics != nil {
		s.metrics.RecordSessionStatus(state)
	}
}

func (s *Session) recordCall(provider, router, status string) {
	if s.metrics != nil {
		s.metrics.RecordCall(provider, router, status)
	}
}
