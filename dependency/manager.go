package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ryan-d-young/money/config"
	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/metric"
)

// Manager owns a set of dependencies, starts and stops them as a unit, and
// serializes access to exclusive ones through per-name locks.
type Manager struct {
	logger  *slog.Logger
	metrics *metric.Metrics

	mu    sync.RWMutex
	deps  map[string]Dependency
	locks map[string]chan struct{} // cap-1 semaphores, ctx-aware
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics wires dependency lifecycle events into the framework metrics.
func WithMetrics(registry *metric.MetricsRegistry) ManagerOption {
	return func(m *Manager) {
		if registry != nil {
			m.metrics = registry.CoreMetrics()
		}
	}
}

// NewManager creates an empty manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger: slog.Default(),
		deps:   make(map[string]Dependency),
		locks:  make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a dependency. Registering a second dependency under the
// same name is ErrAlreadyRegistered; registering the same name twice from
// two providers that share a dependency should go through RegisterShared.
func (m *Manager) Register(dep Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := dep.Name()
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Manager", "Register",
			"dependency has empty name")
	}
	if _, exists := m.deps[name]; exists {
		return errors.WrapInvalid(errors.ErrAlreadyRegistered, "Manager", "Register",
			fmt.Sprintf("dependency %s already registered", name))
	}
	m.deps[name] = dep
	m.locks[name] = make(chan struct{}, 1)
	return nil
}

// RegisterShared adds a dependency, treating an existing registration under
// the same name as success. Providers declaring the same dependency share
// the one live instance.
func (m *Manager) RegisterShared(dep Dependency) error {
	err := m.Register(dep)
	if errors.Is(err, errors.ErrAlreadyRegistered) {
		return nil
	}
	return err
}

// Get returns a registered dependency by name.
func (m *Manager) Get(name string) (Dependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dep, ok := m.deps[name]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Manager", "Get",
			fmt.Sprintf("dependency %s not registered", name))
	}
	return dep, nil
}

// Names returns the registered dependency names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.deps))
	for name := range m.deps {
		names = append(names, name)
	}
	return names
}

// snapshot copies the registry for lock-free iteration.
func (m *Manager) snapshot() map[string]Dependency {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Dependency, len(m.deps))
	for name, dep := range m.deps {
		out[name] = dep
	}
	return out
}

// StartAll starts every registered dependency in parallel. The first
// failure aborts the group and is returned; dependencies already started
// stay up so StopAll can tear them down.
func (m *Manager) StartAll(ctx context.Context, env config.Env) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, dep := range m.snapshot() {
		g.Go(func() error {
			if err := m.startOne(gctx, name, dep, env); err != nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops every registered dependency in parallel, independent of
// start order. All dependencies are attempted; the first error is returned.
func (m *Manager) StopAll(ctx context.Context, env config.Env) error {
	var g errgroup.Group
	for name, dep := range m.snapshot() {
		g.Go(func() error {
			return m.stopOne(ctx, name, dep, env)
		})
	}
	return g.Wait()
}

func (m *Manager) startOne(ctx context.Context, name string, dep Dependency, env config.Env) error {
	release, err := m.lock(ctx, name)
	if err != nil {
		return err
	}
	defer release()

	if err := dep.Start(ctx, env); err != nil {
		m.logger.Error("dependency start failed", "dependency", name, "error", err)
		return err
	}
	m.logger.Info("dependency started", "dependency", name)
	if m.metrics != nil {
		m.metrics.RecordDependencyStatus(name, true)
	}
	return nil
}

func (m *Manager) stopOne(ctx context.Context, name string, dep Dependency, env config.Env) error {
	release, err := m.lock(ctx, name)
	if err != nil {
		return err
	}
	defer release()

	if err := dep.Stop(ctx, env); err != nil {
		m.logger.Error("dependency stop failed", "dependency", name, "error", err)
		return err
	}
	m.logger.Info("dependency stopped", "dependency", name)
	if m.metrics != nil {
		m.metrics.RecordDependencyStatus(name, false)
	}
	return nil
}

// Acquire returns a handle on a dependency's live instance. Exclusive
// dependencies hold their per-name lock until the handle is released;
// non-exclusive reads take no lock. An unset instance is ErrNotStarted.
func (m *Manager) Acquire(ctx context.Context, name string) (Handle, error) {
	dep, err := m.Get(name)
	if err != nil {
		return Handle{}, err
	}

	if !dep.Exclusive() {
		instance, err := dep.Instance()
		if err != nil {
			return Handle{}, err
		}
		return Handle{name: name, instance: instance, once: &sync.Once{}}, nil
	}

	release, err := m.lock(ctx, name)
	if err != nil {
		return Handle{}, err
	}
	instance, err := dep.Instance()
	if err != nil {
		release()
		return Handle{}, err
	}
	return Handle{name: name, instance: instance, release: release, once: &sync.Once{}}, nil
}

// Restart stops then starts one dependency under its per-name lock,
// allowing live credential or connection rotation without tearing down the
// whole manager.
func (m *Manager) Restart(ctx context.Context, name string, env config.Env) error {
	dep, err := m.Get(name)
	if err != nil {
		return err
	}

	release, err := m.lock(ctx, name)
	if err != nil {
		return err
	}
	defer release()

	if err := dep.Stop(ctx, env); err != nil {
		return errors.Wrap(err, "Manager", "Restart", fmt.Sprintf("stop %s", name))
	}
	if err := dep.Start(ctx, env); err != nil {
		return errors.Wrap(err, "Manager", "Restart", fmt.Sprintf("start %s", name))
	}

	m.logger.Info("dependency restarted", "dependency", name)
	if m.metrics != nil {
		m.metrics.RecordDependencyRestart(name)
		m.metrics.RecordDependencyStatus(name, true)
	}
	return nil
}

// lock takes the per-name semaphore, honoring context cancellation, and
// returns the release func.
func (m *Manager) lock(ctx context.Context, name string) (func(), error) {
	m.mu.RLock()
	sem, ok := m.locks[name]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Manager", "lock",
			fmt.Sprintf("dependency %s not registered", name))
	}

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, errors.WrapTransient(ctx.Err(), "Manager", "lock",
			fmt.Sprintf("cancelled waiting for %s", name))
	}
}
