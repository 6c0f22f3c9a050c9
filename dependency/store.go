package dependency

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/ryan-d-young/money/config"
	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/metric"
	"github.com/ryan-d-young/money/natsclient"
	"github.com/ryan-d-young/money/tablestore"
)

// DefaultStoreName is the name of the core persistence dependency. The
// session pulls its table store from this dependency at start.
const DefaultStoreName = "store"

// StoreOpener opens a table store for the given environment, returning the
// store and a close func invoked on Stop.
type StoreOpener func(ctx context.Context, env config.Env) (tablestore.Store, func(context.Context) error, error)

// Store is the core persistence dependency: a tablestore.Store over NATS
// JetStream KV by default. The store is safe for concurrent use, so the
// dependency is non-exclusive.
//
// Env keys: nats_url (default nats.DefaultURL), nats_user, nats_password,
// commit_on_stop (bool, default true).
type Store struct {
	name    string
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	open    StoreOpener

	mu    sync.RWMutex
	store tablestore.Store
	close func(context.Context) error
}

// StoreOption customizes the store dependency.
type StoreOption func(*Store)

// WithStoreLogger sets the dependency's logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreMetrics wires store activity into the framework metrics.
func WithStoreMetrics(registry *metric.MetricsRegistry) StoreOption {
	return func(s *Store) { s.metrics = registry }
}

// WithOpener replaces the NATS-backed opener, letting tests run the session
// against an in-memory store.
func WithOpener(open StoreOpener) StoreOption {
	return func(s *Store) {
		if open != nil {
			s.open = open
		}
	}
}

// NewStore creates the persistence dependency.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		name:   DefaultStoreName,
		logger: slog.Default(),
	}
	s.open = s.openNATS
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Dependency.
func (s *Store) Name() string { return s.name }

// Exclusive implements Dependency.
func (s *Store) Exclusive() bool { return false }

// Start opens the table store.
func (s *Store) Start(ctx context.Context, env config.Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, s.name, "Start", "store already open")
	}

	store, closeFn, err := s.open(ctx, env)
	if err != nil {
		return errors.Wrap(err, s.name, "Start", "open table store")
	}
	s.store = store
	s.close = closeFn
	return nil
}

// Stop closes the table store, committing pending writes by default.
func (s *Store) Stop(ctx context.Context, env config.Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}

	commit := env.GetBool("commit_on_stop", true)
	if err := s.store.Close(ctx, commit); err != nil {
		return errors.Wrap(err, s.name, "Stop", "close table store")
	}
	if s.close != nil {
		if err := s.close(ctx); err != nil {
			return errors.Wrap(err, s.name, "Stop", "release backend")
		}
	}
	s.store = nil
	s.close = nil
	return nil
}

// Instance returns the live tablestore.Store.
func (s *Store) Instance() (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, s.name, "Instance", "store unset")
	}
	return s.store, nil
}

// TableStore returns the live store with its concrete type, for callers
// inside the framework.
func (s *Store) TableStore() (tablestore.Store, error) {
	instance, err := s.Instance()
	if err != nil {
		return nil, err
	}
	return instance.(tablestore.Store), nil
}

// openNATS is the production opener: connect a NATS client and wrap it in
// a KV table store.
func (s *Store) openNATS(ctx context.Context, env config.Env) (tablestore.Store, func(context.Context) error, error) {
	clientOpts := []natsclient.ClientOption{
		natsclient.WithLogger(s.logger),
		natsclient.WithName("money-store"),
	}
	if s.metrics != nil {
		clientOpts = append(clientOpts, natsclient.WithMetrics(s.metrics))
	}
	if user := env.GetString("nats_user", ""); user != "" {
		clientOpts = append(clientOpts, natsclient.WithCredentials(user, env.GetString("nats_password", "")))
	}

	client, err := natsclient.NewClient(env.GetString("nats_url", nats.DefaultURL), clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}

	kvOpts := []tablestore.KVOption{tablestore.WithLogger(s.logger)}
	if s.metrics != nil {
		kvOpts = append(kvOpts, tablestore.WithMetrics(s.metrics))
	}
	store, err := tablestore.NewKV(client, kvOpts...)
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}
	return store, client.Close, nil
}
