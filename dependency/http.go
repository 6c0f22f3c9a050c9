package dependency

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ryan-d-young/money/config"
	"github.com/ryan-d-young/money/errors"
)

// DefaultHTTPName is the name the shared HTTP client registers under.
const DefaultHTTPName = "http"

// HTTP is the shared HTTP client dependency. The client pools connections
// and is safe for concurrent use, so the dependency is non-exclusive.
//
// Env keys: http_timeout (duration, default 30s).
type HTTP struct {
	name string

	mu     sync.RWMutex
	client *http.Client
}

// HTTPOption customizes the HTTP dependency.
type HTTPOption func(*HTTP)

// WithHTTPName registers the dependency under a non-default name, for
// providers that need a separately configured client.
func WithHTTPName(name string) HTTPOption {
	return func(h *HTTP) { h.name = name }
}

// NewHTTP creates the HTTP client dependency.
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{name: DefaultHTTPName}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Dependency.
func (h *HTTP) Name() string { return h.name }

// Exclusive implements Dependency.
func (h *HTTP) Exclusive() bool { return false }

// Start builds the shared client.
func (h *HTTP) Start(_ context.Context, env config.Env) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, h.name, "Start", "client already live")
	}
	h.client = &http.Client{
		Timeout: env.GetDuration("http_timeout", 30*time.Second),
	}
	return nil
}

// Stop closes idle connections and unsets the client.
func (h *HTTP) Stop(_ context.Context, _ config.Env) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		h.client.CloseIdleConnections()
		h.client = nil
	}
	return nil
}

// Instance returns the live *http.Client.
func (h *HTTP) Instance() (any, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.client == nil {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, h.name, "Instance", "client unset")
	}
	return h.client, nil
}
