package dependency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-d-young/money/config"
	"github.com/ryan-d-young/money/errors"
)

// fakeDep is a minimal dependency with an observable lifecycle.
type fakeDep struct {
	name      string
	exclusive bool

	mu       sync.Mutex
	started  bool
	starts   int
	stops    int
	startErr error
}

func (d *fakeDep) Name() string    { return d.name }
func (d *fakeDep) Exclusive() bool { return d.exclusive }

func (d *fakeDep) Start(_ context.Context, _ config.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.started = true
	d.starts++
	return nil
}

func (d *fakeDep) Stop(_ context.Context, _ config.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.stops++
	return nil
}

func (d *fakeDep) Instance() (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, d.name, "Instance", "unset")
	}
	return d.name + "-instance", nil
}

func TestRegisterDuplicate(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&fakeDep{name: "http"}))

	err := m.Register(&fakeDep{name: "http"})
	assert.ErrorIs(t, err, errors.ErrAlreadyRegistered)

	// Shared registration tolerates the duplicate.
	assert.NoError(t, m.RegisterShared(&fakeDep{name: "http"}))
	assert.Len(t, m.Names(), 1)
}

func TestAcquireLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	dep := &fakeDep{name: "db"}
	require.NoError(t, m.Register(dep))

	// Before start.
	_, err := m.Acquire(ctx, "db")
	assert.ErrorIs(t, err, errors.ErrNotStarted)

	require.NoError(t, m.StartAll(ctx, nil))
	h, err := m.Acquire(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, "db-instance", h.Instance())
	h.Release()

	// After stop.
	require.NoError(t, m.StopAll(ctx, nil))
	_, err = m.Acquire(ctx, "db")
	assert.ErrorIs(t, err, errors.ErrNotStarted)
}

func TestAcquireUnknown(t *testing.T) {
	m := NewManager()
	_, err := m.Acquire(context.Background(), "ghost")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestExclusiveAcquireNeverOverlaps(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	require.NoError(t, m.Register(&fakeDep{name: "gateway", exclusive: true}))
	require.NoError(t, m.StartAll(ctx, nil))

	var inCritical atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.Acquire(ctx, "gateway")
			require.NoError(t, err)
			n := inCritical.Add(1)
			for {
				seen := maxSeen.Load()
				if n <= seen || maxSeen.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inCritical.Add(-1)
			h.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestNonExclusiveAcquireIsConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	require.NoError(t, m.Register(&fakeDep{name: "http"}))
	require.NoError(t, m.StartAll(ctx, nil))

	// Two unreleased handles coexist.
	a, err := m.Acquire(ctx, "http")
	require.NoError(t, err)
	b, err := m.Acquire(ctx, "http")
	require.NoError(t, err)
	a.Release()
	b.Release()
}

func TestAcquireCancelledWhileWaiting(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	require.NoError(t, m.Register(&fakeDep{name: "gateway", exclusive: true}))
	require.NoError(t, m.StartAll(ctx, nil))

	held, err := m.Acquire(ctx, "gateway")
	require.NoError(t, err)
	defer held.Release()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(waitCtx, "gateway")
	assert.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestHandleReleaseIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	require.NoError(t, m.Register(&fakeDep{name: "gateway", exclusive: true}))
	require.NoError(t, m.StartAll(ctx, nil))

	h, err := m.Acquire(ctx, "gateway")
	require.NoError(t, err)
	h.Release()
	h.Release() // second release is a no-op

	// Lock is free again.
	h2, err := m.Acquire(ctx, "gateway")
	require.NoError(t, err)
	h2.Release()
}

func TestStartAllPropagatesFailure(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	boom := errors.New("credentials rejected")
	require.NoError(t, m.Register(&fakeDep{name: "ok"}))
	require.NoError(t, m.Register(&fakeDep{name: "broken", startErr: boom}))

	err := m.StartAll(ctx, nil)
	assert.ErrorIs(t, err, boom)

	// StopAll still tears down whatever started.
	assert.NoError(t, m.StopAll(ctx, nil))
}

func TestRestart(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	dep := &fakeDep{name: "db"}
	require.NoError(t, m.Register(dep))
	require.NoError(t, m.StartAll(ctx, nil))

	require.NoError(t, m.Restart(ctx, "db", nil))

	dep.mu.Lock()
	defer dep.mu.Unlock()
	assert.Equal(t, 2, dep.starts)
	assert.Equal(t, 1, dep.stops)
	assert.True(t, dep.started)
}

func TestRestartUnknown(t *testing.T) {
	err := NewManager().Restart(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
