package router

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/tablestore"
)

// echoHandler yields one response mirroring the request's arguments.
func echoHandler(_ context.Context, req *record.Request, _ Deps, yield Yield) error {
	data, err := req.Data()
	if err != nil {
		return err
	}
	return yield(record.NewResponse(req, record.NewRecord(data)))
}

func makeRequest(t *testing.T, kwargs map[string]any) *record.Request {
	t.Helper()
	req := record.NewRequest(nil)
	require.NoError(t, req.Make(kwargs))
	return req
}

func TestDefineValidation(t *testing.T) {
	_, err := Define("", echoHandler)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = Define("echo", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestDefineDeclaredFacts(t *testing.T) {
	accepts, err := record.NewModel("p", "echo_args", []byte(`{"type":"object"}`))
	require.NoError(t, err)
	schema := tablestore.MustSchema("p", "echoes", nil)

	r, err := Define("echo", echoHandler,
		Accepts(accepts),
		Stores(schema),
		Requires("client", "http"),
		Requires("db", "store"),
		Limit(Per(60, time.Minute)),
	)
	require.NoError(t, err)

	info := r.Info()
	assert.Equal(t, "echo", info.Name)
	assert.Same(t, accepts, info.Accepts)
	assert.Nil(t, info.Returns)
	assert.Equal(t, "p.echoes", info.Stores.Qualified())
	assert.Equal(t, map[string]string{"client": "http", "db": "store"}, info.Requires)
	require.NotNil(t, info.RateLimit)
	assert.Equal(t, rate.Every(time.Second), info.RateLimit.Limit)
	assert.Equal(t, 60, info.RateLimit.Burst)
}

func TestInvokeYieldsResponses(t *testing.T) {
	r := MustDefine("echo", echoHandler)
	req := makeRequest(t, map[string]any{"value": "hi"})

	stream := r.Invoke(context.Background(), req, nil)
	responses, err := stream.Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, responses, 1)
	assert.Equal(t, map[string]any{"value": "hi"}, responses[0].Fields())
	assert.Same(t, req, responses[0].Request())
}

func TestInvokeObserverSeesEveryResponse(t *testing.T) {
	r := MustDefine("multi", func(_ context.Context, req *record.Request, _ Deps, yield Yield) error {
		for i := 0; i < 3; i++ {
			if err := yield(record.NewResponse(req, record.NewRecord(map[string]any{"i": i}))); err != nil {
				return err
			}
		}
		return nil
	})
	req := makeRequest(t, nil)

	var observed atomic.Int32
	stream := r.Invoke(context.Background(), req, nil, WithObserver(func(record.Response) {
		observed.Add(1)
	}))
	responses, err := stream.Drain(context.Background())
	require.NoError(t, err)

	assert.Len(t, responses, 3)
	assert.Equal(t, int32(3), observed.Load())
}

func TestInvokeRecordsHistoryBeforeHandler(t *testing.T) {
	handlerSawHistory := make(chan int, 1)
	r := MustDefine("probe", func(_ context.Context, _ *record.Request, _ Deps, _ Yield) error {
		return nil
	})
	// Wrap: check history length from inside a second router's handler.
	probe := MustDefine("wrapper", func(ctx context.Context, req *record.Request, deps Deps, yield Yield) error {
		handlerSawHistory <- len(r.Metadata().History())
		return nil
	})

	// Record into r's history by invoking it first.
	req := makeRequest(t, nil)
	_, err := r.Invoke(context.Background(), req, nil).Drain(context.Background())
	require.NoError(t, err)

	_, err = probe.Invoke(context.Background(), req, nil).Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, <-handlerSawHistory)

	history := r.Metadata().History()
	require.Len(t, history, 1)
	assert.Same(t, req, history[0].Request)
	assert.False(t, history[0].At.IsZero())
	assert.Equal(t, uint64(1), r.Metadata().Calls())
}

func TestHistoryIsBounded(t *testing.T) {
	r := MustDefine("noisy", func(_ context.Context, _ *record.Request, _ Deps, _ Yield) error {
		return nil
	}, HistoryCapacity(4))

	for i := 0; i < 10; i++ {
		req := makeRequest(t, map[string]any{"i": i})
		_, err := r.Invoke(context.Background(), req, nil).Drain(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, r.Metadata().History(), 4)
	assert.Equal(t, uint64(10), r.Metadata().Calls())
}

func TestInvokePropagatesHandlerError(t *testing.T) {
	boom := errors.New("upstream 500")
	r := MustDefine("failing", func(_ context.Context, _ *record.Request, _ Deps, yield Yield) error {
		if err := yield(record.NewResponse(nil, record.NewRecord(map[string]any{"n": 1}))); err != nil {
			return err
		}
		return boom
	})

	responses, err := r.Invoke(context.Background(), makeRequest(t, nil), nil).Drain(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, responses, 1)
}

func TestFinishedStreamReleasesInvocationContext(t *testing.T) {
	handlerCtx := make(chan context.Context, 1)
	r := MustDefine("short", func(ctx context.Context, req *record.Request, _ Deps, yield Yield) error {
		handlerCtx <- ctx
		return yield(record.NewResponse(req, record.NewRecord(map[string]any{"n": 1})))
	})

	stream := r.Invoke(context.Background(), makeRequest(t, nil), nil)
	responses, err := stream.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, responses, 1)

	// Once the handler is done its child context must not stay registered
	// on the caller's parent for the life of the process.
	<-stream.Done()
	assert.ErrorIs(t, (<-handlerCtx).Err(), context.Canceled)
}

func TestStreamCloseCancelsHandler(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan struct{})
	r := MustDefine("infinite", func(ctx context.Context, _ *record.Request, _ Deps, yield Yield) error {
		close(started)
		defer close(stopped)
		for {
			if err := yield(record.NewResponse(nil, record.NewRecord(map[string]any{}))); err != nil {
				return err
			}
		}
	})

	stream := r.Invoke(context.Background(), makeRequest(t, nil), nil)
	<-started
	stream.Close()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop after stream close")
	}
}

func TestInvokeHonorsParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := MustDefine("blocked", func(ctx context.Context, _ *record.Request, _ Deps, _ Yield) error {
		<-ctx.Done()
		return ctx.Err()
	})

	stream := r.Invoke(ctx, makeRequest(t, nil), nil)
	cancel()

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not observe parent cancellation")
	}
	assert.Error(t, stream.Err())
}

func TestWithProviderStampsCopy(t *testing.T) {
	r := MustDefine("echo", echoHandler)
	stamped := r.WithProvider("ibkr")

	assert.Equal(t, "ibkr", stamped.Info().Provider)
	assert.Equal(t, "", r.Info().Provider)
	// The copy shares the live history ring.
	assert.Same(t, r.Metadata(), stamped.Metadata())
}

func TestDepsInjection(t *testing.T) {
	r := MustDefine("uses-http", func(_ context.Context, _ *record.Request, deps Deps, yield Yield) error {
		return yield(record.NewResponse(nil, record.NewRecord(map[string]any{
			"client": deps["client"],
		})))
	}, Requires("client", "http"))

	responses, err := r.Invoke(context.Background(), makeRequest(t, nil), Deps{"client": "the-client"}).
		Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "the-client", responses[0].Fields()["client"])
}
