package compose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/provider"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/router"
	"github.com/ryan-d-young/money/session"
	"github.com/ryan-d-young/money/tablestore"
	"github.com/ryan-d-young/money/testutil"
)

const pagedTotal = 24

var barsSchema = tablestore.MustSchema("demo", "bars", nil)

// say echoes its kwargs back as one response.
var sayHandler = router.Handler(testutil.EchoHandler)

// list yields two identifier rows for bridging into say.
func listHandler(_ context.Context, req *record.Request, _ router.Deps, yield router.Yield) error {
	for _, value := range []string{"a", "b"} {
		if err := yield(record.NewResponse(req, record.NewRecord(map[string]any{"value": value}))); err != nil {
			return err
		}
	}
	return nil
}

// bars yields three rows for its declared table.
func barsHandler(_ context.Context, req *record.Request, _ router.Deps, yield router.Yield) error {
	for _, px := range []float64{100.5, 101.0, 99.75} {
		if err := yield(record.NewResponse(req, record.NewRecord(map[string]any{"close": px}))); err != nil {
			return err
		}
	}
	return nil
}

// paged serves a 24-item dataset in pages of 10.
var pagedHandler = testutil.PagedHandler(pagedTotal, 10)

func demoSession(t *testing.T) (*session.Session, *tablestore.Memory) {
	t.Helper()

	catalog := provider.NewCatalog()
	require.NoError(t, catalog.Add("demo", func() (*provider.Provider, error) {
		return provider.NewBuilder("demo").
			AddRouter(router.MustDefine("say", sayHandler)).
			AddRouter(router.MustDefine("list", listHandler)).
			AddRouter(router.MustDefine("bars", barsHandler, router.Stores(barsSchema))).
			AddRouter(router.MustDefine("paged", pagedHandler)).
			Build(nil)
	}))

	storeDep, mem := testutil.MemoryStore()

	s, err := session.Connect(context.Background(),
		session.WithCatalog(catalog), session.WithStore(storeDep))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background(), false) })
	return s, mem
}

func TestCallStep(t *testing.T) {
	s, _ := demoSession(t)

	responses, err := NewCall(s, Target{"demo", "say"}).Run(context.Background(),
		map[string]any{"value": "hi"})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "hi", responses[0].Fields()["value"])
}

func TestStorePersistsEveryResponse(t *testing.T) {
	s, mem := demoSession(t)

	responses, err := NewStore(s, Target{"demo", "bars"}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, responses, 3)

	rows, err := mem.Rows(context.Background(), barsSchema.Qualified())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 100.5, rows[0].Fields["close"])
}

func TestStoreRequiresDeclaredTable(t *testing.T) {
	s, _ := demoSession(t)

	_, err := NewStore(s, Target{"demo", "say"}).Run(context.Background(),
		map[string]any{"value": "hi"})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestBridgeFeedsSourceIntoTarget(t *testing.T) {
	s, _ := demoSession(t)

	responses, err := NewBridge(s, Target{"demo", "list"}, Target{"demo", "say"}).
		Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "a", responses[0].Fields()["value"])
	assert.Equal(t, "b", responses[1].Fields()["value"])
}

func TestCyclePaginatesUntilShortBatch(t *testing.T) {
	s, _ := demoSession(t)

	responses, err := NewCycle(s, Target{"demo", "paged"}, Pages(10)).
		Run(context.Background(), map[string]any{"page": 1})
	require.NoError(t, err)
	require.Len(t, responses, pagedTotal)
	assert.Equal(t, 0, responses[0].Fields()["n"])
	assert.Equal(t, pagedTotal-1, responses[pagedTotal-1].Fields()["n"])
}

func TestCycleStopsImmediatelyOnShortFirstBatch(t *testing.T) {
	s, _ := demoSession(t)

	// Page 3 holds the last 4 items; one batch, below page size, done.
	responses, err := NewCycle(s, Target{"demo", "paged"}, Pages(10)).
		Run(context.Background(), map[string]any{"page": 3})
	require.NoError(t, err)
	assert.Len(t, responses, 4)
}

func TestChainThreadsOutputs(t *testing.T) {
	s, _ := demoSession(t)

	chain, err := NewChain(map[int]Command{
		0: NewCall(s, Target{"demo", "list"}),
		1: NewCall(s, Target{"demo", "say"}),
	})
	require.NoError(t, err)

	// Step 1 receives the fields of step 0's last response.
	responses, err := chain.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "b", responses[0].Fields()["value"])
}

func TestChainValidation(t *testing.T) {
	_, err := NewChain(nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewChain(map[int]Command{0: nil})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestChainPlanViews(t *testing.T) {
	s, _ := demoSession(t)

	chain, err := NewChain(map[int]Command{
		0: NewCall(s, Target{"demo", "list"}),
		2: NewCall(s, Target{"demo", "say"}),
		5: NewCall(s, Target{"demo", "say"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 5}, chain.Indexes())

	plan, err := chain.Plan(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, plan.Indexes())

	// Same bounds hit the cache and return the same view.
	again, err := chain.Plan(0, 2)
	require.NoError(t, err)
	assert.Same(t, plan, again)

	_, err = chain.Plan(3, 4)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = chain.Plan(2, 0)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
