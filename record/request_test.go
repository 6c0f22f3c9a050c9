package record

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/pkg/timestamp"
)

func TestRequestMakeOnce(t *testing.T) {
	req := NewRequest(nil)
	assert.NotEqual(t, uuid.Nil, req.ID())
	assert.False(t, req.Made())

	require.NoError(t, req.Make(map[string]any{"value": "hi"}))
	assert.True(t, req.Made())

	err := req.Make(map[string]any{"value": "again"})
	assert.ErrorIs(t, err, errors.ErrAlreadyCompleted)

	data, err := req.Data()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": "hi"}, data)
}

func TestRequestReadBeforeMake(t *testing.T) {
	req := NewRequest(nil)

	_, err := req.Data()
	assert.ErrorIs(t, err, errors.ErrNotPopulated)

	_, err = req.JSON()
	assert.ErrorIs(t, err, errors.ErrNotPopulated)
}

func TestRequestValidatesAgainstModel(t *testing.T) {
	m, err := NewModel("ibkr", "bars", barsSchema)
	require.NoError(t, err)

	req := NewRequest(m)
	err = req.Make(map[string]any{"close": 1.0})
	require.ErrorIs(t, err, errors.ErrInvalidRequest)

	// A failed Make leaves the request unpopulated; retry with valid kwargs.
	assert.False(t, req.Made())
	require.NoError(t, req.Make(map[string]any{"symbol": "AAPL"}))
	assert.True(t, req.Made())
}

func TestRequestVerbatimWithoutModel(t *testing.T) {
	req := NewRequest(nil)
	require.NoError(t, req.Make(map[string]any{"anything": []int{1, 2}}))

	data, err := req.Data()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, data["anything"])
}

func TestRequestDataIsCopied(t *testing.T) {
	req := NewRequest(nil)
	kwargs := map[string]any{"k": "v"}
	require.NoError(t, req.Make(kwargs))

	kwargs["k"] = "mutated"
	data, err := req.Data()
	require.NoError(t, err)
	assert.Equal(t, "v", data["k"])

	data["k"] = "also mutated"
	again, err := req.Data()
	require.NoError(t, err)
	assert.Equal(t, "v", again["k"])
}

func TestRequestNilKwargs(t *testing.T) {
	req := NewRequest(nil)
	require.NoError(t, req.Make(nil))

	data, err := req.Data()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRequestJSON(t *testing.T) {
	req := NewRequest(nil)
	require.NoError(t, req.Make(map[string]any{"value": "hi"}))

	out, err := req.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), req.ID().String())
	assert.Contains(t, string(out), `"value":"hi"`)
	assert.Contains(t, string(out), `"submitted_at":"`+timestamp.Format(req.SubmittedAt())+`"`)
}

func TestRequestSubmittedAtIsUnixMs(t *testing.T) {
	before := timestamp.Now()
	req := NewRequest(nil)
	after := timestamp.Now()

	ms := req.SubmittedAt()
	assert.GreaterOrEqual(t, ms, before)
	assert.LessOrEqual(t, ms, after)
	assert.False(t, timestamp.IsZero(ms))
}
