package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-d-young/money/errors"
)

var barsSchema = []byte(`{
	"type": "object",
	"properties": {
		"symbol": {"type": "string"},
		"close": {"type": "number"}
	},
	"required": ["symbol"],
	"additionalProperties": false
}`)

func TestModelValidate(t *testing.T) {
	m, err := NewModel("ibkr", "bars", barsSchema)
	require.NoError(t, err)

	assert.Equal(t, "bars", m.Name())
	assert.Equal(t, "ibkr", m.Provider())

	tests := []struct {
		name    string
		fields  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"symbol": "AAPL", "close": 187.5}, false},
		{"required only", map[string]any{"symbol": "AAPL"}, false},
		{"missing required", map[string]any{"close": 187.5}, true},
		{"wrong type", map[string]any{"symbol": 42}, true},
		{"extra property", map[string]any{"symbol": "AAPL", "open": 1.0}, true},
		{"nil fields", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Validate(tt.fields)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewModelBadSchema(t *testing.T) {
	_, err := NewModel("p", "broken", []byte(`{"type": 12}`))
	require.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.True(t, errors.IsFatal(err))

	_, err = NewModel("p", "", barsSchema)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestObjectJSONRevalidates(t *testing.T) {
	m, err := NewModel("ibkr", "bars", barsSchema)
	require.NoError(t, err)

	valid := NewObject(m, map[string]any{"symbol": "AAPL"})
	out, err := valid.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"AAPL"}`, string(out))

	invalid := NewObject(m, map[string]any{"close": 1.0})
	_, err = invalid.JSON()
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestRecordCopiesFields(t *testing.T) {
	src := map[string]any{"a": 1}
	r := NewRecord(src)
	src["a"] = 2

	v, ok := r.Field("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// FieldMap hands out a copy too.
	r.FieldMap()["a"] = 3
	v, _ = r.Field("a")
	assert.Equal(t, 1, v)
}
