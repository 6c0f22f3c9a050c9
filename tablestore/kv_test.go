package tablestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/natsclient"
)

func TestNewKVRequiresClient(t *testing.T) {
	_, err := NewKV(nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestKVInsertWithoutEnsure(t *testing.T) {
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)

	s, err := NewKV(client)
	require.NoError(t, err)

	err = s.Insert(context.Background(), "ibkr.bars", Row{Fields: map[string]any{"close": 1.0}})
	assert.ErrorIs(t, err, errors.ErrTableNotFound)

	_, err = s.Rows(context.Background(), "ibkr.bars")
	assert.ErrorIs(t, err, errors.ErrTableNotFound)

	assert.Empty(t, s.Tables())
}
