package natsclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	moneyerrors "github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/pkg/retry"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.False(t, c.IsConnected())
}

func TestNewClientEmptyURL(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, moneyerrors.ErrInvalidConfig)
}

func TestNewClientOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("money-test"),
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(2*time.Second),
		WithDrainTimeout(5*time.Second),
		WithCredentials("user", "pass"),
		WithConnectRetry(retry.Config{MaxAttempts: 1}),
	)
	require.NoError(t, err)

	assert.Equal(t, "money-test", c.clientName)
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.Equal(t, 1, c.connectRetry.MaxAttempts)
}

func TestOperationsBeforeConnect(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.RTT()
	assert.ErrorIs(t, err, moneyerrors.ErrNoConnection)

	_, err = c.JetStream()
	assert.ErrorIs(t, err, moneyerrors.ErrNoConnection)

	_, err = c.GetKeyValueBucket(context.Background(), "bars")
	assert.ErrorIs(t, err, moneyerrors.ErrNoConnection)
}

func TestCloseIdempotent(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, c.Close(ctx))
	assert.NoError(t, c.Close(ctx))

	// A closed client refuses to connect.
	err = c.Connect(ctx)
	assert.ErrorIs(t, err, moneyerrors.ErrNoConnection)
}

func TestIsAlreadyExistsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bucket in use", errors.New("bucket name already in use"), true},
		{"already exists", errors.New("stream already exists"), true},
		{"stream in use", errors.New("stream name already in use"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAlreadyExistsError(tt.err))
		})
	}
}
