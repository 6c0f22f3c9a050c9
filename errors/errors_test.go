package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil error", nil, ErrorTransient},
		{"invalid symbol", ErrInvalidSymbol, ErrorInvalid},
		{"heterogeneous collection", ErrHeterogeneousCollection, ErrorInvalid},
		{"invalid request", ErrInvalidRequest, ErrorInvalid},
		{"already completed", ErrAlreadyCompleted, ErrorInvalid},
		{"not found", ErrNotFound, ErrorInvalid},
		{"inconsistent provider", ErrInconsistentProvider, ErrorInvalid},
		{"duplicate discriminator", ErrDuplicateDiscriminator, ErrorFatal},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"storage unavailable", ErrStorageUnavailable, ErrorTransient},
		{"deadline exceeded", context.DeadlineExceeded, ErrorTransient},
		{"unknown error", stderrors.New("something odd"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyWrapped(t *testing.T) {
	// Sentinels remain matchable through fmt and Wrap* layers.
	err := fmt.Errorf("outer: %w", ErrNotStarted)
	assert.True(t, stderrors.Is(err, ErrNotStarted))

	wrapped := WrapInvalid(ErrInvalidRequest, "Session", "Call", "kwargs validation")
	assert.True(t, stderrors.Is(wrapped, ErrInvalidRequest))
	assert.True(t, IsInvalid(wrapped))
	assert.False(t, IsTransient(wrapped))
}

func TestWrapFormatsContext(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Manager", "Acquire", "instance lookup")
	require.Error(t, err)
	assert.Equal(t, "Manager.Acquire: instance lookup failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapTransient(nil, "a", "b", "c"))
	assert.NoError(t, WrapInvalid(nil, "a", "b", "c"))
	assert.NoError(t, WrapFatal(nil, "a", "b", "c"))
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	base := stderrors.New("base")
	err := WrapFatal(base, "Registry", "Register", "duplicate check")

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, ErrorFatal, ce.Class)
	assert.Equal(t, "Registry", ce.Component)
	assert.True(t, stderrors.Is(ce, base))
}

func TestRetryConfigShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.True(t, cfg.ShouldRetry(ErrConnectionLost, 0))
	assert.False(t, cfg.ShouldRetry(ErrConnectionLost, cfg.MaxRetries))
	assert.False(t, cfg.ShouldRetry(ErrInvalidRequest, 0))
	assert.False(t, cfg.ShouldRetry(nil, 0))
}

func TestRetryConfigBridge(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    2,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	rc := cfg.ToRetryConfig()
	assert.Equal(t, 3, rc.MaxAttempts) // additional attempts -> total attempts
	assert.Equal(t, cfg.InitialDelay, rc.InitialDelay)
	assert.True(t, rc.AddJitter)
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}
