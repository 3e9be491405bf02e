package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAndKindClassification(t *testing.T) {
	err := NewCapacityExceeded("web at max_agents")
	require.True(t, Is(err, KindCapacityExceeded))
	assert.False(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
}

func TestConfigurationInvalidIsPermanent(t *testing.T) {
	err := NewConfigurationInvalid("threshold out of range")
	assert.True(t, IsPermanent(err))
	assert.False(t, IsTransient(err))
}

func TestStoreUnavailableIsTransient(t *testing.T) {
	err := NewStoreUnavailable("write failed", stderrors.New("disk full"))
	assert.True(t, IsTransient(err))
	assert.ErrorContains(t, err, "disk full")
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}, func() error {
		attempts++
		if attempts < 2 {
			return NewStoreUnavailable("flaky", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), DefaultStoreRetryPolicy, func() error {
		attempts++
		return NewConfigurationInvalid("bad")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}, func() error {
		attempts++
		return NewStoreUnavailable("down", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}
