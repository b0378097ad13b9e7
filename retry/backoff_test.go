package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBackoffRetryer_Success(t *testing.T) {
	policy := &Policy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}
	retryer := NewBackoffRetryer(policy, zap.NewNop())
	ctx := context.Background()

	callCount := 0
	err := retryer.Do(ctx, func(ctx context.Context) error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_RetryAndSuccess(t *testing.T) {
	policy := &Policy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}
	retryer := NewBackoffRetryer(policy, zap.NewNop())
	ctx := context.Background()

	callCount := 0
	testErr := errors.New("temporary error")

	err := retryer.Do(ctx, func(ctx context.Context) error {
		callCount++
		if callCount < 3 {
			return testErr
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_MaxAttemptsExceeded(t *testing.T) {
	policy := &Policy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}
	retryer := NewBackoffRetryer(policy, zap.NewNop())
	ctx := context.Background()

	callCount := 0
	testErr := errors.New("persistent error")

	err := retryer.Do(ctx, func(ctx context.Context) error {
		callCount++
		return testErr
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_ContextCanceled(t *testing.T) {
	policy := &Policy{MaxAttempts: 6, InitialDelay: 100 * time.Millisecond, MaxDelay: 1 * time.Second, Multiplier: 2.0}
	retryer := NewBackoffRetryer(policy, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	callCount := 0
	testErr := errors.New("error")

	err := retryer.Do(ctx, func(ctx context.Context) error {
		callCount++
		return testErr
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.GreaterOrEqual(t, callCount, 1)
}

func TestBackoffRetryer_IsRetryablePredicate(t *testing.T) {
	retryableErr := errors.New("retryable error")
	nonRetryableErr := errors.New("non-retryable error")

	policy := &Policy{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		IsRetryable:  func(err error) bool { return errors.Is(err, retryableErr) },
	}
	retryer := NewBackoffRetryer(policy, zap.NewNop())
	ctx := context.Background()

	t.Run("retryable error", func(t *testing.T) {
		callCount := 0
		err := retryer.Do(ctx, func(ctx context.Context) error {
			callCount++
			if callCount < 3 {
				return retryableErr
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, callCount)
	})

	t.Run("non-retryable error", func(t *testing.T) {
		callCount := 0
		err := retryer.Do(ctx, func(ctx context.Context) error {
			callCount++
			return nonRetryableErr
		})
		assert.Error(t, err)
		assert.Equal(t, 1, callCount)
	})
}

func TestBackoffRetryer_DelayCalculation(t *testing.T) {
	policy := &Policy{MaxAttempts: 6, InitialDelay: 100 * time.Millisecond, MaxDelay: 1 * time.Second, Multiplier: 2.0}
	retryer := NewBackoffRetryer(policy, zap.NewNop()).(*backoffRetryer)

	tests := []struct {
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		{2, 80 * time.Millisecond, 120 * time.Millisecond},   // 100ms ± 20%
		{3, 160 * time.Millisecond, 240 * time.Millisecond},  // 100 * 2^1 ± 20%
		{4, 320 * time.Millisecond, 480 * time.Millisecond},  // 100 * 2^2 ± 20%
		{5, 640 * time.Millisecond, 960 * time.Millisecond},  // 100 * 2^3 ± 20%
		{6, 800 * time.Millisecond, 1200 * time.Millisecond}, // capped at MaxDelay ± 20%
	}

	for _, tt := range tests {
		delay := retryer.calculateDelay(tt.attempt)
		assert.GreaterOrEqual(t, delay, tt.expectedMin)
		assert.LessOrEqual(t, delay, tt.expectedMax)
	}
}

func TestBackoffRetryer_OnRetryCallback(t *testing.T) {
	callbackCount := 0
	var lastAttempt int
	var lastErr error
	var lastDelay time.Duration

	policy := &Policy{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			callbackCount++
			lastAttempt = attempt
			lastErr = err
			lastDelay = delay
		},
	}
	retryer := NewBackoffRetryer(policy, zap.NewNop())
	ctx := context.Background()

	testErr := errors.New("test error")
	callCount := 0

	_ = retryer.Do(ctx, func(ctx context.Context) error {
		callCount++
		if callCount < 3 {
			return testErr
		}
		return nil
	})

	assert.Equal(t, 2, callbackCount)
	assert.Equal(t, 3, lastAttempt)
	assert.Equal(t, testErr, lastErr)
	assert.GreaterOrEqual(t, lastDelay, time.Duration(0))
}

func TestDoWithResultTyped_Success(t *testing.T) {
	r := NewBackoffRetryer(&Policy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}, zap.NewNop())

	val, err := DoWithResultTyped[int](r, context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestDoWithResultTyped_Error(t *testing.T) {
	r := NewBackoffRetryer(&Policy{MaxAttempts: 1, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}, zap.NewNop())

	val, err := DoWithResultTyped[int](r, context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 0, val)
}

func TestDoWithResultTyped_RetryThenSuccess(t *testing.T) {
	r := NewBackoffRetryer(&Policy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}, zap.NewNop())

	callCount := 0
	val, err := DoWithResultTyped[string](r, context.Background(), func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", errors.New("not yet")
		}
		return "done", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "done", val)
	assert.Equal(t, 3, callCount)
}
