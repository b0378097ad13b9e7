package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy configures exponential backoff retry behavior for a gateway call.
type Policy struct {
	MaxAttempts       int                                               // total attempts including the first, 0 means no retry
	InitialDelay      time.Duration                                     // delay before the second attempt
	MaxDelay          time.Duration                                     // delay ceiling
	Multiplier        float64                                           // exponential growth factor
	PerAttemptTimeout time.Duration                                     // 0 disables the per-attempt timeout
	IsRetryable       func(err error) bool                              // nil means every error is retryable
	OnRetry           func(attempt int, err error, delay time.Duration) // observability hook
}

// DefaultPolicy returns the backoff policy used by gateway adapters unless
// overridden: 3 attempts, 1s initial delay doubling up to 30s, ±20% jitter.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Retryer executes a function under a Policy, retrying on retryable errors.
type Retryer interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	DoWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
}

type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffRetryer creates a Retryer that backs off exponentially between
// attempts, with jitter, honoring ctx cancellation while sleeping.
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 1 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: policy, logger: logger}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := r.DoWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	var lastErr error
	var result any

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.calculateDelay(attempt)

			r.logger.Debug("retrying after backoff",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.policy.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.PerAttemptTimeout)
		}
		result, lastErr = fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !r.isRetryable(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return nil, lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("failed after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}

// calculateDelay computes the exponential backoff delay for the given
// attempt (1-indexed; attempt 2 is the first retry), with ±20% jitter.
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-2))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}

	jitter := delay * 0.20
	delay += (rand.Float64()*2 - 1) * jitter

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (r *backoffRetryer) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if r.policy.IsRetryable == nil {
		return true
	}
	return r.policy.IsRetryable(err)
}
