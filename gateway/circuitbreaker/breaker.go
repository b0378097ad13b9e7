// Package circuitbreaker protects gateway calls to a flaky upstream
// provider from being retried into the ground: once a provider fails
// Threshold times in a row, the breaker opens and rejects calls locally
// until ResetTimeout has passed, then it lets up to HalfOpenMaxCalls
// probe calls through; the first successful probe closes it again and
// a failed probe reopens it.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/greenleaf-ai/core/types"
)

// State is one of Closed, Open, HalfOpen.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Config configures a CircuitBreaker.
type Config struct {
	Threshold        int           // consecutive failures that trip the breaker
	Timeout          time.Duration // per-call timeout
	ResetTimeout     time.Duration // Open -> HalfOpen wait
	HalfOpenMaxCalls int           // probe calls allowed while HalfOpen
	OnStateChange    func(from State, to State)
}

// DefaultConfig returns the breaker settings used by gateway adapters
// unless a provider needs an override.
func DefaultConfig() *Config {
	return &Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker wraps calls to an unreliable dependency.
type CircuitBreaker interface {
	Call(ctx context.Context, fn func(ctx context.Context) error) error
	CallWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
	State() State
	Reset()
}

type breaker struct {
	config *Config
	logger *zap.Logger

	mu                sync.RWMutex
	state             State
	failureCount      int
	lastFailureTime   time.Time
	halfOpenCallCount int
}

// NewCircuitBreaker creates a circuit breaker starting in the Closed state.
func NewCircuitBreaker(config *Config, logger *zap.Logger) CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &breaker{config: config, logger: logger, state: StateClosed}
}

func (b *breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.CallWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (b *breaker) CallWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	resultCh := make(chan callResult, 1)
	go func() {
		result, err := fn(callCtx)
		resultCh <- callResult{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		err := fmt.Errorf("call timed out: %w", callCtx.Err())
		b.afterCall(false)
		return nil, err

	case res := <-resultCh:
		// Caller-side errors (bad request, auth, quota, content policy)
		// never count against the breaker: retrying them elsewhere won't
		// help, and the upstream itself may be perfectly healthy.
		success := res.err == nil || isClientError(res.err)
		b.afterCall(success)

		if !success {
			return nil, res.err
		}
		return res.result, nil
	}
}

type callResult struct {
	result any
	err    error
}

func isClientError(err error) bool {
	switch types.GetErrorCode(err) {
	case types.ErrInvalidRequest, types.ErrAuthentication, types.ErrQuotaExceeded,
		types.ErrContentFiltered, types.ErrContextTooLong, types.ErrModelNotFound:
		return true
	default:
		return false
	}
}

func (b *breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.lastFailureTime) > b.config.ResetTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenCallCount = 0
			b.logger.Info("circuit breaker entering half-open state")
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		if b.halfOpenCallCount >= b.config.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCallCount++
		return nil

	default:
		return fmt.Errorf("unknown circuit breaker state: %v", b.state)
	}
}

func (b *breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

func (b *breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failureCount = 0

	case StateHalfOpen:
		b.logger.Info("circuit breaker recovered", zap.Int("half_open_calls", b.halfOpenCallCount))
		b.setState(StateClosed)
		b.failureCount = 0
		b.halfOpenCallCount = 0

	case StateOpen:
		b.logger.Warn("circuit breaker received success while open")
	}
}

func (b *breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("circuit breaker tripped",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold),
			)
			b.setState(StateOpen)
		}

	case StateHalfOpen:
		b.logger.Warn("circuit breaker failed during half-open probe, reopening")
		b.setState(StateOpen)
		b.halfOpenCallCount = 0

	case StateOpen:
		b.logger.Warn("circuit breaker received failure while open")
	}
}

func (b *breaker) setState(newState State) {
	oldState := b.state
	b.state = newState

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(oldState, newState)
	}
}

func (b *breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenCallCount = 0

	b.logger.Info("circuit breaker reset", zap.String("from_state", oldState.String()))

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(oldState, StateClosed)
	}
}

var (
	ErrCircuitOpen            = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("too many calls while half-open")
)
