// Package router implements the AI Router: for each semantic task it holds
// an ordered, fixed chain of named provider calls and walks it in order,
// wrapping each attempt in the retry/circuit-breaker harness, logging a
// usage entry for every attempt, and falling through to the next provider
// on any failure. There is no database of interchangeable models to rank
// here, only five fixed vendor gateways wired into five fixed task chains:
// one task, an ordered vendor chain.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/greenleaf-ai/core/gateway/circuitbreaker"
	"github.com/greenleaf-ai/core/ledger"
	"github.com/greenleaf-ai/core/retry"
	"github.com/greenleaf-ai/core/types"
)

// Task is a semantic unit of AI work the Router dispatches.
type Task string

const (
	TaskIdentification   Task = "identification"
	TaskHealthAssessment Task = "health_assessment"
	TaskChatSimple       Task = "chat_simple"
	TaskChatComplex      Task = "chat_complex"
	TaskEmbedding        Task = "embedding"
)

// Provider name constants, used both as map keys below and as the
// Provider field on the unified Result.
const (
	ProviderPlantID         = "plant-id"
	ProviderGemini          = "gemini"
	ProviderClaude          = "claude"
	ProviderOpenAI          = "openai"
	ProviderOpenAIEmbedding = "openai-embedding"
)

// AIRouterError is emitted when every provider in a task's chain has
// failed. It carries the ordered list of attempted provider names so the
// pipeline can report them in error details.
type AIRouterError struct {
	Task               Task
	AttemptedProviders []string
	Last               error
}

func (e *AIRouterError) Error() string {
	return fmt.Sprintf("ai router: task %s exhausted chain [%s]: %v",
		e.Task, strings.Join(e.AttemptedProviders, ", "), e.Last)
}

func (e *AIRouterError) Unwrap() error { return e.Last }

// step is one named provider call in a task's fallback chain.
type step struct {
	name string
	call func(ctx context.Context) (any, error)
}

// outcome is the provider-agnostic result of successfully running a chain:
// which provider answered, whether it was reached via fallback, and the
// task-specific value it produced.
type outcome struct {
	provider   string
	isFallback bool
	value      any
}

// DefaultProviderTimeouts returns the per-call timeout for each gateway,
// keyed by chain step name: identifier 10s, vision fallback 15s,
// chat-haiku(simple)/chat-fallback 15s, chat-sonnet(complex) 30s,
// embedding 5s. The plain "claude" step (ChatSimple, AssessHealth) and
// ChatComplex's "claude:simple" step are the haiku calls;
// "claude:complex" is the sonnet call.
func DefaultProviderTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		ProviderPlantID:             10 * time.Second,
		ProviderGemini:              15 * time.Second,
		ProviderClaude:              15 * time.Second,
		ProviderClaude + ":simple":  15 * time.Second,
		ProviderClaude + ":complex": 30 * time.Second,
		ProviderOpenAI:              15 * time.Second,
		ProviderOpenAIEmbedding:     5 * time.Second,
	}
}

// Router walks static ordered fallback chains, one per semantic task,
// wrapping every provider attempt in retry + circuit breaker and logging
// a UsageLogEntry for each.
type Router struct {
	logger   *zap.Logger
	ledger   *ledger.Ledger
	policies map[string]*retry.Policy
	breakers map[string]circuitbreaker.CircuitBreaker
}

// New creates a Router. timeouts maps provider name ("plant-id", "gemini",
// "claude", "openai", "openai-embedding") to its per-call timeout; a chain
// step whose name has no entry is called once, directly, with no retry,
// timeout or circuit breaker. A retryer policy and circuit breaker are constructed once per
// provider here, so breaker state is scoped per provider rather than
// reconstructed (and reset) on every call.
func New(l *ledger.Ledger, timeouts map[string]time.Duration, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		logger:   logger,
		ledger:   l,
		policies: make(map[string]*retry.Policy),
		breakers: make(map[string]circuitbreaker.CircuitBreaker),
	}
	for name, timeout := range timeouts {
		policy := retry.DefaultPolicy()
		policy.IsRetryable = types.IsRetryable
		policy.PerAttemptTimeout = timeout
		r.policies[name] = policy
		r.breakers[name] = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(), logger)
	}
	return r
}

// callProvider wraps one provider's call in its circuit breaker and a
// fresh retryer built from that provider's stored policy. The breaker
// sits outermost so it sees the whole retried attempt sequence as one
// logical call: a provider that is merely slow (succeeding on retry 2)
// never counts as a breaker failure.
func (r *Router) callProvider(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	breaker := r.breakers[name]
	policy := r.policies[name]
	if breaker == nil || policy == nil {
		return fn(ctx)
	}
	return breaker.CallWithResult(ctx, func(ctx context.Context) (any, error) {
		return retry.NewBackoffRetryer(policy, r.logger).DoWithResult(ctx, fn)
	})
}

// runChain iterates steps in order, logging one UsageLogEntry per attempt
// (success or failure) and falling through to the next step on any error,
// regardless of whether that error was retried internally to exhaustion
// or classified non-retryable on the first try.
func (r *Router) runChain(ctx context.Context, task Task, userID string, steps []step) (*outcome, error) {
	attempted := make([]string, 0, len(steps))
	var lastErr error

	for i, s := range steps {
		attempted = append(attempted, s.name)
		start := time.Now()
		val, err := r.callProvider(ctx, s.name, s.call)
		latency := time.Since(start)

		entry := types.UsageLogEntry{
			UserID:    userID,
			Task:      string(task),
			Provider:  s.name,
			LatencyMS: latency.Milliseconds(),
			Endpoint:  string(task),
		}
		if err != nil {
			entry.Outcome = "failure"
			entry.ErrorCode = types.GetErrorCode(err)
		} else {
			entry.Outcome = "success"
		}
		if r.ledger != nil {
			if logErr := r.ledger.Record(ctx, entry); logErr != nil {
				r.logger.Warn("usage ledger write failed", zap.Error(logErr), zap.String("provider", s.name))
			}
		}

		if err == nil {
			return &outcome{provider: s.name, isFallback: i > 0, value: val}, nil
		}
		lastErr = err
		r.logger.Debug("router chain step failed, falling through",
			zap.String("task", string(task)), zap.String("provider", s.name), zap.Error(err))
	}

	return nil, &AIRouterError{Task: task, AttemptedProviders: attempted, Last: lastErr}
}

// logUsageOnly records a single UsageLogEntry without running a chain
// step through callProvider, used by StreamChat where the chain's
// fallthrough condition (a non-2xx response) is checked directly against
// the gateway's Stream call rather than through the retry/breaker harness.
func (r *Router) logUsageOnly(ctx context.Context, task Task, userID, provider, outcome string, err error) {
	if r.ledger == nil {
		return
	}
	entry := types.UsageLogEntry{
		UserID:   userID,
		Task:     string(task),
		Provider: provider,
		Outcome:  outcome,
		Endpoint: string(task),
	}
	if err != nil {
		entry.ErrorCode = types.GetErrorCode(err)
	}
	if logErr := r.ledger.Record(ctx, entry); logErr != nil {
		r.logger.Warn("usage ledger write failed", zap.Error(logErr), zap.String("provider", provider))
	}
}
