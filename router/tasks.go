package router

import (
	"context"
	"strings"

	"github.com/greenleaf-ai/core/gateway"
	"github.com/greenleaf-ai/core/gateway/embedding"
)

// Result is the unified, provider-agnostic outcome of one Route call.
type Result struct {
	Provider   string // the vendor gateway name that actually answered
	IsFallback bool   // true iff Provider is not the first in the task's chain
}

// IdentifyResult is the outcome of TaskIdentification or the first half of
// TaskHealthAssessment's species-agnostic image analysis.
type IdentifyResult struct {
	Result
	Response *gateway.IdentifyResponse
}

// Identify runs the identification chain: PlantIdentifier -> VisionFallback.
func (r *Router) Identify(ctx context.Context, userID string, identifier, fallback gateway.IdentifyGateway, req gateway.IdentifyRequest) (*IdentifyResult, error) {
	steps := []step{
		{name: identifier.Name(), call: func(ctx context.Context) (any, error) { return identifier.Identify(ctx, req) }},
		{name: fallback.Name(), call: func(ctx context.Context) (any, error) { return fallback.Identify(ctx, req) }},
	}
	out, err := r.runChain(ctx, TaskIdentification, userID, steps)
	if err != nil {
		return nil, err
	}
	return &IdentifyResult{
		Result:   Result{Provider: out.provider, IsFallback: out.isFallback},
		Response: out.value.(*gateway.IdentifyResponse),
	}, nil
}

// HealthResult is the outcome of TaskHealthAssessment.
type HealthResult struct {
	Result
	Response *gateway.VisionHealthResponse
}

// AssessHealth runs the health_assessment chain: PlantIdentifier-Health ->
// LLM-primary-simple. The second step is a text-only vendor (Claude); the
// caller supplies healthViaChat to turn a ChatGateway completion into the
// same VisionHealthResponse shape (prompting for strict JSON and parsing
// it with gateway.ExtractJSON), since the chain's two steps do not share a
// native interface.
func (r *Router) AssessHealth(
	ctx context.Context, userID string,
	primary gateway.VisionGateway, fallback gateway.ChatGateway,
	req gateway.VisionHealthRequest,
	healthViaChat func(ctx context.Context, chat gateway.ChatGateway, req gateway.VisionHealthRequest) (*gateway.VisionHealthResponse, error),
) (*HealthResult, error) {
	steps := []step{
		{name: primary.Name(), call: func(ctx context.Context) (any, error) { return primary.AssessHealth(ctx, req) }},
		{name: fallback.Name(), call: func(ctx context.Context) (any, error) { return healthViaChat(ctx, fallback, req) }},
	}
	out, err := r.runChain(ctx, TaskHealthAssessment, userID, steps)
	if err != nil {
		return nil, err
	}
	return &HealthResult{
		Result:   Result{Provider: out.provider, IsFallback: out.isFallback},
		Response: out.value.(*gateway.VisionHealthResponse),
	}, nil
}

// ChatResult is the outcome of TaskChatSimple or TaskChatComplex.
type ChatResult struct {
	Result
	Response *gateway.ChatResponse
}

// ChatSimple runs the chat_simple chain: LLM-primary-simple -> LLM-fallback.
func (r *Router) ChatSimple(ctx context.Context, userID string, primary, fallback gateway.ChatGateway, req gateway.ChatRequest) (*ChatResult, error) {
	steps := []step{
		{name: primary.Name(), call: func(ctx context.Context) (any, error) { return primary.Complete(ctx, req) }},
		{name: fallback.Name(), call: func(ctx context.Context) (any, error) { return fallback.Complete(ctx, req) }},
	}
	return r.runChatChain(ctx, TaskChatSimple, userID, steps)
}

// ChatComplex runs the chat_complex chain: LLM-primary-complex ->
// LLM-primary-simple -> LLM-fallback. primaryComplex and primarySimple are
// typically the same Claude gateway called with two different model
// names; they degrade within the vendor before switching vendors, which
// preserves persona continuity.
func (r *Router) ChatComplex(ctx context.Context, userID string, primaryComplex, primarySimple, fallback gateway.ChatGateway, reqComplex, reqSimple gateway.ChatRequest) (*ChatResult, error) {
	steps := []step{
		{name: primaryComplex.Name() + ":complex", call: func(ctx context.Context) (any, error) { return primaryComplex.Complete(ctx, reqComplex) }},
		{name: primarySimple.Name() + ":simple", call: func(ctx context.Context) (any, error) { return primarySimple.Complete(ctx, reqSimple) }},
		{name: fallback.Name(), call: func(ctx context.Context) (any, error) { return fallback.Complete(ctx, reqSimple) }},
	}
	return r.runChatChain(ctx, TaskChatComplex, userID, steps)
}

func (r *Router) runChatChain(ctx context.Context, task Task, userID string, steps []step) (*ChatResult, error) {
	out, err := r.runChain(ctx, task, userID, steps)
	if err != nil {
		return nil, err
	}
	// Step names may carry a ":complex"/":simple" chain-position label;
	// Provider reports the gateway name alone.
	provider, _, _ := strings.Cut(out.provider, ":")
	return &ChatResult{
		Result:   Result{Provider: provider, IsFallback: out.isFallback},
		Response: out.value.(*gateway.ChatResponse),
	}, nil
}

// StreamResult names which provider is delivering a streamed chat reply.
type StreamResult struct {
	Result
	Chunks <-chan gateway.StreamChunk
}

// StreamChat opens a streaming completion against the first gateway in
// candidates whose Stream call succeeds in establishing the request; a
// gateway's Stream only errors before the first chunk is produced (a
// failed connection or non-2xx response), so falling through here mirrors
// the non-streaming chain's per-step fallthrough without needing to
// recover mid-stream. names must be the same length as candidates and
// gives each its chain-position label, since "primary complex" and
// "primary simple" may be the same gateway instance.
func (r *Router) StreamChat(ctx context.Context, task Task, userID string, names []string, candidates []gateway.ChatGateway, reqs []gateway.ChatRequest) (*StreamResult, error) {
	attempted := make([]string, 0, len(candidates))
	var lastErr error
	for i, gw := range candidates {
		attempted = append(attempted, names[i])
		ch, err := gw.Stream(ctx, reqs[i])
		if err != nil {
			lastErr = err
			r.logUsageOnly(ctx, task, userID, names[i], "failure", err)
			continue
		}
		r.logUsageOnly(ctx, task, userID, names[i], "success", nil)
		provider, _, _ := strings.Cut(names[i], ":")
		return &StreamResult{Result: Result{Provider: provider, IsFallback: i > 0}, Chunks: ch}, nil
	}
	return nil, &AIRouterError{Task: task, AttemptedProviders: attempted, Last: lastErr}
}

// EmbedResult is the outcome of TaskEmbedding.
type EmbedResult struct {
	Result
	Vectors [][]float64
}

// Embed runs the embedding chain: Embedding only, no fallback. Embedding
// vectors from different vendors/models have different dimensions, so
// there's no viable cross-vendor substitute to fall back to.
func (r *Router) Embed(ctx context.Context, userID string, provider embedding.Provider, documents []string) (*EmbedResult, error) {
	steps := []step{
		{name: provider.Name(), call: func(ctx context.Context) (any, error) { return provider.EmbedDocuments(ctx, documents) }},
	}
	out, err := r.runChain(ctx, TaskEmbedding, userID, steps)
	if err != nil {
		return nil, err
	}
	return &EmbedResult{
		Result:  Result{Provider: out.provider, IsFallback: out.isFallback},
		Vectors: out.value.([][]float64),
	}, nil
}
