package gateway

import (
	"context"

	"github.com/greenleaf-ai/core/types"
)

// ChatRequest is the vendor-neutral request every conversational gateway
// (anthropic, openai) accepts.
type ChatRequest struct {
	Model       string
	Messages    []types.Message
	Temperature float32
	TopP        float32
	MaxTokens   int
	Stop        []string
	Stream      bool
}

// ChatResponse is the vendor-neutral reply from a completed (non-streamed)
// chat call.
type ChatResponse struct {
	ID       string
	Provider string
	Model    string
	Message  types.Message
	Usage    types.TokenUsage
	Finish   string
}

// StreamChunk is one incremental piece of a streamed chat reply.
type StreamChunk struct {
	ID       string
	Provider string
	Model    string
	Delta    string // text appended this chunk
	Finish   string // non-empty on the final chunk
	Usage    *types.TokenUsage
	Err      error
}

// ChatGateway is implemented by every conversational vendor adapter.
type ChatGateway interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// IdentifyRequest asks a plant identification gateway to name the species
// in one or more photos of the same plant.
type IdentifyRequest struct {
	ImagesBase64 []string // data-URI or bare base64 payloads
	Organs       []string // optional per-image organ hint: "leaf", "flower", "fruit", "bark"
}

// IdentifySuggestion is one candidate species match.
type IdentifySuggestion struct {
	ScientificName  string
	CommonNames     []string
	Probability     float64 // 0..1
	ProviderID      string  // the vendor's internal species id, if any
	SimilarImageURL string  // top similar reference image, if the vendor supplies one
}

// IdentifyResponse is a ranked list of candidate species, most likely first.
type IdentifyResponse struct {
	Provider    string
	Suggestions []IdentifySuggestion
}

// IdentifyGateway is implemented by the plant identification vendor adapter.
type IdentifyGateway interface {
	Name() string
	Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error)
}

// VisionHealthRequest asks a vision gateway to assess a plant photo for
// signs of disease, pest damage, or nutrient deficiency.
type VisionHealthRequest struct {
	ImageBase64 string
	SpeciesHint string // scientific name, if already known
	Notes       string // user-supplied symptom description
}

// VisionHealthIssue is one diagnosed condition with a confidence score.
type VisionHealthIssue struct {
	Name       string
	Confidence float64
	Treatment  []string // ordered suggested treatment steps
}

// VisionHealthResponse is the ranked list of issues a vision gateway found.
type VisionHealthResponse struct {
	Provider string
	Healthy  bool
	Issues   []VisionHealthIssue
}

// VisionGateway is implemented by the vision-based health assessment vendor.
type VisionGateway interface {
	Name() string
	AssessHealth(ctx context.Context, req VisionHealthRequest) (*VisionHealthResponse, error)
}
