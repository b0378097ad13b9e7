// Package vision implements two things that share one vendor call shape:
// gateway.VisionGateway (health assessment) and the Plant Identifier's
// fallback path when plant.id is unavailable. Both talk to a
// Gemini-style multimodal endpoint that returns free-form text; this
// adapter's defining trait is tolerant JSON-from-markdown-fence parsing,
// since the vendor frequently wraps its JSON answer in a ```json fence.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/greenleaf-ai/core/gateway"
	"github.com/greenleaf-ai/core/types"
)

// Config holds the vision gateway's connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider implements gateway.VisionGateway and gateway.IdentifyGateway.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New creates a vision gateway.
func New(cfg Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *Provider) Name() string { return "gemini" }

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResp struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) call(ctx context.Context, prompt string, imagesBase64 []string) (string, error) {
	parts := []geminiPart{{Text: prompt}}
	for _, img := range imagesBase64 {
		body, mime := gateway.StripDataURIPrefix(img)
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mime, Data: body}})
	}

	body := geminiRequest{Contents: []geminiContent{{Parts: parts}}}
	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		var er geminiErrorResp
		msg := string(data)
		if json.Unmarshal(data, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		return "", gateway.ClassifyHTTPStatus(resp.StatusCode, msg, p.Name())
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "empty candidates").WithProvider(p.Name())
	}

	var text strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}

const identifyPrompt = `Identify the plant species in this image. Respond with ONLY a JSON object, no other text: {"scientificName": string, "commonNames": string[], "family": string, "genus": string, "confidence": number between 0 and 1}`

type identifyJSON struct {
	ScientificName string   `json:"scientificName"`
	CommonNames    []string `json:"commonNames"`
	Family         string   `json:"family"`
	Genus          string   `json:"genus"`
	Confidence     float64  `json:"confidence"`
}

// Identify implements gateway.IdentifyGateway as the vision fallback path
// for plant identification. A reply that doesn't parse as JSON never
// errors the request: it yields a single sentinel low-confidence
// suggestion instead, matching plant.id's graceful-degradation contract.
func (p *Provider) Identify(ctx context.Context, req gateway.IdentifyRequest) (*gateway.IdentifyResponse, error) {
	text, err := p.call(ctx, identifyPrompt, req.ImagesBase64)
	if err != nil {
		return nil, err
	}

	raw, ok := gateway.ExtractJSON(text)
	if !ok {
		return &gateway.IdentifyResponse{
			Provider: p.Name(),
			Suggestions: []gateway.IdentifySuggestion{
				{ScientificName: "Unknown", CommonNames: []string{"Unknown"}, Probability: 0},
			},
		}, nil
	}

	var ij identifyJSON
	if err := json.Unmarshal(raw, &ij); err != nil {
		return &gateway.IdentifyResponse{
			Provider: p.Name(),
			Suggestions: []gateway.IdentifySuggestion{
				{ScientificName: "Unknown", CommonNames: []string{"Unknown"}, Probability: 0},
			},
		}, nil
	}

	return &gateway.IdentifyResponse{
		Provider: p.Name(),
		Suggestions: []gateway.IdentifySuggestion{
			{ScientificName: ij.ScientificName, CommonNames: ij.CommonNames, Probability: ij.Confidence},
		},
	}, nil
}

const healthPrompt = `Assess the health of the plant in this image for disease, pest damage, or nutrient deficiency. Respond with ONLY a JSON object, no other text: {"healthy": boolean, "issues": [{"name": string, "confidence": number between 0 and 1, "treatment": string[]}]}`

type healthJSON struct {
	Healthy bool `json:"healthy"`
	Issues  []struct {
		Name       string   `json:"name"`
		Confidence float64  `json:"confidence"`
		Treatment  []string `json:"treatment"`
	} `json:"issues"`
}

// AssessHealth implements gateway.VisionGateway.
func (p *Provider) AssessHealth(ctx context.Context, req gateway.VisionHealthRequest) (*gateway.VisionHealthResponse, error) {
	prompt := healthPrompt
	if req.SpeciesHint != "" {
		prompt += fmt.Sprintf(" The plant is a %s.", req.SpeciesHint)
	}
	if req.Notes != "" {
		prompt += fmt.Sprintf(" The owner reports: %s", req.Notes)
	}

	text, err := p.call(ctx, prompt, []string{req.ImageBase64})
	if err != nil {
		return nil, err
	}

	raw, ok := gateway.ExtractJSON(text)
	if !ok {
		return nil, types.NewError("INVALID_RESPONSE", "vision gateway returned no parseable JSON").WithProvider(p.Name())
	}

	var hj healthJSON
	if err := json.Unmarshal(raw, &hj); err != nil {
		return nil, types.NewError("INVALID_RESPONSE", err.Error()).WithProvider(p.Name())
	}

	issues := make([]gateway.VisionHealthIssue, 0, len(hj.Issues))
	for _, i := range hj.Issues {
		issues = append(issues, gateway.VisionHealthIssue{Name: i.Name, Confidence: i.Confidence, Treatment: i.Treatment})
	}

	return &gateway.VisionHealthResponse{Provider: p.Name(), Healthy: hj.Healthy, Issues: issues}, nil
}
