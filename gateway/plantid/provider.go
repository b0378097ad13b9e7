// Package plantid implements gateway.IdentifyGateway and gateway.VisionGateway
// against a plant.id style API: one or more photos in, ranked species
// suggestions out (each carrying a confidence score and optional taxonomy
// detail) for identification, or a disease/pest list for health assessment.
package plantid

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

// Config holds the plant.id-style gateway's connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider implements gateway.IdentifyGateway and gateway.VisionGateway.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New creates a plant identification gateway.
func New(cfg Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.plant.id"
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *Provider) Name() string { return "plant-id" }

type identifyRequestBody struct {
	Images       []string `json:"images"`
	Organs       []string `json:"organs,omitempty"`
	Similarities bool     `json:"similar_images"`
}

type suggestionDetails struct {
	CommonNames []string `json:"common_names"`
	Taxonomy    struct {
		Family string `json:"family"`
		Genus  string `json:"genus"`
	} `json:"taxonomy"`
}

type similarImage struct {
	URL string `json:"url"`
}

type suggestion struct {
	Name          string            `json:"name"`
	Probability   float64           `json:"probability"`
	PlantID       string            `json:"id,omitempty"`
	Details       suggestionDetails `json:"plant_details"`
	SimilarImages []similarImage    `json:"similar_images,omitempty"`
}

func (s suggestion) topSimilarImageURL() string {
	if len(s.SimilarImages) == 0 {
		return ""
	}
	return s.SimilarImages[0].URL
}

type classificationResult struct {
	Suggestions []suggestion `json:"suggestions"`
}

type identifyResponseBody struct {
	ID             string               `json:"id"`
	IsPlant        bool                 `json:"is_plant"`
	Classification classificationResult `json:"classification"`
}

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (p *Provider) Identify(ctx context.Context, req gateway.IdentifyRequest) (*gateway.IdentifyResponse, error) {
	images := make([]string, len(req.ImagesBase64))
	for i, img := range req.ImagesBase64 {
		body, _ := gateway.StripDataURIPrefix(img)
		images[i] = body
	}

	body := identifyRequestBody{Images: images, Organs: req.Organs, Similarities: true}
	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v3/identification", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}
	httpReq.Header.Set("Api-Key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, gateway.ClassifyHTTPStatus(resp.StatusCode, readErrMsg(resp.Body), p.Name())
	}

	var ir identifyResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}

	if !ir.IsPlant || len(ir.Classification.Suggestions) == 0 {
		return nil, types.NewError("NO_MATCH", "no plant match in image").WithProvider(p.Name())
	}

	out := make([]gateway.IdentifySuggestion, 0, len(ir.Classification.Suggestions))
	for _, s := range ir.Classification.Suggestions {
		out = append(out, gateway.IdentifySuggestion{
			ScientificName:  s.Name,
			CommonNames:     s.Details.CommonNames,
			Probability:     s.Probability,
			ProviderID:      s.PlantID,
			SimilarImageURL: s.topSimilarImageURL(),
		})
	}

	return &gateway.IdentifyResponse{Provider: p.Name(), Suggestions: out}, nil
}

type healthRequestBody struct {
	Images []string `json:"images"`
}

type healthAssessment struct {
	IsHealthy bool      `json:"is_healthy"`
	Diseases  []disease `json:"diseases"`
}

type disease struct {
	Name        string            `json:"name"`
	Probability float64           `json:"probability"`
	Details     healthIssueDetail `json:"disease_details"`
}

type healthIssueDetail struct {
	Treatment treatmentOptions `json:"treatment"`
}

type treatmentOptions struct {
	Biological []string `json:"biological"`
	Chemical   []string `json:"chemical"`
}

type healthResponseBody struct {
	ID               string           `json:"id"`
	IsPlant          bool             `json:"is_plant"`
	HealthAssessment healthAssessment `json:"health_assessment"`
}

// AssessHealth implements gateway.VisionGateway against plant.id's health
// assessment endpoint, the first step of the health_assessment chain.
func (p *Provider) AssessHealth(ctx context.Context, req gateway.VisionHealthRequest) (*gateway.VisionHealthResponse, error) {
	body, _ := gateway.StripDataURIPrefix(req.ImageBase64)
	reqBody := healthRequestBody{Images: []string{body}}
	payload, _ := json.Marshal(reqBody)
	endpoint := fmt.Sprintf("%s/v3/health_assessment", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}
	httpReq.Header.Set("Api-Key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, gateway.ClassifyHTTPStatus(resp.StatusCode, readErrMsg(resp.Body), p.Name())
	}

	var hr healthResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}

	issues := make([]gateway.VisionHealthIssue, 0, len(hr.HealthAssessment.Diseases))
	for _, d := range hr.HealthAssessment.Diseases {
		issues = append(issues, gateway.VisionHealthIssue{
			Name:       d.Name,
			Confidence: d.Probability,
			Treatment:  append(append([]string{}, d.Details.Treatment.Biological...), d.Details.Treatment.Chemical...),
		})
	}

	return &gateway.VisionHealthResponse{
		Provider: p.Name(),
		Healthy:  hr.HealthAssessment.IsHealthy,
		Issues:   issues,
	}, nil
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var er errorResp
	if err := json.Unmarshal(data, &er); err == nil && er.Message != "" {
		return er.Message
	}
	return string(data)
}
