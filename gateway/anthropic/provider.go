// Package claude implements gateway.ChatGateway against the Anthropic
// Messages API. It is the conversational primary gateway: Claude's
// persona continuity and plant-domain reasoning are preferred over the
// OpenAI-compatible fallback for as long as Claude answers successfully.
package claude

import (
	"bufio"
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

// Config holds the Claude gateway's connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider implements gateway.ChatGateway for Anthropic Claude.
//
// Claude's API differs from OpenAI's in several ways this adapter hides
// from callers: authentication uses the x-api-key header rather than a
// Bearer token, the system prompt travels as its own top-level field
// rather than a message with role "system", and streaming uses named SSE
// events rather than bare data lines.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New creates a Claude gateway.
func New(cfg Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second // Claude responses can run long
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *Provider) Name() string { return "claude" }

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	StopSeq     []string        `json:"stop_sequences,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeResponse struct {
	ID           string          `json:"id"`
	Role         string          `json:"role"`
	Content      []claudeContent `json:"content"`
	Model        string          `json:"model"`
	StopReason   string          `json:"stop_reason"`
	StopSequence string          `json:"stop_sequence,omitempty"`
	Usage        *claudeUsage    `json:"usage,omitempty"`
}

type claudeStreamEvent struct {
	Type    string          `json:"type"`
	Index   int             `json:"index,omitempty"`
	Delta   *claudeDelta    `json:"delta,omitempty"`
	Message *claudeResponse `json:"message,omitempty"`
	Usage   *claudeUsage    `json:"usage,omitempty"`
}

type claudeDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type claudeErrorResp struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// convertMessages splits out the system prompt (Claude wants it separate)
// and maps the rest straight across; Claude requires strict user/assistant
// alternation, which the caller's message history is expected to satisfy.
func convertMessages(msgs []types.Message) (string, []claudeMessage) {
	var system string
	var out []claudeMessage
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		if m.Content == "" {
			continue
		}
		out = append(out, claudeMessage{
			Role:    string(m.Role),
			Content: []claudeContent{{Type: "text", Text: m.Content}},
		})
	}
	return system, out
}

func (p *Provider) Complete(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatResponse, error) {
	system, messages := convertMessages(req.Messages)

	body := claudeRequest{
		Model:       chooseModel(req.Model, p.cfg.Model),
		Messages:    messages,
		System:      system,
		MaxTokens:   chooseMaxTokens(req.MaxTokens),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeq:     req.Stop,
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapClaudeError(resp.StatusCode, readClaudeErrMsg(resp.Body), p.Name())
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}

	return toChatResponse(cr, p.Name()), nil
}

func (p *Provider) Stream(ctx context.Context, req gateway.ChatRequest) (<-chan gateway.StreamChunk, error) {
	system, messages := convertMessages(req.Messages)

	body := claudeRequest{
		Model:     chooseModel(req.Model, p.cfg.Model),
		Messages:  messages,
		System:    system,
		MaxTokens: chooseMaxTokens(req.MaxTokens),
		Stream:    true,
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, mapClaudeError(resp.StatusCode, readClaudeErrMsg(resp.Body), p.Name())
	}

	ch := make(chan gateway.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		reader := bufio.NewReader(resp.Body)

		var currentID, currentModel string

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					ch <- gateway.StreamChunk{Err: types.NewError(types.ErrUpstreamError, err.Error()).
						WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())}
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "event:") {
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event claudeStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				ch <- gateway.StreamChunk{Err: types.NewError(types.ErrUpstreamError, err.Error()).
					WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())}
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					currentID = event.Message.ID
					currentModel = event.Message.Model
				}
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" {
					ch <- gateway.StreamChunk{ID: currentID, Provider: p.Name(), Model: currentModel, Delta: event.Delta.Text}
				}
			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					ch <- gateway.StreamChunk{ID: currentID, Provider: p.Name(), Model: currentModel, Finish: event.Delta.StopReason}
				}
			case "message_stop":
				if event.Usage != nil {
					ch <- gateway.StreamChunk{
						ID: currentID, Provider: p.Name(), Model: currentModel,
						Usage: &types.TokenUsage{
							PromptTokens:     event.Usage.InputTokens,
							CompletionTokens: event.Usage.OutputTokens,
							TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
						},
					}
				}
				return
			}
		}
	}()

	return ch, nil
}

func toChatResponse(cr claudeResponse, provider string) *gateway.ChatResponse {
	var text strings.Builder
	for _, c := range cr.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	resp := &gateway.ChatResponse{
		ID:       cr.ID,
		Provider: provider,
		Model:    cr.Model,
		Message:  types.NewAssistantMessage(text.String()),
		Finish:   cr.StopReason,
	}
	if cr.Usage != nil {
		resp.Usage = types.TokenUsage{
			PromptTokens:     cr.Usage.InputTokens,
			CompletionTokens: cr.Usage.OutputTokens,
			TotalTokens:      cr.Usage.InputTokens + cr.Usage.OutputTokens,
		}
	}
	return resp
}

func readClaudeErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp claudeErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
	}
	return string(data)
}

// mapClaudeError reuses the shared status classifier and overrides the one
// status code that means something different for Claude: 529 is Claude's
// own "overloaded", not a generic gateway code.
func mapClaudeError(status int, msg, provider string) *types.Error {
	if status == 529 {
		return types.NewError(types.ErrModelOverloaded, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	}
	return gateway.ClassifyHTTPStatus(status, msg, provider)
}

func chooseModel(reqModel, defaultModel string) string {
	if reqModel != "" {
		return reqModel
	}
	if defaultModel != "" {
		return defaultModel
	}
	return "claude-3-5-sonnet-20241022"
}

func chooseMaxTokens(reqMax int) int {
	if reqMax > 0 {
		return reqMax
	}
	return 4096
}
