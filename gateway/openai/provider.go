// Package openai implements gateway.ChatGateway against an
// OpenAI-compatible chat completions endpoint. It is the conversational
// fallback gateway: the Router falls through to it after the Claude
// steps of the chat-complex/chat-simple chains fail, whether or not their
// error was retryable.
package openai

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

// Config holds the OpenAI-compatible gateway's connection settings. BaseURL
// is overridable so the same adapter can point at Azure OpenAI or any other
// OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider implements gateway.ChatGateway for OpenAI-compatible APIs.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New creates an OpenAI-compatible chat gateway.
func New(cfg Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *Provider) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        chatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type streamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage"`
}

type errorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func convertMessages(msgs []types.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func (p *Provider) Complete(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatResponse, error) {
	body := chatRequest{
		Model:       chooseModel(req.Model, p.cfg.Model),
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))

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
		return nil, gateway.ClassifyHTTPStatus(resp.StatusCode, readErrMsg(resp.Body), p.Name())
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	if len(cr.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "empty choices").WithProvider(p.Name())
	}

	return &gateway.ChatResponse{
		ID:       cr.ID,
		Provider: p.Name(),
		Model:    cr.Model,
		Message:  types.NewAssistantMessage(cr.Choices[0].Message.Content),
		Finish:   cr.Choices[0].FinishReason,
		Usage: types.TokenUsage{
			PromptTokens:     cr.Usage.PromptTokens,
			CompletionTokens: cr.Usage.CompletionTokens,
			TotalTokens:      cr.Usage.TotalTokens,
		},
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req gateway.ChatRequest) (<-chan gateway.StreamChunk, error) {
	body := chatRequest{
		Model:    chooseModel(req.Model, p.cfg.Model),
		Messages: convertMessages(req.Messages),
		Stream:   true,
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))

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
		return nil, gateway.ClassifyHTTPStatus(resp.StatusCode, readErrMsg(resp.Body), p.Name())
	}

	ch := make(chan gateway.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		reader := bufio.NewReader(resp.Body)

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
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var sc streamChunk
			if err := json.Unmarshal([]byte(data), &sc); err != nil {
				ch <- gateway.StreamChunk{Err: types.NewError(types.ErrUpstreamError, err.Error()).
					WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())}
				return
			}
			if len(sc.Choices) > 0 {
				c := sc.Choices[0]
				ch <- gateway.StreamChunk{ID: sc.ID, Provider: p.Name(), Model: sc.Model, Delta: c.Delta.Content, Finish: c.FinishReason}
			}
			if sc.Usage != nil {
				ch <- gateway.StreamChunk{ID: sc.ID, Provider: p.Name(), Model: sc.Model, Usage: &types.TokenUsage{
					PromptTokens:     sc.Usage.PromptTokens,
					CompletionTokens: sc.Usage.CompletionTokens,
					TotalTokens:      sc.Usage.TotalTokens,
				}}
			}
		}
	}()

	return ch, nil
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var er errorResp
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	return string(data)
}

func chooseModel(reqModel, defaultModel string) string {
	if reqModel != "" {
		return reqModel
	}
	if defaultModel != "" {
		return defaultModel
	}
	return "gpt-4o-mini"
}
