// Package chat implements the chat pipeline: assemble context, pick a
// model tier, submit to the Router, persist the turn, and opportunistically
// extract a semantic memory from the reply. ChatStream follows the same
// shape but surfaces chunks as they arrive and only persists on a clean
// finish.
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenleaf-ai/core/apperr"
	"github.com/greenleaf-ai/core/contextassembler"
	"github.com/greenleaf-ai/core/gateway"
	"github.com/greenleaf-ai/core/gateway/embedding"
	"github.com/greenleaf-ai/core/ledger"
	"github.com/greenleaf-ai/core/repository"
	"github.com/greenleaf-ai/core/router"
	"github.com/greenleaf-ai/core/types"
)

// Tier is the model tier a turn is routed to.
type Tier string

const (
	TierSimple  Tier = "simple"
	TierComplex Tier = "complex"
)

const (
	complexQueryCharThreshold       = 400
	complexIssueConfidenceThreshold = 0.6
	maxMemoryExcerptChars           = 1000
)

const persona = "You are a knowledgeable, encouraging plant care assistant. Answer plainly, favor concrete care steps over caveats, and ask at most one clarifying question when information is missing."

// Result is the shaped response to a non-streaming chat turn.
type Result struct {
	SessionID         string
	Message           string
	ActionItems       []string
	FollowUpQuestions []string
	ContextUsed       string
	Provider          string
	Model             string
}

// Pipeline wires the context assembler, chat gateways, and repository
// together.
type Pipeline struct {
	assembler *contextassembler.Assembler
	plants    repository.Plants
	issues    repository.HealthIssues
	sessions  repository.Sessions
	memories  repository.Memories
	router    *router.Router
	embedding embedding.Provider

	primaryComplex gateway.ChatGateway
	primarySimple  gateway.ChatGateway
	fallback       gateway.ChatGateway

	costCalc *ledger.CostCalculator
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Pipeline.
func New(
	assembler *contextassembler.Assembler,
	plants repository.Plants, issues repository.HealthIssues, sessions repository.Sessions, memories repository.Memories,
	r *router.Router, embedder embedding.Provider,
	primaryComplex, primarySimple, fallback gateway.ChatGateway,
	costCalc *ledger.CostCalculator, logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if costCalc == nil {
		costCalc = ledger.NewCostCalculator()
	}
	return &Pipeline{
		assembler: assembler, plants: plants, issues: issues, sessions: sessions, memories: memories,
		router: r, embedding: embedder,
		primaryComplex: primaryComplex, primarySimple: primarySimple, fallback: fallback,
		costCalc: costCalc, logger: logger, now: time.Now,
	}
}

// Chat builds context, runs the turn against the Router, persists the
// exchange, and returns the shaped reply. sessionID, plantID may be empty;
// a new session is created when sessionID is empty.
func (p *Pipeline) Chat(ctx context.Context, userID, query, plantID, sessionID string) (*Result, error) {
	assembled, err := p.assembler.Assemble(ctx, userID, query, plantID, sessionID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to assemble chat context").WithCause(err)
	}

	tier := p.decideTier(ctx, query, plantID)
	req := p.buildRequest(assembled, query)

	chatResult, err := p.submit(ctx, userID, tier, req)
	if err != nil {
		var routerErr *router.AIRouterError
		if errors.As(err, &routerErr) {
			return nil, apperr.New(apperr.CodeAIUnavailable, "chat service unavailable").
				WithDetails(map[string]any{"attemptedProviders": routerErr.AttemptedProviders}).
				WithCause(err)
		}
		return nil, apperr.New(apperr.CodeInternal, "chat failed").WithCause(err)
	}

	sid, err := p.ensureSession(ctx, userID, plantID, sessionID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to open session").WithCause(err)
	}

	assistantContent := chatResult.Response.Message.Content
	actionItems := extractActionItems(assistantContent)

	now := p.now()
	userRow := types.SessionMessage{ID: uuid.NewString(), SessionID: sid, Role: types.RoleUser, Content: query, CreatedAt: now}
	assistantRow := types.SessionMessage{
		ID: uuid.NewString(), SessionID: sid, Role: types.RoleAssistant, Content: assistantContent,
		PromptTokens: chatResult.Response.Usage.PromptTokens, CompletionTokens: chatResult.Response.Usage.CompletionTokens,
		CreatedAt: now,
	}
	if len(actionItems) > 0 {
		assistantRow.Extracted = &types.ExtractedData{ActionItems: actionItems}
	}

	cost := p.costCalc.Calculate(chatResult.Provider, chatResult.Response.Model, chatResult.Response.Usage.PromptTokens, chatResult.Response.Usage.CompletionTokens)
	delta := repository.SessionDelta{
		MessageCount: 2, PromptTokens: chatResult.Response.Usage.PromptTokens, CompletionTokens: chatResult.Response.Usage.CompletionTokens,
		EstimatedCost: cost, ModelsUsed: []string{chatResult.Response.Model},
	}
	if err := p.sessions.CreateMessageAndUpdateSession(ctx, sid, []types.SessionMessage{userRow, assistantRow}, delta); err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to persist chat turn").WithCause(err)
	}

	p.extractMemory(ctx, userID, sid, assistantContent)

	return &Result{
		SessionID: sid, Message: assistantContent, ActionItems: actionItems,
		FollowUpQuestions: extractFollowUpQuestions(assistantContent),
		ContextUsed:       summarizeContext(assembled),
		Provider:          chatResult.Provider, Model: chatResult.Response.Model,
	}, nil
}

// ChatStream mirrors Chat but streams the reply as it is produced. Session
// aggregates and messages are persisted only once the stream completes
// without error; a mid-stream failure discards the draft assistant
// message entirely. The returned session id is valid immediately, even
// before the stream finishes persisting.
func (p *Pipeline) ChatStream(ctx context.Context, userID, query, plantID, sessionID string) (string, <-chan gateway.StreamChunk, error) {
	assembled, err := p.assembler.Assemble(ctx, userID, query, plantID, sessionID)
	if err != nil {
		return "", nil, apperr.New(apperr.CodeInternal, "failed to assemble chat context").WithCause(err)
	}

	tier := p.decideTier(ctx, query, plantID)
	req := p.buildRequest(assembled, query)

	task, names, candidates := p.chainFor(tier)
	reqs := make([]gateway.ChatRequest, len(candidates))
	for i := range reqs {
		reqs[i] = req
	}

	streamResult, err := p.router.StreamChat(ctx, task, userID, names, candidates, reqs)
	if err != nil {
		var routerErr *router.AIRouterError
		if errors.As(err, &routerErr) {
			return "", nil, apperr.New(apperr.CodeAIUnavailable, "chat service unavailable").
				WithDetails(map[string]any{"attemptedProviders": routerErr.AttemptedProviders}).
				WithCause(err)
		}
		return "", nil, apperr.New(apperr.CodeInternal, "chat failed").WithCause(err)
	}

	sid, err := p.ensureSession(ctx, userID, plantID, sessionID)
	if err != nil {
		return "", nil, apperr.New(apperr.CodeInternal, "failed to open session").WithCause(err)
	}

	out := make(chan gateway.StreamChunk)
	go p.drainAndPersist(ctx, userID, sid, query, streamResult, out)
	return sid, out, nil
}

func (p *Pipeline) drainAndPersist(ctx context.Context, userID, sessionID, query string, streamResult *router.StreamResult, out chan<- gateway.StreamChunk) {
	defer close(out)

	var content strings.Builder
	var usage types.TokenUsage
	model := ""
	failed := false

	for chunk := range streamResult.Chunks {
		out <- chunk
		if chunk.Err != nil {
			failed = true
			continue
		}
		content.WriteString(chunk.Delta)
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
	}

	if failed || content.Len() == 0 {
		p.logger.Warn("chat stream ended without a usable reply, discarding draft message", zap.String("sessionId", sessionID))
		return
	}

	assistantContent := content.String()
	actionItems := extractActionItems(assistantContent)

	now := p.now()
	userRow := types.SessionMessage{ID: uuid.NewString(), SessionID: sessionID, Role: types.RoleUser, Content: query, CreatedAt: now}
	assistantRow := types.SessionMessage{
		ID: uuid.NewString(), SessionID: sessionID, Role: types.RoleAssistant, Content: assistantContent,
		PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens, CreatedAt: now,
	}
	if len(actionItems) > 0 {
		assistantRow.Extracted = &types.ExtractedData{ActionItems: actionItems}
	}

	cost := p.costCalc.Calculate(streamResult.Provider, model, usage.PromptTokens, usage.CompletionTokens)
	delta := repository.SessionDelta{
		MessageCount: 2, PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens,
		EstimatedCost: cost, ModelsUsed: []string{model},
	}
	if err := p.sessions.CreateMessageAndUpdateSession(ctx, sessionID, []types.SessionMessage{userRow, assistantRow}, delta); err != nil {
		p.logger.Warn("failed to persist streamed chat turn", zap.Error(err), zap.String("sessionId", sessionID))
		return
	}

	p.extractMemory(ctx, userID, sessionID, assistantContent)
}

func (p *Pipeline) ensureSession(ctx context.Context, userID, plantID, sessionID string) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}
	now := p.now()
	sid := uuid.NewString()
	session := &types.ConversationSession{ID: sid, UserID: userID, PlantID: plantID, CreatedAt: now, UpdatedAt: now}
	if err := p.sessions.CreateSession(ctx, session); err != nil {
		return "", err
	}
	return sid, nil
}

func (p *Pipeline) buildRequest(assembled *contextassembler.Assembled, query string) gateway.ChatRequest {
	systemContent := persona
	if assembled.UserFacts != "" {
		systemContent = persona + "\n\nWhat we know about this user:\n" + assembled.UserFacts
	}
	userContent := assembled.Render() + query

	return gateway.ChatRequest{
		Messages: []types.Message{
			types.NewSystemMessage(systemContent),
			types.NewUserMessage(userContent),
		},
	}
}

func (p *Pipeline) submit(ctx context.Context, userID string, tier Tier, req gateway.ChatRequest) (*router.ChatResult, error) {
	if tier == TierComplex {
		return p.router.ChatComplex(ctx, userID, p.primaryComplex, p.primarySimple, p.fallback, req, req)
	}
	return p.router.ChatSimple(ctx, userID, p.primarySimple, p.fallback, req)
}

func (p *Pipeline) chainFor(tier Tier) (router.Task, []string, []gateway.ChatGateway) {
	if tier == TierComplex {
		return router.TaskChatComplex,
			[]string{p.primaryComplex.Name() + ":complex", p.primarySimple.Name() + ":simple", p.fallback.Name()},
			[]gateway.ChatGateway{p.primaryComplex, p.primarySimple, p.fallback}
	}
	return router.TaskChatSimple, []string{p.primarySimple.Name(), p.fallback.Name()}, []gateway.ChatGateway{p.primarySimple, p.fallback}
}

// decideTier applies the chat tier escalation rule. Failures reading
// plant or issue state default to the simple tier rather than failing
// the chat turn; routing cheaper is the safe direction to fail in.
func (p *Pipeline) decideTier(ctx context.Context, query, plantID string) Tier {
	if len(query) > complexQueryCharThreshold {
		return TierComplex
	}
	if plantID == "" || p.plants == nil {
		return TierSimple
	}
	plant, err := p.plants.GetPlant(ctx, plantID)
	if err != nil || plant == nil {
		return TierSimple
	}
	if plant.CurrentHealth == types.HealthStruggling || plant.CurrentHealth == types.HealthCritical {
		return TierComplex
	}
	if p.issues == nil {
		return TierSimple
	}
	issues, err := p.issues.ListActiveAndTreating(ctx, plantID, 10)
	if err != nil {
		return TierSimple
	}
	for _, issue := range issues {
		if issue.Confidence >= complexIssueConfidenceThreshold {
			return TierComplex
		}
	}
	return TierSimple
}

var diagnosisMarker = regexp.MustCompile(`(?i)\b(diagnos(is|ed)|root cause|likely (cause|culprit))\b`)
var outcomeMarker = regexp.MustCompile(`(?i)\b(outcome|resolved|recovered|bounced back|worked well)\b`)

// detectMemorySegment applies the extraction heuristic: a reply is
// memory-worthy if it contains an explicit diagnosis or outcome marker.
func detectMemorySegment(content string) (types.MemoryContentType, bool) {
	if diagnosisMarker.MatchString(content) {
		return types.MemoryDiagnosis, true
	}
	if outcomeMarker.MatchString(content) {
		return types.MemoryOutcome, true
	}
	return "", false
}

// extractMemory embeds and stores a semantic memory for a diagnosis- or
// outcome-bearing reply. Failures are logged only: memory extraction is
// never allowed to fail a chat turn that already succeeded.
func (p *Pipeline) extractMemory(ctx context.Context, userID, sessionID, content string) {
	if p.router == nil || p.embedding == nil || p.memories == nil {
		return
	}
	contentType, ok := detectMemorySegment(content)
	if !ok {
		return
	}
	excerpt := content
	if len(excerpt) > maxMemoryExcerptChars {
		excerpt = excerpt[:maxMemoryExcerptChars]
	}

	embedResult, err := p.router.Embed(ctx, userID, p.embedding, []string{excerpt})
	if err != nil || len(embedResult.Vectors) == 0 {
		p.logger.Warn("memory extraction embed failed", zap.Error(err), zap.String("sessionId", sessionID))
		return
	}

	mem := &types.SemanticMemory{
		ID: uuid.NewString(), UserID: userID, SourceSessionID: sessionID,
		Embedding: embedResult.Vectors[0], Excerpt: excerpt, ContentType: contentType,
		RelevanceScore: 1.0, CreatedAt: p.now(),
	}
	if err := p.memories.InsertMemory(ctx, mem); err != nil {
		p.logger.Warn("memory insert failed", zap.Error(err), zap.String("sessionId", sessionID))
	}
}

var actionItemLine = regexp.MustCompile(`(?m)^\s*[-*]\s+(.+)$`)

func extractActionItems(content string) []string {
	matches := actionItemLine.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	items := make([]string, 0, len(matches))
	for _, m := range matches {
		items = append(items, strings.TrimSpace(m[1]))
	}
	return items
}

func extractFollowUpQuestions(content string) []string {
	var qs []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "?") {
			qs = append(qs, line)
		}
	}
	return qs
}

func summarizeContext(a *contextassembler.Assembled) string {
	var parts []string
	if a.UserFacts != "" {
		parts = append(parts, "user facts")
	}
	if a.PlantFacts != "" {
		parts = append(parts, "plant facts")
	}
	if len(a.History) > 0 {
		parts = append(parts, fmt.Sprintf("%d history messages", len(a.History)))
	}
	if len(a.Memories) > 0 {
		parts = append(parts, fmt.Sprintf("%d memories", len(a.Memories)))
	}
	if len(parts) == 0 {
		return "no context available"
	}
	return strings.Join(parts, ", ")
}
