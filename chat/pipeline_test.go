package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenleaf-ai/core/apperr"
	"github.com/greenleaf-ai/core/contextassembler"
	"github.com/greenleaf-ai/core/gateway"
	"github.com/greenleaf-ai/core/gateway/embedding"
	"github.com/greenleaf-ai/core/ledger"
	"github.com/greenleaf-ai/core/repository"
	"github.com/greenleaf-ai/core/router"
	"github.com/greenleaf-ai/core/types"
)

type fakeUsers struct{}

func (fakeUsers) GetUser(ctx context.Context, id string) (*types.User, error) { return nil, nil }

type fakePlants struct {
	plant *types.Plant
	err   error
}

func (f fakePlants) CreatePlant(ctx context.Context, p *types.Plant) error { return nil }
func (f fakePlants) GetPlant(ctx context.Context, id string) (*types.Plant, error) {
	return f.plant, f.err
}
func (f fakePlants) ListPlantsByUser(ctx context.Context, userID string) ([]types.Plant, error) {
	return nil, nil
}
func (f fakePlants) UpdatePlant(ctx context.Context, p *types.Plant) error            { return nil }
func (f fakePlants) DetachSessionsForPlant(ctx context.Context, plantID string) error { return nil }

type fakeIssues struct {
	issues []types.HealthIssue
	err    error
}

func (f fakeIssues) CreateHealthIssue(ctx context.Context, h *types.HealthIssue) error { return nil }
func (f fakeIssues) UpdateHealthIssue(ctx context.Context, h *types.HealthIssue) error { return nil }
func (f fakeIssues) ListActiveAndTreating(ctx context.Context, plantID string, limit int) ([]types.HealthIssue, error) {
	return f.issues, f.err
}

type fakeSessions struct {
	created      []types.ConversationSession
	persisted    []types.SessionMessage
	lastDelta    repository.SessionDelta
	persistCalls int
	createErr    error
	persistErr   error
}

func (f *fakeSessions) GetSession(ctx context.Context, id string) (*types.ConversationSession, error) {
	return nil, nil
}
func (f *fakeSessions) CreateSession(ctx context.Context, s *types.ConversationSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *s)
	return nil
}
func (f *fakeSessions) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]types.SessionMessage, error) {
	return nil, nil
}
func (f *fakeSessions) CreateMessageAndUpdateSession(ctx context.Context, sessionID string, messages []types.SessionMessage, delta repository.SessionDelta) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persistCalls++
	f.persisted = append(f.persisted, messages...)
	f.lastDelta = delta
	return nil
}

type fakeMemories struct {
	inserted []types.SemanticMemory
}

func (f *fakeMemories) InsertMemory(ctx context.Context, m *types.SemanticMemory) error {
	f.inserted = append(f.inserted, *m)
	return nil
}
func (f *fakeMemories) ListByUser(ctx context.Context, userID string) ([]types.SemanticMemory, error) {
	return nil, nil
}

type fakeChatGateway struct {
	name string
	resp *gateway.ChatResponse
	err  error

	chunks    []gateway.StreamChunk
	streamErr error
}

func (f *fakeChatGateway) Name() string { return f.name }
func (f *fakeChatGateway) Complete(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatResponse, error) {
	return f.resp, f.err
}
func (f *fakeChatGateway) Stream(ctx context.Context, req gateway.ChatRequest) (<-chan gateway.StreamChunk, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan gateway.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type fakeEmbedding struct{}

func (fakeEmbedding) Name() string { return "fake-embedding" }
func (fakeEmbedding) Embed(ctx context.Context, req *embedding.EmbeddingRequest) (*embedding.EmbeddingResponse, error) {
	return nil, nil
}
func (fakeEmbedding) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}
func (fakeEmbedding) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i := range documents {
		out[i] = []float64{0.1, 0.2}
	}
	return out, nil
}

func newTestRouter() *router.Router {
	l := ledger.New(nil, noopWriter{})
	return router.New(l, router.DefaultProviderTimeouts(), nil)
}

type noopWriter struct{}

func (noopWriter) AppendUsageLogEntry(ctx context.Context, entry types.UsageLogEntry) error {
	return nil
}
func (noopWriter) SumMonthlyCost(ctx context.Context, userID string, month time.Time) (float64, error) {
	return 0, nil
}
func (noopWriter) CountMonthlySuccess(ctx context.Context, userID, task string, monthStart time.Time) (int, error) {
	return 0, nil
}

func newTestPipeline(plants fakePlants, issues fakeIssues, sessions *fakeSessions, memories *fakeMemories, primaryComplex, primarySimple, fallback *fakeChatGateway) *Pipeline {
	assembler := contextassembler.New(fakeUsers{}, plants, issues, sessions, memories, nil, nil, nil)
	r := newTestRouter()
	return New(assembler, plants, issues, sessions, memories, r, fakeEmbedding{}, primaryComplex, primarySimple, fallback, ledger.NewCostCalculator(), nil)
}

func chatResp(provider, model, content string) *gateway.ChatResponse {
	return &gateway.ChatResponse{
		Provider: provider, Model: model,
		Message: types.NewAssistantMessage(content),
		Usage:   types.TokenUsage{PromptTokens: 10, CompletionTokens: 20},
	}
}

func TestChat_UsesSimpleTierForShortQueryNoIssues(t *testing.T) {
	sessions := &fakeSessions{}
	memories := &fakeMemories{}
	simple := &fakeChatGateway{name: "claude-simple", resp: chatResp("claude-simple", "claude-haiku", "Water it weekly.")}
	complex := &fakeChatGateway{name: "claude-complex"}
	fallback := &fakeChatGateway{name: "openai"}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, memories, complex, simple, fallback)

	result, err := p.Chat(context.Background(), "user-1", "How often should I water my fig?", "", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-simple", result.Provider)
	assert.Equal(t, "Water it weekly.", result.Message)
	assert.NotEmpty(t, result.SessionID)
	require.Equal(t, 1, sessions.persistCalls)
	assert.Equal(t, 2, sessions.lastDelta.MessageCount)
}

func TestChat_UsesComplexTierForLongQuery(t *testing.T) {
	sessions := &fakeSessions{}
	memories := &fakeMemories{}
	complex := &fakeChatGateway{name: "claude-complex", resp: chatResp("claude-complex", "claude-sonnet", "Detailed diagnosis follows.")}
	simple := &fakeChatGateway{name: "claude-simple"}
	fallback := &fakeChatGateway{name: "openai"}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, memories, complex, simple, fallback)

	longQuery := strings.Repeat("my plant has strange spots on it ", 20)
	result, err := p.Chat(context.Background(), "user-1", longQuery, "", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-complex", result.Provider)
}

func TestChat_UsesComplexTierForStrugglingPlant(t *testing.T) {
	sessions := &fakeSessions{}
	memories := &fakeMemories{}
	complex := &fakeChatGateway{name: "claude-complex", resp: chatResp("claude-complex", "claude-sonnet", "Let's fix this.")}
	simple := &fakeChatGateway{name: "claude-simple"}
	fallback := &fakeChatGateway{name: "openai"}
	plants := fakePlants{plant: &types.Plant{ID: "plant-1", CurrentHealth: types.HealthStruggling}}
	p := newTestPipeline(plants, fakeIssues{}, sessions, memories, complex, simple, fallback)

	result, err := p.Chat(context.Background(), "user-1", "what now", "plant-1", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-complex", result.Provider)
}

func TestChat_UsesComplexTierForHighConfidenceIssue(t *testing.T) {
	sessions := &fakeSessions{}
	memories := &fakeMemories{}
	complex := &fakeChatGateway{name: "claude-complex", resp: chatResp("claude-complex", "claude-sonnet", "Here is the plan.")}
	simple := &fakeChatGateway{name: "claude-simple"}
	fallback := &fakeChatGateway{name: "openai"}
	plants := fakePlants{plant: &types.Plant{ID: "plant-1", CurrentHealth: types.HealthHealthy}}
	issues := fakeIssues{issues: []types.HealthIssue{{ID: "issue-1", PlantID: "plant-1", Confidence: 0.8, Status: types.IssueActive}}}
	p := newTestPipeline(plants, issues, sessions, memories, complex, simple, fallback)

	result, err := p.Chat(context.Background(), "user-1", "what now", "plant-1", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-complex", result.Provider)
}

func TestChat_AIUnavailableWhenChainExhausted(t *testing.T) {
	routerErr := &router.AIRouterError{Task: router.TaskChatSimple, AttemptedProviders: []string{"claude-simple", "openai"}}
	simple := &fakeChatGateway{name: "claude-simple", err: routerErr}
	fallback := &fakeChatGateway{name: "openai", err: routerErr}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, &fakeSessions{}, &fakeMemories{}, &fakeChatGateway{name: "claude-complex"}, simple, fallback)

	_, err := p.Chat(context.Background(), "user-1", "hello", "", "")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeAIUnavailable, appErr.Code)
}

func TestChat_ReusesProvidedSessionID(t *testing.T) {
	sessions := &fakeSessions{}
	simple := &fakeChatGateway{name: "claude-simple", resp: chatResp("claude-simple", "claude-haiku", "ok")}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, &fakeMemories{}, &fakeChatGateway{name: "claude-complex"}, simple, &fakeChatGateway{name: "openai"})

	result, err := p.Chat(context.Background(), "user-1", "hello", "", "session-42")
	require.NoError(t, err)
	assert.Equal(t, "session-42", result.SessionID)
	assert.Empty(t, sessions.created, "an existing session id should not trigger CreateSession")
}

func TestChat_ExtractsMemoryOnDiagnosisMarker(t *testing.T) {
	sessions := &fakeSessions{}
	memories := &fakeMemories{}
	simple := &fakeChatGateway{name: "claude-simple", resp: chatResp("claude-simple", "claude-haiku", "My diagnosis is root rot from overwatering.")}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, memories, &fakeChatGateway{name: "claude-complex"}, simple, &fakeChatGateway{name: "openai"})

	_, err := p.Chat(context.Background(), "user-1", "hello", "", "")
	require.NoError(t, err)
	require.Len(t, memories.inserted, 1)
	assert.Equal(t, types.MemoryDiagnosis, memories.inserted[0].ContentType)
}

func TestChat_SkipsMemoryExtractionWithoutMarker(t *testing.T) {
	sessions := &fakeSessions{}
	memories := &fakeMemories{}
	simple := &fakeChatGateway{name: "claude-simple", resp: chatResp("claude-simple", "claude-haiku", "Water it once a week.")}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, memories, &fakeChatGateway{name: "claude-complex"}, simple, &fakeChatGateway{name: "openai"})

	_, err := p.Chat(context.Background(), "user-1", "hello", "", "")
	require.NoError(t, err)
	assert.Empty(t, memories.inserted)
}

func TestChat_ExtractsActionItemsAndFollowUpQuestions(t *testing.T) {
	sessions := &fakeSessions{}
	content := "Here is the plan:\n- Move it to indirect light\n- Water every 5 days\nDoes your home have a humidifier?"
	simple := &fakeChatGateway{name: "claude-simple", resp: chatResp("claude-simple", "claude-haiku", content)}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, &fakeMemories{}, &fakeChatGateway{name: "claude-complex"}, simple, &fakeChatGateway{name: "openai"})

	result, err := p.Chat(context.Background(), "user-1", "help", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Move it to indirect light", "Water every 5 days"}, result.ActionItems)
	assert.Equal(t, []string{"Does your home have a humidifier?"}, result.FollowUpQuestions)
}

func TestChatStream_PersistsOnSuccessfulCompletion(t *testing.T) {
	sessions := &fakeSessions{}
	memories := &fakeMemories{}
	chunks := []gateway.StreamChunk{
		{Provider: "claude-simple", Model: "claude-haiku", Delta: "Water "},
		{Provider: "claude-simple", Model: "claude-haiku", Delta: "it weekly.", Finish: "stop", Usage: &types.TokenUsage{PromptTokens: 5, CompletionTokens: 8}},
	}
	simple := &fakeChatGateway{name: "claude-simple", chunks: chunks}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, memories, &fakeChatGateway{name: "claude-complex"}, simple, &fakeChatGateway{name: "openai"})

	sid, out, err := p.ChatStream(context.Background(), "user-1", "how often should I water", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sid)

	var received strings.Builder
	for chunk := range out {
		received.WriteString(chunk.Delta)
	}
	assert.Equal(t, "Water it weekly.", received.String())

	require.Eventually(t, func() bool { return sessions.persistCalls == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, sessions.lastDelta.MessageCount)
}

func TestChatStream_DiscardsDraftOnMidStreamError(t *testing.T) {
	sessions := &fakeSessions{}
	chunks := []gateway.StreamChunk{
		{Provider: "claude-simple", Delta: "Partial"},
		{Provider: "claude-simple", Err: assertErr},
	}
	simple := &fakeChatGateway{name: "claude-simple", chunks: chunks}
	p := newTestPipeline(fakePlants{}, fakeIssues{}, sessions, &fakeMemories{}, &fakeChatGateway{name: "claude-complex"}, simple, &fakeChatGateway{name: "openai"})

	_, out, err := p.ChatStream(context.Background(), "user-1", "hello", "", "")
	require.NoError(t, err)
	for range out {
	}

	assert.Never(t, func() bool { return sessions.persistCalls > 0 }, 50*time.Millisecond, time.Millisecond)
}

var assertErr = plainErr("boom")

type plainErr string

func (e plainErr) Error() string { return string(e) }

func TestExtractActionItems_NoneReturnsNil(t *testing.T) {
	assert.Nil(t, extractActionItems("just a plain sentence."))
}

func TestDetectMemorySegment_OutcomeMarker(t *testing.T) {
	contentType, ok := detectMemorySegment("Great news, your plant has fully recovered.")
	require.True(t, ok)
	assert.Equal(t, types.MemoryOutcome, contentType)
}
