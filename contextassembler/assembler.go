// Package contextassembler builds the bounded-size context a chat turn
// hands to the model: user facts, the active plant's facts and open
// issues, recent conversation history, and similarity-matched semantic
// memories, each fetched concurrently and trimmed to its own token slice.
package contextassembler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greenleaf-ai/core/gateway/embedding"
	"github.com/greenleaf-ai/core/memory"
	"github.com/greenleaf-ai/core/repository"
	"github.com/greenleaf-ai/core/router"
	"github.com/greenleaf-ai/core/tokenizer"
	"github.com/greenleaf-ai/core/types"
)

// Token budgets per section. They are independent slices, not a shared
// pool: a short user-facts block never lends its headroom to history.
const (
	BudgetUser     = 200
	BudgetPlant    = 500
	BudgetHistory  = 2000
	BudgetMemories = 1000
	BudgetReserve  = 300

	// overBudgetTolerance is how far a trimmed section may still run past
	// its slice before trimming stops; the char/4 estimator is
	// deliberately approximate.
	overBudgetTolerance = 1.10

	semanticSimilarityThreshold = 0.70
	maxHistoryMessages          = 10
	maxActiveIssues             = 3
	maxMemories                 = 5
)

// Assembled is the bounded context for one chat turn.
type Assembled struct {
	UserFacts  string
	PlantFacts string
	History    []types.SessionMessage
	Memories   []memory.Decayed
}

// Render renders the assembled sections into the text block the chat
// pipeline prefixes onto the user's message.
func (a *Assembled) Render() string {
	var b strings.Builder
	if a.UserFacts != "" {
		b.WriteString("User:\n")
		b.WriteString(a.UserFacts)
		b.WriteString("\n\n")
	}
	if a.PlantFacts != "" {
		b.WriteString("Plant:\n")
		b.WriteString(a.PlantFacts)
		b.WriteString("\n\n")
	}
	if len(a.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range a.History {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
	if len(a.Memories) > 0 {
		b.WriteString("Relevant past context:\n")
		for _, m := range a.Memories {
			fmt.Fprintf(&b, "- %s\n", m.Excerpt)
		}
	}
	return b.String()
}

// Assembler wires the repository sub-interfaces, the embedding provider,
// and the Router together to build Assembled contexts.
type Assembler struct {
	users     repository.Users
	plants    repository.Plants
	issues    repository.HealthIssues
	sessions  repository.Sessions
	memories  repository.Memories
	router    *router.Router
	embedding embedding.Provider
	tokenizer *tokenizer.EstimatorTokenizer
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an Assembler.
func New(users repository.Users, plants repository.Plants, issues repository.HealthIssues, sessions repository.Sessions, memories repository.Memories, r *router.Router, embedder embedding.Provider, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		users:     users,
		plants:    plants,
		issues:    issues,
		sessions:  sessions,
		memories:  memories,
		router:    r,
		embedding: embedder,
		tokenizer: tokenizer.NewEstimatorTokenizer("estimator", 0),
		logger:    logger,
		now:       time.Now,
	}
}

// Assemble fans the four sub-fetches out concurrently and joins them.
// plantID and sessionID are optional: empty strings skip the plant and
// history sections respectively. Only a repository-layer failure fails
// the whole assembly; a degradable (router/gateway-class) failure in the
// memories section yields an empty section instead.
func (a *Assembler) Assemble(ctx context.Context, userID, query, plantID, sessionID string) (*Assembled, error) {
	result := &Assembled{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		user, err := a.users.GetUser(gctx, userID)
		if err != nil {
			if isDegradable(err) {
				a.logger.Warn("user facts fetch degraded", zap.Error(err))
				return nil
			}
			return fmt.Errorf("context assembler: user facts: %w", err)
		}
		if user != nil {
			result.UserFacts = trimText(renderUserFacts(user), BudgetUser, a.tokenizer)
		}
		return nil
	})

	if plantID != "" {
		g.Go(func() error {
			facts, err := a.fetchPlantFacts(gctx, plantID)
			if err != nil {
				if isDegradable(err) {
					a.logger.Warn("plant facts fetch degraded", zap.Error(err))
					return nil
				}
				return fmt.Errorf("context assembler: plant facts: %w", err)
			}
			result.PlantFacts = trimText(facts, BudgetPlant, a.tokenizer)
			return nil
		})
	}

	if sessionID != "" {
		g.Go(func() error {
			msgs, err := a.sessions.ListRecentMessages(gctx, sessionID, maxHistoryMessages)
			if err != nil {
				if isDegradable(err) {
					a.logger.Warn("history fetch degraded", zap.Error(err))
					return nil
				}
				return fmt.Errorf("context assembler: history: %w", err)
			}
			result.History = trimHistory(msgs, BudgetHistory, a.tokenizer)
			return nil
		})
	}

	if a.router != nil && a.embedding != nil && query != "" {
		g.Go(func() error {
			mems, err := a.fetchMemories(gctx, userID, query)
			if err != nil {
				if isDegradable(err) {
					a.logger.Warn("semantic memory fetch degraded", zap.Error(err))
					return nil
				}
				return fmt.Errorf("context assembler: memories: %w", err)
			}
			result.Memories = trimMemories(mems, BudgetMemories, a.tokenizer)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Assembler) fetchPlantFacts(ctx context.Context, plantID string) (string, error) {
	plant, err := a.plants.GetPlant(ctx, plantID)
	if err != nil {
		return "", err
	}
	if plant == nil {
		return "", nil
	}
	issues, err := a.issues.ListActiveAndTreating(ctx, plantID, maxActiveIssues)
	if err != nil {
		return "", err
	}
	return renderPlantFacts(plant, issues), nil
}

func (a *Assembler) fetchMemories(ctx context.Context, userID, query string) ([]memory.Decayed, error) {
	embedResult, err := a.router.Embed(ctx, userID, a.embedding, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embedResult.Vectors) == 0 {
		return nil, nil
	}
	src := memorySource{memories: a.memories}
	return memory.Search(ctx, src, userID, embedResult.Vectors[0], maxMemories, semanticSimilarityThreshold, a.now())
}

// memorySource adapts repository.Memories to memory.Source.
type memorySource struct {
	memories repository.Memories
}

func (s memorySource) ListByUser(ctx context.Context, userID string) ([]memory.Row, error) {
	rows, err := s.memories.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]memory.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, memory.Row{
			ID:             r.ID,
			Excerpt:        r.Excerpt,
			ContentType:    string(r.ContentType),
			Embedding:      r.Embedding,
			RelevanceScore: r.RelevanceScore,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}

// isDegradable reports whether err belongs to the router/gateway failure
// class a context section may silently degrade for (embedding outage,
// provider timeout), as opposed to a repository failure, which is
// always fatal to the assembly.
func isDegradable(err error) bool {
	var routerErr *router.AIRouterError
	if errors.As(err, &routerErr) {
		return true
	}
	return types.IsRetryable(err)
}

func renderUserFacts(u *types.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "experience=%s", u.ExperienceLevel)
	if u.City != "" {
		fmt.Fprintf(&b, "; city=%s", u.City)
	}
	if u.ClimateZone != "" {
		fmt.Fprintf(&b, "; climate=%s", u.ClimateZone)
	}
	if u.HomeType != "" {
		fmt.Fprintf(&b, "; home=%s", u.HomeType)
	}
	if u.LightLevel != "" {
		fmt.Fprintf(&b, "; light=%s", u.LightLevel)
	}
	if u.HumidityLevel != "" {
		fmt.Fprintf(&b, "; humidity=%s", u.HumidityLevel)
	}
	return b.String()
}

func renderPlantFacts(p *types.Plant, issues []types.HealthIssue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "nickname=%s; health=%s", p.Nickname, p.CurrentHealth)
	if p.LocationInHome != "" {
		fmt.Fprintf(&b, "; location=%s", p.LocationInHome)
	}
	if p.LightExposure != "" {
		fmt.Fprintf(&b, "; light=%s", p.LightExposure)
	}
	if p.NextWaterDue != nil {
		fmt.Fprintf(&b, "; nextWaterDue=%s", p.NextWaterDue.Format("2006-01-02"))
	}
	for _, issue := range issues {
		fmt.Fprintf(&b, "\n- issue: %s (confidence %.2f, %s)", issue.Name, issue.Confidence, issue.Status)
	}
	return b.String()
}

// trimText truncates s to approximately budget tokens, tolerating
// overBudgetTolerance overshoot before cutting.
func trimText(s string, budget int, tok *tokenizer.EstimatorTokenizer) string {
	tokens, _ := tok.CountTokens(s)
	if tokens <= int(float64(budget)*overBudgetTolerance) {
		return s
	}
	maxChars := budget * 4
	runes := []rune(s)
	if len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	return string(runes)
}

// trimHistory drops oldest messages first until the section fits its
// budget (within tolerance).
func trimHistory(msgs []types.SessionMessage, budget int, tok *tokenizer.EstimatorTokenizer) []types.SessionMessage {
	for len(msgs) > 0 && historyTokens(msgs, tok) > int(float64(budget)*overBudgetTolerance) {
		msgs = msgs[1:]
	}
	return msgs
}

func historyTokens(msgs []types.SessionMessage, tok *tokenizer.EstimatorTokenizer) int {
	total := 0
	for _, m := range msgs {
		n, _ := tok.CountTokens(m.Content)
		total += n
	}
	return total
}

// trimMemories drops the lowest-similarity memory first (the rows are
// sorted by similarity descending, so the tail) until the section fits
// its budget.
func trimMemories(mems []memory.Decayed, budget int, tok *tokenizer.EstimatorTokenizer) []memory.Decayed {
	for len(mems) > 0 && memoryTokens(mems, tok) > int(float64(budget)*overBudgetTolerance) {
		mems = mems[:len(mems)-1]
	}
	return mems
}

func memoryTokens(mems []memory.Decayed, tok *tokenizer.EstimatorTokenizer) int {
	total := 0
	for _, m := range mems {
		n, _ := tok.CountTokens(m.Excerpt)
		total += n
	}
	return total
}
