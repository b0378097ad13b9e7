// Package repository is the narrow persistence surface the core consumes.
// Concrete storage lives behind it (repository/gormrepo is the reference
// implementation); packages like species and memory depend on
// purpose-built sub-interfaces rather than this whole file, so they never
// import gorm directly.
package repository

import (
	"context"
	"time"

	"github.com/greenleaf-ai/core/types"
)

// Users is read-only: users are provisioned by an external system.
type Users interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
}

// Species is the species-family persistence surface; it also satisfies
// species.Store.
type Species interface {
	FindByNormalizedName(ctx context.Context, normalizedName string) (*types.Species, error)
	Insert(ctx context.Context, s *types.Species) error
	Update(ctx context.Context, s *types.Species) error
	GetSpecies(ctx context.Context, id string) (*types.Species, error)
}

// Plants covers a user's owned plant instances.
type Plants interface {
	CreatePlant(ctx context.Context, p *types.Plant) error
	GetPlant(ctx context.Context, id string) (*types.Plant, error)
	ListPlantsByUser(ctx context.Context, userID string) ([]types.Plant, error)
	UpdatePlant(ctx context.Context, p *types.Plant) error
	// DetachSessionsForPlant nullifies plant references on sessions when a plant is
	// deleted: a targeted scan, not a cascading delete.
	DetachSessionsForPlant(ctx context.Context, plantID string) error
}

// HealthIssues covers per-plant diagnoses and their treatment plans.
type HealthIssues interface {
	CreateHealthIssue(ctx context.Context, h *types.HealthIssue) error
	UpdateHealthIssue(ctx context.Context, h *types.HealthIssue) error
	// ListActiveAndTreating returns a plant's issues with status active or
	// treating, ordered by reportedAt descending, capped at limit.
	ListActiveAndTreating(ctx context.Context, plantID string, limit int) ([]types.HealthIssue, error)
}

// Sessions covers chat sessions and their messages. CreateMessageAndUpdateSession
// brackets a message insert and the session aggregate update in one
// transaction.
type Sessions interface {
	GetSession(ctx context.Context, id string) (*types.ConversationSession, error)
	CreateSession(ctx context.Context, s *types.ConversationSession) error
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]types.SessionMessage, error)
	// CreateMessageAndUpdateSession persists messages and applies delta to
	// the session's aggregate counters atomically.
	CreateMessageAndUpdateSession(ctx context.Context, sessionID string, messages []types.SessionMessage, delta SessionDelta) error
}

// SessionDelta is the aggregate update applied to a ConversationSession
// alongside a message insert.
type SessionDelta struct {
	MessageCount     int
	PromptTokens     int
	CompletionTokens int
	EstimatedCost    float64
	ModelsUsed       []string
}

// Memories covers semantic memory storage and retrieval.
type Memories interface {
	InsertMemory(ctx context.Context, m *types.SemanticMemory) error
	ListByUser(ctx context.Context, userID string) ([]types.SemanticMemory, error)
}

// Reminders covers per-plant scheduled care.
type Reminders interface {
	CreateReminder(ctx context.Context, r *types.Reminder) error
	ListDue(ctx context.Context, userID string, before time.Time) ([]types.Reminder, error)
}

// UsageLogs is the append-only usage ledger surface; it also satisfies
// ledger.EntryWriter.
type UsageLogs interface {
	AppendUsageLogEntry(ctx context.Context, entry types.UsageLogEntry) error
	SumMonthlyCost(ctx context.Context, userID string, month time.Time) (float64, error)
	CountMonthlySuccess(ctx context.Context, userID, task string, monthStart time.Time) (int, error)
}

// Photos covers stored plant photo records.
type Photos interface {
	CreatePhoto(ctx context.Context, p *types.PlantPhoto) error
}

// Repository is the full persistence surface; callers that only need one
// slice should depend on that narrower interface instead.
type Repository interface {
	Users
	Species
	Plants
	HealthIssues
	Sessions
	Memories
	Reminders
	UsageLogs
	Photos
}
