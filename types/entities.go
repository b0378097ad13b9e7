package types

import "time"

// ExperienceLevel is how much a user says they know about keeping plants.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
)

// SubscriptionTier gates rate limits and monthly quotas.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// User is created externally (the core only reads it).
type User struct {
	ID               string
	DisplayName      string
	ExperienceLevel  ExperienceLevel
	City             string
	ClimateZone      string
	HomeType         string
	LightLevel       string
	HumidityLevel    string
	SubscriptionTier SubscriptionTier
	CreatedAt        time.Time
}

// Difficulty is how demanding a species is to keep alive.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
)

// Species is globally unique by normalized scientific name; see the
// species package for the normalize/resolve invariant.
type Species struct {
	ID               string
	ScientificName   string // normalized: lowercase, trimmed, single-spaced
	CommonNames      []string
	Family           string
	Genus            string
	CareLight        string
	CareWater        string
	CareHumidity     string
	CareTemperature  string
	Difficulty       Difficulty
	Toxicity         string
	Description      string
	PlantIDSpeciesID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HealthStatus is a plant's current condition.
type HealthStatus string

const (
	HealthThriving   HealthStatus = "thriving"
	HealthHealthy    HealthStatus = "healthy"
	HealthStruggling HealthStatus = "struggling"
	HealthCritical   HealthStatus = "critical"
)

// Plant is a user-owned instance of a Species.
type Plant struct {
	ID                    string
	UserID                string
	SpeciesID             string
	Nickname              string
	LocationInHome        string
	LightExposure         string
	WateringFrequencyDays int
	LastWatered           *time.Time
	NextWaterDue          *time.Time
	CurrentHealth         HealthStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HealthIssueStatus tracks a diagnosis through its lifecycle.
type HealthIssueStatus string

const (
	IssueActive    HealthIssueStatus = "active"
	IssueTreating  HealthIssueStatus = "treating"
	IssueResolved  HealthIssueStatus = "resolved"
	IssueRecurring HealthIssueStatus = "recurring"
)

// HealthIssue is a per-plant diagnosis with ordered treatment steps.
type HealthIssue struct {
	ID             string
	PlantID        string
	Name           string
	Confidence     float64
	Status         HealthIssueStatus
	TreatmentSteps []TreatmentStep
	ReportedAt     time.Time
	UpdatedAt      time.Time
}

// TreatmentStep is one ordered action within a HealthIssue's treatment plan.
type TreatmentStep struct {
	ID            string
	HealthIssueID string
	Order         int
	Description   string
	Done          bool
}

// ConversationSession is a per-user chat thread, optionally tied to a Plant.
type ConversationSession struct {
	ID               string
	UserID           string
	PlantID          string // empty if not tied to a plant
	MessageCount     int
	PromptTokens     int
	CompletionTokens int
	EstimatedCost    float64
	ModelsUsed       []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ExtractedData is structured information pulled from an assistant reply.
type ExtractedData struct {
	ActionItems      []string
	ReferencedPlants []string
	IdentifiedIssues []string
}

// SessionMessage is an ordered child of a ConversationSession.
//
// It is a separate type from types.Message (which is the gateway wire
// shape): SessionMessage is the persisted, session-scoped record with
// token accounting and extracted structured data.
type SessionMessage struct {
	ID               string
	SessionID        string
	Role             Role
	Content          string
	PromptTokens     int
	CompletionTokens int
	Extracted        *ExtractedData
	CreatedAt        time.Time
}

// MemoryContentType classifies what a SemanticMemory excerpt captures.
type MemoryContentType string

const (
	MemoryConversation MemoryContentType = "conversation"
	MemoryDiagnosis    MemoryContentType = "diagnosis"
	MemoryAdvice       MemoryContentType = "advice"
	MemoryOutcome      MemoryContentType = "outcome"
)

// SemanticMemory is a per-user 1536-dim embedding with a text excerpt and a
// relevance score that decays over time (see memory package).
type SemanticMemory struct {
	ID              string
	UserID          string
	SourceSessionID string
	Embedding       []float64
	Excerpt         string
	ContentType     MemoryContentType
	RelevanceScore  float64
	CreatedAt       time.Time
}

// ReminderFrequency describes a reminder's recurrence unit.
type ReminderFrequency string

const (
	FrequencyDaily   ReminderFrequency = "daily"
	FrequencyWeekly  ReminderFrequency = "weekly"
	FrequencyMonthly ReminderFrequency = "monthly"
)

// Reminder is per-plant scheduled care with optional recurrence.
type Reminder struct {
	ID        string
	PlantID   string
	UserID    string
	Title     string
	DueDate   time.Time
	Completed bool
	Skipped   bool
	Recurring bool
	Frequency ReminderFrequency
	Interval  int
	CreatedAt time.Time
}

// UsageLogEntry is an append-only per-attempt record written by the
// ledger package, one row per provider attempt regardless of outcome.
type UsageLogEntry struct {
	ID               string
	UserID           string
	Task             string // e.g. "identification", "chat_simple"
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Outcome          string // "success" or "failure"
	ErrorCode        ErrorCode
	Cost             float64
	Endpoint         string
	CreatedAt        time.Time
}

// PlantPhotoType classifies a stored photo's purpose.
type PlantPhotoType string

const (
	PhotoIdentification PlantPhotoType = "identification"
	PhotoHealth         PlantPhotoType = "health"
	PhotoProgress       PlantPhotoType = "progress"
)

// PlantPhoto is a stored image plus its optional thumbnail.
type PlantPhoto struct {
	ID           string
	PlantID      string
	Type         PlantPhotoType
	URL          string
	ThumbnailURL string
	CreatedAt    time.Time
}
