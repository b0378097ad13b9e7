// Package gormrepo is the reference Repository implementation, backed by
// gorm.io/gorm against postgres, mysql, or sqlite (matching
// config.DatabaseConfig.DSN()'s dispatch), with the schema driven by
// internal/migration rather than gorm's AutoMigrate.
package gormrepo

import (
	"encoding/json"
	"time"

	"github.com/greenleaf-ai/core/types"
)

type userModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	DisplayName      string    `gorm:"column:display_name"`
	ExperienceLevel  string    `gorm:"column:experience_level"`
	City             string    `gorm:"column:city"`
	ClimateZone      string    `gorm:"column:climate_zone"`
	HomeType         string    `gorm:"column:home_type"`
	LightLevel       string    `gorm:"column:light_level"`
	HumidityLevel    string    `gorm:"column:humidity_level"`
	SubscriptionTier string    `gorm:"column:subscription_tier"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toEntity() *types.User {
	return &types.User{
		ID:               m.ID,
		DisplayName:      m.DisplayName,
		ExperienceLevel:  types.ExperienceLevel(m.ExperienceLevel),
		City:             m.City,
		ClimateZone:      m.ClimateZone,
		HomeType:         m.HomeType,
		LightLevel:       m.LightLevel,
		HumidityLevel:    m.HumidityLevel,
		SubscriptionTier: types.SubscriptionTier(m.SubscriptionTier),
		CreatedAt:        m.CreatedAt,
	}
}

// speciesModel stores CommonNames as a JSON-encoded text column, since no
// database driver in this module's dependency graph offers a native
// string-array type across postgres/mysql/sqlite uniformly.
type speciesModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	ScientificName   string    `gorm:"column:scientific_name"`
	CommonNames      string    `gorm:"column:common_names"`
	Family           string    `gorm:"column:family"`
	Genus            string    `gorm:"column:genus"`
	CareLight        string    `gorm:"column:care_light"`
	CareWater        string    `gorm:"column:care_water"`
	CareHumidity     string    `gorm:"column:care_humidity"`
	CareTemperature  string    `gorm:"column:care_temperature"`
	Difficulty       string    `gorm:"column:difficulty"`
	Toxicity         string    `gorm:"column:toxicity"`
	Description      string    `gorm:"column:description"`
	PlantIDSpeciesID string    `gorm:"column:plant_id_species_id"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (speciesModel) TableName() string { return "species" }

func newSpeciesModel(s *types.Species) *speciesModel {
	names, _ := json.Marshal(s.CommonNames)
	return &speciesModel{
		ID:               s.ID,
		ScientificName:   s.ScientificName,
		CommonNames:      string(names),
		Family:           s.Family,
		Genus:            s.Genus,
		CareLight:        s.CareLight,
		CareWater:        s.CareWater,
		CareHumidity:     s.CareHumidity,
		CareTemperature:  s.CareTemperature,
		Difficulty:       string(s.Difficulty),
		Toxicity:         s.Toxicity,
		Description:      s.Description,
		PlantIDSpeciesID: s.PlantIDSpeciesID,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (m *speciesModel) toEntity() *types.Species {
	var names []string
	_ = json.Unmarshal([]byte(m.CommonNames), &names)
	return &types.Species{
		ID:               m.ID,
		ScientificName:   m.ScientificName,
		CommonNames:      names,
		Family:           m.Family,
		Genus:            m.Genus,
		CareLight:        m.CareLight,
		CareWater:        m.CareWater,
		CareHumidity:     m.CareHumidity,
		CareTemperature:  m.CareTemperature,
		Difficulty:       types.Difficulty(m.Difficulty),
		Toxicity:         m.Toxicity,
		Description:      m.Description,
		PlantIDSpeciesID: m.PlantIDSpeciesID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type plantModel struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	UserID                string     `gorm:"column:user_id"`
	SpeciesID             string     `gorm:"column:species_id"`
	Nickname              string     `gorm:"column:nickname"`
	LocationInHome        string     `gorm:"column:location_in_home"`
	LightExposure         string     `gorm:"column:light_exposure"`
	WateringFrequencyDays int        `gorm:"column:watering_frequency_days"`
	LastWatered           *time.Time `gorm:"column:last_watered"`
	NextWaterDue          *time.Time `gorm:"column:next_water_due"`
	CurrentHealth         string     `gorm:"column:current_health"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (plantModel) TableName() string { return "plants" }

func newPlantModel(p *types.Plant) *plantModel {
	return &plantModel{
		ID: p.ID, UserID: p.UserID, SpeciesID: p.SpeciesID, Nickname: p.Nickname,
		LocationInHome: p.LocationInHome, LightExposure: p.LightExposure,
		WateringFrequencyDays: p.WateringFrequencyDays, LastWatered: p.LastWatered,
		NextWaterDue: p.NextWaterDue, CurrentHealth: string(p.CurrentHealth),
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (m *plantModel) toEntity() *types.Plant {
	return &types.Plant{
		ID: m.ID, UserID: m.UserID, SpeciesID: m.SpeciesID, Nickname: m.Nickname,
		LocationInHome: m.LocationInHome, LightExposure: m.LightExposure,
		WateringFrequencyDays: m.WateringFrequencyDays, LastWatered: m.LastWatered,
		NextWaterDue: m.NextWaterDue, CurrentHealth: types.HealthStatus(m.CurrentHealth),
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

type healthIssueModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	PlantID    string    `gorm:"column:plant_id"`
	Name       string    `gorm:"column:name"`
	Confidence float64   `gorm:"column:confidence"`
	Status     string    `gorm:"column:status"`
	ReportedAt time.Time `gorm:"column:reported_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (healthIssueModel) TableName() string { return "health_issues" }

type treatmentStepModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	HealthIssueID string `gorm:"column:health_issue_id"`
	Order         int    `gorm:"column:step_order"`
	Description   string `gorm:"column:description"`
	Done          bool   `gorm:"column:done"`
}

func (treatmentStepModel) TableName() string { return "treatment_steps" }

func newHealthIssueModel(h *types.HealthIssue) *healthIssueModel {
	return &healthIssueModel{
		ID: h.ID, PlantID: h.PlantID, Name: h.Name, Confidence: h.Confidence,
		Status: string(h.Status), ReportedAt: h.ReportedAt, UpdatedAt: h.UpdatedAt,
	}
}

func (m *healthIssueModel) toEntity(steps []treatmentStepModel) *types.HealthIssue {
	out := &types.HealthIssue{
		ID: m.ID, PlantID: m.PlantID, Name: m.Name, Confidence: m.Confidence,
		Status: types.HealthIssueStatus(m.Status), ReportedAt: m.ReportedAt, UpdatedAt: m.UpdatedAt,
	}
	for _, s := range steps {
		out.TreatmentSteps = append(out.TreatmentSteps, types.TreatmentStep{
			ID: s.ID, HealthIssueID: s.HealthIssueID, Order: s.Order, Description: s.Description, Done: s.Done,
		})
	}
	return out
}

type sessionModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	UserID           string    `gorm:"column:user_id"`
	PlantID          string    `gorm:"column:plant_id"`
	MessageCount     int       `gorm:"column:message_count"`
	PromptTokens     int       `gorm:"column:prompt_tokens"`
	CompletionTokens int       `gorm:"column:completion_tokens"`
	EstimatedCost    float64   `gorm:"column:estimated_cost"`
	ModelsUsed       string    `gorm:"column:models_used"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string { return "conversation_sessions" }

func newSessionModel(s *types.ConversationSession) *sessionModel {
	used, _ := json.Marshal(s.ModelsUsed)
	return &sessionModel{
		ID: s.ID, UserID: s.UserID, PlantID: s.PlantID, MessageCount: s.MessageCount,
		PromptTokens: s.PromptTokens, CompletionTokens: s.CompletionTokens,
		EstimatedCost: s.EstimatedCost, ModelsUsed: string(used),
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

func (m *sessionModel) toEntity() *types.ConversationSession {
	var used []string
	_ = json.Unmarshal([]byte(m.ModelsUsed), &used)
	return &types.ConversationSession{
		ID: m.ID, UserID: m.UserID, PlantID: m.PlantID, MessageCount: m.MessageCount,
		PromptTokens: m.PromptTokens, CompletionTokens: m.CompletionTokens,
		EstimatedCost: m.EstimatedCost, ModelsUsed: used,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

type sessionMessageModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	SessionID        string    `gorm:"column:session_id"`
	Role             string    `gorm:"column:role"`
	Content          string    `gorm:"column:content"`
	PromptTokens     int       `gorm:"column:prompt_tokens"`
	CompletionTokens int       `gorm:"column:completion_tokens"`
	Extracted        *string   `gorm:"column:extracted"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (sessionMessageModel) TableName() string { return "session_messages" }

func newSessionMessageModel(m *types.SessionMessage) *sessionMessageModel {
	out := &sessionMessageModel{
		ID: m.ID, SessionID: m.SessionID, Role: string(m.Role), Content: m.Content,
		PromptTokens: m.PromptTokens, CompletionTokens: m.CompletionTokens, CreatedAt: m.CreatedAt,
	}
	if m.Extracted != nil {
		raw, _ := json.Marshal(m.Extracted)
		s := string(raw)
		out.Extracted = &s
	}
	return out
}

func (m *sessionMessageModel) toEntity() types.SessionMessage {
	out := types.SessionMessage{
		ID: m.ID, SessionID: m.SessionID, Role: types.Role(m.Role), Content: m.Content,
		PromptTokens: m.PromptTokens, CompletionTokens: m.CompletionTokens, CreatedAt: m.CreatedAt,
	}
	if m.Extracted != nil {
		var extracted types.ExtractedData
		if json.Unmarshal([]byte(*m.Extracted), &extracted) == nil {
			out.Extracted = &extracted
		}
	}
	return out
}

type semanticMemoryModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	UserID          string    `gorm:"column:user_id"`
	SourceSessionID string    `gorm:"column:source_session_id"`
	Embedding       string    `gorm:"column:embedding"`
	Excerpt         string    `gorm:"column:excerpt"`
	ContentType     string    `gorm:"column:content_type"`
	RelevanceScore  float64   `gorm:"column:relevance_score"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (semanticMemoryModel) TableName() string { return "semantic_memories" }

func newSemanticMemoryModel(m *types.SemanticMemory) *semanticMemoryModel {
	emb, _ := json.Marshal(m.Embedding)
	return &semanticMemoryModel{
		ID: m.ID, UserID: m.UserID, SourceSessionID: m.SourceSessionID, Embedding: string(emb),
		Excerpt: m.Excerpt, ContentType: string(m.ContentType), RelevanceScore: m.RelevanceScore,
		CreatedAt: m.CreatedAt,
	}
}

func (m *semanticMemoryModel) toEntity() types.SemanticMemory {
	var emb []float64
	_ = json.Unmarshal([]byte(m.Embedding), &emb)
	return types.SemanticMemory{
		ID: m.ID, UserID: m.UserID, SourceSessionID: m.SourceSessionID, Embedding: emb,
		Excerpt: m.Excerpt, ContentType: types.MemoryContentType(m.ContentType),
		RelevanceScore: m.RelevanceScore, CreatedAt: m.CreatedAt,
	}
}

type reminderModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	PlantID   string    `gorm:"column:plant_id"`
	UserID    string    `gorm:"column:user_id"`
	Title     string    `gorm:"column:title"`
	DueDate   time.Time `gorm:"column:due_date"`
	Completed bool      `gorm:"column:completed"`
	Skipped   bool      `gorm:"column:skipped"`
	Recurring bool      `gorm:"column:recurring"`
	Frequency string    `gorm:"column:frequency"`
	Interval  int       `gorm:"column:interval_count"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (reminderModel) TableName() string { return "reminders" }

func newReminderModel(r *types.Reminder) *reminderModel {
	return &reminderModel{
		ID: r.ID, PlantID: r.PlantID, UserID: r.UserID, Title: r.Title, DueDate: r.DueDate,
		Completed: r.Completed, Skipped: r.Skipped, Recurring: r.Recurring,
		Frequency: string(r.Frequency), Interval: r.Interval, CreatedAt: r.CreatedAt,
	}
}

func (m *reminderModel) toEntity() types.Reminder {
	return types.Reminder{
		ID: m.ID, PlantID: m.PlantID, UserID: m.UserID, Title: m.Title, DueDate: m.DueDate,
		Completed: m.Completed, Skipped: m.Skipped, Recurring: m.Recurring,
		Frequency: types.ReminderFrequency(m.Frequency), Interval: m.Interval, CreatedAt: m.CreatedAt,
	}
}

type usageLogModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	UserID           string    `gorm:"column:user_id"`
	Task             string    `gorm:"column:task"`
	Provider         string    `gorm:"column:provider"`
	Model            string    `gorm:"column:model"`
	PromptTokens     int       `gorm:"column:prompt_tokens"`
	CompletionTokens int       `gorm:"column:completion_tokens"`
	LatencyMS        int64     `gorm:"column:latency_ms"`
	Outcome          string    `gorm:"column:outcome"`
	ErrorCode        string    `gorm:"column:error_code"`
	Cost             float64   `gorm:"column:cost"`
	Endpoint         string    `gorm:"column:endpoint"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (usageLogModel) TableName() string { return "usage_logs" }

func newUsageLogModel(e *types.UsageLogEntry) *usageLogModel {
	return &usageLogModel{
		ID: e.ID, UserID: e.UserID, Task: e.Task, Provider: e.Provider, Model: e.Model,
		PromptTokens: e.PromptTokens, CompletionTokens: e.CompletionTokens, LatencyMS: e.LatencyMS,
		Outcome: e.Outcome, ErrorCode: string(e.ErrorCode), Cost: e.Cost, Endpoint: e.Endpoint,
		CreatedAt: e.CreatedAt,
	}
}

type plantPhotoModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	PlantID      string    `gorm:"column:plant_id"`
	Type         string    `gorm:"column:type"`
	URL          string    `gorm:"column:url"`
	ThumbnailURL string    `gorm:"column:thumbnail_url"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (plantPhotoModel) TableName() string { return "plant_photos" }

func newPlantPhotoModel(p *types.PlantPhoto) *plantPhotoModel {
	return &plantPhotoModel{
		ID: p.ID, PlantID: p.PlantID, Type: string(p.Type), URL: p.URL,
		ThumbnailURL: p.ThumbnailURL, CreatedAt: p.CreatedAt,
	}
}
