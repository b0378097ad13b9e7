package gormrepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/greenleaf-ai/core/internal/database"
	"github.com/greenleaf-ai/core/repository"
	"github.com/greenleaf-ai/core/types"
)

// Repo is the gorm-backed reference Repository implementation.
type Repo struct {
	pool *database.PoolManager
}

// New wraps an already-configured PoolManager (see internal/database).
// Schema is expected to already be applied via internal/migration, not
// gorm's AutoMigrate.
func New(pool *database.PoolManager) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) db() *gorm.DB { return r.pool.DB() }

// --- Users ---

func (r *Repo) GetUser(ctx context.Context, id string) (*types.User, error) {
	var m userModel
	if err := r.db().WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return m.toEntity(), nil
}

// --- Species ---

func (r *Repo) FindByNormalizedName(ctx context.Context, normalizedName string) (*types.Species, error) {
	var m speciesModel
	err := r.db().WithContext(ctx).
		Where("LOWER(scientific_name) = ?", normalizedName).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

func (r *Repo) Insert(ctx context.Context, s *types.Species) error {
	return r.db().WithContext(ctx).Create(newSpeciesModel(s)).Error
}

func (r *Repo) Update(ctx context.Context, s *types.Species) error {
	return r.db().WithContext(ctx).Save(newSpeciesModel(s)).Error
}

func (r *Repo) GetSpecies(ctx context.Context, id string) (*types.Species, error) {
	var m speciesModel
	if err := r.db().WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return m.toEntity(), nil
}

// --- Plants ---

func (r *Repo) CreatePlant(ctx context.Context, p *types.Plant) error {
	return r.db().WithContext(ctx).Create(newPlantModel(p)).Error
}

func (r *Repo) GetPlant(ctx context.Context, id string) (*types.Plant, error) {
	var m plantModel
	if err := r.db().WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return m.toEntity(), nil
}

func (r *Repo) ListPlantsByUser(ctx context.Context, userID string) ([]types.Plant, error) {
	var models []plantModel
	if err := r.db().WithContext(ctx).Where("user_id = ?", userID).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Plant, 0, len(models))
	for _, m := range models {
		out = append(out, *m.toEntity())
	}
	return out, nil
}

func (r *Repo) UpdatePlant(ctx context.Context, p *types.Plant) error {
	return r.db().WithContext(ctx).Save(newPlantModel(p)).Error
}

// DetachSessionsForPlant nullifies plant_id on sessions referencing
// plantID: a targeted scan instead of a cascading delete, since a
// deleted plant's chat history should survive as orphaned sessions.
func (r *Repo) DetachSessionsForPlant(ctx context.Context, plantID string) error {
	return r.db().WithContext(ctx).
		Model(&sessionModel{}).
		Where("plant_id = ?", plantID).
		Update("plant_id", "").Error
}

// --- HealthIssues ---

func (r *Repo) CreateHealthIssue(ctx context.Context, h *types.HealthIssue) error {
	return r.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(newHealthIssueModel(h)).Error; err != nil {
			return err
		}
		for i := range h.TreatmentSteps {
			step := h.TreatmentSteps[i]
			step.HealthIssueID = h.ID
			if err := tx.Create(&treatmentStepModel{
				ID: step.ID, HealthIssueID: h.ID, Order: step.Order,
				Description: step.Description, Done: step.Done,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) UpdateHealthIssue(ctx context.Context, h *types.HealthIssue) error {
	return r.db().WithContext(ctx).Save(newHealthIssueModel(h)).Error
}

func (r *Repo) ListActiveAndTreating(ctx context.Context, plantID string, limit int) ([]types.HealthIssue, error) {
	var models []healthIssueModel
	err := r.db().WithContext(ctx).
		Where("plant_id = ? AND status IN ?", plantID, []string{string(types.IssueActive), string(types.IssueTreating)}).
		Order("reported_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.HealthIssue, 0, len(models))
	for _, m := range models {
		var steps []treatmentStepModel
		if err := r.db().WithContext(ctx).Where("health_issue_id = ?", m.ID).Order("step_order").Find(&steps).Error; err != nil {
			return nil, err
		}
		out = append(out, *m.toEntity(steps))
	}
	return out, nil
}

// --- Sessions ---

func (r *Repo) GetSession(ctx context.Context, id string) (*types.ConversationSession, error) {
	var m sessionModel
	if err := r.db().WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return m.toEntity(), nil
}

func (r *Repo) CreateSession(ctx context.Context, s *types.ConversationSession) error {
	return r.db().WithContext(ctx).Create(newSessionModel(s)).Error
}

func (r *Repo) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]types.SessionMessage, error) {
	var models []sessionMessageModel
	err := r.db().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionMessage, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		out = append(out, models[i].toEntity())
	}
	return out, nil
}

// CreateMessageAndUpdateSession brackets the message insert and the
// session aggregate update in one transaction, so a crash between the
// two never leaves messages without a matching session update.
func (r *Repo) CreateMessageAndUpdateSession(ctx context.Context, sessionID string, messages []types.SessionMessage, delta repository.SessionDelta) error {
	return r.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		for i := range messages {
			if err := tx.Create(newSessionMessageModel(&messages[i])).Error; err != nil {
				return err
			}
		}

		var session sessionModel
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			return err
		}

		existingModels := session.ModelsUsed
		merged := mergeModelsUsedJSON(existingModels, delta.ModelsUsed)

		return tx.Model(&sessionModel{}).Where("id = ?", sessionID).Updates(map[string]any{
			"message_count":     gorm.Expr("message_count + ?", delta.MessageCount),
			"prompt_tokens":     gorm.Expr("prompt_tokens + ?", delta.PromptTokens),
			"completion_tokens": gorm.Expr("completion_tokens + ?", delta.CompletionTokens),
			"estimated_cost":    gorm.Expr("estimated_cost + ?", delta.EstimatedCost),
			"models_used":       merged,
			"updated_at":        time.Now(),
		}).Error
	})
}

// --- Memories ---

func (r *Repo) InsertMemory(ctx context.Context, m *types.SemanticMemory) error {
	return r.db().WithContext(ctx).Create(newSemanticMemoryModel(m)).Error
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]types.SemanticMemory, error) {
	var models []semanticMemoryModel
	if err := r.db().WithContext(ctx).Where("user_id = ?", userID).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.SemanticMemory, 0, len(models))
	for _, m := range models {
		out = append(out, m.toEntity())
	}
	return out, nil
}

// --- Reminders ---

func (r *Repo) CreateReminder(ctx context.Context, rem *types.Reminder) error {
	return r.db().WithContext(ctx).Create(newReminderModel(rem)).Error
}

func (r *Repo) ListDue(ctx context.Context, userID string, before time.Time) ([]types.Reminder, error) {
	var models []reminderModel
	err := r.db().WithContext(ctx).
		Where("user_id = ? AND completed = ? AND due_date <= ?", userID, false, before).
		Order("due_date").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Reminder, 0, len(models))
	for _, m := range models {
		out = append(out, m.toEntity())
	}
	return out, nil
}

// --- UsageLogs ---

func (r *Repo) AppendUsageLogEntry(ctx context.Context, entry types.UsageLogEntry) error {
	return r.db().WithContext(ctx).Create(newUsageLogModel(&entry)).Error
}

func (r *Repo) SumMonthlyCost(ctx context.Context, userID string, month time.Time) (float64, error) {
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var total float64
	err := r.db().WithContext(ctx).
		Model(&usageLogModel{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, monthStart, monthEnd).
		Select("COALESCE(SUM(cost), 0)").
		Scan(&total).Error
	return total, err
}

func (r *Repo) CountMonthlySuccess(ctx context.Context, userID, task string, monthStart time.Time) (int, error) {
	monthEnd := monthStart.AddDate(0, 1, 0)

	var count int64
	err := r.db().WithContext(ctx).
		Model(&usageLogModel{}).
		Where("user_id = ? AND task = ? AND outcome = ? AND created_at >= ? AND created_at < ?",
			userID, task, "success", monthStart, monthEnd).
		Count(&count).Error
	return int(count), err
}

// --- Photos ---

func (r *Repo) CreatePhoto(ctx context.Context, p *types.PlantPhoto) error {
	return r.db().WithContext(ctx).Create(newPlantPhotoModel(p)).Error
}

// mergeModelsUsedJSON unions the session's existing models-used set with
// newly used model names, preserving existing order.
func mergeModelsUsedJSON(existingJSON string, add []string) string {
	var existing []string
	_ = json.Unmarshal([]byte(existingJSON), &existing)

	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(add))
	for _, m := range existing {
		if !seen[m] {
			seen[m] = true
			merged = append(merged, m)
		}
	}
	for _, m := range add {
		if !seen[m] {
			seen[m] = true
			merged = append(merged, m)
		}
	}

	out, _ := json.Marshal(merged)
	return string(out)
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

var _ repository.Repository = (*Repo)(nil)
