package gormrepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greenleaf-ai/core/types"
)

func TestSpeciesModel_RoundTrips(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &types.Species{
		ID: "sp-1", ScientificName: "monstera deliciosa",
		CommonNames: []string{"Swiss cheese plant", "Ceriman"},
		Family:      "Araceae", Genus: "Monstera", Difficulty: types.DifficultyModerate,
		CreatedAt: now, UpdatedAt: now,
	}

	m := newSpeciesModel(s)
	back := m.toEntity()
	assert.Equal(t, s.ScientificName, back.ScientificName)
	assert.Equal(t, s.CommonNames, back.CommonNames)
	assert.Equal(t, s.Difficulty, back.Difficulty)
}

func TestSessionMessageModel_RoundTripsExtracted(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := &types.SessionMessage{
		ID: "msg-1", SessionID: "sess-1", Role: types.RoleAssistant, Content: "water twice a week",
		Extracted: &types.ExtractedData{ActionItems: []string{"water"}},
		CreatedAt: now,
	}

	m := newSessionMessageModel(msg)
	back := m.toEntity()
	assert.Equal(t, msg.Content, back.Content)
	assert.NotNil(t, back.Extracted)
	assert.Equal(t, []string{"water"}, back.Extracted.ActionItems)
}

func TestSemanticMemoryModel_RoundTripsEmbedding(t *testing.T) {
	mem := &types.SemanticMemory{
		ID: "mem-1", UserID: "user-1", Embedding: []float64{0.1, 0.2, 0.3},
		Excerpt: "root rot diagnosed", ContentType: types.MemoryDiagnosis, RelevanceScore: 1,
	}
	m := newSemanticMemoryModel(mem)
	back := m.toEntity()
	assert.Equal(t, mem.Embedding, back.Embedding)
	assert.Equal(t, mem.ContentType, back.ContentType)
}
