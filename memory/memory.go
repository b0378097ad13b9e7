// Package memory ranks a user's semantic memories against a query
// embedding by cosine similarity, applying relevance decay lazily at
// read time rather than as a background job.
package memory

import (
	"context"
	"math"
	"sort"
	"time"
)

// Decayed pairs a stored SemanticMemory-shaped row with its read-time
// decayed relevance and similarity-to-query scores.
type Decayed struct {
	ID             string
	Excerpt        string
	ContentType    string
	Embedding      []float64
	CreatedAt      time.Time
	RelevanceScore float64 // decayed, read-time value
	Similarity     float64 // cosine similarity to the query vector
}

// halfLife is how long it takes a memory's relevance to decay to half
// its original value. There is no decay formula named in the
// specification beyond "monotonically decaying"; a 30-day exponential
// half-life is this package's own choice, applied uniformly regardless
// of content type.
const halfLife = 30 * 24 * time.Hour

// DecayedRelevance applies exponential decay to a memory inserted with
// relevanceScore at createdAt, evaluated at now.
func DecayedRelevance(relevanceScore float64, createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age <= 0 {
		return relevanceScore
	}
	return relevanceScore * math.Pow(0.5, age.Seconds()/halfLife.Seconds())
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, returning 0 for mismatched or zero-norm inputs.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Row is the minimal shape Search needs from a stored semantic memory,
// decoupled from types.SemanticMemory so the repository layer can feed
// this package without memory importing repository.
type Row struct {
	ID             string
	Excerpt        string
	ContentType    string
	Embedding      []float64
	RelevanceScore float64
	CreatedAt      time.Time
}

// Source fetches a user's candidate memory rows; contextassembler adapts
// repository.Memories to it, loading all rows for the user (cosine ranking
// then happens in-process, since no pgvector client exists in this
// module's dependency graph — see the notes in the postgres init-schema
// migration under internal/migration).
type Source interface {
	ListByUser(ctx context.Context, userID string) ([]Row, error)
}

// Search returns up to topK rows for userID whose cosine similarity to
// query is at least minSimilarity, ordered by similarity descending.
// RelevanceScore on each result is decayed to now before threshold or
// ordering is applied. now is passed in rather than read internally so
// callers get deterministic behavior under test.
func Search(ctx context.Context, src Source, userID string, query []float64, topK int, minSimilarity float64, now time.Time) ([]Decayed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Decayed{}, nil
	}

	rows, err := src.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]Decayed, 0, len(rows))
	for _, row := range rows {
		sim := CosineSimilarity(query, row.Embedding)
		if sim < minSimilarity {
			continue
		}
		results = append(results, Decayed{
			ID:             row.ID,
			Excerpt:        row.Excerpt,
			ContentType:    row.ContentType,
			Embedding:      row.Embedding,
			CreatedAt:      row.CreatedAt,
			RelevanceScore: DecayedRelevance(row.RelevanceScore, row.CreatedAt, now),
			Similarity:     sim,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}
