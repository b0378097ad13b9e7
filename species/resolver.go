// Package species resolves a Router identification result to a stable
// Species row, guaranteeing at most one row per normalized scientific
// name. Resolver failures are deliberately non-fatal: identification
// stays responsive even when the catalog write fails, so callers treat a
// Resolve error as "species id is null", not as a request failure.
package species

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenleaf-ai/core/types"
)

// Store is the narrow persistence surface the resolver needs; it is
// implemented by the repository package.
type Store interface {
	// FindByNormalizedName looks up a Species by its normalized scientific
	// name, case-insensitive. It returns (nil, nil) when no row matches.
	FindByNormalizedName(ctx context.Context, normalizedName string) (*types.Species, error)
	Insert(ctx context.Context, s *types.Species) error
	Update(ctx context.Context, s *types.Species) error
}

// Result is an identification match coarse enough for the resolver: the
// fields an identify or vision gateway can plausibly supply.
type Result struct {
	ScientificName   string
	CommonNames      []string
	Family           string
	Genus            string
	PlantIDSpeciesID string
	Description      string
	Toxicity         string
}

// Resolver implements the normalize/lookup/insert-or-enrich cycle: a
// scientific name always maps to exactly one catalog row, created on
// first sight and enriched (never overwritten on populated fields) on
// every subsequent match.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

// New creates a Resolver.
func New(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Normalize lowercases, trims, and collapses internal whitespace to a
// single space. It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}

func defaultGenus(normalizedName string) string {
	fields := strings.Fields(normalizedName)
	if len(fields) == 0 {
		return "Unknown"
	}
	return strings.ToUpper(fields[0][:1]) + fields[0][1:]
}

// mergeCommonNames unions existing and incoming by case-insensitive
// identity, preserving the insertion order of existing items first.
func mergeCommonNames(existing, incoming []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, n := range existing {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, n)
	}
	changed := false
	for _, n := range incoming {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, n)
		changed = true
	}
	return merged, changed
}

// Resolve finds or creates the Species row for res, returning its stable
// id. A non-nil error means the caller should treat the species id as
// null and log the failure; it must never abort identification.
func (r *Resolver) Resolve(ctx context.Context, res Result) (string, error) {
	normalized := Normalize(res.ScientificName)
	if normalized == "" {
		return "", nil
	}

	existing, err := r.store.FindByNormalizedName(ctx, normalized)
	if err != nil {
		r.logger.Warn("species lookup failed", zap.String("name", normalized), zap.Error(err))
		return "", err
	}

	if existing == nil {
		now := time.Now()
		s := &types.Species{
			ID:               uuid.NewString(),
			ScientificName:   normalized,
			CommonNames:      res.CommonNames,
			Family:           orUnknown(res.Family),
			Genus:            orDefault(res.Genus, defaultGenus(normalized)),
			Difficulty:       types.DifficultyModerate,
			PlantIDSpeciesID: res.PlantIDSpeciesID,
			Description:      res.Description,
			Toxicity:         res.Toxicity,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := r.store.Insert(ctx, s); err != nil {
			r.logger.Warn("species insert failed", zap.String("name", normalized), zap.Error(err))
			return "", err
		}
		return s.ID, nil
	}

	changed := false
	if res.Family != "" && existing.Family == "" {
		existing.Family = res.Family
		changed = true
	}
	if res.PlantIDSpeciesID != "" && existing.PlantIDSpeciesID == "" {
		existing.PlantIDSpeciesID = res.PlantIDSpeciesID
		changed = true
	}
	if res.Description != "" && existing.Description == "" {
		existing.Description = res.Description
		changed = true
	}
	if res.Toxicity != "" && existing.Toxicity == "" {
		existing.Toxicity = res.Toxicity
		changed = true
	}
	merged, namesChanged := mergeCommonNames(existing.CommonNames, res.CommonNames)
	if namesChanged {
		existing.CommonNames = merged
		changed = true
	}
	if !changed {
		return existing.ID, nil
	}

	existing.UpdatedAt = time.Now()
	if err := r.store.Update(ctx, existing); err != nil {
		r.logger.Warn("species enrichment update failed", zap.String("name", normalized), zap.Error(err))
		return "", err
	}
	return existing.ID, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
