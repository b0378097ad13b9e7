package species

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenleaf-ai/core/types"
)

type fakeStore struct {
	byName  map[string]*types.Species
	inserts []*types.Species
	updates []*types.Species
	findErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byName: make(map[string]*types.Species)}
}

func (s *fakeStore) FindByNormalizedName(ctx context.Context, name string) (*types.Species, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.byName[name], nil
}

func (s *fakeStore) Insert(ctx context.Context, sp *types.Species) error {
	s.inserts = append(s.inserts, sp)
	s.byName[sp.ScientificName] = sp
	return nil
}

func (s *fakeStore) Update(ctx context.Context, sp *types.Species) error {
	s.updates = append(s.updates, sp)
	s.byName[sp.ScientificName] = sp
	return nil
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "monstera deliciosa", Normalize("  Monstera   Deliciosa  "))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "  Epipremnum   AUREUM "
	once := Normalize(in)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestResolver_Resolve_InsertsNewSpecies(t *testing.T) {
	store := newFakeStore()
	r := New(store, nil)

	id, err := r.Resolve(context.Background(), Result{
		ScientificName: "Monstera deliciosa",
		CommonNames:    []string{"Swiss cheese plant"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, store.inserts, 1)

	inserted := store.inserts[0]
	assert.Equal(t, "monstera deliciosa", inserted.ScientificName)
	assert.Equal(t, "Unknown", inserted.Family)
	assert.Equal(t, "Monstera", inserted.Genus)
	assert.Equal(t, types.DifficultyModerate, inserted.Difficulty)
}

func TestResolver_Resolve_ReusesExistingRow(t *testing.T) {
	store := newFakeStore()
	existing := &types.Species{ID: "sp-1", ScientificName: "monstera deliciosa", Family: "Araceae", CommonNames: []string{"Swiss cheese plant"}}
	store.byName["monstera deliciosa"] = existing

	r := New(store, nil)
	id, err := r.Resolve(context.Background(), Result{ScientificName: "Monstera Deliciosa", CommonNames: []string{"Swiss cheese plant"}})
	require.NoError(t, err)
	assert.Equal(t, "sp-1", id)
	assert.Empty(t, store.inserts)
	assert.Empty(t, store.updates)
}

func TestResolver_Resolve_EnrichesOnlyMissingFields(t *testing.T) {
	store := newFakeStore()
	existing := &types.Species{ID: "sp-1", ScientificName: "monstera deliciosa", Family: "", CommonNames: []string{"Swiss cheese plant"}}
	store.byName["monstera deliciosa"] = existing

	r := New(store, nil)
	id, err := r.Resolve(context.Background(), Result{
		ScientificName: "Monstera deliciosa",
		Family:         "Araceae",
		CommonNames:    []string{"Swiss Cheese Plant", "Ceriman"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sp-1", id)
	require.Len(t, store.updates, 1)

	updated := store.updates[0]
	assert.Equal(t, "Araceae", updated.Family)
	assert.Equal(t, []string{"Swiss cheese plant", "Ceriman"}, updated.CommonNames)
}

func TestResolver_Resolve_LookupFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	store.findErr = assert.AnError

	r := New(store, nil)
	id, err := r.Resolve(context.Background(), Result{ScientificName: "Monstera deliciosa"})
	require.Error(t, err)
	assert.Empty(t, id)
}

func TestResolver_Resolve_EmptyNameIsNoop(t *testing.T) {
	store := newFakeStore()
	r := New(store, nil)

	id, err := r.Resolve(context.Background(), Result{ScientificName: "   "})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, store.inserts)
}
