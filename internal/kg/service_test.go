// ABOUTME: Tests for the knowledge graph service
// ABOUTME: Exercises stats, neighborhood queries, content linking, and seeding

package kg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyarc/portalbot/internal/index"
	"github.com/skyarc/portalbot/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	idx, err := index.New("", index.LocalEmbedder())
	require.NoError(t, err)

	return New(s, idx)
}

func addEntity(t *testing.T, svc *Service, id, entityType, name string) {
	t.Helper()
	require.NoError(t, svc.AddEntity(t.Context(), &store.Entity{
		ID: id, Type: entityType, Name: name,
	}))
}

func TestAddEntityGeneratesIDAndIndexes(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	e := &store.Entity{Type: "satellite", Name: "Oceansat-3", Description: "ocean color satellite"}
	require.NoError(t, svc.AddEntity(ctx, e))
	assert.NotEmpty(t, e.ID)

	results, err := svc.index.Search(ctx, "ocean color satellite", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, e.ID, results[0].ID)
}

func TestAddRelationRequiresEndpoints(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	addEntity(t, svc, "a", "organization", "Portal")

	_, err := svc.AddRelation(ctx, "a", "provides", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	addEntity(t, svc, "b", "data_category", "Satellite Data")
	r, err := svc.AddRelation(ctx, "a", "provides", "b")
	require.NoError(t, err)
	assert.Equal(t, "provides", r.Predicate)
}

func TestGetIncludesBothDirections(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	addEntity(t, svc, "org", "organization", "Portal")
	addEntity(t, svc, "data", "data_category", "Satellite Data")
	addEntity(t, svc, "sat", "satellite", "Oceansat")

	_, err := svc.AddRelation(ctx, "org", "provides", "data")
	require.NoError(t, err)
	_, err = svc.AddRelation(ctx, "sat", "generates", "data")
	require.NoError(t, err)

	detail, err := svc.Get(ctx, "data")
	require.NoError(t, err)
	require.Len(t, detail.Relationships, 2)
	for _, rel := range detail.Relationships {
		assert.Equal(t, "incoming", rel.Direction)
	}

	detail, err = svc.Get(ctx, "org")
	require.NoError(t, err)
	require.Len(t, detail.Relationships, 1)
	assert.Equal(t, "outgoing", detail.Relationships[0].Direction)
	assert.Equal(t, "data", detail.Relationships[0].Other.ID)
}

func TestNeighborhoodDistanceAndPredicate(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	// a -provides-> b -generates-> c
	addEntity(t, svc, "a", "organization", "Portal")
	addEntity(t, svc, "b", "data_category", "Satellite Data")
	addEntity(t, svc, "c", "satellite", "Oceansat")
	_, err := svc.AddRelation(ctx, "a", "provides", "b")
	require.NoError(t, err)
	_, err = svc.AddRelation(ctx, "b", "generates", "c")
	require.NoError(t, err)

	oneHop, err := svc.Neighborhood(ctx, "a", "", 1)
	require.NoError(t, err)
	require.Len(t, oneHop, 1)
	assert.Equal(t, "b", oneHop[0].ID)

	twoHop, err := svc.Neighborhood(ctx, "a", "", 2)
	require.NoError(t, err)
	assert.Len(t, twoHop, 2)

	provides, err := svc.Neighborhood(ctx, "b", "provides", 1)
	require.NoError(t, err)
	require.Len(t, provides, 1)
	assert.Equal(t, "a", provides[0].ID)

	_, err = svc.Neighborhood(ctx, "missing", "", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStats(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Nodes)
	assert.Equal(t, 0.0, stats.Density)
	assert.Equal(t, 0, stats.ConnectedComponents)

	addEntity(t, svc, "a", "organization", "Portal")
	addEntity(t, svc, "b", "data_category", "Satellite Data")
	addEntity(t, svc, "c", "satellite", "Oceansat")
	_, err = svc.AddRelation(ctx, "a", "provides", "b")
	require.NoError(t, err)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 1, stats.Edges)
	// One edge joins a and b; c stands alone.
	assert.Equal(t, 2, stats.ConnectedComponents)
	assert.InDelta(t, 1.0/6.0, stats.Density, 1e-9)
	assert.Equal(t, []string{"data_category", "organization", "satellite"}, stats.EntityTypes)
	assert.Equal(t, map[string]int{"data_category": 1, "organization": 1, "satellite": 1}, stats.TypeCounts)
	assert.Equal(t, []string{"provides"}, stats.RelationshipTypes)
	assert.NotEmpty(t, stats.LastUpdated)
}

func TestUpdateFromContentLinksMentions(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	// Single-token name and type make the keyword an exact embedding match.
	require.NoError(t, svc.AddEntity(ctx, &store.Entity{
		ID: "oceansat", Type: "oceansat", Name: "oceansat",
	}))

	added, err := svc.UpdateFromContent(ctx, []ContentItem{{
		URL:      "https://portal.example/missions/oceansat",
		Title:    "Oceansat Mission Overview",
		Content:  "Details about the Oceansat ocean color mission.",
		PageType: "documentation",
		Keywords: []string{"oceansat"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	detail, err := svc.Get(ctx, "oceansat")
	require.NoError(t, err)
	require.Len(t, detail.Relationships, 1)
	assert.Equal(t, "mentions", detail.Relationships[0].Predicate)
	assert.Equal(t, "incoming", detail.Relationships[0].Direction)
	assert.Equal(t, "content", detail.Relationships[0].Other.Type)
}

func TestUpdateFromContentUntitledAndTruncated(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}

	added, err := svc.UpdateFromContent(ctx, []ContentItem{{
		URL:     "https://portal.example/page",
		Content: string(long),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	entities, err := svc.store.ListEntities(ctx, "content", 0)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Untitled", entities[0].Name)
	assert.Len(t, entities[0].Description, 500)
}

func TestUpdateFromContentTruncatesOnRuneBoundary(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	// Three-byte runes that do not divide 500 evenly, so a byte-wise cut
	// would land mid-rune.
	long := strings.Repeat("衛", 200)

	added, err := svc.UpdateFromContent(ctx, []ContentItem{{
		URL:     "https://portal.example/ja/page",
		Content: long,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	entities, err := svc.store.ListEntities(ctx, "content", 0)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	desc := entities[0].Description
	assert.True(t, utf8.ValidString(desc))
	assert.LessOrEqual(t, len(desc), 500)
	assert.Equal(t, strings.Repeat("衛", 166), desc)
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	svc := newTestService(t)
	ctx := t.Context()

	seedPath := filepath.Join(t.TempDir(), "seed.toml")
	seed := `
[[entities]]
id = "portal"
type = "organization"
name = "Data Portal"
description = "Satellite data archive"

[entities.attrs]
url = "https://portal.example"

[[entities]]
id = "satellite_data"
type = "data_category"
name = "Satellite Data"

[[relations]]
source = "portal"
predicate = "provides"
target = "satellite_data"
`
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0644))

	require.NoError(t, svc.Seed(ctx, seedPath))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Edges)

	// Second run is a no-op because the store is no longer empty.
	require.NoError(t, svc.Seed(ctx, seedPath))
	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Nodes)
}

func TestSeedMissingFile(t *testing.T) {
	svc := newTestService(t)

	err := svc.Seed(t.Context(), filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)

	// Empty path means seeding is disabled.
	assert.NoError(t, svc.Seed(t.Context(), ""))
}
