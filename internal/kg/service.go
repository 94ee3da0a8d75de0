// ABOUTME: Knowledge graph service layered over the store and vector index
// ABOUTME: Provides stats, entity/relation management, neighborhood queries, and content linking

package kg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/skyarc/portalbot/internal/index"
	"github.com/skyarc/portalbot/internal/store"
)

// mentionThreshold is the minimum similarity for linking crawled content
// to an existing entity with a mentions edge.
const mentionThreshold = 0.7

// neighborhoodCap limits the number of entities a neighborhood query returns.
const neighborhoodCap = 50

// maxDescriptionBytes caps the stored description of a content entity.
const maxDescriptionBytes = 500

// truncateRunes cuts s to at most max bytes without splitting a UTF-8 rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// GraphStore is the persistence surface the service needs.
type GraphStore interface {
	store.EntityStore
	store.RelationStore
}

// Indexer embeds entities and answers similarity queries.
type Indexer interface {
	IndexEntity(ctx context.Context, e *store.Entity) error
	Search(ctx context.Context, query string, limit int) ([]index.Result, error)
}

// Stats summarizes the shape of the graph.
type Stats struct {
	Nodes               int            `json:"nodes"`
	Edges               int            `json:"edges"`
	EntityTypes         []string       `json:"entity_types"`
	TypeCounts          map[string]int `json:"type_counts"`
	RelationshipTypes   []string       `json:"relationship_types"`
	ConnectedComponents int            `json:"connected_components"`
	Density             float64        `json:"density"`
	LastUpdated         string         `json:"last_updated"`
}

// Relationship is one edge touching an entity, seen from that entity's side.
type Relationship struct {
	Predicate string        `json:"predicate"`
	Direction string        `json:"direction"`
	Other     *store.Entity `json:"other"`
}

// EntityDetail is an entity together with all edges touching it.
type EntityDetail struct {
	Entity        *store.Entity  `json:"entity"`
	Relationships []Relationship `json:"relationships"`
}

// ContentItem is one processed page handed over by the ingestion pipeline.
type ContentItem struct {
	URL         string
	Title       string
	Description string
	Content     string
	PageType    string
	Keywords    []string
}

// Service exposes graph operations to the server and resolver.
type Service struct {
	store  GraphStore
	index  Indexer
	logger *slog.Logger
}

// New creates a knowledge graph service.
func New(graphStore GraphStore, idx Indexer) *Service {
	return &Service{
		store:  graphStore,
		index:  idx,
		logger: slog.Default().With("component", "kg"),
	}
}

// AddEntity stores and indexes an entity. A missing ID gets a generated one.
func (s *Service) AddEntity(ctx context.Context, e *store.Entity) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Name == "" {
		e.Name = e.ID
	}

	if err := s.store.CreateEntity(ctx, e); err != nil {
		return err
	}

	if err := s.index.IndexEntity(ctx, e); err != nil {
		return fmt.Errorf("indexing entity: %w", err)
	}

	return nil
}

// AddRelation creates an edge between two existing entities.
func (s *Service) AddRelation(ctx context.Context, sourceID, predicate, targetID string) (*store.Relation, error) {
	if _, err := s.store.GetEntity(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("source entity %s: %w", sourceID, err)
	}
	if _, err := s.store.GetEntity(ctx, targetID); err != nil {
		return nil, fmt.Errorf("target entity %s: %w", targetID, err)
	}

	r := &store.Relation{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Predicate: predicate,
	}
	if err := s.store.CreateRelation(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

// Get returns an entity and all relationships touching it.
func (s *Service) Get(ctx context.Context, id string) (*EntityDetail, error) {
	e, err := s.store.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	relations, err := s.store.RelationsForEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &EntityDetail{Entity: e}
	for _, r := range relations {
		otherID := r.TargetID
		direction := "outgoing"
		if r.TargetID == id && r.SourceID != id {
			otherID = r.SourceID
			direction = "incoming"
		}

		other, err := s.store.GetEntity(ctx, otherID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		detail.Relationships = append(detail.Relationships, Relationship{
			Predicate: r.Predicate,
			Direction: direction,
			Other:     other,
		})
	}

	return detail, nil
}

// Neighborhood returns entities reachable from id within the given number
// of hops, treating edges as undirected. An empty predicate matches all
// edges. Results are capped at 50.
func (s *Service) Neighborhood(ctx context.Context, id, predicate string, distance int) ([]*store.Entity, error) {
	if _, err := s.store.GetEntity(ctx, id); err != nil {
		return nil, err
	}
	if distance < 1 {
		distance = 1
	}

	visited := map[string]bool{id: true}
	frontier := []string{id}
	var result []*store.Entity

	for hop := 0; hop < distance && len(frontier) > 0; hop++ {
		var next []string
		for _, nodeID := range frontier {
			relations, err := s.store.RelationsForEntity(ctx, nodeID)
			if err != nil {
				return nil, err
			}
			for _, r := range relations {
				if predicate != "" && r.Predicate != predicate {
					continue
				}
				otherID := r.TargetID
				if otherID == nodeID {
					otherID = r.SourceID
				}
				if visited[otherID] {
					continue
				}
				visited[otherID] = true
				next = append(next, otherID)

				if len(result) >= neighborhoodCap {
					continue
				}
				other, err := s.store.GetEntity(ctx, otherID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return nil, err
				}
				result = append(result, other)
			}
		}
		frontier = next
	}

	return result, nil
}

// Stats computes graph-wide statistics. Connected components treat the
// directed graph as undirected; density is e / (n·(n−1)).
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	entities, err := s.store.ListEntities(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	relations, err := s.store.ListRelations(ctx, 0)
	if err != nil {
		return nil, err
	}

	typeCounts, err := s.store.EntityTypeCounts(ctx)
	if err != nil {
		return nil, err
	}
	predicateCounts, err := s.store.PredicateCounts(ctx)
	if err != nil {
		return nil, err
	}

	n := len(entities)
	e := len(relations)

	density := 0.0
	if n > 1 {
		density = float64(e) / float64(n*(n-1))
	}

	return &Stats{
		Nodes:               n,
		Edges:               e,
		EntityTypes:         sortedKeys(typeCounts),
		TypeCounts:          typeCounts,
		RelationshipTypes:   sortedKeys(predicateCounts),
		ConnectedComponents: countComponents(entities, relations),
		Density:             density,
		LastUpdated:         time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// TypeDistribution returns entity counts per type, for the admin dashboard.
func (s *Service) TypeDistribution(ctx context.Context) (map[string]int, error) {
	return s.store.EntityTypeCounts(ctx)
}

// UpdateFromContent turns processed pages into content entities and links
// them to existing entities via mentions edges when a keyword search hit
// clears the similarity threshold. Returns the number of entities added.
func (s *Service) UpdateFromContent(ctx context.Context, items []ContentItem) (int, error) {
	added := 0
	for _, item := range items {
		name := item.Title
		if name == "" {
			name = "Untitled"
		}
		description := item.Description
		if description == "" {
			description = item.Content
		}
		description = truncateRunes(description, maxDescriptionBytes)

		entity := &store.Entity{
			ID:          "content-" + uuid.New().String(),
			Type:        "content",
			Name:        name,
			Description: description,
			Attrs: map[string]string{
				"url":          item.URL,
				"content_type": item.PageType,
				"keywords":     strings.Join(item.Keywords, ","),
				"scraped_at":   time.Now().UTC().Format(time.RFC3339),
			},
		}
		if err := s.AddEntity(ctx, entity); err != nil {
			return added, fmt.Errorf("adding content entity for %s: %w", item.URL, err)
		}
		added++

		for _, keyword := range item.Keywords {
			hits, err := s.index.Search(ctx, keyword, 3)
			if err != nil {
				s.logger.Warn("keyword search failed during content linking",
					"keyword", keyword, "error", err)
				continue
			}
			for _, hit := range hits {
				if hit.ID == entity.ID || hit.Similarity <= mentionThreshold {
					continue
				}
				if _, err := s.AddRelation(ctx, entity.ID, "mentions", hit.ID); err != nil {
					s.logger.Warn("linking content entity failed",
						"source", entity.ID, "target", hit.ID, "error", err)
				}
			}
		}
	}

	s.logger.Info("knowledge graph updated from content", "items", len(items), "added", added)
	return added, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// countComponents runs union-find over the entity list and relation list,
// ignoring edge direction.
func countComponents(entities []*store.Entity, relations []*store.Relation) int {
	parent := make(map[string]string, len(entities))
	for _, e := range entities {
		parent[e.ID] = e.ID
	}

	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	union := func(a, b string) {
		ra, okA := parent[a]
		rb, okB := parent[b]
		if !okA || !okB {
			return
		}
		ra, rb = find(ra), find(rb)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, r := range relations {
		union(r.SourceID, r.TargetID)
	}

	components := 0
	for _, e := range entities {
		if find(e.ID) == e.ID {
			components++
		}
	}
	return components
}
