// ABOUTME: Vector similarity index over knowledge graph entities using chromem-go
// ABOUTME: Backs the search API and content-to-entity linking during ingestion

package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/skyarc/portalbot/internal/store"
)

const collectionName = "entities"

// Result is one ranked hit from a similarity search.
type Result struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
}

// Index is a persistent vector index over graph entities.
type Index struct {
	mu         sync.RWMutex
	collection *chromem.Collection
	logger     *slog.Logger
}

// New opens a vector index at the given path. An empty path keeps the
// index in memory, which is what the tests and the local embedder use.
func New(path string, embed chromem.EmbeddingFunc) (*Index, error) {
	logger := slog.Default().With("component", "index")

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector database: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	logger.Info("vector index initialized", "path", path, "documents", collection.Count())
	return &Index{collection: collection, logger: logger}, nil
}

// IndexEntity embeds an entity so it becomes searchable. Re-indexing an
// existing ID replaces the previous document.
func (i *Index) IndexEntity(ctx context.Context, e *store.Entity) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	content := strings.TrimSpace(e.Name + " " + e.Description + " " + e.Type)
	doc := chromem.Document{
		ID: e.ID,
		Metadata: map[string]string{
			"name":        e.Name,
			"type":        e.Type,
			"description": e.Description,
		},
		Content: content,
	}

	if err := i.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("indexing entity %s: %w", e.ID, err)
	}

	return nil
}

// Search returns up to limit entities ranked by similarity to the query.
// Similarity is clamped to [0, 1].
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	hits, err := i.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		sim := float64(h.Similarity)
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		results = append(results, Result{
			ID:          h.ID,
			Name:        h.Metadata["name"],
			Type:        h.Metadata["type"],
			Description: h.Metadata["description"],
			Similarity:  sim,
		})
	}

	return results, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.collection.Count()
}
