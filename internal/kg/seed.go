// ABOUTME: Seeds the knowledge graph from a TOML file on first run
// ABOUTME: Loads base entities and relations when the store is empty

package kg

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/skyarc/portalbot/internal/store"
)

type seedEntity struct {
	ID          string            `toml:"id"`
	Type        string            `toml:"type"`
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Attrs       map[string]string `toml:"attrs"`
}

type seedRelation struct {
	Source    string `toml:"source"`
	Predicate string `toml:"predicate"`
	Target    string `toml:"target"`
}

type seedFile struct {
	Entities  []seedEntity   `toml:"entities"`
	Relations []seedRelation `toml:"relations"`
}

// Seed loads base knowledge from a TOML file into an empty graph. It is a
// no-op when the store already has entities or when path is empty.
func (s *Service) Seed(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	count, err := s.store.CountEntities(ctx)
	if err != nil {
		return fmt.Errorf("checking entity count: %w", err)
	}
	if count > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var seed seedFile
	if err := toml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	for _, e := range seed.Entities {
		entity := &store.Entity{
			ID:          e.ID,
			Type:        e.Type,
			Name:        e.Name,
			Description: e.Description,
			Attrs:       e.Attrs,
		}
		if err := s.AddEntity(ctx, entity); err != nil {
			return fmt.Errorf("seeding entity %s: %w", e.ID, err)
		}
	}

	for _, r := range seed.Relations {
		if _, err := s.AddRelation(ctx, r.Source, r.Predicate, r.Target); err != nil {
			return fmt.Errorf("seeding relation %s -%s-> %s: %w", r.Source, r.Predicate, r.Target, err)
		}
	}

	s.logger.Info("knowledge graph seeded",
		"entities", len(seed.Entities), "relations", len(seed.Relations), "path", path)
	return nil
}
