// ABOUTME: Storage interfaces and data types for the knowledge graph and chat history
// ABOUTME: Defines entities, relations, ingestion log entries, and chat transcripts

package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEntity is returned when creating an entity whose ID
	// already exists.
	ErrDuplicateEntity = errors.New("entity already exists")
)

// Entity is a node in the knowledge graph.
type Entity struct {
	ID          string
	Type        string
	Name        string
	Description string
	Attrs       map[string]string
	CreatedAt   time.Time
}

// Relation is a directed, labeled edge between two entities.
type Relation struct {
	ID        string
	SourceID  string
	TargetID  string
	Predicate string
	Attrs     map[string]string
	CreatedAt time.Time
}

// IngestLogEntry records the outcome of processing one page during a crawl.
type IngestLogEntry struct {
	ID           string
	URL          string
	Title        string
	PageType     string
	ContentCount int
	Status       string
	Message      string
	CreatedAt    time.Time
}

// ChatMessage is one turn of a chat session transcript.
type ChatMessage struct {
	ID         string
	SessionID  string
	Sender     string
	Content    string
	Confidence float64
	CreatedAt  time.Time
}

// EntityStore manages knowledge graph nodes.
type EntityStore interface {
	CreateEntity(ctx context.Context, e *Entity) error
	GetEntity(ctx context.Context, id string) (*Entity, error)
	GetEntityByName(ctx context.Context, name string) (*Entity, error)
	ListEntities(ctx context.Context, entityType string, limit int) ([]*Entity, error)
	CountEntities(ctx context.Context) (int, error)
	EntityTypeCounts(ctx context.Context) (map[string]int, error)
	DeleteEntity(ctx context.Context, id string) error
}

// RelationStore manages knowledge graph edges.
type RelationStore interface {
	CreateRelation(ctx context.Context, r *Relation) error
	GetRelation(ctx context.Context, id string) (*Relation, error)
	ListRelations(ctx context.Context, limit int) ([]*Relation, error)
	RelationsForEntity(ctx context.Context, entityID string) ([]*Relation, error)
	CountRelations(ctx context.Context) (int, error)
	PredicateCounts(ctx context.Context) (map[string]int, error)
}

// IngestLogStore records crawl activity for the admin dashboard.
type IngestLogStore interface {
	AppendIngestLog(ctx context.Context, entry *IngestLogEntry) error
	ListIngestLog(ctx context.Context, limit int) ([]*IngestLogEntry, error)
}

// ChatStore persists chat session transcripts.
type ChatStore interface {
	AppendChatMessage(ctx context.Context, msg *ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error)
}

// Store is the full persistence interface used by the server.
type Store interface {
	EntityStore
	RelationStore
	IngestLogStore
	ChatStore

	Close() error
}
