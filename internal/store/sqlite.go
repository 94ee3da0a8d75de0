// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists graph entities, relations, ingestion logs, and chat transcripts

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			attrs TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
		CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);

		CREATE TABLE IF NOT EXISTS relations (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			predicate TEXT NOT NULL,
			attrs TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (source_id) REFERENCES entities(id),
			FOREIGN KEY (target_id) REFERENCES entities(id)
		);

		CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id);
		CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id);

		CREATE TABLE IF NOT EXISTS ingest_log (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			page_type TEXT NOT NULL DEFAULT '',
			content_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ingest_log_created
			ON ingest_log(created_at);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_session
			ON chat_messages(session_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if an error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

func marshalAttrs(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("marshaling attrs: %w", err)
	}
	return string(data), nil
}

func unmarshalAttrs(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var attrs map[string]string
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, fmt.Errorf("unmarshaling attrs: %w", err)
	}
	return attrs, nil
}

// CreateEntity inserts a new graph node. Returns ErrDuplicateEntity if
// an entity with the same ID already exists.
func (s *SQLiteStore) CreateEntity(ctx context.Context, e *Entity) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	attrs, err := marshalAttrs(e.Attrs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, type, name, description, attrs, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Name, e.Description, attrs,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEntity
		}
		return fmt.Errorf("inserting entity: %w", err)
	}

	return nil
}

func scanEntity(row interface{ Scan(...any) error }) (*Entity, error) {
	var e Entity
	var attrs, createdAt string

	err := row.Scan(&e.ID, &e.Type, &e.Name, &e.Description, &attrs, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	e.Attrs, err = unmarshalAttrs(attrs)
	if err != nil {
		return nil, err
	}

	e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &e, nil
}

// GetEntity retrieves an entity by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, description, attrs, created_at
		FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

// GetEntityByName retrieves an entity by exact name match, case-insensitive.
// Returns ErrNotFound if no entity has that name.
func (s *SQLiteStore) GetEntityByName(ctx context.Context, name string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, description, attrs, created_at
		FROM entities WHERE name = ? COLLATE NOCASE
		ORDER BY created_at LIMIT 1`, name)
	return scanEntity(row)
}

// ListEntities returns entities ordered by creation time, optionally
// filtered by type. A limit of 0 means no limit.
func (s *SQLiteStore) ListEntities(ctx context.Context, entityType string, limit int) ([]*Entity, error) {
	query := `
		SELECT id, type, name, description, attrs, created_at
		FROM entities`
	args := []any{}

	if entityType != "" {
		query += ` WHERE type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY created_at`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

// CountEntities returns the total number of entities.
func (s *SQLiteStore) CountEntities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return count, nil
}

// EntityTypeCounts returns the number of entities per type.
func (s *SQLiteStore) EntityTypeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM entities GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("counting entity types: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		counts[entityType] = count
	}

	return counts, rows.Err()
}

// DeleteEntity removes an entity and any relations touching it.
func (s *SQLiteStore) DeleteEntity(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM relations WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return fmt.Errorf("deleting relations: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// CreateRelation inserts a new graph edge. Both endpoints must exist.
func (s *SQLiteStore) CreateRelation(ctx context.Context, r *Relation) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	attrs, err := marshalAttrs(r.Attrs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relations (id, source_id, target_id, predicate, attrs, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceID, r.TargetID, r.Predicate, attrs,
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("relation endpoints must exist: %w", err)
		}
		return fmt.Errorf("inserting relation: %w", err)
	}

	return nil
}

func scanRelation(row interface{ Scan(...any) error }) (*Relation, error) {
	var r Relation
	var attrs, createdAt string

	err := row.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Predicate, &attrs, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning relation: %w", err)
	}

	r.Attrs, err = unmarshalAttrs(attrs)
	if err != nil {
		return nil, err
	}

	r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &r, nil
}

// GetRelation retrieves a relation by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetRelation(ctx context.Context, id string) (*Relation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, target_id, predicate, attrs, created_at
		FROM relations WHERE id = ?`, id)
	return scanRelation(row)
}

// ListRelations returns relations ordered by creation time.
// A limit of 0 means no limit.
func (s *SQLiteStore) ListRelations(ctx context.Context, limit int) ([]*Relation, error) {
	query := `
		SELECT id, source_id, target_id, predicate, attrs, created_at
		FROM relations ORDER BY created_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	var relations []*Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}

	return relations, rows.Err()
}

// RelationsForEntity returns all relations where the entity is either
// the source or the target.
func (s *SQLiteStore) RelationsForEntity(ctx context.Context, entityID string) ([]*Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, predicate, attrs, created_at
		FROM relations WHERE source_id = ? OR target_id = ?
		ORDER BY created_at`, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying relations for entity: %w", err)
	}
	defer rows.Close()

	var relations []*Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}

	return relations, rows.Err()
}

// CountRelations returns the total number of relations.
func (s *SQLiteStore) CountRelations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting relations: %w", err)
	}
	return count, nil
}

// PredicateCounts returns the number of relations per predicate.
func (s *SQLiteStore) PredicateCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predicate, COUNT(*) FROM relations GROUP BY predicate`)
	if err != nil {
		return nil, fmt.Errorf("counting predicates: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var predicate string
		var count int
		if err := rows.Scan(&predicate, &count); err != nil {
			return nil, fmt.Errorf("scanning predicate count: %w", err)
		}
		counts[predicate] = count
	}

	return counts, rows.Err()
}

// AppendIngestLog records the outcome of processing one crawled page.
func (s *SQLiteStore) AppendIngestLog(ctx context.Context, entry *IngestLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_log (id, url, title, page_type, content_count, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.URL, entry.Title, entry.PageType, entry.ContentCount,
		entry.Status, entry.Message,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting ingest log entry: %w", err)
	}

	return nil
}

// ListIngestLog returns log entries newest first. A limit of 0 means no limit.
func (s *SQLiteStore) ListIngestLog(ctx context.Context, limit int) ([]*IngestLogEntry, error) {
	query := `
		SELECT id, url, title, page_type, content_count, status, message, created_at
		FROM ingest_log ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ingest log: %w", err)
	}
	defer rows.Close()

	var entries []*IngestLogEntry
	for rows.Next() {
		var entry IngestLogEntry
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.URL, &entry.Title, &entry.PageType,
			&entry.ContentCount, &entry.Status, &entry.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning ingest log entry: %w", err)
		}
		entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// AppendChatMessage persists one turn of a chat session transcript.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, sender, content, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Sender, msg.Content, msg.Confidence,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}

	return nil
}

// ListChatMessages returns a session's messages in order. A limit of 0
// means no limit; otherwise the most recent messages are returned.
func (s *SQLiteStore) ListChatMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	query := `
		SELECT id, session_id, sender, content, confidence, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at, rowid`
	args := []any{sessionID}

	if limit > 0 {
		// Take the newest N, then present them oldest first.
		query = `
			SELECT id, session_id, sender, content, confidence, created_at FROM (
				SELECT rowid, id, session_id, sender, content, confidence, created_at
				FROM chat_messages WHERE session_id = ?
				ORDER BY created_at DESC, rowid DESC LIMIT ?
			) ORDER BY created_at, rowid`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Sender, &msg.Content,
			&msg.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		msg.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}
