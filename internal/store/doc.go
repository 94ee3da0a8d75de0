// ABOUTME: Package documentation for the store package
// ABOUTME: Explains the persistence layer design

// Package store provides persistence for the knowledge graph, crawl
// activity, and chat transcripts.
//
// The canonical implementation is SQLiteStore, backed by modernc.org/sqlite
// with WAL mode and automatic schema creation. All timestamps are stored
// as RFC3339 UTC strings. Entity and relation attributes are stored as
// JSON text columns.
//
// Lookups of missing records return ErrNotFound; inserting an entity with
// an existing ID returns ErrDuplicateEntity. Callers should check for
// these sentinels with errors.Is.
package store
