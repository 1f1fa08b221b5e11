// Package persistence provides database storage implementations.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/internal/database"
)

// SQL statements specific to pgvector (extension, indexes).
const (
	pgCreateVectorExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgCreateIvfflatIndexTemplate = `
CREATE INDEX IF NOT EXISTS %s_embedding_idx
ON %s
USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`
)

// Bootstrap errors.
var (
	ErrBootstrapFailed   = errors.New("failed to bootstrap schema")
	ErrInvalidSchemaName = errors.New("invalid schema name")
)

// Bootstrap creates the global projects registry, the project schema, and
// the per-project tables, idempotently. A dimension > 0 pins the vector
// columns to that width; 0 leaves them untyped so the database fixes the
// width on the first insert.
//
// Vector index creation is attempted but never fatal: ivfflat refuses
// untyped columns and small corpora, and the tables work without it.
func Bootstrap(ctx context.Context, db database.Database, schema string, dimension int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if !project.ValidSchemaName(schema) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}

	session := db.Session(ctx)

	if db.IsPostgres() {
		if err := session.Exec(pgCreateVectorExtension).Error; err != nil {
			return errors.Join(ErrBootstrapFailed, fmt.Errorf("create extension: %w", err))
		}
		if err := session.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)).Error; err != nil {
			return errors.Join(ErrBootstrapFailed, fmt.Errorf("create schema: %w", err))
		}
	}

	for _, stmt := range tableStatements(db, schema, dimension) {
		if err := session.Exec(stmt).Error; err != nil {
			return errors.Join(ErrBootstrapFailed, fmt.Errorf("create table: %w", err))
		}
	}

	for _, stmt := range indexStatements(db, schema) {
		if err := session.Exec(stmt).Error; err != nil {
			return errors.Join(ErrBootstrapFailed, fmt.Errorf("create index: %w", err))
		}
	}

	if db.IsPostgres() {
		memories := db.QualifiedTable(schema, "memories")
		indexSQL := fmt.Sprintf(pgCreateIvfflatIndexTemplate, indexPrefix(memories), memories)
		if err := session.Exec(indexSQL).Error; err != nil {
			logger.Warn("vector index creation failed, falling back to sequential scan",
				slog.String("table", memories),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// tableStatements returns the CREATE TABLE DDL for the given backend.
// SQLite has no schemas, arrays, or vector types; those columns degrade
// to TEXT holding the same literal forms the mappers write.
func tableStatements(db database.Database, schema string, dimension int) []string {
	if db.IsPostgres() {
		vectorType := "vector"
		if dimension > 0 {
			vectorType = fmt.Sprintf("vector(%d)", dimension)
		}
		return []string{
			`CREATE TABLE IF NOT EXISTS projects (
    id UUID PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id UUID PRIMARY KEY,
    content TEXT NOT NULL,
    tags TEXT[],
    metadata JSONB,
    embedding %s,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, db.QualifiedTable(schema, "memories"), vectorType),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    project_id UUID,
    text TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 5,
    status TEXT NOT NULL DEFAULT 'pending',
    embedding %s,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at TIMESTAMPTZ
)`, db.QualifiedTable(schema, "embedding_queue"), vectorType),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    file_path TEXT NOT NULL,
    name TEXT NOT NULL,
    definition_type TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    start_line INTEGER NOT NULL DEFAULT 0,
    end_line INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL DEFAULT '',
    signature TEXT NOT NULL DEFAULT '',
    docstring TEXT NOT NULL DEFAULT '',
    is_exported BOOLEAN NOT NULL DEFAULT false,
    UNIQUE (file_path, name)
)`, db.QualifiedTable(schema, "code_definitions")),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    file_path TEXT PRIMARY KEY,
    file_name TEXT NOT NULL DEFAULT '',
    language_id TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    line_count INTEGER NOT NULL DEFAULT 0
)`, db.QualifiedTable(schema, "codebase_files")),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    memory_id UUID NOT NULL,
    file_path TEXT NOT NULL,
    line_start INTEGER NOT NULL DEFAULT 0,
    line_end INTEGER NOT NULL DEFAULT 0,
    function_name TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, db.QualifiedTable(schema, "codebase_pointers")),
		}
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    tags TEXT,
    metadata TEXT,
    embedding TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS embedding_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id TEXT,
    text TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 5,
    status TEXT NOT NULL DEFAULT 'pending',
    embedding TEXT,
    error_message TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    processed_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS code_definitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_path TEXT NOT NULL,
    name TEXT NOT NULL,
    definition_type TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    start_line INTEGER NOT NULL DEFAULT 0,
    end_line INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL DEFAULT '',
    signature TEXT NOT NULL DEFAULT '',
    docstring TEXT NOT NULL DEFAULT '',
    is_exported BOOLEAN NOT NULL DEFAULT false,
    UNIQUE (file_path, name)
)`,
		`CREATE TABLE IF NOT EXISTS codebase_files (
    file_path TEXT PRIMARY KEY,
    file_name TEXT NOT NULL DEFAULT '',
    language_id TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    line_count INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS codebase_pointers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    memory_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    line_start INTEGER NOT NULL DEFAULT 0,
    line_end INTEGER NOT NULL DEFAULT 0,
    function_name TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	}
}

// indexStatements returns the plain (non-vector) index DDL.
func indexStatements(db database.Database, schema string) []string {
	queue := db.QualifiedTable(schema, "embedding_queue")
	pointers := db.QualifiedTable(schema, "codebase_pointers")
	return []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_drain_idx ON %s (status, priority DESC, created_at)`,
			indexPrefix(queue), queue),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_memory_idx ON %s (memory_id)`,
			indexPrefix(pointers), pointers),
	}
}

// indexPrefix derives an index name prefix from a possibly schema-qualified
// table name. Folding the schema into the name keeps PostgreSQL names
// readable and gives SQLite, where every schema maps onto the same table,
// exactly one set of indexes.
func indexPrefix(qualified string) string {
	return strings.ReplaceAll(qualified, ".", "_")
}
