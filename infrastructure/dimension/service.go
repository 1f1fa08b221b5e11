// Package dimension tracks the dimension of every vector column and
// reconciles query and insert vectors to it. The database is the source of
// truth: dimensions are probed from the catalog (or sampled from stored
// vectors), cached with a TTL, and never hard-coded.
package dimension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/specmem/specmem/internal/database"
)

// Defaults for the dimension cache.
const (
	DefaultCacheTTL = 5 * time.Minute

	// CanonicalTable and CanonicalColumn locate the column whose dimension
	// anchors the whole schema.
	CanonicalTable  = "memories"
	CanonicalColumn = "embedding"
)

// Service errors.
var (
	// ErrDimensionUnknown means no column dimension and no stored vectors
	// exist to derive one from.
	ErrDimensionUnknown = errors.New("embedding dimension unknown")

	// ErrEmptyVector rejects vector operations on empty input.
	ErrEmptyVector = errors.New("empty vector")
)

// pgColumnDimension reads a vector column's declared dimension. pgvector
// keeps it in atttypmod; -1 means the column was declared without one.
const pgColumnDimension = `
SELECT a.atttypmod AS dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
JOIN pg_namespace n ON c.relnamespace = n.oid
WHERE n.nspname = ? AND c.relname = ? AND a.attname = ?
  AND a.attnum > 0 AND NOT a.attisdropped`

type cacheEntry struct {
	dimension int
	fetchedAt time.Time
}

// Service resolves vector column dimensions for one project schema.
type Service struct {
	db       database.Database
	schema   string
	override int
	ttl      time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Option configures a Service.
type Option func(*Service)

// WithOverride pins the canonical dimension, skipping the database. Wired
// from SPECMEM_EMBEDDING_DIMENSIONS; values <= 0 are ignored.
func WithOverride(dimension int) Option {
	return func(s *Service) {
		if dimension > 0 {
			s.override = dimension
		}
	}
}

// WithTTL sets the cache TTL. Non-positive values expire entries
// immediately, which is occasionally useful in tests.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a dimension Service for one project schema.
func NewService(db database.Database, schema string, options ...Option) *Service {
	s := &Service{
		db:     db,
		schema: schema,
		ttl:    DefaultCacheTTL,
		logger: slog.Default(),
		cache:  make(map[string]cacheEntry),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// TableDimension returns the dimension of table.column, or 0 when it is
// unknown (column undeclared and no stored vectors yet). The env override
// wins over everything. Results are cached for the TTL; when a refresh
// fails and a prior value exists, the stale value is served with a warning
// and the timestamp is left alone so the next call retries.
func (s *Service) TableDimension(ctx context.Context, table, column string) (int, error) {
	if s.override > 0 {
		return s.override, nil
	}

	key := table + "." + column
	now := time.Now()

	s.mu.Lock()
	entry, cached := s.cache[key]
	s.mu.Unlock()

	if cached && now.Sub(entry.fetchedAt) < s.ttl {
		return entry.dimension, nil
	}

	dim, err := s.probe(ctx, table, column)
	if err != nil {
		if cached {
			s.logger.Warn("dimension probe failed, serving stale value",
				slog.String("column", key),
				slog.Int("dimension", entry.dimension),
				slog.Duration("staleness", now.Sub(entry.fetchedAt)),
				slog.String("error", err.Error()))
			return entry.dimension, nil
		}
		return 0, fmt.Errorf("probe dimension for %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{dimension: dim, fetchedAt: now}
	s.mu.Unlock()

	return dim, nil
}

// EmbeddingDimension returns the canonical dimension, the one of
// memories.embedding. Unlike TableDimension it fails hard when the
// dimension cannot be determined.
func (s *Service) EmbeddingDimension(ctx context.Context) (int, error) {
	dim, err := s.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	if err != nil {
		return 0, err
	}
	if dim <= 0 {
		return 0, fmt.Errorf("%w: %s.%s has no declared dimension and no stored vectors",
			ErrDimensionUnknown, CanonicalTable, CanonicalColumn)
	}
	return dim, nil
}

// Invalidate drops every cached dimension. Called when the embedding
// service restarts, since a model swap can change the dimension story.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.mu.Unlock()
}

// probe resolves a column dimension from the database: the declared
// dimension from the catalog where the backend has one, else the length of
// a sampled stored vector. A missing table or column reads as unknown, not
// as an error.
func (s *Service) probe(ctx context.Context, table, column string) (int, error) {
	if s.db.IsPostgres() {
		var declared int
		result := s.db.Session(ctx).Raw(pgColumnDimension, s.schema, table, column).Scan(&declared)
		if result.Error != nil {
			return 0, fmt.Errorf("read catalog: %w", result.Error)
		}
		if declared > 0 {
			return declared, nil
		}
	}
	return s.sample(ctx, table, column)
}

// sample derives a dimension from stored data: the first non-empty vector
// in the column.
func (s *Service) sample(ctx context.Context, table, column string) (int, error) {
	qualified := s.db.QualifiedTable(s.schema, table)

	var query string
	if s.db.IsPostgres() {
		query = fmt.Sprintf(`SELECT vector_dims(%s) FROM %s WHERE %s IS NOT NULL LIMIT 1`,
			column, qualified, column)
	} else {
		query = fmt.Sprintf(`SELECT %s FROM %s WHERE %s IS NOT NULL AND %s != '' AND %s != '[]' LIMIT 1`,
			column, qualified, column, column, column)
	}

	rows, err := s.db.Session(ctx).Raw(query).Rows()
	if err != nil {
		if isMissingRelation(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("sample %s.%s: %w", table, column, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return 0, rows.Err()
	}

	if s.db.IsPostgres() {
		var dims int
		if err := rows.Scan(&dims); err != nil {
			return 0, fmt.Errorf("scan sampled dimension: %w", err)
		}
		return dims, nil
	}

	var vec database.Vector
	if err := rows.Scan(&vec); err != nil {
		return 0, fmt.Errorf("scan sampled vector: %w", err)
	}
	return vec.Dimension(), nil
}

// isMissingRelation matches the backend's missing-table or missing-column
// errors: SQLSTATE 42P01/42703 on PostgreSQL, "no such table"/"no such
// column" on SQLite.
func isMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"42P01", "42703", "no such table", "no such column"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
