package dimension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// pgVectorColumns lists every vector-typed column in a schema.
const pgVectorColumns = `
SELECT c.relname AS table_name, a.attname AS column_name
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
JOIN pg_namespace n ON c.relnamespace = n.oid
JOIN pg_type t ON a.atttypid = t.oid
WHERE n.nspname = ? AND t.typname = 'vector'
  AND c.relkind = 'r' AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY c.relname, a.attname`

const pgTableIndexes = `SELECT indexdef FROM pg_indexes WHERE schemaname = ? AND tablename = ?`

const sqliteTableIndexes = `SELECT sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL`

// ColumnState describes one vector column as found in the database.
type ColumnState struct {
	Table      string
	Column     string
	Dimension  int
	HasIndex   bool
	IndexKind  string
	Consistent bool
}

// Report is the outcome of a dimension scan across all vector columns.
// The scan only reports; any corrective migration stays in the
// operator's hands.
type Report struct {
	Schema          string
	Canonical       int
	Columns         []ColumnState
	Inconsistencies int
}

// SyncTableDimensions scans every vector column in the schema and compares
// it against the canonical dimension of memories.embedding. Columns with
// no determinable dimension are not flagged; they simply have nothing to
// disagree with yet.
func (s *Service) SyncTableDimensions(ctx context.Context) (*Report, error) {
	report := &Report{Schema: s.schema}

	canonical, err := s.EmbeddingDimension(ctx)
	if err != nil && !errors.Is(err, ErrDimensionUnknown) {
		return nil, err
	}
	report.Canonical = canonical

	columns, err := s.vectorColumns(ctx)
	if err != nil {
		return nil, err
	}

	for _, col := range columns {
		state := ColumnState{Table: col.table, Column: col.column}

		dim, err := s.probe(ctx, col.table, col.column)
		if err != nil {
			return nil, fmt.Errorf("probe %s.%s: %w", col.table, col.column, err)
		}
		state.Dimension = dim

		kind, indexed, err := s.columnIndex(ctx, col.table, col.column)
		if err != nil {
			return nil, err
		}
		state.HasIndex = indexed
		state.IndexKind = kind

		state.Consistent = canonical <= 0 || dim <= 0 || dim == canonical
		if !state.Consistent {
			report.Inconsistencies++
			s.logger.Warn("vector column dimension diverges from canonical",
				slog.String("table", col.table),
				slog.String("column", col.column),
				slog.Int("dimension", dim),
				slog.Int("canonical", canonical))
		}

		report.Columns = append(report.Columns, state)
	}

	return report, nil
}

type columnRef struct {
	table  string
	column string
}

// vectorColumns discovers the schema's vector columns. PostgreSQL exposes
// them through the catalog; SQLite has no column types to inspect, so the
// scan covers the columns the bootstrap DDL creates.
func (s *Service) vectorColumns(ctx context.Context) ([]columnRef, error) {
	if !s.db.IsPostgres() {
		known := []columnRef{
			{table: "memories", column: "embedding"},
			{table: "embedding_queue", column: "embedding"},
		}
		var present []columnRef
		for _, col := range known {
			var count int
			err := s.db.Session(ctx).
				Raw(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, col.table).
				Scan(&count).Error
			if err != nil {
				return nil, fmt.Errorf("list tables: %w", err)
			}
			if count > 0 {
				present = append(present, col)
			}
		}
		return present, nil
	}

	rows, err := s.db.Session(ctx).Raw(pgVectorColumns, s.schema).Rows()
	if err != nil {
		return nil, fmt.Errorf("list vector columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []columnRef
	for rows.Next() {
		var col columnRef
		if err := rows.Scan(&col.table, &col.column); err != nil {
			return nil, fmt.Errorf("scan vector column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// columnIndex reports whether any index covers the column, and its access
// method. SQLite indexes are always btree.
func (s *Service) columnIndex(ctx context.Context, table, column string) (string, bool, error) {
	var (
		query string
		args  []any
	)
	if s.db.IsPostgres() {
		query, args = pgTableIndexes, []any{s.schema, table}
	} else {
		query, args = sqliteTableIndexes, []any{table}
	}

	rows, err := s.db.Session(ctx).Raw(query, args...).Rows()
	if err != nil {
		return "", false, fmt.Errorf("list indexes for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return "", false, fmt.Errorf("scan index definition: %w", err)
		}
		if !indexCoversColumn(definition, column) {
			continue
		}
		return indexMethod(definition), true, nil
	}
	return "", false, rows.Err()
}

// indexCoversColumn checks whether the column leads any key of the index
// definition's first parenthesized column list.
func indexCoversColumn(definition, column string) bool {
	open := strings.Index(definition, "(")
	if open < 0 {
		return false
	}
	closing := strings.Index(definition[open:], ")")
	if closing < 0 {
		return false
	}
	for _, part := range strings.Split(definition[open+1:open+closing], ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) > 0 && strings.EqualFold(fields[0], column) {
			return true
		}
	}
	return false
}

// indexMethod extracts the index access method from a definition,
// normalized to ivfflat, hnsw, btree, or other.
func indexMethod(definition string) string {
	lower := strings.ToLower(definition)
	idx := strings.Index(lower, "using ")
	if idx < 0 {
		// SQLite definitions carry no USING clause.
		return "btree"
	}
	fields := strings.Fields(lower[idx+len("using "):])
	if len(fields) == 0 {
		return "other"
	}
	switch fields[0] {
	case "ivfflat", "hnsw", "btree":
		return fields[0]
	default:
		return "other"
	}
}
