package persistence

import (
	"context"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/domain/vector"
	"github.com/specmem/specmem/internal/database"
)

// MemorySearcher implements search.Searcher over one project's memories.
// PostgreSQL ranks rows with pgvector's cosine distance operator; SQLite
// loads the candidates and ranks them in memory, which is fine at the row
// counts a single project accumulates.
type MemorySearcher struct {
	db    database.Database
	table string
}

// NewMemorySearcher creates a MemorySearcher bound to the given project
// schema. The query vector is expected to already match the column
// dimension; reconciling it is the dimension adapter's job.
func NewMemorySearcher(db database.Database, schema string) MemorySearcher {
	return MemorySearcher{db: db, table: db.QualifiedTable(schema, "memories")}
}

// Search returns memories similar to the query vector, most similar first.
// Similarity is cosine folded into [0,1]: 1 identical, 0.5 orthogonal,
// 0 opposite. Without a query vector there is nothing to rank and the
// result is empty.
func (s MemorySearcher) Search(ctx context.Context, options ...repository.Option) ([]search.Match, error) {
	q := repository.Build(options...)

	embedding, ok := search.EmbeddingFrom(q)
	if !ok || len(embedding) == 0 {
		return []search.Match{}, nil
	}

	limit := q.LimitValue()
	if limit <= 0 {
		limit = 10
	}
	threshold, _ := search.ThresholdFrom(q)
	filters, _ := search.FiltersFrom(q)
	excludeID, _ := search.ExcludeIDFrom(q)

	if s.db.IsPostgres() {
		return s.searchPgvector(ctx, embedding, filters, excludeID, threshold, limit)
	}
	return s.searchInMemory(ctx, embedding, filters, excludeID, threshold, limit)
}

func (s MemorySearcher) searchPgvector(
	ctx context.Context,
	embedding []float64,
	filters search.Filters,
	excludeID string,
	threshold float64,
	limit int,
) ([]search.Match, error) {
	queryVector := database.NewVector(embedding).String()

	tx := s.db.Session(ctx).Table(s.table).
		Select("id, content, tags, metadata, embedding, created_at, (embedding <=> ?) AS distance", queryVector).
		Where("embedding IS NOT NULL")
	tx = applyPgFilters(tx, filters)
	if excludeID != "" {
		tx = tx.Where("id != ?", excludeID)
	}
	tx = tx.Order("distance ASC").Limit(limit)

	var rows []struct {
		MemoryModel
		Distance float64 `gorm:"column:distance"`
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	mapper := MemoryMapper{}
	matches := make([]search.Match, 0, len(rows))
	for _, row := range rows {
		// Cosine distance: 0 = identical, 2 = opposite. Fold into 0-1.
		similarity := 1.0 - row.Distance/2.0
		if similarity < threshold {
			// Rows arrive ordered by distance, everything after is worse.
			break
		}
		matches = append(matches, search.NewMatch(mapper.ToDomain(row.MemoryModel), similarity))
	}
	return matches, nil
}

// applyPgFilters pushes the filters into SQL. The role predicate mirrors
// the domain fallback chain: metadata.role first, then a role:* tag.
func applyPgFilters(tx *gorm.DB, filters search.Filters) *gorm.DB {
	if filters.IsEmpty() {
		return tx
	}
	if tags := filters.Tags(); len(tags) > 0 {
		tx = tx.Where("tags @> ?", pq.StringArray(tags))
	}
	if role := filters.Role(); role != "" {
		tx = tx.Where("(LOWER(metadata->>'role') = ? OR tags @> ?)", role, pq.StringArray{"role:" + role})
	}
	if sessionID := filters.SessionID(); sessionID != "" {
		tx = tx.Where("metadata->>'sessionId' = ?", sessionID)
	}
	if after := filters.CreatedAfter(); !after.IsZero() {
		tx = tx.Where("created_at > ?", after)
	}
	if before := filters.CreatedBefore(); !before.IsZero() {
		tx = tx.Where("created_at < ?", before)
	}
	return tx
}

func (s MemorySearcher) searchInMemory(
	ctx context.Context,
	embedding []float64,
	filters search.Filters,
	excludeID string,
	threshold float64,
	limit int,
) ([]search.Match, error) {
	tx := s.db.Session(ctx).Table(s.table).
		Where("embedding IS NOT NULL AND embedding != '' AND embedding != '[]'")
	if excludeID != "" {
		tx = tx.Where("id != ?", excludeID)
	}
	if sessionID := filters.SessionID(); sessionID != "" {
		tx = tx.Where("json_extract(metadata, '$.sessionId') = ?", sessionID)
	}
	if after := filters.CreatedAfter(); !after.IsZero() {
		tx = tx.Where("created_at > ?", after)
	}
	if before := filters.CreatedBefore(); !before.IsZero() {
		tx = tx.Where("created_at < ?", before)
	}

	var models []MemoryModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("load search candidates: %w", err)
	}

	mapper := MemoryMapper{}
	matches := make([]search.Match, 0, len(models))
	for _, model := range models {
		mem := mapper.ToDomain(model)
		if !matchesDomainFilters(mem, filters) {
			continue
		}
		stored := mem.Embedding()
		if len(stored) != len(embedding) {
			// Rows embedded under a different model cannot be compared.
			continue
		}
		similarity := (1.0 + vector.Cosine(embedding, stored)) / 2.0
		if similarity < threshold {
			continue
		}
		matches = append(matches, search.NewMatch(mem, similarity))
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity() > matches[j].Similarity()
	})
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

// matchesDomainFilters applies the filters SQLite cannot express in SQL:
// tag containment on the TEXT-encoded array column and the role fallback
// chain.
func matchesDomainFilters(mem memory.Memory, filters search.Filters) bool {
	for _, tag := range filters.Tags() {
		if !mem.HasTag(tag) {
			return false
		}
	}
	if role := filters.Role(); role != "" && mem.Role() != role {
		return false
	}
	return true
}
