package persistence

import (
	"context"
	"fmt"

	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/internal/database"
)

// MemoryStore implements memory.Store using GORM. Each instance is bound to
// one project schema's memories table.
type MemoryStore struct {
	database.Repository[memory.Memory, MemoryModel]
	db database.Database
}

// NewMemoryStore creates a MemoryStore bound to the given project schema.
func NewMemoryStore(db database.Database, schema string) MemoryStore {
	return MemoryStore{
		Repository: database.NewRepositoryForTable[memory.Memory, MemoryModel](
			db, MemoryMapper{}, "memory", db.QualifiedTable(schema, "memories"),
		),
		db: db,
	}
}

// Get returns the memory with the given id.
func (s MemoryStore) Get(ctx context.Context, id string) (memory.Memory, error) {
	return s.FindOne(ctx, repository.WithCondition("id", id))
}

// Save creates or updates a memory.
func (s MemoryStore) Save(ctx context.Context, mem memory.Memory) (memory.Memory, error) {
	model := s.Mapper().ToModel(mem)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return memory.Memory{}, fmt.Errorf("save memory: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// SaveAll creates or updates multiple memories.
func (s MemoryStore) SaveAll(ctx context.Context, mems []memory.Memory) ([]memory.Memory, error) {
	if len(mems) == 0 {
		return []memory.Memory{}, nil
	}

	models := make([]MemoryModel, len(mems))
	for i, m := range mems {
		models[i] = s.Mapper().ToModel(m)
	}

	if result := s.DB(ctx).Save(&models); result.Error != nil {
		return nil, fmt.Errorf("save memories: %w", result.Error)
	}

	saved := make([]memory.Memory, len(models))
	for i, m := range models {
		saved[i] = s.Mapper().ToDomain(m)
	}
	return saved, nil
}

// Delete removes a memory by id.
func (s MemoryStore) Delete(ctx context.Context, id string) error {
	return s.DeleteBy(ctx, repository.WithCondition("id", id))
}

// FindBySession returns up to limit memories sharing metadata.sessionId,
// ordered by created_at ascending.
func (s MemoryStore) FindBySession(ctx context.Context, sessionID string, limit int) ([]memory.Memory, error) {
	options := []repository.Option{
		repository.WithWhere(s.sessionPredicate(), sessionID),
		repository.WithOrderAsc("created_at"),
	}
	if limit > 0 {
		options = append(options, repository.WithLimit(limit))
	}
	return s.Find(ctx, options...)
}

// Count returns the total number of memories in the project schema.
func (s MemoryStore) Count(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx)
}

// CountWithEmbeddings returns the number of memories carrying a vector.
func (s MemoryStore) CountWithEmbeddings(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx, repository.WithWhere(s.embeddedPredicate()))
}

// sessionPredicate returns the metadata.sessionId extraction for the
// backend. Session ids live inside the JSON metadata column, not in a
// dedicated column.
func (s MemoryStore) sessionPredicate() string {
	if s.db.IsPostgres() {
		return "metadata->>'sessionId' = ?"
	}
	return "json_extract(metadata, '$.sessionId') = ?"
}

// embeddedPredicate matches rows with a usable vector. SQLite stores the
// vector literal as TEXT, so empty strings and empty literals count as
// missing there.
func (s MemoryStore) embeddedPredicate() string {
	if s.db.IsPostgres() {
		return "embedding IS NOT NULL"
	}
	return "embedding IS NOT NULL AND embedding != '' AND embedding != '[]'"
}
