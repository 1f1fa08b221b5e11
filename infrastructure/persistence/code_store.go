package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/specmem/specmem/domain/code"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/internal/database"
	"gorm.io/gorm/clause"
)

// isMissingTable reports whether err is the backend's missing-table error:
// SQLSTATE 42P01 on PostgreSQL, "no such table" on SQLite. Code tables are
// written by the indexer, so databases that predate it legitimately lack
// them.
func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "42P01") || strings.Contains(msg, "no such table")
}

// CodeDefinitionStore implements code.DefinitionStore using GORM. Each
// instance is bound to one project schema's code_definitions table.
type CodeDefinitionStore struct {
	database.Repository[code.Definition, CodeDefinitionModel]
}

// NewCodeDefinitionStore creates a CodeDefinitionStore bound to the given
// project schema.
func NewCodeDefinitionStore(db database.Database, schema string) CodeDefinitionStore {
	return CodeDefinitionStore{
		Repository: database.NewRepositoryForTable[code.Definition, CodeDefinitionModel](
			db, CodeDefinitionMapper{}, "code definition", db.QualifiedTable(schema, "code_definitions"),
		),
	}
}

// GetByFileAndName returns the definition with the given name in the given
// file. Returns code.ErrTableMissing when the table has not been created.
func (s CodeDefinitionStore) GetByFileAndName(ctx context.Context, filePath, name string) (code.Definition, error) {
	def, err := s.FindOne(ctx,
		repository.WithFilePath(filePath),
		repository.WithCondition("name", name),
	)
	if isMissingTable(err) {
		return code.Definition{}, fmt.Errorf("%w: code_definitions", code.ErrTableMissing)
	}
	return def, err
}

// Save creates or updates a definition, keyed by (file_path, name).
func (s CodeDefinitionStore) Save(ctx context.Context, def code.Definition) (code.Definition, error) {
	model := s.Mapper().ToModel(def)
	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_path"}, {Name: "name"}},
		UpdateAll: true,
	}).Create(&model)
	if result.Error != nil {
		return code.Definition{}, fmt.Errorf("save code definition: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// SaveAll creates or updates multiple definitions in one batch.
func (s CodeDefinitionStore) SaveAll(ctx context.Context, defs []code.Definition) ([]code.Definition, error) {
	if len(defs) == 0 {
		return []code.Definition{}, nil
	}

	models := make([]CodeDefinitionModel, len(defs))
	for i, d := range defs {
		models[i] = s.Mapper().ToModel(d)
	}

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_path"}, {Name: "name"}},
		UpdateAll: true,
	}).Create(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("save code definitions: %w", result.Error)
	}

	saved := make([]code.Definition, len(models))
	for i, m := range models {
		saved[i] = s.Mapper().ToDomain(m)
	}
	return saved, nil
}

// CodebaseFileStore implements code.FileStore using GORM. Each instance is
// bound to one project schema's codebase_files table.
type CodebaseFileStore struct {
	database.Repository[code.File, CodebaseFileModel]
}

// NewCodebaseFileStore creates a CodebaseFileStore bound to the given
// project schema.
func NewCodebaseFileStore(db database.Database, schema string) CodebaseFileStore {
	return CodebaseFileStore{
		Repository: database.NewRepositoryForTable[code.File, CodebaseFileModel](
			db, CodebaseFileMapper{}, "codebase file", db.QualifiedTable(schema, "codebase_files"),
		),
	}
}

// GetByPath returns the file snapshot stored under the given path. Returns
// code.ErrTableMissing when the table has not been created.
func (s CodebaseFileStore) GetByPath(ctx context.Context, filePath string) (code.File, error) {
	file, err := s.FindOne(ctx, repository.WithFilePath(filePath))
	if isMissingTable(err) {
		return code.File{}, fmt.Errorf("%w: codebase_files", code.ErrTableMissing)
	}
	return file, err
}

// Save creates or updates a file snapshot, keyed by file_path.
func (s CodebaseFileStore) Save(ctx context.Context, file code.File) (code.File, error) {
	model := s.Mapper().ToModel(file)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return code.File{}, fmt.Errorf("save codebase file: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// CodebasePointerStore implements code.PointerStore using GORM. Each
// instance is bound to one project schema.
type CodebasePointerStore struct {
	database.Repository[code.Pointer, CodebasePointerModel]
	filesTable string
}

// NewCodebasePointerStore creates a CodebasePointerStore bound to the given
// project schema.
func NewCodebasePointerStore(db database.Database, schema string) CodebasePointerStore {
	return CodebasePointerStore{
		Repository: database.NewRepositoryForTable[code.Pointer, CodebasePointerModel](
			db, CodebasePointerMapper{}, "codebase pointer", db.QualifiedTable(schema, "codebase_pointers"),
		),
		filesTable: db.QualifiedTable(schema, "codebase_files"),
	}
}

// FindByMemory returns up to limit pointers for the given memory, newest
// first. The join against codebase_files drops stale pointers whose file is
// no longer indexed. Returns code.ErrTableMissing when the tables do not
// exist.
func (s CodebasePointerStore) FindByMemory(ctx context.Context, memoryID string, limit int) ([]code.Pointer, error) {
	query := fmt.Sprintf(`
SELECT p.id, p.memory_id, p.file_path, p.line_start, p.line_end, p.function_name, p.created_at
FROM %s p
JOIN %s f ON f.file_path = p.file_path
WHERE p.memory_id = ?
ORDER BY p.created_at DESC`, s.Table(), s.filesTable)

	args := []any{memoryID}
	if limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, limit)
	}

	var models []CodebasePointerModel
	result := s.DB(ctx).Raw(query, args...).Scan(&models)
	if result.Error != nil {
		if isMissingTable(result.Error) {
			return nil, fmt.Errorf("%w: codebase_pointers", code.ErrTableMissing)
		}
		return nil, fmt.Errorf("find pointers for memory: %w", result.Error)
	}

	pointers := make([]code.Pointer, len(models))
	for i, m := range models {
		pointers[i] = s.Mapper().ToDomain(m)
	}
	return pointers, nil
}

// Save inserts a pointer row.
func (s CodebasePointerStore) Save(ctx context.Context, ptr code.Pointer) (code.Pointer, error) {
	saved, err := s.Create(ctx, ptr)
	if err != nil {
		if isMissingTable(err) {
			return code.Pointer{}, fmt.Errorf("%w: codebase_pointers", code.ErrTableMissing)
		}
		return code.Pointer{}, err
	}
	return saved, nil
}
