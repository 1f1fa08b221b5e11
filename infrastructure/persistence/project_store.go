package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/internal/database"
	"gorm.io/gorm/clause"
)

// ProjectStore implements project.Store using GORM against the global
// projects registry table.
type ProjectStore struct {
	database.Repository[project.Project, ProjectModel]
}

// NewProjectStore creates a new ProjectStore.
func NewProjectStore(db database.Database) ProjectStore {
	return ProjectStore{
		Repository: database.NewRepository[project.Project, ProjectModel](db, ProjectMapper{}, "project"),
	}
}

// Register upserts a project by path. The insert carries a fresh UUID; on
// conflict only updated_at moves and RETURNING hands back the row the path
// already owns, so concurrent registrants of the same path converge to one
// id in a single statement.
func (s ProjectStore) Register(ctx context.Context, path string) (project.Project, error) {
	now := time.Now().UTC()
	model := s.Mapper().ToModel(project.NewProject(uuid.NewString(), path, "", now, now))

	result := s.DB(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.Assignments(map[string]any{"updated_at": now}),
		},
		clause.Returning{},
	).Create(&model)
	if result.Error != nil {
		return project.Project{}, fmt.Errorf("register project: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// FindByPath returns the project registered under the given path.
func (s ProjectStore) FindByPath(ctx context.Context, path string) (project.Project, error) {
	return s.FindOne(ctx, repository.WithCondition("path", path))
}

// All returns every registered project.
func (s ProjectStore) All(ctx context.Context) ([]project.Project, error) {
	return s.Find(ctx, repository.WithOrderAsc("created_at"))
}
