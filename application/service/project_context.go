// Package service provides application layer services that orchestrate
// domain operations: project scoping, adaptive search tuning, the
// embedding overflow queue, hybrid rescoring, and the camera-roll search
// and drilldown flows.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/internal/database"
)

// columnCacheSize bounds the detection cache across all projects served
// by this process.
const columnCacheSize = 1024

// pgScopingColumns finds which project-scoping column a table carries
// under the active schema. project_path is preferred when both exist.
const pgScopingColumns = `
SELECT column_name FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
  AND column_name IN ('project_path', 'project_id')`

const sqliteScopingColumns = `
SELECT name FROM pragma_table_info(?)
WHERE name IN ('project_path', 'project_id')`

// ProjectFilter is a WHERE fragment scoping a query to the active
// project. An empty fragment means the table is not project-gated (or
// detection failed and the query runs unscoped rather than over-filtered).
type ProjectFilter struct {
	fragment  string
	param     any
	nextIndex int
}

// Fragment returns the SQL fragment, or "" when no filter applies.
func (f ProjectFilter) Fragment() string { return f.fragment }

// Param returns the bind value for the fragment, or nil.
func (f ProjectFilter) Param() any { return f.param }

// NextIndex returns the next free positional parameter index.
func (f ProjectFilter) NextIndex() int { return f.nextIndex }

// Empty reports whether the filter carries no condition.
func (f ProjectFilter) Empty() bool { return f.fragment == "" }

// ProjectContext resolves the active project, derives its schema,
// registers it, and builds project-scoped WHERE fragments for tables
// whose scoping column varies. The active path is resolved per call, so
// one process can serve several projects through stacked overrides.
type ProjectContext struct {
	logger *slog.Logger

	db       database.Database
	projects project.Store
	attached bool

	mu        sync.Mutex
	pinned    string
	overrides []string
	columns   *lru.Cache[string, project.Column]
}

// NewProjectContext creates a ProjectContext without a database handle.
// Pure methods work immediately; database-touching methods fail with
// ErrNoDatabase until Attach is called.
func NewProjectContext(logger *slog.Logger) *ProjectContext {
	if logger == nil {
		logger = slog.Default()
	}
	columns, _ := lru.New[string, project.Column](columnCacheSize)
	return &ProjectContext{
		logger:  logger,
		columns: columns,
	}
}

// Attach binds the context to a database and project registry. Call it
// during wiring, before the context serves requests.
func (c *ProjectContext) Attach(db database.Database, projects project.Store) {
	c.db = db
	c.projects = projects
	c.attached = true
}

// Pin fixes the base project path, taking precedence over the
// environment and working-directory resolution. WithProject overrides
// still stack on top.
func (c *ProjectContext) Pin(path string) {
	c.mu.Lock()
	c.pinned = path
	c.mu.Unlock()
}

// ActivePath returns the project path for the current call: the top of
// the override stack, else the pinned path, else the
// environment/working-directory resolution.
func (c *ProjectContext) ActivePath() string {
	c.mu.Lock()
	if n := len(c.overrides); n > 0 {
		path := c.overrides[n-1]
		c.mu.Unlock()
		return path
	}
	if c.pinned != "" {
		path := c.pinned
		c.mu.Unlock()
		return path
	}
	c.mu.Unlock()
	return project.ActivePath()
}

// SchemaName returns the schema for the active project.
func (c *ProjectContext) SchemaName() string {
	return project.SchemaName(c.ActivePath())
}

// WithProject runs fn with path as the active project, restoring the
// prior state on every exit path. Overrides nest.
func (c *ProjectContext) WithProject(path string, fn func() error) error {
	c.mu.Lock()
	c.overrides = append(c.overrides, path)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.overrides = c.overrides[:len(c.overrides)-1]
		c.mu.Unlock()
	}()

	return fn()
}

// RegisterProject upserts the active project into the projects table and
// returns its row. Concurrent registrants of the same path converge to
// the same id.
func (c *ProjectContext) RegisterProject(ctx context.Context) (project.Project, error) {
	if !c.attached {
		return project.Project{}, fmt.Errorf("register project: %w", ErrNoDatabase)
	}
	return c.projects.Register(ctx, c.ActivePath())
}

// DetectProjectColumn reports which scoping column a table carries under
// the active schema. Results are cached per (schema, table); detection
// errors are returned without being cached, so the next call retries. A
// table that exists without either column detects as ColumnNone, as does
// a table that does not exist yet.
func (c *ProjectContext) DetectProjectColumn(ctx context.Context, table string) (project.Column, error) {
	if !c.attached {
		return project.ColumnNone, fmt.Errorf("detect project column: %w", ErrNoDatabase)
	}

	key := c.SchemaName() + "." + table
	if column, cached := c.columns.Get(key); cached {
		return column, nil
	}

	names, err := c.scopingColumns(ctx, table)
	if err != nil {
		return project.ColumnNone, fmt.Errorf("detect scoping column for %s: %w", key, err)
	}

	column := project.ColumnNone
	for _, name := range names {
		if name == project.ColumnProjectPath.String() {
			column = project.ColumnProjectPath
			break
		}
		if name == project.ColumnProjectID.String() {
			column = project.ColumnProjectID
		}
	}

	c.columns.Add(key, column)
	return column, nil
}

// ProjectFilter builds a WHERE fragment scoping table to the active
// project, starting at paramIndex. Tables without a scoping column get an
// empty fragment; so do tables whose detection or id resolution failed,
// with a warning, so the query runs unscoped instead of over-restricted.
func (c *ProjectContext) ProjectFilter(ctx context.Context, table string, paramIndex int) (ProjectFilter, error) {
	if !c.attached {
		return ProjectFilter{}, fmt.Errorf("build project filter: %w", ErrNoDatabase)
	}

	pass := ProjectFilter{nextIndex: paramIndex}

	column, err := c.DetectProjectColumn(ctx, table)
	if err != nil {
		c.logger.Warn("project column detection failed, leaving query unscoped",
			slog.String("table", table),
			slog.String("error", err.Error()))
		return pass, nil
	}

	switch column {
	case project.ColumnProjectPath:
		return ProjectFilter{
			fragment:  fmt.Sprintf("%s = %s", column, c.placeholder(paramIndex)),
			param:     c.ActivePath(),
			nextIndex: paramIndex + 1,
		}, nil

	case project.ColumnProjectID:
		registered, err := c.RegisterProject(ctx)
		if err != nil {
			c.logger.Warn("project id resolution failed, leaving query unscoped",
				slog.String("table", table),
				slog.String("error", err.Error()))
			return pass, nil
		}
		return ProjectFilter{
			fragment:  fmt.Sprintf("%s = %s", column, c.placeholder(paramIndex)),
			param:     registered.ID(),
			nextIndex: paramIndex + 1,
		}, nil

	default:
		return pass, nil
	}
}

func (c *ProjectContext) placeholder(index int) string {
	if c.db.IsPostgres() {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

func (c *ProjectContext) scopingColumns(ctx context.Context, table string) ([]string, error) {
	var names []string
	var result error
	if c.db.IsPostgres() {
		result = c.db.Session(ctx).Raw(pgScopingColumns, c.SchemaName(), table).Scan(&names).Error
	} else {
		result = c.db.Session(ctx).Raw(sqliteScopingColumns, table).Scan(&names).Error
	}
	if result != nil {
		return nil, result
	}
	return names, nil
}
