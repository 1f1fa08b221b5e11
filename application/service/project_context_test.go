package service

import (
	"context"
	"errors"
	"testing"

	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/infrastructure/persistence"
	"github.com/specmem/specmem/internal/database"
	"github.com/specmem/specmem/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProjectContext(t *testing.T) (*ProjectContext, database.Database) {
	t.Helper()
	db := testdb.New(t)
	pc := NewProjectContext(nil)
	pc.Attach(db, persistence.NewProjectStore(db))
	return pc, db
}

func TestProjectContextSchemaNameFollowsActivePath(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	pc := NewProjectContext(nil)

	assert.Equal(t, "/home/dev/webapp", pc.ActivePath())
	assert.Equal(t, project.SchemaName("/home/dev/webapp"), pc.SchemaName())
}

func TestProjectContextPinBeatsEnvironment(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/from-env")
	pc := NewProjectContext(nil)

	pc.Pin("/pinned")
	assert.Equal(t, "/pinned", pc.ActivePath())

	// Overrides still stack on top of the pin.
	err := pc.WithProject("/scoped", func() error {
		assert.Equal(t, "/scoped", pc.ActivePath())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/pinned", pc.ActivePath())
}

func TestProjectContextWithProjectStacksAndRestores(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/base")
	pc := NewProjectContext(nil)

	err := pc.WithProject("/outer", func() error {
		assert.Equal(t, "/outer", pc.ActivePath())

		innerErr := pc.WithProject("/inner", func() error {
			assert.Equal(t, "/inner", pc.ActivePath())
			return errors.New("boom")
		})
		require.EqualError(t, innerErr, "boom")

		// The failed inner override must not leak.
		assert.Equal(t, "/outer", pc.ActivePath())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "/base", pc.ActivePath())
}

func TestProjectContextDetachedFailsClearly(t *testing.T) {
	ctx := context.Background()
	pc := NewProjectContext(nil)

	_, err := pc.RegisterProject(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)

	_, err = pc.DetectProjectColumn(ctx, "memories")
	assert.ErrorIs(t, err, ErrNoDatabase)

	_, err = pc.ProjectFilter(ctx, "memories", 1)
	assert.ErrorIs(t, err, ErrNoDatabase)

	// Pure methods still work without a database.
	assert.NotEmpty(t, pc.SchemaName())
}

func TestProjectContextRegisterProjectIsIdempotent(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, _ := newProjectContext(t)

	first, err := pc.RegisterProject(ctx)
	require.NoError(t, err)
	second, err := pc.RegisterProject(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, "/home/dev/webapp", first.Path())
}

func TestProjectContextDetectsScopingColumns(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, db := newProjectContext(t)

	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE session_notes (id INTEGER PRIMARY KEY, project_path TEXT, body TEXT)`).Error)

	column, err := pc.DetectProjectColumn(ctx, "session_notes")
	require.NoError(t, err)
	assert.Equal(t, project.ColumnProjectPath, column)

	column, err = pc.DetectProjectColumn(ctx, "embedding_queue")
	require.NoError(t, err)
	assert.Equal(t, project.ColumnProjectID, column)

	column, err = pc.DetectProjectColumn(ctx, "memories")
	require.NoError(t, err)
	assert.Equal(t, project.ColumnNone, column)
}

func TestProjectContextDetectionPrefersProjectPath(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, db := newProjectContext(t)

	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE doubly_gated (id INTEGER PRIMARY KEY, project_id TEXT, project_path TEXT)`).Error)

	column, err := pc.DetectProjectColumn(ctx, "doubly_gated")
	require.NoError(t, err)
	assert.Equal(t, project.ColumnProjectPath, column)
}

func TestProjectContextDetectionIsCached(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, db := newProjectContext(t)

	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE ephemeral (id INTEGER PRIMARY KEY, project_path TEXT)`).Error)

	column, err := pc.DetectProjectColumn(ctx, "ephemeral")
	require.NoError(t, err)
	require.Equal(t, project.ColumnProjectPath, column)

	// Detection survives the table being dropped; the answer is cached.
	require.NoError(t, db.Session(ctx).Exec(`DROP TABLE ephemeral`).Error)

	column, err = pc.DetectProjectColumn(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, project.ColumnProjectPath, column)
}

func TestProjectContextDetectionCacheIsPerProject(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, db := newProjectContext(t)

	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE shifting (id INTEGER PRIMARY KEY, project_path TEXT)`).Error)

	column, err := pc.DetectProjectColumn(ctx, "shifting")
	require.NoError(t, err)
	require.Equal(t, project.ColumnProjectPath, column)

	require.NoError(t, db.Session(ctx).Exec(`DROP TABLE shifting`).Error)

	// A different project must not see the first project's cache entry.
	err = pc.WithProject("/somewhere/else", func() error {
		column, detectErr := pc.DetectProjectColumn(ctx, "shifting")
		if detectErr != nil {
			return detectErr
		}
		assert.Equal(t, project.ColumnNone, column)
		return nil
	})
	require.NoError(t, err)
}

func TestProjectContextMissingTableDetectsAsUnscoped(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, _ := newProjectContext(t)

	column, err := pc.DetectProjectColumn(ctx, "never_created")
	require.NoError(t, err)
	assert.Equal(t, project.ColumnNone, column)
}

func TestProjectFilterForPathGatedTable(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, db := newProjectContext(t)

	require.NoError(t, db.Session(ctx).Exec(
		`CREATE TABLE session_notes (id INTEGER PRIMARY KEY, project_path TEXT)`).Error)

	filter, err := pc.ProjectFilter(ctx, "session_notes", 3)
	require.NoError(t, err)

	assert.False(t, filter.Empty())
	assert.Equal(t, "project_path = ?", filter.Fragment())
	assert.Equal(t, "/home/dev/webapp", filter.Param())
	assert.Equal(t, 4, filter.NextIndex())
}

func TestProjectFilterForIDGatedTable(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, _ := newProjectContext(t)

	filter, err := pc.ProjectFilter(ctx, "embedding_queue", 1)
	require.NoError(t, err)

	require.False(t, filter.Empty())
	assert.Equal(t, "project_id = ?", filter.Fragment())
	assert.Equal(t, 2, filter.NextIndex())

	registered, err := pc.RegisterProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, registered.ID(), filter.Param(),
		"filter must bind the registered project id")
}

func TestProjectFilterForUnscopedTable(t *testing.T) {
	t.Setenv(project.EnvProjectPath, "/home/dev/webapp")
	ctx := context.Background()
	pc, _ := newProjectContext(t)

	filter, err := pc.ProjectFilter(ctx, "memories", 7)
	require.NoError(t, err)

	assert.True(t, filter.Empty())
	assert.Nil(t, filter.Param())
	assert.Equal(t, 7, filter.NextIndex(), "param index must be untouched")
}
