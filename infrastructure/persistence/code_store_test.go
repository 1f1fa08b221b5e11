package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/specmem/specmem/domain/code"
	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeDefinitionStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewCodeDefinitionStore(newTestDB(t), project.DefaultSchema)

	def := code.NewDefinition(
		"internal/auth/token.go", "ValidateToken", "function", "go",
		42, 80,
		"func ValidateToken(raw string) error { ... }",
		"func ValidateToken(raw string) error",
		"ValidateToken checks signature and expiry.",
		true,
	)

	_, err := store.Save(ctx, def)
	require.NoError(t, err)

	got, err := store.GetByFileAndName(ctx, "internal/auth/token.go", "ValidateToken")
	require.NoError(t, err)
	assert.Equal(t, "function", got.Type())
	assert.Equal(t, "go", got.Language())
	assert.Equal(t, "42-80", got.LineRange())
	assert.True(t, got.Exported())
}

func TestCodeDefinitionStoreUpsertsByFileAndName(t *testing.T) {
	ctx := context.Background()
	store := NewCodeDefinitionStore(newTestDB(t), project.DefaultSchema)

	old := code.NewDefinition("pkg/a.go", "Run", "function", "go", 1, 10, "v1", "func Run()", "", true)
	_, err := store.Save(ctx, old)
	require.NoError(t, err)

	updated := code.NewDefinition("pkg/a.go", "Run", "function", "go", 1, 14, "v2", "func Run()", "", true)
	_, err = store.Save(ctx, updated)
	require.NoError(t, err)

	got, err := store.GetByFileAndName(ctx, "pkg/a.go", "Run")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content())
	assert.Equal(t, 14, got.EndLine())

	count, err := store.Repository.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCodeDefinitionStoreSaveAll(t *testing.T) {
	ctx := context.Background()
	store := NewCodeDefinitionStore(newTestDB(t), project.DefaultSchema)

	defs := []code.Definition{
		code.NewDefinition("pkg/a.go", "Run", "function", "go", 1, 10, "", "", "", true),
		code.NewDefinition("pkg/a.go", "helper", "function", "go", 12, 20, "", "", "", false),
		code.NewDefinition("pkg/b.go", "Run", "function", "go", 1, 8, "", "", "", true),
	}

	saved, err := store.SaveAll(ctx, defs)
	require.NoError(t, err)
	assert.Len(t, saved, 3)

	got, err := store.GetByFileAndName(ctx, "pkg/a.go", "helper")
	require.NoError(t, err)
	assert.False(t, got.Exported())
}

func TestCodebaseFileStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewCodebaseFileStore(newTestDB(t), project.DefaultSchema)

	file := code.NewFile("cmd/api/main.go", "main.go", "go", "package main\n", 120)
	_, err := store.Save(ctx, file)
	require.NoError(t, err)

	got, err := store.GetByPath(ctx, "cmd/api/main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", got.Name())
	assert.Equal(t, 120, got.LineCount())

	// Re-indexing the same path replaces the snapshot.
	_, err = store.Save(ctx, code.NewFile("cmd/api/main.go", "main.go", "go", "package main\n\n", 121))
	require.NoError(t, err)

	got, err = store.GetByPath(ctx, "cmd/api/main.go")
	require.NoError(t, err)
	assert.Equal(t, 121, got.LineCount())

	_, err = store.GetByPath(ctx, "cmd/api/missing.go")
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestCodebasePointerStoreFindByMemory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	files := NewCodebaseFileStore(db, project.DefaultSchema)
	pointers := NewCodebasePointerStore(db, project.DefaultSchema)

	_, err := files.Save(ctx, code.NewFile("pkg/auth.go", "auth.go", "go", "", 50))
	require.NoError(t, err)

	memoryID := uuid.NewString()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err = pointers.Save(ctx, code.NewPointer(memoryID, "pkg/auth.go", 1, 10, "Login", base))
	require.NoError(t, err)
	_, err = pointers.Save(ctx, code.NewPointer(memoryID, "pkg/auth.go", 20, 30, "Logout", base.Add(time.Minute)))
	require.NoError(t, err)

	// Pointer into a file that was never indexed: dropped by the join.
	_, err = pointers.Save(ctx, code.NewPointer(memoryID, "pkg/gone.go", 1, 5, "", base.Add(2*time.Minute)))
	require.NoError(t, err)

	found, err := pointers.FindByMemory(ctx, memoryID, 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Logout", found[0].FunctionName(), "newest pointer first")
	assert.Equal(t, "Login", found[1].FunctionName())

	limited, err := pointers.FindByMemory(ctx, memoryID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Logout", limited[0].FunctionName())

	none, err := pointers.FindByMemory(ctx, uuid.NewString(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCodeStoresReportMissingTables(t *testing.T) {
	ctx := context.Background()
	db := newBareDB(t)

	_, err := NewCodeDefinitionStore(db, project.DefaultSchema).
		GetByFileAndName(ctx, "pkg/a.go", "Run")
	assert.True(t, errors.Is(err, code.ErrTableMissing), "got: %v", err)

	_, err = NewCodebaseFileStore(db, project.DefaultSchema).
		GetByPath(ctx, "pkg/a.go")
	assert.True(t, errors.Is(err, code.ErrTableMissing), "got: %v", err)

	_, err = NewCodebasePointerStore(db, project.DefaultSchema).
		FindByMemory(ctx, uuid.NewString(), 10)
	assert.True(t, errors.Is(err, code.ErrTableMissing), "got: %v", err)
}
