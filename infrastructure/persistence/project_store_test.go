package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/specmem/specmem/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectStoreRegisterCreatesProject(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore(newTestDB(t))

	p, err := store.Register(ctx, "/home/dev/webapp")
	require.NoError(t, err)

	_, err = uuid.Parse(p.ID())
	require.NoError(t, err, "project id should be a UUID")
	assert.Equal(t, "/home/dev/webapp", p.Path())
	assert.Equal(t, "webapp", p.Name())
	assert.False(t, p.CreatedAt().IsZero())
}

func TestProjectStoreRegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore(newTestDB(t))

	first, err := store.Register(ctx, "/home/dev/webapp")
	require.NoError(t, err)

	second, err := store.Register(ctx, "/home/dev/webapp")
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID(), "same path must converge to one id")

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProjectStoreFindByPath(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore(newTestDB(t))

	registered, err := store.Register(ctx, "/srv/api")
	require.NoError(t, err)

	found, err := store.FindByPath(ctx, "/srv/api")
	require.NoError(t, err)
	assert.Equal(t, registered.ID(), found.ID())

	_, err = store.FindByPath(ctx, "/srv/unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestProjectStoreAllReturnsDistinctProjects(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore(newTestDB(t))

	_, err := store.Register(ctx, "/srv/api")
	require.NoError(t, err)
	_, err = store.Register(ctx, "/srv/worker")
	require.NoError(t, err)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	paths := []string{all[0].Path(), all[1].Path()}
	assert.Contains(t, paths, "/srv/api")
	assert.Contains(t, paths, "/srv/worker")
}
