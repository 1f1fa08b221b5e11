package dimension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/infrastructure/persistence"
	"github.com/specmem/specmem/internal/database"
	"github.com/specmem/specmem/internal/testdb"
)

func seedMemory(t *testing.T, db database.Database, embedding []float64) {
	t.Helper()
	ctx := context.Background()
	store := persistence.NewMemoryStore(db, project.DefaultSchema)
	mem := memory.NewMemory("prefers table-driven tests", []string{"preference"}, nil)
	if embedding != nil {
		mem = mem.WithEmbedding(embedding)
	}
	_, err := store.Save(ctx, mem)
	require.NoError(t, err)
}

func TestTableDimensionUnknownOnEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testdb.New(t), project.DefaultSchema)

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	_, err = svc.EmbeddingDimension(ctx)
	require.ErrorIs(t, err, ErrDimensionUnknown)
}

func TestTableDimensionUnknownOnMissingTable(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testdb.NewPlain(t), project.DefaultSchema)

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)
}

func TestOverrideWinsOverDatabase(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	seedMemory(t, db, []float64{1, 0, 0, 0})

	svc := NewService(db, project.DefaultSchema, WithOverride(768))

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 768, dim)

	dim, err = svc.EmbeddingDimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 768, dim)
}

func TestOverrideIgnoredWhenNotPositive(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	seedMemory(t, db, []float64{1, 0, 0, 0})

	svc := NewService(db, project.DefaultSchema, WithOverride(0), WithOverride(-5))

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
}

func TestTableDimensionSampledFromStoredVectors(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	seedMemory(t, db, nil)
	seedMemory(t, db, []float64{0.1, 0.2, 0.3, 0.4})

	svc := NewService(db, project.DefaultSchema)

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)

	dim, err = svc.EmbeddingDimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
}

func TestTableDimensionCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	seedMemory(t, db, []float64{1, 0, 0, 0})

	svc := NewService(db, project.DefaultSchema)

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	require.Equal(t, 4, dim)

	// Swap the stored vectors for six-dimensional ones. Within the TTL the
	// cached value keeps winning.
	require.NoError(t, db.Session(ctx).Exec(`DELETE FROM memories`).Error)
	seedMemory(t, db, []float64{1, 0, 0, 0, 0, 0})

	dim, err = svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)

	svc.Invalidate()

	dim, err = svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 6, dim)
}

func TestStaleValueServedWhenProbeFails(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	seedMemory(t, db, []float64{1, 0, 0, 0})

	svc := NewService(db, project.DefaultSchema)

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	require.Equal(t, 4, dim)

	// Age the cache entry past the TTL, then break the database so the
	// refresh probe fails.
	key := CanonicalTable + "." + CanonicalColumn
	staleSince := time.Now().Add(-time.Hour)
	svc.mu.Lock()
	svc.cache[key] = cacheEntry{dimension: 4, fetchedAt: staleSince}
	svc.mu.Unlock()
	require.NoError(t, db.Close())

	dim, err = svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)

	// The failed refresh must not touch the timestamp, so the next call
	// retries instead of treating the stale value as fresh.
	svc.mu.Lock()
	entry := svc.cache[key]
	svc.mu.Unlock()
	assert.Equal(t, staleSince, entry.fetchedAt)
}

func TestProbeFailureWithoutCacheIsAnError(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	svc := NewService(db, project.DefaultSchema)
	require.NoError(t, db.Close())

	_, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.Error(t, err)
}

func TestInvalidateIsSafeOnEmptyCache(t *testing.T) {
	svc := NewService(testdb.New(t), project.DefaultSchema)
	svc.Invalidate()
	svc.Invalidate()
}

func TestTableDimensionPerColumnCaching(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	seedMemory(t, db, []float64{1, 0, 0, 0})

	svc := NewService(db, project.DefaultSchema)

	dim, err := svc.TableDimension(ctx, CanonicalTable, CanonicalColumn)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)

	// A different column resolves independently of the cached one.
	dim, err = svc.TableDimension(ctx, "embedding_queue", "embedding")
	require.NoError(t, err)
	assert.Equal(t, 0, dim)
}

func TestIsMissingRelation(t *testing.T) {
	assert.False(t, isMissingRelation(nil))
	assert.True(t, isMissingRelation(assertErr("no such table: memories")))
	assert.True(t, isMissingRelation(assertErr(`ERROR: relation "specmem_x.memories" does not exist (SQLSTATE 42P01)`)))
	assert.True(t, isMissingRelation(assertErr(`ERROR: column "embedding" does not exist (SQLSTATE 42703)`)))
	assert.False(t, isMissingRelation(assertErr("sql: database is closed")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
