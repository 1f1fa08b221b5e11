package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specmem/specmem/domain/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddedMemories(n int) []memory.Memory {
	mems := make([]memory.Memory, n)
	for i := range mems {
		mems[i] = memory.NewMemory("note", nil, nil).WithEmbedding([]float64{0.1, 0.2})
	}
	return mems
}

func TestAdaptiveSearchScansCorpusOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeMemoryStore(embeddedMemories(150)...)
	adaptive := NewAdaptiveSearch(store, nil)

	config, err := adaptive.Config(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, config.Threshold(), 1e-9)
	assert.Equal(t, 25, config.Limit())
	assert.True(t, config.HasEnoughData())

	// Second read inside the TTL window serves the cache.
	again, err := adaptive.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, config, again)
	assert.Equal(t, 1, store.countCalls)
}

func TestAdaptiveSearchCorpusSizeSharesTheScan(t *testing.T) {
	ctx := context.Background()
	store := newFakeMemoryStore(embeddedMemories(42)...)
	adaptive := NewAdaptiveSearch(store, nil)

	total, err := adaptive.CorpusSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)

	_, err = adaptive.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.countCalls, "config must reuse the size scan")
}

func TestAdaptiveSearchRefreshForcesRescan(t *testing.T) {
	ctx := context.Background()
	store := newFakeMemoryStore(embeddedMemories(10)...)
	adaptive := NewAdaptiveSearch(store, nil)

	config, err := adaptive.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, config.Limit())
	assert.False(t, config.HasEnoughData())

	store.add(embeddedMemories(990)...)

	// Still cached: the old answer survives inside the TTL.
	config, err = adaptive.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, config.Limit())

	config, err = adaptive.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, config.Limit())
	assert.InDelta(t, 0.15, config.Threshold(), 1e-9)
}

func TestAdaptiveSearchExpiredCacheRescans(t *testing.T) {
	ctx := context.Background()
	store := newFakeMemoryStore(embeddedMemories(5)...)
	adaptive := NewAdaptiveSearch(store, nil, WithAdaptiveTTL(time.Nanosecond))

	_, err := adaptive.Config(ctx)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = adaptive.Config(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, store.countCalls)
}

func TestAdaptiveSearchServesStaleConfigOnScanFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeMemoryStore(embeddedMemories(200)...)
	adaptive := NewAdaptiveSearch(store, nil, WithAdaptiveTTL(time.Nanosecond))

	fresh, err := adaptive.Config(ctx)
	require.NoError(t, err)

	store.countErr = errors.New("connection reset")
	time.Sleep(time.Millisecond)

	stale, err := adaptive.Config(ctx)
	require.NoError(t, err, "a prior scan must paper over a failed refresh")
	assert.Equal(t, fresh, stale)

	// Recovery: the stale timestamp was not refreshed, so the next call
	// retries and picks up the new corpus.
	store.countErr = nil
	store.add(embeddedMemories(900)...)

	recovered, err := adaptive.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, recovered.Limit())
}

func TestAdaptiveSearchFailsWithoutPriorScan(t *testing.T) {
	ctx := context.Background()
	store := newFakeMemoryStore()
	store.countErr = errors.New("connection reset")
	adaptive := NewAdaptiveSearch(store, nil)

	_, err := adaptive.Config(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count embedded memories")
}

func TestAdaptiveSearchEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	adaptive := NewAdaptiveSearch(newFakeMemoryStore(), nil)

	config, err := adaptive.Config(ctx)
	require.NoError(t, err)
	assert.Zero(t, config.Threshold())
	assert.Zero(t, config.Limit())
	assert.False(t, config.HasEnoughData())

	total, err := adaptive.CorpusSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}
