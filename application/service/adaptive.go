package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/search"
)

// DefaultAdaptiveTTL is how long a density scan stays valid.
const DefaultAdaptiveTTL = 5 * time.Minute

// AdaptiveSearch derives the similarity threshold and result limit from
// corpus density: sparse corpora search permissively, dense ones tighten
// up. The scan is cached per instance (one instance per project) with a
// TTL; Refresh forces a rescan after bulk ingests.
type AdaptiveSearch struct {
	memories memory.Store
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	config    search.AdaptiveConfig
	total     int64
	fetchedAt time.Time
	scanned   bool
}

// AdaptiveOption configures an AdaptiveSearch.
type AdaptiveOption func(*AdaptiveSearch)

// WithAdaptiveTTL sets how long a density scan stays valid.
func WithAdaptiveTTL(ttl time.Duration) AdaptiveOption {
	return func(s *AdaptiveSearch) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewAdaptiveSearch creates an AdaptiveSearch over one project's memories.
func NewAdaptiveSearch(memories memory.Store, logger *slog.Logger, opts ...AdaptiveOption) *AdaptiveSearch {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AdaptiveSearch{
		memories: memories,
		ttl:      DefaultAdaptiveTTL,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the adaptive configuration for the current corpus,
// rescanning when the cached value has aged out. A failed rescan with a
// prior value serves the stale value with a warning; the timestamp is not
// refreshed, so the next call retries.
func (s *AdaptiveSearch) Config(ctx context.Context) (search.AdaptiveConfig, error) {
	config, _, err := s.snapshot(ctx, false)
	return config, err
}

// CorpusSize returns the embedded-memory count behind the current
// configuration, from the same cached scan Config uses.
func (s *AdaptiveSearch) CorpusSize(ctx context.Context) (int64, error) {
	_, total, err := s.snapshot(ctx, false)
	return total, err
}

// Refresh forces a rescan and returns the fresh configuration.
func (s *AdaptiveSearch) Refresh(ctx context.Context) (search.AdaptiveConfig, error) {
	config, _, err := s.snapshot(ctx, true)
	return config, err
}

func (s *AdaptiveSearch) snapshot(ctx context.Context, force bool) (search.AdaptiveConfig, int64, error) {
	now := time.Now()

	s.mu.Lock()
	if !force && s.scanned && now.Sub(s.fetchedAt) < s.ttl {
		config, total := s.config, s.total
		s.mu.Unlock()
		return config, total, nil
	}
	s.mu.Unlock()

	total, err := s.memories.CountWithEmbeddings(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.scanned {
			s.logger.Warn("corpus scan failed, serving stale adaptive config",
				slog.Int64("total", s.total),
				slog.Duration("staleness", now.Sub(s.fetchedAt)),
				slog.String("error", err.Error()))
			return s.config, s.total, nil
		}
		return search.AdaptiveConfig{}, 0, fmt.Errorf("count embedded memories: %w", err)
	}

	config := search.AdaptiveConfigFor(total)

	s.mu.Lock()
	s.config = config
	s.total = total
	s.fetchedAt = now
	s.scanned = true
	s.mu.Unlock()

	s.logger.Debug("adaptive search config scanned",
		slog.Int64("total", total),
		slog.Float64("threshold", config.Threshold()),
		slog.Int("limit", config.Limit()))

	return config, total, nil
}
