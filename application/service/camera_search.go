package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/specmem/specmem/domain/drilldown"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/infrastructure/compress"
	"github.com/specmem/specmem/infrastructure/dimension"
)

// pairedPreviewChars bounds the assistant reply rendered under a user
// hit in the camera roll.
const pairedPreviewChars = 150

// CameraSearch runs the zoom-aware memory search: it picks retrieval
// parameters from the zoom preset or the adaptive config, embeds the
// query, searches, optionally rescores, and renders hits as a camera
// roll with drilldown handles.
type CameraSearch struct {
	searcher   search.Searcher
	embedder   search.Embedder
	adaptive   *AdaptiveSearch
	registry   *drilldown.Registry
	memories   memory.Store
	adapter    *dimension.Adapter
	scorer     *MiniCOTScorer
	compressor compress.Compressor
	presets    search.Presets
	logger     *slog.Logger
}

// CameraSearchOption configures a CameraSearch.
type CameraSearchOption func(*CameraSearch)

// WithDimensionAdapter projects query vectors to the stored column
// dimension before searching.
func WithDimensionAdapter(adapter *dimension.Adapter) CameraSearchOption {
	return func(s *CameraSearch) { s.adapter = adapter }
}

// WithScorer reranks hits through the Mini-COT scorer before rendering.
func WithScorer(scorer *MiniCOTScorer) CameraSearchOption {
	return func(s *CameraSearch) { s.scorer = scorer }
}

// WithCompressor sets the codec applied to item previews.
func WithCompressor(compressor compress.Compressor) CameraSearchOption {
	return func(s *CameraSearch) { s.compressor = compressor }
}

// WithZoomPresets overrides the built-in zoom table.
func WithZoomPresets(presets search.Presets) CameraSearchOption {
	return func(s *CameraSearch) { s.presets = presets }
}

// NewCameraSearch creates the search service.
func NewCameraSearch(
	searcher search.Searcher,
	embedder search.Embedder,
	adaptive *AdaptiveSearch,
	registry *drilldown.Registry,
	memories memory.Store,
	logger *slog.Logger,
	options ...CameraSearchOption,
) *CameraSearch {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CameraSearch{
		searcher:   searcher,
		embedder:   embedder,
		adaptive:   adaptive,
		registry:   registry,
		memories:   memories,
		compressor: compress.NoopCompressor{},
		presets:    search.DefaultPresets(),
		logger:     logger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

type shotParams struct {
	zoom         search.ZoomLevel
	limit        int
	threshold    float64
	hasThreshold bool
}

// ShotOption adjusts one search call.
type ShotOption func(*shotParams)

// AtZoom fixes the zoom level instead of deriving it from the adaptive
// config. Unknown levels are treated as normal.
func AtZoom(level search.ZoomLevel) ShotOption {
	return func(p *shotParams) { p.zoom = level }
}

// WithShotLimit overrides the result limit for one call.
func WithShotLimit(n int) ShotOption {
	return func(p *shotParams) { p.limit = n }
}

// WithShotThreshold overrides the similarity threshold for one call.
func WithShotThreshold(threshold float64) ShotOption {
	return func(p *shotParams) {
		p.threshold = threshold
		p.hasThreshold = true
	}
}

// Search embeds the query and returns one camera-roll page. Without an
// explicit zoom the threshold and limit come from the adaptive config
// and the page is labeled with the matching zoom level.
func (s *CameraSearch) Search(ctx context.Context, query string, options ...ShotOption) (search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return search.Result{}, ErrEmptyQuery
	}

	var params shotParams
	for _, option := range options {
		option(&params)
	}

	zoom, preset, threshold, limit, err := s.shotPlan(ctx, params)
	if err != nil {
		return search.Result{}, err
	}

	total, err := s.adaptive.CorpusSize(ctx)
	if err != nil {
		return search.Result{}, fmt.Errorf("corpus size: %w", err)
	}
	if total == 0 {
		return search.NewResult(query, zoom, nil, 0), nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return search.Result{}, fmt.Errorf("embed query: %w", err)
	}
	vec = s.adaptVector(ctx, vec)

	matches, err := s.searcher.Search(ctx,
		search.WithEmbedding(vec),
		search.WithThreshold(threshold),
		search.WithQuery(query),
		repository.WithLimit(limit),
	)
	if err != nil {
		return search.Result{}, fmt.Errorf("vector search: %w", err)
	}

	ranked := s.rank(ctx, query, matches)

	items := make([]search.Item, 0, len(ranked))
	for _, hit := range ranked {
		items = append(items, s.renderItem(ctx, hit, query, zoom, preset))
	}

	s.logger.Debug("camera roll rendered",
		slog.String("zoom", string(zoom)),
		slog.Int("items", len(items)),
		slog.Int64("total", total))
	return search.NewResult(query, zoom, items, total), nil
}

// shotPlan resolves zoom, preset, threshold, and limit for one call.
func (s *CameraSearch) shotPlan(ctx context.Context, params shotParams) (search.ZoomLevel, search.Preset, float64, int, error) {
	var (
		zoom      search.ZoomLevel
		threshold float64
		limit     int
	)
	if params.zoom != "" {
		zoom = params.zoom
		if !search.ValidZoom(zoom) {
			zoom = search.ZoomNormal
		}
		preset := s.presets.For(zoom)
		threshold, limit = preset.Threshold(), preset.Limit()
	} else {
		cfg, err := s.adaptive.Config(ctx)
		if err != nil {
			return "", search.Preset{}, 0, 0, fmt.Errorf("adaptive config: %w", err)
		}
		threshold, limit = cfg.Threshold(), cfg.Limit()
		zoom = search.ZoomForThreshold(threshold)
	}

	if params.hasThreshold {
		threshold = params.threshold
	}
	if params.limit > 0 {
		limit = params.limit
	}
	return zoom, s.presets.For(zoom), threshold, limit, nil
}

// adaptVector projects the query vector to the stored column dimension.
// Adaptation failures are survivable; the raw vector still searches.
func (s *CameraSearch) adaptVector(ctx context.Context, vec []float64) []float64 {
	if s.adapter == nil {
		return vec
	}
	adapted, method, err := s.adapter.AdaptForSelect(ctx, vec, "memories", "embedding")
	if err != nil {
		s.logger.Warn("query vector adaptation failed, searching as-is",
			slog.Int("dimension", len(vec)),
			slog.String("error", err.Error()))
		return vec
	}
	if method != dimension.MethodNone {
		s.logger.Debug("query vector adapted",
			slog.String("method", string(method)),
			slog.Int("dimension", len(adapted)))
	}
	return adapted
}

// scoredMatch pairs a match with the score the camera roll displays.
type scoredMatch struct {
	memory memory.Memory
	score  float64
}

// rank orders matches for rendering. With a scorer configured the
// combined vector+reasoning score both orders and labels the hits;
// otherwise similarity stands alone.
func (s *CameraSearch) rank(ctx context.Context, query string, matches []search.Match) []scoredMatch {
	if s.scorer == nil || len(matches) == 0 {
		ranked := make([]scoredMatch, len(matches))
		for i, match := range matches {
			ranked[i] = scoredMatch{memory: match.Memory(), score: match.Similarity()}
		}
		return ranked
	}

	byID := make(map[string]memory.Memory, len(matches))
	candidates := make([]Candidate, len(matches))
	for i, match := range matches {
		byID[match.Memory().ID()] = match.Memory()
		candidates[i] = MemoryCandidate(match.Memory(), match.Similarity())
	}

	report := s.scorer.Score(ctx, query, candidates)
	results := report.Results()
	ranked := make([]scoredMatch, 0, len(results))
	for _, result := range results {
		mem, ok := byID[result.Candidate().MemoryID()]
		if !ok {
			continue
		}
		ranked = append(ranked, scoredMatch{memory: mem, score: result.Combined()})
	}
	return ranked
}

// renderItem turns one hit into a camera-roll item: handle, preview,
// compression, date, and for user turns at context-bearing zoom levels
// the paired assistant reply.
func (s *CameraSearch) renderItem(ctx context.Context, hit scoredMatch, query string, zoom search.ZoomLevel, preset search.Preset) search.Item {
	mem := hit.memory
	id := s.registry.Register(mem.ID(), drilldown.TypeMemory,
		drilldown.WithSearchQuery(query),
		drilldown.WithZoomLevel(string(zoom)))

	content := search.Preview(mem.Content(), preset.ContentPreview())
	compressed, err := s.compressor.Compress(ctx, content, compressLevel(preset.Compression()))
	if err != nil {
		s.logger.Warn("preview compression failed, serving uncompressed",
			slog.String("memory_id", mem.ID()),
			slog.String("error", err.Error()))
	} else {
		content = compressed
	}

	item := search.NewItem(id, mem.ID(), mem.Role(), content, hit.score, mem.CreatedAt().Format("2006-01-02"))

	if preset.IncludeContext() && mem.Role() == memory.RoleUser && mem.SessionID() != "" {
		if reply, ok := s.pairedReply(ctx, mem); ok {
			item = item.WithPairedResponse(search.Preview(reply.Content(), pairedPreviewChars))
		}
	}
	return item
}

// pairedReply finds the assistant reply to a user hit. Best effort: a
// session fetch failure only drops the [CR] line.
func (s *CameraSearch) pairedReply(ctx context.Context, pivot memory.Memory) (memory.Memory, bool) {
	rows, err := s.memories.FindBySession(ctx, pivot.SessionID(), sessionScanWindow)
	if err != nil {
		s.logger.Warn("session fetch for paired reply failed",
			slog.String("memory_id", pivot.ID()),
			slog.String("error", err.Error()))
		return memory.Memory{}, false
	}
	return pairedMessage(pivot, rows)
}

// compressLevel maps the preset's compression label to the codec level.
func compressLevel(c search.Compression) compress.Level {
	switch c {
	case search.CompressionLight:
		return compress.LevelLight
	case search.CompressionFull:
		return compress.LevelFull
	default:
		return compress.LevelNone
	}
}
