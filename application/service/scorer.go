package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/specmem/specmem/domain/code"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/infrastructure/provider"
)

// Candidate is one search hit handed to the scorer, either a memory or
// a code definition.
type Candidate struct {
	memoryID   string
	content    string
	context    string
	role       string
	tags       []string
	similarity float64
	filePath   string
	name       string
	defType    string
	lineRange  string
}

// MemoryCandidate wraps a memory hit for rescoring.
func MemoryCandidate(mem memory.Memory, similarity float64) Candidate {
	return Candidate{
		memoryID:   mem.ID(),
		content:    mem.Content(),
		role:       mem.Role(),
		tags:       mem.Tags(),
		similarity: similarity,
	}
}

// CodeCandidate wraps a code definition hit for rescoring.
func CodeCandidate(def code.Definition, similarity float64) Candidate {
	return Candidate{
		content:    def.Content(),
		similarity: similarity,
		filePath:   def.FilePath(),
		name:       def.Name(),
		defType:    def.Type(),
		lineRange:  def.LineRange(),
	}
}

// WithContext returns a copy carrying surrounding conversation text,
// shown to the reasoning model alongside the content preview.
func (c Candidate) WithContext(text string) Candidate {
	c.context = text
	return c
}

// Key identifies the candidate in the rescoring gallery: the memory id
// when one exists, else the file-scoped definition key.
func (c Candidate) Key() string {
	if c.memoryID != "" {
		return c.memoryID
	}
	return c.filePath + ":" + c.name
}

// MemoryID returns the memory id, empty for code candidates.
func (c Candidate) MemoryID() string { return c.memoryID }

// Similarity returns the vector similarity the candidate arrived with.
func (c Candidate) Similarity() float64 { return c.similarity }

// FilePath returns the source path, empty for memory candidates.
func (c Candidate) FilePath() string { return c.filePath }

// ScoredCandidate is one ranked entry in a scoring report.
type ScoredCandidate struct {
	candidate   Candidate
	relevance   float64
	combined    float64
	reasoning   string
	attribution string
	drillHint   string
}

// Candidate returns the underlying candidate.
func (s ScoredCandidate) Candidate() Candidate { return s.candidate }

// Relevance returns the reasoning model's verdict in [0,1]. Under
// fallback scoring it equals the vector similarity.
func (s ScoredCandidate) Relevance() float64 { return s.relevance }

// Combined returns the blended ranking score.
func (s ScoredCandidate) Combined() float64 { return s.combined }

// Reasoning returns the model's chain-of-thought note, empty under
// fallback scoring.
func (s ScoredCandidate) Reasoning() string { return s.reasoning }

// Attribution returns who the candidate came from.
func (s ScoredCandidate) Attribution() string { return s.attribution }

// DrillHint tells the caller how to expand this result.
func (s ScoredCandidate) DrillHint() string { return s.drillHint }

// ScoringReport is the outcome of ranking one candidate batch.
type ScoringReport struct {
	results          []ScoredCandidate
	method           search.ScoringMethod
	averageRelevance float64
	attributions     map[string]int
}

// Results returns the candidates ordered by combined score, best first.
func (r ScoringReport) Results() []ScoredCandidate {
	out := make([]ScoredCandidate, len(r.results))
	copy(out, r.results)
	return out
}

// Method reports how the batch was ranked.
func (r ScoringReport) Method() search.ScoringMethod { return r.method }

// AverageRelevance returns the mean relevance across the batch.
func (r ScoringReport) AverageRelevance() float64 { return r.averageRelevance }

// Attributions returns the per-source tally for the batch.
func (r ScoringReport) Attributions() map[string]int {
	out := make(map[string]int, len(r.attributions))
	for k, v := range r.attributions {
		out[k] = v
	}
	return out
}

// Rescorer judges a candidate gallery against a query. The rescoring
// sidecar client satisfies this.
type Rescorer interface {
	IsAvailable(ctx context.Context) bool
	Rescore(ctx context.Context, query string, items []provider.GalleryItem) ([]provider.GalleryScore, error)
}

// MiniCOTScorer ranks search hits by blending vector similarity with a
// small reasoning model's relevance judgement. When the model is
// unreachable it degrades to similarity-only ordering rather than
// failing the search.
type MiniCOTScorer struct {
	rescorer     Rescorer
	vectorWeight float64
	logger       *slog.Logger
}

// ScorerOption configures a MiniCOTScorer.
type ScorerOption func(*MiniCOTScorer)

// WithVectorWeight sets the similarity share of the combined score.
func WithVectorWeight(w float64) ScorerOption {
	return func(s *MiniCOTScorer) {
		s.vectorWeight = w
	}
}

// NewMiniCOTScorer creates a scorer backed by the given rescoring
// client. A nil rescorer is allowed and scores by similarity alone.
func NewMiniCOTScorer(rescorer Rescorer, logger *slog.Logger, options ...ScorerOption) *MiniCOTScorer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MiniCOTScorer{
		rescorer:     rescorer,
		vectorWeight: search.DefaultVectorWeight,
		logger:       logger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Score ranks the candidates against the query. It never fails: any
// problem reaching the reasoning model downgrades the batch to
// similarity-only ordering with the method marked as fallback.
func (s *MiniCOTScorer) Score(ctx context.Context, query string, candidates []Candidate) ScoringReport {
	attributions := make([]string, len(candidates))
	for i, candidate := range candidates {
		attributions[i] = search.Attribute(candidate.role, candidate.tags)
	}

	if len(candidates) == 0 {
		return ScoringReport{
			results:      []ScoredCandidate{},
			method:       search.ScoringFallback,
			attributions: map[string]int{},
		}
	}

	if s.rescorer == nil || !s.rescorer.IsAvailable(ctx) {
		return s.fallback(candidates, attributions)
	}

	items := make([]provider.GalleryItem, len(candidates))
	for i, candidate := range candidates {
		items[i] = provider.GalleryItem{
			ID:       candidate.Key(),
			Keywords: strings.Join(search.Keywords(candidate.content, 5), ", "),
			Snippet:  snippet(candidate),
			Role:     candidate.role,
		}
	}

	scores, err := s.rescorer.Rescore(ctx, query, items)
	if err != nil {
		s.logger.Warn("rescoring failed, falling back to similarity ordering",
			slog.Int("candidates", len(candidates)),
			slog.String("error", err.Error()))
		return s.fallback(candidates, attributions)
	}

	byID := make(map[string]provider.GalleryScore, len(scores))
	for _, score := range scores {
		byID[score.MemoryID] = score
	}

	results := make([]ScoredCandidate, len(candidates))
	var totalRelevance float64
	for i, candidate := range candidates {
		score := byID[candidate.Key()]
		totalRelevance += score.Relevance
		results[i] = ScoredCandidate{
			candidate:   candidate,
			relevance:   score.Relevance,
			combined:    search.CombinedScore(candidate.similarity, score.Relevance, s.vectorWeight),
			reasoning:   score.Cot,
			attribution: attributions[i],
			drillHint:   drillHint(candidate),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].combined > results[j].combined
	})

	return ScoringReport{
		results:          results,
		method:           search.ScoringMiniCOT,
		averageRelevance: totalRelevance / float64(len(candidates)),
		attributions:     search.CountAttributions(attributions),
	}
}

func (s *MiniCOTScorer) fallback(candidates []Candidate, attributions []string) ScoringReport {
	results := make([]ScoredCandidate, len(candidates))
	var totalRelevance float64
	for i, candidate := range candidates {
		totalRelevance += candidate.similarity
		results[i] = ScoredCandidate{
			candidate:   candidate,
			relevance:   candidate.similarity,
			combined:    candidate.similarity,
			attribution: attributions[i],
			drillHint:   drillHint(candidate),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].combined > results[j].combined
	})

	return ScoringReport{
		results:          results,
		method:           search.ScoringFallback,
		averageRelevance: totalRelevance / float64(len(candidates)),
		attributions:     search.CountAttributions(attributions),
	}
}

// snippet assembles the stable gallery shape: file location, definition
// kind and name, a content preview, and a short conversational context.
func snippet(c Candidate) string {
	var parts []string
	if c.filePath != "" {
		location := c.filePath
		if c.lineRange != "" {
			location += ":" + c.lineRange
		}
		parts = append(parts, location)
	}
	if c.name != "" {
		kind := c.name
		if c.defType != "" {
			kind = c.defType + " " + c.name
		}
		parts = append(parts, kind)
	}
	if preview := search.Preview(c.content, 200); preview != "" {
		parts = append(parts, preview)
	}
	if c.context != "" {
		parts = append(parts, search.Preview(c.context, 100))
	}
	return strings.Join(parts, " | ")
}

func drillHint(c Candidate) string {
	if c.memoryID != "" {
		return fmt.Sprintf("get_memory(%s)", c.memoryID)
	}
	location := c.filePath
	if c.lineRange != "" {
		location += ":" + c.lineRange
	}
	return "open " + location
}
