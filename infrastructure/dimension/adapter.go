package dimension

import (
	"context"
	"log/slog"

	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/domain/vector"
)

// Method records how a vector was reconciled to a column dimension.
type Method string

const (
	// MethodNone means the vector already fit, or no target dimension was
	// known to reconcile against.
	MethodNone Method = "none"

	// MethodReembedding means the original text was re-embedded at the
	// target dimension. Semantically lossless.
	MethodReembedding Method = "reembedding"

	// MethodProjection means the vector was mathematically resized.
	// Approximate, but total: it always yields a usable vector.
	MethodProjection Method = "projection"
)

// Action classifies what a caller should do with a vector before insert.
type Action string

const (
	// ActionProceed inserts the vector as-is.
	ActionProceed Action = "proceed"

	// ActionReembed regenerates the vector from its source text.
	ActionReembed Action = "reembed"

	// ActionScale projects the vector to the target dimension.
	ActionScale Action = "scale"
)

// Adapter reconciles vectors to column dimensions. With an embedder it
// prefers re-embedding over projection on insert; reads always project,
// since the stored text may no longer match the query.
type Adapter struct {
	service  *Service
	embedder search.Embedder
	logger   *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithEmbedder enables re-embedding as the preferred insert adaptation.
func WithEmbedder(embedder search.Embedder) AdapterOption {
	return func(a *Adapter) { a.embedder = embedder }
}

// WithAdapterLogger sets the logger.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter creates an Adapter on top of a dimension Service.
func NewAdapter(service *Service, options ...AdapterOption) *Adapter {
	a := &Adapter{
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Service exposes the underlying dimension service.
func (a *Adapter) Service() *Service {
	return a.service
}

// Validate classifies a vector against a table's embedding column without
// touching it. ActionReembed is only suggested when an embedder is wired.
func (a *Adapter) Validate(ctx context.Context, table string, vec []float64) (Action, error) {
	if len(vec) == 0 {
		return "", ErrEmptyVector
	}
	target, err := a.service.TableDimension(ctx, table, CanonicalColumn)
	if err != nil {
		return "", err
	}
	if target <= 0 || target == len(vec) {
		return ActionProceed, nil
	}
	if a.embedder != nil {
		return ActionReembed, nil
	}
	return ActionScale, nil
}

// AdaptForInsert returns a vector fit for inserting into table.column.
// When no target dimension is known the vector passes through untouched
// and the column takes its dimension from this first insert. On mismatch
// it re-embeds originalText when possible, falling back to projection when
// re-embedding is unavailable, fails, or still comes back wrong.
func (a *Adapter) AdaptForInsert(ctx context.Context, vec []float64, table, column, originalText string) ([]float64, Method, error) {
	if len(vec) == 0 {
		return nil, MethodNone, ErrEmptyVector
	}

	target, err := a.service.TableDimension(ctx, table, column)
	if err != nil {
		a.logger.Warn("dimension unavailable, inserting vector as-is",
			slog.String("table", table),
			slog.String("column", column),
			slog.String("error", err.Error()))
		return vec, MethodNone, nil
	}
	if target <= 0 || target == len(vec) {
		return vec, MethodNone, nil
	}

	if a.embedder != nil && originalText != "" {
		fresh, err := a.embedder.Embed(ctx, originalText)
		if err != nil {
			a.logger.Warn("re-embedding failed, projecting instead",
				slog.String("table", table),
				slog.Int("target", target),
				slog.String("error", err.Error()))
		} else if len(fresh) == target {
			return fresh, MethodReembedding, nil
		} else {
			a.logger.Warn("re-embedding produced wrong dimension, projecting instead",
				slog.String("table", table),
				slog.Int("target", target),
				slog.Int("got", len(fresh)))
		}
	}

	return vector.Scale(vec, target), MethodProjection, nil
}

// AdaptForSelect returns a query vector fit for searching table.column.
// Reads never re-embed; a mismatched query vector is projected.
func (a *Adapter) AdaptForSelect(ctx context.Context, vec []float64, table, column string) ([]float64, Method, error) {
	if len(vec) == 0 {
		return nil, MethodNone, ErrEmptyVector
	}

	target, err := a.service.TableDimension(ctx, table, column)
	if err != nil {
		return nil, MethodNone, err
	}
	if target <= 0 || target == len(vec) {
		return vec, MethodNone, nil
	}

	return vector.Scale(vec, target), MethodProjection, nil
}
