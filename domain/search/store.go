package search

import (
	"context"

	"github.com/specmem/specmem/domain/repository"
)

// Searcher performs vector similarity search over memories. The query
// vector must be passed via WithEmbedding and is assumed to already match
// the column dimension; threshold and limit come from WithThreshold and
// repository.WithLimit.
type Searcher interface {
	// Search returns matches at or above the threshold, most similar
	// first. WithExcludeID drops the pivot row from related-memory
	// lookups; WithFilters narrows by tags, role, or session.
	Search(ctx context.Context, options ...repository.Option) ([]Match, error)
}
