package search

import "github.com/specmem/specmem/domain/repository"

// WithEmbedding passes a pre-computed query vector through options.
func WithEmbedding(embedding []float64) repository.Option {
	return repository.WithParam("embedding", embedding)
}

// EmbeddingFrom extracts the query vector from a built query.
func EmbeddingFrom(q repository.Query) ([]float64, bool) {
	v, ok := q.Param("embedding")
	if !ok {
		return nil, false
	}
	emb, ok := v.([]float64)
	return emb, ok
}

// WithQuery passes the human query string through options, for logging and
// drilldown registration.
func WithQuery(query string) repository.Option {
	return repository.WithParam("search_query", query)
}

// QueryFrom extracts the query string from a built query.
func QueryFrom(q repository.Query) (string, bool) {
	v, ok := q.Param("search_query")
	if !ok {
		return "", false
	}
	text, ok := v.(string)
	return text, ok
}

// WithThreshold sets the minimum similarity for a hit.
func WithThreshold(threshold float64) repository.Option {
	return repository.WithParam("threshold", threshold)
}

// ThresholdFrom extracts the similarity threshold from a built query.
func ThresholdFrom(q repository.Query) (float64, bool) {
	v, ok := q.Param("threshold")
	if !ok {
		return 0, false
	}
	threshold, ok := v.(float64)
	return threshold, ok
}

// WithExcludeID drops one memory from the results, for related-memory
// lookups pivoting on it.
func WithExcludeID(id string) repository.Option {
	return repository.WithParam("exclude_id", id)
}

// ExcludeIDFrom extracts the excluded memory id from a built query.
func ExcludeIDFrom(q repository.Query) (string, bool) {
	v, ok := q.Param("exclude_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithFilters passes memory filters through the option system.
func WithFilters(filters Filters) repository.Option {
	return repository.WithParam("search_filters", filters)
}

// FiltersFrom extracts memory filters from a built query.
func FiltersFrom(q repository.Query) (Filters, bool) {
	v, ok := q.Param("search_filters")
	if !ok {
		return Filters{}, false
	}
	f, ok := v.(Filters)
	return f, ok
}
