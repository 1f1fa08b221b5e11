package search

import "github.com/specmem/specmem/domain/memory"

// Match pairs a memory with its similarity to the query vector.
type Match struct {
	memory     memory.Memory
	similarity float64
}

// NewMatch creates a Match.
func NewMatch(mem memory.Memory, similarity float64) Match {
	return Match{memory: mem, similarity: similarity}
}

// Memory returns the matched memory.
func (m Match) Memory() memory.Memory { return m.memory }

// Similarity returns the cosine similarity in [0,1].
func (m Match) Similarity() float64 { return m.similarity }
