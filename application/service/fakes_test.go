package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/specmem/specmem/domain/code"
	"github.com/specmem/specmem/domain/drilldown"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/infrastructure/compress"
	"github.com/specmem/specmem/infrastructure/provider"
	"github.com/specmem/specmem/internal/database"
)

// fakeMemoryStore is an in-memory memory.Store with injectable failures.
type fakeMemoryStore struct {
	mu         sync.Mutex
	memories   map[string]memory.Memory
	countErr   error
	getErr     error
	sessionErr error
	countCalls int
}

func newFakeMemoryStore(mems ...memory.Memory) *fakeMemoryStore {
	s := &fakeMemoryStore{memories: make(map[string]memory.Memory)}
	for _, m := range mems {
		s.memories[m.ID()] = m
	}
	return s
}

func (s *fakeMemoryStore) add(mems ...memory.Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mems {
		s.memories[m.ID()] = m
	}
}

func (s *fakeMemoryStore) Get(_ context.Context, id string) (memory.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return memory.Memory{}, s.getErr
	}
	m, ok := s.memories[id]
	if !ok {
		return memory.Memory{}, fmt.Errorf("%w: memory %s", database.ErrNotFound, id)
	}
	return m, nil
}

func (s *fakeMemoryStore) Find(_ context.Context, _ ...repository.Option) ([]memory.Memory, error) {
	return s.sorted(), nil
}

func (s *fakeMemoryStore) Save(_ context.Context, mem memory.Memory) (memory.Memory, error) {
	s.add(mem)
	return mem, nil
}

func (s *fakeMemoryStore) SaveAll(_ context.Context, mems []memory.Memory) ([]memory.Memory, error) {
	s.add(mems...)
	return mems, nil
}

func (s *fakeMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memories, id)
	return nil
}

func (s *fakeMemoryStore) FindBySession(_ context.Context, sessionID string, limit int) ([]memory.Memory, error) {
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	var result []memory.Memory
	for _, m := range s.sorted() {
		if m.SessionID() != sessionID {
			continue
		}
		result = append(result, m)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *fakeMemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.memories)), nil
}

func (s *fakeMemoryStore) CountWithEmbeddings(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls++
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, m := range s.memories {
		if m.HasEmbedding() {
			n++
		}
	}
	return n, nil
}

func (s *fakeMemoryStore) sorted() []memory.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]memory.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt().Before(result[j].CreatedAt())
	})
	return result
}

// fakeSearcher returns canned matches and records the query it saw.
type fakeSearcher struct {
	mu      sync.Mutex
	matches []search.Match
	err     error
	queries []repository.Query
}

func (s *fakeSearcher) Search(_ context.Context, options ...repository.Option) ([]search.Match, error) {
	s.mu.Lock()
	s.queries = append(s.queries, repository.Build(options...))
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func (s *fakeSearcher) lastQuery() (repository.Query, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return repository.Query{}, false
	}
	return s.queries[len(s.queries)-1], true
}

// fakeEmbedder returns one canned vector for every text.
type fakeEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

// fakeRescorer plays the Mini-COT sidecar.
type fakeRescorer struct {
	available bool
	scores    []provider.GalleryScore
	err       error
	gotQuery  string
	gotItems  []provider.GalleryItem
	calls     int
}

func (r *fakeRescorer) IsAvailable(_ context.Context) bool {
	return r.available
}

func (r *fakeRescorer) Rescore(_ context.Context, query string, items []provider.GalleryItem) ([]provider.GalleryScore, error) {
	r.calls++
	r.gotQuery = query
	r.gotItems = items
	if r.err != nil {
		return nil, r.err
	}
	return r.scores, nil
}

// fakeDefinitionStore serves code definitions keyed by "path:name".
type fakeDefinitionStore struct {
	defs map[string]code.Definition
	err  error
}

func (s *fakeDefinitionStore) GetByFileAndName(_ context.Context, filePath, name string) (code.Definition, error) {
	if s.err != nil {
		return code.Definition{}, s.err
	}
	def, ok := s.defs[filePath+":"+name]
	if !ok {
		return code.Definition{}, fmt.Errorf("%w: definition %s in %s", database.ErrNotFound, name, filePath)
	}
	return def, nil
}

func (s *fakeDefinitionStore) Save(_ context.Context, def code.Definition) (code.Definition, error) {
	return def, nil
}

func (s *fakeDefinitionStore) SaveAll(_ context.Context, defs []code.Definition) ([]code.Definition, error) {
	return defs, nil
}

// fakeFileStore serves file snapshots keyed by path.
type fakeFileStore struct {
	files map[string]code.File
	err   error
}

func (s *fakeFileStore) GetByPath(_ context.Context, filePath string) (code.File, error) {
	if s.err != nil {
		return code.File{}, s.err
	}
	file, ok := s.files[filePath]
	if !ok {
		return code.File{}, fmt.Errorf("%w: file %s", database.ErrNotFound, filePath)
	}
	return file, nil
}

func (s *fakeFileStore) Save(_ context.Context, file code.File) (code.File, error) {
	return file, nil
}

// fakePointerStore serves code pointers keyed by memory id.
type fakePointerStore struct {
	pointers map[string][]code.Pointer
	err      error
}

func (s *fakePointerStore) FindByMemory(_ context.Context, memoryID string, limit int) ([]code.Pointer, error) {
	if s.err != nil {
		return nil, s.err
	}
	ptrs := s.pointers[memoryID]
	if limit > 0 && len(ptrs) > limit {
		ptrs = ptrs[:limit]
	}
	return ptrs, nil
}

func (s *fakePointerStore) Save(_ context.Context, ptr code.Pointer) (code.Pointer, error) {
	return ptr, nil
}

// fakeCompressor tags text so tests can see it ran, and records the
// level it was asked for.
type fakeCompressor struct {
	level compress.Level
	err   error
}

func (c *fakeCompressor) Compress(_ context.Context, text string, level compress.Level) (string, error) {
	c.level = level
	if c.err != nil {
		return "", c.err
	}
	return "[z]" + text, nil
}

func newTestRegistry(t *testing.T) *drilldown.Registry {
	t.Helper()
	registry := drilldown.NewRegistry()
	t.Cleanup(registry.Shutdown)
	return registry
}

// sessionMemory builds a conversational turn with session metadata. The
// turn timestamp and created_at both take the given time.
func sessionMemory(id, content, role, sessionID string, at time.Time) memory.Memory {
	meta := map[string]any{
		"role":      role,
		"sessionId": sessionID,
		"timestamp": at.Format(time.RFC3339),
	}
	return memory.ReconstructMemory(id, content, nil, meta, nil, at)
}
