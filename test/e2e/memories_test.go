package e2e_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/queue"
	"github.com/specmem/specmem/infrastructure/api/v1/dto"
)

func TestMemoriesListPagination(t *testing.T) {
	ts := NewTestServer(t)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		ts.SaveMemoryAt(fmt.Sprintf("auth note %d", i), map[string]any{"role": "user"}, base.Add(time.Duration(i)*time.Minute))
	}

	resp := ts.GET("/v1/memories?page=1&page_size=2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusOK, ts.ReadBody(resp))
	}
	var list dto.MemoryListResponse
	ts.DecodeJSON(resp, &list)

	if len(list.Data) != 2 {
		t.Fatalf("page size = %d, want 2", len(list.Data))
	}
	if list.Data[0].Content != "auth note 4" {
		t.Errorf("first row = %q, want the newest memory", list.Data[0].Content)
	}
	if list.Meta.Page != 1 || list.Meta.PageSize != 2 {
		t.Errorf("meta page = %d/%d, want 1/2", list.Meta.Page, list.Meta.PageSize)
	}
	if list.Meta.TotalCount != 5 {
		t.Errorf("total_count = %d, want 5", list.Meta.TotalCount)
	}
	if list.Meta.TotalPages != 3 {
		t.Errorf("total_pages = %d, want 3", list.Meta.TotalPages)
	}

	resp = ts.GET("/v1/memories?page=3&page_size=2")
	ts.DecodeJSON(resp, &list)
	if len(list.Data) != 1 {
		t.Errorf("last page size = %d, want 1", len(list.Data))
	}
}

func TestMemoriesSessionFilter(t *testing.T) {
	ts := NewTestServer(t)
	base := time.Now().UTC().Add(-time.Hour)
	ts.SaveMemoryAt("auth question", map[string]any{"role": "user", "sessionId": "sess-auth"}, base)
	ts.SaveMemoryAt("auth answer about the cache", map[string]any{"role": "assistant", "sessionId": "sess-auth"}, base.Add(time.Minute))
	ts.SaveMemoryAt("deploy checklist", map[string]any{"role": "user", "sessionId": "sess-deploy"}, base.Add(2*time.Minute))

	resp := ts.GET("/v1/memories?session=sess-auth")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusOK, ts.ReadBody(resp))
	}
	var list dto.MemoryListResponse
	ts.DecodeJSON(resp, &list)

	if len(list.Data) != 2 {
		t.Fatalf("session rows = %d, want 2", len(list.Data))
	}
	if list.Data[0].Content != "auth question" {
		t.Errorf("first row = %q, want the session replayed oldest first", list.Data[0].Content)
	}
	if list.Data[1].Content != "auth answer about the cache" {
		t.Errorf("second row = %q, want the reply", list.Data[1].Content)
	}
}

func TestMemoryLookup(t *testing.T) {
	ts := NewTestServer(t)
	saved := ts.SaveMemory("the auth bug was a stale session cache", map[string]any{"role": "assistant"})

	resp := ts.GET("/v1/memories/" + saved.ID())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by id status = %d, want %d: %s", resp.StatusCode, http.StatusOK, ts.ReadBody(resp))
	}
	var mem dto.MemorySchema
	ts.DecodeJSON(resp, &mem)
	if mem.ID != saved.ID() {
		t.Errorf("id = %q, want %q", mem.ID, saved.ID())
	}
	if !mem.HasEmbedding {
		t.Error("expected has_embedding true for a seeded memory")
	}

	// A search handle resolves to the same row.
	result := ts.Search("auth bug", "close")
	if len(result.Items) == 0 {
		t.Fatal("search returned nothing to look up")
	}
	resp = ts.GET(fmt.Sprintf("/v1/memories/%d", result.Items[0].Handle))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by handle status = %d, want %d: %s", resp.StatusCode, http.StatusOK, ts.ReadBody(resp))
	}
	ts.DecodeJSON(resp, &mem)
	if mem.ID != result.Items[0].MemoryID {
		t.Errorf("handle resolved to %q, want %q", mem.ID, result.Items[0].MemoryID)
	}

	resp = ts.GET("/v1/memories/00000000-0000-4000-8000-000000000000")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing memory status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	_ = resp.Body.Close()
}

func TestStatsEndpoint(t *testing.T) {
	ts := NewTestServer(t)
	ts.SaveMemory("auth memory with a vector", map[string]any{"role": "user"})
	if _, err := ts.client.Memories.Save(context.Background(), memory.NewMemory("no vector yet", nil, nil)); err != nil {
		t.Fatalf("save memory: %v", err)
	}
	if _, err := ts.client.Queue.QueueForEmbedding(context.Background(), "embed me on the next drain", queue.DefaultPriority); err != nil {
		t.Fatalf("queue text: %v", err)
	}

	resp := ts.GET("/v1/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusOK, ts.ReadBody(resp))
	}
	var stats dto.StatsResponse
	ts.DecodeJSON(resp, &stats)

	if stats.Memories != 2 {
		t.Errorf("memories = %d, want 2", stats.Memories)
	}
	if stats.Embedded != 1 {
		t.Errorf("embedded = %d, want 1", stats.Embedded)
	}
	if stats.Queue.Pending != 1 {
		t.Errorf("queue pending = %d, want 1", stats.Queue.Pending)
	}
	if !strings.HasPrefix(stats.Schema, "specmem_") {
		t.Errorf("schema = %q, want specmem_ prefix", stats.Schema)
	}
	if stats.Handles.Capacity == 0 {
		t.Error("handle capacity missing from stats")
	}
}
