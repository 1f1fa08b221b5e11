package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/infrastructure/api"
	"github.com/specmem/specmem/infrastructure/api/v1/dto"
)

// axisEmbedder maps keywords onto fixed axes so similarity is
// deterministic without a model or sidecar.
type axisEmbedder struct{}

func (axisEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	lower := strings.ToLower(text)
	vec := []float64{0.05, 0.05, 0.05}
	if strings.Contains(lower, "auth") {
		vec[0] = 1
	}
	if strings.Contains(lower, "cache") {
		vec[1] = 1
	}
	if strings.Contains(lower, "deploy") {
		vec[2] = 1
	}
	return vec, nil
}

// TestServer wraps a specmem client and its HTTP surface for e2e testing.
type TestServer struct {
	t          *testing.T
	client     *specmem.Client
	httpServer *httptest.Server
}

// NewTestServer builds a client over a temp SQLite database and serves the
// full API router, middleware stack included, over real TCP.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	tmpDir := t.TempDir()
	client, err := specmem.New(
		specmem.WithSQLite(filepath.Join(tmpDir, "test.db")),
		specmem.WithDataDir(tmpDir),
		specmem.WithProjectPath(tmpDir),
		specmem.WithEmbedder(axisEmbedder{}),
	)
	if err != nil {
		t.Fatalf("create specmem client: %v", err)
	}

	httpServer := httptest.NewServer(api.NewAPIServer(client).Handler())

	ts := &TestServer{t: t, client: client, httpServer: httpServer}
	t.Cleanup(ts.Close)
	return ts
}

// URL returns the base URL of the test server.
func (ts *TestServer) URL() string {
	return ts.httpServer.URL
}

// Close shuts down the test server.
func (ts *TestServer) Close() {
	ts.httpServer.Close()
	_ = ts.client.Close()
}

// GET performs a GET request and returns the response.
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	resp, err := http.Get(ts.URL() + path)
	if err != nil {
		ts.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with JSON body and returns the response.
func (ts *TestServer) POST(path string, body any) *http.Response {
	ts.t.Helper()
	jsonBody, err := json.Marshal(body)
	if err != nil {
		ts.t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(ts.URL()+path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		ts.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// DecodeJSON decodes the response body as JSON into v.
func (ts *TestServer) DecodeJSON(resp *http.Response, v any) {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		ts.t.Fatalf("decode response: %v", err)
	}
}

// ReadBody reads and returns the response body as a string.
func (ts *TestServer) ReadBody(resp *http.Response) string {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatalf("read body: %v", err)
	}
	return string(body)
}

// SaveMemory embeds content with the axis embedder and stores it directly.
func (ts *TestServer) SaveMemory(content string, metadata map[string]any) memory.Memory {
	ts.t.Helper()
	return ts.SaveMemoryAt(content, metadata, time.Now().UTC())
}

// SaveMemoryAt is SaveMemory with an explicit creation time, so
// conversation ordering is deterministic regardless of clock resolution.
func (ts *TestServer) SaveMemoryAt(content string, metadata map[string]any, at time.Time) memory.Memory {
	ts.t.Helper()
	ctx := context.Background()

	vec, err := axisEmbedder{}.Embed(ctx, content)
	if err != nil {
		ts.t.Fatalf("embed: %v", err)
	}
	mem := memory.ReconstructMemory(uuid.NewString(), content, nil, metadata, vec, at)
	saved, err := ts.client.Memories.Save(ctx, mem)
	if err != nil {
		ts.t.Fatalf("save memory: %v", err)
	}
	return saved
}

// Search runs a search through the HTTP endpoint and decodes the page.
func (ts *TestServer) Search(query, zoom string) dto.SearchResponse {
	ts.t.Helper()

	resp := ts.POST("/v1/search", map[string]any{"query": query, "zoom": zoom})
	if resp.StatusCode != http.StatusOK {
		ts.t.Fatalf("search %q at %s: status %d: %s", query, zoom, resp.StatusCode, ts.ReadBody(resp))
	}
	var result dto.SearchResponse
	ts.DecodeJSON(resp, &result)
	return result
}
