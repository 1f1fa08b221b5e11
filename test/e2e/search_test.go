package e2e_test

import (
	"net/http"
	"strings"
	"testing"
)

func TestSearchEndpoint(t *testing.T) {
	ts := NewTestServer(t)
	ts.SaveMemory("how do we fix the auth bug", map[string]any{"role": "user"})
	ts.SaveMemory("the auth bug was a stale session cache", map[string]any{"role": "assistant"})
	ts.SaveMemory("deploy runs from the release branch", map[string]any{"role": "assistant"})

	t.Run("close_zoom_drops_off_topic_rows", func(t *testing.T) {
		result := ts.Search("auth bug", "close")

		if result.Zoom != "close" {
			t.Errorf("zoom = %q, want close", result.Zoom)
		}
		if result.Total != 3 {
			t.Errorf("total = %d, want 3", result.Total)
		}
		if len(result.Items) != 2 {
			t.Fatalf("items = %d, want 2 (the deploy row sits below the close threshold)", len(result.Items))
		}
		if !strings.Contains(result.Items[0].Content, "how do we fix the auth bug") {
			t.Errorf("first item = %q, want the exact match first", result.Items[0].Content)
		}
		if result.Items[0].Similarity < result.Items[1].Similarity {
			t.Errorf("items out of order: %f then %f", result.Items[0].Similarity, result.Items[1].Similarity)
		}
		for i, item := range result.Items {
			if item.Handle == 0 {
				t.Errorf("item %d has no drilldown handle", i)
			}
			if item.MemoryID == "" {
				t.Errorf("item %d has no memory id", i)
			}
		}
	})

	t.Run("ultra_wide_keeps_everything", func(t *testing.T) {
		result := ts.Search("auth bug", "ultra-wide")
		if len(result.Items) != 3 {
			t.Errorf("items = %d, want all 3 at ultra-wide", len(result.Items))
		}
	})

	t.Run("limit_caps_the_page", func(t *testing.T) {
		resp := ts.POST("/v1/search", map[string]any{"query": "auth", "zoom": "ultra-wide", "limit": 1})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusOK, ts.ReadBody(resp))
		}
		var result struct {
			Items []struct {
				Handle int `json:"handle"`
			} `json:"items"`
		}
		ts.DecodeJSON(resp, &result)
		if len(result.Items) != 1 {
			t.Errorf("items = %d, want 1", len(result.Items))
		}
	})

	t.Run("rejects_bad_requests", func(t *testing.T) {
		resp := ts.POST("/v1/search", map[string]any{"query": ""})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("empty query status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
		_ = resp.Body.Close()

		resp = ts.POST("/v1/search", map[string]any{"query": "auth", "zoom": "fisheye"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("unknown zoom status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
		_ = resp.Body.Close()
	})
}
