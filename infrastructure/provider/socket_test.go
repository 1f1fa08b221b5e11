package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startSocketServer runs a line-delimited JSON server on a unix socket
// and returns its path. Every accepted connection gets one request line
// decoded and one response line back from the handler. conns counts
// accepted connections.
func startSocketServer(t *testing.T, conns *atomic.Int64, handler func(raw map[string]any) any) string {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "svc.sock")
	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			if conns != nil {
				conns.Add(1)
			}
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				line, readErr := bufio.NewReader(c).ReadBytes('\n')
				if readErr != nil {
					return
				}
				var raw map[string]any
				if jsonErr := json.Unmarshal(line, &raw); jsonErr != nil {
					return
				}
				_ = json.NewEncoder(c).Encode(handler(raw))
			}(conn)
		}
	}()

	return sockPath
}

// startClosingServer accepts connections and closes them without
// answering.
func startClosingServer(t *testing.T, conns *atomic.Int64) string {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "svc.sock")
	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			conns.Add(1)
			_ = conn.Close()
		}
	}()

	return sockPath
}

func TestEmbeddingSocket_Embed(t *testing.T) {
	received := make(chan map[string]any, 1)
	sockPath := startSocketServer(t, nil, func(raw map[string]any) any {
		received <- raw
		return map[string]any{
			"embedding":  []float64{0.1, 0.2, 0.3},
			"dimensions": 3,
		}
	})

	client := NewEmbeddingSocket(sockPath)
	vec, err := client.Embed(context.Background(), "remember the deploy steps")
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, vec)

	raw := <-received
	require.Equal(t, "remember the deploy steps", raw["text"])
}

func TestEmbeddingSocket_ServiceError(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(map[string]any) any {
		return map[string]any{"error": "model not loaded"}
	})

	client := NewEmbeddingSocket(sockPath)
	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrServiceRejected)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, "embed", provErr.Operation())
	require.Equal(t, "model not loaded", provErr.Message())
}

func TestEmbeddingSocket_EmptyEmbeddingRejected(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(map[string]any) any {
		return map[string]any{"embedding": []float64{}}
	})

	client := NewEmbeddingSocket(sockPath)
	_, err := client.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, ErrServiceRejected)
}

func TestEmbeddingSocket_Unavailable(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "nobody-home.sock")

	client := NewEmbeddingSocket(sockPath, WithSocketRetries(0, time.Millisecond))
	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestEmbeddingSocket_RedialsUnavailableService(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "late.sock")

	client := NewEmbeddingSocket(sockPath, WithSocketRetries(5, 20*time.Millisecond))

	// Bring the server up after the first dial has already failed.
	go func() {
		time.Sleep(30 * time.Millisecond)
		ln, err := net.Listen("unix", sockPath)
		if err != nil {
			return
		}
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close(); _ = ln.Close() }()
		if _, err := bufio.NewReader(conn).ReadBytes('\n'); err != nil {
			return
		}
		_ = json.NewEncoder(conn).Encode(map[string]any{"embedding": []float64{1, 0}})
	}()

	vec, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0}, vec)
}

func TestEmbeddingSocket_NoRetryOnBrokenResponse(t *testing.T) {
	var conns atomic.Int64
	sockPath := startClosingServer(t, &conns)

	client := NewEmbeddingSocket(sockPath, WithSocketRetries(3, time.Millisecond))
	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrServiceUnavailable)
	require.Equal(t, int64(1), conns.Load(), "a reachable but broken service should not be redialed")
}

func TestEmbeddingSocket_ContextDeadline(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(map[string]any) any {
		time.Sleep(300 * time.Millisecond)
		return map[string]any{"embedding": []float64{1}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewEmbeddingSocket(sockPath)
	_, err := client.Embed(ctx, "hello")
	require.Error(t, err)
}

func TestEmbeddingSocket_Health(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(raw map[string]any) any {
		if raw["type"] != "health" {
			return map[string]any{"error": "unexpected request"}
		}
		return map[string]any{"ready": true, "status": "ok"}
	})

	client := NewEmbeddingSocket(sockPath)
	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.True(t, health.Ready)
	require.Equal(t, "ok", health.Status)
}

func TestEmbeddingSocket_HealthUnreachable(t *testing.T) {
	client := NewEmbeddingSocket(filepath.Join(t.TempDir(), "gone.sock"))

	health, err := client.Health(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrServiceUnavailable)
	require.False(t, health.Ready)
	require.Equal(t, "unreachable", health.Status)
}

func TestTranslateSocket_Translate(t *testing.T) {
	received := make(chan map[string]any, 1)
	sockPath := startSocketServer(t, nil, func(raw map[string]any) any {
		received <- raw
		return map[string]any{"translatedText": "hallo welt"}
	})

	client := NewTranslateSocket(sockPath)
	out, err := client.Translate(context.Background(), "hello world", "en", "de")
	require.NoError(t, err)
	require.Equal(t, "hallo welt", out)

	raw := <-received
	require.Equal(t, "hello world", raw["q"])
	require.Equal(t, "en", raw["source"])
	require.Equal(t, "de", raw["target"])
}

func TestTranslateSocket_EmptyTextShortCircuits(t *testing.T) {
	var conns atomic.Int64
	sockPath := startSocketServer(t, &conns, func(map[string]any) any {
		return map[string]any{"translatedText": "should not happen"}
	})

	client := NewTranslateSocket(sockPath)
	for _, text := range []string{"", "   ", "\n\t"} {
		out, err := client.Translate(context.Background(), text, "auto", "en")
		require.NoError(t, err)
		require.Empty(t, out)
	}
	require.Equal(t, int64(0), conns.Load(), "blank text should never hit the sidecar")
}

func TestTranslateSocket_ServiceError(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(map[string]any) any {
		return map[string]any{"error": "unsupported language pair"}
	})

	client := NewTranslateSocket(sockPath)
	_, err := client.Translate(context.Background(), "hello", "en", "xx")
	require.ErrorIs(t, err, ErrServiceRejected)
}

func TestTranslateSocket_HealthProbe(t *testing.T) {
	received := make(chan map[string]any, 1)
	sockPath := startSocketServer(t, nil, func(raw map[string]any) any {
		received <- raw
		return map[string]any{"translatedText": healthProbeText}
	})

	client := NewTranslateSocket(sockPath)
	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.True(t, health.Ready)

	raw := <-received
	require.Equal(t, healthProbeText, raw["q"])
}

func TestTranslateSocket_HealthUnreachable(t *testing.T) {
	client := NewTranslateSocket(filepath.Join(t.TempDir(), "gone.sock"))

	health, err := client.Health(context.Background())
	require.Error(t, err)
	require.False(t, health.Ready)
}

func TestRescoreSocket_Rescore(t *testing.T) {
	received := make(chan map[string]any, 1)
	sockPath := startSocketServer(t, nil, func(raw map[string]any) any {
		received <- raw
		return map[string]any{
			"gallery": []map[string]any{
				{"memory_id": "mem-2", "relevance": 0.9, "cot": "directly answers the query"},
				{"memory_id": "mem-1", "relevance": 0.3, "cot": "only shares keywords"},
			},
		}
	})

	client := NewRescoreSocket(sockPath)
	scores, err := client.Rescore(context.Background(), "how do we deploy", []GalleryItem{
		{ID: "mem-1", Keywords: "tests, coverage", Snippet: "prefers table-driven tests", Role: "user"},
		{ID: "mem-2", Keywords: "deploy, steps", Snippet: "deploy via make release", Role: "assistant"},
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.Equal(t, "mem-2", scores[0].MemoryID)
	require.InDelta(t, 0.9, scores[0].Relevance, 1e-9)
	require.Equal(t, "directly answers the query", scores[0].Cot)

	raw := <-received
	require.Equal(t, "how do we deploy", raw["query"])
	memories, ok := raw["memories"].([]any)
	require.True(t, ok)
	require.Len(t, memories, 2)
	first, ok := memories[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "mem-1", first["id"])
	require.Equal(t, "tests, coverage", first["keywords"])
	require.Equal(t, "prefers table-driven tests", first["snippet"])
	require.Equal(t, "user", first["role"])
}

func TestRescoreSocket_EmptyGallery(t *testing.T) {
	var conns atomic.Int64
	sockPath := startSocketServer(t, &conns, func(map[string]any) any {
		return map[string]any{"gallery": []map[string]any{}}
	})

	client := NewRescoreSocket(sockPath)
	scores, err := client.Rescore(context.Background(), "anything", nil)
	require.NoError(t, err)
	require.Empty(t, scores)
	require.Equal(t, int64(0), conns.Load(), "no candidates means no sidecar call")
}

func TestRescoreSocket_ServiceError(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(map[string]any) any {
		return map[string]any{"error": "model overloaded"}
	})

	client := NewRescoreSocket(sockPath)
	_, err := client.Rescore(context.Background(), "query", []GalleryItem{{ID: "mem-1"}})
	require.ErrorIs(t, err, ErrServiceRejected)
}

func TestRescoreSocket_IsAvailable(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(raw map[string]any) any {
		if raw["type"] != "health" {
			return map[string]any{"error": "unexpected request"}
		}
		return map[string]any{"ready": true, "status": "ok"}
	})

	client := NewRescoreSocket(sockPath)
	require.True(t, client.IsAvailable(context.Background()))
}

func TestRescoreSocket_IsAvailableNotReady(t *testing.T) {
	sockPath := startSocketServer(t, nil, func(map[string]any) any {
		return map[string]any{"ready": false, "status": "loading model"}
	})

	client := NewRescoreSocket(sockPath)
	require.False(t, client.IsAvailable(context.Background()))
}

func TestRescoreSocket_IsAvailableUnreachable(t *testing.T) {
	client := NewRescoreSocket(filepath.Join(t.TempDir(), "gone.sock"))
	require.False(t, client.IsAvailable(context.Background()))
}
