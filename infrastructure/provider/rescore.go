package provider

import (
	"context"
)

// GalleryItem is one candidate handed to the rescoring sidecar: enough
// of a memory for a small reasoning model to judge relevance without
// the full content.
type GalleryItem struct {
	ID       string `json:"id"`
	Keywords string `json:"keywords"`
	Snippet  string `json:"snippet"`
	Role     string `json:"role,omitempty"`
}

// GalleryScore is the sidecar's verdict on one candidate.
type GalleryScore struct {
	MemoryID  string  `json:"memory_id"`
	Relevance float64 `json:"relevance"`
	Cot       string  `json:"cot"`
}

type rescoreRequest struct {
	Query    string        `json:"query"`
	Memories []GalleryItem `json:"memories"`
}

type rescoreResponse struct {
	Gallery []GalleryScore `json:"gallery"`
	Error   string         `json:"error,omitempty"`
}

// RescoreSocket talks to the sidecar chain-of-thought scorer. The whole
// candidate gallery goes out in one request and comes back scored, so
// the model sees the candidates relative to each other.
type RescoreSocket struct {
	socketClient
}

// NewRescoreSocket creates a client for the rescoring sidecar at addr.
// Resolve addr with project.RescoreSocketPath.
func NewRescoreSocket(addr string, options ...SocketOption) *RescoreSocket {
	return &RescoreSocket{socketClient: newSocketClient(addr, options...)}
}

// Rescore asks the sidecar to judge every item against the query.
// Scores come back in sidecar order, which need not match item order;
// match them up by MemoryID.
func (c *RescoreSocket) Rescore(ctx context.Context, query string, items []GalleryItem) ([]GalleryScore, error) {
	if len(items) == 0 {
		return []GalleryScore{}, nil
	}
	var resp rescoreResponse
	err := c.retry.do(ctx, transientSocketError, func() error {
		resp = rescoreResponse{}
		return c.call(ctx, rescoreRequest{Query: query, Memories: items}, &resp)
	})
	if err != nil {
		return nil, NewProviderError("rescore", 0, "rescore socket call failed", err)
	}
	if resp.Error != "" {
		return nil, NewProviderError("rescore", 0, resp.Error, ErrServiceRejected)
	}
	return resp.Gallery, nil
}

// IsAvailable reports whether the sidecar is up and ready. Callers use
// it to decide between hybrid scoring and the similarity-only fallback,
// so failures of any kind read as unavailable.
func (c *RescoreSocket) IsAvailable(ctx context.Context) bool {
	var resp healthResponse
	if err := c.call(ctx, healthRequest{Type: "health"}, &resp); err != nil {
		return false
	}
	return resp.Error == "" && resp.Ready
}

// Health exposes the probe in the shared health shape.
func (c *RescoreSocket) Health(ctx context.Context) (Health, error) {
	var resp healthResponse
	if err := c.call(ctx, healthRequest{Type: "health"}, &resp); err != nil {
		return Health{Ready: false, Status: "unreachable"}, err
	}
	if resp.Error != "" {
		return Health{Ready: false, Status: resp.Error}, nil
	}
	return Health{Ready: resp.Ready, Status: resp.Status}, nil
}

var _ HealthChecker = (*RescoreSocket)(nil)
