package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Socket client defaults. The sidecar services answer one JSON line per
// JSON line of request over a local Unix socket.
const (
	defaultDialTimeout = 2 * time.Second
	defaultIOTimeout   = 30 * time.Second
)

// socketClient holds the connection settings shared by the sidecar
// protocol clients.
type socketClient struct {
	network     string
	addr        string
	dialTimeout time.Duration
	ioTimeout   time.Duration
	retry       retryPolicy
}

// SocketOption configures a sidecar socket client.
type SocketOption func(*socketClient)

// WithNetwork overrides the network, e.g. "tcp" for a remote sidecar.
func WithNetwork(network string) SocketOption {
	return func(c *socketClient) { c.network = network }
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) SocketOption {
	return func(c *socketClient) { c.dialTimeout = d }
}

// WithIOTimeout bounds one request/response exchange.
func WithIOTimeout(d time.Duration) SocketOption {
	return func(c *socketClient) { c.ioTimeout = d }
}

// WithSocketRetries sets how often an unreachable sidecar is redialed
// before giving up.
func WithSocketRetries(n int, initialDelay time.Duration) SocketOption {
	return func(c *socketClient) {
		c.retry.maxRetries = n
		if initialDelay > 0 {
			c.retry.initialDelay = initialDelay
		}
	}
}

func newSocketClient(addr string, options ...SocketOption) socketClient {
	c := socketClient{
		network:     "unix",
		addr:        addr,
		dialTimeout: defaultDialTimeout,
		ioTimeout:   defaultIOTimeout,
		retry: retryPolicy{
			maxRetries:    2,
			initialDelay:  200 * time.Millisecond,
			backoffFactor: 2.0,
		},
	}
	for _, opt := range options {
		opt(&c)
	}
	return c
}

// Addr returns the configured socket address.
func (c socketClient) Addr() string { return c.addr }

// call performs one line-delimited JSON exchange. Each call is its own
// connection; the sidecars close or reuse as they please.
func (c socketClient) call(ctx context.Context, request, response any) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, c.network, c.addr)
	if err != nil {
		return errors.Join(ErrServiceUnavailable, fmt.Errorf("dial %s: %w", c.addr, err))
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.ioTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	// The response is one JSON line. Some sidecars close the stream
	// instead of sending the trailing newline; a non-empty line with EOF
	// is still a complete response.
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return fmt.Errorf("read response: %w", err)
	}
	if len(line) == 0 {
		return fmt.Errorf("read response: %w", io.ErrUnexpectedEOF)
	}
	if err := json.Unmarshal(line, response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// transientSocketError reports whether redialing could help. Only
// unreachability qualifies; a reachable sidecar that rejects or times out
// a request should push the caller into its fallback instead of burning
// the latency budget on retries.
func transientSocketError(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding  []float64 `json:"embedding"`
	Dimensions int       `json:"dimensions,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type healthRequest struct {
	Type string `json:"type"`
}

type healthResponse struct {
	Ready  bool   `json:"ready"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// EmbeddingSocket talks to the sidecar embedding service: one JSON line
// {"text": ...} in, one line {"embedding": [...], "dimensions": n} out.
type EmbeddingSocket struct {
	socketClient
}

// NewEmbeddingSocket creates a client for the embedding sidecar at addr.
// Resolve addr with project.EmbeddingSocketPath.
func NewEmbeddingSocket(addr string, options ...SocketOption) *EmbeddingSocket {
	return &EmbeddingSocket{socketClient: newSocketClient(addr, options...)}
}

// Embed generates one embedding for the text.
func (c *EmbeddingSocket) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp embedResponse
	err := c.retry.do(ctx, transientSocketError, func() error {
		resp = embedResponse{}
		return c.call(ctx, embedRequest{Text: text}, &resp)
	})
	if err != nil {
		return nil, NewProviderError("embed", 0, "embedding socket call failed", err)
	}
	if resp.Error != "" {
		return nil, NewProviderError("embed", 0, resp.Error, ErrServiceRejected)
	}
	if len(resp.Embedding) == 0 {
		return nil, NewProviderError("embed", 0, "empty embedding in response", ErrServiceRejected)
	}
	return resp.Embedding, nil
}

// Health probes the sidecar with {"type": "health"}. An unreachable
// sidecar reads as not ready, with the dial failure as the error.
func (c *EmbeddingSocket) Health(ctx context.Context) (Health, error) {
	var resp healthResponse
	if err := c.call(ctx, healthRequest{Type: "health"}, &resp); err != nil {
		return Health{Ready: false, Status: "unreachable"}, err
	}
	if resp.Error != "" {
		return Health{Ready: false, Status: resp.Error}, nil
	}
	return Health{Ready: resp.Ready, Status: resp.Status}, nil
}

var (
	_ Embedder      = (*EmbeddingSocket)(nil)
	_ HealthChecker = (*EmbeddingSocket)(nil)
)
