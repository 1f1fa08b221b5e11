package provider

import (
	"context"
	"fmt"
	"strings"
)

// healthProbeText is the reserved query the translation sidecar answers
// without invoking the model.
const healthProbeText = "__health_check__"

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// TranslateSocket talks to the sidecar translation service using a
// LibreTranslate-shaped line protocol: {"q", "source", "target"} in,
// {"translatedText"} out.
type TranslateSocket struct {
	socketClient
}

// NewTranslateSocket creates a client for the translation sidecar at
// addr. Resolve addr with project.TranslateSocketPath.
func NewTranslateSocket(addr string, options ...SocketOption) *TranslateSocket {
	return &TranslateSocket{socketClient: newSocketClient(addr, options...)}
}

// Translate converts text from the source language to the target
// language. Language codes are ISO 639-1 ("en", "de"); "auto" asks the
// sidecar to detect the source.
func (c *TranslateSocket) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	var resp translateResponse
	err := c.retry.do(ctx, transientSocketError, func() error {
		resp = translateResponse{}
		return c.call(ctx, translateRequest{Q: text, Source: source, Target: target}, &resp)
	})
	if err != nil {
		return "", NewProviderError("translate", 0, "translate socket call failed", err)
	}
	if resp.Error != "" {
		return "", NewProviderError("translate", 0, resp.Error, ErrServiceRejected)
	}
	return resp.TranslatedText, nil
}

// Health probes the sidecar with the reserved health query. A sidecar
// that echoes anything back without an error is considered ready.
func (c *TranslateSocket) Health(ctx context.Context) (Health, error) {
	var resp translateResponse
	if err := c.call(ctx, translateRequest{Q: healthProbeText, Source: "en", Target: "en"}, &resp); err != nil {
		return Health{Ready: false, Status: "unreachable"}, err
	}
	if resp.Error != "" {
		return Health{Ready: false, Status: resp.Error}, nil
	}
	return Health{Ready: true, Status: "ok"}, nil
}

// String identifies the client in logs.
func (c *TranslateSocket) String() string {
	return fmt.Sprintf("translate(%s)", c.addr)
}

var _ HealthChecker = (*TranslateSocket)(nil)
