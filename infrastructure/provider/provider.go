// Package provider contains clients for the external services the memory
// layer leans on: embedding generation (sidecar Unix socket, OpenAI
// compatible HTTP, or in-process ONNX), Mini-COT rescoring, and
// translation. Every client degrades instead of blocking callers: search
// falls back to vector-only scoring and writes fall back to the embedding
// queue when a backend is down.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors.
var (
	// ErrUnsupportedOperation indicates the provider doesn't support the
	// requested operation.
	ErrUnsupportedOperation = errors.New("operation not supported by this provider")

	// ErrServiceUnavailable indicates the backing service could not be
	// reached, even after retries.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrServiceRejected indicates the backing service answered with an
	// error payload instead of a result.
	ErrServiceRejected = errors.New("service rejected request")
)

// Embedder generates one embedding vector per text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Health describes the readiness of a backing service.
type Health struct {
	Ready  bool
	Status string
}

// HealthChecker probes a backing service without doing any work.
type HealthChecker interface {
	Health(ctx context.Context) (Health, error)
}

// ProviderError wraps provider errors with the failed operation and, for
// HTTP providers, the status code.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.cause
}

// Operation returns the operation that failed.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code if available.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Message returns the error message.
func (e *ProviderError) Message() string { return e.message }

// IsRateLimited returns true if the error is due to rate limiting.
func (e *ProviderError) IsRateLimited() bool {
	return e.statusCode == 429
}

// retryPolicy drives exponential backoff for transient failures.
type retryPolicy struct {
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// do executes fn with exponential backoff. Only errors the retryable
// predicate accepts are retried; context cancellation always wins.
func (p retryPolicy) do(ctx context.Context, retryable func(error) bool, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
