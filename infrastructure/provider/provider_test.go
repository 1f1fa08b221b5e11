package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_SucceedsFirstAttempt(t *testing.T) {
	p := retryPolicy{maxRetries: 3, initialDelay: time.Millisecond, backoffFactor: 2.0}

	calls := 0
	err := p.do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryPolicy_RetriesUntilSuccess(t *testing.T) {
	p := retryPolicy{maxRetries: 5, initialDelay: time.Millisecond, backoffFactor: 2.0}

	transient := errors.New("transient")
	calls := 0
	err := p.do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryPolicy_NonRetryableFailsFast(t *testing.T) {
	p := retryPolicy{maxRetries: 5, initialDelay: time.Millisecond, backoffFactor: 2.0}

	fatal := errors.New("fatal")
	calls := 0
	err := p.do(context.Background(), func(error) bool { return false }, func() error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	require.Equal(t, 1, calls)
}

func TestRetryPolicy_ExhaustionWrapsLastError(t *testing.T) {
	p := retryPolicy{maxRetries: 2, initialDelay: time.Millisecond, backoffFactor: 2.0}

	transient := errors.New("transient")
	calls := 0
	err := p.do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return transient
	})
	require.Error(t, err)
	require.ErrorIs(t, err, transient)
	require.Contains(t, err.Error(), "max retries exceeded")
	require.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestRetryPolicy_ContextCancellationWins(t *testing.T) {
	p := retryPolicy{maxRetries: 10, initialDelay: time.Hour, backoffFactor: 2.0}

	ctx, cancel := context.WithCancel(context.Background())
	transient := errors.New("transient")
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- p.do(ctx, func(error) bool { return true }, func() error {
			calls++
			return transient
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls, "cancellation during backoff must not run fn again")
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestProviderError_Accessors(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("embed", http.StatusTooManyRequests, "rate limited", cause)

	require.Equal(t, "embed", err.Operation())
	require.Equal(t, http.StatusTooManyRequests, err.StatusCode())
	require.Equal(t, "rate limited", err.Message())
	require.True(t, err.IsRateLimited())
	require.Equal(t, "rate limited: connection reset", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestProviderError_WithoutCause(t *testing.T) {
	err := NewProviderError("translate", 0, "bad response", nil)

	require.Equal(t, "bad response", err.Error())
	require.False(t, err.IsRateLimited())
	require.Nil(t, err.Unwrap())
}
