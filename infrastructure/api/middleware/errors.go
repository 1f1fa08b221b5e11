package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/internal/database"
)

// APIError carries the HTTP status a handler error should map to.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates an APIError with an optional cause.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to an HTTP status and writes the JSON error body.
// Unrecognized errors become a generic 500 so internals never reach
// clients; the full error goes to the log with the request id.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	status := http.StatusInternalServerError
	message := "internal server error"

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code()
		message = apiErr.Message()
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
		message = "not found"
	case errors.Is(err, service.ErrEmptyQuery):
		status = http.StatusBadRequest
		message = service.ErrEmptyQuery.Error()
	case errors.Is(err, service.ErrClientClosed):
		status = http.StatusServiceUnavailable
		message = "service is shutting down"
	case errors.Is(err, service.ErrQueueFull):
		status = http.StatusTooManyRequests
		message = service.ErrQueueFull.Error()
	}

	requestID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("request_id", requestID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}

	WriteJSON(w, status, errorBody{Error: message, RequestID: requestID})
}
