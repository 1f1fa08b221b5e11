package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/internal/database"
)

func TestAPIError(t *testing.T) {
	err := NewAPIError(404, "resource not found", nil)

	if err.Code() != 404 {
		t.Errorf("Code() = %v, want 404", err.Code())
	}
	if err.Message() != "resource not found" {
		t.Errorf("Message() = %v, want 'resource not found'", err.Message())
	}

	expected := "api error 404: resource not found"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAPIError_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewAPIError(500, "internal error", cause)

	expected := "api error 500: internal error: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestAPIError_CanBeWrapped(t *testing.T) {
	apiErr := NewAPIError(400, "bad input", nil)
	wrapped := fmt.Errorf("handler failed: %w", apiErr)

	var target *APIError
	if !errors.As(wrapped, &target) {
		t.Fatal("should be able to extract APIError with errors.As")
	}
	if target.Code() != 400 {
		t.Errorf("Code() = %v, want 400", target.Code())
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"name": "x"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["name"] != "x" {
		t.Errorf("body = %v, want name=x", body)
	}
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "api error keeps its status and message",
			err:        NewAPIError(http.StatusBadRequest, "zoom must be 0-100", nil),
			wantStatus: http.StatusBadRequest,
			wantError:  "zoom must be 0-100",
		},
		{
			name:       "wrapped api error still maps",
			err:        fmt.Errorf("handler: %w", NewAPIError(http.StatusNotFound, "handle 9 not found", nil)),
			wantStatus: http.StatusNotFound,
			wantError:  "handle 9 not found",
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("load memory: %w", database.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
		{
			name:       "empty query maps to 400",
			err:        service.ErrEmptyQuery,
			wantStatus: http.StatusBadRequest,
			wantError:  service.ErrEmptyQuery.Error(),
		},
		{
			name:       "closed client maps to 503",
			err:        service.ErrClientClosed,
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "service is shutting down",
		},
		{
			name:       "queue full maps to 429",
			err:        service.ErrQueueFull,
			wantStatus: http.StatusTooManyRequests,
			wantError:  service.ErrQueueFull.Error(),
		},
		{
			name:       "unknown error becomes a generic 500",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
			w := httptest.NewRecorder()

			WriteError(w, req, tt.err, nil)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var body errorBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestWriteError_NeverLeaksInternals(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	w := httptest.NewRecorder()

	WriteError(w, req, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"), nil)

	if body := w.Body.String(); strings.Contains(body, "10.0.0.5") {
		t.Errorf("response leaked internal error details: %s", body)
	}
}
