package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"chemflow/internal/core"
	"chemflow/internal/server/service"
)

func TestBearerKey(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"token scheme", "Token abc123", "abc123"},
		{"bearer scheme", "Bearer abc123", "abc123"},
		{"empty header", "", ""},
		{"bare key without scheme", "abc123", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"trims whitespace", "Token  abc123 ", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bearerKey(tt.header); got != tt.expected {
				t.Errorf("bearerKey(%q) = %q, want %q", tt.header, got, tt.expected)
			}
		})
	}
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"parse error", &core.ParseError{Row: 2, Column: "Pressure", Cause: "not numeric"}, http.StatusBadRequest},
		{"empty records", core.ErrNoRecords, http.StatusBadRequest},
		{"file too large", service.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"missing credentials", service.ErrMissingCredentials, http.StatusBadRequest},
		{"username taken", service.ErrUsernameTaken, http.StatusBadRequest},
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"invalid token", service.ErrInvalidToken, http.StatusUnauthorized},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := mapServiceError(c, tt.err); err != nil {
				t.Fatalf("unexpected handler error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected an error message in the response body")
			}
		})
	}
}

func TestRateLimiterStop(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	if !rl.allow("10.0.0.1") {
		t.Error("expected first request to be allowed")
	}

	// Stop shuts down the cleanup goroutine and is idempotent; the
	// limiter itself keeps working for in-flight requests.
	rl.Stop()
	rl.Stop()

	if !rl.allow("10.0.0.1") {
		t.Error("expected limiter to keep serving after Stop")
	}
}

func TestHumanizeBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
	}

	for _, tt := range tests {
		if got := humanizeBytes(tt.in); got != tt.want {
			t.Errorf("humanizeBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
