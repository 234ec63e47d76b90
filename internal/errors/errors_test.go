package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		message  string
		category ErrorCategory
		status   int
	}{
		{"validation", NewValidationError("bad input", "field"), "[VALIDATION_ERROR] bad input", CategoryValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("decision", "abc"), "[NOT_FOUND] decision not found", CategoryNotFound, http.StatusNotFound},
		{"network", NewNetworkError("connection failed", fmt.Errorf("connection refused")), "[NETWORK_ERROR] connection failed", CategoryNetwork, http.StatusBadGateway},
		{"timeout", NewTimeoutError("slow", nil), "[TIMEOUT_ERROR] slow", CategoryTimeout, http.StatusGatewayTimeout},
		{"rate limit", NewRateLimitError("1s"), "[RATE_LIMIT_EXCEEDED] Rate limit exceeded", CategoryRateLimit, http.StatusTooManyRequests},
		{"external api", NewExternalAPIError("YouTube", nil), "[NETWORK_ERROR] YouTube API error", CategoryExternalAPI, http.StatusBadGateway},
		{"internal", NewInternalError("boom", nil), "[INTERNAL_ERROR] Internal server error", CategoryInternal, http.StatusInternalServerError},
		{"configuration", NewConfigurationError("missing key", nil), "[CONFIGURATION_ERROR] Configuration error", CategoryConfiguration, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
	}{
		{"passes through app errors", NewValidationError("x"), CategoryValidation},
		{"unwraps wrapped app errors", fmt.Errorf("handler: %w", NewNotFoundError("decision", "1")), CategoryNotFound},
		{"wraps errbuilder errors", errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg("x"), CategoryInternal},
		{"maps connection failures", fmt.Errorf("dial tcp: connection refused"), CategoryNetwork},
		{"maps deadlines", context.DeadlineExceeded, CategoryTimeout},
		{"maps cancellation", context.Canceled, CategoryTimeout},
		{"defaults to internal", fmt.Errorf("something odd"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, ToAppError(tt.err).Category)
		})
	}
	assert.Nil(t, ToAppError(nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewNetworkError("x", nil)))
	assert.True(t, IsRetryableError(NewRateLimitError("1s")))
	assert.False(t, IsRetryableError(NewValidationError("x")))
	assert.False(t, IsRetryableError(nil))
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		c.Set("request_id", "req-1")
		_ = c.Error(NewValidationError("limit must be positive"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"validation"`)
	assert.Contains(t, w.Body.String(), `"request_id":"req-1"`)
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"internal"`)
}

func TestAppErrorJSON(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		mode    string
		code    string
		details map[string]any
		cause   any
	}{
		{"validation without cause", NewValidationError("bad input", "field x"), gin.TestMode, "VALIDATION_ERROR", map[string]any{"validation_details": "field x"}, nil},
		{"not found", NewNotFoundError("decision", "abc"), gin.ReleaseMode, "NOT_FOUND", map[string]any{"id": "abc"}, nil},
		{"rate limit", NewRateLimitError("30"), gin.ReleaseMode, "RATE_LIMIT_EXCEEDED", map[string]any{"retry_after": "30"}, nil},
		{"network keeps cause", NewNetworkError("dial failed", fmt.Errorf("connection refused")), gin.ReleaseMode, "NETWORK_ERROR", nil, "connection refused"},
		{"internal hides details in release", NewInternalError("db exploded", fmt.Errorf("disk full")), gin.ReleaseMode, "INTERNAL_ERROR", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := gin.Mode()
			gin.SetMode(tt.mode)
			defer gin.SetMode(previous)

			raw, err := json.Marshal(tt.err)
			require.NoError(t, err)

			var body map[string]any
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, string(tt.err.Category), body["category"])
			assert.Equal(t, float64(tt.err.HTTPStatus), body["http_status"])
			if tt.details == nil {
				assert.NotContains(t, body, "details")
			} else {
				assert.Equal(t, tt.details, body["details"])
			}
			if tt.cause == nil {
				assert.NotContains(t, body, "cause")
			} else {
				assert.Equal(t, tt.cause, body["cause"])
			}
		})
	}
}

func TestErrorHandlerWithoutCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(), RecoveryHandler())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("decision", "42"))
	})
	r.GET("/limited", func(c *gin.Context) {
		_ = c.Error(NewRateLimitError("5"))
	})

	for path, status := range map[string]int{"/missing": http.StatusNotFound, "/limited": http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, status, w.Code, path)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
		assert.NotEmpty(t, body["message"], path)
	}
}
