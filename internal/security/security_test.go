package security

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 512, config.MaxInputLength)
	assert.Contains(t, config.AllowedOrigins, "http://localhost:3000")
	assert.Equal(t, 30*time.Second, config.RequestTimeout)
}

func TestValidateInput(t *testing.T) {
	m := NewMiddleware(DefaultConfig())

	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{"video url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", nil},
		{"topic", "ice bucket challenge", nil},
		{"non ascii topic", "dança do verão", nil},
		{"too long", strings.Repeat("a", 513), ErrInputTooLong},
		{"null byte", "test\x00input", ErrInvalidCharacters},
		{"control character", "test\x07input", ErrInvalidCharacters},
		{"invalid utf8", "test\xff\xfeinput", ErrInvalidEncoding},
		{"script tag", "<script>alert('xss')</script>", ErrSuspiciousInput},
		{"javascript url", "javascript:alert(1)", ErrSuspiciousInput},
		{"sql injection", "'; DROP TABLE decisions;", ErrSuspiciousInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateInput(tt.input)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	m := NewMiddleware(DefaultConfig())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"whitespace", "  skibidi   dance \n", "skibidi dance"},
		{"script removed", "trend<script>alert(1)</script>", "trend"},
		{"tags stripped", "<b>bold</b> trend", "bold trend"},
		{"url untouched", "https://youtu.be/dQw4w9WgXcQ", "https://youtu.be/dQw4w9WgXcQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.SanitizeInput(tt.input))
		})
	}
}

func TestCleanInput(t *testing.T) {
	m := NewMiddleware(Config{MaxInputLength: 10})

	cleaned, err := m.CleanInput(" <i>short</i> ")
	require.NoError(t, err)
	assert.Equal(t, "short", cleaned)

	_, err = m.CleanInput("much too long for this")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input validation failed")
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(DefaultConfig())

	r := gin.New()
	r.Use(m.SecurityHeaders)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)

	headers := w.Header()
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))
	assert.Contains(t, headers.Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, headers.Get("Strict-Transport-Security"))
}

func TestValidateContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(DefaultConfig())

	r := gin.New()
	r.Use(m.ValidateContentType)
	r.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	tests := []struct {
		name           string
		contentType    string
		expectedStatus int
	}{
		{"json", "application/json", http.StatusOK},
		{"json with charset", "application/json; charset=utf-8", http.StatusOK},
		{"form", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"plain text", "text/plain", http.StatusUnsupportedMediaType},
		{"no content type", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"input": "x"}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(Config{RequestTimeout: 2 * time.Second})

	var hasDeadline bool
	r := gin.New()
	r.Use(m.RequestTimeout)
	r.GET("/test", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)

	assert.True(t, hasDeadline)
	assert.Equal(t, "2", w.Header().Get("X-Timeout"))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(DefaultConfig())

	r := gin.New()
	r.Use(m.CORS())
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name          string
		origin        string
		expectAllowed bool
	}{
		{"allowed origin", "http://localhost:3000", true},
		{"other origin", "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			r.ServeHTTP(w, req)

			if tt.expectAllowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}
