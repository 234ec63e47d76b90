// Package security holds the HTTP hardening middleware and input checks
// shared by every route.
package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Config holds security configuration
type Config struct {
	MaxInputLength int           `yaml:"max_input_length"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	EnableHSTS     bool          `yaml:"enable_hsts"`
}

// DefaultConfig returns secure defaults
func DefaultConfig() Config {
	return Config{
		MaxInputLength: 512,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 30 * time.Second,
	}
}

var (
	ErrInputTooLong      = errors.New("input exceeds maximum length")
	ErrInvalidCharacters = errors.New("input contains invalid characters")
	ErrInvalidEncoding   = errors.New("input contains invalid UTF-8 encoding")
	ErrSuspiciousInput   = errors.New("input contains suspicious patterns")
)

var (
	suspiciousPattern = regexp.MustCompile(`(?i)<\s*script|javascript:|<[a-z][^>]*\son\w+\s*=|union\s+select|drop\s+table`)
	scriptPattern     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	spacePattern      = regexp.MustCompile(`\s+`)
)

// Middleware provides the hardening handlers
type Middleware struct {
	config Config
}

// NewMiddleware creates a new security middleware instance
func NewMiddleware(config Config) *Middleware {
	if config.MaxInputLength <= 0 {
		config.MaxInputLength = DefaultConfig().MaxInputLength
	}
	return &Middleware{config: config}
}

// ValidateInput rejects inputs that cannot be a URL, video id or topic
func (m *Middleware) ValidateInput(input string) error {
	if len(input) > m.config.MaxInputLength {
		return fmt.Errorf("%w of %d bytes", ErrInputTooLong, m.config.MaxInputLength)
	}
	if !utf8.ValidString(input) {
		return ErrInvalidEncoding
	}
	for _, r := range input {
		if r == 0 || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return ErrInvalidCharacters
		}
	}
	if suspiciousPattern.MatchString(input) {
		return ErrSuspiciousInput
	}
	return nil
}

// SanitizeInput strips markup and collapses whitespace
func (m *Middleware) SanitizeInput(input string) string {
	input = scriptPattern.ReplaceAllString(input, "")
	input = tagPattern.ReplaceAllString(input, "")
	input = spacePattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// CleanInput sanitizes then validates, returning a validation AppError
func (m *Middleware) CleanInput(input string) (string, error) {
	cleaned := m.SanitizeInput(input)
	if err := m.ValidateInput(cleaned); err != nil {
		return "", apperrors.NewValidationError("input validation failed", err.Error())
	}
	return cleaned, nil
}

// SecurityHeaders adds security headers to responses
func (m *Middleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
	c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	if m.config.EnableHSTS || c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
	c.Next()
}

// ValidateContentType only lets JSON bodies through
func (m *Middleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
			"error": "unsupported content type",
		})
		return
	}
	c.Next()
}

// RequestTimeout bounds the request context
func (m *Middleware) RequestTimeout(c *gin.Context) {
	if m.config.RequestTimeout <= 0 {
		c.Next()
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), m.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(m.config.RequestTimeout.Seconds())))
	c.Next()
}

// CORS builds the cross-origin handler for the configured origins
func (m *Middleware) CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(m.config.AllowedOrigins) == 0 || slices.Contains(m.config.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = m.config.AllowedOrigins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	cfg.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
