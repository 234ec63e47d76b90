package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressedRouter(c *Compression) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(c.Handler())
	r.GET("/large", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"data": strings.Repeat("decline ", 500)})
	})
	r.GET("/small", func(ctx *gin.Context) {
		ctx.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	r.GET("/text", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "image/png", []byte(strings.Repeat("x", 4096)))
	})
	return r
}

func TestCompression(t *testing.T) {
	c := NewCompression(DefaultCompressionConfig())
	r := newCompressedRouter(c)

	tests := []struct {
		name           string
		path           string
		acceptEncoding string
		expectedStatus int
		expectGzip     bool
	}{
		{"large json", "/large", "gzip, deflate", http.StatusOK, true},
		{"client without gzip", "/large", "", http.StatusOK, false},
		{"small body", "/small", "gzip", http.StatusCreated, false},
		{"binary content type", "/text", "gzip", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if !tt.expectGzip {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				return
			}

			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			zr, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Contains(t, string(body), "decline decline")
		})
	}

	stats := c.GetStats()
	assert.Equal(t, int64(3), stats["total_requests"])
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 1.0)
}
