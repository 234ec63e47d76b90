// Package middleware holds gin middleware that is not tied to one domain package.
package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      `yaml:"min_size"` // bytes
	CompressionLevel int      `yaml:"level"`    // gzip level 1-9
	ContentTypes     []string `yaml:"content_types"`
}

// DefaultCompressionConfig compresses JSON and text bodies of 1KB or more
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// Compression gzips buffered responses for clients that accept it
type Compression struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompression creates the middleware. An invalid level falls back to
// the gzip default.
func NewCompression(config CompressionConfig) *Compression {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &Compression{
		config: config,
		stats:  NewCompressionStats(),
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// bufferedWriter holds the body until the handler chain returns. Status
// codes still go to the wrapped writer, which defers them until the first write.
type bufferedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

// Handler returns the gin middleware
func (c *Compression) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(ctx.GetHeader("Accept-Encoding"), "gzip") {
			ctx.Next()
			return
		}

		original := ctx.Writer
		bw := &bufferedWriter{ResponseWriter: original}
		ctx.Writer = bw
		defer func() { ctx.Writer = original }()

		ctx.Next()

		body := bw.buf.Bytes()
		if len(body) == 0 {
			// leave the status uncommitted for later middleware
			return
		}
		header := original.Header()
		if len(body) < c.config.MinSize || header.Get("Content-Encoding") != "" || !c.shouldCompress(header.Get("Content-Type")) {
			c.stats.RecordRequest(int64(len(body)), int64(len(body)), false)
			_, _ = original.Write(body)
			return
		}

		var out bytes.Buffer
		gz := c.pool.Get().(*gzip.Writer)
		gz.Reset(&out)
		_, err := gz.Write(body)
		if err == nil {
			err = gz.Close()
		}
		c.pool.Put(gz)
		if err != nil {
			c.stats.RecordRequest(int64(len(body)), int64(len(body)), false)
			_, _ = original.Write(body)
			return
		}

		header.Set("Content-Encoding", "gzip")
		header.Add("Vary", "Accept-Encoding")
		header.Set("Content-Length", strconv.Itoa(out.Len()))
		c.stats.RecordRequest(int64(len(body)), int64(out.Len()), true)
		_, _ = original.Write(out.Bytes())
	}
}

func (c *Compression) shouldCompress(contentType string) bool {
	for _, ct := range c.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// GetStats returns compression statistics
func (c *Compression) GetStats() map[string]interface{} {
	return c.stats.GetStats()
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records one response
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize
	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	} else {
		cs.CompressedBytes += originalSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	ratio := 1.0
	if cs.TotalBytes > 0 {
		ratio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   ratio,
	}
}
