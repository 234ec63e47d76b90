package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request identifier
const RequestIDHeader = "X-Request-ID"

const slowRequest = 5 * time.Second

// RequestIDMiddleware assigns every request an identifier, reusing a
// well-formed one supplied by the client.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// MonitoringMiddleware records metrics and logs every request
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		entry := RequestLog{
			Method:    c.Request.Method,
			Route:     route,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			RequestID: c.GetString("request_id"),
			Status:    c.Writer.Status(),
			Duration:  time.Since(start),
			Errors:    c.Errors.Errors(),
		}

		metrics.RecordRequest(entry.Method, route, entry.Status, entry.Duration)
		logger.LogRequest(c.Request.Context(), entry)

		if entry.Duration > slowRequest {
			logger.PerformanceLogger("slow_request", entry.Duration.Seconds(), "seconds")
		}
	}
}
