package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/gin-gonic/gin"
)

type checkFunc func(ctx context.Context, ip string) (*Result, error)

// IPRateLimitMiddleware applies the global per-IP limit
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return rl.middleware("X-RateLimit", rl.AllowIP)
}

// AnalyzeRateLimitMiddleware applies the decision route limit
func (rl *RateLimiter) AnalyzeRateLimitMiddleware() gin.HandlerFunc {
	return rl.middleware("X-RateLimit-Analyze", rl.AllowAnalyze)
}

func (rl *RateLimiter) middleware(headerPrefix string, check checkFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := check(c.Request.Context(), ip)
		if err != nil {
			// never block on limiter failure
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header(headerPrefix+"-Limit", strconv.Itoa(result.Limit))
		c.Header(headerPrefix+"-Remaining", strconv.Itoa(result.Remaining))
		c.Header(headerPrefix+"-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock(result.Backend)
			}

			retryAfter := retrySeconds(result.RetryAfter)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			_ = c.Error(apperrors.NewRateLimitError(strconv.Itoa(retryAfter) + "s"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func retrySeconds(d time.Duration) int {
	return int(math.Max(1, math.Ceil(d.Seconds())))
}
