package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

const (
	backendRedis  = "redis"
	backendMemory = "memory"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin      int `yaml:"ip_limit_per_min"`      // all routes, per client IP
	AnalyzeLimitPerMin int `yaml:"analyze_limit_per_min"` // decision routes, per client IP
	BurstMultiplier    int `yaml:"burst_multiplier"`      // in-memory burst capacity
	MaxFallbackKeys    int `yaml:"max_fallback_keys"`
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:      120,
		AnalyzeLimitPerMin: 20,
		BurstMultiplier:    1,
		MaxFallbackKeys:    10000,
	}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Backend    string
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics
	now          func() time.Time

	fallbackMu       sync.Mutex
	fallbackLimiters map[string]*rate.Limiter
}

// NewRateLimiter creates a rate limiter. A nil or disabled Redis client
// leaves only the in-memory token buckets.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if config.BurstMultiplier < 1 {
		config.BurstMultiplier = 1
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		now:              time.Now,
		fallbackLimiters: make(map[string]*rate.Limiter),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	return rl
}

// AllowIP applies the global per-minute limit for an IP
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("ratelimit:ip:%s", ip), rl.config.IPLimitPerMin, time.Minute)
}

// AllowAnalyze applies the stricter per-minute limit on decision routes
func (rl *RateLimiter) AllowAnalyze(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("ratelimit:analyze:%s", ip), rl.config.AnalyzeLimitPerMin, time.Minute)
}

// Allow checks one key against limit events per period, using Redis when
// healthy and the in-memory buckets otherwise.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if limit <= 0 {
		return &Result{Allowed: true, Limit: limit, Remaining: -1, Backend: backendMemory}, nil
	}

	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit, period)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.RecordFallback("ratelimit", backendMemory)
		}
	}

	return rl.allowFallback(key, limit, period), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    rl.now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
		Backend:    backendRedis,
	}, nil
}

// allowFallback uses a token bucket refilled at limit/period
func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) *Result {
	rl.fallbackMu.Lock()
	limiter, exists := rl.fallbackLimiters[key]
	if !exists {
		if rl.config.MaxFallbackKeys > 0 && len(rl.fallbackLimiters) >= rl.config.MaxFallbackKeys {
			slog.Info("Resetting fallback rate limiters", "count", len(rl.fallbackLimiters))
			rl.fallbackLimiters = make(map[string]*rate.Limiter)
		}
		every := period / time.Duration(limit)
		limiter = rate.NewLimiter(rate.Every(every), limit*rl.config.BurstMultiplier)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMu.Unlock()

	now := rl.now()
	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	allowed := reservation.OK() && delay == 0
	if !allowed {
		reservation.CancelAt(now)
	}

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(period / time.Duration(limit)),
		Backend:   backendMemory,
	}
	if !allowed {
		result.RetryAfter = delay
		result.ResetAt = now.Add(delay)
	}
	return result
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMu.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMu.Unlock()

	return map[string]interface{}{
		"redis_enabled":     rl.redisLimiter != nil,
		"fallback_limiters": fallbackCount,
		"redis_pool":        rl.redisClient.GetPoolStats(),
	}
}
