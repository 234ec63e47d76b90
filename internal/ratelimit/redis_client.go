package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisDisabled is returned by health checks when no Redis is connected
var ErrRedisDisabled = errors.New("redis is disabled")

// RedisOptions configures the shared Redis connection used by the rate
// limiter and the feature store. An empty Addr keeps everything in process.
type RedisOptions struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DefaultRedisOptions leaves Redis disabled
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{PoolSize: 10, DialTimeout: 5 * time.Second}
}

// RedisClient is the process-wide Redis handle. A disabled client is valid
// and makes every consumer fall back to its in-memory backend.
type RedisClient struct {
	client *redis.Client
	addr   string
}

// NewRedisClient connects and pings. A failed ping returns a disabled
// client together with the error.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*RedisClient, error) {
	if opts.Addr == "" {
		slog.Info("Redis not configured, feature store and rate limits stay in process")
		return &RedisClient{}, nil
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultRedisOptions().PoolSize
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultRedisOptions().DialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   2,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     opts.PoolSize,
		MinIdleConns: min(2, opts.PoolSize),
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	start := time.Now()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return &RedisClient{addr: opts.Addr}, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB, "ping_ms", time.Since(start).Milliseconds())

	return &RedisClient{client: client, addr: opts.Addr}, nil
}

// GetClient returns the underlying client, nil when disabled
func (r *RedisClient) GetClient() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}

// IsEnabled reports whether a connection was established
func (r *RedisClient) IsEnabled() bool {
	return r != nil && r.client != nil
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.IsEnabled() {
		return ErrRedisDisabled
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	if !r.IsEnabled() {
		return nil
	}
	return r.client.Close()
}

// GetPoolStats summarises the connection pool for the health endpoint
func (r *RedisClient) GetPoolStats() map[string]interface{} {
	if !r.IsEnabled() {
		return map[string]interface{}{"enabled": false}
	}

	s := r.client.PoolStats()
	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
		"hit_rate":    poolHitRate(s),
		"timeouts":    s.Timeouts,
	}
}

func poolHitRate(s *redis.PoolStats) float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
