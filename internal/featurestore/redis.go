package featurestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "trendfall:features:"

// RedisStore shares entries between service replicas
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store whose keys expire after ttl
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Put writes fv with SET NX so a second write for the same id fails
func (s *RedisStore) Put(ctx context.Context, requestID string, fv analysis.FeatureVector) error {
	payload, err := json.Marshal(fv)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+requestID, payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store features: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// Take reads and deletes the entry atomically with GETDEL
func (s *RedisStore) Take(ctx context.Context, requestID string) (analysis.FeatureVector, error) {
	payload, err := s.client.GetDel(ctx, keyPrefix+requestID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}

	var fv analysis.FeatureVector
	if err := json.Unmarshal(payload, &fv); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return fv, nil
}
