// Package cache stores recommendation results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// Config holds redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to redis and pings it
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return client, nil
}

// RecommendationCache implements port.RecommendationCache on redis
type RecommendationCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRecommendationCache creates a new cache over client
func NewRecommendationCache(client *redis.Client, logger *zap.Logger) *RecommendationCache {
	return &RecommendationCache{
		client: client,
		logger: logger,
	}
}

// Get returns (nil, nil) on a miss
func (c *RecommendationCache) Get(ctx context.Context, key string) (*entity.RecommendationResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	var result entity.RecommendationResult
	if err := json.Unmarshal(data, &result); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next Set
		c.logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return &result, nil
}

// Set stores result under key for ttl
func (c *RecommendationCache) Set(ctx context.Context, key string, result *entity.RecommendationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Verify interface compliance
var _ port.RecommendationCache = (*RecommendationCache)(nil)
