package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/models"
)

// ResponsePrefix keys hot cache entries as cr:<scope>:<query hash>
const ResponsePrefix = "cr:"

// RedisCache is the hot tier in front of the persisted response cache
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient connects to Redis. It returns nil when Redis is disabled,
// in which case the cache service reads straight from Postgres.
func NewRedisClient(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*RedisCache, error) {
	if !cfg.Redis.Enabled {
		logger.Info("redis hot cache disabled")
		return nil, nil
	}

	c, err := Connect(context.Background(), cfg.Redis, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return c, nil
}

// Connect opens and pings a Redis client outside of fx, for CLI use
func Connect(ctx context.Context, rc config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Password:     rc.Password,
		DB:           rc.Database,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		IdleTimeout:  rc.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", fmt.Sprintf("%s:%d", rc.Host, rc.Port)),
		zap.Int("database", rc.Database))

	return NewRedisCache(client, rc.ResponseCacheTTL, logger), nil
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func responseKey(queryHash, userScope string) string {
	return fmt.Sprintf("%s%s:%s", ResponsePrefix, userScope, queryHash)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetResponse retrieves a cached answer. A miss returns nil, nil.
func (c *RedisCache) GetResponse(ctx context.Context, queryHash, userScope string) (*models.CachedResponse, error) {
	start := time.Now()
	key := responseKey(queryHash, userScope)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			c.logger.Debug("response cache miss",
				zap.String("key", key),
				zap.Duration("duration", time.Since(start)))
			return nil, nil
		}
		c.logger.Error("failed to get response from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to get response from cache: %w", err)
	}

	var entry models.CachedResponse
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("failed to unmarshal response from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}

	c.logger.Debug("response cache hit",
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))

	return &entry, nil
}

// SetResponse stores an answer with the configured TTL, shortened to ttl
// when that is positive and smaller
func (c *RedisCache) SetResponse(ctx context.Context, entry *models.CachedResponse, ttl time.Duration) error {
	key := responseKey(entry.QueryHash, entry.UserScope)
	ttl = c.effectiveTTL(ttl)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cached response: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Error("failed to set response in cache",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("failed to set response in cache: %w", err)
	}

	c.logger.Debug("response cached",
		zap.String("key", key),
		zap.Duration("ttl", ttl))

	return nil
}

func (c *RedisCache) effectiveTTL(limit time.Duration) time.Duration {
	if limit > 0 && (c.ttl <= 0 || limit < c.ttl) {
		return limit
	}
	return c.ttl
}

// InvalidateResponse removes one answer from the hot tier
func (c *RedisCache) InvalidateResponse(ctx context.Context, queryHash, userScope string) error {
	key := responseKey(queryHash, userScope)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("failed to invalidate cached response",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("failed to invalidate cached response: %w", err)
	}

	c.logger.Debug("cached response invalidated", zap.String("key", key))
	return nil
}

// Ping tests the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
