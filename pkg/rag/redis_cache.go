package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCacheConfig holds connection and TTL settings for the optional Redis
// embedding tier.
type RedisCacheConfig struct {
	Address      string        `json:"address"`
	Password     string        `json:"-"`
	Database     int           `json:"database"`
	KeyPrefix    string        `json:"key_prefix"`
	EmbeddingTTL time.Duration `json:"embedding_ttl"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultRedisCacheConfig returns production Redis tier parameters. Embeddings
// are content addressed, so they can live much longer than search results.
func DefaultRedisCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		KeyPrefix:    "legalrag:embedding:",
		EmbeddingTTL: 24 * time.Hour,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisEmbeddingCache is a SecondaryCache backed by Redis, shared between the
// ingest and query processes of one deployment. It holds embeddings only;
// search results and responses stay in process-local memory.
type RedisEmbeddingCache struct {
	client *redis.Client
	config RedisCacheConfig
	logger *slog.Logger
}

// NewRedisEmbeddingCache connects to Redis.
func NewRedisEmbeddingCache(config RedisCacheConfig, logger *slog.Logger) (*RedisEmbeddingCache, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisCacheConfig().KeyPrefix
	}
	if config.EmbeddingTTL == 0 {
		config.EmbeddingTTL = DefaultRedisCacheConfig().EmbeddingTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.Database,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisEmbeddingCache{
		client: client,
		config: config,
		logger: logger.With("component", "redis-embedding-cache"),
	}, nil
}

// Get fetches an embedding by content key. A missing key is (nil, false, nil).
func (rc *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := rc.client.Get(ctx, rc.config.KeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("corrupt embedding entry: %w", err)
	}
	return embedding, true, nil
}

// Set stores an embedding under its content key with the embedding TTL.
func (rc *RedisEmbeddingCache) Set(ctx context.Context, key string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	if err := rc.client.Set(ctx, rc.config.KeyPrefix+key, data, rc.config.EmbeddingTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (rc *RedisEmbeddingCache) Close() error {
	return rc.client.Close()
}
