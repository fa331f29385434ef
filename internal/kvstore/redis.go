package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/logging"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

// RedisKVStore implements core.KVStore on Redis. It also exposes the list
// operations the Redis change queue is built on.
type RedisKVStore struct {
	client redis.UniversalClient
	closed bool
	logger *slog.Logger
}

// NewRedisKVStore connects to Redis and pings it. With ClusterMode set every
// endpoint is a cluster seed node; otherwise only the first endpoint is used.
func NewRedisKVStore(cfg KVStoreConfig) (*RedisKVStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:         redisAddrs(cfg),
		Password:      cfg.Password,
		DB:            cfg.DB,
		PoolSize:      cfg.PoolSize,
		MinIdleConns:  cfg.MinIdleConns,
		MaxRetries:    cfg.MaxRetries,
		DialTimeout:   cfg.DialTimeout,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		IsClusterMode: cfg.ClusterMode,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %v: %w", cfg.Endpoints, err)
	}

	logger := logging.WithComponent("kvstore").With("backend", "redis")
	logger.Info("connected", "endpoints", cfg.Endpoints, "cluster", cfg.ClusterMode)

	return &RedisKVStore{client: client, logger: logger}, nil
}

// redisAddrs keeps a single address outside cluster mode so the universal
// client builds a plain client rather than a failover or cluster one.
func redisAddrs(cfg KVStoreConfig) []string {
	if cfg.ClusterMode {
		return cfg.Endpoints
	}
	return cfg.Endpoints[:1]
}

// Get retrieves a value by key from the store.
func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		r.logger.Error("get failed", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	r.logger.Debug("get", "key", key, "bytes", len(val))
	return val, nil
}

// Set stores a key-value pair with an optional TTL.
func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed {
		return ErrStoreClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("set failed", "key", key, "error", err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	r.logger.Debug("set", "key", key, "bytes", len(value), "ttl", ttl)
	return nil
}

// Delete removes a key from the store.
func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.closed {
		return ErrStoreClosed
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed {
		return false, ErrStoreClosed
	}
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// BatchSet stores multiple key-value pairs in one pipeline with a shared TTL.
func (r *RedisKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if r.closed {
		return ErrStoreClosed
	}
	if ttl < 0 {
		ttl = 0
	}

	pipe := r.client.Pipeline()
	for key, value := range items {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to batch set keys: %w", err)
	}
	return nil
}

// Close closes the connection to the KV store.
func (r *RedisKVStore) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// ListPush adds a value to the end of a list (RPUSH).
func (r *RedisKVStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.closed {
		return ErrStoreClosed
	}
	return r.client.RPush(ctx, key, value).Err()
}

// ListPop removes and returns the first element of a list (LPOP). It returns
// nil when the list is empty.
func (r *RedisKVStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// ListLength returns the length of a list (LLEN).
func (r *RedisKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed {
		return 0, ErrStoreClosed
	}
	return r.client.LLen(ctx, key).Result()
}

// RedisKVStoreFactory creates Redis stores.
type RedisKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *RedisKVStoreFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", config.Type)
	}
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if config.DB < 0 || config.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", config.DB)
	}
	if config.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", config.PoolSize)
	}
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	return nil
}

// Create creates a new Redis KV store instance.
func (f *RedisKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	store, err := NewRedisKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis KV store: %w", err)
	}
	return store, nil
}

// RedisConfigValidator validates the cache section for the Redis backend.
type RedisConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *RedisConfigValidator) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration in the internal config.
func (v *RedisConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	cache := config.Cache
	if cache.Type != "redis" {
		return fmt.Errorf("invalid type for Redis validator: %s", cache.Type)
	}

	redisConfig := cache.RedisConfig
	if len(redisConfig.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if !redisConfig.ClusterMode && (redisConfig.DB < 0 || redisConfig.DB > 15) {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", redisConfig.DB)
	}
	if redisConfig.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", redisConfig.PoolSize)
	}
	if redisConfig.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", redisConfig.MinIdleConns)
	}
	return validateTimeouts(cache)
}

func init() {
	RegisterFactory(&RedisKVStoreFactory{})
	registry.RegisterValidator(&RedisConfigValidator{})
}
