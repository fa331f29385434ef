package kvstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

var (
	// ErrKeyNotFound is returned by Get when the key is absent or expired.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("KV store is closed")
)

// KVStoreFactory is the Strategy interface for creating cache backends.
// Each backend (memory, Redis, DynamoDB) implements it and registers itself
// from init().
type KVStoreFactory interface {
	// Create creates a new KV store instance based on the provided configuration.
	Create(config KVStoreConfig) (core.KVStore, error)

	// Type returns the type identifier for this factory (e.g., "redis", "dynamodb").
	Type() string

	// Validate validates the configuration specific to this KV store type.
	Validate(config KVStoreConfig) error
}

// KVStoreConfig is the flattened backend configuration handed to factories.
type KVStoreConfig struct {
	Type         string
	Endpoints    []string
	ClusterMode  bool
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DynamoDB-specific fields
	Region          string
	TableName       string
	Endpoint        string // optional, for LocalStack
	AccessKeyID     string // optional, IAM role otherwise
	SecretAccessKey string
}

// FromConfig flattens the cache section of the engine configuration.
func FromConfig(cfg registry.InternalCacheConfig) KVStoreConfig {
	return KVStoreConfig{
		Type:            cfg.Type,
		Endpoints:       cfg.RedisConfig.Endpoints,
		ClusterMode:     cfg.RedisConfig.ClusterMode,
		Password:        cfg.RedisConfig.Password,
		DB:              cfg.RedisConfig.DB,
		MaxRetries:      cfg.MaxRetries,
		PoolSize:        cfg.RedisConfig.PoolSize,
		MinIdleConns:    cfg.RedisConfig.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		Region:          cfg.DynamoDBConfig.Region,
		TableName:       cfg.DynamoDBConfig.TableName,
		Endpoint:        cfg.DynamoDBConfig.Endpoint,
		AccessKeyID:     cfg.DynamoDBConfig.AccessKeyID,
		SecretAccessKey: cfg.DynamoDBConfig.SecretAccessKey,
	}
}

var (
	factoryRegistry = make(map[string]KVStoreFactory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a KV store factory. It panics on a nil factory,
// an empty type or a duplicate registration.
func RegisterFactory(factory KVStoreFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Create creates a KV store using the factory registered for config.Type.
func Create(config KVStoreConfig) (core.KVStore, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("kvstore type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported KV store type: %s", config.Type)
	}

	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}

	return factory.Create(config)
}

// GetRegisteredTypes returns the registered backend types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a KV store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}

// validateTimeouts checks the timeouts shared by the network backends.
func validateTimeouts(cfg registry.InternalCacheConfig) error {
	if cfg.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", cfg.DialTimeout)
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", cfg.WriteTimeout)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", cfg.MaxRetries)
	}
	return nil
}
