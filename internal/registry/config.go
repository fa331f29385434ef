package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "ULTRATABLE_"

// ConfigValidator is the Strategy interface for validating configuration.
// Each cache backend (memory, Redis, DynamoDB) provides its own validator.
type ConfigValidator interface {
	// Validate checks the backend-specific part of the configuration.
	Validate(config *InternalConfig) error

	// Type returns the backend identifier (e.g. "redis", "dynamodb").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// ValidationStrategyRegistry provides methods to register and retrieve config validators.
type ValidationStrategyRegistry struct{}

// Register registers a config validator. It is called from each backend's
// init() and panics if the validator is nil, untyped or already registered.
func (r *ValidationStrategyRegistry) Register(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}

	validatorRegistry[validator.Type()] = validator
}

// Get retrieves a validator by type.
func (r *ValidationStrategyRegistry) Get(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// RegisterValidator registers a validator with the default registry.
func RegisterValidator(validator ConfigValidator) {
	defaultValidationRegistry.Register(validator)
}

// GetValidator retrieves a validator from the default registry.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	return defaultValidationRegistry.Get(validatorType)
}

var defaultValidationRegistry = &ValidationStrategyRegistry{}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultInternalConfig(),
	}
}

// DefaultInternalConfig returns an in-process configuration: memory cache,
// memory change queue, no row source.
func DefaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Locale: "en",
		Registry: InternalRegistryConfig{
			Freeze: true,
		},
		Cache: InternalCacheConfig{
			Type:      "memory",
			TTL:       10 * time.Minute,
			KeyPrefix: "ultratable",
			RedisConfig: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 2,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ChangeFeed: InternalChangeFeedConfig{
			QueueType:  "memory",
			BufferSize: 10000,
			BatchSize:  100,
			DrainRate:  500,
			RedisKey:   "ultratable:changefeed",
			KafkaConfig: InternalKafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "ultratable-changes",
				GroupID:         "ultratable-invalidator",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
		RowSource: InternalRowSourceConfig{
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Logging: InternalLoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromEnv overlays ULTRATABLE_* environment variables on the current
// configuration, e.g. ULTRATABLE_CACHE_TYPE=redis or
// ULTRATABLE_CHANGEFEED_KAFKA_BROKERS=a:9092,b:9092.
func (cm *ConfigManager) LoadFromEnv() error {
	config := *cm.config
	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return cm.apply(&config)
}

func (cm *ConfigManager) apply(config *InternalConfig) error {
	if err := ValidateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// CacheEnabled reports whether rollup results are cached.
func (c *InternalConfig) CacheEnabled() bool {
	return c.Cache.Type != "" && c.Cache.Type != "none"
}

// ValidateConfig checks a configuration. Cache backends are validated
// through the registered strategies.
func ValidateConfig(config *InternalConfig) error {
	if config.CacheEnabled() {
		validator, exists := GetValidator(config.Cache.Type)
		if !exists {
			return fmt.Errorf("unsupported cache type: %s", config.Cache.Type)
		}
		if err := validator.Validate(config); err != nil {
			return fmt.Errorf("cache validation failed: %w", err)
		}
		if config.Cache.TTL < 0 {
			return fmt.Errorf("cache.ttl must be non-negative")
		}
	}

	feed := config.ChangeFeed
	switch feed.QueueType {
	case "", "memory", "redis":
	case "kafka":
		if len(feed.KafkaConfig.Brokers) == 0 {
			return fmt.Errorf("kafka_config.brokers is required when queue_type is 'kafka'")
		}
		if feed.KafkaConfig.Topic == "" {
			return fmt.Errorf("kafka_config.topic is required when queue_type is 'kafka'")
		}
	default:
		return fmt.Errorf("changefeed.queue_type must be 'memory', 'redis', or 'kafka'")
	}
	if feed.QueueType == "redis" && feed.RedisKey == "" {
		return fmt.Errorf("changefeed.redis_key is required when queue_type is 'redis'")
	}
	if feed.BatchSize <= 0 {
		return fmt.Errorf("changefeed.batch_size must be greater than 0")
	}
	if feed.DrainRate <= 0 {
		return fmt.Errorf("changefeed.drain_rate must be greater than 0")
	}

	switch config.RowSource.Driver {
	case "", "sqlite", "mysql":
	default:
		return fmt.Errorf("rowsource.driver must be 'sqlite' or 'mysql'")
	}
	if config.RowSource.Driver != "" && config.RowSource.DSN == "" {
		return fmt.Errorf("rowsource.dsn is required when a driver is set")
	}

	switch strings.ToLower(config.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}
	return nil
}
