package ultratable

import (
	"time"
)

// Config represents the root configuration for an Engine.
type Config struct {
	// Locale selects number grouping and separators, e.g. "en" or "de".
	Locale string `yaml:"locale" json:"locale"`

	// Registry controls which column types are available.
	Registry RegistryConfig `yaml:"registry" json:"registry"`

	// Cache configures the store for rollup, lookup and count results.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// ChangeFeed configures the queue that carries table mutations to the
	// cache invalidator.
	ChangeFeed ChangeFeedConfig `yaml:"changefeed" json:"changefeed"`

	// RowSource optionally points at a SQL database tables are loaded from
	// and saved to.
	RowSource RowSourceConfig `yaml:"rowsource" json:"rowsource"`

	// Logging configures the process-wide structured logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RegistryConfig controls the column type registry.
type RegistryConfig struct {
	// Freeze rejects further registrations once the built-in types and any
	// WithDefinitions types are registered.
	Freeze bool `yaml:"freeze" json:"freeze"`

	// Disabled lists built-in type ids to leave out.
	Disabled []string `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// CacheConfig configures the derived value cache.
type CacheConfig struct {
	// Type is "none", "memory", "redis" or "dynamodb".
	Type string `yaml:"type" json:"type"`

	// TTL is how long a derived value is kept. Zero keeps it until purged.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// KeyPrefix namespaces cache keys: {prefix}:{kind}:{table}@{rev}:...
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// Redis is used when Type is "redis", and by the "redis" change queue.
	Redis RedisConfig `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`

	// DynamoDB is used when Type is "dynamodb".
	DynamoDB DynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`

	// MaxRetries is the maximum number of retries for failed operations.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// DialTimeout is the timeout for establishing connections.
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`

	// ReadTimeout is the timeout for read operations.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// WriteTimeout is the timeout for write operations.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Endpoints is a list of Redis endpoints. Provide every node in cluster mode.
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// ClusterMode indicates whether to use Redis cluster mode.
	ClusterMode bool `yaml:"cluster_mode" json:"cluster_mode"`

	// Password is the authentication password for Redis.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number. Only used in non-cluster mode.
	DB int `yaml:"db" json:"db"`

	// PoolSize is the connection pool size per node.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// MinIdleConns is the minimum number of idle connections in the pool.
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DynamoDBConfig contains DynamoDB settings. The table needs a string
// partition key named "pk".
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// ChangeFeedConfig configures the change queue and its drainer.
type ChangeFeedConfig struct {
	// QueueType is "memory", "redis" or "kafka".
	QueueType string `yaml:"queue_type" json:"queue_type"`

	// BufferSize bounds the in-memory queue.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// BatchSize is how many events the drainer dequeues at once.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// DrainRate is the maximum number of events handled per second.
	DrainRate int `yaml:"drain_rate" json:"drain_rate"`

	// RedisKey is the list used by the "redis" queue.
	RedisKey string `yaml:"redis_key" json:"redis_key"`

	// Kafka is used when QueueType is "kafka".
	Kafka KafkaConfig `yaml:"kafka_config" json:"kafka_config"`
}

// KafkaConfig contains configuration for the Kafka queue.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"` // 0, 1 or -1 for all
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// RowSourceConfig points at a SQL database. An empty Driver disables it.
type RowSourceConfig struct {
	// Driver is "mysql" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn" json:"dsn"`

	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`

	// QueryTimeout bounds every load and save.
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`   // debug, info, warn or error
	Format     string `yaml:"format" json:"format"` // text or json
	OutputPath string `yaml:"output_path" json:"output_path"`
}

// DefaultConfig returns an in-process configuration: built-in types frozen,
// memory cache, memory change queue, no row source.
func DefaultConfig() *Config {
	return &Config{
		Locale:   "en",
		Registry: RegistryConfig{Freeze: true},
		Cache: CacheConfig{
			Type:      "memory",
			TTL:       10 * time.Minute,
			KeyPrefix: "ultratable",
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 2,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ChangeFeed: ChangeFeedConfig{
			QueueType:  "memory",
			BufferSize: 10000,
			BatchSize:  100,
			DrainRate:  500,
			RedisKey:   "ultratable:changefeed",
			Kafka: KafkaConfig{
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
		RowSource: RowSourceConfig{
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
