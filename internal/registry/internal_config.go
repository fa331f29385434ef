package registry

import (
	"time"
)

// InternalConfig is the engine configuration. It is a copy of the public
// Config type to avoid import cycles. Environment variables are read with the
// ULTRATABLE_ prefix plus the envPrefix chain, e.g. ULTRATABLE_CACHE_TYPE.
type InternalConfig struct {
	Locale     string                   `yaml:"locale" json:"locale" env:"LOCALE"`
	Registry   InternalRegistryConfig   `yaml:"registry" json:"registry" envPrefix:"REGISTRY_"`
	Cache      InternalCacheConfig      `yaml:"cache" json:"cache" envPrefix:"CACHE_"`
	ChangeFeed InternalChangeFeedConfig `yaml:"changefeed" json:"changefeed" envPrefix:"CHANGEFEED_"`
	RowSource  InternalRowSourceConfig  `yaml:"rowsource" json:"rowsource" envPrefix:"ROWSOURCE_"`
	Logging    InternalLoggingConfig    `yaml:"logging" json:"logging" envPrefix:"LOG_"`
}

// InternalRegistryConfig controls the column type registry.
type InternalRegistryConfig struct {
	// Freeze freezes the registry once the built-in types are registered.
	Freeze bool `yaml:"freeze" json:"freeze" env:"FREEZE"`

	// Disabled lists built-in type ids that are not registered.
	Disabled []string `yaml:"disabled,omitempty" json:"disabled,omitempty" env:"DISABLED" envSeparator:","`
}

// InternalCacheConfig configures the rollup/lookup result cache.
// Type "none" disables caching.
type InternalCacheConfig struct {
	Type           string                 `yaml:"type" json:"type" env:"TYPE"`
	TTL            time.Duration          `yaml:"ttl" json:"ttl" env:"TTL"`
	KeyPrefix      string                 `yaml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX"`
	RedisConfig    InternalRedisConfig    `yaml:"redis_config,omitempty" json:"redis_config,omitempty" envPrefix:"REDIS_"`
	DynamoDBConfig InternalDynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty" envPrefix:"DYNAMODB_"`
	MaxRetries     int                    `yaml:"max_retries,omitempty" json:"max_retries,omitempty" env:"MAX_RETRIES"`
	DialTimeout    time.Duration          `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty" env:"DIAL_TIMEOUT"`
	ReadTimeout    time.Duration          `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration          `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty" env:"WRITE_TIMEOUT"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints" env:"ENDPOINTS" envSeparator:","`
	ClusterMode  bool     `yaml:"cluster_mode" json:"cluster_mode" env:"CLUSTER_MODE"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty" env:"PASSWORD"`
	DB           int      `yaml:"db" json:"db" env:"DB"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region" env:"REGION"`
	TableName       string `yaml:"table_name" json:"table_name" env:"TABLE_NAME"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" env:"ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty" env:"SECRET_ACCESS_KEY"`
}

// InternalChangeFeedConfig configures the mutation event queue and its drainer.
type InternalChangeFeedConfig struct {
	QueueType   string              `yaml:"queue_type" json:"queue_type" env:"QUEUE_TYPE"`
	BufferSize  int                 `yaml:"buffer_size" json:"buffer_size" env:"BUFFER_SIZE"`
	BatchSize   int                 `yaml:"batch_size" json:"batch_size" env:"BATCH_SIZE"`
	DrainRate   int                 `yaml:"drain_rate" json:"drain_rate" env:"DRAIN_RATE"` // events per second
	RedisKey    string              `yaml:"redis_key" json:"redis_key" env:"REDIS_KEY"`
	KafkaConfig InternalKafkaConfig `yaml:"kafka_config" json:"kafka_config" envPrefix:"KAFKA_"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers" env:"BROKERS" envSeparator:","`
	Topic           string        `yaml:"topic" json:"topic" env:"TOPIC"`
	GroupID         string        `yaml:"group_id" json:"group_id" env:"GROUP_ID"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size" env:"BATCH_SIZE"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout" env:"BATCH_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks" env:"REQUIRED_ACKS"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes" env:"MAX_MESSAGE_BYTES"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes" env:"MIN_BYTES"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes" env:"MAX_BYTES"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait" env:"MAX_WAIT"`
}

// InternalRowSourceConfig points at the database rows are loaded from.
type InternalRowSourceConfig struct {
	Driver          string        `yaml:"driver" json:"driver" env:"DRIVER"`
	DSN             string        `yaml:"dsn" json:"dsn" env:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" json:"query_timeout" env:"QUERY_TIMEOUT"`
}

// InternalLoggingConfig configures the slog handler.
type InternalLoggingConfig struct {
	Level      string `yaml:"level" json:"level" env:"LEVEL"`
	Format     string `yaml:"format" json:"format" env:"FORMAT"`
	OutputPath string `yaml:"output_path" json:"output_path" env:"OUTPUT"`
}
