package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/logging"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

// dynamoBatchLimit is the BatchWriteItem request size limit.
const dynamoBatchLimit = 25

// DynamoDBKVStore implements core.KVStore on a DynamoDB table with a string
// partition key "key", a binary "value" attribute and a numeric "ttl"
// attribute (epoch seconds) that is honoured on read.
type DynamoDBKVStore struct {
	client    *dynamodb.Client
	tableName string
	closed    bool
	logger    *slog.Logger
	now       func() time.Time
}

// NewDynamoDBKVStore builds a client for cfg.Region and describes the table
// once so a missing table fails at startup rather than on first read.
func NewDynamoDBKVStore(ctx context.Context, cfg KVStoreConfig) (*DynamoDBKVStore, error) {
	switch {
	case cfg.Region == "":
		return nil, fmt.Errorf("region is required")
	case cfg.TableName == "":
		return nil, fmt.Errorf("table name is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	describeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	table := aws.String(cfg.TableName)
	if _, err := client.DescribeTable(describeCtx, &dynamodb.DescribeTableInput{TableName: table}); err != nil {
		return nil, fmt.Errorf("describe dynamodb table %s: %w", cfg.TableName, err)
	}

	logger := logging.WithComponent("kvstore").With("backend", "dynamodb")
	logger.Info("connected", "table", cfg.TableName, "region", cfg.Region)

	return &DynamoDBKVStore{
		client:    client,
		tableName: cfg.TableName,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (d *DynamoDBKVStore) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoDBKVStore) item(key string, value []byte, ttl time.Duration) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"key":        &types.AttributeValueMemberS{Value: key},
		"value":      &types.AttributeValueMemberB{Value: value},
		"created_at": &types.AttributeValueMemberS{Value: d.now().UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(d.now().Add(ttl).Unix(), 10)}
	}
	return item
}

// expired reports whether the item's ttl attribute lies in the past.
// DynamoDB deletes expired items lazily, so reads must check it.
func (d *DynamoDBKVStore) expired(item map[string]types.AttributeValue) bool {
	attr, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return false
	}
	return d.now().Unix() > ttl
}

// Get retrieves a value by key from the store.
func (d *DynamoDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed {
		return nil, ErrStoreClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		d.logger.Error("get failed", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if result.Item == nil || d.expired(result.Item) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	value, ok := result.Item["value"].(*types.AttributeValueMemberB)
	if !ok {
		d.logger.Warn("value attribute missing or not binary", "key", key)
		return nil, fmt.Errorf("invalid value format for key %s", key)
	}
	d.logger.Debug("get", "key", key, "bytes", len(value.Value))
	return value.Value, nil
}

// Set stores a key-value pair with an optional TTL.
func (d *DynamoDBKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed {
		return ErrStoreClosed
	}

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      d.item(key, value, ttl),
	})
	if err != nil {
		d.logger.Error("set failed", "key", key, "error", err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	d.logger.Debug("set", "key", key, "bytes", len(value), "ttl", ttl)
	return nil
}

// Delete removes a key from the store.
func (d *DynamoDBKVStore) Delete(ctx context.Context, key string) error {
	if d.closed {
		return ErrStoreClosed
	}

	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a live key exists in the store.
func (d *DynamoDBKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed {
		return false, ErrStoreClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      d.keyAttr(key),
		ProjectionExpression:     aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{"#k": "key", "#t": "ttl"},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return result.Item != nil && !d.expired(result.Item), nil
}

// BatchSet stores multiple key-value pairs with a shared TTL. DynamoDB has no
// atomic multi-item put here; items are written in chunks of 25.
func (d *DynamoDBKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if d.closed {
		return ErrStoreClosed
	}
	if len(items) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for key, value := range items {
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: d.item(key, value, ttl)},
		})
	}

	for start := 0; start < len(requests); start += dynamoBatchLimit {
		end := min(start+dynamoBatchLimit, len(requests))
		_, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				d.tableName: requests[start:end],
			},
		})
		if err != nil {
			return fmt.Errorf("failed to batch set keys: %w", err)
		}
	}
	return nil
}

// Close marks the store closed. The SDK client holds no connection to release.
func (d *DynamoDBKVStore) Close() error {
	d.closed = true
	return nil
}

// DynamoDBKVStoreFactory creates DynamoDB stores.
type DynamoDBKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBKVStoreFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", config.Type)
	}
	if config.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

// Create creates a new DynamoDB KV store instance.
func (f *DynamoDBKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	store, err := NewDynamoDBKVStore(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB KV store: %w", err)
	}
	return store, nil
}

// DynamoDBConfigValidator validates the cache section for the DynamoDB backend.
type DynamoDBConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *DynamoDBConfigValidator) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration in the internal config.
func (v *DynamoDBConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	cache := config.Cache
	if cache.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB validator: %s", cache.Type)
	}
	if cache.DynamoDBConfig.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if cache.DynamoDBConfig.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return validateTimeouts(cache)
}

func init() {
	RegisterFactory(&DynamoDBKVStoreFactory{})
	registry.RegisterValidator(&DynamoDBConfigValidator{})
}
