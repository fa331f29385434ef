package core

import (
	"context"
	"time"
)

// KVStore holds serialized derived values (rollups, aggregates) keyed by
// table revision. Backends: in-process map, Redis, DynamoDB.
type KVStore interface {
	// Get returns the stored bytes. A miss is reported as an error that
	// wraps the backend's not-found sentinel.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// BatchSet writes every item with the same ttl.
	BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error
	Close() error
}
