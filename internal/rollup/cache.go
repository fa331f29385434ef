package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/kvstore"
)

// KeyBuilder builds cache keys in the format
// {namespace}:{kind}:{table}@{epoch}.{rev}:{target}@{epoch}.{rev}:{row}:{column}.
// Embedding both versions means a mutation of either table makes every
// older key unreachable. The epoch tells apart table instances that share
// an id, such as a recreated table or one loaded by another process.
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder creates a new key builder.
func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// BuildKey constructs the cache key for one derived cell.
func (kb *KeyBuilder) BuildKey(kind string, source, target TableRef, rowID, columnID string) string {
	parts := []string{
		kind,
		source.String(),
		target.String(),
		rowID,
		columnID,
	}
	key := strings.Join(parts, ":")
	if kb.namespace != "" {
		return kb.namespace + ":" + key
	}
	return key
}

// TableRef pins one instance of a table at a revision.
type TableRef struct {
	ID string
	// Epoch is unique per table instance.
	Epoch    string
	Revision uint64
}

func (r TableRef) String() string {
	return r.ID + "@" + r.Epoch + "." + strconv.FormatUint(r.Revision, 10)
}

// CacheHandler is a read-through cache for derived cells. Concurrent misses
// for one key are collapsed into a single computation.
type CacheHandler struct {
	kvStore    core.KVStore
	keyBuilder *KeyBuilder
	ttl        time.Duration
	group      singleflight.Group
	logger     *slog.Logger

	mu      sync.Mutex
	byTable map[string]map[string]struct{}
}

// NewCacheHandler creates a cache handler over kvStore.
func NewCacheHandler(kvStore core.KVStore, namespace string, ttl time.Duration, logger *slog.Logger) *CacheHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheHandler{
		kvStore:    kvStore,
		keyBuilder: NewKeyBuilder(namespace),
		ttl:        ttl,
		logger:     logger,
		byTable:    make(map[string]map[string]struct{}),
	}
}

// GetOrCompute returns the cached value for key or stores the result of
// compute. Backend failures degrade to computing without the cache.
func (ch *CacheHandler) GetOrCompute(ctx context.Context, key string, tables []string, compute func() (core.Value, error)) (core.Value, error) {
	v, err, shared := ch.group.Do(key, func() (any, error) {
		if data, err := ch.kvStore.Get(ctx, key); err == nil {
			var cached core.Value
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
			ch.logger.Warn("discarding undecodable cache entry", "key", key)
		} else if !errors.Is(err, kvstore.ErrKeyNotFound) {
			ch.logger.Warn("cache read failed", "key", key, "error", err)
		}

		value, err := compute()
		if err != nil {
			return core.Null(), err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return value, nil
		}
		if err := ch.kvStore.Set(ctx, key, data, ch.ttl); err != nil {
			ch.logger.Warn("cache write failed", "key", key, "error", err)
			return value, nil
		}
		ch.track(key, tables)
		return value, nil
	})
	if shared {
		ch.logger.Debug("shared derived computation", "key", key)
	}
	if err != nil {
		return core.Null(), err
	}
	return v.(core.Value), nil
}

// Has reports whether key holds a cached value. Backend failures count as
// a miss.
func (ch *CacheHandler) Has(ctx context.Context, key string) bool {
	ok, err := ch.kvStore.Exists(ctx, key)
	if err != nil {
		ch.logger.Warn("cache lookup failed", "key", key, "error", err)
		return false
	}
	return ok
}

// StoreAll writes values in one batch and tracks every key against tables.
func (ch *CacheHandler) StoreAll(ctx context.Context, values map[string]core.Value, tables []string) error {
	items := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		items[key] = data
	}
	if len(items) == 0 {
		return nil
	}
	if err := ch.kvStore.BatchSet(ctx, items, ch.ttl); err != nil {
		return fmt.Errorf("batch write of %d derived values: %w", len(items), err)
	}
	for key := range items {
		ch.track(key, tables)
	}
	return nil
}

func (ch *CacheHandler) track(key string, tables []string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for _, t := range tables {
		keys, ok := ch.byTable[t]
		if !ok {
			keys = make(map[string]struct{})
			ch.byTable[t] = keys
		}
		keys[key] = struct{}{}
	}
}

// InvalidateTable deletes every tracked key that reads the table and returns
// how many were removed.
func (ch *CacheHandler) InvalidateTable(ctx context.Context, tableID string) (int, error) {
	ch.mu.Lock()
	keys := ch.byTable[tableID]
	delete(ch.byTable, tableID)
	for _, other := range ch.byTable {
		for k := range keys {
			delete(other, k)
		}
	}
	ch.mu.Unlock()

	var errs []error
	for k := range keys {
		if err := ch.kvStore.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", k, err))
		}
	}
	return len(keys), errors.Join(errs...)
}

// Tracked returns the number of keys tracked for a table.
func (ch *CacheHandler) Tracked(tableID string) int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.byTable[tableID])
}
