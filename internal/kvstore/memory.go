package kvstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryKVStore is an in-process core.KVStore. Expired entries are dropped
// lazily on access.
type MemoryKVStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
	now     func() time.Time
}

// NewMemoryKVStore creates an empty in-memory store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryKVStore) entry(value []byte, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}

// Get retrieves a value by key from the store.
func (m *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if e.expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a key-value pair with an optional TTL.
func (m *MemoryKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.entries[key] = m.entry(value, ttl)
	return nil
}

// Delete removes a key from the store.
func (m *MemoryKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.entries, key)
	return nil
}

// Exists checks if a live key exists in the store.
func (m *MemoryKVStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStoreClosed
	}
	e, ok := m.entries[key]
	return ok && !e.expired(m.now()), nil
}

// BatchSet stores multiple key-value pairs under one lock.
func (m *MemoryKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	for key, value := range items {
		m.entries[key] = m.entry(value, ttl)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryKVStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close drops every entry.
func (m *MemoryKVStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}

// MemoryKVStoreFactory creates in-memory stores.
type MemoryKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *MemoryKVStoreFactory) Type() string {
	return "memory"
}

// Validate accepts any memory configuration.
func (f *MemoryKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", config.Type)
	}
	return nil
}

// Create creates a new in-memory store.
func (f *MemoryKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	return NewMemoryKVStore(), nil
}

// MemoryConfigValidator validates the cache section for the memory backend.
type MemoryConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *MemoryConfigValidator) Type() string {
	return "memory"
}

// Validate checks the memory cache configuration.
func (v *MemoryConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Cache.Type != "memory" {
		return fmt.Errorf("invalid type for memory validator: %s", config.Cache.Type)
	}
	if config.Cache.TTL < 0 {
		return fmt.Errorf("ttl must be non-negative, got: %v", config.Cache.TTL)
	}
	return nil
}

func init() {
	RegisterFactory(&MemoryKVStoreFactory{})
	registry.RegisterValidator(&MemoryConfigValidator{})
}
