package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/registry"
)

func TestMemoryKVStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()
	defer store.Close()

	if err := store.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "1" {
		t.Fatalf("Get = %q, want %q", got, "1")
	}

	got[0] = 'x'
	again, _ := store.Get(ctx, "a")
	if string(again) != "1" {
		t.Fatalf("stored value was mutated through returned slice: %q", again)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryKVStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryKVStore()
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := store.Exists(ctx, "k"); !ok {
		t.Fatalf("Exists before expiry = false")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := store.Exists(ctx, "k"); ok {
		t.Fatalf("Exists after expiry = true")
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get after expiry error = %v, want ErrKeyNotFound", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expired entry not dropped, Len = %d", store.Len())
	}
}

func TestMemoryKVStoreBatchSetDeleteClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()

	err := store.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0)
	if err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := store.Exists(ctx, "a"); ok {
		t.Fatalf("deleted key still exists")
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Set(ctx, "c", nil, 0); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("Set after Close error = %v, want ErrStoreClosed", err)
	}
}

func TestFactoryRegistry(t *testing.T) {
	for _, typ := range []string{"memory", "redis", "dynamodb"} {
		if !IsTypeRegistered(typ) {
			t.Errorf("factory %q not registered", typ)
		}
		if _, ok := registry.GetValidator(typ); !ok {
			t.Errorf("validator %q not registered", typ)
		}
	}

	store, err := Create(KVStoreConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Create(memory): %v", err)
	}
	defer store.Close()

	if _, err := Create(KVStoreConfig{Type: "memcached"}); err == nil {
		t.Fatalf("Create(memcached) succeeded, want error")
	}
	if _, err := Create(KVStoreConfig{Type: "redis"}); err == nil {
		t.Fatalf("Create(redis) without endpoints succeeded, want error")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := registry.DefaultInternalConfig().Cache
	cfg.Type = "dynamodb"
	cfg.DynamoDBConfig.Region = "eu-west-1"
	cfg.DynamoDBConfig.TableName = "cache"

	kv := FromConfig(cfg)
	if kv.Type != "dynamodb" || kv.Region != "eu-west-1" || kv.TableName != "cache" {
		t.Fatalf("FromConfig = %+v", kv)
	}
	if kv.DialTimeout != cfg.DialTimeout {
		t.Fatalf("DialTimeout = %v, want %v", kv.DialTimeout, cfg.DialTimeout)
	}
}

func TestConfigValidators(t *testing.T) {
	cfg := registry.DefaultInternalConfig()
	if err := registry.ValidateConfig(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Cache.Type = "redis"
	cfg.Cache.RedisConfig.Endpoints = nil
	if err := registry.ValidateConfig(cfg); err == nil {
		t.Fatalf("redis without endpoints accepted")
	}

	cfg.Cache.Type = "dynamodb"
	if err := registry.ValidateConfig(cfg); err == nil {
		t.Fatalf("dynamodb without region accepted")
	}
	cfg.Cache.DynamoDBConfig.Region = "us-east-1"
	cfg.Cache.DynamoDBConfig.TableName = "ultratable-cache"
	if err := registry.ValidateConfig(cfg); err != nil {
		t.Fatalf("dynamodb config rejected: %v", err)
	}
}
