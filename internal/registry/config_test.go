package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// memoryValidator stands in for the kvstore validator, which this package
// cannot import.
type memoryValidator struct{}

func (memoryValidator) Validate(*InternalConfig) error { return nil }
func (memoryValidator) Type() string                   { return "memory" }

func init() {
	RegisterValidator(memoryValidator{})
}

func TestLoadFromYAMLKeepsDefaults(t *testing.T) {
	cm := NewConfigManager()
	data := []byte(`
locale: de
cache:
  ttl: 30s
changefeed:
  drain_rate: 50
registry:
  disabled: [barcode, ip_address]
`)
	if err := cm.LoadFromYAML(data); err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}
	cfg := cm.GetConfig()
	if cfg.Locale != "de" || cfg.Cache.TTL != 30*time.Second || cfg.ChangeFeed.DrainRate != 50 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Cache.Type != "memory" || cfg.ChangeFeed.BatchSize != 100 || !cfg.Registry.Freeze {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if len(cfg.Registry.Disabled) != 2 {
		t.Fatalf("disabled = %v", cfg.Registry.Disabled)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ultratable.json")
	if err := os.WriteFile(path, []byte(`{"cache":{"type":"none"},"logging":{"format":"json"}}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cm := NewConfigManager()
	if err := cm.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cm.GetConfig().CacheEnabled() || cm.GetConfig().Logging.Format != "json" {
		t.Fatalf("json config not applied: %+v", cm.GetConfig())
	}

	if err := cm.LoadFromFile(filepath.Join(dir, "config.toml")); err == nil {
		t.Fatalf("missing file accepted")
	}
	toml := filepath.Join(dir, "config.toml")
	os.WriteFile(toml, []byte("x = 1"), 0o644)
	if err := cm.LoadFromFile(toml); err == nil || !strings.Contains(err.Error(), "unsupported config file format") {
		t.Fatalf("toml accepted: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ULTRATABLE_CACHE_TYPE", "none")
	t.Setenv("ULTRATABLE_CHANGEFEED_DRAIN_RATE", "25")
	t.Setenv("ULTRATABLE_REGISTRY_DISABLED", "vote,button")
	t.Setenv("ULTRATABLE_LOG_LEVEL", "debug")

	cm := NewConfigManager()
	if err := cm.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	cfg := cm.GetConfig()
	if cfg.CacheEnabled() || cfg.ChangeFeed.DrainRate != 25 || cfg.Logging.Level != "debug" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if len(cfg.Registry.Disabled) != 2 || cfg.Registry.Disabled[1] != "button" {
		t.Fatalf("disabled = %v", cfg.Registry.Disabled)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InternalConfig)
		errMsg string
	}{
		{"defaults", func(*InternalConfig) {}, ""},
		{"unknown cache", func(c *InternalConfig) { c.Cache.Type = "memcached" }, "unsupported cache type"},
		{"negative ttl", func(c *InternalConfig) { c.Cache.TTL = -time.Second }, "ttl"},
		{"unknown queue", func(c *InternalConfig) { c.ChangeFeed.QueueType = "sqs" }, "queue_type"},
		{"kafka without topic", func(c *InternalConfig) {
			c.ChangeFeed.QueueType = "kafka"
			c.ChangeFeed.KafkaConfig.Topic = ""
		}, "topic"},
		{"redis without key", func(c *InternalConfig) {
			c.ChangeFeed.QueueType = "redis"
			c.ChangeFeed.RedisKey = ""
		}, "redis_key"},
		{"zero batch", func(c *InternalConfig) { c.ChangeFeed.BatchSize = 0 }, "batch_size"},
		{"postgres", func(c *InternalConfig) { c.RowSource.Driver = "postgres" }, "rowsource.driver"},
		{"driver without dsn", func(c *InternalConfig) { c.RowSource.Driver = "sqlite" }, "dsn"},
		{"log format", func(c *InternalConfig) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultInternalConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("ValidateConfig: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("ValidateConfig err = %v, want mention of %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidatorRegistryPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate validator did not panic")
		}
	}()
	RegisterValidator(memoryValidator{})
}
