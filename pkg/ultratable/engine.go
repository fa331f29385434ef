// Package ultratable is the public entry point of the column type engine.
// An Engine owns the type registry, the derived value cache, the change feed
// and a workspace of tables.
//
// Typical usage:
//
//	engine, _ := ultratable.New(ultratable.DefaultConfig())
//	defer engine.Close()
//
//	engine.Start(ctx) // background cache invalidation
//	tbl, _ := engine.Workspace().CreateTable(ctx, schema)
//	tbl.Insert(ctx, cells, "alice")
package ultratable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/ultratable/internal/changefeed"
	"github.com/rzpsarthak13/ultratable/internal/coltype"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/kvstore"
	"github.com/rzpsarthak13/ultratable/internal/logging"
	"github.com/rzpsarthak13/ultratable/internal/registry"
	"github.com/rzpsarthak13/ultratable/internal/rollup"
	"github.com/rzpsarthak13/ultratable/internal/rowsource"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("engine is closed")

	// ErrNoRowSource is returned by RowSource when none is configured.
	ErrNoRowSource = errors.New("row source not configured")
)

// Option customises engine construction.
type Option func(*options)

type options struct {
	definitions []core.Definition
	handlers    []changefeed.Handler
	tableOpts   []table.Option
	logLevel    string
}

// WithDefinitions registers additional column types before the registry is
// frozen. A definition reusing a built-in id replaces it.
func WithDefinitions(defs ...core.Definition) Option {
	return func(o *options) { o.definitions = append(o.definitions, defs...) }
}

// WithHandler adds a change feed handler next to cache invalidation.
func WithHandler(h changefeed.Handler) Option {
	return func(o *options) { o.handlers = append(o.handlers, h) }
}

// WithLogLevel overrides the configured log level.
func WithLogLevel(level string) Option {
	return func(o *options) { o.logLevel = level }
}

// WithTableOptions passes options through to the workspace.
func WithTableOptions(opts ...table.Option) Option {
	return func(o *options) { o.tableOpts = append(o.tableOpts, opts...) }
}

// Engine wires the registry, cache, change feed and workspace together.
type Engine struct {
	mu        sync.RWMutex
	config    *registry.InternalConfig
	registry  *registry.Registry
	kvStore   core.KVStore
	lists     core.KVStore // separate Redis connection for the change queue
	queue     core.ChangeQueue
	drainer   *changefeed.Drainer
	workspace *table.Workspace
	source    *rowsource.Source
	logger    *slog.Logger
	started   bool
	closed    bool
}

// New creates an engine from config. The configuration is validated the
// same way as a configuration file.
func New(config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	cm := registry.NewConfigManager()
	if err := cm.LoadFromYAML(data); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newEngine(cm.GetConfig(), opts...)
}

// Open creates an engine from a YAML or JSON file overlaid with ULTRATABLE_*
// environment variables. An empty path uses the defaults.
func Open(path string, opts ...Option) (*Engine, error) {
	cm := registry.NewConfigManager()
	if path != "" {
		if err := cm.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cm.LoadFromEnv(); err != nil {
		return nil, err
	}
	return newEngine(cm.GetConfig(), opts...)
}

func newEngine(cfg *registry.InternalConfig, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	e := &Engine{config: cfg, logger: logging.WithComponent("engine")}

	reg, err := e.buildRegistry(o.definitions)
	if err != nil {
		return nil, err
	}
	e.registry = reg

	if err := e.initializeConnections(); err != nil {
		e.closeConnections()
		return nil, fmt.Errorf("failed to initialize connections: %w", err)
	}

	tableOpts := []table.Option{table.WithChangeQueue(e.queue), table.WithLocale(cfg.Locale)}
	if e.kvStore != nil {
		cache := rollup.NewCacheHandler(e.kvStore, cfg.Cache.KeyPrefix, cfg.Cache.TTL, logging.WithComponent("cache"))
		tableOpts = append(tableOpts, table.WithCache(cache))
	}
	e.workspace = table.NewWorkspace(reg, append(tableOpts, o.tableOpts...)...)

	handlers := append([]changefeed.Handler{
		e.workspace.Resolver().Invalidate,
		changefeed.LogHandler(logging.WithComponent("changefeed")),
	}, o.handlers...)
	e.drainer = changefeed.NewDrainer(e.queue, changefeed.DrainerConfig{
		DrainRate: cfg.ChangeFeed.DrainRate,
		BatchSize: cfg.ChangeFeed.BatchSize,
	}, handlers...)

	e.logger.Info("engine ready",
		"types", reg.Count(),
		"cache", cfg.Cache.Type,
		"queue", cfg.ChangeFeed.QueueType,
		"rowsource", cfg.RowSource.Driver)
	return e, nil
}

func (e *Engine) buildRegistry(extra []core.Definition) (*registry.Registry, error) {
	lifecycle := registry.NewLifecycleManager()
	lifecycle.RegisterHook(registry.LifecycleHookFunc{
		OnRegisterFunc: func(meta core.Meta, replaced bool) error {
			if replaced {
				e.logger.Info("column type replaced", "type", meta.ID)
			}
			return nil
		},
		OnFreezeFunc: func(count int) error {
			e.logger.Debug("registry frozen", "types", count)
			return nil
		},
	})
	reg := registry.New(lifecycle)
	if err := coltype.RegisterBuiltins(reg, e.config.Registry.Disabled...); err != nil {
		return nil, err
	}
	for _, def := range extra {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	if e.config.Registry.Freeze {
		if err := reg.Freeze(); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// initializeConnections opens the cache backend, the change queue and the
// row source.
func (e *Engine) initializeConnections() error {
	cfg := e.config

	if cfg.CacheEnabled() {
		kv, err := kvstore.Create(kvstore.FromConfig(cfg.Cache))
		if err != nil {
			return fmt.Errorf("failed to create KV store: %w", err)
		}
		e.kvStore = kv
	}

	var lists changefeed.ListOperations
	if cfg.ChangeFeed.QueueType == "redis" {
		if ops, ok := e.kvStore.(changefeed.ListOperations); ok {
			lists = ops
		} else {
			redisCfg := kvstore.FromConfig(cfg.Cache)
			redisCfg.Type = "redis"
			kv, err := kvstore.Create(redisCfg)
			if err != nil {
				return fmt.Errorf("failed to connect change queue to Redis: %w", err)
			}
			e.lists = kv
			lists, _ = kv.(changefeed.ListOperations)
		}
	}
	queue, err := changefeed.New(cfg.ChangeFeed, lists)
	if err != nil {
		return fmt.Errorf("failed to create change queue: %w", err)
	}
	e.queue = queue

	if cfg.RowSource.Driver != "" {
		src, err := rowsource.Open(cfg.RowSource, e.registry)
		if err != nil {
			return err
		}
		e.source = src
	}
	return nil
}

// Registry returns the column type registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Workspace returns the engine's workspace.
func (e *Engine) Workspace() *table.Workspace { return e.workspace }

// Drainer returns the change feed drainer, for monitoring.
func (e *Engine) Drainer() *changefeed.Drainer { return e.drainer }

// RowSource returns the configured SQL row source.
func (e *Engine) RowSource() (*rowsource.Source, error) {
	if e.source == nil {
		return nil, ErrNoRowSource
	}
	return e.source, nil
}

// Start starts background cache invalidation. It is non-blocking.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	if err := e.drainer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start drainer: %w", err)
	}
	e.started = true
	return nil
}

// Stop stops the drainer and handles the events still queued.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	if err := e.drainer.Stop(); err != nil {
		return fmt.Errorf("failed to stop drainer: %w", err)
	}
	e.started = false
	return e.drainer.Flush(context.Background())
}

// IsRunning returns whether background invalidation is running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

// Close stops the engine and releases every connection.
func (e *Engine) Close() error {
	if err := e.Stop(); err != nil {
		e.logger.Warn("error stopping drainer", "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.closeConnections()
}

func (e *Engine) closeConnections() error {
	var errs []error
	if e.queue != nil {
		errs = append(errs, e.queue.Close())
	}
	if e.kvStore != nil {
		errs = append(errs, e.kvStore.Close())
	}
	if e.lists != nil {
		errs = append(errs, e.lists.Close())
	}
	if e.source != nil {
		errs = append(errs, e.source.Close())
	}
	return errors.Join(errs...)
}
