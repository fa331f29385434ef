// Package table holds tables of typed rows and computes every cell through
// the column type registry: stored values, formulas, system fields and the
// relation-derived rollup, lookup and count columns.
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/formula"
	"github.com/rzpsarthak13/ultratable/internal/logging"
	"github.com/rzpsarthak13/ultratable/internal/registry"
	"github.com/rzpsarthak13/ultratable/internal/rollup"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

var (
	// ErrTableNotFound is returned for an unknown table id.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists is returned when a table id is already taken.
	ErrTableExists = errors.New("table already exists")

	// ErrColumnNotFound is returned for an unknown column id or name.
	ErrColumnNotFound = errors.New("column not found")

	// ErrColumnExists is returned when a column id is already taken.
	ErrColumnExists = errors.New("column already exists")

	// ErrRowNotFound is returned for an unknown row id.
	ErrRowNotFound = errors.New("row not found")

	// ErrReadOnly is returned when writing a system-computed column.
	ErrReadOnly = schema.ErrReadOnly

	// ErrUnknownType is returned when a column references an unregistered type.
	ErrUnknownType = schema.ErrUnknownType

	// ErrUnsupported is returned when a column type lacks the capability an
	// operation needs, such as sorting or filtering.
	ErrUnsupported = errors.New("operation not supported by column type")
)

// Workspace is a set of tables that can link to each other.
type Workspace struct {
	registry *registry.Registry
	resolver *rollup.Resolver
	cache    *rollup.CacheHandler
	queue    core.ChangeQueue
	formulas *formula.Cache
	now      func() time.Time
	locale   string
	logger   *slog.Logger

	mu     sync.RWMutex
	tables map[string]*Table
	order  []string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithChangeQueue publishes a change event for every mutation.
func WithChangeQueue(q core.ChangeQueue) Option {
	return func(w *Workspace) { w.queue = q }
}

// WithCache caches derived relation values.
func WithCache(cache *rollup.CacheHandler) Option {
	return func(w *Workspace) { w.cache = cache }
}

// WithClock replaces time.Now for row metadata.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.now = now }
}

// WithLocale sets the locale used to format cells of columns that do not
// configure one.
func WithLocale(locale string) Option {
	return func(w *Workspace) { w.locale = locale }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// NewWorkspace creates an empty workspace whose columns resolve against reg.
func NewWorkspace(reg *registry.Registry, opts ...Option) *Workspace {
	w := &Workspace{
		registry: reg,
		formulas: formula.NewCache(512),
		now:      time.Now,
		logger:   logging.WithComponent("table"),
		tables:   make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(w)
	}

	ropts := []rollup.Option{rollup.WithLogger(w.logger)}
	if w.cache != nil {
		ropts = append(ropts, rollup.WithCache(w.cache))
	}
	w.resolver = rollup.NewResolver(reg, w, ropts...)
	return w
}

// Registry returns the type registry.
func (w *Workspace) Registry() *registry.Registry { return w.registry }

// Resolver returns the derived column resolver. Its Invalidate method is the
// change feed handler that keeps the cache fresh.
func (w *Workspace) Resolver() *rollup.Resolver { return w.resolver }

// CreateTable adds a table with the given schema. Missing table and column
// ids are generated. Columns of unregistered types are accepted so that
// stored workspaces survive a type being disabled; their cells fall back to
// plain text.
func (w *Workspace) CreateTable(ctx context.Context, s core.Schema) (*Table, error) {
	if s.TableID == "" {
		s.TableID = uuid.NewString()
	}
	seen := make(map[string]bool, len(s.Columns))
	cols := make([]core.Column, 0, len(s.Columns))
	for _, col := range s.Columns {
		if col.ID == "" {
			col.ID = uuid.NewString()
		}
		if seen[col.ID] {
			return nil, fmt.Errorf("%w: %s", ErrColumnExists, col.ID)
		}
		seen[col.ID] = true

		def, ok := w.registry.Get(col.Type)
		if !ok {
			w.logger.Warn("column has unknown type", "table", s.TableID, "column", col.ID, "type", col.Type)
			cols = append(cols, col)
			continue
		}
		if col.Name == "" {
			col.Name = def.Meta().Name
		}
		if err := validateConfig(def, col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	s.Columns = cols
	if s.Name == "" {
		s.Name = s.TableID
	}

	t := newTable(w, s)
	w.mu.Lock()
	if _, ok := w.tables[s.TableID]; ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTableExists, s.TableID)
	}
	w.tables[s.TableID] = t
	w.order = append(w.order, s.TableID)
	w.mu.Unlock()

	w.logger.Info("table created", "table", s.TableID, "columns", len(cols))
	w.publish(ctx, &core.ChangeEvent{Table: s.TableID, Op: core.ChangeSchema, Revision: t.Revision()})
	return t, nil
}

// DropTable removes a table. Derived columns elsewhere that point at it
// resolve to the error marker afterwards.
func (w *Workspace) DropTable(ctx context.Context, tableID string) error {
	w.mu.Lock()
	t, ok := w.tables[tableID]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	delete(w.tables, tableID)
	for i, id := range w.order {
		if id == tableID {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.mu.Unlock()

	w.publish(ctx, &core.ChangeEvent{Table: tableID, Op: core.ChangeSchema, Revision: t.Revision() + 1})
	return nil
}

// Table returns a table by id.
func (w *Workspace) Table(tableID string) (*Table, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return t, nil
}

// Tables returns the tables in creation order.
func (w *Workspace) Tables() []*Table {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Table, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.tables[id])
	}
	return out
}

func (w *Workspace) lookup(tableID string) (*Table, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tables[tableID]
	return t, ok
}

// Schema implements rollup.RowSource.
func (w *Workspace) Schema(tableID string) (core.Schema, bool) {
	t, ok := w.lookup(tableID)
	if !ok {
		return core.Schema{}, false
	}
	return t.Schema(), true
}

// Ref implements rollup.RowSource.
func (w *Workspace) Ref(tableID string) rollup.TableRef {
	t, ok := w.lookup(tableID)
	if !ok {
		return rollup.TableRef{ID: tableID}
	}
	return t.Ref()
}

// Rows implements rollup.RowSource.
func (w *Workspace) Rows(_ context.Context, tableID string, ids []string) ([]core.Row, error) {
	t, ok := w.lookup(tableID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return t.rowsByID(ids), nil
}

// Cell implements rollup.RowSource.
func (w *Workspace) Cell(ctx context.Context, tableID string, row core.Row, columnID string) (core.Value, error) {
	t, ok := w.lookup(tableID)
	if !ok {
		return core.Null(), fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	col, ok := t.column(columnID)
	if !ok {
		return core.Null(), fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	return t.compute(ctx, row, col)
}

// publish hands an event to the change queue. The mutation has already been
// applied; a lost event only delays cache purging, since cache keys carry
// table revisions.
func (w *Workspace) publish(ctx context.Context, event *core.ChangeEvent) {
	if w.queue == nil {
		return
	}
	if err := w.queue.Enqueue(ctx, event); err != nil {
		w.logger.Warn("change event dropped", "table", event.Table, "op", event.Op, "revision", event.Revision, "error", err)
	}
}

func validateConfig(def core.Definition, col core.Column) error {
	cv, ok := def.(core.ConfigValidator)
	if !ok {
		return nil
	}
	if err := cv.ValidateConfig(col.Config); err != nil {
		return fmt.Errorf("column %q: %w", col.Name, err)
	}
	return nil
}
