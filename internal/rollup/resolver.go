// Package rollup resolves the derived relation columns (rollup, lookup and
// count) against the current state of the linked table. Values are computed
// lazily at read time; an optional cache keyed by table versions avoids
// recomputation until either table changes.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

// Type ids resolved by this package.
const (
	TypeRollup = "rollup"
	TypeLookup = "lookup"
	TypeCount  = "count"
)

var (
	// ErrNotDerived is returned for columns this package does not compute.
	ErrNotDerived = errors.New("column is not a derived relation column")

	// ErrBadWiring is returned when a derived column points at a missing
	// relation column, table or field.
	ErrBadWiring = errors.New("derived column wiring is broken")

	// ErrCycle is returned when derived columns reference each other in a loop.
	ErrCycle = errors.New("derived column cycle")
)

// RowSource is the table layer as seen by the resolver.
type RowSource interface {
	// Schema returns the schema of a table.
	Schema(tableID string) (core.Schema, bool)

	// Ref returns the table's instance epoch and mutation counter.
	Ref(tableID string) TableRef

	// Rows returns the rows with the given ids, in order. Ids that no longer
	// exist are skipped.
	Rows(ctx context.Context, tableID string, ids []string) ([]core.Row, error)

	// Cell returns a row's value for a column, computing derived columns.
	Cell(ctx context.Context, tableID string, row core.Row, columnID string) (core.Value, error)
}

// IsDerived reports whether the type id is resolved by this package.
func IsDerived(typeID string) bool {
	switch typeID {
	case TypeRollup, TypeLookup, TypeCount:
		return true
	}
	return false
}

// Resolver computes derived relation cells.
type Resolver struct {
	registry *registry.Registry
	source   RowSource
	cache    *CacheHandler
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables the read-through cache.
func WithCache(cache *CacheHandler) Option {
	return func(r *Resolver) { r.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver reading linked rows from source.
func NewResolver(reg *registry.Registry, source RowSource, opts ...Option) *Resolver {
	r := &Resolver{registry: reg, source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache handler, or nil when caching is disabled.
func (r *Resolver) Cache() *CacheHandler { return r.cache }

type visitKey struct{ table, row, column string }

type visitedKey struct{}

// Enter records a computed cell on the evaluation path carried by ctx and
// returns ErrCycle when the cell is already on it. Formula evaluation uses
// the same path so mixed formula and rollup loops are caught too.
func Enter(ctx context.Context, tableID, rowID, columnID string) (context.Context, error) {
	k := visitKey{tableID, rowID, columnID}
	seen, _ := ctx.Value(visitedKey{}).(map[visitKey]struct{})
	if _, ok := seen[k]; ok {
		return ctx, fmt.Errorf("%w at %s.%s row %s", ErrCycle, k.table, k.column, k.row)
	}
	next := make(map[visitKey]struct{}, len(seen)+1)
	for v := range seen {
		next[v] = struct{}{}
	}
	next[k] = struct{}{}
	return context.WithValue(ctx, visitedKey{}, next), nil
}

// Resolve computes the value of a derived column for one row of tableID.
func (r *Resolver) Resolve(ctx context.Context, tableID string, col core.Column, row core.Row) (core.Value, error) {
	if !IsDerived(col.Type) {
		return core.Null(), fmt.Errorf("%w: %s", ErrNotDerived, col.Type)
	}
	ctx, err := Enter(ctx, tableID, row.ID, col.ID)
	if err != nil {
		return core.Null(), err
	}

	link, err := r.link(tableID, col)
	if err != nil {
		return core.Null(), err
	}

	compute := func() (core.Value, error) {
		return r.compute(ctx, link, col, row)
	}
	if r.cache == nil || !r.cacheable(link, col) {
		return compute()
	}

	key := r.cache.keyBuilder.BuildKey(col.Type, r.source.Ref(tableID), r.source.Ref(link.target), row.ID, col.ID)
	return r.cache.GetOrCompute(ctx, key, []string{tableID, link.target}, compute)
}

// Warm computes the cache entries of col that are missing for rows and
// writes them in one batch. It returns how many entries were written.
// Columns that are never cached are left alone.
func (r *Resolver) Warm(ctx context.Context, tableID string, col core.Column, rows []core.Row) (int, error) {
	if r.cache == nil || !IsDerived(col.Type) {
		return 0, nil
	}
	link, err := r.link(tableID, col)
	if err != nil || !r.cacheable(link, col) {
		return 0, nil
	}

	source, target := r.source.Ref(tableID), r.source.Ref(link.target)
	missing := make(map[string]core.Value)
	for _, row := range rows {
		key := r.cache.keyBuilder.BuildKey(col.Type, source, target, row.ID, col.ID)
		if _, dup := missing[key]; dup || r.cache.Has(ctx, key) {
			continue
		}
		rowCtx, err := Enter(ctx, tableID, row.ID, col.ID)
		if err != nil {
			return 0, err
		}
		v, err := r.compute(rowCtx, link, col, row)
		if err != nil {
			return 0, err
		}
		missing[key] = v
	}
	if err := r.cache.StoreAll(ctx, missing, []string{tableID, link.target}); err != nil {
		return 0, err
	}
	return len(missing), nil
}

// wiring is a derived column resolved against the schemas.
type wiring struct {
	relation core.Column // relation column in the source table
	target   string      // linked table id
	field    core.Column // read column in the target table; zero for count
}

func (r *Resolver) link(tableID string, col core.Column) (wiring, error) {
	src, ok := r.source.Schema(tableID)
	if !ok {
		return wiring{}, fmt.Errorf("%w: table %q not found", ErrBadWiring, tableID)
	}
	relID := col.Config.String("relationFieldId", "")
	rel, ok := src.Column(relID)
	if !ok || rel.Type != "relation" {
		return wiring{}, fmt.Errorf("%w: %q is not a relation column of %q", ErrBadWiring, relID, tableID)
	}
	w := wiring{relation: rel, target: rel.Config.String("targetTableId", "")}
	tgt, ok := r.source.Schema(w.target)
	if !ok {
		return wiring{}, fmt.Errorf("%w: target table %q not found", ErrBadWiring, w.target)
	}

	var fieldKey string
	switch col.Type {
	case TypeRollup:
		fieldKey = "rollupFieldId"
	case TypeLookup:
		fieldKey = "lookupFieldId"
	default:
		return w, nil
	}
	fieldID := col.Config.String(fieldKey, "")
	field, ok := tgt.Column(fieldID)
	if !ok {
		return wiring{}, fmt.Errorf("%w: %q is not a column of %q", ErrBadWiring, fieldID, w.target)
	}
	w.field = field
	return w, nil
}

// cacheable excludes chains whose result depends on other computed cells,
// so a cached computation never waits on another in-flight one.
func (r *Resolver) cacheable(w wiring, col core.Column) bool {
	return col.Type == TypeCount || !(IsDerived(w.field.Type) || w.field.Type == "formula")
}

func (r *Resolver) compute(ctx context.Context, w wiring, col core.Column, row core.Row) (core.Value, error) {
	ids := schema.ToIDs(row.Get(w.relation.ID))
	linked, err := r.source.Rows(ctx, w.target, ids)
	if err != nil {
		return core.Null(), fmt.Errorf("load linked rows of %s: %w", w.target, err)
	}

	switch col.Type {
	case TypeCount:
		return core.Number(float64(len(linked))), nil
	case TypeLookup:
		if len(linked) == 0 {
			return core.Null(), nil
		}
		return r.source.Cell(ctx, w.target, linked[0], w.field.ID)
	}

	values := make([]core.Value, 0, len(linked))
	for _, lr := range linked {
		v, err := r.source.Cell(ctx, w.target, lr, w.field.ID)
		if err != nil {
			return core.Null(), err
		}
		values = append(values, v)
	}

	def, ok := r.registry.Get(w.field.Type)
	if !ok {
		r.logger.Warn("rollup target has unknown type", "table", w.target, "column", w.field.ID, "type", w.field.Type)
		return core.Null(), nil
	}
	kind := core.AggregationKind(col.Config.String("aggregation", string(core.AggSum)))
	return aggregate.Column(def, values, kind, w.field.Config), nil
}

// Invalidate purges cached values that read the event's table. It is the
// change feed handler for the resolver.
func (r *Resolver) Invalidate(ctx context.Context, event *core.ChangeEvent) error {
	if r.cache == nil || event == nil {
		return nil
	}
	n, err := r.cache.InvalidateTable(ctx, event.Table)
	if n > 0 {
		r.logger.Debug("purged derived values", "table", event.Table, "revision", event.Revision, "keys", n)
	}
	return err
}
