package table

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/rollup"
)

// SortKey orders rows by one column.
type SortKey struct {
	Column     string `json:"column" yaml:"column"`
	Descending bool   `json:"descending,omitempty" yaml:"descending,omitempty"`
}

// Condition is one filter clause.
type Condition struct {
	Column   string              `json:"column"`
	Operator core.FilterOperator `json:"operator"`
	Value    core.Value          `json:"value"`
}

// Group is the set of rows sharing one value of a column.
type Group struct {
	Key   core.Value
	Label string
	Rows  []core.Row
}

// summaryConcurrency bounds the columns summarised in parallel.
const summaryConcurrency = 8

// Sort returns rows ordered by keys, first key most significant. The sort is
// stable and empty values stay last in both directions.
func (t *Table) Sort(ctx context.Context, rows []core.Row, keys ...SortKey) ([]core.Row, error) {
	type sortCol struct {
		col    core.Column
		sorter core.Sorter
		desc   bool
	}
	cols := make([]sortCol, 0, len(keys))
	for _, k := range keys {
		col, err := t.Column(k.Column)
		if err != nil {
			return nil, err
		}
		def, _ := t.definition(col)
		s, ok := def.(core.Sorter)
		if !ok {
			return nil, fmt.Errorf("%w: sort by %s (%s)", ErrUnsupported, col.Name, col.Type)
		}
		cols = append(cols, sortCol{col: col, sorter: s, desc: k.Descending})
	}

	values := make([][]core.Value, len(rows))
	for i, r := range rows {
		values[i] = make([]core.Value, len(cols))
		for j, c := range cols {
			v, err := t.compute(ctx, r, c.col)
			if err != nil {
				return nil, err
			}
			values[i][j] = v
		}
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := values[order[a]], values[order[b]]
		for j, c := range cols {
			cmp := c.sorter.Compare(va[j], vb[j], c.col.Config)
			if c.desc && !va[j].IsEmpty() && !vb[j].IsEmpty() {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	out := make([]core.Row, len(rows))
	for i, idx := range order {
		out[i] = rows[idx]
	}
	return out, nil
}

// Filter returns the rows matching every condition.
func (t *Table) Filter(ctx context.Context, rows []core.Row, conds ...Condition) ([]core.Row, error) {
	out := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		keep := true
		for _, c := range conds {
			ok, err := t.Match(ctx, r, c)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out, nil
}

// Match evaluates one condition against a row. Operators a type does not
// list pass every row.
func (t *Table) Match(ctx context.Context, row core.Row, c Condition) (bool, error) {
	col, err := t.Column(c.Column)
	if err != nil {
		return false, err
	}
	def, _ := t.definition(col)
	f, ok := def.(core.Filterer)
	if !ok {
		return false, fmt.Errorf("%w: filter on %s (%s)", ErrUnsupported, col.Name, col.Type)
	}
	v, err := t.compute(ctx, row, col)
	if err != nil {
		return false, err
	}
	return f.Filter(v, c.Value, c.Operator, col.Config), nil
}

// Aggregate summarises a column over every row.
func (t *Table) Aggregate(ctx context.Context, columnRef string, kind core.AggregationKind) (core.Value, error) {
	return t.AggregateRows(ctx, t.Rows(), columnRef, kind)
}

// AggregateRows summarises a column over rows. Kinds the type does not
// support, and columns of unregistered types, yield null.
func (t *Table) AggregateRows(ctx context.Context, rows []core.Row, columnRef string, kind core.AggregationKind) (core.Value, error) {
	col, err := t.Column(columnRef)
	if err != nil {
		return core.Null(), err
	}
	def, ok := t.definition(col)
	if !ok {
		return core.Null(), nil
	}
	t.warm(ctx, col, rows)
	values := make([]core.Value, 0, len(rows))
	for _, r := range rows {
		v, err := t.compute(ctx, r, col)
		if err != nil {
			return core.Null(), err
		}
		values = append(values, v)
	}
	return aggregate.Column(def, values, kind, col.Config), nil
}

// Summaries computes the footer row: one aggregation per column, keyed by
// column id, evaluated concurrently.
func (t *Table) Summaries(ctx context.Context, rows []core.Row, kinds map[string]core.AggregationKind) (map[string]core.Value, error) {
	var mu sync.Mutex
	out := make(map[string]core.Value, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for ref, kind := range kinds {
		ref, kind := ref, kind
		g.Go(func() error {
			col, err := t.Column(ref)
			if err != nil {
				return err
			}
			v, err := t.AggregateRows(gctx, rows, col.ID, kind)
			if err != nil {
				return fmt.Errorf("summarise %s: %w", col.Name, err)
			}
			mu.Lock()
			out[col.ID] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// warm fills the cache for a derived column before a pass over many rows.
// Failures only cost the batch; each cell still resolves on its own.
func (t *Table) warm(ctx context.Context, col core.Column, rows []core.Row) {
	if !rollup.IsDerived(col.Type) {
		return
	}
	n, err := t.ws.resolver.Warm(ctx, t.ID(), col, rows)
	if err != nil {
		t.logger.Warn("warming derived column failed", "column", col.ID, "error", err)
		return
	}
	if n > 0 {
		t.logger.Debug("warmed derived column", "column", col.ID, "values", n)
	}
}

// GroupBy partitions rows by a column's value. Groups follow the column's
// sort order when the type has one, otherwise first appearance; the empty
// group comes last.
func (t *Table) GroupBy(ctx context.Context, rows []core.Row, columnRef string) ([]Group, error) {
	col, err := t.Column(columnRef)
	if err != nil {
		return nil, err
	}
	t.warm(ctx, col, rows)
	var groups []*Group
	byKey := make(map[string]*Group)
	for _, r := range rows {
		v, err := t.compute(ctx, r, col)
		if err != nil {
			return nil, err
		}
		key := v.String()
		if v.IsEmpty() {
			key = ""
		}
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: v, Label: t.format(col, v)}
			if v.IsEmpty() {
				g.Key = core.Null()
			}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.Rows = append(g.Rows, r)
	}

	def, _ := t.definition(col)
	s, sortable := def.(core.Sorter)
	sort.SliceStable(groups, func(a, b int) bool {
		ka, kb := groups[a].Key, groups[b].Key
		if ka.IsEmpty() || kb.IsEmpty() {
			return !ka.IsEmpty() && kb.IsEmpty()
		}
		return sortable && s.Compare(ka, kb, col.Config) < 0
	})

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out, nil
}

// AutoFill continues the sequence started at the seed row into the target
// rows, in order, and returns the written values.
func (t *Table) AutoFill(ctx context.Context, columnRef, seedRowID string, targets []string, dir core.FillDirection, actor string) ([]core.Value, error) {
	col, err := t.Column(columnRef)
	if err != nil {
		return nil, err
	}
	def, _ := t.definition(col)
	filler, ok := def.(core.AutoFiller)
	if !ok {
		return nil, fmt.Errorf("%w: auto-fill %s (%s)", ErrUnsupported, col.Name, col.Type)
	}
	current, err := t.Cell(ctx, seedRowID, col.ID)
	if err != nil {
		return nil, err
	}

	out := make([]core.Value, 0, len(targets))
	for _, id := range targets {
		current = filler.AutoFillNext(current, dir, col.Config)
		if err := t.SetCell(ctx, id, col.ID, current, actor); err != nil {
			return out, err
		}
		out = append(out, current)
	}
	return out, nil
}
