// Package aggregate implements the column reducers behind the summary bar
// and rollup columns.
package aggregate

import (
	"math"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

// CountKinds are meaningful for every column type.
var CountKinds = []core.AggregationKind{
	core.AggCount,
	core.AggCountUnique,
	core.AggCountEmpty,
	core.AggCountNotEmpty,
	core.AggPercentEmpty,
	core.AggPercentNotEmpty,
}

// NumericKinds adds the arithmetic reducers to CountKinds.
var NumericKinds = append([]core.AggregationKind{
	core.AggSum,
	core.AggAvg,
	core.AggMin,
	core.AggMax,
}, CountKinds...)

// RangeKinds adds min/max (earliest/latest for dates) to CountKinds.
var RangeKinds = append([]core.AggregationKind{
	core.AggMin,
	core.AggMax,
}, CountKinds...)

// Reducer reduces a column's values. The hooks let each column type decide
// what counts as a number, as empty and as a distinct value.
type Reducer struct {
	// Number reads the numeric payload; values it rejects are skipped by
	// sum/avg/min/max. Nil disables the numeric reducers.
	Number func(core.Value) (float64, bool)

	// Empty decides the empty/not-empty partition. Defaults to IsEmpty.
	Empty func(core.Value) bool

	// Key returns the identity used by count_unique. Defaults to String.
	Key func(core.Value) string
}

// Reduce applies kind to values. Unknown kinds and numeric kinds without a
// Number hook return null.
func (r Reducer) Reduce(values []core.Value, kind core.AggregationKind) core.Value {
	switch kind {
	case core.AggCount:
		return core.Number(float64(len(values)))
	case core.AggCountUnique:
		return core.Number(float64(r.unique(values)))
	case core.AggCountEmpty:
		return core.Number(float64(r.empties(values)))
	case core.AggCountNotEmpty:
		return core.Number(float64(len(values) - r.empties(values)))
	case core.AggPercentEmpty:
		return core.Number(percent(r.empties(values), len(values)))
	case core.AggPercentNotEmpty:
		return core.Number(percent(len(values)-r.empties(values), len(values)))
	case core.AggSum, core.AggAvg, core.AggMin, core.AggMax:
		if r.Number == nil {
			return core.Null()
		}
		return r.numeric(values, kind)
	default:
		return core.Null()
	}
}

func (r Reducer) numeric(values []core.Value, kind core.AggregationKind) core.Value {
	var (
		sum      float64
		min, max float64
		n        int
	)
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		f, ok := r.Number(v)
		if !ok {
			continue
		}
		if n == 0 || f < min {
			min = f
		}
		if n == 0 || f > max {
			max = f
		}
		sum += f
		n++
	}

	switch kind {
	case core.AggSum:
		return core.Number(sum)
	case core.AggAvg:
		if n == 0 {
			return core.Null()
		}
		return core.Number(sum / float64(n))
	case core.AggMin:
		if n == 0 {
			return core.Null()
		}
		return core.Number(min)
	case core.AggMax:
		if n == 0 {
			return core.Null()
		}
		return core.Number(max)
	default:
		return core.Null()
	}
}

func (r Reducer) empties(values []core.Value) int {
	isEmpty := r.Empty
	if isEmpty == nil {
		isEmpty = core.Value.IsEmpty
	}
	count := 0
	for _, v := range values {
		if isEmpty(v) {
			count++
		}
	}
	return count
}

func (r Reducer) unique(values []core.Value) int {
	isEmpty := r.Empty
	if isEmpty == nil {
		isEmpty = core.Value.IsEmpty
	}
	key := r.Key
	if key == nil {
		key = core.Value.String
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if isEmpty(v) {
			continue
		}
		seen[key(v)] = struct{}{}
	}
	return len(seen)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round(float64(part)*100/float64(total), 2)
}

// Round rounds f to the given number of decimals.
func Round(f float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}

// Column dispatches an aggregation through the column's own definition.
// Definitions without an aggregator, or that do not declare kind, yield null.
func Column(def core.Definition, values []core.Value, kind core.AggregationKind, cfg core.Config) core.Value {
	if def == nil || !core.Supports(def, kind) {
		return core.Null()
	}
	return def.(core.Aggregator).Aggregate(values, kind, cfg)
}
