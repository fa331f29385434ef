// Package coltype holds the built-in column type definitions. Every
// definition is a stateless value implementing core.Definition plus the
// optional contracts it supports.
package coltype

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

// base carries the metadata shared by every definition.
type base struct {
	meta core.Meta
}

// Meta returns a copy so callers cannot mutate the default config.
func (b base) Meta() core.Meta {
	m := b.meta
	m.DefaultConfig = core.Merge(b.meta.DefaultConfig, nil)
	return m
}

// config merges the column's overrides on top of the type defaults.
func (b base) config(cfg core.Config) core.Config {
	return core.Merge(b.meta.DefaultConfig, cfg)
}

// nullsLast orders empty values after everything else. The bool is true
// when the result is decided.
func nullsLast(a, b core.Value) (int, bool) {
	ae, be := a.IsEmpty(), b.IsEmpty()
	switch {
	case ae && be:
		return 0, true
	case ae:
		return 1, true
	case be:
		return -1, true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareNumbers(a, b core.Value) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	af, aok := schema.ToFloat(a)
	bf, bok := schema.ToFloat(b)
	switch {
	case aok && bok:
		return compareFloat(af, bf)
	case aok:
		return -1
	case bok:
		return 1
	}
	return compareText(a.String(), b.String())
}

func compareText(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareStrings(a, b core.Value) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	return compareText(a.String(), b.String())
}

var textOperators = []core.FilterOperator{
	core.OpEquals,
	core.OpNotEquals,
	core.OpContains,
	core.OpNotContains,
	core.OpStartsWith,
	core.OpEndsWith,
	core.OpIsEmpty,
	core.OpIsNotEmpty,
}

var numberOperators = []core.FilterOperator{
	core.OpEquals,
	core.OpNotEquals,
	core.OpGreaterThan,
	core.OpGreaterThanOrEqual,
	core.OpLessThan,
	core.OpLessThanOrEqual,
	core.OpIsEmpty,
	core.OpIsNotEmpty,
}

var emptyOperators = []core.FilterOperator{
	core.OpIsEmpty,
	core.OpIsNotEmpty,
}

// filterEmpty handles is_empty / is_not_empty. The bool is true when op was
// one of them.
func filterEmpty(v core.Value, op core.FilterOperator) (bool, bool) {
	switch op {
	case core.OpIsEmpty:
		return v.IsEmpty(), true
	case core.OpIsNotEmpty:
		return !v.IsEmpty(), true
	}
	return false, false
}

// filterText compares s case-insensitively against the filter value.
func filterText(s string, empty bool, fv core.Value, op core.FilterOperator) bool {
	switch op {
	case core.OpIsEmpty:
		return empty
	case core.OpIsNotEmpty:
		return !empty
	}
	hay := strings.ToLower(s)
	needle := strings.ToLower(fv.String())
	switch op {
	case core.OpEquals:
		return hay == needle
	case core.OpNotEquals:
		return hay != needle
	case core.OpContains:
		return strings.Contains(hay, needle)
	case core.OpNotContains:
		return !strings.Contains(hay, needle)
	case core.OpStartsWith:
		return strings.HasPrefix(hay, needle)
	case core.OpEndsWith:
		return strings.HasSuffix(hay, needle)
	case core.OpIsAnyOf:
		for _, want := range filterList(fv) {
			if hay == strings.ToLower(want) {
				return true
			}
		}
		return false
	case core.OpIsNoneOf:
		for _, want := range filterList(fv) {
			if hay == strings.ToLower(want) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// filterNumber evaluates numeric comparisons. Empty cells never satisfy an
// ordering comparison.
func filterNumber(v, fv core.Value, op core.FilterOperator) bool {
	if res, ok := filterEmpty(v, op); ok {
		return res
	}
	n, ok := schema.ToFloat(v)
	want, wok := schema.ToFloat(fv)
	switch op {
	case core.OpEquals:
		return ok && wok && n == want
	case core.OpNotEquals:
		return !ok || !wok || n != want
	case core.OpGreaterThan:
		return ok && wok && n > want
	case core.OpGreaterThanOrEqual:
		return ok && wok && n >= want
	case core.OpLessThan:
		return ok && wok && n < want
	case core.OpLessThanOrEqual:
		return ok && wok && n <= want
	default:
		return true
	}
}

// filterList reads a filter operand that may be a single value or a list.
func filterList(fv core.Value) []string {
	if fv.Kind() == core.KindList {
		out := make([]string, 0, len(fv.Items()))
		for _, item := range fv.Flatten() {
			out = append(out, item.String())
		}
		return out
	}
	if fv.IsEmpty() {
		return nil
	}
	parts := strings.Split(fv.String(), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// supports reports whether kind is in kinds.
func supports(kinds []core.AggregationKind, kind core.AggregationKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// reduce runs r over values when kind is declared, null otherwise.
func reduce(kinds []core.AggregationKind, r aggregate.Reducer, values []core.Value, kind core.AggregationKind) core.Value {
	if !supports(kinds, kind) {
		return core.Null()
	}
	return r.Reduce(values, kind)
}

var numberReducer = aggregate.Reducer{Number: schema.ToFloat}

// countReducer is used by types with no numeric interpretation.
var countReducer = aggregate.Reducer{}

// textOf returns the text payload, or the string form of any other kind.
func textOf(v core.Value) string {
	if s, ok := v.AsText(); ok {
		return s
	}
	return v.String()
}

// textImport maps blank export cells back to null.
func textImport(s string) core.Value {
	if s == "" {
		return core.Null()
	}
	return core.Text(s)
}

// joinItems writes items as one comma-separated line. Items holding a
// comma, quote or line break are quoted the way CSV quotes fields.
func joinItems(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(items); err != nil {
		return strings.Join(items, ",")
	}
	w.Flush()
	return strings.TrimSuffix(buf.String(), "\n")
}

// splitItems reads a joinItems line or hand-typed "a, b, c" input. Blank
// items are dropped.
func splitItems(s string) []string {
	r := csv.NewReader(strings.NewReader(s))
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		records = [][]string{strings.Split(s, ",")}
	}
	var out []string
	for _, rec := range records {
		for _, item := range rec {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// joinNonEmpty joins the non-blank parts with sep.
func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
