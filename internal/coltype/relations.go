package coltype

import (
	"sort"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

// relationType stores links to rows of another table as a list of
// {id, displayValue} objects.
type relationType struct {
	base
}

// Relation links rows across tables.
func Relation() core.Definition {
	return relationType{base{meta: core.Meta{
		ID:            "relation",
		Name:          "Relation",
		Description:   "Links to rows in another table",
		Category:      core.CategoryRelations,
		Icon:          "link-2",
		DefaultConfig: core.Config{"targetTableId": "", "allowMultiple": true, "displayFieldId": ""},
	}}}
}

// Link builds one relation entry.
func Link(id, display string) core.Value {
	return core.Object(map[string]core.Value{"id": core.Text(id), "displayValue": core.Text(display)})
}

// links returns the link objects of v, flattening nested lists.
func links(v core.Value) []core.Value {
	var out []core.Value
	for _, item := range v.Flatten() {
		switch item.Kind() {
		case core.KindObject:
			if id, ok := item.Field("id").AsText(); ok && id != "" {
				out = append(out, item)
			}
		case core.KindText:
			if s, _ := item.AsText(); s != "" {
				out = append(out, Link(s, ""))
			}
		}
	}
	return out
}

func linkLabel(l core.Value) string {
	if s, ok := l.Field("displayValue").AsText(); ok && s != "" {
		return s
	}
	id, _ := l.Field("id").AsText()
	return id
}

func (r relationType) Render(v core.Value, cfg core.Config) core.Display {
	d := core.Display{Widget: "links", Text: r.Format(v, cfg)}
	for _, l := range links(v) {
		d.Items = append(d.Items, core.Display{Widget: "chip", Text: linkLabel(l), Icon: "link-2"})
	}
	return d
}

func (r relationType) Format(v core.Value, _ core.Config) string {
	ls := links(v)
	labels := make([]string, 0, len(ls))
	for _, l := range ls {
		labels = append(labels, linkLabel(l))
	}
	return strings.Join(labels, ", ")
}

func (r relationType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	if v.Kind() != core.KindList {
		return core.Invalid("Value must be a list of links")
	}
	for _, item := range v.Items() {
		if item.Kind() != core.KindObject {
			return core.Invalid("Every link must be an object with an id")
		}
		if id, ok := item.Field("id").AsText(); !ok || id == "" {
			return core.Invalid("Every link must have an id")
		}
	}
	if !r.config(cfg).Bool("allowMultiple", true) && len(v.Items()) > 1 {
		return core.Invalid("Only one linked row is allowed")
	}
	return nil
}

func (r relationType) ValidateConfig(cfg core.Config) error {
	if cfg.String("targetTableId", "") == "" {
		return core.Invalid("Relation needs a target table")
	}
	return nil
}

func (r relationType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpHasAnyOf, core.OpHasAllOf, core.OpContains, core.OpIsEmpty, core.OpIsNotEmpty}
}

func (r relationType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	if res, ok := filterEmpty(v, op); ok {
		return res
	}
	ids := make(map[string]struct{})
	for _, id := range schema.ToIDs(v) {
		ids[id] = struct{}{}
	}
	switch op {
	case core.OpContains:
		return strings.Contains(strings.ToLower(r.Format(v, cfg)), strings.ToLower(fv.String()))
	case core.OpHasAnyOf:
		for _, want := range filterList(fv) {
			if _, ok := ids[want]; ok {
				return true
			}
		}
		return false
	case core.OpHasAllOf:
		for _, want := range filterList(fv) {
			if _, ok := ids[want]; !ok {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (r relationType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

// Aggregate counts linked rows: count flattens every cell's links, and
// count_unique counts distinct linked ids. The empty kinds work per cell.
func (r relationType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	switch kind {
	case core.AggCount:
		n := 0
		for _, v := range values {
			n += len(links(v))
		}
		return core.Number(float64(n))
	case core.AggCountUnique:
		seen := make(map[string]struct{})
		for _, v := range values {
			for _, id := range schema.ToIDs(v) {
				seen[id] = struct{}{}
			}
		}
		return core.Number(float64(len(seen)))
	}
	return reduce(aggregate.CountKinds, relationReducer, values, kind)
}

var relationReducer = aggregate.Reducer{Empty: func(v core.Value) bool { return len(links(v)) == 0 }}

// Export writes the links as JSON so display values survive a round trip.
func (r relationType) Export(v core.Value, _ core.Config) string {
	return exportJSON(v)
}

// Import accepts the JSON export or a comma-separated list of row ids.
func (r relationType) Import(s string, _ core.Config) (core.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Null(), nil
	}
	if strings.HasPrefix(s, "[") {
		return importJSON(s)
	}
	var items []core.Value
	for _, id := range splitItems(s) {
		items = append(items, Link(id, ""))
	}
	return core.List(items...), nil
}

// lookupType shows a field of the first linked row.
type lookupType struct {
	base
}

// Lookup mirrors a field from linked rows.
func Lookup() core.Definition {
	return lookupType{base{meta: core.Meta{
		ID:            "lookup",
		Name:          "Lookup",
		Description:   "Field value from a linked row",
		Category:      core.CategoryRelations,
		Icon:          "search",
		DefaultConfig: core.Config{"relationFieldId": "", "lookupFieldId": ""},
		ReadOnly:      true,
	}}}
}

// formatDerived renders a computed value without knowing its source type.
func formatDerived(v core.Value) string {
	switch v.Kind() {
	case core.KindNull:
		return ""
	case core.KindList:
		parts := make([]string, 0, len(v.Items()))
		for _, item := range v.Flatten() {
			parts = append(parts, formatDerived(item))
		}
		return joinNonEmpty(parts, ", ")
	case core.KindObject:
		if s, ok := v.Field("displayValue").AsText(); ok {
			return s
		}
		if s, ok := v.Field("name").AsText(); ok {
			return s
		}
		return v.String()
	default:
		return v.String()
	}
}

func (l lookupType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "text", Text: l.Format(v, cfg)}
}

func (l lookupType) Format(v core.Value, _ core.Config) string { return formatDerived(v) }

func (l lookupType) ValidateConfig(cfg core.Config) error {
	return requireKeys(cfg, "relationFieldId", "lookupFieldId")
}

func (l lookupType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (l lookupType) Operators() []core.FilterOperator { return textOperators }

func (l lookupType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterText(formatDerived(v), v.IsEmpty(), fv, op)
}

func (l lookupType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (l lookupType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

func (l lookupType) Export(v core.Value, _ core.Config) string { return formatDerived(v) }

// rollupType aggregates a field across linked rows. It only carries the
// wiring; the target column's definition does the reduction.
type rollupType struct {
	base
}

// Rollup aggregates linked rows.
func Rollup() core.Definition {
	return rollupType{base{meta: core.Meta{
		ID:            "rollup",
		Name:          "Rollup",
		Description:   "Aggregate of a field across linked rows",
		Category:      core.CategoryRelations,
		Icon:          "sigma",
		DefaultConfig: core.Config{"relationFieldId": "", "rollupFieldId": "", "aggregation": string(core.AggSum)},
		ReadOnly:      true,
	}}}
}

func (r rollupType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "number", Text: r.Format(v, cfg)}
}

func (r rollupType) Format(v core.Value, cfg core.Config) string {
	c := r.config(cfg)
	if f, ok := v.AsNumber(); ok {
		decimals := -1
		if c.Has("decimals") {
			decimals = c.Int("decimals", 0)
		}
		return formatDecimal(f, decimals, c)
	}
	return formatDerived(v)
}

func (r rollupType) ValidateConfig(cfg core.Config) error {
	if err := requireKeys(cfg, "relationFieldId", "rollupFieldId"); err != nil {
		return err
	}
	kind := core.AggregationKind(cfg.String("aggregation", string(core.AggSum)))
	if !supports(aggregate.NumericKinds, kind) {
		return core.Invalid("Unknown aggregation %q", kind)
	}
	return nil
}

func (r rollupType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (r rollupType) Operators() []core.FilterOperator { return numberOperators }

func (r rollupType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterNumber(v, fv, op)
}

func (r rollupType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

func (r rollupType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.NumericKinds, numberReducer, values, kind)
}

func (r rollupType) Export(v core.Value, _ core.Config) string { return v.String() }

// countType counts linked rows.
type countType struct {
	base
}

// Count is the number of linked rows.
func Count() core.Definition {
	return countType{base{meta: core.Meta{
		ID:            "count",
		Name:          "Count",
		Description:   "Number of linked rows",
		Category:      core.CategoryRelations,
		Icon:          "list-ordered",
		DefaultConfig: core.Config{"relationFieldId": ""},
		ReadOnly:      true,
	}}}
}

func (c countType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "number", Text: c.Format(v, cfg)}
}

func (c countType) Format(v core.Value, _ core.Config) string {
	f, ok := v.AsNumber()
	if !ok {
		return ""
	}
	return formatPlain(f, 0)
}

func (c countType) ValidateConfig(cfg core.Config) error {
	return requireKeys(cfg, "relationFieldId")
}

func (c countType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (c countType) Operators() []core.FilterOperator { return numberOperators }

func (c countType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterNumber(v, fv, op)
}

func (c countType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

func (c countType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.NumericKinds, numberReducer, values, kind)
}

func (c countType) Export(v core.Value, _ core.Config) string { return v.String() }

// requireKeys reports the first missing wiring key, in sorted order.
func requireKeys(cfg core.Config, keys ...string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, k := range sorted {
		if cfg.String(k, "") == "" {
			return core.Invalid("Missing %s", k)
		}
	}
	return nil
}
