package coltype

import (
	"sort"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
)

// findOption matches s against option ids first, then labels
// case-insensitively. The int is the option's position.
func findOption(opts []core.Option, s string) (core.Option, int, bool) {
	s = strings.TrimSpace(s)
	for i, o := range opts {
		if o.ID == s {
			return o, i, true
		}
	}
	for i, o := range opts {
		if strings.EqualFold(o.Label, s) {
			return o, i, true
		}
	}
	return core.Option{}, -1, false
}

func validateOptions(cfg core.Config) error {
	seen := make(map[string]struct{})
	for _, o := range cfg.Options() {
		if _, dup := seen[o.ID]; dup {
			return core.Invalid("Duplicate option %q", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

// selectType stores one option id as text.
type selectType struct {
	base
}

// Dropdown is the single-select type.
func Dropdown() core.Definition {
	return selectType{base{meta: core.Meta{
		ID:            "dropdown",
		Name:          "Dropdown",
		Description:   "Pick one option from a list",
		Category:      core.CategorySelection,
		Icon:          "chevron-down",
		DefaultConfig: core.Config{"options": []core.Option{}, "allowCustom": false},
	}}}
}

// Status is a single-select with workflow defaults.
func Status() core.Definition {
	return selectType{base{meta: core.Meta{
		ID:          "status",
		Name:        "Status",
		Description: "Workflow state",
		Category:    core.CategorySelection,
		Icon:        "circle-dot",
		DefaultConfig: core.Config{
			"options": []core.Option{
				{ID: "not_started", Label: "Not started", Color: "gray"},
				{ID: "in_progress", Label: "In progress", Color: "blue"},
				{ID: "blocked", Label: "Blocked", Color: "red"},
				{ID: "done", Label: "Done", Color: "green"},
			},
			"allowCustom": false,
		},
		DefaultValue: core.Text("not_started"),
	}}}
}

func (s selectType) option(v core.Value, cfg core.Config) (core.Option, int, bool) {
	id, ok := v.AsText()
	if !ok || id == "" {
		return core.Option{}, -1, false
	}
	return findOption(s.config(cfg).Options(), id)
}

func (s selectType) Render(v core.Value, cfg core.Config) core.Display {
	d := core.Display{Widget: "badge", Text: s.Format(v, cfg)}
	if o, _, ok := s.option(v, cfg); ok {
		d.Color, d.Icon = o.Color, o.Icon
	}
	return d
}

func (s selectType) Format(v core.Value, cfg core.Config) string {
	if o, _, ok := s.option(v, cfg); ok {
		return o.Label
	}
	return textOf(v)
}

func (s selectType) Parse(input string, cfg core.Config) core.Value {
	input = strings.TrimSpace(input)
	if input == "" {
		return core.Null()
	}
	c := s.config(cfg)
	if o, _, ok := findOption(c.Options(), input); ok {
		return core.Text(o.ID)
	}
	if c.Bool("allowCustom", false) {
		return core.Text(input)
	}
	return core.Null()
}

func (s selectType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	id, ok := v.AsText()
	if !ok {
		return core.Invalid("Value must be a single option")
	}
	c := s.config(cfg)
	if c.Bool("allowCustom", false) {
		return nil
	}
	for _, o := range c.Options() {
		if o.ID == id {
			return nil
		}
	}
	return core.Invalid("%q is not one of the available options", id)
}

func (s selectType) ValidateConfig(cfg core.Config) error {
	return validateOptions(cfg)
}

// Compare orders by option position; values outside the options list
// follow the known ones.
func (s selectType) Compare(a, b core.Value, cfg core.Config) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	_, ai, aok := s.option(a, cfg)
	_, bi, bok := s.option(b, cfg)
	switch {
	case aok && bok:
		return compareFloat(float64(ai), float64(bi))
	case aok:
		return -1
	case bok:
		return 1
	}
	return compareText(textOf(a), textOf(b))
}

func (s selectType) Operators() []core.FilterOperator {
	return []core.FilterOperator{
		core.OpEquals, core.OpNotEquals, core.OpIsAnyOf, core.OpIsNoneOf, core.OpIsEmpty, core.OpIsNotEmpty,
	}
}

func (s selectType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	if res, ok := filterEmpty(v, op); ok {
		return res
	}
	id := textOf(v)
	matches := func(want string) bool {
		if want == id {
			return true
		}
		o, _, ok := s.option(v, cfg)
		return ok && strings.EqualFold(o.Label, want)
	}
	switch op {
	case core.OpEquals:
		return matches(fv.String())
	case core.OpNotEquals:
		return !matches(fv.String())
	case core.OpIsAnyOf:
		for _, want := range filterList(fv) {
			if matches(want) {
				return true
			}
		}
		return false
	case core.OpIsNoneOf:
		for _, want := range filterList(fv) {
			if matches(want) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (s selectType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (s selectType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

func (s selectType) Export(v core.Value, cfg core.Config) string {
	return s.Format(v, cfg)
}

func (s selectType) Import(str string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(str) == "" {
		return core.Null(), nil
	}
	v := s.Parse(str, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not one of the available options", str)
	}
	return v, nil
}

// priorityType is a single-select ordered by severity.
type priorityType struct {
	selectType
}

// Priority is a single-select whose options carry a severity level.
func Priority() core.Definition {
	return priorityType{selectType{base{meta: core.Meta{
		ID:          "priority",
		Name:        "Priority",
		Description: "Severity level",
		Category:    core.CategorySelection,
		Icon:        "flag",
		DefaultConfig: core.Config{
			"options": []core.Option{
				{ID: "low", Label: "Low", Color: "gray", Level: 1},
				{ID: "medium", Label: "Medium", Color: "yellow", Level: 2},
				{ID: "high", Label: "High", Color: "orange", Level: 3},
				{ID: "urgent", Label: "Urgent", Color: "red", Level: 4},
			},
			"allowCustom": false,
		},
	}}}}
}

func (p priorityType) level(v core.Value, cfg core.Config) (int, bool) {
	o, i, ok := p.option(v, cfg)
	if !ok {
		return 0, false
	}
	if o.Level != 0 {
		return o.Level, true
	}
	return i + 1, true
}

// Compare puts the most severe level first.
func (p priorityType) Compare(a, b core.Value, cfg core.Config) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	al, aok := p.level(a, cfg)
	bl, bok := p.level(b, cfg)
	switch {
	case aok && bok:
		return compareFloat(float64(bl), float64(al))
	case aok:
		return -1
	case bok:
		return 1
	}
	return compareText(textOf(a), textOf(b))
}

// multiSelectType stores a list of option ids.
type multiSelectType struct {
	base
}

// MultiSelect picks any number of options.
func MultiSelect() core.Definition {
	return multiSelectType{base{meta: core.Meta{
		ID:            "multi_select",
		Name:          "Multi select",
		Description:   "Pick several options from a list",
		Category:      core.CategorySelection,
		Icon:          "list-checks",
		DefaultConfig: core.Config{"options": []core.Option{}, "allowCustom": false, "maxSelections": 0},
	}}}
}

// Tags is a free-form multi-select.
func Tags() core.Definition {
	return multiSelectType{base{meta: core.Meta{
		ID:            "tags",
		Name:          "Tags",
		Description:   "Free-form labels",
		Category:      core.CategorySelection,
		Icon:          "tag",
		DefaultConfig: core.Config{"options": []core.Option{}, "allowCustom": true, "maxSelections": 0},
	}}}
}

// selected returns the option ids held by v. A bare text is one id.
func selected(v core.Value) []string {
	if s, ok := v.AsText(); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var out []string
	for _, item := range v.Flatten() {
		if s, ok := item.AsText(); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSelectType) labels(v core.Value, cfg core.Config) []string {
	opts := m.config(cfg).Options()
	ids := selected(v)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if o, _, ok := findOption(opts, id); ok {
			out = append(out, o.Label)
		} else {
			out = append(out, id)
		}
	}
	return out
}

func (m multiSelectType) Render(v core.Value, cfg core.Config) core.Display {
	d := core.Display{Widget: "badges", Text: m.Format(v, cfg)}
	opts := m.config(cfg).Options()
	for _, id := range selected(v) {
		item := core.Display{Widget: "badge", Text: id}
		if o, _, ok := findOption(opts, id); ok {
			item.Text, item.Color, item.Icon = o.Label, o.Color, o.Icon
		}
		d.Items = append(d.Items, item)
	}
	return d
}

func (m multiSelectType) Format(v core.Value, cfg core.Config) string {
	return strings.Join(m.labels(v, cfg), ", ")
}

func (m multiSelectType) Parse(input string, cfg core.Config) core.Value {
	c := m.config(cfg)
	opts := c.Options()
	allowCustom := c.Bool("allowCustom", false)
	seen := make(map[string]struct{})
	var items []core.Value
	for _, part := range splitItems(input) {
		id := ""
		if o, _, ok := findOption(opts, part); ok {
			id = o.ID
		} else if allowCustom {
			id = part
		} else {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, core.Text(id))
	}
	if len(items) == 0 {
		return core.Null()
	}
	return core.List(items...)
}

func (m multiSelectType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	if v.Kind() != core.KindList {
		return core.Invalid("Value must be a list of options")
	}
	c := m.config(cfg)
	ids := selected(v)
	if len(ids) != len(v.Items()) {
		return core.Invalid("Every selection must be an option id")
	}
	if max := c.Int("maxSelections", 0); max > 0 && len(ids) > max {
		return core.Invalid("At most %d selections are allowed", max)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return core.Invalid("%q is selected more than once", id)
		}
		seen[id] = struct{}{}
	}
	if c.Bool("allowCustom", false) {
		return nil
	}
	opts := c.Options()
	for _, id := range ids {
		known := false
		for _, o := range opts {
			if o.ID == id {
				known = true
				break
			}
		}
		if !known {
			return core.Invalid("%q is not one of the available options", id)
		}
	}
	return nil
}

func (m multiSelectType) ValidateConfig(cfg core.Config) error {
	if cfg.Int("maxSelections", 0) < 0 {
		return core.Invalid("Maximum selections must not be negative")
	}
	return validateOptions(cfg)
}

func (m multiSelectType) Operators() []core.FilterOperator {
	return []core.FilterOperator{
		core.OpHasAnyOf, core.OpHasAllOf, core.OpIsNoneOf, core.OpContains, core.OpIsEmpty, core.OpIsNotEmpty,
	}
}

func (m multiSelectType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	if res, ok := filterEmpty(v, op); ok {
		return res
	}
	has := make(map[string]struct{})
	for _, id := range selected(v) {
		has[strings.ToLower(id)] = struct{}{}
	}
	for _, label := range m.labels(v, cfg) {
		has[strings.ToLower(label)] = struct{}{}
	}
	contains := func(want string) bool {
		_, ok := has[strings.ToLower(want)]
		return ok
	}
	wants := filterList(fv)
	switch op {
	case core.OpContains:
		return contains(fv.String())
	case core.OpHasAnyOf:
		for _, w := range wants {
			if contains(w) {
				return true
			}
		}
		return false
	case core.OpHasAllOf:
		for _, w := range wants {
			if !contains(w) {
				return false
			}
		}
		return true
	case core.OpIsNoneOf:
		for _, w := range wants {
			if contains(w) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Selections are compared as sets for count_unique.
var multiSelectReducer = aggregate.Reducer{Key: func(v core.Value) string {
	ids := selected(v)
	sort.Strings(ids)
	return strings.Join(ids, "\x1f")
}}

func (m multiSelectType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (m multiSelectType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, multiSelectReducer, values, kind)
}

// Export writes option ids, not labels, so renamed options still import.
func (m multiSelectType) Export(v core.Value, _ core.Config) string {
	return joinItems(selected(v))
}

func (m multiSelectType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	v := m.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q does not match any option", s)
	}
	return v, nil
}
