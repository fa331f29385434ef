package coltype

import (
	"sort"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

// userType references workspace members by id. Display names come from the
// optional "users" directory in the column config (entries with id and
// label, like selection options).
type userType struct {
	base
	readOnly bool
}

// User is the person picker.
func User() core.Definition {
	return userType{base: base{meta: core.Meta{
		ID:            "user",
		Name:          "Person",
		Description:   "One or more workspace members",
		Category:      core.CategoryPeople,
		Icon:          "user",
		DefaultConfig: core.Config{"multiple": false, "users": []core.Option{}},
	}}}
}

// CreatedBy is the read-only row author.
func CreatedBy() core.Definition {
	return userType{base: base{meta: core.Meta{
		ID:            "created_by",
		Name:          "Created by",
		Description:   "Who created the row",
		Category:      core.CategoryPeople,
		Icon:          "user-plus",
		DefaultConfig: core.Config{"users": []core.Option{}},
		ReadOnly:      true,
	}}, readOnly: true}
}

// ModifiedBy is the read-only last editor.
func ModifiedBy() core.Definition {
	return userType{base: base{meta: core.Meta{
		ID:            "modified_by",
		Name:          "Last modified by",
		Description:   "Who last changed the row",
		Category:      core.CategoryPeople,
		Icon:          "user-pen",
		DefaultConfig: core.Config{"users": []core.Option{}},
		ReadOnly:      true,
	}}, readOnly: true}
}

func (u userType) directory(cfg core.Config) []core.Option {
	return core.Config{"options": u.config(cfg)["users"]}.Options()
}

func (u userType) names(v core.Value, cfg core.Config) []string {
	dir := u.directory(cfg)
	ids := schema.ToIDs(v)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if o, _, ok := findOption(dir, id); ok {
			out = append(out, o.Label)
		} else {
			out = append(out, id)
		}
	}
	return out
}

func (u userType) Render(v core.Value, cfg core.Config) core.Display {
	d := core.Display{Widget: "avatars", Text: u.Format(v, cfg)}
	for _, name := range u.names(v, cfg) {
		d.Items = append(d.Items, core.Display{Widget: "avatar", Text: name, Icon: "user"})
	}
	return d
}

func (u userType) Format(v core.Value, cfg core.Config) string {
	return strings.Join(u.names(v, cfg), ", ")
}

// Parse resolves comma-separated names or ids against the directory.
// Unknown entries are kept as ids.
func (u userType) Parse(input string, cfg core.Config) core.Value {
	dir := u.directory(cfg)
	parts := splitItems(input)
	for i, part := range parts {
		if o, _, ok := findOption(dir, part); ok {
			parts[i] = o.ID
		}
	}
	return u.shape(parts, cfg)
}

// shape returns a single id as text unless the column allows several people.
func (u userType) shape(ids []string, cfg core.Config) core.Value {
	switch {
	case len(ids) == 0:
		return core.Null()
	case len(ids) == 1 && !u.config(cfg).Bool("multiple", false):
		return core.Text(ids[0])
	}
	items := make([]core.Value, len(ids))
	for i, id := range ids {
		items[i] = core.Text(id)
	}
	return core.List(items...)
}

func (u userType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case core.KindText:
		return nil
	case core.KindList:
		if !u.config(cfg).Bool("multiple", false) && len(v.Items()) > 1 {
			return core.Invalid("Only one person can be selected")
		}
		for _, item := range v.Items() {
			if _, ok := item.AsText(); !ok {
				return core.Invalid("Every person must be a user id")
			}
		}
		return nil
	default:
		return core.Invalid("Value must be a user id")
	}
}

func (u userType) Compare(a, b core.Value, cfg core.Config) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	return compareText(u.Format(a, cfg), u.Format(b, cfg))
}

func (u userType) Operators() []core.FilterOperator {
	return []core.FilterOperator{
		core.OpEquals, core.OpContains, core.OpHasAnyOf, core.OpIsAnyOf, core.OpIsNoneOf, core.OpIsEmpty, core.OpIsNotEmpty,
	}
}

func (u userType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	if res, ok := filterEmpty(v, op); ok {
		return res
	}
	ids := schema.ToIDs(v)
	names := u.names(v, cfg)
	matches := func(want string) bool {
		for i := range ids {
			if ids[i] == want || strings.EqualFold(names[i], want) {
				return true
			}
		}
		return false
	}
	switch op {
	case core.OpEquals:
		return len(ids) == 1 && matches(fv.String())
	case core.OpContains:
		return strings.Contains(strings.ToLower(strings.Join(names, " ")), strings.ToLower(fv.String()))
	case core.OpHasAnyOf, core.OpIsAnyOf:
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

var userReducer = aggregate.Reducer{Key: func(v core.Value) string {
	ids := schema.ToIDs(v)
	sort.Strings(ids)
	return strings.Join(ids, "\x1f")
}}

func (u userType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (u userType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, userReducer, values, kind)
}

// Export writes user ids so imports do not depend on the directory. A
// single id is written bare; lists are written as a JSON array so their
// shape survives.
func (u userType) Export(v core.Value, _ core.Config) string {
	if v.Kind() == core.KindList {
		return exportJSON(v)
	}
	return joinItems(schema.ToIDs(v))
}

func (u userType) Import(s string, cfg core.Config) (core.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Null(), nil
	}
	if strings.HasPrefix(s, "[") {
		if v, err := importJSON(s); err == nil && v.Kind() == core.KindList {
			if err := u.Validate(v, cfg); err != nil {
				return core.Null(), err
			}
			return v, nil
		}
	}
	return u.shape(splitItems(s), cfg), nil
}