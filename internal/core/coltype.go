package core

import (
	"errors"
	"fmt"
)

// Category groups column types in type pickers.
type Category string

const (
	CategoryBasic     Category = "basic"
	CategorySelection Category = "selection"
	CategoryDatetime  Category = "datetime"
	CategoryPeople    Category = "people"
	CategoryMedia     Category = "media"
	CategoryContact   Category = "contact"
	CategoryCode      Category = "code"
	CategoryRelations Category = "relations"
	CategoryFormulas  Category = "formulas"
	CategoryVisual    Category = "visual"
	CategoryAdvanced  Category = "advanced"
)

// Categories lists every category in menu order.
var Categories = []Category{
	CategoryBasic,
	CategorySelection,
	CategoryDatetime,
	CategoryPeople,
	CategoryMedia,
	CategoryContact,
	CategoryCode,
	CategoryRelations,
	CategoryFormulas,
	CategoryVisual,
	CategoryAdvanced,
}

// Order returns the menu position of the category; unknown categories sort last.
func (c Category) Order() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return len(Categories)
}

// AggregationKind names a reducer over a column's values.
type AggregationKind string

const (
	AggSum             AggregationKind = "sum"
	AggAvg             AggregationKind = "avg"
	AggMin             AggregationKind = "min"
	AggMax             AggregationKind = "max"
	AggCount           AggregationKind = "count"
	AggCountUnique     AggregationKind = "count_unique"
	AggCountEmpty      AggregationKind = "count_empty"
	AggCountNotEmpty   AggregationKind = "count_not_empty"
	AggPercentEmpty    AggregationKind = "percent_empty"
	AggPercentNotEmpty AggregationKind = "percent_not_empty"
)

// FilterOperator names a comparison a column type may evaluate.
type FilterOperator string

const (
	OpEquals             FilterOperator = "equals"
	OpNotEquals          FilterOperator = "not_equals"
	OpContains           FilterOperator = "contains"
	OpNotContains        FilterOperator = "not_contains"
	OpStartsWith         FilterOperator = "starts_with"
	OpEndsWith           FilterOperator = "ends_with"
	OpIsEmpty            FilterOperator = "is_empty"
	OpIsNotEmpty         FilterOperator = "is_not_empty"
	OpGreaterThan        FilterOperator = "greater_than"
	OpGreaterThanOrEqual FilterOperator = "greater_than_or_equal"
	OpLessThan           FilterOperator = "less_than"
	OpLessThanOrEqual    FilterOperator = "less_than_or_equal"
	OpIsChecked          FilterOperator = "is_checked"
	OpIsNotChecked       FilterOperator = "is_not_checked"
	OpIsAnyOf            FilterOperator = "is_any_of"
	OpIsNoneOf           FilterOperator = "is_none_of"
	OpHasAnyOf           FilterOperator = "has_any_of"
	OpHasAllOf           FilterOperator = "has_all_of"
	OpIsBefore           FilterOperator = "is_before"
	OpIsAfter            FilterOperator = "is_after"
)

// FillDirection is the direction of a drag-fill sequence.
type FillDirection int

const (
	FillForward  FillDirection = 1
	FillBackward FillDirection = -1
)

// Meta is the declarative part of a column type definition.
type Meta struct {
	// ID is the unique type identifier, e.g. "currency".
	ID string

	// Name is the display name shown in type pickers.
	Name string

	// Description is a one-line summary for type pickers.
	Description string

	// Category groups the type in menus.
	Category Category

	// Icon is a UI hint for type pickers.
	Icon string

	// DefaultConfig is the documented set of tunables for the type.
	DefaultConfig Config

	// DefaultValue is assigned to cells of newly created rows.
	DefaultValue Value

	// ReadOnly marks system-computed types whose cells cannot be edited.
	ReadOnly bool
}

// Display is the renderer output: a UI-agnostic description of a cell.
type Display struct {
	Widget string    `json:"widget"`
	Text   string    `json:"text"`
	Color  string    `json:"color,omitempty"`
	Icon   string    `json:"icon,omitempty"`
	Href   string    `json:"href,omitempty"`
	Items  []Display `json:"items,omitempty"`
}

// Definition is the mandatory contract every column type implements.
// All methods must be pure and safe for concurrent use.
type Definition interface {
	// Meta returns the declarative description of the type.
	Meta() Meta

	// Render describes how a cell should be displayed.
	Render(v Value, cfg Config) Display

	// Format returns a human-readable string. It is total: null and
	// malformed values yield "".
	Format(v Value, cfg Config) string
}

// Parser turns free-text entry into a value; invalid input yields null.
type Parser interface {
	Parse(input string, cfg Config) Value
}

// Validator enforces type-specific invariants. A nil return means valid;
// otherwise the error carries the message shown at the editing boundary.
type Validator interface {
	Validate(v Value, cfg Config) error
}

// Sorter defines a total order over values of the type.
type Sorter interface {
	Compare(a, b Value, cfg Config) int
}

// Filterer evaluates filter operators. Unsupported operators return true.
type Filterer interface {
	Operators() []FilterOperator
	Filter(v, filterValue Value, op FilterOperator, cfg Config) bool
}

// Aggregator reduces a column's values for a group of rows. Unsupported
// kinds return null.
type Aggregator interface {
	SupportedAggregations() []AggregationKind
	Aggregate(values []Value, kind AggregationKind, cfg Config) Value
}

// Exporter renders a value as a flat string for bulk export.
type Exporter interface {
	Export(v Value, cfg Config) string
}

// Importer is the inverse of Exporter.
type Importer interface {
	Import(s string, cfg Config) (Value, error)
}

// AutoFiller produces the next value of a drag-fill sequence.
type AutoFiller interface {
	AutoFillNext(current Value, dir FillDirection, cfg Config) Value
}

// ConfigValidator checks a column configuration against the type's shape.
type ConfigValidator interface {
	ValidateConfig(cfg Config) error
}

// Capabilities summarises which optional contracts a definition implements.
type Capabilities struct {
	Parse     bool `json:"parse"`
	Validate  bool `json:"validate"`
	Sort      bool `json:"sort"`
	Filter    bool `json:"filter"`
	Aggregate bool `json:"aggregate"`
	Export    bool `json:"export"`
	Import    bool `json:"import"`
	AutoFill  bool `json:"autoFill"`
}

// CapabilitiesOf reports the optional contracts implemented by d.
func CapabilitiesOf(d Definition) Capabilities {
	var c Capabilities
	_, c.Parse = d.(Parser)
	_, c.Validate = d.(Validator)
	_, c.Sort = d.(Sorter)
	_, c.Filter = d.(Filterer)
	_, c.Aggregate = d.(Aggregator)
	_, c.Export = d.(Exporter)
	_, c.Import = d.(Importer)
	_, c.AutoFill = d.(AutoFiller)
	return c
}

// Supports reports whether d declares the aggregation kind.
func Supports(d Definition, kind AggregationKind) bool {
	agg, ok := d.(Aggregator)
	if !ok {
		return false
	}
	for _, k := range agg.SupportedAggregations() {
		if k == kind {
			return true
		}
	}
	return false
}

// ErrInvalidValue is wrapped by every ValidationError.
var ErrInvalidValue = errors.New("invalid value")

// ValidationError carries the inline message for a rejected value.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap lets callers match ErrInvalidValue.
func (e *ValidationError) Unwrap() error { return ErrInvalidValue }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
