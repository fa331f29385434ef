package coltype

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/formula"
)

// Formula return types.
const (
	ReturnText     = "text"
	ReturnNumber   = "number"
	ReturnCurrency = "currency"
	ReturnPercent  = "percent"
)

// formulaType displays values computed by the formula evaluator.
type formulaType struct {
	base
}

// Formula is the computed-expression type.
func Formula() core.Definition {
	return formulaType{base{meta: core.Meta{
		ID:          "formula",
		Name:        "Formula",
		Description: "Value computed from other fields",
		Category:    core.CategoryFormulas,
		Icon:        "function-square",
		DefaultConfig: core.Config{
			"expression":   "",
			"returnType":   ReturnText,
			"dependencies": []string{},
		},
		ReadOnly: true,
	}}}
}

func (f formulaType) returnType(cfg core.Config) string {
	return f.config(cfg).String("returnType", ReturnText)
}

func (f formulaType) Render(v core.Value, cfg core.Config) core.Display {
	d := core.Display{Widget: "text", Text: f.Format(v, cfg)}
	if formula.IsError(v) {
		d.Color, d.Icon = "red", "alert-triangle"
	}
	return d
}

// Format renders the result per returnType; the error marker is shown as is.
func (f formulaType) Format(v core.Value, cfg core.Config) string {
	if v.IsNull() {
		return ""
	}
	if formula.IsError(v) {
		return formula.ErrorMarker
	}
	c := f.config(cfg)
	n, isNumber := v.AsNumber()
	switch c.String("returnType", ReturnText) {
	case ReturnNumber:
		if isNumber {
			decimals := -1
			if c.Has("decimals") {
				decimals = c.Int("decimals", 0)
			}
			return formatDecimal(n, decimals, c)
		}
	case ReturnCurrency:
		if isNumber {
			return formatCurrency(n, core.Merge(core.Config{"symbol": "$", "decimals": 2}, cfg))
		}
	case ReturnPercent:
		if isNumber {
			decimals := -1
			if c.Has("decimals") {
				decimals = c.Int("decimals", 0)
			}
			return formatDecimal(n, decimals, c) + "%"
		}
	}
	return v.String()
}

func (f formulaType) ValidateConfig(cfg core.Config) error {
	switch rt := cfg.String("returnType", ReturnText); rt {
	case ReturnText, ReturnNumber, ReturnCurrency, ReturnPercent:
	default:
		return core.Invalid("Unknown return type %q", rt)
	}
	expr := cfg.String("expression", "")
	if strings.TrimSpace(expr) == "" {
		return core.Invalid("Formula expression is empty")
	}
	if _, err := formula.Compile(expr); err != nil {
		return core.Invalid("Formula does not compile: %v", err)
	}
	return nil
}

func (f formulaType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (f formulaType) Operators() []core.FilterOperator {
	return append(append([]core.FilterOperator(nil), numberOperators...), core.OpContains, core.OpNotContains)
}

func (f formulaType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	if f.returnType(cfg) == ReturnText || op == core.OpContains || op == core.OpNotContains {
		return filterText(v.String(), v.IsEmpty(), fv, op)
	}
	return filterNumber(v, fv, op)
}

func (f formulaType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

// Aggregate skips non-numeric results, including error markers.
func (f formulaType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.NumericKinds, aggregate.Reducer{Number: func(v core.Value) (float64, bool) {
		return v.AsNumber()
	}}, values, kind)
}

func (f formulaType) Export(v core.Value, _ core.Config) string { return v.String() }

// autoNumberType is a sequence assigned when a row is inserted.
type autoNumberType struct {
	base
}

// AutoNumber is the insert sequence.
func AutoNumber() core.Definition {
	return autoNumberType{base{meta: core.Meta{
		ID:            "auto_number",
		Name:          "Auto number",
		Description:   "Sequential number assigned on insert",
		Category:      core.CategoryFormulas,
		Icon:          "list-ordered",
		DefaultConfig: core.Config{"prefix": "", "digits": 0, "start": 1},
		ReadOnly:      true,
	}}}
}

func (a autoNumberType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "text", Text: a.Format(v, cfg)}
}

func (a autoNumberType) Format(v core.Value, cfg core.Config) string {
	n, ok := v.AsNumber()
	if !ok {
		return ""
	}
	c := a.config(cfg)
	digits := min(max(c.Int("digits", 0), 0), maxSequenceDigits)
	return fmt.Sprintf("%s%0*d", c.String("prefix", ""), digits, int64(n))
}

// maxSequenceDigits is the widest zero padding an auto number accepts.
const maxSequenceDigits = 18

func (a autoNumberType) ValidateConfig(cfg core.Config) error {
	if d := cfg.Int("digits", 0); d < 0 || d > maxSequenceDigits {
		return core.Invalid("Digits must be between 0 and %d", maxSequenceDigits)
	}
	return nil
}

func (a autoNumberType) Compare(x, y core.Value, _ core.Config) int {
	return compareNumbers(x, y)
}

func (a autoNumberType) Operators() []core.FilterOperator { return numberOperators }

func (a autoNumberType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterNumber(v, fv, op)
}

func (a autoNumberType) SupportedAggregations() []core.AggregationKind { return aggregate.RangeKinds }

func (a autoNumberType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.RangeKinds, numberReducer, values, kind)
}

func (a autoNumberType) Export(v core.Value, cfg core.Config) string { return a.Format(v, cfg) }

// Start returns the first number of the sequence.
func (a autoNumberType) Start(cfg core.Config) float64 {
	return a.config(cfg).FloatOr("start", 1)
}
