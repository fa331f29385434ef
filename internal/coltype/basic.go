package coltype

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

// trailingNumber splits "Item 12" into "Item " and "12".
var trailingNumber = regexp.MustCompile(`^(.*?)(\d+)$`)

// textType covers single-line and multi-line plain text.
type textType struct {
	base
	widget string
}

// Text is the single-line text type.
func Text() core.Definition {
	return textType{
		base: base{meta: core.Meta{
			ID:            "text",
			Name:          "Text",
			Description:   "Single line of plain text",
			Category:      core.CategoryBasic,
			Icon:          "type",
			DefaultConfig: core.Config{"maxLength": 255, "placeholder": ""},
		}},
		widget: "text",
	}
}

// LongText is the multi-line text type.
func LongText() core.Definition {
	return textType{
		base: base{meta: core.Meta{
			ID:            "long_text",
			Name:          "Long text",
			Description:   "Multiple lines of plain text",
			Category:      core.CategoryBasic,
			Icon:          "align-left",
			DefaultConfig: core.Config{"maxLength": 10000, "richText": false},
		}},
		widget: "textarea",
	}
}

func (t textType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: t.widget, Text: t.Format(v, cfg)}
}

func (t textType) Format(v core.Value, _ core.Config) string {
	return textOf(v)
}

func (t textType) Parse(input string, _ core.Config) core.Value {
	return textImport(input)
}

func (t textType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	s, ok := v.AsText()
	if !ok {
		return core.Invalid("Value must be text")
	}
	c := t.config(cfg)
	if max := c.Int("maxLength", 0); max > 0 && len([]rune(s)) > max {
		return core.Invalid("Text exceeds maximum length of %d characters", max)
	}
	return nil
}

func (t textType) Compare(a, b core.Value, _ core.Config) int {
	return compareStrings(a, b)
}

func (t textType) Operators() []core.FilterOperator { return textOperators }

func (t textType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterText(textOf(v), v.IsEmpty(), fv, op)
}

func (t textType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (t textType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

func (t textType) Export(v core.Value, _ core.Config) string { return textOf(v) }

func (t textType) Import(s string, _ core.Config) (core.Value, error) {
	return textImport(s), nil
}

// AutoFillNext increments a trailing number ("Item 1" -> "Item 2") and
// repeats text without one.
func (t textType) AutoFillNext(current core.Value, dir core.FillDirection, _ core.Config) core.Value {
	s, ok := current.AsText()
	if !ok {
		return current
	}
	m := trailingNumber.FindStringSubmatch(s)
	if m == nil {
		return current
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return current
	}
	n += int(dir)
	if n < 0 {
		n = 0
	}
	digits := strconv.Itoa(n)
	if len(m[2]) > len(digits) && strings.HasPrefix(m[2], "0") {
		digits = strings.Repeat("0", len(m[2])-len(digits)) + digits
	}
	return core.Text(m[1] + digits)
}

// numericType is shared by number, decimal, currency and percent.
type numericType struct {
	base
	widget string
	format func(f float64, cfg core.Config) string
}

// Number is the general numeric type.
func Number() core.Definition {
	return numericType{
		base: base{meta: core.Meta{
			ID:            "number",
			Name:          "Number",
			Description:   "Integer or decimal number",
			Category:      core.CategoryBasic,
			Icon:          "hash",
			DefaultConfig: core.Config{"step": 1, "prefix": "", "suffix": ""},
		}},
		widget: "number",
		format: func(f float64, cfg core.Config) string {
			decimals := -1
			if cfg.Has("decimals") {
				decimals = cfg.Int("decimals", 0)
			}
			return cfg.String("prefix", "") + formatDecimal(f, decimals, cfg) + cfg.String("suffix", "")
		},
	}
}

// Decimal is a fixed-precision number.
func Decimal() core.Definition {
	return numericType{
		base: base{meta: core.Meta{
			ID:            "decimal",
			Name:          "Decimal",
			Description:   "Number with a fixed number of decimals",
			Category:      core.CategoryBasic,
			Icon:          "decimal",
			DefaultConfig: core.Config{"decimals": 2, "step": 0.01},
		}},
		widget: "number",
		format: func(f float64, cfg core.Config) string {
			return formatDecimal(f, cfg.Int("decimals", 2), cfg)
		},
	}
}

// Currency is a monetary amount in one ISO 4217 currency.
func Currency() core.Definition {
	return numericType{
		base: base{meta: core.Meta{
			ID:            "currency",
			Name:          "Currency",
			Description:   "Monetary amount",
			Category:      core.CategoryBasic,
			Icon:          "dollar-sign",
			DefaultConfig: core.Config{"currency": "USD", "symbol": "$", "decimals": 2, "step": 0.01},
		}},
		widget: "currency",
		format: formatCurrency,
	}
}

// Percent is a number between 0 and 100 shown with a percent sign.
func Percent() core.Definition {
	return numericType{
		base: base{meta: core.Meta{
			ID:            "percent",
			Name:          "Percent",
			Description:   "Percentage between 0 and 100",
			Category:      core.CategoryBasic,
			Icon:          "percent",
			DefaultConfig: core.Config{"min": 0, "max": 100, "step": 1},
		}},
		widget: "percent",
		format: func(f float64, cfg core.Config) string {
			decimals := -1
			if cfg.Has("decimals") {
				decimals = cfg.Int("decimals", 0)
			}
			return formatDecimal(f, decimals, cfg) + "%"
		},
	}
}

func (n numericType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: n.widget, Text: n.Format(v, cfg)}
}

func (n numericType) Format(v core.Value, cfg core.Config) string {
	f, ok := schema.ToFloat(v)
	if !ok {
		return ""
	}
	return n.format(f, n.config(cfg))
}

func (n numericType) Parse(input string, cfg core.Config) core.Value {
	f, ok := parseNumberInput(input, n.config(cfg))
	if !ok {
		return core.Null()
	}
	return core.Number(f)
}

func (n numericType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	f, ok := v.AsNumber()
	if !ok {
		return core.Invalid("Value must be a number")
	}
	c := n.config(cfg)
	if min, ok := c.Float("min"); ok && f < min {
		return core.Invalid("Value must be at least %s", formatPlain(min, -1))
	}
	if max, ok := c.Float("max"); ok && f > max {
		return core.Invalid("Value must be at most %s", formatPlain(max, -1))
	}
	return nil
}

func (n numericType) ValidateConfig(cfg core.Config) error {
	if n.meta.ID == "currency" && cfg.Has("currency") && !validCurrency(cfg.String("currency", "")) {
		return core.Invalid("Unknown currency code %q", cfg.String("currency", ""))
	}
	min, hasMin := cfg.Float("min")
	max, hasMax := cfg.Float("max")
	if hasMin && hasMax && min > max {
		return core.Invalid("Minimum must not exceed maximum")
	}
	if d := cfg.Int("decimals", 0); d < 0 || d > maxDecimals {
		return core.Invalid("Decimals must be between 0 and %d", maxDecimals)
	}
	return nil
}

func (n numericType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (n numericType) Operators() []core.FilterOperator { return numberOperators }

func (n numericType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterNumber(v, fv, op)
}

func (n numericType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

func (n numericType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.NumericKinds, numberReducer, values, kind)
}

// Export writes the shortest exact representation so Import restores the
// same number.
func (n numericType) Export(v core.Value, _ core.Config) string {
	f, ok := schema.ToFloat(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (n numericType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	f, ok := parseNumberInput(s, n.config(cfg))
	if !ok {
		return core.Null(), core.Invalid("%q is not a number", s)
	}
	return core.Number(f), nil
}

func (n numericType) AutoFillNext(current core.Value, dir core.FillDirection, cfg core.Config) core.Value {
	f, ok := current.AsNumber()
	if !ok {
		return current
	}
	step := n.config(cfg).FloatOr("step", 1)
	if step == 0 {
		step = 1
	}
	return core.Number(f + step*float64(dir))
}

// checkboxType stores booleans.
type checkboxType struct {
	base
}

// Checkbox is the boolean type.
func Checkbox() core.Definition {
	return checkboxType{base{meta: core.Meta{
		ID:            "checkbox",
		Name:          "Checkbox",
		Description:   "Checked or unchecked",
		Category:      core.CategoryBasic,
		Icon:          "check-square",
		DefaultConfig: core.Config{},
		DefaultValue:  core.Bool(false),
	}}}
}

func checked(v core.Value) bool {
	b, ok := schema.ToBool(v)
	return ok && b
}

func (c checkboxType) Render(v core.Value, cfg core.Config) core.Display {
	d := core.Display{Widget: "checkbox", Text: c.Format(v, cfg), Icon: "square"}
	if checked(v) {
		d.Icon = "check-square"
	}
	return d
}

func (c checkboxType) Format(v core.Value, _ core.Config) string {
	b, ok := schema.ToBool(v)
	switch {
	case !ok:
		return ""
	case b:
		return "Yes"
	default:
		return "No"
	}
}

func parseCheckbox(input string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "true", "yes", "y", "1", "x", "checked", "on", "✓":
		return true, true
	case "false", "no", "n", "0", "unchecked", "off":
		return false, true
	}
	return false, false
}

func (c checkboxType) Parse(input string, _ core.Config) core.Value {
	b, ok := parseCheckbox(input)
	if !ok {
		return core.Null()
	}
	return core.Bool(b)
}

func (c checkboxType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() || v.Kind() == core.KindBool {
		return nil
	}
	return core.Invalid("Value must be checked or unchecked")
}

func (c checkboxType) Compare(a, b core.Value, _ core.Config) int {
	ab, bb := checked(a), checked(b)
	switch {
	case ab == bb:
		return 0
	case !ab:
		return -1
	}
	return 1
}

func (c checkboxType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpIsChecked, core.OpIsNotChecked, core.OpEquals}
}

func (c checkboxType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	switch op {
	case core.OpIsChecked:
		return checked(v)
	case core.OpIsNotChecked:
		return !checked(v)
	case core.OpEquals:
		return checked(v) == checked(fv)
	default:
		return true
	}
}

// Unchecked cells count as empty.
var checkboxReducer = aggregate.Reducer{Empty: func(v core.Value) bool { return !checked(v) }}

func (c checkboxType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (c checkboxType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, checkboxReducer, values, kind)
}

func (c checkboxType) Export(v core.Value, _ core.Config) string {
	b, ok := schema.ToBool(v)
	if !ok {
		return ""
	}
	return strconv.FormatBool(b)
}

func (c checkboxType) Import(s string, _ core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	b, ok := parseCheckbox(s)
	if !ok {
		return core.Null(), core.Invalid("%q is not a checkbox value", s)
	}
	return core.Bool(b), nil
}
