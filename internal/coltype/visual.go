package coltype

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

// ratingType is a small integer score out of "max".
type ratingType struct {
	base
}

// Rating is the star score.
func Rating() core.Definition {
	return ratingType{base{meta: core.Meta{
		ID:            "rating",
		Name:          "Rating",
		Description:   "Score out of a fixed number of stars",
		Category:      core.CategoryVisual,
		Icon:          "star",
		DefaultConfig: core.Config{"max": 5, "icon": "star", "allowHalf": false},
	}}}
}

func (r ratingType) Render(v core.Value, cfg core.Config) core.Display {
	c := r.config(cfg)
	return core.Display{Widget: "rating", Text: r.Format(v, cfg), Icon: c.String("icon", "star")}
}

// Format draws filled and empty stars, e.g. "★★★☆☆".
func (r ratingType) Format(v core.Value, cfg core.Config) string {
	n, ok := schema.ToFloat(v)
	if !ok {
		return ""
	}
	max := ratingMax(r.config(cfg))
	filled := 0
	if n > 0 {
		filled = int(math.Round(math.Min(n, float64(max))))
	}
	return strings.Repeat("★", filled) + strings.Repeat("☆", max-filled)
}

func (r ratingType) Parse(input string, cfg core.Config) core.Value {
	input = strings.TrimSpace(input)
	if input == "" {
		return core.Null()
	}
	if strings.ContainsAny(input, "★☆") {
		return core.Number(float64(strings.Count(input, "★")))
	}
	if i := strings.Index(input, "/"); i > 0 {
		input = input[:i]
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || r.Validate(core.Number(n), cfg) != nil {
		return core.Null()
	}
	return core.Number(n)
}

func (r ratingType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	n, ok := v.AsNumber()
	if !ok {
		return core.Invalid("Rating must be a number")
	}
	c := r.config(cfg)
	max := ratingMax(c)
	if n < 0 || n > float64(max) {
		return core.Invalid("Rating must be between 0 and %d", max)
	}
	step := 1.0
	if c.Bool("allowHalf", false) {
		step = 0.5
	}
	if math.Mod(n, step) != 0 {
		return core.Invalid("Rating must be in steps of %s", formatPlain(step, -1))
	}
	return nil
}

// ratingMax clamps the configured star count to the range ValidateConfig
// accepts, so formatting stays bounded for unchecked configs.
func ratingMax(cfg core.Config) int {
	return min(max(cfg.Int("max", 5), 1), 10)
}

func (r ratingType) ValidateConfig(cfg core.Config) error {
	if max := cfg.Int("max", 5); max < 1 || max > 10 {
		return core.Invalid("Maximum rating must be between 1 and 10")
	}
	return nil
}

func (r ratingType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (r ratingType) Operators() []core.FilterOperator { return numberOperators }

func (r ratingType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterNumber(v, fv, op)
}

func (r ratingType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

// Aggregate rounds averages to one decimal.
func (r ratingType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	res := reduce(aggregate.NumericKinds, numberReducer, values, kind)
	if kind == core.AggAvg {
		if n, ok := res.AsNumber(); ok {
			return core.Number(aggregate.Round(n, 1))
		}
	}
	return res
}

func (r ratingType) Export(v core.Value, _ core.Config) string { return numberExport(v) }

func (r ratingType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	v := r.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not a valid rating", s)
	}
	return v, nil
}

// progressType is a 0-100 completion bar.
type progressType struct {
	base
}

// Progress is the completion bar.
func Progress() core.Definition {
	return progressType{base{meta: core.Meta{
		ID:            "progress",
		Name:          "Progress",
		Description:   "Completion from 0 to 100",
		Category:      core.CategoryVisual,
		Icon:          "loader",
		DefaultConfig: core.Config{"color": "blue"},
		DefaultValue:  core.Number(0),
	}}}
}

func (p progressType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "progress", Text: p.Format(v, cfg), Color: p.config(cfg).String("color", "blue")}
}

func (p progressType) Format(v core.Value, _ core.Config) string {
	n, ok := schema.ToFloat(v)
	if !ok {
		return ""
	}
	return formatPlain(n, -1) + "%"
}

func (p progressType) Parse(input string, cfg core.Config) core.Value {
	n, ok := parseNumberInput(input, cfg)
	if !ok {
		return core.Null()
	}
	return core.Number(n)
}

func (p progressType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() {
		return nil
	}
	n, ok := v.AsNumber()
	if !ok {
		return core.Invalid("Progress must be a number")
	}
	if n < 0 || n > 100 {
		return core.Invalid("Progress must be between 0 and 100")
	}
	return nil
}

func (p progressType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (p progressType) Operators() []core.FilterOperator { return numberOperators }

func (p progressType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterNumber(v, fv, op)
}

func (p progressType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

func (p progressType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.NumericKinds, numberReducer, values, kind)
}

func (p progressType) Export(v core.Value, _ core.Config) string { return numberExport(v) }

func (p progressType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	v := p.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not a number", s)
	}
	return v, nil
}

// voteType stores {count, voters}.
type voteType struct {
	base
}

// Vote is the upvote counter.
func Vote() core.Definition {
	return voteType{base{meta: core.Meta{
		ID:            "vote",
		Name:          "Vote",
		Description:   "Upvote counter",
		Category:      core.CategoryVisual,
		Icon:          "thumbs-up",
		DefaultConfig: core.Config{},
	}}}
}

// votes reads the count of a vote object; bare numbers are accepted.
func votes(v core.Value) (float64, bool) {
	if v.Kind() == core.KindObject {
		return v.Field("count").AsNumber()
	}
	return v.AsNumber()
}

func (vt voteType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "vote", Text: vt.Format(v, cfg), Icon: "thumbs-up"}
}

func (vt voteType) Format(v core.Value, _ core.Config) string {
	n, ok := votes(v)
	if !ok {
		return ""
	}
	return formatPlain(n, 0)
}

func (vt voteType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() {
		return nil
	}
	if v.Kind() != core.KindObject {
		return core.Invalid("Vote must be an object with a count")
	}
	n, ok := v.Field("count").AsNumber()
	if !ok || n < 0 || n != math.Trunc(n) {
		return core.Invalid("Vote count must be a non-negative integer")
	}
	voters := v.Field("voters")
	if !voters.IsNull() {
		if voters.Kind() != core.KindList {
			return core.Invalid("Voters must be a list of user ids")
		}
		if float64(len(voters.Items())) != n {
			return core.Invalid("Vote count does not match the number of voters")
		}
	}
	return nil
}

func (vt voteType) Compare(a, b core.Value, _ core.Config) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	an, _ := votes(a)
	bn, _ := votes(b)
	return compareFloat(an, bn)
}

func (vt voteType) Operators() []core.FilterOperator { return numberOperators }

func (vt voteType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	if n, ok := votes(v); ok {
		return filterNumber(core.Number(n), fv, op)
	}
	return filterNumber(core.Null(), fv, op)
}

var voteReducer = aggregate.Reducer{Number: votes}

func (vt voteType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

func (vt voteType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.NumericKinds, voteReducer, values, kind)
}

func (vt voteType) Export(v core.Value, _ core.Config) string { return exportJSON(v) }

// Import accepts the JSON export or a bare count.
func (vt voteType) Import(s string, _ core.Config) (core.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Null(), nil
	}
	if strings.HasPrefix(s, "{") {
		return importJSON(s)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return core.Null(), core.Invalid("%q is not a vote count", s)
	}
	return core.Object(map[string]core.Value{"count": core.Number(n)}), nil
}

var hexColor = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// colorType stores a hex color.
type colorType struct {
	base
}

// Color is the swatch type.
func Color() core.Definition {
	return colorType{base{meta: core.Meta{
		ID:            "color",
		Name:          "Color",
		Description:   "Hex color",
		Category:      core.CategoryVisual,
		Icon:          "palette",
		DefaultConfig: core.Config{},
	}}}
}

func (c colorType) Render(v core.Value, cfg core.Config) core.Display {
	s := c.Format(v, cfg)
	return core.Display{Widget: "swatch", Text: s, Color: s}
}

func (c colorType) Format(v core.Value, _ core.Config) string {
	return strings.ToUpper(strings.TrimSpace(textOf(v)))
}

func (c colorType) Parse(input string, _ core.Config) core.Value {
	input = strings.TrimSpace(input)
	if input != "" && !strings.HasPrefix(input, "#") {
		input = "#" + input
	}
	if !hexColor.MatchString(input) {
		return core.Null()
	}
	return core.Text(strings.ToUpper(input))
}

func (c colorType) Validate(v core.Value, _ core.Config) error {
	if v.IsEmpty() {
		return nil
	}
	s, ok := v.AsText()
	if !ok || !hexColor.MatchString(s) {
		return core.Invalid("Color must be a hex value such as #FF8800")
	}
	return nil
}

func (c colorType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpEquals, core.OpNotEquals, core.OpIsEmpty, core.OpIsNotEmpty}
}

func (c colorType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	return filterText(c.Format(v, cfg), v.IsEmpty(), fv, op)
}

var colorReducer = aggregate.Reducer{Key: func(v core.Value) string { return strings.ToUpper(textOf(v)) }}

func (c colorType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (c colorType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, colorReducer, values, kind)
}

// Export keeps the stored spelling; Format is what upper-cases.
func (c colorType) Export(v core.Value, _ core.Config) string { return textOf(v) }

func (c colorType) Import(s string, cfg core.Config) (core.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Null(), nil
	}
	if hexColor.MatchString(s) {
		return core.Text(s), nil
	}
	v := c.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not a hex color", s)
	}
	return v, nil
}

// buttonType holds no data; it renders an action.
type buttonType struct {
	base
}

// Button triggers an action from a cell.
func Button() core.Definition {
	return buttonType{base{meta: core.Meta{
		ID:            "button",
		Name:          "Button",
		Description:   "Clickable action",
		Category:      core.CategoryVisual,
		Icon:          "mouse-pointer-click",
		DefaultConfig: core.Config{"label": "Open", "action": "open_url", "url": "", "color": "blue"},
		ReadOnly:      true,
	}}}
}

// Render shows the configured label; the cell value is never displayed.
func (b buttonType) Render(_ core.Value, cfg core.Config) core.Display {
	c := b.config(cfg)
	return core.Display{
		Widget: "button",
		Text:   c.String("label", "Open"),
		Color:  c.String("color", "blue"),
		Href:   c.String("url", ""),
	}
}

func (b buttonType) Format(v core.Value, _ core.Config) string { return textOf(v) }

func (b buttonType) ValidateConfig(cfg core.Config) error {
	switch action := cfg.String("action", "open_url"); action {
	case "open_url":
		if cfg.String("url", "") == "" {
			return core.Invalid("Button action open_url needs a url")
		}
	case "webhook", "run_script":
	default:
		return core.Invalid("Unknown button action %q", action)
	}
	return nil
}

func numberExport(v core.Value) string {
	n, ok := schema.ToFloat(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
