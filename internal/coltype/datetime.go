package coltype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

const dateLayout = "2006-01-02"

// humanDateLayouts are accepted by Parse in addition to the storage layouts.
var humanDateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"01/02/2006",
	"Jan 2, 2006 15:04",
	"01/02/2006 15:04",
}

func parseDateInput(s string) (time.Time, bool) {
	if t, ok := schema.ParseTime(s); ok {
		return t, true
	}
	s = strings.TrimSpace(s)
	for _, layout := range humanDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var dateOperators = []core.FilterOperator{
	core.OpEquals,
	core.OpNotEquals,
	core.OpIsBefore,
	core.OpIsAfter,
	core.OpIsEmpty,
	core.OpIsNotEmpty,
}

// dateType stores a calendar date ("2006-01-02") or, with withTime, an
// RFC 3339 timestamp in UTC.
type dateType struct {
	base
	withTime bool
}

// Date is the calendar date type.
func Date() core.Definition {
	return dateType{base: base{meta: core.Meta{
		ID:            "date",
		Name:          "Date",
		Description:   "Calendar date",
		Category:      core.CategoryDatetime,
		Icon:          "calendar",
		DefaultConfig: core.Config{"dateFormat": "Jan 2, 2006"},
	}}}
}

// DateTime is the timestamp type.
func DateTime() core.Definition {
	return dateType{
		base: base{meta: core.Meta{
			ID:            "datetime",
			Name:          "Date & time",
			Description:   "Date with time of day",
			Category:      core.CategoryDatetime,
			Icon:          "calendar-clock",
			DefaultConfig: core.Config{"dateFormat": "Jan 2, 2006 15:04", "timezone": "UTC"},
		}},
		withTime: true,
	}
}

func (d dateType) store(t time.Time) core.Value {
	if d.withTime {
		return core.Text(t.UTC().Format(time.RFC3339))
	}
	return core.Text(t.Format(dateLayout))
}

func (d dateType) location(cfg core.Config) *time.Location {
	loc, err := time.LoadLocation(cfg.String("timezone", "UTC"))
	if err != nil {
		return time.UTC
	}
	return loc
}

func (d dateType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "date", Text: d.Format(v, cfg)}
}

func (d dateType) Format(v core.Value, cfg core.Config) string {
	t, ok := schema.ToTime(v)
	if !ok {
		return ""
	}
	c := d.config(cfg)
	if d.withTime {
		t = t.In(d.location(c))
	}
	return t.Format(c.String("dateFormat", dateLayout))
}

func (d dateType) Parse(input string, _ core.Config) core.Value {
	t, ok := parseDateInput(input)
	if !ok {
		return core.Null()
	}
	return d.store(t)
}

func (d dateType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() {
		return nil
	}
	if _, ok := v.AsText(); !ok {
		return core.Invalid("Value must be a date")
	}
	if _, ok := schema.ToTime(v); !ok {
		return core.Invalid("%q is not a valid date", textOf(v))
	}
	return nil
}

func (d dateType) ValidateConfig(cfg core.Config) error {
	if tz := cfg.String("timezone", ""); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return core.Invalid("Unknown timezone %q", tz)
		}
	}
	return nil
}

func (d dateType) Compare(a, b core.Value, _ core.Config) int {
	return compareTimes(a, b)
}

func compareTimes(a, b core.Value) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	at, aok := schema.ToTime(a)
	bt, bok := schema.ToTime(b)
	switch {
	case aok && bok:
		return at.Compare(bt)
	case aok:
		return -1
	case bok:
		return 1
	}
	return compareText(a.String(), b.String())
}

func (d dateType) Operators() []core.FilterOperator { return dateOperators }

func (d dateType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterTime(v, fv, op, !d.withTime)
}

// filterTime compares timestamps; byDay compares calendar days only.
func filterTime(v, fv core.Value, op core.FilterOperator, byDay bool) bool {
	if res, ok := filterEmpty(v, op); ok {
		return res
	}
	t, ok := schema.ToTime(v)
	want, wok := schema.ToTime(fv)
	if !wok {
		want, wok = parseDateInput(fv.String())
	}
	if !ok || !wok {
		return op == core.OpNotEquals
	}
	if byDay {
		t = t.UTC().Truncate(24 * time.Hour)
		want = want.UTC().Truncate(24 * time.Hour)
	}
	switch op {
	case core.OpEquals:
		return t.Equal(want)
	case core.OpNotEquals:
		return !t.Equal(want)
	case core.OpIsBefore, core.OpLessThan:
		return t.Before(want)
	case core.OpIsAfter, core.OpGreaterThan:
		return t.After(want)
	default:
		return true
	}
}

var timeReducer = aggregate.Reducer{Number: func(v core.Value) (float64, bool) {
	t, ok := schema.ToTime(v)
	if !ok {
		return 0, false
	}
	return float64(t.Unix()), true
}}

func (d dateType) SupportedAggregations() []core.AggregationKind { return aggregate.RangeKinds }

// Aggregate returns the earliest/latest value in storage form for min/max.
func (d dateType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	res := reduce(aggregate.RangeKinds, timeReducer, values, kind)
	if kind == core.AggMin || kind == core.AggMax {
		if secs, ok := res.AsNumber(); ok {
			return d.store(time.Unix(int64(secs), 0).UTC())
		}
	}
	return res
}

func (d dateType) Export(v core.Value, _ core.Config) string {
	t, ok := schema.ToTime(v)
	if !ok {
		return ""
	}
	return textOf(d.store(t))
}

func (d dateType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	v := d.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not a valid date", s)
	}
	return v, nil
}

// AutoFillNext advances by "fillStepDays" days (default 1).
func (d dateType) AutoFillNext(current core.Value, dir core.FillDirection, cfg core.Config) core.Value {
	t, ok := schema.ToTime(current)
	if !ok {
		return current
	}
	step := d.config(cfg).Int("fillStepDays", 1)
	return d.store(t.AddDate(0, 0, step*int(dir)))
}

// systemTimeType exposes a row timestamp maintained by the engine.
type systemTimeType struct {
	base
	inner dateType
}

// CreatedTime is the read-only row creation timestamp.
func CreatedTime() core.Definition {
	return newSystemTime("created_time", "Created time", "When the row was created")
}

// ModifiedTime is the read-only last-modification timestamp.
func ModifiedTime() core.Definition {
	return newSystemTime("modified_time", "Last modified time", "When the row was last changed")
}

func newSystemTime(id, name, desc string) systemTimeType {
	cfg := core.Config{"dateFormat": "Jan 2, 2006 15:04", "timezone": "UTC"}
	return systemTimeType{
		base: base{meta: core.Meta{
			ID:            id,
			Name:          name,
			Description:   desc,
			Category:      core.CategoryDatetime,
			Icon:          "clock",
			DefaultConfig: cfg,
			ReadOnly:      true,
		}},
		inner: dateType{base: base{meta: core.Meta{DefaultConfig: cfg}}, withTime: true},
	}
}

func (s systemTimeType) Render(v core.Value, cfg core.Config) core.Display {
	return s.inner.Render(v, cfg)
}

func (s systemTimeType) Format(v core.Value, cfg core.Config) string {
	return s.inner.Format(v, cfg)
}

func (s systemTimeType) Compare(a, b core.Value, _ core.Config) int {
	return compareTimes(a, b)
}

func (s systemTimeType) Operators() []core.FilterOperator { return dateOperators }

func (s systemTimeType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	return s.inner.Filter(v, fv, op, cfg)
}

func (s systemTimeType) SupportedAggregations() []core.AggregationKind { return aggregate.RangeKinds }

func (s systemTimeType) Aggregate(values []core.Value, kind core.AggregationKind, cfg core.Config) core.Value {
	return s.inner.Aggregate(values, kind, cfg)
}

func (s systemTimeType) Export(v core.Value, cfg core.Config) string {
	return s.inner.Export(v, cfg)
}

// timeType stores a time of day as "15:04" or "15:04:05".
type timeType struct {
	base
}

// TimeOfDay is the time-of-day type.
func TimeOfDay() core.Definition {
	return timeType{base{meta: core.Meta{
		ID:            "time",
		Name:          "Time",
		Description:   "Time of day",
		Category:      core.CategoryDatetime,
		Icon:          "clock",
		DefaultConfig: core.Config{"use24h": true},
	}}}
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm", "3 PM", "3PM", "3pm"}

// clockSeconds returns seconds since midnight.
func clockSeconds(v core.Value) (int, bool) {
	s, ok := v.AsText()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
		}
	}
	return 0, false
}

func storeClock(secs int) core.Value {
	h, m, s := secs/3600, secs%3600/60, secs%60
	if s != 0 {
		return core.Text(fmt.Sprintf("%02d:%02d:%02d", h, m, s))
	}
	return core.Text(fmt.Sprintf("%02d:%02d", h, m))
}

func (t timeType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "time", Text: t.Format(v, cfg)}
}

func (t timeType) Format(v core.Value, cfg core.Config) string {
	secs, ok := clockSeconds(v)
	if !ok {
		return ""
	}
	clock := time.Date(2000, 1, 1, 0, 0, secs, 0, time.UTC)
	if t.config(cfg).Bool("use24h", true) {
		if secs%60 != 0 {
			return clock.Format("15:04:05")
		}
		return clock.Format("15:04")
	}
	return clock.Format("3:04 PM")
}

func (t timeType) Parse(input string, _ core.Config) core.Value {
	secs, ok := clockSeconds(core.Text(input))
	if !ok {
		return core.Null()
	}
	return storeClock(secs)
}

func (t timeType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() {
		return nil
	}
	if _, ok := clockSeconds(v); !ok {
		return core.Invalid("Value must be a time of day")
	}
	return nil
}

func (t timeType) Compare(a, b core.Value, _ core.Config) int {
	if c, ok := nullsLast(a, b); ok {
		return c
	}
	as, aok := clockSeconds(a)
	bs, bok := clockSeconds(b)
	switch {
	case aok && bok:
		return compareFloat(float64(as), float64(bs))
	case aok:
		return -1
	case bok:
		return 1
	}
	return compareText(a.String(), b.String())
}

func (t timeType) Operators() []core.FilterOperator { return dateOperators }

func (t timeType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	if res, ok := filterEmpty(v, op); ok {
		return res
	}
	secs, ok := clockSeconds(v)
	want, wok := clockSeconds(core.Text(fv.String()))
	if !ok || !wok {
		return op == core.OpNotEquals
	}
	switch op {
	case core.OpEquals:
		return secs == want
	case core.OpNotEquals:
		return secs != want
	case core.OpIsBefore:
		return secs < want
	case core.OpIsAfter:
		return secs > want
	default:
		return true
	}
}

var clockReducer = aggregate.Reducer{Number: func(v core.Value) (float64, bool) {
	secs, ok := clockSeconds(v)
	return float64(secs), ok
}}

func (t timeType) SupportedAggregations() []core.AggregationKind { return aggregate.RangeKinds }

func (t timeType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	res := reduce(aggregate.RangeKinds, clockReducer, values, kind)
	if kind == core.AggMin || kind == core.AggMax {
		if secs, ok := res.AsNumber(); ok {
			return storeClock(int(secs))
		}
	}
	return res
}

func (t timeType) Export(v core.Value, _ core.Config) string {
	secs, ok := clockSeconds(v)
	if !ok {
		return ""
	}
	return textOf(storeClock(secs))
}

func (t timeType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	v := t.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not a time of day", s)
	}
	return v, nil
}

// durationType stores a length of time in seconds.
type durationType struct {
	base
}

// Duration is the elapsed-time type.
func Duration() core.Definition {
	return durationType{base{meta: core.Meta{
		ID:            "duration",
		Name:          "Duration",
		Description:   "Length of time",
		Category:      core.CategoryDatetime,
		Icon:          "timer",
		DefaultConfig: core.Config{"format": "long"},
	}}}
}

// parseDuration accepts Go duration strings ("1h30m"), clock notation
// ("1:30", "1:30:15") and plain seconds.
func parseDuration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if d, err := time.ParseDuration(strings.ReplaceAll(s, " ", "")); err == nil {
		return d.Seconds(), true
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + float64(n)
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, true
}

func formatDuration(secs float64, style string) string {
	sign := ""
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	total := int64(math.Round(secs))
	h, m, s := total/3600, total%3600/60, total%60
	switch style {
	case "h:mm":
		return fmt.Sprintf("%s%d:%02d", sign, h, m)
	case "h:mm:ss":
		return fmt.Sprintf("%s%d:%02d:%02d", sign, h, m, s)
	}
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return sign + strings.Join(parts, " ")
}

func (d durationType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "duration", Text: d.Format(v, cfg)}
}

func (d durationType) Format(v core.Value, cfg core.Config) string {
	secs, ok := schema.ToFloat(v)
	if !ok {
		return ""
	}
	return formatDuration(secs, d.config(cfg).String("format", "long"))
}

func (d durationType) Parse(input string, _ core.Config) core.Value {
	secs, ok := parseDuration(input)
	if !ok {
		return core.Null()
	}
	return core.Number(secs)
}

func (d durationType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() {
		return nil
	}
	secs, ok := v.AsNumber()
	if !ok {
		return core.Invalid("Value must be a duration in seconds")
	}
	if secs < 0 {
		return core.Invalid("Duration must not be negative")
	}
	return nil
}

func (d durationType) Compare(a, b core.Value, _ core.Config) int {
	return compareNumbers(a, b)
}

func (d durationType) Operators() []core.FilterOperator { return numberOperators }

func (d durationType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	if secs, ok := parseDuration(fv.String()); ok && fv.Kind() == core.KindText {
		fv = core.Number(secs)
	}
	return filterNumber(v, fv, op)
}

func (d durationType) SupportedAggregations() []core.AggregationKind { return aggregate.NumericKinds }

func (d durationType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.NumericKinds, numberReducer, values, kind)
}

func (d durationType) Export(v core.Value, _ core.Config) string {
	secs, ok := schema.ToFloat(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(secs, 'f', -1, 64)
}

func (d durationType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	v := d.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not a duration", s)
	}
	return v, nil
}
