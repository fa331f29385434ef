package coltype

import (
	"errors"
	"sort"
	"testing"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

func TestBuiltinsCatalog(t *testing.T) {
	defs := Builtins()
	if len(defs) != 42 {
		t.Fatalf("Builtins() has %d types, want 42", len(defs))
	}
	seen := make(map[string]bool)
	for _, d := range defs {
		m := d.Meta()
		if m.ID == "" || m.Name == "" || m.Category == "" {
			t.Fatalf("incomplete meta: %+v", m)
		}
		if seen[m.ID] {
			t.Fatalf("duplicate type id %q", m.ID)
		}
		seen[m.ID] = true
		if d.Format(core.Null(), nil) != "" {
			t.Fatalf("%s: Format(null) is not empty", m.ID)
		}
	}

	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !reg.Frozen() || reg.Count() != 42 {
		t.Fatalf("registry frozen=%v count=%d", reg.Frozen(), reg.Count())
	}
}

func TestMetaIsACopy(t *testing.T) {
	m := Currency().Meta()
	m.DefaultConfig["symbol"] = "€"
	if got := Currency().Format(core.Number(1), nil); got != "$1.00" {
		t.Fatalf("mutating Meta leaked into defaults: %q", got)
	}
}

func TestNumericFormat(t *testing.T) {
	tests := []struct {
		def  core.Definition
		v    float64
		cfg  core.Config
		want string
	}{
		{Number(), 1234.5, nil, "1,234.5"},
		{Number(), 1234.5, core.Config{"locale": "de"}, "1.234,5"},
		{Number(), 7, core.Config{"prefix": "#", "decimals": 1}, "#7.0"},
		{Number(), 1234.5, core.Config{"thousandsSeparator": false}, "1234.5"},
		{Decimal(), 3, nil, "3.00"},
		{Currency(), -1234.5, nil, "-$1,234.50"},
		{Currency(), 12.5, core.Config{"symbol": "", "currency": "EUR"}, "EUR 12.50"},
		{Percent(), 12.5, nil, "12.5%"},
	}
	for _, tt := range tests {
		if got := tt.def.Format(core.Number(tt.v), tt.cfg); got != tt.want {
			t.Fatalf("%s.Format(%v, %v) = %q, want %q", tt.def.Meta().ID, tt.v, tt.cfg, got, tt.want)
		}
	}
}

func TestNumericParseAndValidate(t *testing.T) {
	p := Currency().(core.Parser)
	if got := p.Parse("$1,200.50", nil); !got.Equal(core.Number(1200.5)) {
		t.Fatalf("Parse($1,200.50) = %v", got)
	}
	if got := p.Parse("(15)", nil); !got.Equal(core.Number(-15)) {
		t.Fatalf("Parse((15)) = %v", got)
	}
	if got := p.Parse("abc", nil); !got.IsNull() {
		t.Fatalf("Parse(abc) = %v, want null", got)
	}

	v := Percent().(core.Validator)
	if err := v.Validate(core.Number(150), nil); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("Validate(150%%) = %v, want ErrInvalidValue", err)
	}
	if err := v.Validate(core.Text("50"), nil); err == nil {
		t.Fatalf("Validate(text) succeeded")
	}
	if err := Currency().(core.ConfigValidator).ValidateConfig(core.Config{"currency": "XYZ1"}); err == nil {
		t.Fatalf("unknown currency code accepted")
	}
}

func TestCheckbox(t *testing.T) {
	def := Checkbox()
	if got := def.(core.Parser).Parse("Yes", nil); !got.Equal(core.Bool(true)) {
		t.Fatalf("Parse(Yes) = %v", got)
	}
	if got := def.Format(core.Bool(false), nil); got != "No" {
		t.Fatalf("Format(false) = %q", got)
	}
	values := []core.Value{core.Bool(true), core.Bool(false), core.Null(), core.Bool(true)}
	if got := def.(core.Aggregator).Aggregate(values, core.AggCountNotEmpty, nil); !got.Equal(core.Number(2)) {
		t.Fatalf("checked count = %v, want 2", got)
	}
}

func sortValues(def core.Definition, cfg core.Config, values []core.Value) []string {
	s := def.(core.Sorter)
	sort.SliceStable(values, func(i, j int) bool { return s.Compare(values[i], values[j], cfg) < 0 })
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

func TestSelectionSort(t *testing.T) {
	cfg := core.Config{"options": []any{"todo", "doing", "done"}, "allowCustom": true}
	got := sortValues(Dropdown(), cfg, []core.Value{core.Text("done"), core.Null(), core.Text("zzz"), core.Text("todo")})
	want := []string{"todo", "done", "zzz", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dropdown order = %q, want %q", got, want)
		}
	}

	got = sortValues(Priority(), nil, []core.Value{core.Text("low"), core.Text("urgent"), core.Null(), core.Text("medium")})
	want = []string{"urgent", "medium", "low", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("priority order = %q, want %q", got, want)
		}
	}
}

func TestSelectionParseAndValidate(t *testing.T) {
	def := Status()
	if got := def.(core.Parser).Parse("in progress", nil); !got.Equal(core.Text("in_progress")) {
		t.Fatalf("Parse by label = %v", got)
	}
	if got := def.Format(core.Text("done"), nil); got != "Done" {
		t.Fatalf("Format(done) = %q", got)
	}
	if err := def.(core.Validator).Validate(core.Text("shipped"), nil); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("Validate(shipped) = %v", err)
	}
	if err := Dropdown().(core.ConfigValidator).ValidateConfig(core.Config{"options": []any{"a", "a"}}); err == nil {
		t.Fatalf("duplicate options accepted")
	}
}

func TestRating(t *testing.T) {
	def := Rating()
	if got := def.Format(core.Number(3), nil); got != "★★★☆☆" {
		t.Fatalf("Format(3) = %q", got)
	}
	if got := def.(core.Parser).Parse("4/5", nil); !got.Equal(core.Number(4)) {
		t.Fatalf("Parse(4/5) = %v", got)
	}
	v := def.(core.Validator)
	if err := v.Validate(core.Number(3.5), nil); err == nil {
		t.Fatalf("half star accepted without allowHalf")
	}
	if err := v.Validate(core.Number(3.5), core.Config{"allowHalf": true}); err != nil {
		t.Fatalf("half star with allowHalf: %v", err)
	}
	values := []core.Value{core.Number(4), core.Number(5), core.Null(), core.Number(4)}
	if got := def.(core.Aggregator).Aggregate(values, core.AggAvg, nil); !got.Equal(core.Number(4.3)) {
		t.Fatalf("avg = %v, want 4.3", got)
	}
}

func TestRelation(t *testing.T) {
	def := Relation()
	v := core.List(Link("r1", "Alpha"), Link("r2", ""))
	if got := def.Format(v, nil); got != "Alpha, r2" {
		t.Fatalf("Format = %q", got)
	}

	exp := def.(core.Exporter).Export(v, nil)
	back, err := def.(core.Importer).Import(exp, nil)
	if err != nil || !back.Equal(v) {
		t.Fatalf("Import(Export) = %v, %v; want %v", back, err, v)
	}
	ids, err := def.(core.Importer).Import("a, b", nil)
	if err != nil || len(ids.Items()) != 2 {
		t.Fatalf("Import(a, b) = %v, %v", ids, err)
	}

	agg := def.(core.Aggregator)
	values := []core.Value{v, core.List(Link("r1", "Alpha")), core.Null()}
	if got := agg.Aggregate(values, core.AggCount, nil); !got.Equal(core.Number(3)) {
		t.Fatalf("count = %v, want 3", got)
	}
	if got := agg.Aggregate(values, core.AggCountUnique, nil); !got.Equal(core.Number(2)) {
		t.Fatalf("count_unique = %v, want 2", got)
	}
	if got := agg.Aggregate(values, core.AggCountEmpty, nil); !got.Equal(core.Number(1)) {
		t.Fatalf("count_empty = %v, want 1", got)
	}

	if err := def.(core.Validator).Validate(v, core.Config{"allowMultiple": false}); err == nil {
		t.Fatalf("two links accepted with allowMultiple=false")
	}
}

func TestDates(t *testing.T) {
	def := Date()
	if got := def.(core.Parser).Parse("Mar 5, 2024", nil); !got.Equal(core.Text("2024-03-05")) {
		t.Fatalf("Parse = %v", got)
	}
	if got := def.Format(core.Text("2024-03-05"), nil); got != "Mar 5, 2024" {
		t.Fatalf("Format = %q", got)
	}
	values := []core.Value{core.Text("2024-03-05"), core.Null(), core.Text("2024-01-01")}
	if got := def.(core.Aggregator).Aggregate(values, core.AggMin, nil); !got.Equal(core.Text("2024-01-01")) {
		t.Fatalf("min = %v", got)
	}
	if core.Supports(def, core.AggSum) {
		t.Fatalf("date declares sum")
	}
}

func TestAutoFill(t *testing.T) {
	tests := []struct {
		def  core.Definition
		cur  core.Value
		dir  core.FillDirection
		cfg  core.Config
		want core.Value
	}{
		{Text(), core.Text("Item 09"), core.FillForward, nil, core.Text("Item 10")},
		{Text(), core.Text("Row 1"), core.FillBackward, nil, core.Text("Row 0")},
		{Text(), core.Text("plain"), core.FillForward, nil, core.Text("plain")},
		{Number(), core.Number(10), core.FillForward, core.Config{"step": 5}, core.Number(15)},
		{Date(), core.Text("2024-02-28"), core.FillForward, nil, core.Text("2024-02-29")},
	}
	for _, tt := range tests {
		got := tt.def.(core.AutoFiller).AutoFillNext(tt.cur, tt.dir, tt.cfg)
		if !got.Equal(tt.want) {
			t.Fatalf("%s.AutoFillNext(%v) = %v, want %v", tt.def.Meta().ID, tt.cur, got, tt.want)
		}
	}
}

func TestContactAndNetwork(t *testing.T) {
	email := Email().(core.Validator)
	if err := email.Validate(core.Text("a@b.co"), nil); err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
	if err := email.Validate(core.Text("nope"), nil); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("invalid email: %v", err)
	}
	if got := URL().(core.Parser).Parse("example.com", nil); !got.Equal(core.Text("https://example.com")) {
		t.Fatalf("URL Parse = %v", got)
	}

	ip := IPAddress()
	if err := ip.(core.Validator).Validate(core.Text("300.1.1.1"), nil); err == nil {
		t.Fatalf("invalid address accepted")
	}
	if err := ip.(core.Validator).Validate(core.Text("::1"), core.Config{"version": "v4"}); err == nil {
		t.Fatalf("IPv6 accepted for v4 column")
	}
	if !ip.(core.Filterer).Filter(core.Text("10.1.2.3"), core.Text("10.0.0.0/8"), core.OpContains, nil) {
		t.Fatalf("subnet filter did not match")
	}
	got := sortValues(ip, nil, []core.Value{core.Text("10.0.0.10"), core.Text("10.0.0.9")})
	if got[0] != "10.0.0.9" {
		t.Fatalf("address order = %q", got)
	}
}

func TestCapabilities(t *testing.T) {
	if c := core.CapabilitiesOf(Text()); !c.AutoFill || !c.Parse || !c.Aggregate {
		t.Fatalf("text capabilities = %+v", c)
	}
	if c := core.CapabilitiesOf(Button()); c.Parse || c.Aggregate {
		t.Fatalf("button capabilities = %+v", c)
	}
}

func TestFormatIsTotalForUncheckedConfigs(t *testing.T) {
	values := []core.Value{
		core.Null(), core.Text("x"), core.Number(3), core.Number(-1), core.Number(1e9),
		core.Bool(true), core.List(core.Text("a")), core.Object(map[string]core.Value{"k": core.Number(1)}),
	}
	configs := []core.Config{
		nil,
		{"max": -1},
		{"max": 0},
		{"max": 1e9},
		{"decimals": 1e9},
		{"decimals": -3},
		{"digits": 1e9},
		{"digits": -4},
		{"locale": "not a locale"},
	}
	for _, def := range Builtins() {
		for _, cfg := range configs {
			for _, v := range values {
				func() {
					defer func() {
						if r := recover(); r != nil {
							t.Fatalf("%s.Format(%v, %v) panicked: %v", def.Meta().ID, v, cfg, r)
						}
					}()
					if got := def.Format(v, cfg); len(got) > 4096 {
						t.Fatalf("%s.Format(%v, %v) is %d bytes", def.Meta().ID, v, cfg, len(got))
					}
				}()
			}
		}
	}

	if got := Rating().Format(core.Number(3), core.Config{"max": -1}); got != "★" {
		t.Fatalf("rating with max -1 = %q, want one star", got)
	}
	if got := Rating().Format(core.Number(3), core.Config{"max": 1e9}); got != "★★★☆☆☆☆☆☆☆" {
		t.Fatalf("rating with huge max = %q, want ten stars", got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	type sample struct {
		cfg core.Config
		v   core.Value
	}
	obj := func(kv ...any) core.Value {
		m := make(map[string]core.Value)
		for i := 0; i < len(kv); i += 2 {
			m[kv[i].(string)] = kv[i+1].(core.Value)
		}
		return core.Object(m)
	}
	texts := func(ss ...string) core.Value {
		items := make([]core.Value, len(ss))
		for i, s := range ss {
			items[i] = core.Text(s)
		}
		return core.List(items...)
	}
	numbers := []sample{{v: core.Number(-1234.5)}, {v: core.Number(0.1)}, {v: core.Number(7)}}
	people := []sample{{v: core.Text("u1")}, {v: core.Text("doe, jane")}}
	links := []sample{{v: core.Text("https://example.com/a?b=c,d")}, {v: core.Text("http://example.com/")}}

	samples := map[string][]sample{
		"text":      {{v: core.Text(" padded ")}, {v: core.Text(`say "hi", twice`)}},
		"long_text": {{v: core.Text("line one\nline two")}},
		"number":    numbers,
		"decimal":   numbers,
		"currency":  numbers,
		"percent":   numbers,
		"checkbox":  {{v: core.Bool(true)}, {v: core.Bool(false)}},
		"multi_select": {{
			cfg: core.Config{"options": []core.Option{{ID: "red", Label: "Red"}, {ID: "blue", Label: "Blue"}}},
			v:   texts("blue", "red"),
		}},
		"tags":     {{v: texts("x", "y,z")}, {v: texts(`q"uote`)}},
		"date":     {{v: core.Text("2024-03-05")}},
		"datetime": {{v: core.Text("2024-03-05T10:30:00Z")}},
		"time":     {{v: core.Text("09:30")}, {v: core.Text("23:59:15")}},
		"duration": {{v: core.Number(5400)}, {v: core.Number(1.5)}},
		"user": {
			{v: core.Text("x")},
			{v: core.Text("doe, jane")},
			{cfg: core.Config{"multiple": true}, v: texts("x")},
			{cfg: core.Config{"multiple": true}, v: texts("x", "a,b")},
		},
		"created_by":  people,
		"modified_by": people,
		"attachment":  {{v: core.List(obj("url", core.Text("https://files.example.com/a,b.pdf"), "name", core.Text("a,b.pdf")))}},
		"image":       {{v: core.List(obj("url", core.Text("https://files.example.com/cat.png")))}},
		"email":       {{v: core.Text("a@b.co")}},
		"phone":       {{v: core.Text("+1 555 0100")}},
		"url":         links,
		"location": {
			{v: obj("address", core.Text("1 Main St, Springfield"), "lat", core.Number(12.5), "lng", core.Number(-45))},
			{v: obj("address", core.Text("Nowhere"))},
		},
		"json": {
			{v: texts("x")},
			{v: obj("k", core.Number(1), "nested", core.List(core.Bool(true), core.Null()))},
			{v: core.Text(`"just a string"`)},
			{v: core.Text("42")},
		},
		"code":     {{v: core.Text("fmt.Println(1, 2)\n")}},
		"relation": {{v: core.List(Link("r1", "First"), Link("r,2", "Second, again"))}},
		"rating":   {{v: core.Number(3)}, {cfg: core.Config{"allowHalf": true}, v: core.Number(2.5)}},
		"progress": {{v: core.Number(42.5)}, {v: core.Number(100)}},
		"vote":     {{v: obj("count", core.Number(2), "voters", texts("u1", "u2"))}},
		"color":    {{v: core.Text("#ff0000")}, {v: core.Text("#0F0")}},
		"barcode":  {{v: core.Text("0123456789012")}},
		"ip_address": {{v: core.Text("192.168.0.1")}, {v: core.Text("2001:db8::1")}},
	}

	for _, def := range Builtins() {
		id := def.Meta().ID
		exp, canExport := def.(core.Exporter)
		imp, canImport := def.(core.Importer)
		if !canExport || !canImport {
			continue
		}
		cases, ok := samples[id]
		if !ok {
			t.Fatalf("%s exports and imports but has no round-trip samples", id)
		}
		cases = append(cases, sample{v: core.Null()})
		for _, c := range cases {
			if val, ok := def.(core.Validator); ok {
				if err := val.Validate(c.v, c.cfg); err != nil {
					t.Fatalf("%s sample %v is invalid: %v", id, c.v, err)
				}
			}
			s := exp.Export(c.v, c.cfg)
			got, err := imp.Import(s, c.cfg)
			if err != nil {
				t.Fatalf("%s.Import(%q) error: %v", id, s, err)
			}
			if !got.Equal(c.v) {
				t.Fatalf("%s round trip of %v through %q = %v", id, c.v, s, got)
			}
		}
	}
}
