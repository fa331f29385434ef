package formula

import (
	"errors"
	"strings"
	"testing"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

func env(fields map[string]core.Value) MapEnv {
	return MapEnv{Fields: fields, Index: 2}
}

func TestEval(t *testing.T) {
	fields := map[string]core.Value{
		"price":     core.Number(10),
		"qty":       core.Number(3),
		"unit cost": core.Number(4),
		"name":      core.Text("ink"),
		"done":      core.Bool(true),
		"tags":      core.List(core.Number(1), core.Number(2), core.Null()),
		"blank":     core.Null(),
	}

	tests := []struct {
		expr string
		want core.Value
	}{
		{"{price} * {qty}", core.Number(30)},
		{"{price} - {qty} * 2", core.Number(4)},
		{"({price} - {qty}) * 2", core.Number(14)},
		{"-{qty} + 1", core.Number(-2)},
		{"{ unit cost } / 2", core.Number(2)},
		{"{price} % 4", core.Number(2)},
		{"SUM({price}, {qty})", core.Number(13)},
		{"sum({tags}, 1)", core.Number(4)},
		{"AVG({price}, {qty}, {unit cost})", core.Number(17.0 / 3)},
		{"AVG({blank})", core.Null()},
		{"IF({done}, 'yes', 'no')", core.Text("yes")},
		{"IF({qty} > 5, 'big')", core.Null()},
		{"{name} + '-' + ROW_INDEX", core.Text("ink-2")},
		{"{blank} + 1", core.Number(1)},
		{"{price} >= 10 && !{blank}", core.Bool(true)},
		{"{name} == \"ink\"", core.Bool(true)},
		{"1e2 + .5", core.Number(100.5)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got, err := p.Eval(env(fields))
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("= %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	fields := map[string]core.Value{
		"a":    core.Number(1),
		"zero": core.Number(0),
		"bad":  ErrorValue(),
		"word": core.Text("abc"),
	}

	tests := []struct {
		expr string
		want error
	}{
		{"{missing} + 1", ErrUnknownField},
		{"{a} / {zero}", ErrDivisionByZero},
		{"{a} % 0", ErrDivisionByZero},
		{"{bad} * 2", ErrFieldError},
		{"{word} * 2", ErrTypeMismatch},
		{"NOW()", ErrUnknownFunction},
		{"IF(1)", ErrArity},
		{"SUM()", ErrArity},
		{"other + 1", ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if _, err := p.Eval(env(fields)); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if v := p.Run(env(fields)); !IsError(v) {
				t.Fatalf("Run = %v, want %s", v, ErrorMarker)
			}
		})
	}
}

func TestSyntaxErrors(t *testing.T) {
	for _, expr := range []string{"", "{price} +", "{missing} +", "(1 + 2", "{}", "{open", "'unterminated", "1 # 2", "SUM(1,)"} {
		_, err := Compile(expr)
		var syn *SyntaxError
		if !errors.As(err, &syn) {
			t.Fatalf("Compile(%q) err = %v, want SyntaxError", expr, err)
		}
	}
}

func TestEvaluateRow(t *testing.T) {
	rows := []core.Row{
		{ID: "a", Cells: map[string]core.Value{"n": core.Number(1)}},
		{ID: "b", Cells: map[string]core.Value{"n": core.Number(5)}},
	}
	if got := Evaluate("{n} * 10 + ROW_INDEX", rows[1], rows); !got.Equal(core.Number(52)) {
		t.Fatalf("Evaluate = %v, want 52", got)
	}
	if got := Evaluate("ROW_INDEX", core.Row{ID: "x"}, rows); !got.Equal(core.Number(0)) {
		t.Fatalf("ROW_INDEX of a detached row = %v, want 0", got)
	}
	if got := Evaluate("{n} +", rows[0], rows); !IsError(got) {
		t.Fatalf("malformed expression = %v, want error marker", got)
	}
	if got := Evaluate("{missing} +", rows[0], rows); !IsError(got) {
		t.Fatalf("dangling operator after unknown field = %v, want error marker", got)
	}
}

func TestNestingLimit(t *testing.T) {
	deep := []string{
		strings.Repeat("-", 100000) + "1",
		strings.Repeat("!", maxDepth+1) + "true",
		strings.Repeat("(", 100000) + "1" + strings.Repeat(")", 100000),
		strings.Repeat("SUM(", maxDepth+1) + "1" + strings.Repeat(")", maxDepth+1),
	}
	for _, expr := range deep {
		_, err := Compile(expr)
		var syn *SyntaxError
		if !errors.As(err, &syn) {
			t.Fatalf("Compile(%.20q...) err = %v, want SyntaxError", expr, err)
		}
		if got := Evaluate(expr, core.Row{ID: "r"}, nil); !IsError(got) {
			t.Fatalf("Evaluate(%.20q...) = %v, want error marker", expr, got)
		}
	}

	shallow := []string{
		strings.Repeat("-", maxDepth) + "1",
		strings.Repeat("(", maxDepth) + "1" + strings.Repeat(")", maxDepth),
	}
	for _, expr := range shallow {
		if _, err := Compile(expr); err != nil {
			t.Fatalf("Compile(%.20q...) at the limit: %v", expr, err)
		}
	}
}

func TestFieldsAndValidate(t *testing.T) {
	p, err := Compile("IF({b} > 0, {a}, {b} + {c})")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := p.Fields(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("Fields() = %v", got)
	}

	known := func(name string) bool { return name == "a" || name == "b" }
	if err := Validate("{a} + {b}", known); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate("{a} + {c}", known); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Validate unknown field: %v", err)
	}
}

func TestCoerce(t *testing.T) {
	if got := Coerce(core.Text(" 12.5 "), "number"); !got.Equal(core.Number(12.5)) {
		t.Fatalf("Coerce text to number = %v", got)
	}
	if got := Coerce(core.Text(""), "currency"); !got.Equal(core.Text("")) {
		t.Fatalf("Coerce empty text = %v", got)
	}
	if got := Coerce(core.Number(3), "text"); !got.Equal(core.Text("3")) {
		t.Fatalf("Coerce number to text = %v", got)
	}
	if got := Coerce(ErrorValue(), "number"); !IsError(got) {
		t.Fatalf("Coerce kept error marker: %v", got)
	}
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	p1, err := c.Compile("{a} + 1")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p2, _ := c.Compile("{a} + 1")
	if p1 != p2 {
		t.Fatalf("cache miss on repeated expression")
	}
	if _, err := c.Compile("{a} +"); err == nil {
		t.Fatalf("cached compile of a bad expression succeeded")
	}
	c.Compile("{b}")
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	c.Compile("{c}")
	if c.Len() != 1 {
		t.Fatalf("Len after overflow = %d, want 1", c.Len())
	}
}
