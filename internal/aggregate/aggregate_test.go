package aggregate

import (
	"testing"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

var numbers = Reducer{Number: core.Value.AsNumber}

func TestReduceSkipsNulls(t *testing.T) {
	values := []core.Value{core.Number(5), core.Null(), core.Number(15)}

	tests := []struct {
		kind core.AggregationKind
		want core.Value
	}{
		{core.AggSum, core.Number(20)},
		{core.AggAvg, core.Number(10)},
		{core.AggMin, core.Number(5)},
		{core.AggMax, core.Number(15)},
		{core.AggCount, core.Number(3)},
		{core.AggCountEmpty, core.Number(1)},
		{core.AggCountNotEmpty, core.Number(2)},
		{core.AggPercentEmpty, core.Number(33.33)},
		{core.AggPercentNotEmpty, core.Number(66.67)},
	}
	for _, tt := range tests {
		if got := numbers.Reduce(values, tt.kind); !got.Equal(tt.want) {
			t.Fatalf("%s = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestReduceAllNull(t *testing.T) {
	values := []core.Value{core.Null(), core.Null()}
	if got := numbers.Reduce(values, core.AggSum); !got.Equal(core.Number(0)) {
		t.Fatalf("sum of nulls = %v, want 0", got)
	}
	for _, kind := range []core.AggregationKind{core.AggAvg, core.AggMin, core.AggMax} {
		if got := numbers.Reduce(values, kind); !got.IsNull() {
			t.Fatalf("%s of nulls = %v, want null", kind, got)
		}
	}
	if got := numbers.Reduce(nil, core.AggPercentEmpty); !got.Equal(core.Number(0)) {
		t.Fatalf("percent_empty of nothing = %v, want 0", got)
	}
}

func TestReduceHooks(t *testing.T) {
	values := []core.Value{core.Text("A"), core.Text("a"), core.Text(" "), core.Text("b")}

	if got := (Reducer{}).Reduce(values, core.AggCountUnique); !got.Equal(core.Number(4)) {
		t.Fatalf("default count_unique = %v, want 4", got)
	}
	if got := (Reducer{}).Reduce(values, core.AggSum); !got.IsNull() {
		t.Fatalf("sum without Number hook = %v, want null", got)
	}

	folded := Reducer{
		Empty: func(v core.Value) bool { return v.IsEmpty() || v.String() == " " },
		Key: func(v core.Value) string {
			s := v.String()
			if s == "A" {
				return "a"
			}
			return s
		},
	}
	if got := folded.Reduce(values, core.AggCountUnique); !got.Equal(core.Number(2)) {
		t.Fatalf("folded count_unique = %v, want 2", got)
	}
	if got := folded.Reduce(values, core.AggCountEmpty); !got.Equal(core.Number(1)) {
		t.Fatalf("folded count_empty = %v, want 1", got)
	}
}

func TestRound(t *testing.T) {
	if got := Round(2.346, 2); got != 2.35 {
		t.Fatalf("Round(2.346, 2) = %v", got)
	}
	if got := Round(1234.5, 0); got != 1235 {
		t.Fatalf("Round(1234.5, 0) = %v", got)
	}
}

func TestColumnWithoutAggregator(t *testing.T) {
	if got := Column(nil, []core.Value{core.Number(1)}, core.AggSum, nil); !got.IsNull() {
		t.Fatalf("Column(nil) = %v, want null", got)
	}
}

func TestKindSets(t *testing.T) {
	if len(NumericKinds) != len(CountKinds)+4 || len(RangeKinds) != len(CountKinds)+2 {
		t.Fatalf("kind sets: numeric %d, range %d, count %d", len(NumericKinds), len(RangeKinds), len(CountKinds))
	}
}
