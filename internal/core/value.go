package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Kind is the shape of a cell value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindList
	KindObject
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a single cell: one column in one row.
// Only the field matching kind is meaningful. Lists hold ordered values such
// as relation links or attachment entries; objects hold tagged shapes such as
// {count, voters} for votes or {address, lat, lng} for locations.
type Value struct {
	kind Kind

	s    string
	n    float64
	b    bool
	list []Value
	obj  map[string]Value
}

// Null returns the absent value.
func Null() Value { return Value{} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Number returns a numeric value. NaN and infinities collapse to null.
func Number(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, n: n}
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list value. The slice is copied.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Object returns an object value. The map is copied.
func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

// Kind reports the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsText returns the text payload.
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// Items returns the list payload, or nil for non-lists.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Field returns a field of an object value, or null.
func (v Value) Field(name string) Value {
	if v.kind != KindObject {
		return Value{}
	}
	return v.obj[name]
}

// Fields returns the field names of an object value in sorted order.
func (v Value) Fields() []string {
	if v.kind != KindObject {
		return nil
	}
	names := make([]string, 0, len(v.obj))
	for k := range v.obj {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether the value carries no content: null, empty text,
// an empty list or an empty object.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.s == ""
	case KindList:
		return len(v.list) == 0
	case KindObject:
		return len(v.obj) == 0
	default:
		return false
	}
}

// Flatten returns the leaves of nested lists in order. Non-list values are
// returned as a single-element slice; null yields nothing.
func (v Value) Flatten() []Value {
	switch v.kind {
	case KindNull:
		return nil
	case KindList:
		out := make([]Value, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Flatten()...)
		}
		return out
	default:
		return []Value{v}
	}
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, fv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the value canonically: text as-is, numbers in shortest
// form, lists and objects as JSON, null as "".
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindText:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		data, err := json.Marshal(v.Any())
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Any converts the value to plain Go data (nil, string, float64, bool,
// []any, map[string]any).
func (v Value) Any() any {
	switch v.kind {
	case KindText:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts decoded JSON/YAML data or plain Go scalars into a Value.
// Unsupported types are rendered with fmt and stored as text.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return Text(t)
	case []byte:
		return Text(string(t))
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Text(t.String())
		}
		return Number(f)
	case time.Time:
		return Text(t.UTC().Format(time.RFC3339))
	case []Value:
		return List(t...)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Value{kind: KindList, list: items}
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = Text(item)
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromAny(item)
		}
		return Value{kind: KindObject, obj: fields}
	case map[string]Value:
		return Object(t)
	case map[any]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[fmt.Sprint(k)] = FromAny(item)
		}
		return Value{kind: KindObject, obj: fields}
	default:
		return Text(fmt.Sprint(t))
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode cell value: %w", err)
	}
	*v = FromAny(raw)
	return nil
}
