package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

// timeLayouts are tried in order when reading dates from text.
var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TypeMapper handles mapping between SQL driver values and cell values.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// FromDriverValue converts a value scanned from database/sql into a cell
// value. NULLs and sql.Null* wrappers map to null.
func (tm *TypeMapper) FromDriverValue(raw any) (core.Value, error) {
	if raw == nil {
		return core.Null(), nil
	}

	if valuer, ok := raw.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return core.Null(), fmt.Errorf("read driver value: %w", err)
		}
		if val == nil {
			return core.Null(), nil
		}
		raw = val
	}

	switch v := raw.(type) {
	case []byte:
		return core.Text(string(v)), nil
	case time.Time:
		return core.Text(v.UTC().Format(time.RFC3339)), nil
	default:
		return core.FromAny(v), nil
	}
}

// ToDriverValue converts a cell value into a database/sql argument.
// Lists and objects are stored as JSON text.
func (tm *TypeMapper) ToDriverValue(v core.Value) (driver.Value, error) {
	switch v.Kind() {
	case core.KindNull:
		return nil, nil
	case core.KindText:
		s, _ := v.AsText()
		return s, nil
	case core.KindNumber:
		n, _ := v.AsNumber()
		return n, nil
	case core.KindBool:
		b, _ := v.AsBool()
		return b, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot marshal %s value to JSON: %w", v.Kind(), err)
		}
		return string(data), nil
	}
}

// ToFloat reads a number from a numeric value or numeric text.
func ToFloat(v core.Value) (float64, bool) {
	switch v.Kind() {
	case core.KindNumber:
		return v.AsNumber()
	case core.KindText:
		s, _ := v.AsText()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToBool reads a boolean from bools, "true"/"false"/"1"/"0" text and numbers.
func ToBool(v core.Value) (bool, bool) {
	switch v.Kind() {
	case core.KindBool:
		return v.AsBool()
	case core.KindNumber:
		n, _ := v.AsNumber()
		return n != 0, true
	case core.KindText:
		s, _ := v.AsText()
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// ToTime reads a timestamp from text in one of the supported layouts, or
// from a number of Unix seconds.
func ToTime(v core.Value) (time.Time, bool) {
	switch v.Kind() {
	case core.KindText:
		s, _ := v.AsText()
		return ParseTime(s)
	case core.KindNumber:
		n, _ := v.AsNumber()
		return time.Unix(int64(n), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// ParseTime parses text in the supported layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToIDs reads a list of identifiers: text items, or objects carrying an
// "id" field (relation links, users). A bare text value is a single id.
func ToIDs(v core.Value) []string {
	switch v.Kind() {
	case core.KindText:
		s, _ := v.AsText()
		if s == "" {
			return nil
		}
		return []string{s}
	case core.KindObject:
		if id, ok := v.Field("id").AsText(); ok && id != "" {
			return []string{id}
		}
		return nil
	case core.KindList:
		var ids []string
		for _, item := range v.Flatten() {
			ids = append(ids, ToIDs(item)...)
		}
		return ids
	default:
		return nil
	}
}
