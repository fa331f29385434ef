package core

import (
	"fmt"
	"strconv"
)

// Config is a column configuration. Its shape is specific to the column type
// and arrives from JSON/YAML schema documents, so numeric entries may be any
// Go number type.
type Config map[string]any

// Option is one entry of a selection type's ordered options list.
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	Icon  string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Level int    `json:"level,omitempty" yaml:"level,omitempty"`
}

// Merge overlays overrides on a copy of defaults.
func Merge(defaults, overrides Config) Config {
	out := make(Config, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Has reports whether the key is present and non-nil.
func (c Config) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// String returns a string entry or def.
func (c Config) String(key, def string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Float returns a numeric entry. The bool is false when absent or non-numeric.
func (c Config) Float(key string) (float64, bool) {
	switch v := c[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FloatOr returns a numeric entry or def.
func (c Config) FloatOr(key string, def float64) float64 {
	if f, ok := c.Float(key); ok {
		return f
	}
	return def
}

// Int returns an integer entry or def.
func (c Config) Int(key string, def int) int {
	if f, ok := c.Float(key); ok {
		return int(f)
	}
	return def
}

// Bool returns a boolean entry or def.
func (c Config) Bool(key string, def bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Strings returns a list-of-strings entry.
func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

// Options decodes the "options" entry of selection types. Entries may be
// Option values, maps with id/label/color/icon/level keys, or bare strings
// (used as both id and label).
func (c Config) Options() []Option {
	switch v := c["options"].(type) {
	case []Option:
		return v
	case []any:
		out := make([]Option, 0, len(v))
		for _, item := range v {
			if opt, ok := optionFrom(item); ok {
				out = append(out, opt)
			}
		}
		return out
	case []map[string]any:
		out := make([]Option, 0, len(v))
		for _, item := range v {
			if opt, ok := optionFrom(item); ok {
				out = append(out, opt)
			}
		}
		return out
	case []string:
		out := make([]Option, 0, len(v))
		for _, s := range v {
			out = append(out, Option{ID: s, Label: s})
		}
		return out
	default:
		return nil
	}
}

func optionFrom(item any) (Option, bool) {
	switch t := item.(type) {
	case Option:
		return t, true
	case string:
		return Option{ID: t, Label: t}, true
	case map[string]any:
		m := Config(t)
		opt := Option{
			ID:    m.String("id", ""),
			Label: m.String("label", ""),
			Color: m.String("color", ""),
			Icon:  m.String("icon", ""),
			Level: m.Int("level", 0),
		}
		if opt.ID == "" {
			opt.ID = opt.Label
		}
		if opt.Label == "" {
			opt.Label = opt.ID
		}
		return opt, opt.ID != ""
	case map[any]any:
		conv := make(map[string]any, len(t))
		for k, v := range t {
			conv[fmt.Sprint(k)] = v
		}
		return optionFrom(conv)
	default:
		return Option{}, false
	}
}
