package coltype

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
)

// jsonType stores a JSON document. Arrays and objects are held as list and
// object cells; scalar documents are held as their JSON text. A text cell
// carrying an array or object is accepted and normalizes to the structured
// form on parse and import.
type jsonType struct {
	base
}

// JSON is the structured-data type.
func JSON() core.Definition {
	return jsonType{base{meta: core.Meta{
		ID:            "json",
		Name:          "JSON",
		Description:   "Structured JSON document",
		Category:      core.CategoryCode,
		Icon:          "braces",
		DefaultConfig: core.Config{"pretty": false},
	}}}
}

// document returns the JSON text of v.
func document(v core.Value) string {
	switch v.Kind() {
	case core.KindNull:
		return ""
	case core.KindText:
		s, _ := v.AsText()
		return s
	default:
		return exportJSON(v)
	}
}

func (j jsonType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "code", Text: j.Format(v, cfg), Icon: "braces"}
}

// Format compacts (or indents, with "pretty") valid documents and returns
// malformed text unchanged.
func (j jsonType) Format(v core.Value, cfg core.Config) string {
	doc := document(v)
	if doc == "" {
		return ""
	}
	var buf bytes.Buffer
	var err error
	if j.config(cfg).Bool("pretty", false) {
		err = json.Indent(&buf, []byte(doc), "", "  ")
	} else {
		err = json.Compact(&buf, []byte(doc))
	}
	if err != nil {
		return doc
	}
	return buf.String()
}

func (j jsonType) Parse(input string, _ core.Config) core.Value {
	v, err := decodeDocument(input)
	if err != nil {
		return core.Null()
	}
	return v
}

// decodeDocument turns JSON text into a cell value: arrays and objects
// become structured, anything else stays text.
func decodeDocument(s string) (core.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Null(), nil
	}
	if !json.Valid([]byte(s)) {
		return core.Null(), core.Invalid("Value is not valid JSON")
	}
	if s[0] == '[' || s[0] == '{' {
		return importJSON(s)
	}
	return core.Text(s), nil
}

func (j jsonType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() || v.Kind() == core.KindList || v.Kind() == core.KindObject {
		return nil
	}
	s, ok := v.AsText()
	if !ok {
		return core.Invalid("Value must be a JSON document")
	}
	if strings.TrimSpace(s) != "" && !json.Valid([]byte(s)) {
		return core.Invalid("Value is not valid JSON")
	}
	return nil
}

func (j jsonType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpContains, core.OpNotContains, core.OpIsEmpty, core.OpIsNotEmpty}
}

func (j jsonType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterText(document(v), v.IsEmpty(), fv, op)
}

// Documents are compared in compact form for count_unique.
var jsonReducer = aggregate.Reducer{Key: func(v core.Value) string {
	doc := document(v)
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(doc)); err != nil {
		return doc
	}
	return buf.String()
}}

func (j jsonType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (j jsonType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, jsonReducer, values, kind)
}

func (j jsonType) Export(v core.Value, _ core.Config) string { return document(v) }

func (j jsonType) Import(s string, _ core.Config) (core.Value, error) {
	return decodeDocument(s)
}

// codeType stores source code with a syntax hint.
type codeType struct {
	base
}

// Code is a source snippet.
func Code() core.Definition {
	return codeType{base{meta: core.Meta{
		ID:            "code",
		Name:          "Code",
		Description:   "Source code snippet",
		Category:      core.CategoryCode,
		Icon:          "code",
		DefaultConfig: core.Config{"language": "plaintext", "lineNumbers": true},
	}}}
}

func (c codeType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "code", Text: c.Format(v, cfg), Icon: c.config(cfg).String("language", "plaintext")}
}

func (c codeType) Format(v core.Value, _ core.Config) string { return textOf(v) }

func (c codeType) Parse(input string, _ core.Config) core.Value { return textImport(input) }

func (c codeType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	s, ok := v.AsText()
	if !ok {
		return core.Invalid("Value must be text")
	}
	if max := c.config(cfg).Int("maxLength", 0); max > 0 && len(s) > max {
		return core.Invalid("Code exceeds maximum length of %d characters", max)
	}
	return nil
}

func (c codeType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpContains, core.OpNotContains, core.OpIsEmpty, core.OpIsNotEmpty}
}

func (c codeType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterText(textOf(v), v.IsEmpty(), fv, op)
}

func (c codeType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (c codeType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

func (c codeType) Export(v core.Value, _ core.Config) string { return textOf(v) }

func (c codeType) Import(s string, _ core.Config) (core.Value, error) { return textImport(s), nil }
