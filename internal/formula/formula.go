// Package formula parses and evaluates formula column expressions such as
// "{price} * {qty}" or "IF({done}, 'yes', 'no')". Evaluation never panics:
// every failure becomes the ErrorMarker cell value.
package formula

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

// ErrorMarker is the cell value of a formula that failed to evaluate.
const ErrorMarker = "#ERROR"

// ErrorValue returns the error marker as a cell value.
func ErrorValue() core.Value {
	return core.Text(ErrorMarker)
}

// IsError reports whether v is the error marker.
func IsError(v core.Value) bool {
	s, ok := v.AsText()
	return ok && s == ErrorMarker
}

// Program is a compiled expression. It is immutable and safe for
// concurrent use.
type Program struct {
	source string
	root   Node
	fields []string
}

// Compile parses expr.
func Compile(expr string) (*Program, error) {
	root, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return &Program{source: expr, root: root, fields: collectFields(root)}, nil
}

// Source returns the expression text.
func (p *Program) Source() string { return p.source }

// Fields returns the distinct placeholder names, sorted.
func (p *Program) Fields() []string {
	return append([]string(nil), p.fields...)
}

// Eval evaluates the program, returning the first error encountered.
func (p *Program) Eval(env Env) (core.Value, error) {
	return evaluator{env: env}.eval(p.root)
}

// Run evaluates the program, mapping any error to ErrorMarker.
func (p *Program) Run(env Env) core.Value {
	v, err := p.Eval(env)
	if err != nil {
		return ErrorValue()
	}
	return v
}

func collectFields(root Node) []string {
	seen := make(map[string]struct{})
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case FieldRef:
			seen[n.Name] = struct{}{}
		case Unary:
			walk(n.Operand)
		case Binary:
			walk(n.Left)
			walk(n.Right)
		case Call:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(root)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Cache memoizes compiled programs by source text. When it reaches its
// capacity it is emptied and refilled.
type Cache struct {
	mu       sync.RWMutex
	programs map[string]*Program
	capacity int
}

// NewCache creates a cache holding up to capacity programs.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache{programs: make(map[string]*Program), capacity: capacity}
}

// Compile returns the cached program for expr, compiling it on a miss.
// Compile errors are not cached.
func (c *Cache) Compile(expr string) (*Program, error) {
	c.mu.RLock()
	p, ok := c.programs[expr]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.programs) >= c.capacity {
		c.programs = make(map[string]*Program)
	}
	c.programs[expr] = p
	c.mu.Unlock()
	return p, nil
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

var defaultCache = NewCache(1024)

// Evaluate evaluates expr for row. ROW_INDEX is the 1-based position of the
// row within allRows (matched by row id), or 0 when it is absent. Any
// failure yields the ErrorMarker value.
func Evaluate(expr string, row core.Row, allRows []core.Row) core.Value {
	p, err := defaultCache.Compile(expr)
	if err != nil {
		return ErrorValue()
	}
	return p.Run(RowEnv(row, allRows))
}

// RowEnv binds a row's cells (keyed by column id) and its position.
func RowEnv(row core.Row, allRows []core.Row) Env {
	index := 0
	for i, r := range allRows {
		if r.ID == row.ID {
			index = i + 1
			break
		}
	}
	return MapEnv{Fields: row.Cells, Index: index}
}

// Coerce converts a result to the column's return type. Numeric return
// types accept numeric text and booleans; anything else is kept as is and
// formatted as text.
func Coerce(v core.Value, returnType string) core.Value {
	if IsError(v) {
		return v
	}
	switch returnType {
	case "number", "currency", "percent":
		if v.Kind() == core.KindText || v.Kind() == core.KindBool {
			if f, err := toNumber(v); err == nil && !(v.Kind() == core.KindText && strings.TrimSpace(v.String()) == "") {
				return core.Number(f)
			}
		}
	case "text":
		if v.Kind() != core.KindNull && v.Kind() != core.KindText {
			return core.Text(v.String())
		}
	}
	return v
}

// Validate compiles expr and checks every placeholder against known.
func Validate(expr string, known func(name string) bool) error {
	p, err := Compile(expr)
	if err != nil {
		return err
	}
	for _, name := range p.Fields() {
		if !known(name) {
			return fmt.Errorf("%w %q", ErrUnknownField, name)
		}
	}
	return nil
}
