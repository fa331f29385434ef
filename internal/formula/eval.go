package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

var (
	// ErrUnknownField is returned for placeholders the row does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownFunction is returned for calls other than SUM, AVG and IF.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArity is returned when a function gets the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrDivisionByZero is returned by / and % with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrTypeMismatch is returned when an operand cannot be used as a number.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrFieldError is returned when a placeholder holds the error marker,
	// so failures propagate through dependent formulas.
	ErrFieldError = errors.New("referenced field is an error")
)

// RowIndexIdent is the identifier bound to the 1-based row position.
const RowIndexIdent = "ROW_INDEX"

// Env supplies field values to an evaluation.
type Env interface {
	// Field returns the value of a placeholder. The bool is false when the
	// row has no such field.
	Field(name string) (core.Value, bool)

	// RowIndex returns the 1-based position of the row, or 0 if unknown.
	RowIndex() int
}

// MapEnv is an Env over a plain map.
type MapEnv struct {
	Fields map[string]core.Value
	Index  int
}

// Field implements Env.
func (m MapEnv) Field(name string) (core.Value, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

// RowIndex implements Env.
func (m MapEnv) RowIndex() int { return m.Index }

type evaluator struct {
	env Env
}

func (e evaluator) eval(n Node) (core.Value, error) {
	switch n := n.(type) {
	case Literal:
		return n.Value, nil
	case FieldRef:
		v, ok := e.env.Field(n.Name)
		if !ok {
			return core.Null(), fmt.Errorf("%w %q", ErrUnknownField, n.Name)
		}
		if IsError(v) {
			return core.Null(), fmt.Errorf("%w %q", ErrFieldError, n.Name)
		}
		return v, nil
	case Ident:
		if strings.EqualFold(n.Name, RowIndexIdent) {
			return core.Number(float64(e.env.RowIndex())), nil
		}
		return core.Null(), fmt.Errorf("%w %q", ErrUnknownField, n.Name)
	case Unary:
		return e.unary(n)
	case Binary:
		return e.binary(n)
	case Call:
		return e.call(n)
	default:
		return core.Null(), fmt.Errorf("unsupported node %T", n)
	}
}

func (e evaluator) unary(n Unary) (core.Value, error) {
	v, err := e.eval(n.Operand)
	if err != nil {
		return core.Null(), err
	}
	if n.Op == "!" {
		return core.Bool(!truthy(v)), nil
	}
	f, err := toNumber(v)
	if err != nil {
		return core.Null(), err
	}
	return number(-f)
}

func (e evaluator) binary(n Binary) (core.Value, error) {
	left, err := e.eval(n.Left)
	if err != nil {
		return core.Null(), err
	}

	// Logical operators short-circuit.
	switch n.Op {
	case "&&":
		if !truthy(left) {
			return core.Bool(false), nil
		}
		right, err := e.eval(n.Right)
		if err != nil {
			return core.Null(), err
		}
		return core.Bool(truthy(right)), nil
	case "||":
		if truthy(left) {
			return core.Bool(true), nil
		}
		right, err := e.eval(n.Right)
		if err != nil {
			return core.Null(), err
		}
		return core.Bool(truthy(right)), nil
	}

	right, err := e.eval(n.Right)
	if err != nil {
		return core.Null(), err
	}

	switch n.Op {
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(n.Op, left, right)
	case "+":
		if isText(left) || isText(right) {
			return core.Text(left.String() + right.String()), nil
		}
	}

	a, err := toNumber(left)
	if err != nil {
		return core.Null(), err
	}
	b, err := toNumber(right)
	if err != nil {
		return core.Null(), err
	}
	switch n.Op {
	case "+":
		return number(a + b)
	case "-":
		return number(a - b)
	case "*":
		return number(a * b)
	case "/":
		if b == 0 {
			return core.Null(), ErrDivisionByZero
		}
		return number(a / b)
	case "%":
		if b == 0 {
			return core.Null(), ErrDivisionByZero
		}
		return number(math.Mod(a, b))
	default:
		return core.Null(), fmt.Errorf("unsupported operator %q", n.Op)
	}
}

func (e evaluator) call(n Call) (core.Value, error) {
	switch n.Name {
	case "IF":
		if len(n.Args) < 2 || len(n.Args) > 3 {
			return core.Null(), fmt.Errorf("IF: %w: want 2 or 3, got %d", ErrArity, len(n.Args))
		}
		cond, err := e.eval(n.Args[0])
		if err != nil {
			return core.Null(), err
		}
		if truthy(cond) {
			return e.eval(n.Args[1])
		}
		if len(n.Args) == 3 {
			return e.eval(n.Args[2])
		}
		return core.Null(), nil
	case "SUM", "AVG":
		if len(n.Args) == 0 {
			return core.Null(), fmt.Errorf("%s: %w: want at least 1, got 0", n.Name, ErrArity)
		}
		var sum float64
		count := 0
		for _, arg := range n.Args {
			v, err := e.eval(arg)
			if err != nil {
				return core.Null(), err
			}
			for _, item := range v.Flatten() {
				if item.IsNull() {
					continue
				}
				f, err := toNumber(item)
				if err != nil {
					return core.Null(), fmt.Errorf("%s: %w", n.Name, err)
				}
				sum += f
				count++
			}
		}
		if n.Name == "SUM" {
			return number(sum)
		}
		if count == 0 {
			return core.Null(), nil
		}
		return number(sum / float64(count))
	default:
		return core.Null(), fmt.Errorf("%w %s", ErrUnknownFunction, n.Name)
	}
}

// number rejects results that cannot be stored or displayed.
func number(f float64) (core.Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return core.Null(), fmt.Errorf("%w: result is not a finite number", ErrTypeMismatch)
	}
	return core.Number(f), nil
}

// toNumber coerces an operand: null is 0, booleans are 0/1 and numeric
// text is parsed.
func toNumber(v core.Value) (float64, error) {
	switch v.Kind() {
	case core.KindNull:
		return 0, nil
	case core.KindNumber:
		f, _ := v.AsNumber()
		return f, nil
	case core.KindBool:
		if b, _ := v.AsBool(); b {
			return 1, nil
		}
		return 0, nil
	case core.KindText:
		s, _ := v.AsText()
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, s)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s is not a number", ErrTypeMismatch, v.Kind())
	}
}

func isText(v core.Value) bool {
	return v.Kind() == core.KindText
}

func truthy(v core.Value) bool {
	switch v.Kind() {
	case core.KindBool:
		b, _ := v.AsBool()
		return b
	case core.KindNumber:
		f, _ := v.AsNumber()
		return f != 0
	case core.KindNull:
		return false
	default:
		return !v.IsEmpty()
	}
}

// compare orders numbers numerically and text lexically. Mixed operands are
// compared as numbers when the text parses, otherwise as strings.
func compare(op string, a, b core.Value) (core.Value, error) {
	var c int
	switch {
	case a.IsNull() && b.IsNull():
		c = 0
	case isText(a) && isText(b):
		as, _ := a.AsText()
		bs, _ := b.AsText()
		c = strings.Compare(as, bs)
	default:
		af, aerr := toNumber(a)
		bf, berr := toNumber(b)
		if aerr != nil || berr != nil {
			c = strings.Compare(a.String(), b.String())
		} else {
			switch {
			case af < bf:
				c = -1
			case af > bf:
				c = 1
			}
		}
	}

	switch op {
	case "==":
		return core.Bool(c == 0), nil
	case "!=":
		return core.Bool(c != 0), nil
	case "<":
		return core.Bool(c < 0), nil
	case "<=":
		return core.Bool(c <= 0), nil
	case ">":
		return core.Bool(c > 0), nil
	default:
		return core.Bool(c >= 0), nil
	}
}
