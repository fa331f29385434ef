// Package query runs list requests against a table: AIP-160 filter
// strings, AIP-132 order_by strings and offset pagination.
package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.einride.tech/aip/filtering"
	"go.einride.tech/aip/ordering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

// ErrInvalidQuery is returned for filters and orderings that do not fit
// the table's schema.
var ErrInvalidQuery = errors.New("invalid query")

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// floatTypes are compared as numbers in filters.
var floatTypes = map[string]bool{
	"number": true, "decimal": true, "currency": true, "percent": true,
	"rating": true, "progress": true, "vote": true, "duration": true,
	"auto_number": true, "count": true, "rollup": true,
}

// Request is one list request.
type Request struct {
	Filter  string `json:"filter,omitempty" yaml:"filter,omitempty"`
	OrderBy string `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	Offset  int    `json:"offset,omitempty" yaml:"offset,omitempty"`
	Limit   int    `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Result is a page of matching rows.
type Result struct {
	Rows []core.Row
	// Total is the number of matching rows before pagination.
	Total int
}

// Predicate reports whether a row matches a compiled filter.
type Predicate func(ctx context.Context, row core.Row) (bool, error)

// Run filters, orders and paginates the rows of tbl.
func Run(ctx context.Context, tbl *table.Table, req Request) (Result, error) {
	pred, err := Compile(tbl, req.Filter)
	if err != nil {
		return Result{}, err
	}
	keys, err := SortKeys(tbl, req.OrderBy)
	if err != nil {
		return Result{}, err
	}

	var rows []core.Row
	for _, r := range tbl.Rows() {
		ok, err := pred(ctx, r)
		if err != nil {
			return Result{}, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	if len(keys) > 0 {
		if rows, err = tbl.Sort(ctx, rows, keys...); err != nil {
			return Result{}, err
		}
	}

	res := Result{Total: len(rows)}
	start := min(max(req.Offset, 0), len(rows))
	end := len(rows)
	if req.Limit > 0 && req.Limit < end-start {
		end = start + req.Limit
	}
	res.Rows = rows[start:end]
	return res, nil
}

// SortKeys parses an order_by string such as "price desc, name". Fields
// name columns by id or by name.
func SortKeys(tbl *table.Table, orderBy string) ([]table.SortKey, error) {
	var ob ordering.OrderBy
	if err := ob.UnmarshalString(strings.TrimSpace(orderBy)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if err := ob.ValidateForPaths(idents(tbl.Schema())...); err != nil {
		return nil, fmt.Errorf("%w: order by: %v", ErrInvalidQuery, err)
	}
	keys := make([]table.SortKey, 0, len(ob.Fields))
	for _, f := range ob.Fields {
		keys = append(keys, table.SortKey{Column: f.Path, Descending: f.Desc})
	}
	return keys, nil
}

// idents returns the column ids and names usable as filter identifiers.
func idents(s core.Schema) []string {
	var out []string
	for _, col := range s.Columns {
		for _, name := range []string{col.ID, col.Name} {
			if identPattern.MatchString(name) && !reserved(name) && !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

func reserved(name string) bool {
	switch name {
	case "AND", "OR", "NOT":
		return true
	}
	return false
}

// Declarations declares every addressable column with its filter type.
func Declarations(tbl *table.Table) (*filtering.Declarations, error) {
	s := tbl.Schema()
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, name := range idents(s) {
		col, err := tbl.Column(name)
		if err != nil {
			continue
		}
		opts = append(opts, filtering.DeclareIdent(name, identType(col)))
	}
	return filtering.NewDeclarations(opts...)
}

func identType(col core.Column) *expr.Type {
	switch {
	case col.Type == "checkbox":
		return filtering.TypeBool
	case col.Type == "formula":
		if rt := col.Config.String("returnType", "text"); rt != "text" {
			return filtering.TypeFloat
		}
		return filtering.TypeString
	case floatTypes[col.Type]:
		return filtering.TypeFloat
	}
	return filtering.TypeString
}

// Compile parses an AIP-160 filter into a predicate over tbl's rows. The
// empty filter matches every row.
func Compile(tbl *table.Table, filter string) (Predicate, error) {
	if strings.TrimSpace(filter) == "" {
		return func(context.Context, core.Row) (bool, error) { return true, nil }, nil
	}
	decls, err := Declarations(tbl)
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilter(filterRequest(filter), decls)
	if err != nil {
		return nil, fmt.Errorf("%w: parse filter: %v", ErrInvalidQuery, err)
	}
	c := compiler{table: tbl}
	return c.expr(parsed.CheckedExpr.GetExpr())
}

// filterRequest adapts a raw filter string to filtering.Request.
type filterRequest string

func (f filterRequest) GetFilter() string { return string(f) }

type compiler struct {
	table *table.Table
}

func (c compiler) expr(e *expr.Expr) (Predicate, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidQuery)
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported expression type %T", ErrInvalidQuery, e.ExprKind)
	}
	args := call.CallExpr.Args

	switch fn := call.CallExpr.Function; fn {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		return c.logical(args, true)
	case filtering.FunctionOr:
		return c.logical(args, false)
	case filtering.FunctionNot:
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: NOT takes one argument", ErrInvalidQuery)
		}
		inner, err := c.expr(args[0])
		if err != nil {
			return nil, err
		}
		return negate(inner), nil
	case filtering.FunctionEquals, filtering.FunctionNotEquals,
		filtering.FunctionLessThan, filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan, filtering.FunctionGreaterEquals,
		filtering.FunctionHas:
		return c.comparison(fn, args)
	default:
		return nil, fmt.Errorf("%w: unsupported function %s", ErrInvalidQuery, fn)
	}
}

func (c compiler) logical(args []*expr.Expr, and bool) (Predicate, error) {
	preds := make([]Predicate, 0, len(args))
	for _, a := range args {
		p, err := c.expr(a)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return func(ctx context.Context, row core.Row) (bool, error) {
		for _, p := range preds {
			ok, err := p(ctx, row)
			if err != nil {
				return false, err
			}
			if ok != and {
				return ok, nil
			}
		}
		return and, nil
	}, nil
}

func (c compiler) comparison(fn string, args []*expr.Expr) (Predicate, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: %s takes two arguments", ErrInvalidQuery, fn)
	}
	ident, ok := args[0].ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return nil, fmt.Errorf("%w: left side of %s must be a column", ErrInvalidQuery, fn)
	}
	col, err := c.table.Column(ident.IdentExpr.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	value, err := constant(args[1])
	if err != nil {
		return nil, err
	}

	ops, err := c.operators(col)
	if err != nil {
		return nil, err
	}
	has := func(op core.FilterOperator) bool { return slices.Contains(ops, op) }
	match := func(op core.FilterOperator, v core.Value) (Predicate, error) {
		if !has(op) {
			return nil, fmt.Errorf("%w: %s (%s) does not support %s", ErrInvalidQuery, col.Name, col.Type, op)
		}
		cond := table.Condition{Column: col.ID, Operator: op, Value: v}
		return func(ctx context.Context, row core.Row) (bool, error) {
			return c.table.Match(ctx, row, cond)
		}, nil
	}

	if s, ok := value.AsText(); ok && s == "" {
		switch fn {
		case filtering.FunctionEquals:
			return match(core.OpIsEmpty, value)
		case filtering.FunctionNotEquals:
			return match(core.OpIsNotEmpty, value)
		}
	}

	if b, ok := value.AsBool(); ok && has(core.OpIsChecked) {
		op := core.OpIsNotChecked
		if b == (fn == filtering.FunctionEquals) {
			op = core.OpIsChecked
		}
		if fn != filtering.FunctionEquals && fn != filtering.FunctionNotEquals {
			return nil, fmt.Errorf("%w: %s only compares with = and !=", ErrInvalidQuery, col.Name)
		}
		return match(op, value)
	}

	if has(core.OpIsBefore) {
		switch fn {
		case filtering.FunctionLessThan:
			return match(core.OpIsBefore, value)
		case filtering.FunctionGreaterThan:
			return match(core.OpIsAfter, value)
		case filtering.FunctionLessEquals, filtering.FunctionGreaterEquals:
			strict := core.OpIsBefore
			if fn == filtering.FunctionGreaterEquals {
				strict = core.OpIsAfter
			}
			a, err := match(strict, value)
			if err != nil {
				return nil, err
			}
			b, err := match(core.OpEquals, value)
			if err != nil {
				return nil, err
			}
			return either(a, b), nil
		}
	}

	switch fn {
	case filtering.FunctionEquals:
		if !has(core.OpEquals) && has(core.OpIsAnyOf) {
			return match(core.OpIsAnyOf, core.List(value))
		}
		return match(core.OpEquals, value)
	case filtering.FunctionNotEquals:
		if !has(core.OpNotEquals) && has(core.OpIsNoneOf) {
			return match(core.OpIsNoneOf, core.List(value))
		}
		return match(core.OpNotEquals, value)
	case filtering.FunctionLessThan:
		return match(core.OpLessThan, value)
	case filtering.FunctionLessEquals:
		return match(core.OpLessThanOrEqual, value)
	case filtering.FunctionGreaterThan:
		return match(core.OpGreaterThan, value)
	case filtering.FunctionGreaterEquals:
		return match(core.OpGreaterThanOrEqual, value)
	default: // has
		if has(core.OpHasAnyOf) {
			return match(core.OpHasAnyOf, core.List(value))
		}
		return match(core.OpContains, value)
	}
}

func (c compiler) operators(col core.Column) ([]core.FilterOperator, error) {
	def, ok := c.table.Workspace().Registry().Get(col.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s has unknown type %s", ErrInvalidQuery, col.Name, col.Type)
	}
	f, ok := def.(core.Filterer)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s) cannot be filtered", ErrInvalidQuery, col.Name, col.Type)
	}
	return f.Operators(), nil
}

func constant(e *expr.Expr) (core.Value, error) {
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		switch k := kind.ConstExpr.ConstantKind.(type) {
		case *expr.Constant_StringValue:
			return core.Text(k.StringValue), nil
		case *expr.Constant_Int64Value:
			return core.Number(float64(k.Int64Value)), nil
		case *expr.Constant_Uint64Value:
			return core.Number(float64(k.Uint64Value)), nil
		case *expr.Constant_DoubleValue:
			return core.Number(k.DoubleValue), nil
		case *expr.Constant_BoolValue:
			return core.Bool(k.BoolValue), nil
		}
		return core.Null(), fmt.Errorf("%w: unsupported constant %T", ErrInvalidQuery, kind.ConstExpr.ConstantKind)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			return constant(kind.CallExpr.Args[0])
		}
		return core.Null(), fmt.Errorf("%w: unsupported function %s in value position", ErrInvalidQuery, kind.CallExpr.Function)
	}
	return core.Null(), fmt.Errorf("%w: expected a constant, got %T", ErrInvalidQuery, e.ExprKind)
}

func negate(p Predicate) Predicate {
	return func(ctx context.Context, row core.Row) (bool, error) {
		ok, err := p(ctx, row)
		return !ok, err
	}
}

func either(a, b Predicate) Predicate {
	return func(ctx context.Context, row core.Row) (bool, error) {
		ok, err := a(ctx, row)
		if err != nil || ok {
			return ok, err
		}
		return b(ctx, row)
	}
}
