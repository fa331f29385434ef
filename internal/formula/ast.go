package formula

import (
	"github.com/rzpsarthak13/ultratable/internal/core"
)

// Node is an expression tree node.
type Node interface {
	node()
}

// Literal is a constant.
type Literal struct {
	Value core.Value
}

// FieldRef is a {name} placeholder.
type FieldRef struct {
	Name string
}

// Ident is a bare identifier such as ROW_INDEX.
type Ident struct {
	Name     string
	Position int
}

// Unary is a prefix operator applied to Operand.
type Unary struct {
	Op      string
	Operand Node
}

// Binary is an infix operator.
type Binary struct {
	Op          string
	Left, Right Node
}

// Call is a built-in function call. Name is upper-cased.
type Call struct {
	Name     string
	Args     []Node
	Position int
}

func (Literal) node()  {}
func (FieldRef) node() {}
func (Ident) node()    {}
func (Unary) node()    {}
func (Binary) node()   {}
func (Call) node()     {}
