package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Position int
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Position, e.Message)
}

// maxDepth bounds how deeply parentheses, calls and unary operators nest.
const maxDepth = 256

// Parser is a recursive-descent parser over a token slice.
type Parser struct {
	tokens []Token
	pos    int
	depth  int
}

// Parse parses a complete expression.
func Parse(input string) (Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	if p.peek().Type == EOF {
		return nil, &SyntaxError{Position: 0, Message: "empty expression"}
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != EOF {
		return nil, p.unexpected(tok)
	}
	return n, nil
}

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) isOp(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.Type != OPERATOR {
		return "", false
	}
	for _, op := range ops {
		if tok.Value == op {
			return op, true
		}
	}
	return "", false
}

// descend records one more level of nesting at tok. Callers pair it with
// ascend.
func (p *Parser) descend(tok Token) error {
	p.depth++
	if p.depth > maxDepth {
		return &SyntaxError{Position: tok.Position, Message: fmt.Sprintf("expression nests deeper than %d levels", maxDepth)}
	}
	return nil
}

func (p *Parser) ascend() { p.depth-- }

func (p *Parser) unexpected(tok Token) error {
	if tok.Type == EOF {
		return &SyntaxError{Position: tok.Position, Message: "unexpected end of expression"}
	}
	return &SyntaxError{Position: tok.Position, Message: fmt.Sprintf("unexpected %s %q", tok.Type, tok.Value)}
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("||"); !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "||", Left: left, Right: right}
	}
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("&&"); !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "&&", Left: left, Right: right}
	}
}

// parseComparison is non-associative: a < b < c is a syntax error.
func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.isOp("==", "=", "!=", "<", "<=", ">", ">=")
	if !ok {
		return left, nil
	}
	p.next()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op == "=" {
		op = "=="
	}
	return Binary{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+", "-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Node, error) {
	if op, ok := p.isOp("-", "!"); ok {
		if err := p.descend(p.next()); err != nil {
			return nil, err
		}
		defer p.ascend()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: op, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.Type {
	case NUMBER:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &SyntaxError{Position: tok.Position, Message: fmt.Sprintf("invalid number %q", tok.Value)}
		}
		return Literal{Value: core.Number(f)}, nil
	case STRING:
		return Literal{Value: core.Text(tok.Value)}, nil
	case FIELD:
		return FieldRef{Name: tok.Value}, nil
	case LPAREN:
		if err := p.descend(tok); err != nil {
			return nil, err
		}
		defer p.ascend()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.Type != RPAREN {
			return nil, p.unexpected(closing)
		}
		return inner, nil
	case IDENT:
		switch strings.ToLower(tok.Value) {
		case "true":
			return Literal{Value: core.Bool(true)}, nil
		case "false":
			return Literal{Value: core.Bool(false)}, nil
		case "null":
			return Literal{Value: core.Null()}, nil
		}
		if p.peek().Type == LPAREN {
			return p.parseCall(tok)
		}
		return Ident{Name: tok.Value, Position: tok.Position}, nil
	default:
		return nil, p.unexpected(tok)
	}
}

func (p *Parser) parseCall(name Token) (Node, error) {
	if err := p.descend(p.next()); err != nil {
		return nil, err
	}
	defer p.ascend()
	call := Call{Name: strings.ToUpper(name.Value), Position: name.Position}
	if p.peek().Type == RPAREN {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		tok := p.next()
		switch tok.Type {
		case COMMA:
			continue
		case RPAREN:
			return call, nil
		default:
			return nil, p.unexpected(tok)
		}
	}
}
