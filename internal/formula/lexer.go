package formula

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType classifies lexer output.
type TokenType int

const (
	EOF TokenType = iota
	NUMBER
	STRING
	IDENT
	FIELD
	OPERATOR
	LPAREN
	RPAREN
	COMMA
	INVALID
)

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "end of expression"
	case NUMBER:
		return "number"
	case STRING:
		return "string"
	case IDENT:
		return "identifier"
	case FIELD:
		return "field reference"
	case OPERATOR:
		return "operator"
	case LPAREN:
		return "'('"
	case RPAREN:
		return "')'"
	case COMMA:
		return "','"
	default:
		return "invalid token"
	}
}

// Token is one lexeme with its byte offset.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

// Lexer splits a formula into tokens.
type Lexer struct {
	input  string
	pos    int
	length int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		pos:    0,
		length: len(input),
	}
}

// NextToken returns the next token; at the end it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= l.length {
		return createToken(EOF, "", l.pos)
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch == ',':
		l.pos++
		return createToken(COMMA, ",", start)
	case ch == '(':
		l.pos++
		return createToken(LPAREN, "(", start)
	case ch == ')':
		l.pos++
		return createToken(RPAREN, ")", start)
	case ch == '{':
		return l.readField(start)
	case ch == '\'' || ch == '"':
		return l.readString(start)
	case isDigit(ch) || (ch == '.' && l.pos+1 < l.length && isDigit(l.input[l.pos+1])):
		return l.readNumber(start)
	case ch == '_' || unicode.IsLetter(rune(ch)):
		return l.readIdentifier(start)
	case strings.IndexByte("+-*/%<>=!&|", ch) >= 0:
		return l.readOperator(start)
	default:
		l.pos++
		return createToken(INVALID, string(ch), start)
	}
}

// Tokenize lexes the whole input, failing on the first invalid token.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == INVALID {
			return nil, &SyntaxError{Position: tok.Position, Message: fmt.Sprintf("unexpected %q", tok.Value)}
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < l.length && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// operators are matched longest first.
var operators = []string{"==", "!=", "<=", ">=", "&&", "||", "+", "-", "*", "/", "%", "<", ">", "=", "!"}

func (l *Lexer) readOperator(start int) Token {
	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			l.pos += len(op)
			return createToken(OPERATOR, op, start)
		}
	}
	l.pos++
	return createToken(INVALID, rest[:1], start)
}

// readString reads a quoted literal. A backslash escapes the next byte.
// An unterminated string is INVALID.
func (l *Lexer) readString(start int) Token {
	quote := l.input[l.pos]
	l.pos++

	var sb strings.Builder
	for l.pos < l.length {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < l.length:
			sb.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case ch == quote:
			l.pos++
			return createToken(STRING, sb.String(), start)
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}
	return createToken(INVALID, l.input[start:], start)
}

func (l *Lexer) readNumber(start int) Token {
	seenDot := false
	for l.pos < l.length {
		ch := l.input[l.pos]
		if ch == '.' && !seenDot {
			seenDot = true
		} else if !isDigit(ch) {
			break
		}
		l.pos++
	}
	// Exponent: 1e3, 2.5E-4.
	if l.pos < l.length && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		next := l.pos + 1
		if next < l.length && (l.input[next] == '+' || l.input[next] == '-') {
			next++
		}
		if next < l.length && isDigit(l.input[next]) {
			l.pos = next
			for l.pos < l.length && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	return createToken(NUMBER, l.input[start:l.pos], start)
}

func (l *Lexer) readIdentifier(start int) Token {
	for l.pos < l.length {
		ch := l.input[l.pos]
		if ch != '_' && !isDigit(ch) && !unicode.IsLetter(rune(ch)) {
			break
		}
		l.pos++
	}
	return createToken(IDENT, l.input[start:l.pos], start)
}

// readField reads a {placeholder}. Names may contain spaces; surrounding
// whitespace is trimmed. An unterminated or empty placeholder is INVALID.
func (l *Lexer) readField(start int) Token {
	end := strings.IndexByte(l.input[l.pos:], '}')
	if end < 0 {
		l.pos = l.length
		return createToken(INVALID, l.input[start:], start)
	}
	name := strings.TrimSpace(l.input[l.pos+1 : l.pos+end])
	l.pos += end + 1
	if name == "" {
		return createToken(INVALID, "{}", start)
	}
	return createToken(FIELD, name, start)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func createToken(t TokenType, value string, start int) Token {
	return Token{
		Type:     t,
		Value:    value,
		Position: start,
	}
}
