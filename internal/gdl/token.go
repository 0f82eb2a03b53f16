// Package gdl lexes and parses Game Description Language rule files into an
// immutable intermediate representation (IR) of rules, facts and sentences.
package gdl

import (
	"fmt"
	"strconv"
)

// TokenKind classifies a lexeme.
type TokenKind int

const (
	TokenVariable TokenKind = iota
	TokenName
	TokenNumber
	TokenArrow
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
	TokenComment

	// Extended grammar keywords. Syntactically names, but kept apart so the
	// parser and tooling can tell state/move relations from user relations.
	TokenInit
	TokenTrue
	TokenNext
	TokenLegal
	TokenDoes
)

var tokenKindNames = map[TokenKind]string{
	TokenVariable: "variable",
	TokenName:     "name",
	TokenNumber:   "number",
	TokenArrow:    "arrow",
	TokenOr:       "or",
	TokenNot:      "not",
	TokenLParen:   "lparen",
	TokenRParen:   "rparen",
	TokenComment:  "comment",
	TokenInit:     "init",
	TokenTrue:     "true",
	TokenNext:     "next",
	TokenLegal:    "legal",
	TokenDoes:     "does",
}

func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// IsNameLike reports whether tokens of this kind can stand where a relation or
// constant name is expected.
func (k TokenKind) IsNameLike() bool {
	switch k {
	case TokenName, TokenOr, TokenNot, TokenInit, TokenTrue, TokenNext, TokenLegal, TokenDoes:
		return true
	}
	return false
}

// Position is a 1-based line and column in the source text.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a classified lexeme.
type Token struct {
	Kind  TokenKind
	Text  string
	Value Number // set for TokenNumber
	Pos   Position
}

func (t Token) String() string {
	switch t.Kind {
	case TokenLParen, TokenRParen, TokenArrow:
		return t.Text
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
}

// Number is an integer or floating-point literal.
type Number struct {
	Int     int64
	Float   float64
	IsFloat bool
}

// Float64 returns the numeric value as a float.
func (n Number) Float64() float64 {
	if n.IsFloat {
		return n.Float
	}
	return float64(n.Int)
}

func (n Number) String() string {
	if n.IsFloat {
		return strconv.FormatFloat(n.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(n.Int, 10)
}

// parseNumber interprets a name run as a numeric literal. Runs must start
// with a digit, a sign or a dot so that names such as "inf" or "nan" stay names.
func parseNumber(s string) (Number, bool) {
	if s == "" {
		return Number{}, false
	}
	switch c := s[0]; {
	case c >= '0' && c <= '9', c == '-', c == '+', c == '.':
	default:
		return Number{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Number{Int: i}, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number{Float: f, IsFloat: true}, true
	}
	return Number{}, false
}
