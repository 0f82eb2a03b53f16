package gdl

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"gdlmap/internal/logging"
)

// Grammar selects the character set accepted inside names.
type Grammar int

const (
	// GrammarExtended accepts '.', comparison and arithmetic characters in
	// names and distinguishes the init/true/next/legal/does keywords.
	GrammarExtended Grammar = iota
	// GrammarBasic accepts letters, digits, '-' and '_' only.
	GrammarBasic
)

// LexError records a character the lexer could not classify. Lexing recovers
// by skipping the character, so these are diagnostics rather than failures.
type LexError struct {
	Pos  Position
	Char rune
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: unrecognized character %q", e.Pos, e.Char)
}

// Lexer produces tokens from GDL source in a single forward pass.
type Lexer struct {
	src      string
	off      int
	line     int
	col      int
	grammar  Grammar
	comments bool
	errs     []*LexError
}

// LexOption configures a Lexer.
type LexOption func(*Lexer)

// WithGrammar selects basic or extended name characters.
func WithGrammar(g Grammar) LexOption {
	return func(l *Lexer) { l.grammar = g }
}

// WithComments makes the lexer emit TokenComment instead of discarding comments.
func WithComments() LexOption {
	return func(l *Lexer) { l.comments = true }
}

// NewLexer creates a lexer over text.
func NewLexer(text string, opts ...LexOption) *Lexer {
	l := &Lexer{src: text, line: 1, col: 1}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tokenize is shorthand for NewLexer(text, opts...).All().
func Tokenize(text string, opts ...LexOption) iter.Seq[Token] {
	return NewLexer(text, opts...).All()
}

// Errors returns the characters skipped so far.
func (l *Lexer) Errors() []*LexError {
	return l.errs
}

// All returns the remaining tokens as a sequence. The sequence consumes the
// lexer; ranging over it twice yields nothing the second time.
func (l *Lexer) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for {
			tok, ok := l.Next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}

// Next returns the next token, or false at end of input.
func (l *Lexer) Next() (Token, bool) {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.advance(1)
		case c == '\n':
			l.off++
			l.line++
			l.col = 1
		case c == ';':
			tok, emit := l.comment()
			if emit {
				return tok, true
			}
		case c == '(':
			return l.single(TokenLParen), true
		case c == ')':
			return l.single(TokenRParen), true
		case c == '?':
			if tok, ok := l.variable(); ok {
				return tok, true
			}
			l.skip()
		case c == '<' && l.peek(1) == '=' && !l.isNameChar(l.peek(2)):
			tok := Token{Kind: TokenArrow, Text: "<=", Pos: l.position()}
			l.advance(2)
			return tok, true
		case l.isNameChar(c):
			return l.name(), true
		default:
			l.skip()
		}
	}
	return Token{}, false
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.col}
}

func (l *Lexer) advance(n int) {
	l.off += n
	l.col += n
}

func (l *Lexer) peek(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *Lexer) single(kind TokenKind) Token {
	tok := Token{Kind: kind, Text: l.src[l.off : l.off+1], Pos: l.position()}
	l.advance(1)
	return tok
}

func (l *Lexer) skip() {
	r, size := utf8.DecodeRuneInString(l.src[l.off:])
	err := &LexError{Pos: l.position(), Char: r}
	l.errs = append(l.errs, err)
	logging.LexerWarn("%v", err)
	l.off += size
	l.col++
}

func (l *Lexer) comment() (Token, bool) {
	start := l.off
	pos := l.position()
	end := strings.IndexByte(l.src[l.off:], '\n')
	if end < 0 {
		end = len(l.src) - l.off
	}
	l.advance(end)
	if !l.comments {
		return Token{}, false
	}
	return Token{Kind: TokenComment, Text: l.src[start:l.off], Pos: pos}, true
}

func (l *Lexer) variable() (Token, bool) {
	if !isLetter(l.peek(1)) {
		return Token{}, false
	}
	pos := l.position()
	start := l.off
	l.advance(2)
	for l.off < len(l.src) && isWordChar(l.src[l.off]) {
		l.advance(1)
	}
	return Token{Kind: TokenVariable, Text: l.src[start:l.off], Pos: pos}, true
}

func (l *Lexer) name() Token {
	pos := l.position()
	start := l.off
	for l.off < len(l.src) && l.isNameChar(l.src[l.off]) {
		l.advance(1)
	}
	text := l.src[start:l.off]
	if text == "<=" {
		return Token{Kind: TokenArrow, Text: text, Pos: pos}
	}
	if n, ok := parseNumber(text); ok {
		return Token{Kind: TokenNumber, Text: text, Value: n, Pos: pos}
	}
	return Token{Kind: l.keyword(text), Text: text, Pos: pos}
}

func (l *Lexer) keyword(text string) TokenKind {
	switch strings.ToLower(text) {
	case "or":
		return TokenOr
	case "not":
		return TokenNot
	}
	if l.grammar != GrammarExtended {
		return TokenName
	}
	switch strings.ToLower(text) {
	case "init":
		return TokenInit
	case "true":
		return TokenTrue
	case "next":
		return TokenNext
	case "legal":
		return TokenLegal
	case "does":
		return TokenDoes
	}
	return TokenName
}

func (l *Lexer) isNameChar(c byte) bool {
	if isLetter(c) || isDigit(c) || c == '-' || c == '_' {
		return true
	}
	if l.grammar == GrammarExtended {
		switch c {
		case '.', '<', '>', '=', '+', '*', '/':
			return true
		}
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '-'
}
