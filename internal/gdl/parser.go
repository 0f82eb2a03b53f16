package gdl

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"

	"gdlmap/internal/logging"
)

// DefaultMaxDepth bounds term nesting during parsing.
const DefaultMaxDepth = 256

var (
	// ErrEmptyInput is wrapped by the ParseError returned for input with no forms.
	ErrEmptyInput = errors.New("empty input")
	// ErrMaxDepth is wrapped when terms nest deeper than the configured limit.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")
	// ErrUnbalanced is wrapped for unmatched parentheses.
	ErrUnbalanced = errors.New("unbalanced parentheses")
)

// ParseError reports a structural problem in GDL source. Parsing stops at the
// first one and no IR is returned.
type ParseError struct {
	Pos   Position
	Token string
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("parse error at %s: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("parse error at %s near %q: %s", e.Pos, e.Token, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type parseOptions struct {
	maxDepth   int
	allowEmpty bool
	lexOpts    []LexOption
}

// ParseOption configures Parse, ParseString and LoadFile.
type ParseOption func(*parseOptions)

// WithMaxDepth sets the nesting limit. Values below 1 keep the default.
func WithMaxDepth(n int) ParseOption {
	return func(o *parseOptions) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithAllowEmpty accepts input without forms and returns an empty IR.
func WithAllowEmpty() ParseOption {
	return func(o *parseOptions) { o.allowEmpty = true }
}

// WithLexOptions forwards options to the lexer used by ParseString and LoadFile.
func WithLexOptions(opts ...LexOption) ParseOption {
	return func(o *parseOptions) { o.lexOpts = append(o.lexOpts, opts...) }
}

func buildOptions(opts []ParseOption) parseOptions {
	o := parseOptions{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ParseString lexes and parses text. Characters the lexer skipped are kept in
// IR.Diagnostics.
func ParseString(text string, opts ...ParseOption) (*IR, error) {
	o := buildOptions(opts)
	lx := NewLexer(text, o.lexOpts...)
	ir, err := parse(lx.All(), o)
	if err != nil {
		return nil, err
	}
	ir.Diagnostics = lx.Errors()
	return ir, nil
}

// LoadFile reads and parses a GDL file.
func LoadFile(path string, opts ...ParseOption) (*IR, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules %s: %w", path, err)
	}
	ir, err := ParseString(string(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ir.Source = path
	return ir, nil
}

// Parse builds an IR from a token stream.
func Parse(tokens iter.Seq[Token], opts ...ParseOption) (*IR, error) {
	return parse(tokens, buildOptions(opts))
}

// ParseRule parses text holding exactly one fact or rule.
func ParseRule(text string) (*Rule, error) {
	rules, err := parseForms(Tokenize(text), buildOptions(nil))
	if err != nil {
		return nil, err
	}
	if len(rules) != 1 {
		return nil, &ParseError{Pos: Position{Line: 1, Column: 1}, Msg: fmt.Sprintf("expected one rule, found %d", len(rules))}
	}
	return rules[0], nil
}

func parse(tokens iter.Seq[Token], o parseOptions) (*IR, error) {
	timer := logging.StartTimer(logging.CategoryParser, "Parse")
	defer timer.Stop()

	rules, err := parseForms(tokens, o)
	if err != nil {
		logging.ParserWarn("parse aborted: %v", err)
		return nil, err
	}
	if len(rules) == 0 && !o.allowEmpty {
		return nil, &ParseError{Pos: Position{Line: 1, Column: 1}, Msg: "no facts or rules", Err: ErrEmptyInput}
	}
	ir := newIR(rules)
	logging.ParserDebug("parsed %d forms: %d general, %d goal, %d init, %d static",
		len(rules), len(ir.general), len(ir.goals), len(ir.inits), len(ir.statics))
	return ir, nil
}

type parser struct {
	next     func() (Token, bool)
	tok      Token
	has      bool
	last     Position
	maxDepth int
}

func parseForms(tokens iter.Seq[Token], o parseOptions) ([]*Rule, error) {
	next, stop := iter.Pull(tokens)
	defer stop()

	p := &parser{next: next, maxDepth: o.maxDepth, last: Position{Line: 1, Column: 1}}
	p.advance()

	var rules []*Rule
	for p.has {
		r, err := p.topLevel()
		if err != nil {
			return nil, err
		}
		r.Index = len(rules)
		rules = append(rules, r)
	}
	return rules, nil
}

func (p *parser) advance() {
	for {
		t, ok := p.next()
		if !ok {
			p.has = false
			return
		}
		if t.Kind == TokenComment {
			continue
		}
		p.tok, p.has, p.last = t, true, t.Pos
		return
	}
}

func (p *parser) errorf(err error, format string, args ...any) *ParseError {
	pe := &ParseError{Pos: p.last, Msg: fmt.Sprintf(format, args...), Err: err}
	if p.has {
		pe.Pos = p.tok.Pos
		pe.Token = p.tok.Text
	}
	return pe
}

func (p *parser) topLevel() (*Rule, error) {
	start := p.tok
	switch {
	case start.Kind == TokenRParen:
		return nil, p.errorf(ErrUnbalanced, "unmatched ')'")
	case start.Kind == TokenArrow:
		return nil, p.errorf(nil, "'<=' must open a parenthesized rule")
	case start.Kind.IsNameLike():
		p.advance()
		return &Rule{Head: NewSentence(Constant{Name: start.Text}), Pos: start.Pos}, nil
	case start.Kind != TokenLParen:
		return nil, p.errorf(nil, "expected a fact or rule, found %s", start.Kind)
	}

	p.advance()
	if !p.has {
		return nil, unclosed(start.Pos)
	}
	if p.tok.Kind != TokenArrow {
		t, err := p.compoundAfterParen(start.Pos, 1)
		if err != nil {
			return nil, err
		}
		head := NewSentence(t)
		if head.Kind() != SentenceAtom {
			return nil, &ParseError{Pos: start.Pos, Token: "(", Msg: fmt.Sprintf("a fact must be an atom, found %s", head.Kind())}
		}
		return &Rule{Head: head, Pos: start.Pos}, nil
	}

	p.advance()
	if !p.has {
		return nil, unclosed(start.Pos)
	}
	if p.tok.Kind == TokenRParen {
		return nil, p.errorf(nil, "rule has no head")
	}
	headTok := p.tok
	ht, err := p.term(2)
	if err != nil {
		return nil, err
	}
	head := NewSentence(ht)
	if head.Kind() != SentenceAtom {
		return nil, &ParseError{Pos: headTok.Pos, Token: headTok.Text, Msg: fmt.Sprintf("rule head must be an atom, found %s", head.Kind())}
	}

	var body []Sentence
	for p.has && p.tok.Kind != TokenRParen {
		bt, err := p.term(2)
		if err != nil {
			return nil, err
		}
		body = append(body, NewSentence(bt))
	}
	if !p.has {
		return nil, unclosed(start.Pos)
	}
	if len(body) == 0 {
		return nil, p.errorf(nil, "rule has no body")
	}
	p.advance()
	return &Rule{Head: head, Body: body, Pos: start.Pos}, nil
}

func (p *parser) term(depth int) (Term, error) {
	if depth > p.maxDepth {
		return nil, p.errorf(ErrMaxDepth, "nesting deeper than %d", p.maxDepth)
	}
	t := p.tok
	switch {
	case t.Kind == TokenVariable:
		p.advance()
		return Variable{Name: strings.TrimPrefix(t.Text, "?")}, nil
	case t.Kind == TokenNumber:
		p.advance()
		return NumberTerm{Value: t.Value}, nil
	case t.Kind.IsNameLike():
		p.advance()
		return Constant{Name: t.Text}, nil
	case t.Kind == TokenLParen:
		p.advance()
		if !p.has {
			return nil, unclosed(t.Pos)
		}
		return p.compoundAfterParen(t.Pos, depth)
	case t.Kind == TokenArrow:
		return nil, p.errorf(nil, "'<=' is only allowed at the start of a top-level rule")
	}
	return nil, p.errorf(ErrUnbalanced, "unexpected ')'")
}

// compoundAfterParen parses "functor args... )" with the opening paren consumed.
func (p *parser) compoundAfterParen(open Position, depth int) (Term, error) {
	if depth > p.maxDepth {
		return nil, p.errorf(ErrMaxDepth, "nesting deeper than %d", p.maxDepth)
	}
	switch {
	case p.tok.Kind == TokenRParen:
		return nil, p.errorf(nil, "empty form ()")
	case p.tok.Kind == TokenArrow:
		return nil, p.errorf(nil, "'<=' is only allowed at the start of a top-level rule")
	case !p.tok.Kind.IsNameLike():
		return nil, p.errorf(nil, "expected a functor name, found %s", p.tok.Kind)
	}
	functor := p.tok.Text
	p.advance()

	c := &Compound{Functor: functor}
	for p.has && p.tok.Kind != TokenRParen {
		arg, err := p.term(depth + 1)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, arg)
	}
	if !p.has {
		return nil, unclosed(open)
	}
	p.advance()

	switch {
	case strings.EqualFold(functor, FunctorNot) && len(c.Args) != 1:
		return nil, &ParseError{Pos: open, Token: functor, Msg: fmt.Sprintf("not takes exactly one sentence, found %d", len(c.Args))}
	case strings.EqualFold(functor, FunctorOr) && len(c.Args) == 0:
		return nil, &ParseError{Pos: open, Token: functor, Msg: "or needs at least one sentence"}
	}
	return c, nil
}

func unclosed(open Position) *ParseError {
	return &ParseError{Pos: open, Token: "(", Msg: "unclosed '(' at end of input", Err: ErrUnbalanced}
}
