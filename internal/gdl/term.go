package gdl

import "strings"

// Term is a node of a parsed GDL expression. The set of implementations is
// closed: Variable, Constant, NumberTerm and *Compound.
type Term interface {
	String() string
	isTerm()
}

// Variable is a logic variable. Name excludes the '?' sigil.
type Variable struct {
	Name string
}

// Constant is an atomic name such as a player, a cell value or a zero-arity
// relation.
type Constant struct {
	Name string
}

// NumberTerm is a numeric literal.
type NumberTerm struct {
	Value Number
}

// Compound applies a functor to ordered arguments. Functor is never empty.
type Compound struct {
	Functor string
	Args    []Term
}

func (Variable) isTerm()   {}
func (Constant) isTerm()   {}
func (NumberTerm) isTerm() {}
func (*Compound) isTerm()  {}

func (v Variable) String() string   { return "?" + v.Name }
func (c Constant) String() string   { return c.Name }
func (n NumberTerm) String() string { return n.Value.String() }

func (c *Compound) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(c.Functor)
	for _, arg := range c.Args {
		b.WriteByte(' ')
		b.WriteString(arg.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Arity returns the number of arguments.
func (c *Compound) Arity() int {
	return len(c.Args)
}

// Reserved functor names.
const (
	FunctorNot  = "not"
	FunctorOr   = "or"
	FunctorInit = "init"
	FunctorGoal = "goal"
)

// isWrapper reports whether functor is a logical combinator rather than a relation.
func isWrapper(functor string) bool {
	return strings.EqualFold(functor, FunctorNot) || strings.EqualFold(functor, FunctorOr)
}

// walkFunctors calls fn for every relation functor in t, depth first, skipping
// the not/or combinators themselves.
func walkFunctors(t Term, fn func(name string, arity int)) {
	c, ok := t.(*Compound)
	if !ok {
		return
	}
	if !isWrapper(c.Functor) {
		fn(c.Functor, len(c.Args))
	}
	for _, arg := range c.Args {
		walkFunctors(arg, fn)
	}
}
