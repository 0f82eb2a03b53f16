package gdl

import "strings"

// SentenceKind is the logical category of a sentence.
type SentenceKind int

const (
	SentenceAtom SentenceKind = iota
	SentenceNegation
	SentenceDisjunction
	SentenceVariable
	SentenceNumber
)

func (k SentenceKind) String() string {
	switch k {
	case SentenceAtom:
		return "atom"
	case SentenceNegation:
		return "negation"
	case SentenceDisjunction:
		return "disjunction"
	case SentenceVariable:
		return "variable"
	case SentenceNumber:
		return "number"
	}
	return "unknown"
}

// Sentence is a term read as a logical atom.
type Sentence struct {
	Term Term
}

// NewSentence wraps a term.
func NewSentence(t Term) Sentence {
	return Sentence{Term: t}
}

// Kind classifies the sentence.
func (s Sentence) Kind() SentenceKind {
	switch t := s.Term.(type) {
	case Variable:
		return SentenceVariable
	case NumberTerm:
		return SentenceNumber
	case *Compound:
		switch {
		case strings.EqualFold(t.Functor, FunctorNot):
			return SentenceNegation
		case strings.EqualFold(t.Functor, FunctorOr):
			return SentenceDisjunction
		}
	}
	return SentenceAtom
}

// Predicate returns the relation name of the sentence. Negations recurse into
// their operand and disjunctions into their first disjunct that has one.
// Variables and numbers have no predicate and return "".
func (s Sentence) Predicate() string {
	switch t := s.Term.(type) {
	case Constant:
		return t.Name
	case *Compound:
		switch s.Kind() {
		case SentenceNegation, SentenceDisjunction:
			for _, arg := range t.Args {
				if p := NewSentence(arg).Predicate(); p != "" {
					return p
				}
			}
			return ""
		}
		return t.Functor
	}
	return ""
}

// Atom returns the underlying relation term, unwrapping negation and
// disjunction the same way Predicate does. It returns nil when there is none.
func (s Sentence) Atom() Term {
	switch t := s.Term.(type) {
	case Constant:
		return t
	case *Compound:
		switch s.Kind() {
		case SentenceNegation, SentenceDisjunction:
			for _, arg := range t.Args {
				if a := NewSentence(arg).Atom(); a != nil {
					return a
				}
			}
			return nil
		}
		return t
	}
	return nil
}

// Args returns the positional arguments of the underlying atom.
func (s Sentence) Args() []Term {
	if c, ok := s.Atom().(*Compound); ok {
		return c.Args
	}
	return nil
}

// Arg returns argument i of the underlying atom.
func (s Sentence) Arg(i int) (Term, bool) {
	args := s.Args()
	if i < 0 || i >= len(args) {
		return nil, false
	}
	return args[i], true
}

// Arity returns the number of arguments of the underlying atom.
func (s Sentence) Arity() int {
	return len(s.Args())
}

func (s Sentence) String() string {
	if s.Term == nil {
		return ""
	}
	return s.Term.String()
}
