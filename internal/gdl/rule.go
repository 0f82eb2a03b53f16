package gdl

import "strings"

// Category says which IR collection a rule belongs to.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryInit
	CategoryStatic
	CategoryGoal
)

func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryInit:
		return "init"
	case CategoryStatic:
		return "static"
	case CategoryGoal:
		return "goal"
	}
	return "unknown"
}

// Rule is a fact (head only) or an implication (head and a non-empty body).
type Rule struct {
	Head Sentence
	Body []Sentence

	// Index is the position of the rule among all top-level forms of its file.
	Index    int
	Pos      Position
	Category Category
}

// IsFact reports whether the rule has no body.
func (r *Rule) IsFact() bool {
	return len(r.Body) == 0
}

// HeadPredicate is shorthand for r.Head.Predicate().
func (r *Rule) HeadPredicate() string {
	return r.Head.Predicate()
}

// BodyPredicates returns the predicate of every body sentence, "" included.
func (r *Rule) BodyPredicates() []string {
	preds := make([]string, len(r.Body))
	for i, s := range r.Body {
		preds[i] = s.Predicate()
	}
	return preds
}

// String renders the rule in GDL syntax; the arrow form is used only when a
// body exists.
func (r *Rule) String() string {
	if r.IsFact() {
		return r.Head.String()
	}
	var b strings.Builder
	b.WriteString("(<= ")
	b.WriteString(r.Head.String())
	for _, s := range r.Body {
		b.WriteByte(' ')
		b.WriteString(s.String())
	}
	b.WriteByte(')')
	return b.String()
}

// InitContent returns the sentence wrapped by an (init S) fact.
func (r *Rule) InitContent() (Sentence, bool) {
	c, ok := r.Head.Term.(*Compound)
	if !ok || !strings.EqualFold(c.Functor, FunctorInit) || len(c.Args) != 1 {
		return Sentence{}, false
	}
	return NewSentence(c.Args[0]), true
}
