package gdl

import "strings"

// IR is the categorized form of a parsed rule file. It is built once and not
// modified afterwards; the accessors return shared slices that callers must
// not mutate.
type IR struct {
	// Source is the file the IR was loaded from, if any.
	Source string
	// Diagnostics holds characters the lexer skipped.
	Diagnostics []*LexError

	all     []*Rule // every form in source order
	general []*Rule
	inits   []*Rule
	statics []*Rule
	goals   []*Rule
	mapped  []*Rule // general and goal rules in source order

	predicates []string
	arity      map[string]int
	byHead     map[string][]*Rule
}

// NewIR categorizes rules. Rule indexes are reassigned to slice order.
func NewIR(rules []*Rule) *IR {
	for i, r := range rules {
		r.Index = i
	}
	return newIR(rules)
}

func newIR(rules []*Rule) *IR {
	ir := &IR{
		all:    rules,
		arity:  make(map[string]int),
		byHead: make(map[string][]*Rule),
	}

	derived := make(map[string]bool)
	for _, r := range rules {
		if !r.IsFact() {
			derived[r.HeadPredicate()] = true
		}
	}

	for _, r := range rules {
		pred := r.HeadPredicate()
		switch {
		case r.IsFact() && strings.EqualFold(pred, FunctorInit):
			r.Category = CategoryInit
			ir.inits = append(ir.inits, r)
		case strings.EqualFold(pred, FunctorGoal):
			r.Category = CategoryGoal
			ir.goals = append(ir.goals, r)
			ir.mapped = append(ir.mapped, r)
		case r.IsFact() && !derived[pred]:
			r.Category = CategoryStatic
			ir.statics = append(ir.statics, r)
		default:
			r.Category = CategoryGeneral
			ir.general = append(ir.general, r)
			ir.mapped = append(ir.mapped, r)
		}
		ir.byHead[pred] = append(ir.byHead[pred], r)
		ir.collectPredicates(r)
	}
	return ir
}

func (ir *IR) collectPredicates(r *Rule) {
	seen := func(name string, arity int) {
		if _, ok := ir.arity[name]; ok {
			return
		}
		ir.arity[name] = arity
		ir.predicates = append(ir.predicates, name)
	}
	var visit func(t Term)
	visit = func(t Term) {
		switch t := t.(type) {
		case Constant:
			seen(t.Name, 0)
		case *Compound:
			if !isWrapper(t.Functor) {
				walkFunctors(t, seen)
				return
			}
			// operands of not/or are sentences in their own right
			for _, arg := range t.Args {
				visit(arg)
			}
		}
	}
	visit(r.Head.Term)
	for _, s := range r.Body {
		visit(s.Term)
	}
}

// AllRules returns the general and goal rules in source order. These are the
// rules the binner and the mapper work on.
func (ir *IR) AllRules() []*Rule {
	if ir == nil {
		return nil
	}
	return ir.mapped
}

// GeneralRules returns rules that are neither init, static nor goal rules.
func (ir *IR) GeneralRules() []*Rule { return ir.general }

// InitFacts returns the (init ...) facts.
func (ir *IR) InitFacts() []*Rule { return ir.inits }

// StaticFacts returns facts whose predicate no rule derives.
func (ir *IR) StaticFacts() []*Rule { return ir.statics }

// GoalRules returns the rules and facts headed by goal.
func (ir *IR) GoalRules() []*Rule { return ir.goals }

// Forms returns every parsed form in source order.
func (ir *IR) Forms() []*Rule { return ir.all }

// Predicates returns every distinct predicate name in order of first
// appearance, including relations nested inside other atoms.
func (ir *IR) Predicates() []string {
	if ir == nil {
		return nil
	}
	return ir.predicates
}

// Arity returns the argument count of pred at its first appearance.
func (ir *IR) Arity(pred string) (int, bool) {
	if ir == nil {
		return 0, false
	}
	n, ok := ir.arity[pred]
	return n, ok
}

// RulesFor returns every rule or fact headed by pred, in source order.
func (ir *IR) RulesFor(pred string) []*Rule {
	if ir == nil {
		return nil
	}
	return ir.byHead[pred]
}

// Empty reports whether the IR holds no mappable rules.
func (ir *IR) Empty() bool {
	return ir == nil || len(ir.mapped) == 0
}
