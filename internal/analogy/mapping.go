package analogy

import "gdlmap/internal/gdl"

// PredicatePair is one source → target predicate correspondence.
type PredicatePair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type pairStatus int

const (
	statusFree pairStatus = iota
	statusCommitted
	statusConflict // either side committed to another partner
	statusTentative
	statusTentativeConflict
	statusBothEmpty
	statusOneEmpty
)

// PredicateMapping is an injective partial map from source to target
// predicates. Committed pairs are permanent. Tentative pairs are bound while
// a candidate rule pair is evaluated and are either committed with it or
// rolled back.
type PredicateMapping struct {
	fwd, rev map[string]string
	pairs    []PredicatePair

	tfwd, trev map[string]string
	tentative  []PredicatePair
}

// NewPredicateMapping returns an empty mapping.
func NewPredicateMapping() *PredicateMapping {
	return &PredicateMapping{
		fwd:  make(map[string]string),
		rev:  make(map[string]string),
		tfwd: make(map[string]string),
		trev: make(map[string]string),
	}
}

// Target returns the committed partner of a source predicate.
func (m *PredicateMapping) Target(src string) (string, bool) {
	t, ok := m.fwd[src]
	return t, ok
}

// Source returns the committed partner of a target predicate.
func (m *PredicateMapping) Source(tgt string) (string, bool) {
	s, ok := m.rev[tgt]
	return s, ok
}

// Len returns the number of committed pairs.
func (m *PredicateMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns the committed pairs in commit order.
func (m *PredicateMapping) Pairs() []PredicatePair {
	if m == nil {
		return nil
	}
	return append([]PredicatePair(nil), m.pairs...)
}

// Bind records src → tgt tentatively. It returns false when the pair is
// inconsistent with a committed or tentative pair, or when either side is
// empty. Binding a pair that already holds is a no-op.
func (m *PredicateMapping) Bind(src, tgt string) bool {
	switch m.status(src, tgt) {
	case statusCommitted, statusTentative:
		return true
	case statusFree:
		m.tfwd[src] = tgt
		m.trev[tgt] = src
		m.tentative = append(m.tentative, PredicatePair{Source: src, Target: tgt})
		return true
	}
	return false
}

// Tentative returns a copy of the tentative pairs in bind order.
func (m *PredicateMapping) Tentative() []PredicatePair {
	return append([]PredicatePair(nil), m.tentative...)
}

// Commit makes every tentative pair permanent.
func (m *PredicateMapping) Commit() {
	for _, p := range m.tentative {
		m.fwd[p.Source] = p.Target
		m.rev[p.Target] = p.Source
		m.pairs = append(m.pairs, p)
	}
	m.Rollback()
}

// Rollback discards every tentative pair.
func (m *PredicateMapping) Rollback() {
	if len(m.tentative) == 0 {
		return
	}
	clear(m.tfwd)
	clear(m.trev)
	m.tentative = m.tentative[:0]
}

func (m *PredicateMapping) status(src, tgt string) pairStatus {
	switch {
	case src == "" && tgt == "":
		return statusBothEmpty
	case src == "" || tgt == "":
		return statusOneEmpty
	}
	if t, ok := m.fwd[src]; ok {
		if t == tgt {
			return statusCommitted
		}
		return statusConflict
	}
	if _, ok := m.rev[tgt]; ok {
		return statusConflict
	}
	if t, ok := m.tfwd[src]; ok {
		if t == tgt {
			return statusTentative
		}
		return statusTentativeConflict
	}
	if _, ok := m.trev[tgt]; ok {
		return statusTentativeConflict
	}
	return statusFree
}

// RulePair is an accepted source → target rule correspondence.
type RulePair struct {
	Source *gdl.Rule
	Target *gdl.Rule
	// Body pairs body sentence indexes of Source with those of Target.
	Body []BodyPair
	// Pass is the 1-based search pass that accepted the pair.
	Pass int
	// Partial is set when the pair was accepted under the partial policy.
	Partial bool
	// Reused is set when the pair agreed with a predicate pair committed by
	// an earlier acceptance.
	Reused bool
	// AcceptScore is the score the pair won with.
	AcceptScore float64
	// Score is the pair's contribution to the final total.
	Score float64
}

// RuleMapping is an injective partial map from source to target rules.
type RuleMapping struct {
	pairs []RulePair
	fwd   map[*gdl.Rule]int
	rev   map[*gdl.Rule]int
}

// NewRuleMapping returns an empty mapping.
func NewRuleMapping() *RuleMapping {
	return &RuleMapping{fwd: make(map[*gdl.Rule]int), rev: make(map[*gdl.Rule]int)}
}

func (m *RuleMapping) add(p RulePair) {
	m.fwd[p.Source] = len(m.pairs)
	m.rev[p.Target] = len(m.pairs)
	m.pairs = append(m.pairs, p)
}

// Target returns the rule src is mapped to.
func (m *RuleMapping) Target(src *gdl.Rule) (*gdl.Rule, bool) {
	i, ok := m.fwd[src]
	if !ok {
		return nil, false
	}
	return m.pairs[i].Target, true
}

// Source returns the rule mapped to tgt.
func (m *RuleMapping) Source(tgt *gdl.Rule) (*gdl.Rule, bool) {
	i, ok := m.rev[tgt]
	if !ok {
		return nil, false
	}
	return m.pairs[i].Source, true
}

// Len returns the number of mapped rule pairs.
func (m *RuleMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns the accepted pairs in acceptance order.
func (m *RuleMapping) Pairs() []RulePair {
	if m == nil {
		return nil
	}
	return append([]RulePair(nil), m.pairs...)
}

func (m *RuleMapping) hasSource(r *gdl.Rule) bool {
	_, ok := m.fwd[r]
	return ok
}

func (m *RuleMapping) hasTarget(r *gdl.Rule) bool {
	_, ok := m.rev[r]
	return ok
}
