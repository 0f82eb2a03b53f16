package analogy

import (
	"context"

	"gdlmap/internal/gdl"
	"gdlmap/internal/logging"
)

// search holds the iterative state of one Map call.
type search struct {
	opts    Options
	w       Weights
	matcher BodyMatcher

	src, tgt         *gdl.IR
	srcBins, tgtBins *BinAssignment

	preds *PredicateMapping
	rules *RuleMapping

	state     State
	pass      int
	retries   int
	evals     int
	truncated bool
	score     float64

	audit *logging.AuditLogger
}

type candidate struct {
	src, tgt *gdl.Rule
	score    float64
	body     []BodyPair
	fresh    []PredicatePair
	reused   bool
}

func newSearch(opts Options, matcher BodyMatcher, src, tgt *gdl.IR, srcBins, tgtBins *BinAssignment) *search {
	return &search{
		opts:    opts,
		w:       opts.Weights,
		matcher: matcher,
		src:     src,
		tgt:     tgt,
		srcBins: srcBins,
		tgtBins: tgtBins,
		preds:   NewPredicateMapping(),
		rules:   NewRuleMapping(),
		state:   StateUnmapped,
		audit:   logging.AuditWithRun(opts.RunID),
	}
}

func (s *search) setState(next State) {
	logging.MapperDebug("state %s -> %s (pass %d)", s.state, next, s.pass)
	s.audit.StateChange(s.state.String(), next.String(), s.pass)
	s.state = next
}

// run drives the state machine. Every pass uses the configured partial
// policy; retry passes revisit the rules still unmapped.
func (s *search) run(ctx context.Context) error {
	strict := !s.w.AllowPartialMaps
	s.setState(StateSearching)
	if _, _, err := s.runPass(ctx, strict); err != nil {
		return err
	}
	s.setState(StateConverged)

	for s.retries < s.w.NumRetries {
		s.setState(StateRetrying)
		s.retries++
		s.setState(StateSearching)
		accepted, truncated, err := s.runPass(ctx, strict)
		if err != nil {
			return err
		}
		s.setState(StateConverged)
		if accepted == 0 && !truncated {
			break
		}
	}
	s.setState(StateDone)
	return nil
}

// runPass accepts the best remaining rule pair until none scores above zero
// or the evaluation budget runs out. When the budget is hit mid-step the best
// pair seen so far is still accepted.
func (s *search) runPass(ctx context.Context, strict bool) (accepted int, truncated bool, err error) {
	s.pass++
	budget := s.opts.MaxEvaluationsPerPass
	used := 0

	for {
		if err := ctx.Err(); err != nil {
			return accepted, truncated, err
		}

		var best *candidate
		cut := false
	scan:
		for _, r := range s.src.AllRules() {
			if s.rules.hasSource(r) {
				continue
			}
			for _, t := range s.tgt.AllRules() {
				if s.rules.hasTarget(t) {
					continue
				}
				if budget > 0 && used >= budget {
					cut = true
					break scan
				}
				used++
				s.evals++
				c, ok := s.evaluate(r, t, strict)
				if ok && c.score > 0 && (best == nil || c.score > best.score) {
					best = c
				}
			}
		}

		if best != nil {
			s.accept(best, !strict)
			accepted++
		}
		if cut {
			s.truncated = true
			logging.MapperWarn("pass %d stopped after %d evaluations", s.pass, used)
			s.endPass(accepted, true)
			return accepted, true, nil
		}
		if best == nil {
			s.endPass(accepted, false)
			return accepted, false, nil
		}
	}
}

func (s *search) endPass(accepted int, truncated bool) {
	logging.MapperDebug("pass %d accepted %d pairs (truncated=%v)", s.pass, accepted, truncated)
	msg := "converged"
	if truncated {
		msg = "truncated"
	}
	s.audit.Log(logging.AuditEvent{
		EventType: logging.AuditPassEnd,
		Pass:      s.pass,
		Score:     float64(accepted),
		Message:   msg,
	})
}

// evaluate scores r against t. Tentative bindings made while scoring are
// rolled back before it returns; the candidate keeps the fresh pairs to
// commit if it is accepted.
func (s *search) evaluate(r, t *gdl.Rule, strict bool) (*candidate, bool) {
	s.preds.Rollback()
	defer s.preds.Rollback()

	hp, hq := r.HeadPredicate(), t.HeadPredicate()
	hst := s.preds.status(hp, hq)
	// A conflicting head scores MismatchedPredScore and stays uncommitted.
	hs := s.predScore(r.Head, t.Head)
	if strict && hs <= 0 {
		return nil, false
	}
	reused := hst == statusCommitted
	s.preds.Bind(hp, hq)

	if strict && len(r.Body) != len(t.Body) {
		return nil, false
	}

	prob := &bodyProblem{s: s, src: r.Body, tgt: t.Body, strict: strict}
	chosen := s.matcher.Solve(prob)
	if strict && len(chosen) != len(r.Body) {
		return nil, false
	}

	total := s.w.HeadScoreFactor * hs
	body := make([]BodyPair, 0, len(chosen))
	usedRow := make(map[int]bool, len(chosen))
	usedCol := make(map[int]bool, len(chosen))
	for _, bp := range chosen {
		if bp.Source < 0 || bp.Source >= len(r.Body) || bp.Target < 0 || bp.Target >= len(t.Body) ||
			usedRow[bp.Source] || usedCol[bp.Target] {
			logging.MapperWarn("matcher returned invalid body pair %d/%d", bp.Source, bp.Target)
			return nil, false
		}
		usedRow[bp.Source], usedCol[bp.Target] = true, true

		sc, ok := prob.Score(bp.Source, bp.Target)
		if !ok {
			return nil, false
		}
		if s.preds.status(r.Body[bp.Source].Predicate(), t.Body[bp.Target].Predicate()) == statusCommitted {
			reused = true
		}
		bp.Score = sc
		total += sc
		body = append(body, bp)
	}
	if reused {
		total *= s.w.MatchedRuleMult
	}

	return &candidate{
		src:    r,
		tgt:    t,
		score:  total,
		body:   body,
		fresh:  s.preds.Tentative(),
		reused: reused,
	}, true
}

func (s *search) accept(c *candidate, partial bool) {
	for _, p := range c.fresh {
		s.preds.Bind(p.Source, p.Target)
	}
	s.preds.Commit()
	s.rules.add(RulePair{
		Source:      c.src,
		Target:      c.tgt,
		Body:        c.body,
		Pass:        s.pass,
		Partial:     partial,
		Reused:      c.reused,
		AcceptScore: c.score,
	})
	logging.MapperDebug("accepted %s => %s (%.3f, %d new predicate pairs)", c.src, c.tgt, c.score, len(c.fresh))
	s.audit.PairAccepted(c.src.String(), c.tgt.String(), s.pass, c.score)
}

// finalize scores every accepted pair against the final predicate mapping.
func (s *search) finalize() {
	s.preds.Rollback()
	s.score = 0
	for i := range s.rules.pairs {
		p := &s.rules.pairs[i]
		sc := s.w.HeadScoreFactor * s.predScore(p.Source.Head, p.Target.Head)
		for _, bp := range p.Body {
			sc += s.predScore(p.Source.Body[bp.Source], p.Target.Body[bp.Target])
		}
		if p.Reused {
			sc *= s.w.MatchedRuleMult
		}
		p.Score = sc
		s.score += sc
	}
}

// predScore is the similarity of two sentences' predicates under the current
// mapping.
func (s *search) predScore(a, b gdl.Sentence) float64 {
	p, q := a.Predicate(), b.Predicate()
	switch s.preds.status(p, q) {
	case statusCommitted:
		return s.w.MatchedPredScore
	case statusConflict:
		return s.w.MismatchedPredScore
	case statusBothEmpty:
		return s.w.BaselinePredScore
	case statusOneEmpty:
		return 0
	}

	score := s.w.BaselinePredScore
	if a.Arity() != b.Arity() {
		score *= s.w.ArityMismatchMult
	}
	if sameBin(s.srcBins, p, s.tgtBins, q) {
		score *= s.w.BinMatchMult
	} else {
		score *= s.w.BinMismatchMult
	}
	return score
}

// bodyProblem adapts one candidate's bodies to PairingProblem.
type bodyProblem struct {
	s        *search
	src, tgt []gdl.Sentence
	strict   bool
}

func (p *bodyProblem) Size() (int, int) {
	return len(p.src), len(p.tgt)
}

func (p *bodyProblem) Score(i, j int) (float64, bool) {
	a, b := p.src[i], p.tgt[j]
	switch p.s.preds.status(a.Predicate(), b.Predicate()) {
	case statusTentativeConflict:
		return 0, false
	case statusConflict:
		if p.strict && p.s.w.MismatchedPredScore <= 0 {
			return 0, false
		}
		return p.s.w.MismatchedPredScore, true
	}
	sc := p.s.predScore(a, b)
	if p.strict && sc <= 0 {
		return 0, false
	}
	return sc, true
}

func (p *bodyProblem) Choose(i, j int) {
	p.s.preds.Bind(p.src[i].Predicate(), p.tgt[j].Predicate())
}
