// Package analogy computes a structural correspondence between the rules of
// two GDL games.
//
// Predicates are first binned (AssignBins) as a cheap relatedness signal.
// The Mapper then runs a greedy search: every step scores all remaining
// source/target rule pairs, accepts the single best one and commits the
// predicate pairs it implies. Commitments are one-to-one, so later steps see
// earlier choices as either matches or conflicts. Retry passes rerun the
// search over what is left. With AllowPartialMaps every pass, the first
// included, may pair rules whose bodies differ in length.
//
// The search is deterministic. It iterates only over slices in source order,
// and ties go to the pair encountered first.
package analogy

import (
	"context"
	"fmt"
	"time"

	"gdlmap/internal/gdl"
	"gdlmap/internal/logging"
)

// Options configures a Mapper.
type Options struct {
	// NumBins is the bin count used when Map assigns bins itself.
	NumBins int
	Weights Weights
	// MaxEvaluationsPerPass caps candidate evaluations in one pass. Zero means
	// unbounded.
	MaxEvaluationsPerPass int
	// Matcher pairs body sentences. Nil selects GreedyMatcher.
	Matcher BodyMatcher
	// RunID tags audit events.
	RunID string
}

// DefaultOptions returns options with the default weights.
func DefaultOptions(numBins int) Options {
	return Options{NumBins: numBins, Weights: DefaultWeights()}
}

// Validate returns a *ConfigError for the first invalid setting.
func (o Options) Validate() error {
	if o.NumBins < 1 {
		return &ConfigError{Field: "num_bins", Value: o.NumBins, Reason: "must be at least 1"}
	}
	if o.MaxEvaluationsPerPass < 0 {
		return &ConfigError{Field: "max_evaluations_per_pass", Value: o.MaxEvaluationsPerPass, Reason: "must not be negative"}
	}
	return o.Weights.Validate()
}

// Result is the outcome of a mapping search.
type Result struct {
	Predicates *PredicateMapping
	Rules      *RuleMapping
	// Score is the sum of the accepted rule pair scores.
	Score float64

	Passes      int
	Retries     int
	Evaluations int
	// Truncated is set when any pass hit MaxEvaluationsPerPass.
	Truncated bool
	State     State

	SourceRules int
	TargetRules int
	Duration    time.Duration
}

// Mapper maps rule sets with a fixed configuration. It holds no per-call
// state and may be shared between goroutines.
type Mapper struct {
	opts    Options
	matcher BodyMatcher
}

// NewMapper validates opts and returns a Mapper.
func NewMapper(opts Options) (*Mapper, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m := &Mapper{opts: opts, matcher: opts.Matcher}
	if m.matcher == nil {
		m.matcher = GreedyMatcher{}
	}
	return m, nil
}

// Options returns the mapper's configuration.
func (m *Mapper) Options() Options {
	return m.opts
}

// Map bins both rule sets with the configured bin count and maps src onto tgt.
func (m *Mapper) Map(ctx context.Context, src, tgt *gdl.IR) (*Result, error) {
	return m.MapWithBins(ctx, src, tgt, nil, nil)
}

// MapWithBins maps src onto tgt using precomputed bins. A nil assignment is
// computed with the configured bin count. Empty rule sets give an empty
// mapping with score 0.
//
// If ctx is cancelled between search steps the mapping built so far is
// returned together with ctx.Err().
func (m *Mapper) MapWithBins(ctx context.Context, src, tgt *gdl.IR, srcBins, tgtBins *BinAssignment) (*Result, error) {
	var err error
	if srcBins == nil {
		if srcBins, err = AssignBins(src, m.opts.NumBins); err != nil {
			return nil, err
		}
	}
	if tgtBins == nil {
		if tgtBins, err = AssignBins(tgt, m.opts.NumBins); err != nil {
			return nil, err
		}
	}

	timer := logging.StartTimer(logging.CategoryMapper, "Map")
	audit := logging.AuditWithRun(m.opts.RunID)
	audit.Log(logging.AuditEvent{
		EventType: logging.AuditMapStart,
		Source:    irSource(src),
		Target:    irSource(tgt),
		Message:   fmt.Sprintf("%d x %d rules", len(src.AllRules()), len(tgt.AllRules())),
	})

	s := newSearch(m.opts, m.matcher, src, tgt, srcBins, tgtBins)
	runErr := s.run(ctx)
	s.finalize()

	res := &Result{
		Predicates:  s.preds,
		Rules:       s.rules,
		Score:       s.score,
		Passes:      s.pass,
		Retries:     s.retries,
		Evaluations: s.evals,
		Truncated:   s.truncated,
		State:       s.state,
		SourceRules: len(src.AllRules()),
		TargetRules: len(tgt.AllRules()),
		Duration:    timer.Stop(),
	}

	audit.Log(logging.AuditEvent{
		EventType: logging.AuditMapDone,
		Source:    irSource(src),
		Target:    irSource(tgt),
		Pass:      res.Passes,
		Score:     res.Score,
	})
	if runErr != nil {
		logging.MapperWarn("search interrupted in %s: %v", res.State, runErr)
		return res, runErr
	}
	logging.Mapper("mapped %d/%d rules, %d predicates, score %.3f in %d passes",
		res.Rules.Len(), res.SourceRules, res.Predicates.Len(), res.Score, res.Passes)
	return res, nil
}

func irSource(ir *gdl.IR) string {
	if ir == nil {
		return ""
	}
	return ir.Source
}
