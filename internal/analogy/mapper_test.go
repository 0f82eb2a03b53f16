package analogy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdlmap/internal/gdl"
)

const buttonGame = `
(role robot)
(init (step 1))
(<= (next (step ?y)) (true (step ?x)) (succ ?x ?y))
(<= (legal robot (push ?b)) (true (box ?b)))
(<= terminal (true (step 3)))
(<= (goal robot 100) (true (box a)) (not (true (box b))))
(succ 1 2)
(succ 2 3)
`

const ticTacToe = `
(role xplayer)
(role oplayer)
(init (cell 1 1 b))
(init (control xplayer))
(<= (next (cell ?m ?n x)) (does xplayer (mark ?m ?n)) (true (cell ?m ?n b)))
(<= (next (control oplayer)) (true (control xplayer)))
(<= (legal ?w (mark ?x ?y)) (true (cell ?x ?y b)) (true (control ?w)))
(<= (legal xplayer noop) (true (control oplayer)))
(<= (row ?m ?x) (true (cell ?m 1 ?x)) (true (cell ?m 2 ?x)))
(<= (line ?x) (or (row ?m ?x) (column ?n ?x)))
(<= open (true (cell ?m ?n b)))
(<= terminal (line x))
(<= terminal (not open))
(<= (goal xplayer 100) (line x))
(<= (goal xplayer 0) (not (line x)))
`

func newTestMapper(t *testing.T, opts Options) *Mapper {
	t.Helper()
	m, err := NewMapper(opts)
	require.NoError(t, err)
	return m
}

func TestMap_IdenticalRuleSets(t *testing.T) {
	src := mustParse(t, buttonGame)
	tgt := mustParse(t, buttonGame)
	w := DefaultWeights()

	m := newTestMapper(t, DefaultOptions(1))
	res, err := m.Map(context.Background(), src, tgt)
	require.NoError(t, err)

	require.Equal(t, len(src.AllRules()), res.Rules.Len())
	for _, p := range res.Rules.Pairs() {
		assert.Equal(t, p.Source.Index, p.Target.Index, "%s mapped to %s", p.Source, p.Target)
	}
	for _, p := range res.Predicates.Pairs() {
		assert.Equal(t, p.Source, p.Target)
	}
	for _, pred := range []string{"next", "true", "succ", "legal", "terminal", "goal"} {
		got, ok := res.Predicates.Target(pred)
		assert.True(t, ok, pred)
		assert.Equal(t, pred, got)
	}

	var want float64
	for _, r := range src.AllRules() {
		want += (w.HeadScoreFactor + float64(len(r.Body))) * w.MatchedPredScore
	}
	assert.InDelta(t, want, res.Score, 1e-9)
	assert.InDelta(t, 28.0, res.Score, 1e-9)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, 1, res.Retries)
	assert.False(t, res.Truncated)
}

func TestMap_IdenticalLargerGame(t *testing.T) {
	src := mustParse(t, ticTacToe)
	tgt := mustParse(t, ticTacToe)

	res, err := newTestMapper(t, DefaultOptions(1)).Map(context.Background(), src, tgt)
	require.NoError(t, err)

	w := DefaultWeights()
	var want float64
	for _, r := range src.AllRules() {
		want += (w.HeadScoreFactor + float64(len(r.Body))) * w.MatchedPredScore
	}
	assert.Equal(t, len(src.AllRules()), res.Rules.Len())
	assert.InDelta(t, want, res.Score, 1e-9)
	for _, p := range res.Predicates.Pairs() {
		assert.Equal(t, p.Source, p.Target)
	}
}

func TestNewMapper_RejectsZeroBins(t *testing.T) {
	m, err := NewMapper(DefaultOptions(0))
	assert.Nil(t, m)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce), "want *ConfigError, got %v", err)
	assert.Equal(t, "num_bins", ce.Field)
}

func TestNewMapper_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Options)
		field string
	}{
		{"negative retries", func(o *Options) { o.Weights.NumRetries = -1 }, "num_retries"},
		{"nan head", func(o *Options) { o.Weights.HeadScoreFactor = math.NaN() }, "head_score_factor"},
		{"infinite bin mult", func(o *Options) { o.Weights.BinMatchMult = math.Inf(1) }, "bin_match_mult"},
		{"negative mismatch", func(o *Options) { o.Weights.MismatchedPredScore = -1 }, "mismatched_pred_score"},
		{"negative budget", func(o *Options) { o.MaxEvaluationsPerPass = -5 }, "max_evaluations_per_pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions(2)
			tt.edit(&opts)
			_, err := NewMapper(opts)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	assert.NoError(t, DefaultWeights().Validate())
}

func TestMap_EmptySource(t *testing.T) {
	src := mustParse(t, "")
	tgt := mustParse(t, buttonGame)

	res, err := newTestMapper(t, DefaultOptions(3)).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	assert.Zero(t, res.Rules.Len())
	assert.Zero(t, res.Predicates.Len())
	assert.Zero(t, res.Score)
	assert.Equal(t, StateDone, res.State)
}

func TestMap_NilTarget(t *testing.T) {
	res, err := newTestMapper(t, DefaultOptions(3)).Map(context.Background(), mustParse(t, buttonGame), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Rules.Len())
	assert.Zero(t, res.Score)
}

func snapshot(res *Result) []string {
	var out []string
	for _, p := range res.Predicates.Pairs() {
		out = append(out, p.Source+"->"+p.Target)
	}
	for _, p := range res.Rules.Pairs() {
		out = append(out, p.Source.String()+" => "+p.Target.String())
	}
	return out
}

func TestMap_Deterministic(t *testing.T) {
	src := mustParse(t, ticTacToe)
	tgt := mustParse(t, buttonGame)

	opts := DefaultOptions(3)
	opts.Weights.AllowPartialMaps = true
	opts.Weights.NumRetries = 3
	m := newTestMapper(t, opts)

	first, err := m.Map(context.Background(), src, tgt)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := m.Map(context.Background(), src, tgt)
		require.NoError(t, err)
		if diff := cmp.Diff(snapshot(first), snapshot(again)); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
		assert.Equal(t, first.Score, again.Score)
	}
}

func TestMap_OneToOne(t *testing.T) {
	for _, partial := range []bool{false, true} {
		opts := DefaultOptions(2)
		opts.Weights.AllowPartialMaps = partial
		opts.Weights.NumRetries = 4
		res, err := newTestMapper(t, opts).Map(context.Background(), mustParse(t, ticTacToe), mustParse(t, buttonGame))
		require.NoError(t, err)

		srcSeen := map[string]bool{}
		tgtSeen := map[string]bool{}
		for _, p := range res.Predicates.Pairs() {
			assert.False(t, srcSeen[p.Source], "source %s mapped twice", p.Source)
			assert.False(t, tgtSeen[p.Target], "target %s mapped twice", p.Target)
			srcSeen[p.Source], tgtSeen[p.Target] = true, true
		}

		srcRules := map[*gdl.Rule]bool{}
		tgtRules := map[*gdl.Rule]bool{}
		for _, p := range res.Rules.Pairs() {
			assert.False(t, srcRules[p.Source])
			assert.False(t, tgtRules[p.Target])
			srcRules[p.Source], tgtRules[p.Target] = true, true
		}
	}
}

func TestMap_MonotonicInRetries(t *testing.T) {
	src := mustParse(t, ticTacToe)
	tgt := mustParse(t, buttonGame)

	prev := -1.0
	for k := 0; k <= 4; k++ {
		opts := DefaultOptions(2)
		opts.Weights.AllowPartialMaps = true
		opts.Weights.NumRetries = k
		res, err := newTestMapper(t, opts).Map(context.Background(), src, tgt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Score, prev, "retries=%d", k)
		prev = res.Score
	}
}

func TestMap_PartialPairsDifferentLengths(t *testing.T) {
	src := mustParse(t, "(<= (p ?x) (q ?x) (r ?x))")
	tgt := mustParse(t, "(<= (a ?x) (b ?x))")

	strict := DefaultOptions(1)
	res, err := newTestMapper(t, strict).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	assert.Zero(t, res.Rules.Len(), "strict mode needs equal body lengths")
	assert.Zero(t, res.Score)

	partial := DefaultOptions(1)
	partial.Weights.AllowPartialMaps = true
	res, err = newTestMapper(t, partial).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	require.Equal(t, 1, res.Rules.Len())

	pair := res.Rules.Pairs()[0]
	assert.True(t, pair.Partial)
	assert.Equal(t, 1, pair.Pass, "partial matching applies from the first pass")
	assert.InDelta(t, 3.0, pair.AcceptScore, 1e-9)
	// head 2*2, q->b 2, r unpaired
	assert.InDelta(t, 6.0, res.Score, 1e-9)
	assert.Equal(t, []PredicatePair{{"p", "a"}, {"q", "b"}}, res.Predicates.Pairs())
}

func TestMap_PartialWithoutRetries(t *testing.T) {
	opts := DefaultOptions(1)
	opts.Weights.AllowPartialMaps = true
	opts.Weights.NumRetries = 0
	res, err := newTestMapper(t, opts).Map(context.Background(),
		mustParse(t, "(<= (p ?x) (q ?x) (r ?x))"), mustParse(t, "(<= (a ?x) (b ?x))"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Rules.Len())
	assert.True(t, res.Rules.Pairs()[0].Partial)
	assert.Equal(t, 1, res.Passes)
	assert.InDelta(t, 6.0, res.Score, 1e-9)
}

func TestMap_StrictConflictWithPositiveMismatchScore(t *testing.T) {
	src := mustParse(t, "(<= (p ?x) (q ?x)) (<= (s ?x) (q ?x))")
	tgt := mustParse(t, "(<= (a ?x) (b ?x)) (<= (c ?x) (d ?x))")

	opts := DefaultOptions(1)
	opts.Weights.NumRetries = 0
	opts.Weights.MismatchedPredScore = 0.5
	res, err := newTestMapper(t, opts).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	require.Equal(t, 2, res.Rules.Len(), "a conflict scoring above zero does not disqualify a strict pair")
	for _, p := range res.Rules.Pairs() {
		assert.False(t, p.Partial)
	}
	// p/a: 2*2 + 2; s/c: 2*2 + 0.5 for the q/d conflict
	assert.InDelta(t, 10.5, res.Score, 1e-9)

	_, ok := res.Predicates.Source("d")
	assert.False(t, ok, "the conflicting pair stays uncommitted")
	assert.Equal(t, 3, res.Predicates.Len())
}

func TestMap_ConflictingPredicates(t *testing.T) {
	src := mustParse(t, "(<= (p ?x) (q ?x)) (<= (s ?x) (q ?x))")
	tgt := mustParse(t, "(<= (a ?x) (b ?x)) (<= (c ?x) (d ?x))")

	res, err := newTestMapper(t, DefaultOptions(1)).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	require.Equal(t, 1, res.Rules.Len(), "q is committed to b so s cannot pair with c")
	assert.InDelta(t, 6.0, res.Score, 1e-9)

	opts := DefaultOptions(1)
	opts.Weights.AllowPartialMaps = true
	res, err = newTestMapper(t, opts).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	require.Equal(t, 2, res.Rules.Len())
	assert.InDelta(t, 10.0, res.Score, 1e-9)

	got, _ := res.Predicates.Target("q")
	assert.Equal(t, "b", got)
	_, ok := res.Predicates.Source("d")
	assert.False(t, ok, "conflicting pairs are scored but never committed")
	assert.Equal(t, 3, res.Predicates.Len())
}

func TestMap_MatchedRuleMultiplier(t *testing.T) {
	opts := DefaultOptions(1)
	opts.Weights.MatchedRuleMult = 3
	res, err := newTestMapper(t, opts).Map(context.Background(), mustParse(t, buttonGame), mustParse(t, buttonGame))
	require.NoError(t, err)

	var reused int
	for _, p := range res.Rules.Pairs() {
		if p.Reused {
			reused++
		}
	}
	// the first pair commits true; the other three reuse it
	assert.Equal(t, 3, reused)
	assert.InDelta(t, 8+24+18+18, res.Score, 1e-9)
}

func TestMap_EvaluationBudget(t *testing.T) {
	src := mustParse(t, buttonGame)
	tgt := mustParse(t, buttonGame)

	opts := DefaultOptions(1)
	opts.Weights.NumRetries = 0
	opts.MaxEvaluationsPerPass = 1
	res, err := newTestMapper(t, opts).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 1, res.Evaluations)
	assert.Equal(t, 1, res.Rules.Len())

	// retries resume work the budget cut off
	opts.Weights.NumRetries = 10
	res, err = newTestMapper(t, opts).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 4, res.Rules.Len())
	assert.Equal(t, 5, res.Passes)
	assert.InDelta(t, 28.0, res.Score, 1e-9)
}

func TestMap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestMapper(t, DefaultOptions(1)).Map(ctx, mustParse(t, buttonGame), mustParse(t, buttonGame))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Rules.Len())
	assert.Equal(t, StateSearching, res.State)
}

func TestMap_PrecomputedBins(t *testing.T) {
	src := mustParse(t, "(<= (p ?x) (q ?x))")
	tgt := mustParse(t, "(<= (a ?x) (b ?x))")

	srcBins, err := AssignBins(src, 2)
	require.NoError(t, err)
	tgtBins, err := AssignBins(tgt, 2)
	require.NoError(t, err)

	opts := DefaultOptions(2)
	opts.Weights.NumRetries = 0
	res, err := newTestMapper(t, opts).MapWithBins(context.Background(), src, tgt, srcBins, tgtBins)
	require.NoError(t, err)
	require.Equal(t, 1, res.Rules.Len())
	// p,a share bin 0 and q,b share bin 1
	assert.InDelta(t, 3.0, res.Rules.Pairs()[0].AcceptScore, 1e-9)

	// swapping target bins halves every predicate score
	swapped, err := AssignBins(mustParse(t, "(<= (b ?x) (a ?x))"), 2)
	require.NoError(t, err)
	res, err = newTestMapper(t, opts).MapWithBins(context.Background(), src, tgt, srcBins, swapped)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, res.Rules.Pairs()[0].AcceptScore, 1e-9)
}

func TestMap_PositionalMatcher(t *testing.T) {
	src := mustParse(t, "(<= (p ?x) (q ?x) (r ?x ?y))")
	tgt := mustParse(t, "(<= (a ?x) (c ?x ?y) (b ?x))")

	opts := DefaultOptions(1)
	opts.Weights.NumRetries = 0

	res, err := newTestMapper(t, opts).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	got, _ := res.Predicates.Target("r")
	assert.Equal(t, "c", got, "greedy pairs by arity")

	opts.Matcher = PositionalMatcher{}
	res, err = newTestMapper(t, opts).Map(context.Background(), src, tgt)
	require.NoError(t, err)
	got, _ = res.Predicates.Target("r")
	assert.Equal(t, "b", got, "positional pairs by index")
}

func TestPredicateMapping_TentativeLayer(t *testing.T) {
	m := NewPredicateMapping()
	assert.True(t, m.Bind("p", "a"))
	assert.True(t, m.Bind("p", "a"))
	assert.False(t, m.Bind("p", "b"))
	assert.False(t, m.Bind("q", "a"))
	assert.False(t, m.Bind("", "a"))
	assert.Zero(t, m.Len())

	m.Rollback()
	assert.Empty(t, m.Tentative())
	assert.True(t, m.Bind("p", "b"))
	m.Commit()

	got, ok := m.Target("p")
	assert.True(t, ok)
	assert.Equal(t, "b", got)
	assert.Empty(t, m.Tentative())

	assert.False(t, m.Bind("p", "a"), "committed pairs are permanent")
	assert.True(t, m.Bind("p", "b"))
	assert.Equal(t, []PredicatePair{{"p", "b"}}, m.Pairs())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "converged", StateConverged.String())
	assert.Equal(t, "unknown", State(42).String())
}
