package gdl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentenceOf(t *testing.T, src string) Sentence {
	t.Helper()
	r, err := ParseRule("(<= h " + src + ")")
	require.NoError(t, err)
	require.Len(t, r.Body, 1)
	return r.Body[0]
}

func TestSentence_Predicate(t *testing.T) {
	tests := []struct {
		src   string
		kind  SentenceKind
		pred  string
		arity int
	}{
		{"(true (cell ?x ?y b))", SentenceAtom, "true", 1},
		{"open", SentenceAtom, "open", 0},
		{"(not (cell 1 1 b))", SentenceNegation, "cell", 3},
		{"(not (not terminal))", SentenceNegation, "terminal", 0},
		{"(or (row ?x) (col ?x ?y))", SentenceDisjunction, "row", 1},
		{"(or ?v (col ?x ?y))", SentenceDisjunction, "col", 2},
		{"?x", SentenceVariable, "", 0},
		{"7", SentenceNumber, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			s := sentenceOf(t, tt.src)
			assert.Equal(t, tt.kind, s.Kind())
			assert.Equal(t, tt.pred, s.Predicate())
			assert.Equal(t, tt.arity, s.Arity())
			assert.Equal(t, tt.src, s.String())
		})
	}
}

func TestSentence_Arg(t *testing.T) {
	s := sentenceOf(t, "(not (cell 1 ?y b))")

	a, ok := s.Arg(1)
	require.True(t, ok)
	assert.Equal(t, Variable{Name: "y"}, a)

	_, ok = s.Arg(3)
	assert.False(t, ok)
	_, ok = s.Arg(-1)
	assert.False(t, ok)
}

func TestRule_InitContent(t *testing.T) {
	ir, err := ParseString("(init (control white)) (init step)")
	require.NoError(t, err)
	require.Len(t, ir.InitFacts(), 2)

	s, ok := ir.InitFacts()[0].InitContent()
	require.True(t, ok)
	assert.Equal(t, "control", s.Predicate())

	s, ok = ir.InitFacts()[1].InitContent()
	require.True(t, ok)
	assert.Equal(t, "step", s.Predicate())

	r, err := ParseRule("(role white)")
	require.NoError(t, err)
	_, ok = r.InitContent()
	assert.False(t, ok)
}

func TestNewIR_ReindexesRules(t *testing.T) {
	a, err := ParseRule("(<= (p ?x) (q ?x))")
	require.NoError(t, err)
	b, err := ParseRule("(q 1)")
	require.NoError(t, err)

	ir := NewIR([]*Rule{a, b})
	assert.Equal(t, 0, a.Index)
	assert.Equal(t, 1, b.Index)
	assert.Len(t, ir.GeneralRules(), 1)
	assert.Len(t, ir.StaticFacts(), 1)
}

func TestIR_NilSafe(t *testing.T) {
	var ir *IR
	assert.Nil(t, ir.AllRules())
	assert.Nil(t, ir.Predicates())
	assert.True(t, ir.Empty())
	_, ok := ir.Arity("p")
	assert.False(t, ok)
}
