package analogy

import (
	"fmt"
	"sort"
	"strings"
)

// BodyPair pairs body sentence Source of a source rule with body sentence
// Target of a target rule.
type BodyPair struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Score  float64 `json:"score"`
}

// PairingProblem is the body assignment problem of one candidate rule pair.
// Score reports whether (i, j) may be paired given the choices made so far;
// Choose records the pairing so later Score calls see it.
type PairingProblem interface {
	Size() (rows, cols int)
	Score(i, j int) (float64, bool)
	Choose(i, j int)
}

// BodyMatcher pairs the body sentences of two rules. Each row and column may
// be used at most once.
type BodyMatcher interface {
	Solve(p PairingProblem) []BodyPair
}

// GreedyMatcher takes pairs in descending score order and never reassigns
// one. Ties go to the lower row, then the lower column. A pair that has
// become inconsistent with earlier choices is skipped.
type GreedyMatcher struct{}

// Solve implements BodyMatcher.
func (GreedyMatcher) Solve(p PairingProblem) []BodyPair {
	rows, cols := p.Size()
	var cells []BodyPair
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if sc, ok := p.Score(i, j); ok {
				cells = append(cells, BodyPair{Source: i, Target: j, Score: sc})
			}
		}
	}
	sort.SliceStable(cells, func(a, b int) bool {
		return cells[a].Score > cells[b].Score
	})

	usedRow := make([]bool, rows)
	usedCol := make([]bool, cols)
	var out []BodyPair
	for _, c := range cells {
		if usedRow[c.Source] || usedCol[c.Target] {
			continue
		}
		sc, ok := p.Score(c.Source, c.Target)
		if !ok {
			continue
		}
		p.Choose(c.Source, c.Target)
		usedRow[c.Source], usedCol[c.Target] = true, true
		out = append(out, BodyPair{Source: c.Source, Target: c.Target, Score: sc})
	}
	return out
}

// PositionalMatcher pairs sentence i with sentence i over the common prefix
// of the two bodies and drops positions that cannot be paired.
type PositionalMatcher struct{}

// Solve implements BodyMatcher.
func (PositionalMatcher) Solve(p PairingProblem) []BodyPair {
	rows, cols := p.Size()
	var out []BodyPair
	for i := 0; i < min(rows, cols); i++ {
		sc, ok := p.Score(i, i)
		if !ok {
			continue
		}
		p.Choose(i, i)
		out = append(out, BodyPair{Source: i, Target: i, Score: sc})
	}
	return out
}

// MatcherByName returns the matcher registered under name ("greedy" or
// "positional"). The empty name selects greedy.
func MatcherByName(name string) (BodyMatcher, error) {
	switch strings.ToLower(name) {
	case "", "greedy":
		return GreedyMatcher{}, nil
	case "positional":
		return PositionalMatcher{}, nil
	}
	return nil, &ConfigError{Field: "body_matcher", Value: name, Reason: fmt.Sprintf("unknown matcher (want %q or %q)", "greedy", "positional")}
}
