package analogy

import "math"

// Weights is the tunable scoring model. The zero value is not useful; start
// from DefaultWeights.
type Weights struct {
	// HeadScoreFactor scales the head predicate score of a rule pair.
	HeadScoreFactor float64 `yaml:"head_score_factor" json:"head_score_factor"`
	// AllowPartialMaps lets every pass pair rules of differing body length
	// and keep pairs whose predicates score zero or conflict.
	AllowPartialMaps bool `yaml:"allow_partial_maps" json:"allow_partial_maps"`
	// NumRetries is the number of extra passes after the first convergence.
	NumRetries int `yaml:"num_retries" json:"num_retries"`

	MatchedPredScore float64 `yaml:"matched_pred_score" json:"matched_pred_score"`

	// MismatchedPredScore scores a predicate pair that conflicts with a
	// committed pair. The conflicting pair is never committed. At zero,
	// strict passes reject any rule pair containing a conflict.
	MismatchedPredScore float64 `yaml:"mismatched_pred_score" json:"mismatched_pred_score"`
	BinMatchMult        float64 `yaml:"bin_match_mult" json:"bin_match_mult"`
	BinMismatchMult     float64 `yaml:"bin_mismatch_mult" json:"bin_mismatch_mult"`
	MatchedRuleMult     float64 `yaml:"matched_rule_mult" json:"matched_rule_mult"`

	// BaselinePredScore is the similarity of two predicates neither of which
	// is committed yet, before bin and arity multipliers.
	BaselinePredScore float64 `yaml:"baseline_pred_score" json:"baseline_pred_score"`
	// ArityMismatchMult applies when the two atoms differ in argument count.
	ArityMismatchMult float64 `yaml:"arity_mismatch_mult" json:"arity_mismatch_mult"`
}

// DefaultWeights returns the stock scoring model.
func DefaultWeights() Weights {
	return Weights{
		HeadScoreFactor:     2.0,
		AllowPartialMaps:    false,
		NumRetries:          1,
		MatchedPredScore:    2.0,
		MismatchedPredScore: 0,
		BinMatchMult:        1.0,
		BinMismatchMult:     0.5,
		MatchedRuleMult:     1.0,
		BaselinePredScore:   1.0,
		ArityMismatchMult:   0.5,
	}
}

// Validate returns a *ConfigError for the first invalid field. Every weight
// must be finite and non-negative so that retries never lower the score.
func (w Weights) Validate() error {
	if w.NumRetries < 0 {
		return &ConfigError{Field: "num_retries", Value: w.NumRetries, Reason: "must not be negative"}
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"head_score_factor", w.HeadScoreFactor},
		{"matched_pred_score", w.MatchedPredScore},
		{"mismatched_pred_score", w.MismatchedPredScore},
		{"bin_match_mult", w.BinMatchMult},
		{"bin_mismatch_mult", w.BinMismatchMult},
		{"matched_rule_mult", w.MatchedRuleMult},
		{"baseline_pred_score", w.BaselinePredScore},
		{"arity_mismatch_mult", w.ArityMismatchMult},
	}
	for _, f := range fields {
		switch {
		case math.IsNaN(f.value) || math.IsInf(f.value, 0):
			return &ConfigError{Field: f.name, Value: f.value, Reason: "must be finite"}
		case f.value < 0:
			return &ConfigError{Field: f.name, Value: f.value, Reason: "must not be negative"}
		}
	}
	return nil
}
