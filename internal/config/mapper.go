package config

import "gdlmap/internal/analogy"

// MapperConfig configures the analogy mapper.
type MapperConfig struct {
	// NumBins is the default bin count when a command does not give one.
	NumBins int `yaml:"num_bins" json:"num_bins"`

	Weights analogy.Weights `yaml:"weights" json:"weights"`

	// MaxEvaluationsPerPass caps candidate rule pairs scored per pass (0 = no cap).
	MaxEvaluationsPerPass int `yaml:"max_evaluations_per_pass" json:"max_evaluations_per_pass"`

	// BodyMatcher selects body pairing: greedy or positional.
	BodyMatcher string `yaml:"body_matcher" json:"body_matcher"`
}

// DefaultMapperConfig returns the stock scoring model with two bins.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		NumBins:     2,
		Weights:     analogy.DefaultWeights(),
		BodyMatcher: "greedy",
	}
}

// MapperOptions builds validated analogy options from the mapper section.
func (c *Config) MapperOptions() (analogy.Options, error) {
	return c.MapperOptionsFor(c.Mapper.NumBins)
}

// MapperOptionsFor is MapperOptions with an explicit bin count.
func (c *Config) MapperOptionsFor(numBins int) (analogy.Options, error) {
	matcher, err := analogy.MatcherByName(c.Mapper.BodyMatcher)
	if err != nil {
		return analogy.Options{}, err
	}
	opts := analogy.Options{
		NumBins:               numBins,
		Weights:               c.Mapper.Weights,
		MaxEvaluationsPerPass: c.Mapper.MaxEvaluationsPerPass,
		Matcher:               matcher,
	}
	if err := opts.Validate(); err != nil {
		return analogy.Options{}, err
	}
	return opts, nil
}
