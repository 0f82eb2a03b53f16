package config

import "runtime"

// BatchConfig controls parallel mapping jobs.
type BatchConfig struct {
	// Workers caps concurrently running jobs.
	Workers int `yaml:"workers" json:"workers,omitempty"`
	// JobTimeout bounds a single job (duration string, empty for none).
	JobTimeout string `yaml:"job_timeout" json:"job_timeout,omitempty"`
	// SweepFrom and SweepTo are the default bin range of the sweep command.
	SweepFrom int `yaml:"sweep_from" json:"sweep_from,omitempty"`
	SweepTo   int `yaml:"sweep_to" json:"sweep_to,omitempty"`
}

// DefaultBatchConfig returns defaults sized to the machine.
func DefaultBatchConfig() BatchConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return BatchConfig{
		Workers:   workers,
		SweepFrom: 1,
		SweepTo:   8,
	}
}

// AnalysisConfig configures the Mangle dependency analysis.
type AnalysisConfig struct {
	// DerivedFactLimit caps facts derived during evaluation.
	DerivedFactLimit int `yaml:"derived_fact_limit" json:"derived_fact_limit,omitempty"`
	// QueryTimeout bounds one evaluation.
	QueryTimeout string `yaml:"query_timeout" json:"query_timeout,omitempty"`
}
