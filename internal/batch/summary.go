package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Summary aggregates the successful jobs of a run.
type Summary struct {
	Jobs      int
	Succeeded int
	Failed    int
	Total     float64
	Mean      float64
	// Best is the index of the highest-scoring job, -1 when none succeeded.
	// Ties go to the earlier job.
	Best      int
	BestScore float64
}

// Summarize aggregates results.
func Summarize(results []JobResult) Summary {
	s := Summary{Jobs: len(results), Best: -1}
	for i, r := range results {
		if r.Err != nil || r.Result == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.Total += r.Result.Score
		if s.Best < 0 || r.Result.Score > s.BestScore {
			s.Best = i
			s.BestScore = r.Result.Score
		}
	}
	if s.Succeeded > 0 {
		s.Mean = s.Total / float64(s.Succeeded)
	}
	return s
}

// Manifest is a YAML list of jobs.
//
//	workers: 4
//	jobs:
//	  - name: tictactoe-vs-connect4
//	    source: games/tictactoe.gdl
//	    target: games/connect4.gdl
//	    bins: 3
type Manifest struct {
	Workers int   `yaml:"workers,omitempty"`
	Jobs    []Job `yaml:"jobs"`
}

// LoadManifest reads a manifest. Relative source and target paths are
// resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest %s has no jobs", path)
	}

	base := filepath.Dir(path)
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Source == "" || j.Target == "" {
			return nil, fmt.Errorf("manifest job %d: source and target are required", i+1)
		}
		if !filepath.IsAbs(j.Source) {
			j.Source = filepath.Join(base, j.Source)
		}
		if !filepath.IsAbs(j.Target) {
			j.Target = filepath.Join(base, j.Target)
		}
	}
	return &m, nil
}
