// Package store persists mapping runs in SQLite so results can be compared
// across sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gdlmap/internal/analogy"
	"gdlmap/internal/logging"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// RunStore records mapping runs. Thread-safe.
type RunStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// PredicateLink is one entry of a stored predicate mapping.
type PredicateLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// RuleLink is one entry of a stored rule mapping. Rules are identified by
// their source-order index and rendered text.
type RuleLink struct {
	SourceIndex int     `json:"source_index"`
	TargetIndex int     `json:"target_index"`
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Score       float64 `json:"score"`
	Pass        int     `json:"pass"`
	Partial     bool    `json:"partial,omitempty"`
}

// Mapping is the JSON-encoded payload of a run.
type Mapping struct {
	Predicates []PredicateLink `json:"predicates"`
	Rules      []RuleLink      `json:"rules"`
}

// Run is one recorded mapping.
type Run struct {
	ID             string        `json:"id"`
	Source         string        `json:"source"`
	Target         string        `json:"target"`
	NumBins        int           `json:"num_bins"`
	Score          float64       `json:"score"`
	PredicatePairs int           `json:"predicate_pairs"`
	RulePairs      int           `json:"rule_pairs"`
	Passes         int           `json:"passes"`
	Truncated      bool          `json:"truncated,omitempty"`
	Duration       time.Duration `json:"duration"`
	Mapping        Mapping       `json:"mapping"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewRun captures a mapper result as a Run. ID and CreatedAt are filled
// in by Record when left empty.
func NewRun(source, target string, numBins int, res *analogy.Result) Run {
	run := Run{Source: source, Target: target, NumBins: numBins}
	if res == nil {
		return run
	}
	run.Score = res.Score
	run.Passes = res.Passes
	run.Truncated = res.Truncated
	run.Duration = res.Duration
	if res.Predicates != nil {
		for _, p := range res.Predicates.Pairs() {
			run.Mapping.Predicates = append(run.Mapping.Predicates, PredicateLink{Source: p.Source, Target: p.Target})
		}
	}
	if res.Rules != nil {
		for _, p := range res.Rules.Pairs() {
			run.Mapping.Rules = append(run.Mapping.Rules, RuleLink{
				SourceIndex: p.Source.Index,
				TargetIndex: p.Target.Index,
				Source:      p.Source.String(),
				Target:      p.Target.String(),
				Score:       p.Score,
				Pass:        p.Pass,
				Partial:     p.Partial,
			})
		}
	}
	run.PredicatePairs = len(run.Mapping.Predicates)
	run.RulePairs = len(run.Mapping.Rules)
	return run
}

// Open opens or creates the run database at path.
func Open(path string) (*RunStore, error) {
	logging.StoreDebug("Opening run store at path: %s", path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &RunStore{db: db, dbPath: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		logging.StoreError("Failed to ensure run schema: %v", err)
		return nil, fmt.Errorf("failed to ensure run schema: %w", err)
	}

	logging.Store("Run store ready at %s", path)
	return s, nil
}

// ensureSchema creates the runs table if it doesn't exist.
func (s *RunStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		num_bins INTEGER NOT NULL,
		score REAL NOT NULL,
		predicate_pairs INTEGER NOT NULL,
		rule_pairs INTEGER NOT NULL,
		passes INTEGER NOT NULL,
		truncated BOOLEAN NOT NULL DEFAULT 0,
		duration_ns INTEGER NOT NULL,
		mapping TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_inputs ON runs(source, target);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores run, assigning an ID and timestamp when missing, and
// returns the stored ID.
func (s *RunStore) Record(ctx context.Context, run *Run) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Record")
	defer timer.Stop()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	mapping, err := json.Marshal(run.Mapping)
	if err != nil {
		return "", fmt.Errorf("encode mapping: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Recording run: id=%s source=%s target=%s score=%.3f", run.ID, run.Source, run.Target, run.Score)

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, source, target, num_bins, score, predicate_pairs, rule_pairs,
		 passes, truncated, duration_ns, mapping, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Target, run.NumBins, run.Score,
		run.PredicatePairs, run.RulePairs, run.Passes, run.Truncated,
		int64(run.Duration), string(mapping), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		logging.StoreError("Failed to record run %s: %v", run.ID, err)
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

const runColumns = `id, source, target, num_bins, score, predicate_pairs, rule_pairs,
	passes, truncated, duration_ns, mapping, created_at`

// Recent returns up to limit runs, newest first. limit <= 0 means 20.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Recent")
	defer timer.Stop()

	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+`
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		logging.StoreError("Failed to list runs: %v", err)
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns the run with the given ID, or ErrNotFound.
func (s *RunStore) Get(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// Close closes the database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		duration  int64
		mapping   string
		createdAt int64
	)
	err := sc.Scan(&run.ID, &run.Source, &run.Target, &run.NumBins, &run.Score,
		&run.PredicatePairs, &run.RulePairs, &run.Passes, &run.Truncated,
		&duration, &mapping, &createdAt)
	if err != nil {
		return Run{}, err
	}
	run.Duration = time.Duration(duration)
	run.CreatedAt = time.Unix(0, createdAt)
	if err := json.Unmarshal([]byte(mapping), &run.Mapping); err != nil {
		return Run{}, fmt.Errorf("decode mapping of run %s: %w", run.ID, err)
	}
	return run, nil
}
