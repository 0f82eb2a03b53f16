// Package batch runs independent mapping jobs in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gdlmap/internal/analogy"
	"gdlmap/internal/gdl"
	"gdlmap/internal/logging"
)

// Job maps Source onto Target with Bins bins.
type Job struct {
	Name   string `yaml:"name" json:"name"`
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
	Bins   int    `yaml:"bins" json:"bins"`
}

func (j Job) label() string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("%s->%s/%d", j.Source, j.Target, j.Bins)
}

// JobResult is the outcome of one job. Err is set when the job failed;
// Result is nil in that case.
type JobResult struct {
	Job      Job
	RunID    string
	Result   *analogy.Result
	Err      error
	Duration time.Duration
}

// LoadFunc reads and parses a GDL file.
type LoadFunc func(path string) (*gdl.IR, error)

// OptionsFunc builds mapper options for a bin count.
type OptionsFunc func(numBins int) (analogy.Options, error)

// Runner executes jobs on a bounded worker pool.
type Runner struct {
	workers    int
	jobTimeout time.Duration
	failFast   bool
	options    OptionsFunc
	load       LoadFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers caps concurrently running jobs. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithJobTimeout bounds each job. Zero means no bound.
func WithJobTimeout(d time.Duration) Option {
	return func(r *Runner) { r.jobTimeout = d }
}

// WithFailFast stops scheduling new jobs after the first failure and makes
// Run return that failure.
func WithFailFast() Option {
	return func(r *Runner) { r.failFast = true }
}

// WithLoader replaces the file loader.
func WithLoader(load LoadFunc) Option {
	return func(r *Runner) { r.load = load }
}

// NewRunner returns a runner building mapper options with options.
func NewRunner(options OptionsFunc, opts ...Option) *Runner {
	r := &Runner{
		workers: 1,
		options: options,
		load:    func(path string) (*gdl.IR, error) { return gdl.LoadFile(path) },
	}
	for _, o := range opts {
		o(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

// Run executes jobs and returns one result per job, in job order. Per-job
// failures are reported in JobResult.Err; the returned error is non-nil
// only when ctx ends or, with WithFailFast, when a job fails.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]JobResult, error) {
	timer := logging.StartTimer(logging.CategoryBatch, "Run")
	defer timer.Stop()

	results := make([]JobResult, len(jobs))
	ran := make([]bool, len(jobs))
	cache := newIRCache(r.load)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	logging.Batch("running %d jobs on %d workers", len(jobs), r.workers)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := r.runJob(gctx, cache, job)
			results[i] = res
			ran[i] = true
			if res.Err != nil {
				logging.BatchError("job %s failed: %v", job.label(), res.Err)
				if r.failFast {
					return fmt.Errorf("job %s: %w", job.label(), res.Err)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for i := range results {
		if !ran[i] {
			results[i] = JobResult{Job: jobs[i], Err: errNotRun(err)}
		}
	}
	return results, err
}

func errNotRun(cause error) error {
	if cause == nil {
		return errors.New("not run")
	}
	return fmt.Errorf("not run: %w", cause)
}

func (r *Runner) runJob(ctx context.Context, cache *irCache, job Job) JobResult {
	start := time.Now()
	res := JobResult{Job: job, RunID: uuid.NewString()}

	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
	}

	res.Result, res.Err = r.mapJob(ctx, cache, job, res.RunID)
	res.Duration = time.Since(start)
	if res.Err != nil {
		res.Result = nil
	}

	score := 0.0
	if res.Result != nil {
		score = res.Result.Score
	}
	logging.AuditWithRun(res.RunID).Log(logging.AuditEvent{
		EventType: logging.AuditBatchJob,
		Source:    job.Source,
		Target:    job.Target,
		Score:     score,
		Fields:    map[string]interface{}{"bins": job.Bins, "name": job.Name, "ok": res.Err == nil},
	})
	logging.BatchDebug("job %s done in %v (score %.3f)", job.label(), res.Duration, score)
	return res
}

func (r *Runner) mapJob(ctx context.Context, cache *irCache, job Job, runID string) (*analogy.Result, error) {
	opts, err := r.options(job.Bins)
	if err != nil {
		return nil, err
	}
	opts.RunID = runID

	m, err := analogy.NewMapper(opts)
	if err != nil {
		return nil, err
	}
	src, err := cache.get(job.Source)
	if err != nil {
		return nil, err
	}
	tgt, err := cache.get(job.Target)
	if err != nil {
		return nil, err
	}
	return m.Map(ctx, src, tgt)
}

// irCache parses each file once per Run. IRs are immutable and shared
// between jobs.
type irCache struct {
	load    LoadFunc
	mu      sync.Mutex
	entries map[string]*irEntry
}

type irEntry struct {
	once sync.Once
	ir   *gdl.IR
	err  error
}

func newIRCache(load LoadFunc) *irCache {
	return &irCache{load: load, entries: make(map[string]*irEntry)}
}

func (c *irCache) get(path string) (*gdl.IR, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		e = &irEntry{}
		c.entries[path] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.ir, e.err = c.load(path)
	})
	return e.ir, e.err
}

// SweepBins returns one job per bin count in [from, to].
func SweepBins(source, target string, from, to int) []Job {
	var jobs []Job
	for n := from; n <= to; n++ {
		jobs = append(jobs, Job{
			Name:   fmt.Sprintf("bins=%d", n),
			Source: source,
			Target: target,
			Bins:   n,
		})
	}
	return jobs
}
