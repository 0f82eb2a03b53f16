package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gdlmap/internal/analogy"
	"gdlmap/internal/batch"
	"gdlmap/internal/report"
	"gdlmap/internal/store"
)

var (
	sweepFrom   int
	sweepTo     int
	batchRecord bool
	batchFail   bool
)

// sweepCmd maps one pair of games over a range of bin counts
var sweepCmd = &cobra.Command{
	Use:   "sweep <source> <target>",
	Short: "Map two games once per bin count in a range",
	Args:  cobra.ExactArgs(2),
	RunE:  runSweep,
}

// batchCmd runs the jobs of a YAML manifest
var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Run the mapping jobs listed in a manifest in parallel",
	Long: `Runs every job of a manifest on a bounded worker pool.

Manifest format:
  workers: 4
  jobs:
    - name: tictactoe-vs-connect4
      source: games/tictactoe.gdl
      target: games/connect4.gdl
      bins: 3`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	sweepCmd.Flags().IntVar(&sweepFrom, "from", 0, "First bin count (default from config)")
	sweepCmd.Flags().IntVar(&sweepTo, "to", 0, "Last bin count (default from config)")
	for _, c := range []*cobra.Command{sweepCmd, batchCmd} {
		c.Flags().BoolVar(&batchRecord, "record", false, "Save successful runs to the history database")
		c.Flags().BoolVar(&batchFail, "fail-fast", false, "Stop at the first failing job")
	}
}

func newBatchRunner(workers int) *batch.Runner {
	opts := []batch.Option{
		batch.WithWorkers(workers),
		batch.WithJobTimeout(cfg.GetJobTimeout()),
		batch.WithLoader(loadGame),
	}
	if batchFail {
		opts = append(opts, batch.WithFailFast())
	}
	return batch.NewRunner(cfg.MapperOptionsFor, opts...)
}

func runJobs(cmd *cobra.Command, jobs []batch.Job, workers int) error {
	ctx, cancel := commandContext(true)
	defer cancel()

	results, runErr := newBatchRunner(workers).Run(ctx, jobs)
	fmt.Fprint(cmd.OutOrStdout(), report.BatchTable(results, report.DefaultStyles()))

	if batchRecord {
		if err := recordResults(ctx, results); err != nil {
			return err
		}
	}

	sum := batch.Summarize(results)
	logger.Info("batch complete",
		zap.Int("jobs", sum.Jobs),
		zap.Int("failed", sum.Failed),
		zap.Float64("total", sum.Total))
	if runErr != nil {
		return runErr
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", sum.Failed, sum.Jobs)
	}
	return nil
}

func recordResults(ctx context.Context, results []batch.JobResult) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		run := store.NewRun(r.Job.Source, r.Job.Target, r.Job.Bins, r.Result)
		run.ID = r.RunID
		if _, err := s.Record(ctx, &run); err != nil {
			return err
		}
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	from, to := cfg.Batch.SweepFrom, cfg.Batch.SweepTo
	if cmd.Flags().Changed("from") {
		from = sweepFrom
	}
	if cmd.Flags().Changed("to") {
		to = sweepTo
	}
	if from < 1 {
		return &analogy.ConfigError{Field: "from", Value: from, Reason: "must be at least 1"}
	}
	if to < from {
		return &analogy.ConfigError{Field: "to", Value: to, Reason: fmt.Sprintf("must be at least from (%d)", from)}
	}
	return runJobs(cmd, batch.SweepBins(args[0], args[1], from, to), cfg.Batch.Workers)
}

func runBatch(cmd *cobra.Command, args []string) error {
	m, err := batch.LoadManifest(args[0])
	if err != nil {
		return err
	}
	workers := cfg.Batch.Workers
	if m.Workers > 0 {
		workers = m.Workers
	}
	return runJobs(cmd, m.Jobs, workers)
}
