package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gdlmap/internal/analogy"
	"gdlmap/internal/report"
	"gdlmap/internal/store"
	"gdlmap/internal/watch"
)

var (
	mapScore   bool
	mapDetails bool
	mapReport  bool
	mapRecord  bool
	mapPartial bool
	mapRetries int
)

// mapCmd maps one game onto another
var mapCmd = &cobra.Command{
	Use:   "map <source> <target> <num_bins>",
	Short: "Map the rules of one game onto another",
	Long: `Parses both games, bins their predicates and searches for a rule mapping.

Prints the number of mapped rule pairs, or the mapping score with --score.`,
	Args: cobra.ExactArgs(3),
	RunE: runMap,
}

// watchCmd remaps whenever an input changes
var watchCmd = &cobra.Command{
	Use:   "watch <source> <target> <num_bins>",
	Short: "Remap whenever either game file changes",
	Args:  cobra.ExactArgs(3),
	RunE:  runWatch,
}

func init() {
	for _, c := range []*cobra.Command{mapCmd, watchCmd} {
		c.Flags().BoolVar(&mapScore, "score", false, "Print the mapping score instead of the pair count")
		c.Flags().BoolVar(&mapDetails, "details", false, "Print rule and predicate tables")
		c.Flags().BoolVar(&mapPartial, "partial", false, "Allow partial body matches in every pass")
		c.Flags().IntVar(&mapRetries, "retries", 0, "Retry passes after the first (default from config)")
	}
	mapCmd.Flags().BoolVar(&mapReport, "report", false, "Print a rendered markdown report")
	mapCmd.Flags().BoolVar(&mapRecord, "record", false, "Save the run to the history database")
}

func parseBins(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &analogy.ConfigError{Field: "num_bins", Value: s, Reason: "must be an integer"}
	}
	return n, nil
}

// mapperFor builds mapper options from config plus the map flags.
func mapperFor(cmd *cobra.Command, numBins int) (*analogy.Mapper, error) {
	c := *cfg
	if mapPartial {
		c.Mapper.Weights.AllowPartialMaps = true
	}
	if cmd.Flags().Changed("retries") {
		c.Mapper.Weights.NumRetries = mapRetries
	}
	opts, err := c.MapperOptionsFor(numBins)
	if err != nil {
		return nil, err
	}
	return analogy.NewMapper(opts)
}

type mapRun struct {
	source, target string
	numBins        int
	result         *analogy.Result
}

func mapOnce(ctx context.Context, m *analogy.Mapper, source, target string, numBins int) (*mapRun, error) {
	src, err := loadGame(source)
	if err != nil {
		return nil, err
	}
	tgt, err := loadGame(target)
	if err != nil {
		return nil, err
	}
	res, err := m.Map(ctx, src, tgt)
	if err != nil {
		return nil, err
	}
	logger.Info("mapping complete",
		zap.String("source", source),
		zap.String("target", target),
		zap.Int("rule_pairs", res.Rules.Len()),
		zap.Float64("score", res.Score),
		zap.Duration("duration", res.Duration))
	return &mapRun{source: source, target: target, numBins: numBins, result: res}, nil
}

func printRun(w io.Writer, run *mapRun) error {
	res := run.result
	if mapScore {
		fmt.Fprintln(w, strconv.FormatFloat(res.Score, 'f', -1, 64))
	} else {
		fmt.Fprintln(w, res.Rules.Len())
	}
	if mapDetails {
		fmt.Fprint(w, report.Table(res))
		fmt.Fprint(w, report.PredicateTable(res, report.DefaultStyles()))
	}
	return nil
}

func runMap(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(true)
	defer cancel()

	numBins, err := parseBins(args[2])
	if err != nil {
		return err
	}
	m, err := mapperFor(cmd, numBins)
	if err != nil {
		return err
	}
	run, err := mapOnce(ctx, m, args[0], args[1], numBins)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printRun(out, run); err != nil {
		return err
	}

	var runID string
	if mapRecord {
		if runID, err = recordRun(ctx, run); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "recorded run %s\n", runID)
	}

	if mapReport {
		md := report.Markdown(run.result, report.Meta{Source: run.source, Target: run.target, NumBins: numBins, RunID: runID})
		rendered, err := report.Render(md, 100)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
	}
	return nil
}

func openStore() (*store.RunStore, error) {
	path, err := resolvePath(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

func recordRun(ctx context.Context, run *mapRun) (string, error) {
	s, err := openStore()
	if err != nil {
		return "", err
	}
	defer s.Close()

	r := store.NewRun(run.source, run.target, run.numBins, run.result)
	return s.Record(ctx, &r)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(false)
	defer cancel()

	numBins, err := parseBins(args[2])
	if err != nil {
		return err
	}
	m, err := mapperFor(cmd, numBins)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	remap := func(ctx context.Context, changed string) {
		if changed != "" {
			fmt.Fprintf(out, "changed: %s\n", changed)
		}
		run, err := mapOnce(ctx, m, args[0], args[1], numBins)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			return
		}
		_ = printRun(out, run)
	}

	w, err := watch.New([]string{args[0], args[1]}, cfg.GetWatchDebounce(), remap)
	if err != nil {
		return err
	}
	defer w.Stop()

	remap(ctx, "")
	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Info("watching for changes", zap.Strings("files", args[:2]))
	<-ctx.Done()
	return nil
}
