package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gdlmap/internal/analogy"
	"gdlmap/internal/mangle"
	"gdlmap/internal/report"
)

var (
	parseBinsFlag int
	depsPred      string
	depsRaw       bool
	depsFacts     bool
	historyLimit  int
	historyID     string
)

// parseCmd summarises one game
var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a game and print a summary of its rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

// depsCmd runs the Mangle dependency analysis
var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "Analyse predicate dependencies with Mangle",
	Long: `Loads the rule structure of a game into Mangle and derives which
predicates each predicate depends on, which are recursive, and which are
never derived by a rule.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeps,
}

// historyCmd lists recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded mapping runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	parseCmd.Flags().IntVar(&parseBinsFlag, "bins", 0, "Also print the predicate bins for this bin count")
	depsCmd.Flags().StringVar(&depsPred, "pred", "", "Only print what this predicate depends on")
	depsCmd.Flags().BoolVar(&depsRaw, "raw", false, "Print markdown without terminal rendering")
	depsCmd.Flags().BoolVar(&depsFacts, "facts", false, "Print the dependency facts as a Mangle program")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyID, "id", "", "Show the report of one run")
}

func runParse(cmd *cobra.Command, args []string) error {
	ir, err := loadGame(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "forms:       %d\n", len(ir.Forms()))
	fmt.Fprintf(out, "rules:       %d (%d general, %d goal)\n", len(ir.AllRules()), len(ir.GeneralRules()), len(ir.GoalRules()))
	fmt.Fprintf(out, "init facts:  %d\n", len(ir.InitFacts()))
	fmt.Fprintf(out, "static:      %d\n", len(ir.StaticFacts()))
	fmt.Fprintf(out, "predicates:  %s\n", strings.Join(ir.Predicates(), " "))
	for _, d := range ir.Diagnostics {
		fmt.Fprintf(out, "warning:     %v\n", d)
	}

	if parseBinsFlag != 0 {
		bins, err := analogy.AssignBins(ir, parseBinsFlag)
		if err != nil {
			return err
		}
		fmt.Fprint(out, report.BinTable(bins, report.DefaultStyles()))
	}
	return nil
}

func runDeps(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(true)
	defer cancel()

	ir, err := loadGame(args[0])
	if err != nil {
		return err
	}

	mcfg := mangle.DefaultConfig()
	mcfg.DerivedFactLimit = cfg.Analysis.DerivedFactLimit
	mcfg.QueryTimeout = cfg.GetQueryTimeout()

	g, err := mangle.LoadDependencies(ctx, ir, mcfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case depsPred != "":
		reached, err := g.Reaches(ctx, depsPred)
		if err != nil {
			return err
		}
		for _, p := range reached {
			fmt.Fprintln(out, p)
		}
		return nil
	case depsFacts:
		for _, f := range g.Facts() {
			fmt.Fprintln(out, f)
		}
		return nil
	}

	rep, err := g.Report()
	if err != nil {
		return err
	}

	md := report.Dependencies(rep, args[0])
	if depsRaw {
		fmt.Fprint(out, md)
		return nil
	}
	rendered, err := report.Render(md, 100)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(true)
	defer cancel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if historyID != "" {
		run, err := s.Get(ctx, historyID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s -> %s  bins=%d  score=%g  rules=%d  predicates=%d\n",
			run.ID, run.Source, run.Target, run.NumBins, run.Score, run.RulePairs, run.PredicatePairs)
		for _, r := range run.Mapping.Rules {
			fmt.Fprintf(out, "  %s\n    => %s\n", r.Source, r.Target)
		}
		return nil
	}

	runs, err := s.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(out, report.HistoryTable(runs, report.DefaultStyles()))
	return nil
}
