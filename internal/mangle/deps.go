package mangle

import (
	"context"
	"fmt"
	"sort"

	"gdlmap/internal/gdl"
	"gdlmap/internal/logging"
)

// dependencySchema derives the predicate dependency graph of a GDL program.
// depends(H, B) holds when a rule headed by H mentions B in its body.
const dependencySchema = `
Decl depends(H, B).
Decl defined(P).
Decl mentioned(P).
Decl reaches(X, Y) descr [mode("+", "-")].
Decl recursive(P).
Decl base(P).

reaches(X, Y) :- depends(X, Y).
reaches(X, Z) :- depends(X, Y), reaches(Y, Z).
recursive(P) :- reaches(P, P).
base(P) :- mentioned(P), !defined(P).
`

// DependencyReport summarises the predicate dependency graph of an IR.
type DependencyReport struct {
	// Predicates lists every predicate in first-appearance order.
	Predicates []string
	// Defined lists predicates derived by at least one rule with a body.
	Defined []string
	// Base lists predicates never derived by a rule (facts, keywords, inputs).
	Base []string
	// Recursive lists predicates that depend on themselves.
	Recursive []string
	// Edges maps a head predicate to the predicates its rule bodies mention.
	Edges map[string][]string
	// Stats counts the stored and derived facts behind the report.
	Stats Stats

	reaches map[string][]string
}

// Reaches returns every predicate p transitively depends on, sorted.
func (r *DependencyReport) Reaches(p string) []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.reaches[p]...)
}

// IsRecursive reports whether p depends on itself.
func (r *DependencyReport) IsRecursive(p string) bool {
	if r == nil {
		return false
	}
	for _, q := range r.reaches[p] {
		if q == p {
			return true
		}
	}
	return false
}

// DependencyFacts converts an IR into the extensional facts of the
// dependency schema.
func DependencyFacts(ir *gdl.IR) []Fact {
	if ir == nil {
		return nil
	}
	var facts []Fact
	for _, p := range ir.Predicates() {
		facts = append(facts, Fact{Predicate: "mentioned", Args: []any{p}})
	}
	for _, r := range ir.Forms() {
		if r.IsFact() {
			continue
		}
		head := r.HeadPredicate()
		if head == "" {
			continue
		}
		facts = append(facts, Fact{Predicate: "defined", Args: []any{head}})
		for _, b := range r.BodyPredicates() {
			if b != "" {
				facts = append(facts, Fact{Predicate: "depends", Args: []any{head, b}})
			}
		}
	}
	return facts
}

// DependencyGraph is the evaluated dependency program of one IR.
type DependencyGraph struct {
	engine *Engine
	facts  []Fact
	preds  []string
}

// LoadDependencies loads ir into a fresh engine and evaluates the
// dependency schema.
func LoadDependencies(ctx context.Context, ir *gdl.IR, cfg Config) (*DependencyGraph, error) {
	timer := logging.StartTimer(logging.CategoryAnalysis, "LoadDependencies")
	defer timer.Stop()

	engine := NewEngine(cfg)
	if err := engine.LoadSchemaString(dependencySchema); err != nil {
		return nil, err
	}
	facts := DependencyFacts(ir)
	if err := engine.AddFacts(facts); err != nil {
		return nil, fmt.Errorf("load dependency facts: %w", err)
	}
	if err := engine.Evaluate(ctx); err != nil {
		return nil, err
	}

	g := &DependencyGraph{engine: engine, facts: facts}
	if ir != nil {
		g.preds = ir.Predicates()
	}
	return g, nil
}

// Facts returns the extensional facts the graph was loaded from.
func (g *DependencyGraph) Facts() []Fact {
	return append([]Fact(nil), g.facts...)
}

// Stats returns fact counts per predicate, derived relations included.
func (g *DependencyGraph) Stats() Stats {
	return g.engine.GetStats()
}

// Reaches queries every predicate p transitively depends on, sorted.
func (g *DependencyGraph) Reaches(ctx context.Context, p string) ([]string, error) {
	res, err := g.engine.Query(ctx, fmt.Sprintf("reaches(%q, X)", p))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res.Bindings))
	for _, row := range res.Bindings {
		out = append(out, fmt.Sprint(row["X"]))
	}
	sort.Strings(out)
	return out, nil
}

// Report collects the derived relations into a DependencyReport.
func (g *DependencyGraph) Report() (*DependencyReport, error) {
	report := &DependencyReport{
		Predicates: g.preds,
		Edges:      make(map[string][]string),
		Stats:      g.Stats(),
		reaches:    make(map[string][]string),
	}

	var err error
	if report.Defined, err = unarySorted(g.engine, "defined"); err != nil {
		return nil, err
	}
	if report.Base, err = unarySorted(g.engine, "base"); err != nil {
		return nil, err
	}
	if report.Recursive, err = unarySorted(g.engine, "recursive"); err != nil {
		return nil, err
	}
	if err := binaryInto(g.engine, "depends", report.Edges); err != nil {
		return nil, err
	}
	if err := binaryInto(g.engine, "reaches", report.reaches); err != nil {
		return nil, err
	}

	logging.Analysis("dependencies: %d predicates, %d defined, %d base, %d recursive, %d facts",
		len(report.Predicates), len(report.Defined), len(report.Base), len(report.Recursive), report.Stats.TotalFacts)
	return report, nil
}

// AnalyzeDependencies loads ir and returns its dependency report.
func AnalyzeDependencies(ctx context.Context, ir *gdl.IR, cfg Config) (*DependencyReport, error) {
	g, err := LoadDependencies(ctx, ir, cfg)
	if err != nil {
		return nil, err
	}
	return g.Report()
}

func unarySorted(e *Engine, predicate string) ([]string, error) {
	facts, err := e.GetFacts(predicate)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		out = append(out, fmt.Sprint(f.Args[0]))
	}
	sort.Strings(out)
	return out, nil
}

func binaryInto(e *Engine, predicate string, into map[string][]string) error {
	facts, err := e.GetFacts(predicate)
	if err != nil {
		return err
	}
	for _, f := range facts {
		from := fmt.Sprint(f.Args[0])
		into[from] = append(into[from], fmt.Sprint(f.Args[1]))
	}
	for k := range into {
		sort.Strings(into[k])
	}
	return nil
}
