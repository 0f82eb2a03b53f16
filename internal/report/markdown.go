package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"gdlmap/internal/analogy"
	"gdlmap/internal/mangle"
)

// Meta names the inputs of a mapping run.
type Meta struct {
	Source  string
	Target  string
	NumBins int
	RunID   string
}

// Markdown renders res as a markdown document.
func Markdown(res *analogy.Result, meta Meta) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Mapping `%s` → `%s`\n\n", meta.Source, meta.Target)
	if res == nil {
		sb.WriteString("_No result._\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "- **Score:** %s\n", formatScore(res.Score))
	fmt.Fprintf(&sb, "- **Rule pairs:** %d of %d source / %d target rules\n", res.Rules.Len(), res.SourceRules, res.TargetRules)
	fmt.Fprintf(&sb, "- **Predicate pairs:** %d\n", res.Predicates.Len())
	fmt.Fprintf(&sb, "- **Bins:** %d\n", meta.NumBins)
	fmt.Fprintf(&sb, "- **Passes:** %d (%d retries, %d evaluations)\n", res.Passes, res.Retries, res.Evaluations)
	fmt.Fprintf(&sb, "- **State:** %s\n", res.State)
	if res.Truncated {
		sb.WriteString("- **Truncated:** evaluation budget reached\n")
	}
	if meta.RunID != "" {
		fmt.Fprintf(&sb, "- **Run:** `%s`\n", meta.RunID)
	}

	if res.Predicates.Len() > 0 {
		sb.WriteString("\n## Predicates\n\n| Source | Target |\n|---|---|\n")
		for _, p := range res.Predicates.Pairs() {
			fmt.Fprintf(&sb, "| `%s` | `%s` |\n", escapeCell(p.Source), escapeCell(p.Target))
		}
	}

	if res.Rules.Len() > 0 {
		sb.WriteString("\n## Rules\n\n")
		for i, p := range res.Rules.Pairs() {
			fmt.Fprintf(&sb, "%d. score %s, pass %d", i+1, formatScore(p.Score), p.Pass)
			if flags := pairFlags(p); flags != "" {
				fmt.Fprintf(&sb, " (%s)", flags)
			}
			fmt.Fprintf(&sb, "\n\n   ```\n   %s\n   %s\n   ```\n\n", p.Source, p.Target)
		}
	}
	return sb.String()
}

// Dependencies renders a dependency report as markdown.
func Dependencies(rep *mangle.DependencyReport, file string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Dependencies of `%s`\n\n", file)
	if rep == nil {
		sb.WriteString("_No report._\n")
		return sb.String()
	}

	list := func(title string, items []string) {
		fmt.Fprintf(&sb, "## %s (%d)\n\n", title, len(items))
		if len(items) == 0 {
			sb.WriteString("_none_\n\n")
			return
		}
		for _, it := range items {
			fmt.Fprintf(&sb, "- `%s`", it)
			if deps := rep.Edges[it]; title == "Defined" && len(deps) > 0 {
				fmt.Fprintf(&sb, " ← %s", strings.Join(deps, ", "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	list("Defined", rep.Defined)
	list("Base", rep.Base)
	list("Recursive", rep.Recursive)

	fmt.Fprintf(&sb, "## Facts (%d)\n\n", rep.Stats.TotalFacts)
	preds := make([]string, 0, len(rep.Stats.PredicateCounts))
	for p := range rep.Stats.PredicateCounts {
		preds = append(preds, p)
	}
	sort.Strings(preds)
	for _, p := range preds {
		fmt.Fprintf(&sb, "- `%s`: %d\n", p, rep.Stats.PredicateCounts[p])
	}
	return sb.String()
}

// Render formats markdown for a terminal of the given width with glamour.
func Render(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
