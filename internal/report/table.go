package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"gdlmap/internal/analogy"
	"gdlmap/internal/batch"
	"gdlmap/internal/store"
)

// Table renders the rule pairs of res with the default styles.
func Table(res *analogy.Result) string {
	return TableWithStyles(res, DefaultStyles())
}

// TableWithStyles renders the rule pairs of res followed by a one-line
// summary.
func TableWithStyles(res *analogy.Result, s Styles) string {
	if res == nil || res.Rules == nil || res.Rules.Len() == 0 {
		return s.Muted.Render("no rule pairs") + "\n"
	}

	var rows [][]string
	for i, p := range res.Rules.Pairs() {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			p.Source.String(),
			p.Target.String(),
			strconv.Itoa(p.Pass),
			pairFlags(p),
			formatScore(p.Score),
		})
	}

	t := newTable(s, []int{0, 3, 5}).
		Headers("#", "Source rule", "Target rule", "Pass", "Flags", "Score").
		Rows(rows...)

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(summaryLine(res, s))
	sb.WriteString("\n")
	return sb.String()
}

// PredicateTable renders the predicate mapping of res.
func PredicateTable(res *analogy.Result, s Styles) string {
	if res == nil || res.Predicates == nil || res.Predicates.Len() == 0 {
		return s.Muted.Render("no predicate pairs") + "\n"
	}
	var rows [][]string
	for _, p := range res.Predicates.Pairs() {
		rows = append(rows, []string{p.Source, p.Target})
	}
	return newTable(s, nil).Headers("Source", "Target").Rows(rows...).Render() + "\n"
}

// BinTable renders a bin assignment, one row per bin.
func BinTable(b *analogy.BinAssignment, s Styles) string {
	if b == nil || b.Len() == 0 {
		return s.Muted.Render("no predicates") + "\n"
	}
	var rows [][]string
	for i := 0; i < b.NumBins(); i++ {
		rows = append(rows, []string{strconv.Itoa(i), strings.Join(b.Members(i), " ")})
	}
	return newTable(s, []int{0}).Headers("Bin", "Predicates").Rows(rows...).Render() + "\n"
}

// BatchTable renders batch results and their summary.
func BatchTable(results []batch.JobResult, s Styles) string {
	var rows [][]string
	for i, r := range results {
		name := r.Job.Name
		if name == "" {
			name = fmt.Sprintf("job %d", i+1)
		}
		if r.Err != nil {
			rows = append(rows, []string{name, strconv.Itoa(r.Job.Bins), "-", "-", "error: " + r.Err.Error()})
			continue
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(r.Job.Bins),
			strconv.Itoa(r.Result.Rules.Len()),
			formatScore(r.Result.Score),
			r.Duration.Round(time.Microsecond).String(),
		})
	}

	sum := batch.Summarize(results)
	t := newTable(s, []int{1, 2, 3}).
		Headers("Job", "Bins", "Rules", "Score", "Time").
		Rows(rows...)

	line := fmt.Sprintf("%d jobs, %d failed, total %s, mean %s",
		sum.Jobs, sum.Failed, formatScore(sum.Total), formatScore(sum.Mean))
	if sum.Best >= 0 {
		line += fmt.Sprintf(", best %s (%s)", results[sum.Best].Job.Name, formatScore(sum.BestScore))
	}
	style := s.Muted
	if sum.Failed > 0 {
		style = s.Warn
	}
	return t.Render() + "\n" + style.Render(line) + "\n"
}

func newTable(s Styles, numeric []int) *table.Table {
	isNum := make(map[int]bool, len(numeric))
	for _, c := range numeric {
		isNum[c] = true
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.Header
			case isNum[col]:
				return s.Number
			default:
				return s.Cell
			}
		})
}

func summaryLine(res *analogy.Result, s Styles) string {
	line := fmt.Sprintf("%d rule pairs, %d predicate pairs, score %s, %d passes",
		res.Rules.Len(), res.Predicates.Len(), formatScore(res.Score), res.Passes)
	if res.Truncated {
		return s.Warn.Render(line + " (truncated)")
	}
	return s.Muted.Render(line)
}

func pairFlags(p analogy.RulePair) string {
	var flags []string
	if p.Partial {
		flags = append(flags, "partial")
	}
	if p.Reused {
		flags = append(flags, "reused")
	}
	return strings.Join(flags, ",")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// HistoryTable renders recorded runs, newest first.
func HistoryTable(runs []store.Run, s Styles) string {
	if len(runs) == 0 {
		return s.Muted.Render("no recorded runs") + "\n"
	}
	var rows [][]string
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Source,
			r.Target,
			strconv.Itoa(r.NumBins),
			strconv.Itoa(r.RulePairs),
			formatScore(r.Score),
		})
	}
	return newTable(s, []int{4, 5, 6}).
		Headers("Run", "When", "Source", "Target", "Bins", "Rules", "Score").
		Rows(rows...).
		Render() + "\n"
}
