package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
)

// SessionListText renders the sessions listing as a bordered table.
func SessionListText(analyses []pipeline.Analysis) string {
	if len(analyses) == 0 {
		return "  " + cli.MutedText("No sessions found.") + "\n"
	}

	rows := make([][]string, 0, len(analyses))
	for _, a := range analyses {
		s := a.Session
		rows = append(rows, []string{
			string(s.Agent),
			cli.Truncate(s.ID, 36),
			cli.Truncate(cli.CollapseHome(s.CWD), 32),
			cli.FormatTime(s.StartedAt),
			cli.FormatNumber(int64(len(s.Turns))),
			cli.FormatTokens(s.Usage.Total()),
			costCell(s.CostUSD),
			strconv.Itoa(len(a.Findings)),
		})
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(cli.RenderTable(cli.Table{
		Headers: []string{"Agent", "Session", "CWD", "Started", "Msgs", "Tokens", "Cost", "Findings"},
		Rows:    rows,
	}))
	b.WriteString("  " + cli.MutedText(fmt.Sprintf("%d sessions", len(analyses))) + "\n")
	return b.String()
}

// SessionText renders the single-session analysis view: metadata, the most
// expensive turns, and the findings list.
func SessionText(r SessionReport) string {
	s := r.Analysis.Session

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(cli.RenderTitle("SESSION ANALYSIS"))
	b.WriteString("\n\n")

	pairs := [][2]string{
		{"Agent", cli.AgentText(string(s.Agent))},
		{"Session", cli.ValueText(s.ID)},
		{"Source", cli.CollapseHome(s.Path)},
	}
	if s.CWD != "" {
		pairs = append(pairs, [2]string{"CWD", cli.CollapseHome(s.CWD)})
	}
	if s.Model != "" {
		pairs = append(pairs, [2]string{"Model", s.Model})
	}
	if s.Title != "" {
		pairs = append(pairs, [2]string{"Title", cli.Truncate(s.Title, 60)})
	}
	pairs = append(pairs,
		[2]string{"Started", cli.FormatTime(s.StartedAt)},
		[2]string{"Duration", cli.FormatDuration(int64(s.Duration().Seconds()))},
		[2]string{"Messages", cli.FormatNumber(int64(len(s.Turns)))},
		[2]string{"Input", cli.TokenText(cli.FormatTokens(s.Usage.Input))},
		[2]string{"Output", cli.TokenText(cli.FormatTokens(s.Usage.Output))},
		[2]string{"Cache r/w", cli.FormatTokens(s.Usage.CacheRead) + " / " + cli.FormatTokens(s.Usage.CacheWrite)},
		[2]string{"Cost", cli.CostText(costCell(s.CostUSD))},
	)
	if flow := turnTokenFlow(s.Turns, 40); flow != "" {
		pairs = append(pairs, [2]string{"Token flow", cli.TokenText(flow)})
	}
	if waste := totalWaste(r.Analysis.Findings); waste > 0 {
		pairs = append(pairs, [2]string{"Waste", cli.ErrorText(cli.FormatWaste(waste))})
	}
	b.WriteString(cli.RenderKeyValues(pairs))

	if len(r.TopTurns) > 0 {
		rows := make([][]string, 0, len(r.TopTurns))
		for _, tc := range r.TopTurns {
			rows = append(rows, []string{
				"#" + strconv.Itoa(tc.Turn),
				string(tc.Role),
				costCell(tc.CostUSD),
				cli.FormatTokens(tc.Usage.Input),
				cli.FormatTokens(tc.Usage.Output),
				cli.Truncate(tc.Preview, 48),
			})
		}
		b.WriteString("\n")
		b.WriteString(cli.RenderTable(cli.Table{
			Title:   "Top Expensive Turns",
			Headers: []string{"Turn", "Role", "Cost", "Input", "Output", "Preview"},
			Rows:    rows,
		}))
	}

	b.WriteString("\n")
	b.WriteString(findingsText(r.Analysis.Findings))

	if len(s.Warnings) > 0 {
		b.WriteString("\n  " + cli.WarnText(fmt.Sprintf("%d ingest warnings (run capture --inspect for details)", len(s.Warnings))) + "\n")
	}
	return b.String()
}

// turnTokenFlow draws a sparkline of per-turn token volume, bucketing long
// sessions down to at most width cells. Empty when no turn carried usage.
func turnTokenFlow(turns []model.Turn, width int) string {
	vals := make([]float64, 0, len(turns))
	any := false
	for i := range turns {
		v := float64(turns[i].Usage.Total())
		if v > 0 {
			any = true
		}
		vals = append(vals, v)
	}
	if !any {
		return ""
	}

	if len(vals) > width {
		bucketed := make([]float64, width)
		for i, v := range vals {
			bucketed[i*width/len(vals)] += v
		}
		vals = bucketed
	}
	return cli.RenderSparkline(vals)
}

func findingsText(findings []model.Finding) string {
	if len(findings) == 0 {
		return "  " + cli.MutedText("No inefficiencies detected.") + "\n"
	}

	var b strings.Builder
	b.WriteString("  " + cli.HeaderText("Findings") + "\n")
	for i, f := range findings {
		line := fmt.Sprintf("  %d. %s %s",
			i+1,
			cli.ErrorText("["+string(f.Kind)+"]"),
			cli.DimText("(conf "+cli.FormatConfidence(f.Confidence)+")"),
		)
		switch {
		case f.WastedCostUSD > 0:
			line += " " + cli.WarnText(cli.FormatWaste(f.WastedCostUSD)+" wasted")
		case f.WastedTokens > 0:
			line += " " + cli.WarnText("~"+cli.FormatTokens(f.WastedTokens)+" tok wasted")
		}
		b.WriteString(line + "\n")
		b.WriteString("     " + f.Message + "\n")
		b.WriteString("     " + cli.DimText("turns "+evidenceList(f.EvidenceTurns)) + "\n")
	}
	return b.String()
}

// evidenceList renders evidence turn indices, eliding after the sixth.
func evidenceList(turns []int) string {
	if len(turns) == 0 {
		return "-"
	}
	shown := turns
	more := 0
	if len(shown) > 6 {
		more = len(shown) - 6
		shown = shown[:6]
	}
	parts := make([]string, len(shown))
	for i, n := range shown {
		parts[i] = strconv.Itoa(n)
	}
	out := strings.Join(parts, ", ")
	if more > 0 {
		out += fmt.Sprintf(" (+%d more)", more)
	}
	return out
}

// AggregateText renders the fleet rollup: totals, per-kind and per-agent
// breakdowns, the per-model cost split, and the most expensive sessions.
func AggregateText(r AggregateReport) string {
	agg := r.Aggregate

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(cli.RenderTitle("AGGREGATE REPORT"))
	b.WriteString("\n\n")

	if agg.Sessions == 0 {
		b.WriteString("  " + cli.MutedText("No sessions found.") + "\n")
		return b.String()
	}

	b.WriteString(cli.RenderKeyValues([][2]string{
		{"Sessions", cli.FormatNumber(int64(agg.Sessions))},
		{"Messages", cli.FormatNumber(int64(agg.Turns))},
		{"Findings", cli.FormatNumber(int64(agg.Findings))},
		{"Tokens", cli.TokenText(cli.FormatTokens(agg.Usage.Total()))},
		{"Cost", cli.CostText(costCell(agg.CostUSD))},
		{"Waste", cli.ErrorText(cli.FormatWaste(agg.WastedCostUSD))},
	}))
	b.WriteString("\n")

	b.WriteString(splitBars(r.Split))

	if len(agg.ByKind) > 0 {
		rows := make([][]string, 0, len(agg.ByKind))
		for _, kb := range agg.ByKind {
			rows = append(rows, []string{
				string(kb.Kind),
				cli.FormatNumber(int64(kb.Count)),
				cli.FormatTokens(kb.WastedTokens),
				cli.FormatWaste(kb.WastedCostUSD),
			})
		}
		b.WriteString(cli.RenderTable(cli.Table{
			Title:   "Findings by Kind",
			Headers: []string{"Kind", "Count", "Wasted Tok", "Wasted Cost"},
			Rows:    rows,
		}))
		b.WriteString("\n")
	}

	if len(agg.ByAgent) > 0 {
		rows := make([][]string, 0, len(agg.ByAgent))
		for _, ab := range agg.ByAgent {
			rows = append(rows, []string{
				string(ab.Agent),
				cli.FormatNumber(int64(ab.Sessions)),
				cli.FormatNumber(int64(ab.Findings)),
				cli.FormatTokens(ab.Usage.Total()),
				costCell(ab.CostUSD),
				cli.FormatWaste(ab.WastedCostUSD),
			})
		}
		b.WriteString(cli.RenderTable(cli.Table{
			Title:   "By Agent",
			Headers: []string{"Agent", "Sessions", "Findings", "Tokens", "Cost", "Waste"},
			Rows:    rows,
		}))
		b.WriteString("\n")
	}

	if len(r.Models) > 0 {
		rows := make([][]string, 0, len(r.Models)+2)
		for _, mc := range r.Models {
			rows = append(rows, []string{
				mc.Model,
				cli.FormatCost(mc.InputCost),
				cli.FormatCost(mc.OutputCost),
				cli.FormatCost(mc.CacheReadCost),
				cli.FormatCost(mc.CacheWriteCost),
				cli.FormatCost(mc.TotalCost),
			})
		}
		rows = append(rows, []string{"---"})
		rows = append(rows, []string{
			"TOTAL",
			cli.FormatCost(r.Split.InputCost),
			cli.FormatCost(r.Split.OutputCost),
			cli.FormatCost(r.Split.CacheReadCost),
			cli.FormatCost(r.Split.CacheWriteCost),
			cli.FormatCost(r.Split.TotalCost),
		})
		b.WriteString(cli.RenderTable(cli.Table{
			Title:   "Cost by Model (catalog rates)",
			Headers: []string{"Model", "Input", "Output", "Cache R", "Cache W", "Total"},
			Rows:    rows,
		}))
		b.WriteString("\n")
	}

	if len(agg.TopSessions) > 0 {
		rows := make([][]string, 0, len(agg.TopSessions))
		for _, a := range agg.TopSessions {
			s := a.Session
			rows = append(rows, []string{
				string(s.Agent),
				cli.ShortID(s.ID),
				cli.Truncate(cli.CollapseHome(s.CWD), 28),
				cli.FormatTime(s.StartedAt),
				costCell(s.CostUSD),
				cli.FormatWaste(totalWaste(a.Findings)),
			})
		}
		b.WriteString(cli.RenderTable(cli.Table{
			Title:   "Top Sessions by Cost",
			Headers: []string{"Agent", "Session", "CWD", "Started", "Cost", "Waste"},
			Rows:    rows,
		}))
	}

	return b.String()
}

// splitBars renders the catalog-rate spend split as proportional bars.
func splitBars(split pipeline.CostSplit) string {
	if split.TotalCost <= 0 {
		return ""
	}

	const barW = 28
	kinds := []struct {
		name string
		cost float64
	}{
		{"Input", split.InputCost},
		{"Output", split.OutputCost},
		{"Cache read", split.CacheReadCost},
		{"Cache write", split.CacheWriteCost},
	}

	var b strings.Builder
	b.WriteString("  " + cli.HeaderText("Spend by Token Kind (catalog rates)") + "\n")
	for _, k := range kinds {
		bar := cli.RenderHorizontalBar(k.cost, split.TotalCost, barW)
		pad := strings.Repeat(" ", barW-len([]rune(bar)))
		b.WriteString(fmt.Sprintf("  %-12s %s%s %9s %s\n",
			k.name,
			cli.TokenText(bar), pad,
			cli.FormatCost(k.cost),
			cli.DimText(cli.FormatPercent(k.cost/split.TotalCost)),
		))
	}
	b.WriteString("\n")
	return b.String()
}

// costCell renders a cost, or "-" when the trace carried none.
func costCell(c float64) string {
	if c == 0 {
		return "-"
	}
	return cli.FormatCost(c)
}
