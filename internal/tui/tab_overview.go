package tui

import (
	"fmt"
	"strings"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/tui/components"
	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderOverviewTab(cw int) string {
	agg := a.agg
	var b strings.Builder

	// Row 1: Metric cards
	costDelta := ""
	if agg.Sessions > 0 {
		costDelta = cli.FormatCost(agg.CostUSD/float64(agg.Sessions)) + "/session"
	}

	wasteDelta := ""
	if agg.CostUSD > 0 {
		wasteDelta = cli.FormatPercent(agg.WastedCostUSD/agg.CostUSD) + " of spend"
	}

	cacheShare := 0.0
	if total := agg.Usage.Total(); total > 0 {
		cacheShare = float64(agg.Usage.CacheRead) / float64(total)
	}

	cards := []struct{ Label, Value, Delta string }{
		{"Sessions", cli.FormatNumber(int64(agg.Sessions)), cli.FormatNumber(int64(agg.Turns)) + " turns"},
		{"Cost", cli.FormatCost(agg.CostUSD), costDelta},
		{"Waste", cli.FormatWaste(agg.WastedCostUSD), wasteDelta},
		{"Tokens", cli.FormatTokens(agg.Usage.Total()), cli.FormatPercent(cacheShare) + " cache reads"},
	}
	b.WriteString(components.MetricCardRow(cards, cw))
	b.WriteString("\n")

	// Row 2: Daily cost chart
	if len(a.days) > 0 {
		chartVals := make([]float64, len(a.days))
		chartLabels := chartDateLabels(a.days)
		for i, d := range a.days {
			chartVals[len(a.days)-1-i] = d.CostUSD
		}
		chartInnerW := components.CardInnerWidth(cw)
		b.WriteString(components.ContentCard(
			"Daily Spend",
			components.SpendChart(chartVals, chartLabels, chartInnerW, 10),
			cw,
		))
		b.WriteString("\n")
	}

	// Row 3: Model Split + By Agent
	if a.isCompactLayout() {
		b.WriteString(components.ContentCard("Model Split", a.renderModelSplit(components.CardInnerWidth(cw)), cw))
		b.WriteString("\n")
		b.WriteString(components.ContentCard("By Agent", a.renderAgentSplit(components.CardInnerWidth(cw)), cw))
	} else {
		halves := components.LayoutRow(cw, 2)
		modelCard := components.ContentCard("Model Split", a.renderModelSplit(components.CardInnerWidth(halves[0])), halves[0])
		agentCard := components.ContentCard("By Agent", a.renderAgentSplit(components.CardInnerWidth(halves[1])), halves[1])
		b.WriteString(components.CardRow([]string{modelCard, agentCard}))
	}

	return b.String()
}

// renderModelSplit draws one bar per model, sized by cost share.
func (a App) renderModelSplit(innerW int) string {
	t := theme.Active
	models := a.models

	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	if len(models) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("No priced usage")
	}

	limit := 5
	if len(models) < limit {
		limit = len(models)
	}

	maxCost := 0.0
	for _, mc := range models[:limit] {
		if mc.TotalCost > maxCost {
			maxCost = mc.TotalCost
		}
	}

	nameW := innerW / 3
	if nameW < 10 {
		nameW = 10
	}
	barMaxLen := innerW - nameW - 8
	if barMaxLen < 1 {
		barMaxLen = 1
	}

	var body strings.Builder
	for _, mc := range models[:limit] {
		share := 0.0
		if a.split.TotalCost > 0 {
			share = mc.TotalCost / a.split.TotalCost
		}
		barLen := 0
		if maxCost > 0 {
			barLen = int(mc.TotalCost / maxCost * float64(barMaxLen))
		}
		body.WriteString(nameStyle.Render(fmt.Sprintf("%-*s", nameW, truncStr(shortModel(mc.Model), nameW))))
		body.WriteString(spaceStyle.Render(" "))
		body.WriteString(barStyle.Render(strings.Repeat("█", barLen)))
		body.WriteString(spaceStyle.Render(" "))
		body.WriteString(pctStyle.Render(fmt.Sprintf("%.0f%%", share*100)))
		body.WriteString("\n")
	}
	return body.String()
}

// renderAgentSplit lists per-agent totals: sessions, cost, and waste.
func (a App) renderAgentSplit(innerW int) string {
	t := theme.Active
	byAgent := a.agg.ByAgent

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	costStyle := lipgloss.NewStyle().Foreground(t.Cost()).Background(t.Surface)
	wasteStyle := lipgloss.NewStyle().Foreground(t.Waste()).Background(t.Surface)

	if len(byAgent) == 0 {
		return mutedStyle.Render("No sessions")
	}

	nameW := innerW - 8 - 10 - 10 - 3
	if nameW < 8 {
		nameW = 8
	}

	var body strings.Builder
	body.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %8s %10s %10s", nameW, "Agent", "Sessions", "Cost", "Waste")))
	body.WriteString("\n")
	body.WriteString(mutedStyle.Render(strings.Repeat("─", innerW)))
	body.WriteString("\n")
	for _, ab := range byAgent {
		body.WriteString(rowStyle.Render(fmt.Sprintf("%-*s %8s", nameW, truncStr(string(ab.Agent), nameW), cli.FormatNumber(int64(ab.Sessions)))))
		body.WriteString(costStyle.Render(fmt.Sprintf(" %10s", cli.FormatCost(ab.CostUSD))))
		body.WriteString(wasteStyle.Render(fmt.Sprintf(" %10s", cli.FormatWaste(ab.WastedCostUSD))))
		body.WriteString("\n")
	}
	return body.String()
}
