package tui

import (
	"fmt"
	"strings"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/tui/components"
	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderCostsTab(cw int) string {
	t := theme.Active
	agg := a.agg
	split := a.split

	var b strings.Builder

	// Row 1: Cost metric cards. Recorded cost comes from the traces where
	// vendors write one; the split is always priced at catalog rates.
	perSession := ""
	if agg.Sessions > 0 {
		perSession = cli.FormatCost(agg.CostUSD/float64(agg.Sessions)) + "/session"
	}
	cacheShare := ""
	if split.TotalCost > 0 {
		cacheShare = cli.FormatPercent((split.CacheReadCost+split.CacheWriteCost)/split.TotalCost) + " of est."
	}
	costCards := []struct{ Label, Value, Delta string }{
		{"Total Cost", cli.FormatCost(agg.CostUSD), perSession},
		{"Est. at Catalog", cli.FormatCost(split.TotalCost), "by token kind"},
		{"Cache Spend", cli.FormatCost(split.CacheReadCost + split.CacheWriteCost), cacheShare},
		{"Waste", cli.FormatWaste(agg.WastedCostUSD), fmt.Sprintf("%d findings", agg.Findings)},
	}
	b.WriteString(components.MetricCardRow(costCards, cw))
	b.WriteString("\n")

	// Row 2: Spend by token kind
	b.WriteString(a.renderTokenKindCard(cw))
	b.WriteString("\n")

	// Row 3: Cost by model table
	b.WriteString(a.renderModelCostCard(cw))
	b.WriteString("\n")

	// Row 4: Most expensive sessions
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	costStyle := lipgloss.NewStyle().Foreground(t.Cost()).Background(t.Surface)
	agentStyle := lipgloss.NewStyle().Foreground(t.Tokens()).Background(t.Surface)

	var topBody strings.Builder
	if len(agg.TopSessions) == 0 {
		topBody.WriteString(labelStyle.Render("No sessions"))
	}
	for _, an := range agg.TopSessions {
		s := an.Session
		topBody.WriteString(valueStyle.Render(cli.ShortID(s.ID)))
		topBody.WriteString(agentStyle.Render(fmt.Sprintf("  %-8s", s.Agent)))
		topBody.WriteString(costStyle.Render(fmt.Sprintf(" %9s", cli.FormatCost(s.CostUSD))))
		topBody.WriteString(labelStyle.Render(fmt.Sprintf("  %s tok  %d findings", cli.FormatTokens(s.Usage.Total()), len(an.Findings))))
		topBody.WriteString("\n")
	}
	b.WriteString(components.ContentCard("Top Sessions", topBody.String(), cw))

	return b.String()
}

// renderTokenKindCard draws one labeled bar per token kind, sized by that
// kind's share of the catalog-rate estimate.
func (a App) renderTokenKindCard(cw int) string {
	t := theme.Active
	split := a.split
	innerW := components.CardInnerWidth(cw)

	labelW := 11 // enough for "Cache write"
	barW := innerW - labelW - 8
	if barW < 10 {
		barW = 10
	}

	kinds := []struct {
		label string
		cost  float64
	}{
		{"Input", split.InputCost},
		{"Output", split.OutputCost},
		{"Cache read", split.CacheReadCost},
		{"Cache write", split.CacheWriteCost},
	}

	var body strings.Builder
	if split.TotalCost <= 0 {
		hintStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
		body.WriteString(hintStyle.Render("No models matched the pricing catalog"))
	} else {
		for i, k := range kinds {
			body.WriteString(components.LabeledBar(k.label, k.cost/split.TotalCost, labelW, barW))
			if i < len(kinds)-1 {
				body.WriteString("\n")
			}
		}
	}

	title := fmt.Sprintf("Spend by Token Kind  %s", cli.FormatCost(split.TotalCost))
	return components.ContentCard(title, body.String(), cw)
}

// renderModelCostCard tabulates per-model costs at catalog rates.
func (a App) renderModelCostCard(cw int) string {
	t := theme.Active
	innerW := components.CardInnerWidth(cw)

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	modelNameStyle := lipgloss.NewStyle().Foreground(t.BlueBright).Background(t.Surface)
	tokenCostStyle := lipgloss.NewStyle().Foreground(t.Tokens()).Background(t.Surface)
	costValueStyle := lipgloss.NewStyle().Foreground(t.Cost()).Background(t.Surface)

	var tableBody strings.Builder
	if a.isCompactLayout() {
		totalW := 10
		nameW := innerW - totalW - 1
		if nameW < 10 {
			nameW = 10
		}
		tableBody.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %10s", nameW, "Model", "Total")))
		tableBody.WriteString("\n")
		tableBody.WriteString(mutedStyle.Render(strings.Repeat("─", nameW+totalW+1)))
		tableBody.WriteString("\n")

		for _, mc := range a.models {
			tableBody.WriteString(modelNameStyle.Render(fmt.Sprintf("%-*s", nameW, truncStr(shortModel(mc.Model), nameW))))
			tableBody.WriteString(costValueStyle.Render(fmt.Sprintf(" %10s", cli.FormatCost(mc.TotalCost))))
			tableBody.WriteString("\n")
		}
		tableBody.WriteString(mutedStyle.Render(strings.Repeat("─", nameW+totalW+1)))
	} else {
		fixedCols := 10 + 10 + 10 + 10 + 10
		gaps := 5
		nameW := innerW - fixedCols - gaps
		if nameW < 14 {
			nameW = 14
		}
		tableBody.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %10s %10s %10s %10s %10s",
			nameW, "Model", "Input", "Output", "Cache R", "Cache W", "Total")))
		tableBody.WriteString("\n")
		tableBody.WriteString(mutedStyle.Render(strings.Repeat("─", innerW)))
		tableBody.WriteString("\n")

		for _, mc := range a.models {
			tableBody.WriteString(modelNameStyle.Render(fmt.Sprintf("%-*s", nameW, truncStr(shortModel(mc.Model), nameW))))
			tableBody.WriteString(tokenCostStyle.Render(fmt.Sprintf(" %10s %10s %10s %10s",
				cli.FormatCost(mc.InputCost),
				cli.FormatCost(mc.OutputCost),
				cli.FormatCost(mc.CacheReadCost),
				cli.FormatCost(mc.CacheWriteCost))))
			tableBody.WriteString(costValueStyle.Render(fmt.Sprintf(" %10s", cli.FormatCost(mc.TotalCost))))
			tableBody.WriteString("\n")
		}
		tableBody.WriteString(mutedStyle.Render(strings.Repeat("─", innerW)))
	}

	return components.ContentCard("Cost by Model", tableBody.String(), cw)
}
