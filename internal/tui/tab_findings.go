package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/tui/components"
	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// sessionFinding pairs a finding with the session it came from, for
// the flattened top-findings list.
type sessionFinding struct {
	SessionID string
	Agent     model.Agent
	Finding   model.Finding
}

func (a App) renderFindingsTab(cw int) string {
	agg := a.agg

	var sections []string

	// Summary cards
	wasteShare := ""
	if agg.CostUSD > 0 {
		wasteShare = cli.FormatPercent(agg.WastedCostUSD/agg.CostUSD) + " of spend"
	}
	affected := 0
	for _, an := range a.analyses {
		if len(an.Findings) > 0 {
			affected++
		}
	}

	cards := []struct{ Label, Value, Delta string }{
		{"Findings", cli.FormatNumber(int64(agg.Findings)), fmt.Sprintf("%d sessions affected", affected)},
		{"Wasted Tokens", cli.FormatTokens(agg.WastedTokens), ""},
		{"Wasted Cost", cli.FormatWaste(agg.WastedCostUSD), wasteShare},
		{"Kinds Seen", cli.FormatNumber(int64(len(agg.ByKind))), fmt.Sprintf("of %d detectors", len(model.FindingKinds()))},
	}
	sections = append(sections, components.MetricCardRow(cards, cw))

	sections = append(sections, a.renderWasteByKind(cw))
	sections = append(sections, a.renderTopFindings(cw))

	return strings.Join(sections, "\n")
}

func (a App) renderWasteByKind(cw int) string {
	t := theme.Active
	agg := a.agg
	innerW := components.CardInnerWidth(cw)

	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	if len(agg.ByKind) == 0 {
		return components.ContentCard("Waste by Kind", mutedStyle.Render("No inefficiencies detected"), cw)
	}

	headerStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Bold(true)
	kindStyle := lipgloss.NewStyle().Foreground(t.Waste()).Background(t.Surface)
	numStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	costStyle := lipgloss.NewStyle().Foreground(t.Waste()).Background(t.Surface).Bold(true)

	// Kind + count + tokens + cost columns, bar fills the rest.
	const kindW = 22
	fixed := kindW + 7 + 10 + 10 + 4
	barW := innerW - fixed - 6
	if barW < 10 {
		barW = 10
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %7s %10s %10s", kindW, "Kind", "Count", "Tokens", "Est. Cost")))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", innerW)))
	b.WriteString("\n")

	for _, kb := range agg.ByKind {
		share := 0.0
		if agg.WastedCostUSD > 0 {
			share = kb.WastedCostUSD / agg.WastedCostUSD
		}
		b.WriteString(kindStyle.Render(fmt.Sprintf("%-*s", kindW, truncStr(string(kb.Kind), kindW))))
		b.WriteString(numStyle.Render(fmt.Sprintf(" %7s %10s", cli.FormatNumber(int64(kb.Count)), cli.FormatTokens(kb.WastedTokens))))
		b.WriteString(costStyle.Render(fmt.Sprintf(" %10s", cli.FormatWaste(kb.WastedCostUSD))))
		b.WriteString(mutedStyle.Render("  "))
		b.WriteString(components.ProgressBar(share, barW))
		b.WriteString("\n")
	}

	title := fmt.Sprintf("Waste by Kind  %s", cli.FormatWaste(agg.WastedCostUSD))
	return components.ContentCard(title, strings.TrimRight(b.String(), "\n"), cw)
}

func (a App) renderTopFindings(cw int) string {
	t := theme.Active
	innerW := components.CardInnerWidth(cw)

	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var flat []sessionFinding
	for _, an := range a.analyses {
		for _, f := range an.Findings {
			flat = append(flat, sessionFinding{
				SessionID: an.Session.ID,
				Agent:     an.Session.Agent,
				Finding:   f,
			})
		}
	}
	if len(flat) == 0 {
		return components.ContentCard("Top Findings", mutedStyle.Render("No inefficiencies detected"), cw)
	}

	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Finding.WastedCostUSD > flat[j].Finding.WastedCostUSD
	})
	limit := 10
	if len(flat) < limit {
		limit = len(flat)
	}

	idStyle := lipgloss.NewStyle().Foreground(t.Tokens()).Background(t.Surface)
	kindStyle := lipgloss.NewStyle().Foreground(t.Waste()).Background(t.Surface)
	costStyle := lipgloss.NewStyle().Foreground(t.Waste()).Background(t.Surface).Bold(true)
	confStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	for _, sf := range flat[:limit] {
		f := sf.Finding
		b.WriteString(idStyle.Render(cli.ShortID(sf.SessionID)))
		b.WriteString(kindStyle.Render(fmt.Sprintf("  %-22s", truncStr(string(f.Kind), 22))))
		b.WriteString(costStyle.Render(fmt.Sprintf("%9s", cli.FormatWaste(f.WastedCostUSD))))
		b.WriteString(confStyle.Render(fmt.Sprintf("  conf %s", cli.FormatConfidence(f.Confidence))))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("  " + truncStr(f.Message, innerW-2)))
		b.WriteString("\n")
	}

	return components.ContentCard("Top Findings", strings.TrimRight(b.String(), "\n"), cw)
}
