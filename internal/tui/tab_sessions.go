package tui

import (
	"fmt"
	"strings"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/tui/components"
	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

// Sessions view modes; split is iota (0) so it's the default zero value.
const (
	sessViewSplit  = iota // List + full detail side by side (default)
	sessViewDetail        // Full-screen detail
)

// sessionsState holds the sessions tab state.
type sessionsState struct {
	cursor       int
	viewMode     int
	offset       int // scroll offset for the list
	detailScroll int // scroll offset for the detail pane

	searching   bool
	searchInput textinput.Model
	searchQuery string
}

func newSearchInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "id, directory, agent, or model"
	ti.CharLimit = 128
	ti.Width = 40
	return ti
}

func (a App) renderSessionsContent(filtered []pipeline.Analysis, cw, h int) string {
	t := theme.Active
	ss := a.sessState

	var b strings.Builder

	// Search row
	if ss.searching {
		promptStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
		b.WriteString(promptStyle.Render(" /"))
		b.WriteString(ss.searchInput.View())
		b.WriteString("\n")
		h--
	} else if ss.searchQuery != "" {
		queryStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
		b.WriteString(queryStyle.Render(fmt.Sprintf(" search: %q  [esc] clear", ss.searchQuery)))
		b.WriteString("\n")
		h--
	}

	if len(filtered) == 0 {
		msg := "No sessions found"
		if ss.searchQuery != "" {
			msg = fmt.Sprintf("No sessions match %q", ss.searchQuery)
		}
		b.WriteString(components.ContentCard("Sessions",
			lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render(msg), cw))
		return b.String()
	}

	switch ss.viewMode {
	case sessViewDetail:
		b.WriteString(a.renderSessionDetail(filtered, cw, h))
	default:
		b.WriteString(a.renderSessionsSplit(filtered, cw, h))
	}
	return b.String()
}

func (a App) renderSessionsSplit(analyses []pipeline.Analysis, cw, h int) string {
	t := theme.Active
	ss := a.sessState

	if ss.cursor >= len(analyses) {
		ss.cursor = len(analyses) - 1
	}
	if ss.cursor < 0 {
		return ""
	}

	leftW := cw / 3
	if leftW < 30 {
		leftW = 30
	}
	rightW := cw - leftW

	// Left pane: condensed session list
	leftInner := components.CardInnerWidth(leftW)

	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selectedStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceBright).Bold(true)

	var leftBody strings.Builder
	visible := h - 6 // card border (2) + header row (2) + footer hint (2)
	if visible < 5 {
		visible = 5
	}

	offset := ss.offset
	if ss.cursor < offset {
		offset = ss.cursor
	}
	if ss.cursor >= offset+visible {
		offset = ss.cursor - visible + 1
	}

	end := offset + visible
	if end > len(analyses) {
		end = len(analyses)
	}

	for i := offset; i < end; i++ {
		s := analyses[i].Session
		startStr := "-"
		if !s.StartedAt.IsZero() {
			startStr = s.StartedAt.UTC().Format("Jan 02 15:04")
		}

		line := fmt.Sprintf("%-12s %-8s %8s", startStr, truncStr(string(s.Agent), 8), cli.FormatCost(s.CostUSD))
		if len(line) > leftInner {
			line = line[:leftInner]
		}

		if i == ss.cursor {
			leftBody.WriteString(selectedStyle.Render(line))
		} else {
			leftBody.WriteString(rowStyle.Render(line))
		}
		leftBody.WriteString("\n")
	}

	leftTitle := fmt.Sprintf("Sessions · %s", agentFilterLabel(a.opts.Load.Agents))
	leftCard := components.ContentCard(leftTitle, leftBody.String(), leftW)

	// Right pane: full session detail
	sel := analyses[ss.cursor]
	rightInner := components.CardInnerWidth(rightW)
	rightBody := a.renderDetailBody(sel, rightInner)
	rightBody = scrollWindow(rightBody, ss.detailScroll, h-4)

	titleStr := fmt.Sprintf("Session %s", cli.ShortID(sel.Session.ID))
	rightCard := components.ContentCard(titleStr, rightBody, rightW)

	return components.CardRow([]string{leftCard, rightCard})
}

func (a App) renderSessionDetail(analyses []pipeline.Analysis, cw, h int) string {
	ss := a.sessState

	if ss.cursor >= len(analyses) || ss.cursor < 0 {
		return ""
	}
	sel := analyses[ss.cursor]

	body := a.renderDetailBody(sel, components.CardInnerWidth(cw))
	body = scrollWindow(body, ss.detailScroll, h-4)

	title := fmt.Sprintf("Session %s", cli.ShortID(sel.Session.ID))
	return components.ContentCard(title, body, cw)
}

// scrollWindow drops scroll lines from the top, clamped so the last page
// stays full.
func scrollWindow(s string, scroll, visible int) string {
	if scroll <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if visible < 1 {
		visible = 1
	}
	maxScroll := len(lines) - visible
	if maxScroll < 0 {
		maxScroll = 0
	}
	if scroll > maxScroll {
		scroll = maxScroll
	}
	return strings.Join(lines[scroll:], "\n")
}

// renderDetailBody generates the full detail content for a session:
// header facts, token breakdown, per-model costs, findings, top turns.
// Used by both the split right pane and the full-screen detail view.
func (a App) renderDetailBody(sel pipeline.Analysis, innerW int) string {
	t := theme.Active
	s := sel.Session

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	greenStyle := lipgloss.NewStyle().Foreground(t.Cost()).Background(t.Surface)
	wasteStyle := lipgloss.NewStyle().Foreground(t.Waste()).Background(t.Surface)

	var body strings.Builder
	if s.Title != "" {
		body.WriteString(valueStyle.Render(truncStr(s.Title, innerW)))
		body.WriteString("\n")
	}
	body.WriteString(mutedStyle.Render(truncStr(cli.CollapseHome(s.CWD), innerW)))
	body.WriteString("\n")
	body.WriteString(mutedStyle.Render(strings.Repeat("─", innerW)))
	body.WriteString("\n\n")

	// Timing line
	if !s.StartedAt.IsZero() {
		durStr := cli.FormatDuration(int64(s.Duration().Seconds()))
		body.WriteString(fmt.Sprintf("%s %s    %s %s\n",
			labelStyle.Render("Started:"),
			valueStyle.Render(cli.FormatTime(s.StartedAt)),
			labelStyle.Render("Duration:"),
			valueStyle.Render(durStr)))
	}

	body.WriteString(fmt.Sprintf("%s %s    %s %s    %s %s\n\n",
		labelStyle.Render("Agent:"), valueStyle.Render(string(s.Agent)),
		labelStyle.Render("Turns:"), valueStyle.Render(cli.FormatNumber(int64(len(s.Turns)))),
		labelStyle.Render("Model:"), valueStyle.Render(shortModel(s.Model))))

	// Token breakdown priced at catalog rates for this one session
	split, modelRows := pipeline.CostBreakdown([]pipeline.Analysis{sel}, a.opts.Catalog)

	body.WriteString(headerStyle.Render("TOKEN BREAKDOWN"))
	body.WriteString("\n")
	body.WriteString(headerStyle.Render(fmt.Sprintf("%-16s %12s %10s", "Kind", "Tokens", "Est. Cost")))
	body.WriteString("\n")
	body.WriteString(mutedStyle.Render(strings.Repeat("─", 40)))
	body.WriteString("\n")

	kindRows := []struct {
		kind   string
		tokens int64
		cost   float64
	}{
		{"Input", s.Usage.Input, split.InputCost},
		{"Output", s.Usage.Output, split.OutputCost},
		{"Cache Read", s.Usage.CacheRead, split.CacheReadCost},
		{"Cache Write", s.Usage.CacheWrite, split.CacheWriteCost},
	}
	for _, r := range kindRows {
		if r.tokens == 0 {
			continue
		}
		body.WriteString(valueStyle.Render(fmt.Sprintf("%-16s %12s %10s",
			r.kind,
			cli.FormatTokens(r.tokens),
			cli.FormatCost(r.cost))))
		body.WriteString("\n")
	}

	body.WriteString(mutedStyle.Render(strings.Repeat("─", 40)))
	body.WriteString("\n")
	body.WriteString(fmt.Sprintf("%s %s\n",
		valueStyle.Render(fmt.Sprintf("%-16s", "Session Cost")),
		greenStyle.Render(fmt.Sprintf("%22s", cli.FormatCost(s.CostUSD)))))

	// Per-model rows when the session mixed models
	if len(modelRows) > 1 {
		body.WriteString("\n")
		body.WriteString(headerStyle.Render("BY MODEL"))
		body.WriteString("\n")
		for _, mr := range modelRows {
			body.WriteString(valueStyle.Render(fmt.Sprintf("%-24s", truncStr(shortModel(mr.Model), 24))))
			body.WriteString(labelStyle.Render(fmt.Sprintf(" %10s in %10s out", cli.FormatTokens(mr.Usage.Input), cli.FormatTokens(mr.Usage.Output))))
			body.WriteString(greenStyle.Render(fmt.Sprintf(" %9s", cli.FormatCost(mr.TotalCost))))
			body.WriteString("\n")
		}
	}

	// Findings
	body.WriteString("\n")
	body.WriteString(headerStyle.Render(fmt.Sprintf("FINDINGS (%d)", len(sel.Findings))))
	body.WriteString("\n")
	if len(sel.Findings) == 0 {
		body.WriteString(mutedStyle.Render("No inefficiencies detected"))
		body.WriteString("\n")
	}
	for _, f := range sel.Findings {
		body.WriteString(wasteStyle.Render(fmt.Sprintf("%-22s %8s", f.Kind, cli.FormatWaste(f.WastedCostUSD))))
		body.WriteString("\n")
		body.WriteString(labelStyle.Render("  " + truncStr(f.Message, innerW-2)))
		body.WriteString("\n")
	}

	// Most expensive turns
	top := pipeline.TopTurns(s, a.opts.Catalog, 5)
	if len(top) > 0 {
		body.WriteString("\n")
		body.WriteString(headerStyle.Render("TOP TURNS"))
		body.WriteString("\n")
		for _, tc := range top {
			body.WriteString(valueStyle.Render(fmt.Sprintf("#%-4d %-10s", tc.Turn, tc.Role)))
			body.WriteString(greenStyle.Render(fmt.Sprintf("%9s", cli.FormatCost(tc.CostUSD))))
			body.WriteString(labelStyle.Render("  " + truncStr(tc.Preview, innerW-28)))
			body.WriteString("\n")
		}
	}

	body.WriteString("\n")
	body.WriteString(mutedStyle.Render("[Enter] expand  [j/k] navigate  [J/K] scroll  [/] search"))

	return body.String()
}
