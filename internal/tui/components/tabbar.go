package components

import (
	"strings"

	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // position of the shortcut letter in the name (-1 if not in name)
}

// Tabs defines all available tabs, in display order.
var Tabs = []Tab{
	{Name: "Overview", Key: 'o', KeyPos: 0},
	{Name: "Costs", Key: 'c', KeyPos: 0},
	{Name: "Sessions", Key: 's', KeyPos: 0},
	{Name: "Findings", Key: 'f', KeyPos: 0},
	{Name: "Settings", Key: 'x', KeyPos: -1}, // x is not in "Settings"
}

// TabVisualWidth returns the rendered width of one tab. Mouse hitboxes in
// the app are computed from this, so it must stay in sync with RenderTabBar.
func TabVisualWidth(tab Tab, active bool) int {
	w := len(tab.Name) + 2 // one padding space each side
	if !active && tab.KeyPos < 0 {
		w += 3 // "[x]" shortcut suffix
	}
	return w
}

// RenderTabBar renders a single-row tab bar with the given active index,
// padded with the surface background out to width.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.Background).
		Background(t.Accent).
		Bold(true)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Bold(true)

	dimStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)

	var b strings.Builder
	pos := 0
	for i, tab := range Tabs {
		if i > 0 {
			b.WriteString(dimStyle.Render(" "))
			pos++
		}
		if i == activeIdx {
			b.WriteString(activeStyle.Render(" " + tab.Name + " "))
		} else {
			b.WriteString(inactiveStyle.Render(" "))
			if tab.KeyPos >= 0 && tab.KeyPos < len(tab.Name) {
				// Highlight the shortcut letter in place so the width
				// matches the active rendering.
				b.WriteString(inactiveStyle.Render(tab.Name[:tab.KeyPos]))
				b.WriteString(keyStyle.Render(string(tab.Name[tab.KeyPos])))
				b.WriteString(inactiveStyle.Render(tab.Name[tab.KeyPos+1:]))
			} else {
				b.WriteString(inactiveStyle.Render(tab.Name))
				b.WriteString(dimStyle.Render("[") + keyStyle.Render(string(tab.Key)) + dimStyle.Render("]"))
			}
			b.WriteString(inactiveStyle.Render(" "))
		}
		pos += TabVisualWidth(tab, i == activeIdx)
	}

	if pos < width {
		b.WriteString(lipgloss.NewStyle().Background(t.Surface).Render(strings.Repeat(" ", width-pos)))
	}

	return b.String() + "\n"
}
