package components

import (
	"fmt"

	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatusBar renders the bottom status bar: key hints on the left,
// session count and load timing on the right.
func RenderStatusBar(width int, loadTime string, sessions int, refreshing bool) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface).
		Width(width)

	left := " [?]help  [r]efresh  [q]uit"
	if refreshing {
		left = " [?]help  refreshing...  [q]uit"
	}

	right := fmt.Sprintf("%d sessions", sessions)
	if loadTime != "" {
		right += fmt.Sprintf("  ·  loaded in %s", loadTime)
	}
	right += " "

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	bar := left
	for i := 0; i < padding; i++ {
		bar += " "
	}
	bar += right

	return style.Render(bar)
}
