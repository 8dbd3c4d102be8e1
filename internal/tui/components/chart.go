package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// partialRunes index 0..8 maps a fill fraction to a block glyph.
var partialRunes = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var sparkRunes = partialRunes[1:]

// sparkline renders values as one row of block runes scaled to the series
// peak. It backs SpendChart in panes too narrow for a full chart.
func sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		peak = 1
	}

	var b strings.Builder
	b.Grow(len(values) * 3)
	for _, v := range values {
		idx := int(v / peak * float64(len(sparkRunes)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return lipgloss.NewStyle().Foreground(color).Background(t.Surface).Render(b.String())
}

// SpendChart draws per-day dollar totals as vertical bars against a
// dollar-formatted axis. The series downsamples when the pane cannot fit
// one bar per day; very narrow panes degrade to a sparkline.
func SpendChart(values []float64, labels []string, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active
	if width < 16 || height < 4 {
		return sparkline(values, t.Blue)
	}

	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		peak = 1
	}

	// Axis scale: a nice tick interval, doubled until the ticks fit the
	// pane height at two or more rows per tick.
	tick := niceTick(peak)
	maxTicks := height / 2
	if maxTicks < 2 {
		maxTicks = 2
	}
	for int(math.Ceil(peak/tick)) > maxTicks {
		tick *= 2
	}
	ticks := int(math.Ceil(peak / tick))
	if ticks < 1 {
		ticks = 1
	}
	ceiling := float64(ticks) * tick

	rowsPerTick := height / ticks
	if rowsPerTick < 2 {
		rowsPerTick = 2
	}
	rows := rowsPerTick * ticks

	axisW := 0
	tickLabels := make(map[int]string, ticks)
	for i := 1; i <= ticks; i++ {
		lbl := dollarTick(tick * float64(i))
		tickLabels[i*rowsPerTick] = lbl
		if len(lbl) > axisW {
			axisW = len(lbl)
		}
	}
	axisW++
	if axisW < 5 {
		axisW = 5
	}

	chartW := width - axisW - 1
	if chartW < 5 {
		chartW = 5
	}

	// Bars run two to six columns wide with a single space between them;
	// when even two-wide bars overflow, the series thins out instead.
	n := len(values)
	gap := 1
	if n <= 1 {
		gap = 0
	}
	barW := chartW
	if n > 1 {
		barW = (chartW - (n - 1)) / n
	}
	if barW < 2 && n > 1 {
		keep := (chartW + 1) / 3
		if keep < 2 {
			keep = 2
		}
		values, labels = resample(values, labels, keep)
		n = keep
		barW = 2
	}
	if barW > 6 {
		barW = 6
	}
	axisLen := n*barW + (n-1)*gap

	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	fillStyle := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	for row := rows; row >= 1; row-- {
		top := ceiling * float64(row) / float64(rows)
		bottom := ceiling * float64(row-1) / float64(rows)
		barStyle := lipgloss.NewStyle().
			Foreground(bandColor(t, float64(row)/float64(rows))).
			Background(t.Surface)

		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", axisW, tickLabels[row])))
		b.WriteString(axisStyle.Render("│"))

		for i, v := range values {
			if i > 0 && gap > 0 {
				b.WriteString(fillStyle.Render(" "))
			}
			switch {
			case v >= top:
				b.WriteString(barStyle.Render(strings.Repeat("█", barW)))
			case v > bottom:
				frac := (v - bottom) / (top - bottom)
				idx := int(frac * 8)
				if idx < 1 {
					idx = 1
				}
				if idx > 8 {
					idx = 8
				}
				b.WriteString(barStyle.Render(strings.Repeat(string(partialRunes[idx]), barW)))
			default:
				b.WriteString(fillStyle.Render(strings.Repeat(" ", barW)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", axisW, "0")))
	b.WriteString(axisStyle.Render("└"))
	b.WriteString(axisStyle.Render(strings.Repeat("─", axisLen)))

	if row := axisLabelRow(labels, n, barW, gap, axisLen); row != "" {
		b.WriteString("\n")
		b.WriteString(fillStyle.Render(strings.Repeat(" ", axisW+1)))
		b.WriteString(axisStyle.Render(row))
	}

	return b.String()
}

// bandColor shades bar rows by height so expensive days stand out.
func bandColor(t theme.Theme, pct float64) lipgloss.Color {
	switch {
	case pct > 0.8:
		return t.AccentBright
	case pct > 0.5:
		return t.Blue
	default:
		return t.Accent
	}
}

// niceTick picks a 1/2/5-series interval targeting four or five ticks.
func niceTick(peak float64) float64 {
	if peak <= 0 {
		return 1
	}
	raw := peak / 4
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch norm := raw / mag; {
	case norm < 1.5:
		return mag
	case norm < 3.5:
		return 2 * mag
	default:
		return 5 * mag
	}
}

// dollarTick formats an axis tick as a compact dollar amount.
func dollarTick(v float64) string {
	switch {
	case v >= 1000:
		return "$" + strings.TrimSuffix(fmt.Sprintf("%.1f", v/1000), ".0") + "k"
	case v >= 10:
		return fmt.Sprintf("$%.0f", v)
	case v >= 1:
		return "$" + strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

// resample thins a series to n points, keeping the first and last.
func resample(values []float64, labels []string, n int) ([]float64, []string) {
	src := len(values)
	out := make([]float64, n)
	var outLabels []string
	if len(labels) == src {
		outLabels = make([]string, n)
	}
	for i := range out {
		j := i * (src - 1) / (n - 1)
		out[i] = values[j]
		if outLabels != nil {
			outLabels[i] = labels[j]
		}
	}
	return out, outLabels
}

// axisLabelRow lays date labels under their bars, dropping any that would
// collide and pinning the last label to the right edge.
func axisLabelRow(labels []string, n, barW, gap, axisLen int) string {
	if len(labels) != n || n == 0 {
		return ""
	}
	buf := make([]byte, axisLen)
	for i := range buf {
		buf[i] = ' '
	}

	step := 1
	if n > 1 {
		const minSpacing = 8
		step = n * minSpacing / (axisLen + 1)
		if step < 1 {
			step = 1
		}
	}

	lastEnd := -1
	for i := 0; i < n; i += step {
		pos := i * (barW + gap)
		if pos <= lastEnd {
			continue
		}
		lbl := labels[i]
		end := pos + len(lbl)
		if end > axisLen {
			if axisLen-pos < 3 {
				continue
			}
			end = axisLen
			lbl = lbl[:end-pos]
		}
		copy(buf[pos:end], lbl)
		lastEnd = end
	}

	if n > 1 {
		lbl := labels[n-1]
		pos := (n-1)*(barW+gap) + barW - len(lbl)
		if pos+len(lbl) > axisLen {
			pos = axisLen - len(lbl)
		}
		if pos > lastEnd && pos >= 0 {
			copy(buf[pos:pos+len(lbl)], lbl)
		}
	}

	return strings.TrimRight(string(buf), " ")
}
