// Package tui provides the interactive Bubble Tea dashboard for tracekit.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/config"
	"github.com/0xKoda/tracekit/internal/ingest"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/pricing"
	"github.com/0xKoda/tracekit/internal/store"
	"github.com/0xKoda/tracekit/internal/tui/components"
	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Options configure the dashboard's data pipeline.
type Options struct {
	Load     pipeline.Options
	Catalog  *pricing.Catalog
	UseCache bool
}

// DataLoadedMsg is sent when the data pipeline finishes.
type DataLoadedMsg struct {
	Analyses []pipeline.Analysis
	Failures int
	LoadTime time.Duration
}

// ProgressMsg reports file parsing progress.
type ProgressMsg struct {
	Current int
	Total   int
}

// RefreshDataMsg is sent when a background data refresh completes.
type RefreshDataMsg struct {
	Analyses []pipeline.Analysis
	Failures int
	LoadTime time.Duration
}

// dayCost is one calendar day's summed activity. Slices of these are kept
// newest-first to match the session ordering from the pipeline.
type dayCost struct {
	Date     time.Time
	Sessions int
	Tokens   int64
	CostUSD  float64
}

// App is the root Bubble Tea model.
type App struct {
	opts Options

	// Data
	analyses []pipeline.Analysis
	failures int
	loaded   bool
	loadTime time.Duration

	refreshing bool

	// Pre-computed rollups for the loaded analyses
	agg    pipeline.Aggregate
	split  pipeline.CostSplit
	models []pipeline.ModelCostRow
	days   []dayCost

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool

	// Per-tab state
	sessState sessionsState
	settings  settingsState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals setupValues
	needSetup bool

	// Loading: channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg // progress + completion messages from loader goroutine
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	// Scroll navigation
	scrollOverhead    = 10 // approximate header + status bar height for half-page calc
	minHalfPageScroll = 1  // minimum lines for half-page scroll
	minContentHeight  = 5  // minimum content area height
)

// loadConfigOrDefault loads config, falling back to defaults so the
// dashboard can always start even if the config file is corrupted.
func loadConfigOrDefault() config.Config {
	cfg, err := config.Load()
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// NewApp creates the dashboard model. Data loads in the background after Init.
func NewApp(opts Options) App {
	needSetup := !config.Exists()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	return App{
		opts:      opts,
		needSetup: needSetup,
		spinner:   sp,
		loadSub:   make(chan tea.Msg, 1),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion, // Enable mouse support
		loadDataCmd(a.opts, a.loadSub),
		a.spinner.Tick,
	)
}

func (a *App) recompute() {
	a.agg = pipeline.BuildAggregate(a.analyses, 5)
	a.split, a.models = pipeline.CostBreakdown(a.analyses, a.opts.Catalog)
	a.days = dailyCosts(a.analyses)

	// Clamp sessions cursor to the new list bounds
	if a.sessState.cursor >= len(a.analyses) {
		a.sessState.cursor = len(a.analyses) - 1
	}
	if a.sessState.cursor < 0 {
		a.sessState.cursor = 0
	}
	a.sessState.detailScroll = 0
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Forward to setup form if active
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || (a.needSetup && a.setupForm != nil) {
			return a, nil
		}

		switch msg.Button {
		case tea.MouseButtonWheelUp:
			// Scroll up in sessions tab
			if a.activeTab == 2 && !a.sessState.searching {
				if a.sessState.cursor > 0 {
					a.sessState.cursor--
					a.sessState.detailScroll = 0
				}
			}
			return a, nil

		case tea.MouseButtonWheelDown:
			// Scroll down in sessions tab
			if a.activeTab == 2 && !a.sessState.searching {
				searchFiltered := a.getSearchFilteredSessions()
				if a.sessState.cursor < len(searchFiltered)-1 {
					a.sessState.cursor++
					a.sessState.detailScroll = 0
				}
			}
			return a, nil

		case tea.MouseButtonLeft:
			// Check if click is in tab bar area (first 2 lines)
			if msg.Y <= 1 {
				if tab := a.tabAtX(msg.X); tab >= 0 && tab < len(components.Tabs) {
					a.activeTab = tab
				}
			}
			return a, nil
		}
		return a, nil

	case tea.KeyMsg:
		key := msg.String()

		// Global: quit
		if key == "ctrl+c" {
			return a, tea.Quit
		}

		if !a.loaded {
			return a, nil
		}

		// First-run setup wizard intercepts all keys
		if a.needSetup && a.setupForm != nil {
			return a.updateSetupForm(msg)
		}

		// Settings tab has its own keybindings (text input)
		if a.activeTab == 4 && a.settings.editing {
			return a.updateSettingsInput(msg)
		}

		// Sessions search mode intercepts all keys when active
		if a.activeTab == 2 && a.sessState.searching {
			return a.updateSessionsSearch(msg)
		}

		// Help toggle
		if key == "?" {
			a.showHelp = !a.showHelp
			return a, nil
		}

		// Dismiss help
		if a.showHelp {
			a.showHelp = false
			return a, nil
		}

		// Sessions tab has its own keybindings
		if a.activeTab == 2 {
			searchFiltered := a.getSearchFilteredSessions()

			switch key {
			case "/":
				// Start search mode
				a.sessState.searching = true
				a.sessState.searchInput = newSearchInput()
				a.sessState.searchInput.Focus()
				return a, a.sessState.searchInput.Cursor.BlinkCmd()
			case "q":
				if a.sessState.viewMode == sessViewDetail {
					a.sessState.viewMode = sessViewSplit
					return a, nil
				}
				return a, tea.Quit
			case "enter":
				if a.sessState.viewMode == sessViewSplit {
					a.sessState.viewMode = sessViewDetail
				}
				return a, nil
			case "esc":
				// Clear search if active, otherwise exit detail view
				if a.sessState.searchQuery != "" {
					a.sessState.searchQuery = ""
					a.sessState.cursor = 0
					a.sessState.offset = 0
					return a, nil
				}
				if a.sessState.viewMode == sessViewDetail {
					a.sessState.viewMode = sessViewSplit
				}
				return a, nil
			case "j", "down":
				if a.sessState.cursor < len(searchFiltered)-1 {
					a.sessState.cursor++
					a.sessState.detailScroll = 0
				}
				return a, nil
			case "k", "up":
				if a.sessState.cursor > 0 {
					a.sessState.cursor--
					a.sessState.detailScroll = 0
				}
				return a, nil
			case "g":
				a.sessState.cursor = 0
				a.sessState.offset = 0
				a.sessState.detailScroll = 0
				return a, nil
			case "G":
				a.sessState.cursor = len(searchFiltered) - 1
				if a.sessState.cursor < 0 {
					a.sessState.cursor = 0
				}
				a.sessState.detailScroll = 0
				return a, nil
			case "J":
				a.sessState.detailScroll++
				return a, nil
			case "K":
				if a.sessState.detailScroll > 0 {
					a.sessState.detailScroll--
				}
				return a, nil
			case "ctrl+d":
				halfPage := (a.height - scrollOverhead) / 2
				if halfPage < minHalfPageScroll {
					halfPage = minHalfPageScroll
				}
				a.sessState.detailScroll += halfPage
				return a, nil
			case "ctrl+u":
				halfPage := (a.height - scrollOverhead) / 2
				if halfPage < minHalfPageScroll {
					halfPage = minHalfPageScroll
				}
				a.sessState.detailScroll -= halfPage
				if a.sessState.detailScroll < 0 {
					a.sessState.detailScroll = 0
				}
				return a, nil
			}
		}

		// Settings tab navigation (non-editing mode)
		if a.activeTab == 4 {
			switch key {
			case "j", "down":
				if a.settings.cursor < settingsFieldCount-1 {
					a.settings.cursor++
				}
				return a, nil
			case "k", "up":
				if a.settings.cursor > 0 {
					a.settings.cursor--
				}
				return a, nil
			case "enter":
				return a.settingsStartEdit()
			}
		}

		// Global quit from non-sessions tabs
		if key == "q" {
			return a, tea.Quit
		}

		// Manual refresh
		if key == "r" && !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.opts)
		}

		// Tab navigation
		switch key {
		case "o":
			a.activeTab = 0
		case "c":
			a.activeTab = 1
		case "s":
			a.activeTab = 2
		case "f":
			a.activeTab = 3
		case "x":
			a.activeTab = 4
		case "left":
			a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		case "right":
			a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		}
		return a, nil

	case DataLoadedMsg:
		a.analyses = msg.Analyses
		a.failures = msg.Failures
		a.loaded = true
		a.loadTime = msg.LoadTime
		a.recompute()

		// Activate first-run setup after data loads
		if a.needSetup {
			a.setupForm = newSetupForm(len(a.analyses), &a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}

		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case RefreshDataMsg:
		a.refreshing = false
		if msg.Analyses != nil {
			a.analyses = msg.Analyses
			a.failures = msg.Failures
			a.loadTime = msg.LoadTime
			a.recompute()
		}
		return a, nil
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	if a.setupForm.State == huh.StateCompleted {
		_ = a.saveSetupConfig()
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	if a.setupForm.State == huh.StateAborted {
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	return a, cmd
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}

	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}

	if !a.loaded {
		return a.viewLoading()
	}

	// First-run setup wizard
	if a.needSetup && a.setupForm != nil {
		return a.setupForm.View()
	}

	if a.showHelp {
		return a.viewHelp()
	}

	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := a.height
	if h < 5 {
		h = 5
	}

	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  tracekit needs at least %d columns.\n  Current width: %d\n",
		a.width,
		minTerminalWidth,
		a.width,
	)

	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active
	w := a.width
	h := a.height

	// Polished loading card with accent border
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	spinnerStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface)

	countStyle := lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ tracekit"))
	b.WriteString(subtitleStyle.Render(" · Agent Trace Analyzer"))
	b.WriteString("\n\n")

	if a.progressMax > 0 {
		barW := 40
		if barW > w-30 {
			barW = w - 30
		}
		if barW < 20 {
			barW = 20
		}
		pct := float64(a.progress) / float64(a.progressMax)
		b.WriteString(spinnerStyle.Render(a.spinner.View()))
		b.WriteString(subtitleStyle.Render(" Parsing sessions\n\n"))
		b.WriteString(components.ProgressBar(pct, barW))
		b.WriteString("\n")
		b.WriteString(countStyle.Render(cli.FormatNumber(int64(a.progress))))
		b.WriteString(subtitleStyle.Render(" / "))
		b.WriteString(countStyle.Render(cli.FormatNumber(int64(a.progressMax))))
	} else {
		b.WriteString(spinnerStyle.Render(a.spinner.View()))
		b.WriteString(subtitleStyle.Render(" Discovering sessions..."))
	}

	card := cardStyle.Render(b.String())

	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active
	h := a.height
	w := a.width

	// Polished help overlay with accent border
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)

	sectionStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Bold(true)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Cyan).
		Background(t.Surface).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	dimStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")

	// Navigation section
	b.WriteString(sectionStyle.Render("Navigation"))
	b.WriteString("\n")
	navBindings := []struct{ key, desc string }{
		{"o c s f x", "Jump to tab"},
		{"← →", "Previous / Next tab"},
		{"j k", "Navigate lists"},
		{"J K", "Scroll detail pane"},
		{"^d ^u", "Half-page scroll"},
	}
	for _, bind := range navBindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
			descStyle.Render(bind.desc))
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Actions"))
	b.WriteString("\n")
	actionBindings := []struct{ key, desc string }{
		{"/", "Search sessions"},
		{"Enter", "Expand / Confirm"},
		{"Esc", "Back / Cancel"},
		{"r", "Refresh data"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
	for _, bind := range actionBindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
			descStyle.Render(bind.desc))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	card := cardStyle.Render(b.String())

	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	// 1. Render header (tab bar + filter pill)
	filterPillStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)

	filterAccentStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Bold(true)

	segments := filterSegments(a.opts.Load)
	filterStr := filterPillStyle.Render(" ")
	for i, seg := range segments {
		if i > 0 {
			filterStr += filterPillStyle.Render(" │ ")
		}
		filterStr += filterAccentStyle.Render(seg)
	}
	filterStr += filterPillStyle.Render(" ")

	// Pad filter line to full width
	filterRowStyle := lipgloss.NewStyle().
		Background(t.Surface).
		Width(w)

	header := components.RenderTabBar(a.activeTab, w) +
		filterRowStyle.Render(filterStr)

	// 2. Render status bar
	dataAge := fmt.Sprintf("%.1fs", a.loadTime.Seconds())
	statusBar := components.RenderStatusBar(w, dataAge, len(a.analyses), a.refreshing)

	// 3. Calculate content zone height
	headerH := lipgloss.Height(header)
	statusH := lipgloss.Height(statusBar)
	contentH := h - headerH - statusH
	if contentH < minContentHeight {
		contentH = minContentHeight
	}

	// 4. Render tab content (pass contentH to sessions)
	var content string
	switch a.activeTab {
	case 0:
		content = a.renderOverviewTab(cw)
	case 1:
		content = a.renderCostsTab(cw)
	case 2:
		searchFiltered := a.getSearchFilteredSessions()
		content = a.renderSessionsContent(searchFiltered, cw, contentH)
	case 3:
		content = a.renderFindingsTab(cw)
	case 4:
		content = a.renderSettingsTab(cw)
	}

	// 5. Truncate + pad to exactly contentH lines
	content = padHeight(truncateHeight(content, contentH), contentH)

	// 6. Fill each line to full width with background (fixes gaps between cards)
	content = fillLinesWithBackground(content, cw, t.Background)

	// 7. Place content with background fill (handles centering when w > cw)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	// 8. Stack vertically
	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)

	// 9. Ensure entire terminal is filled with background
	// This handles any edge cases where the calculated heights don't perfectly match
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Helpers ────────────────────────────────────────────────────

// filterSegments describes the active pipeline filters for the header pill.
func filterSegments(opts pipeline.Options) []string {
	var segs []string
	if len(opts.Agents) == 1 {
		segs = append(segs, string(opts.Agents[0]))
	} else {
		segs = append(segs, "all agents")
	}
	if !opts.Since.IsZero() {
		segs = append(segs, "since "+opts.Since.Format("2006-01-02"))
	}
	if !opts.Until.IsZero() {
		segs = append(segs, "until "+opts.Until.Format("2006-01-02"))
	}
	if opts.CWD != "" {
		segs = append(segs, "cwd:"+opts.CWD)
	}
	if opts.ModelID != "" {
		segs = append(segs, "model:"+opts.ModelID)
	}
	return segs
}

// dailyCosts buckets analyses into per-day totals, newest day first.
// Sessions without a start time are skipped.
func dailyCosts(analyses []pipeline.Analysis) []dayCost {
	byDay := make(map[time.Time]*dayCost)
	for _, an := range analyses {
		s := an.Session
		if s.StartedAt.IsZero() {
			continue
		}
		day := s.StartedAt.Local().Truncate(24 * time.Hour)
		dc := byDay[day]
		if dc == nil {
			dc = &dayCost{Date: day}
			byDay[day] = dc
		}
		dc.Sessions++
		dc.Tokens += s.Usage.Total()
		dc.CostUSD += s.CostUSD
	}

	days := make([]dayCost, 0, len(byDay))
	for _, dc := range byDay {
		days = append(days, *dc)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}

// loadDataCmd starts the data pipeline in a background goroutine.
// It streams ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(opts Options, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			start := time.Now()

			// Progress callback: non-blocking send so workers aren't stalled.
			// If the channel is full, skip this update; the next one catches up.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}

			analyses, failures := runLoad(opts, progressFn)
			sub <- DataLoadedMsg{
				Analyses: analyses,
				Failures: failures,
				LoadTime: time.Since(start),
			}
		}()

		// Block until the first message (either ProgressMsg or DataLoadedMsg)
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// runLoad executes one pipeline load, opening the analysis cache when enabled.
func runLoad(opts Options, progress pipeline.ProgressFunc) ([]pipeline.Analysis, int) {
	loadOpts := opts.Load
	loadOpts.Progress = progress
	loadOpts.Cache = nil

	if opts.UseCache {
		if cache, err := store.Open(pipeline.CachePath()); err == nil {
			loadOpts.Cache = cache
			defer cache.Close()
		}
	}

	parser := ingest.NewParser(opts.Catalog)
	result, err := pipeline.Load(context.Background(), parser, loadOpts)
	if err != nil || result == nil {
		return nil, 0
	}
	return result.Analyses, len(result.Failures)
}

// refreshDataCmd reloads session data in the background (no progress UI).
func refreshDataCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		analyses, failures := runLoad(opts, nil)
		return RefreshDataMsg{
			Analyses: analyses,
			Failures: failures,
			LoadTime: time.Since(start),
		}
	}
}

// chartDateLabels builds compact X-axis labels for a chronological date series.
// The first label and month boundaries show the month abbreviation; everything
// else (including the last) is just the day number.
// days is sorted newest-first; labels are returned oldest-left.
func chartDateLabels(days []dayCost) []string {
	n := len(days)
	labels := make([]string, n)
	// Build chronological date list (oldest first)
	dates := make([]time.Time, n)
	for i, d := range days {
		dates[n-1-i] = d.Date
	}
	prevMonth := time.Month(0)
	for i, dt := range dates {
		m := dt.Month()
		day := dt.Day()
		switch {
		case i == 0:
			labels[i] = dt.Format("Jan")
		case i == n-1:
			labels[i] = strconv.Itoa(day)
		case m != prevMonth:
			labels[i] = dt.Format("Jan")
		default:
			labels[i] = strconv.Itoa(day)
		}
		prevMonth = m
	}
	return labels
}

// shortModel trims the vendor prefix from a model id for narrow columns.
func shortModel(name string) string {
	if len(name) > 7 && name[:7] == "claude-" {
		return name[7:]
	}
	return name
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	padding := strings.Repeat("\n", h-len(lines))
	return s + padding
}

// fillLinesWithBackground pads each line to width w with background color.
// This ensures gaps between cards and empty lines have proper background fill.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		// Use PlaceHorizontal to ensure proper width and background fill
		// This is more reliable than just Background().Render(spaces)
		placed := lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
		result.WriteString(placed)
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		// Must match RenderTabBar's visual width calculation exactly.
		tabW := components.TabVisualWidth(tab, i == a.activeTab)

		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW

		// Separator is one column between tabs.
		if i < len(components.Tabs)-1 {
			pos++
		}
	}
	return -1
}

// ─── Session Search ─────────────────────────────────────────────

// updateSessionsSearch handles key events while in search mode.
func (a App) updateSessionsSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "enter":
		// Apply search and exit search mode
		a.sessState.searchQuery = strings.TrimSpace(a.sessState.searchInput.Value())
		a.sessState.searching = false
		a.sessState.cursor = 0
		a.sessState.offset = 0
		a.sessState.detailScroll = 0
		return a, nil

	case "esc":
		// Cancel search mode without applying
		a.sessState.searching = false
		return a, nil
	}

	// Forward other keys to the text input
	var cmd tea.Cmd
	a.sessState.searchInput, cmd = a.sessState.searchInput.Update(msg)
	return a, cmd
}

// getSearchFilteredSessions returns analyses filtered by the current search query.
func (a App) getSearchFilteredSessions() []pipeline.Analysis {
	if a.sessState.searchQuery == "" {
		return a.analyses
	}
	return filterSessionsBySearch(a.analyses, a.sessState.searchQuery)
}

// filterSessionsBySearch keeps analyses whose id, working directory, agent,
// or model contains the query (case-insensitive).
func filterSessionsBySearch(analyses []pipeline.Analysis, query string) []pipeline.Analysis {
	q := strings.ToLower(query)
	var out []pipeline.Analysis
	for _, an := range analyses {
		s := an.Session
		if strings.Contains(strings.ToLower(s.ID), q) ||
			strings.Contains(strings.ToLower(s.CWD), q) ||
			strings.Contains(strings.ToLower(string(s.Agent)), q) ||
			strings.Contains(strings.ToLower(s.Model), q) {
			out = append(out, an)
		}
	}
	return out
}

// agentFilterLabel names the agent selection for titles ("all" or one agent).
func agentFilterLabel(agents []model.Agent) string {
	if len(agents) == 1 {
		return string(agents[0])
	}
	return "all"
}
