package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
)

func analysisFor(s model.Session) pipeline.Analysis {
	sess := s
	return pipeline.Analysis{Session: &sess}
}

func TestFilterSessionsBySearch(t *testing.T) {
	analyses := []pipeline.Analysis{
		analysisFor(model.Session{ID: "abc-123", Agent: model.AgentClaude, CWD: "/home/dev/webapp", Model: "claude-sonnet-4-5"}),
		analysisFor(model.Session{ID: "def-456", Agent: model.AgentCodex, CWD: "/home/dev/api", Model: "gpt-5-codex"}),
		analysisFor(model.Session{ID: "ghi-789", Agent: model.AgentOpenCode, CWD: "/srv/tools", Model: "claude-opus-4"}),
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"codex", []string{"def-456"}},
		{"WebApp", []string{"abc-123"}},
		{"claude", []string{"abc-123", "ghi-789"}},
		{"/home/dev", []string{"abc-123", "def-456"}},
		{"nothing-matches", nil},
	}

	for _, tt := range tests {
		got := filterSessionsBySearch(analyses, tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("query %q: got %d results, want %d", tt.query, len(got), len(tt.want))
			continue
		}
		for i, an := range got {
			if an.Session.ID != tt.want[i] {
				t.Errorf("query %q: result[%d] = %q, want %q", tt.query, i, an.Session.ID, tt.want[i])
			}
		}
	}
}

func TestDailyCostsGroupsAndOrders(t *testing.T) {
	day1a := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	day1b := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	analyses := []pipeline.Analysis{
		analysisFor(model.Session{ID: "a", StartedAt: day1a, Usage: model.Usage{Input: 100}, CostUSD: 1.0}),
		analysisFor(model.Session{ID: "b", StartedAt: day1b, Usage: model.Usage{Output: 50}, CostUSD: 2.0}),
		analysisFor(model.Session{ID: "c", StartedAt: day2, Usage: model.Usage{Input: 10}, CostUSD: 0.5}),
		analysisFor(model.Session{ID: "d"}), // no timestamp, skipped
	}

	days := dailyCosts(analyses)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}
	if !days[0].Date.After(days[1].Date) {
		t.Errorf("days not newest-first: %v then %v", days[0].Date, days[1].Date)
	}
	if days[0].Sessions != 1 || days[0].CostUSD != 0.5 {
		t.Errorf("newest day = %d sessions $%.2f, want 1 sessions $0.50", days[0].Sessions, days[0].CostUSD)
	}
	if days[1].Sessions != 2 || days[1].CostUSD != 3.0 {
		t.Errorf("older day = %d sessions $%.2f, want 2 sessions $3.00", days[1].Sessions, days[1].CostUSD)
	}
	if days[1].Tokens != 150 {
		t.Errorf("older day tokens = %d, want 150", days[1].Tokens)
	}
}

func TestChartDateLabels(t *testing.T) {
	// Newest-first input spanning a month boundary
	days := []dayCost{
		{Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
	}

	labels := chartDateLabels(days)
	want := []string{"Feb", "Mar", "2"}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d", len(labels), len(want))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestTruncStr(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello w…"},
		{"héllo wörld", 6, "héllo…"},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := truncStr(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncStr(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestShortModel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"claude-sonnet-4-5", "sonnet-4-5"},
		{"gpt-5-codex", "gpt-5-codex"},
		{"claude-", "claude-"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := shortModel(tt.in); got != tt.want {
			t.Errorf("shortModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScrollWindow(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = string(rune('a' + i))
	}
	s := strings.Join(lines, "\n")

	if got := scrollWindow(s, 0, 5); got != s {
		t.Errorf("scroll 0 changed content")
	}

	got := scrollWindow(s, 3, 5)
	if !strings.HasPrefix(got, "d\n") {
		t.Errorf("scroll 3 starts with %q, want d", strings.SplitN(got, "\n", 2)[0])
	}

	// Over-scroll clamps so the last page stays full
	got = scrollWindow(s, 100, 5)
	if !strings.HasPrefix(got, "f\n") {
		t.Errorf("over-scroll starts with %q, want f", strings.SplitN(got, "\n", 2)[0])
	}
	if gotLines := strings.Split(got, "\n"); len(gotLines) != 5 {
		t.Errorf("over-scroll left %d lines, want 5", len(gotLines))
	}
}

func TestAgentFilterLabel(t *testing.T) {
	if got := agentFilterLabel([]model.Agent{model.AgentClaude}); got != "claude" {
		t.Errorf("single agent label = %q, want claude", got)
	}
	if got := agentFilterLabel(model.AllAgents()); got != "all" {
		t.Errorf("all agents label = %q, want all", got)
	}
	if got := agentFilterLabel(nil); got != "all" {
		t.Errorf("nil agents label = %q, want all", got)
	}
}
