package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
)

func analysisFixture(id string, agent model.Agent, cost float64, findings ...model.Finding) Analysis {
	return Analysis{
		Session: &model.Session{
			ID:        id,
			Agent:     agent,
			Model:     "claude-sonnet-4-5",
			StartedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			Turns:     make([]model.Turn, 4),
			Usage:     model.Usage{Input: 1000, Output: 100},
			CostUSD:   cost,
		},
		Findings: findings,
	}
}

func TestBuildAggregate_SingleSessionMatchesAnalysis(t *testing.T) {
	finding := model.Finding{
		Kind: model.RetryLoop, EvidenceTurns: []int{1, 3},
		WastedTokens: 800, WastedCostUSD: 0.004, Confidence: 0.9,
	}
	a := analysisFixture("only", model.AgentClaude, 0.05, finding)

	agg := BuildAggregate([]Analysis{a}, 10)
	if agg.Turns != len(a.Session.Turns) {
		t.Errorf("Turns = %d, want %d", agg.Turns, len(a.Session.Turns))
	}
	if agg.Sessions != 1 || agg.Findings != 1 {
		t.Fatalf("aggregate = %+v", agg)
	}
	if agg.CostUSD != a.Session.CostUSD || agg.Usage != a.Session.Usage {
		t.Errorf("totals diverge from the single session: %+v", agg)
	}
	if agg.WastedTokens != finding.WastedTokens || agg.WastedCostUSD != finding.WastedCostUSD {
		t.Errorf("waste totals = %d/%v", agg.WastedTokens, agg.WastedCostUSD)
	}
	if len(agg.ByKind) != 1 || agg.ByKind[0].Kind != model.RetryLoop || agg.ByKind[0].Count != 1 {
		t.Errorf("by kind = %+v", agg.ByKind)
	}
	if len(agg.ByAgent) != 1 || agg.ByAgent[0].Agent != model.AgentClaude {
		t.Errorf("by agent = %+v", agg.ByAgent)
	}
	if len(agg.TopSessions) != 1 || agg.TopSessions[0].Session.ID != "only" {
		t.Errorf("top sessions = %+v", agg.TopSessions)
	}
}

func TestBuildAggregate_RollupsAndTopSessions(t *testing.T) {
	cheap := analysisFixture("cheap", model.AgentCodex, 0.01,
		model.Finding{Kind: model.ToolFanout, WastedTokens: 100, WastedCostUSD: 0.001},
	)
	pricey := analysisFixture("pricey", model.AgentClaude, 0.90,
		model.Finding{Kind: model.RetryLoop, WastedTokens: 500, WastedCostUSD: 0.02},
		model.Finding{Kind: model.RetryLoop, WastedTokens: 300, WastedCostUSD: 0.01},
	)

	agg := BuildAggregate([]Analysis{cheap, pricey}, 1)
	if agg.Sessions != 2 || agg.Findings != 3 {
		t.Fatalf("aggregate = %+v", agg)
	}
	// Kinds come out in registry order regardless of arrival order.
	if len(agg.ByKind) != 2 || agg.ByKind[0].Kind != model.RetryLoop || agg.ByKind[1].Kind != model.ToolFanout {
		t.Errorf("by kind = %+v", agg.ByKind)
	}
	if agg.ByKind[0].Count != 2 || agg.ByKind[0].WastedTokens != 800 {
		t.Errorf("retry rollup = %+v", agg.ByKind[0])
	}
	// Agents ranked by spend.
	if agg.ByAgent[0].Agent != model.AgentClaude || agg.ByAgent[1].Agent != model.AgentCodex {
		t.Errorf("by agent = %+v", agg.ByAgent)
	}
	if len(agg.TopSessions) != 1 || agg.TopSessions[0].Session.ID != "pricey" {
		t.Errorf("top sessions = %+v", agg.TopSessions)
	}
}

func TestTopTurns_RanksByCost(t *testing.T) {
	catalog := pricing.New()
	s := &model.Session{
		ID: "s", Agent: model.AgentClaude, Model: "claude-sonnet-4-5",
		Turns: []model.Turn{
			{Index: 0, Role: model.RoleUser},
			{Index: 1, Role: model.RoleAssistant, Usage: model.Usage{Input: 100, Output: 10},
				Events: []model.Event{{Kind: model.EventToolCall, Call: &model.ToolCall{Name: "Read"}}}},
			{Index: 2, Role: model.RoleAssistant, Usage: model.Usage{Input: 90000, Output: 4000},
				Events: []model.Event{{Kind: model.EventText, Text: "big  reply\nwith newlines"}}},
			{Index: 3, Role: model.RoleAssistant, Usage: model.Usage{Input: 2000, Output: 200}},
		},
	}

	turns := TopTurns(s, catalog, 2)
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Turn != 2 || turns[1].Turn != 3 {
		t.Errorf("order = [%d %d], want [2 3]", turns[0].Turn, turns[1].Turn)
	}
	if turns[0].Preview != "big reply with newlines" {
		t.Errorf("preview = %q", turns[0].Preview)
	}
	rates, _ := catalog.Match("claude-sonnet-4-5")
	want := rates.Cost(model.Usage{Input: 90000, Output: 4000})
	if math.Abs(turns[0].CostUSD-want) > 1e-9 {
		t.Errorf("cost = %v, want %v", turns[0].CostUSD, want)
	}
}

func TestTopTurns_UsesRecordedCosts(t *testing.T) {
	s := &model.Session{
		ID: "s", Agent: model.AgentOpenCode, Model: "some-model",
		Turns: []model.Turn{
			{Index: 0, Role: model.RoleAssistant, Usage: model.Usage{Input: 10, Output: 1}, CostUSD: 0.01},
			{Index: 1, Role: model.RoleAssistant, Usage: model.Usage{Input: 10, Output: 1}, CostUSD: 0.05},
		},
	}
	turns := TopTurns(s, pricing.New(), 0)
	if len(turns) != 2 || turns[0].Turn != 1 || turns[0].CostUSD != 0.05 {
		t.Errorf("turns = %+v", turns)
	}
}

func TestCostBreakdown_SplitsByTokenKind(t *testing.T) {
	catalog := pricing.New()
	usage := model.Usage{Input: 2_000_000, Output: 1_000_000, CacheRead: 500_000, CacheWrite: 100_000}
	a := Analysis{Session: &model.Session{
		ID: "s", Agent: model.AgentClaude, Model: "claude-sonnet-4-5",
		Usage: usage,
		UsageByModel: map[string]model.Usage{
			"claude-sonnet-4-5":   usage,
			"totally-unknown-zzz": {Input: 1_000_000},
		},
	}}

	totals, rows := CostBreakdown([]Analysis{a}, catalog)

	rates, ok := catalog.Match("claude-sonnet-4-5")
	if !ok {
		t.Fatal("missing sonnet rates")
	}
	wantInput := 2.0 * rates.InputPerMTok
	if math.Abs(totals.InputCost-wantInput) > 1e-9 {
		t.Errorf("input cost = %v, want %v", totals.InputCost, wantInput)
	}
	wantTotal := rates.Cost(usage)
	if math.Abs(totals.TotalCost-wantTotal) > 1e-9 {
		t.Errorf("total = %v, want %v (unknown model must not contribute)", totals.TotalCost, wantTotal)
	}
	if len(rows) != 1 || rows[0].Model != "claude-sonnet-4-5" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestFilterByTime_DropsUndatedWhenBounded(t *testing.T) {
	dated := analysisFixture("dated", model.AgentClaude, 0)
	undated := analysisFixture("undated", model.AgentClaude, 0)
	undated.Session.StartedAt = time.Time{}
	all := []Analysis{dated, undated}

	if got := FilterByTime(all, time.Time{}, time.Time{}); len(got) != 2 {
		t.Errorf("unbounded filter dropped sessions: %d", len(got))
	}
	got := FilterByTime(all, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if len(got) != 1 || got[0].Session.ID != "dated" {
		t.Errorf("bounded filter = %+v", got)
	}
	// until is exclusive.
	until := dated.Session.StartedAt
	if got := FilterByTime(all, time.Time{}, until); len(got) != 0 {
		t.Errorf("until bound kept the boundary session: %+v", got)
	}
}
