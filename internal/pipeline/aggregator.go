package pipeline

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
)

// KindBreakdown accumulates findings of one kind.
type KindBreakdown struct {
	Kind          model.FindingKind `json:"kind"`
	Count         int               `json:"count"`
	WastedTokens  int64             `json:"wasted_tokens_estimate"`
	WastedCostUSD float64           `json:"wasted_cost_usd_estimate"`
}

// AgentBreakdown accumulates sessions of one agent.
type AgentBreakdown struct {
	Agent         model.Agent `json:"agent"`
	Sessions      int         `json:"sessions"`
	Findings      int         `json:"findings"`
	Usage         model.Usage `json:"usage"`
	CostUSD       float64     `json:"cost_usd"`
	WastedTokens  int64       `json:"wasted_tokens_estimate"`
	WastedCostUSD float64     `json:"wasted_cost_usd_estimate"`
}

// Aggregate summarizes a set of analyses. An aggregate over a single
// session carries exactly that session's totals.
type Aggregate struct {
	Sessions      int              `json:"sessions"`
	Turns         int              `json:"turns"`
	Findings      int              `json:"findings"`
	Usage         model.Usage      `json:"usage"`
	CostUSD       float64          `json:"cost_usd"`
	WastedTokens  int64            `json:"wasted_tokens_estimate"`
	WastedCostUSD float64          `json:"wasted_cost_usd_estimate"`
	ByKind        []KindBreakdown  `json:"by_kind,omitempty"`
	ByAgent       []AgentBreakdown `json:"by_agent,omitempty"`
	TopSessions   []Analysis       `json:"top_sessions,omitempty"`
}

// BuildAggregate folds analyses into totals, per-kind and per-agent
// breakdowns, and the topSessions most expensive sessions.
func BuildAggregate(analyses []Analysis, topSessions int) Aggregate {
	var agg Aggregate
	kinds := make(map[model.FindingKind]*KindBreakdown)
	agents := make(map[model.Agent]*AgentBreakdown)

	for _, a := range analyses {
		s := a.Session
		agg.Sessions++
		agg.Turns += len(s.Turns)
		agg.Usage.Add(s.TotalUsage())
		agg.CostUSD += s.TotalCostUSD()

		ab := agents[s.Agent]
		if ab == nil {
			ab = &AgentBreakdown{Agent: s.Agent}
			agents[s.Agent] = ab
		}
		ab.Sessions++
		ab.Usage.Add(s.TotalUsage())
		ab.CostUSD += s.TotalCostUSD()

		for _, f := range a.Findings {
			agg.Findings++
			agg.WastedTokens += f.WastedTokens
			agg.WastedCostUSD += f.WastedCostUSD
			ab.Findings++
			ab.WastedTokens += f.WastedTokens
			ab.WastedCostUSD += f.WastedCostUSD

			kb := kinds[f.Kind]
			if kb == nil {
				kb = &KindBreakdown{Kind: f.Kind}
				kinds[f.Kind] = kb
			}
			kb.Count++
			kb.WastedTokens += f.WastedTokens
			kb.WastedCostUSD += f.WastedCostUSD
		}
	}

	for _, kind := range model.FindingKinds() {
		if kb := kinds[kind]; kb != nil {
			agg.ByKind = append(agg.ByKind, *kb)
		}
	}
	for _, agent := range model.AllAgents() {
		if ab := agents[agent]; ab != nil {
			agg.ByAgent = append(agg.ByAgent, *ab)
		}
	}
	sort.SliceStable(agg.ByAgent, func(i, j int) bool {
		return agg.ByAgent[i].CostUSD > agg.ByAgent[j].CostUSD
	})

	top := make([]Analysis, len(analyses))
	copy(top, analyses)
	sort.SliceStable(top, func(i, j int) bool {
		ci, cj := top[i].Session.CostUSD, top[j].Session.CostUSD
		if ci != cj {
			return ci > cj
		}
		ti, tj := top[i].Session.Usage.Total(), top[j].Session.Usage.Total()
		if ti != tj {
			return ti > tj
		}
		return top[i].Session.ID < top[j].Session.ID
	})
	if topSessions > 0 && len(top) > topSessions {
		top = top[:topSessions]
	}
	agg.TopSessions = top

	return agg
}

// TurnCost ranks one turn by its attributed cost.
type TurnCost struct {
	Turn    int         `json:"turn"`
	Role    model.Role  `json:"role"`
	Usage   model.Usage `json:"usage"`
	CostUSD float64     `json:"cost_usd"`
	Preview string      `json:"preview,omitempty"`
}

// TopTurns returns the n most expensive turns of a session. Turns with
// recorded costs (OpenCode) use them; other agents price each turn's usage
// at catalog rates for the session's dominant model.
func TopTurns(s *model.Session, catalog *pricing.Catalog, n int) []TurnCost {
	var turns []TurnCost
	for i := range s.Turns {
		t := &s.Turns[i]
		cost := t.CostUSD
		if cost == 0 && catalog != nil && s.Agent != model.AgentOpenCode {
			cost = catalog.Price(s.Model, t.Usage)
		}
		if cost == 0 && t.Usage.IsZero() {
			continue
		}
		turns = append(turns, TurnCost{
			Turn:    i,
			Role:    t.Role,
			Usage:   t.Usage,
			CostUSD: cost,
			Preview: turnPreview(t),
		})
	}
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].CostUSD != turns[j].CostUSD {
			return turns[i].CostUSD > turns[j].CostUSD
		}
		ti, tj := turns[i].Usage.Total(), turns[j].Usage.Total()
		if ti != tj {
			return ti > tj
		}
		return turns[i].Turn < turns[j].Turn
	})
	if n > 0 && len(turns) > n {
		turns = turns[:n]
	}
	return turns
}

func turnPreview(t *model.Turn) string {
	for i := range t.Events {
		ev := &t.Events[i]
		switch {
		case ev.Kind == model.EventText && strings.TrimSpace(ev.Text) != "":
			return previewText(ev.Text)
		case ev.Kind == model.EventToolCall && ev.Call != nil:
			return "tool: " + ev.Call.Name
		case ev.Kind == model.EventToolResult && ev.Result != nil && ev.Result.ContentPreview != "":
			return previewText(ev.Result.ContentPreview)
		}
	}
	return ""
}

// previewText collapses whitespace and truncates to 80 bytes on a rune
// boundary.
func previewText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= 80 {
		return s
	}
	cut := 80
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// FilterByTime keeps analyses whose session started within [since, until).
// Sessions without a start time are dropped when either bound is set.
func FilterByTime(analyses []Analysis, since, until time.Time) []Analysis {
	if since.IsZero() && until.IsZero() {
		return analyses
	}
	var result []Analysis
	for _, a := range analyses {
		start := a.Session.StartedAt
		if start.IsZero() {
			continue
		}
		if !since.IsZero() && start.Before(since) {
			continue
		}
		if !until.IsZero() && !start.Before(until) {
			continue
		}
		result = append(result, a)
	}
	return result
}

// FilterByCWD keeps analyses whose working directory contains the substring.
func FilterByCWD(analyses []Analysis, cwd string) []Analysis {
	if cwd == "" {
		return analyses
	}
	var result []Analysis
	for _, a := range analyses {
		if containsIgnoreCase(a.Session.CWD, cwd) {
			result = append(result, a)
		}
	}
	return result
}

// FilterByModel keeps analyses where any observed model id contains the
// substring.
func FilterByModel(analyses []Analysis, modelFilter string) []Analysis {
	if modelFilter == "" {
		return analyses
	}
	var result []Analysis
	for _, a := range analyses {
		if sessionUsesModel(a.Session, modelFilter) {
			result = append(result, a)
		}
	}
	return result
}

func sessionUsesModel(s *model.Session, modelFilter string) bool {
	if containsIgnoreCase(s.Model, modelFilter) && s.Model != "" {
		return true
	}
	for _, m := range s.Models {
		if containsIgnoreCase(m, modelFilter) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
