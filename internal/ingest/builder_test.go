package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
)

func ts(sec int) time.Time {
	return time.Date(2026, 3, 14, 10, 0, sec, 0, time.UTC)
}

func TestGroupTurns_UserTextAlwaysSplits(t *testing.T) {
	turns := groupTurns([]model.Event{
		model.NewText(model.RoleUser, ts(0), "first"),
		model.NewText(model.RoleUser, ts(1), "second"),
	})
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Index != 0 || turns[1].Index != 1 {
		t.Errorf("indices = %d, %d", turns[0].Index, turns[1].Index)
	}
}

func TestGroupTurns_MetaAttachesToOpenTurn(t *testing.T) {
	turns := groupTurns([]model.Event{
		model.NewText(model.RoleAssistant, ts(0), "thinking"),
		model.NewMeta(model.RoleSystem, ts(1), "notice", nil),
		model.NewToolCall(ts(2), "c1", "read", nil),
	})
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if len(turns[0].Events) != 3 {
		t.Errorf("events = %d, want 3", len(turns[0].Events))
	}
}

func TestGroupTurns_SidechainStartMarkerSplits(t *testing.T) {
	side := func(sec int, text string) model.Event {
		ev := model.NewText(model.RoleAssistant, ts(sec), text)
		ev.Sidechain = true
		return ev
	}
	marker := func(sec int) model.Event {
		ev := model.NewMeta(model.RoleSystem, ts(sec), model.MetaSidechainStart, nil)
		ev.Sidechain = true
		return ev
	}
	turns := groupTurns([]model.Event{
		marker(0), side(1, "first child"),
		marker(2), side(3, "second child"),
	})
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	for i, turn := range turns {
		if turn.Role != model.RoleSidechain {
			t.Errorf("turn %d role = %v, want sidechain", i, turn.Role)
		}
	}
}

func TestGroupTurns_TurnTimestampIsFirstEventTime(t *testing.T) {
	turns := groupTurns([]model.Event{
		model.NewText(model.RoleUser, time.Time{}, "no clock"),
	})
	if !turns[0].Timestamp.IsZero() {
		t.Errorf("timestamp = %v, want zero", turns[0].Timestamp)
	}

	turns = groupTurns([]model.Event{
		{Kind: model.EventText, Role: model.RoleUser, Text: "late clock"},
		model.NewMeta(model.RoleSystem, ts(5), "x", nil),
	})
	if !turns[0].Timestamp.Equal(ts(5)) {
		t.Errorf("timestamp = %v, want first non-zero event time", turns[0].Timestamp)
	}
}

func TestBuild_DominantModelKeepsFirstSeenOnTie(t *testing.T) {
	raw := rawSession{id: "s", events: []model.Event{
		model.NewText(model.RoleUser, ts(0), "hi"),
		model.NewUsage(ts(1), model.Usage{Input: 90, Output: 10}, "model-a", nil),
		model.NewUsage(ts(2), model.Usage{Input: 150, Output: 50}, "model-b", nil),
	}}
	s, err := newTestParser().build(model.AgentClaude, "/tmp/s.jsonl", raw)
	if err != nil {
		t.Fatal(err)
	}
	if s.Model != "model-b" {
		t.Errorf("Model = %q, want the bigger model-b", s.Model)
	}
	if len(s.Models) != 2 || s.Models[0] != "model-a" {
		t.Errorf("Models = %v, want first-appearance order", s.Models)
	}
	if s.UsageByModel["model-a"].Input != 90 || s.UsageByModel["model-b"].Output != 50 {
		t.Errorf("UsageByModel = %v", s.UsageByModel)
	}
}

func TestBuild_IDFallsBackToFilename(t *testing.T) {
	raw := rawSession{events: []model.Event{model.NewText(model.RoleUser, ts(0), "hi")}}
	s, err := newTestParser().build(model.AgentPi, "/traces/deadbeef-cafe.jsonl", raw)
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != "deadbeef-cafe" {
		t.Errorf("ID = %q", s.ID)
	}
}

func TestBuild_DanglingResultWarns(t *testing.T) {
	raw := rawSession{id: "s", events: []model.Event{
		model.NewText(model.RoleUser, ts(0), "hi"),
		model.NewToolResult(model.RoleToolResult, ts(1), "never-called", false, "out"),
	}}
	s, err := newTestParser().build(model.AgentClaude, "/tmp/s.jsonl", raw)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, w := range s.Warnings {
		if strings.Contains(w.Message, "never-called") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want dangling result notice", s.Warnings)
	}
}

func TestBuild_VendorPricedIgnoresCatalog(t *testing.T) {
	raw := rawSession{id: "s", vendorPriced: true, events: []model.Event{
		model.NewText(model.RoleUser, ts(0), "hi"),
		// A model the catalog prices; vendorPriced must not consult it.
		model.NewUsage(ts(1), model.Usage{Input: 1_000_000}, "claude-sonnet-4-5", nil),
	}}
	s, err := newTestParser().build(model.AgentOpenCode, "/tmp/s.json", raw)
	if err != nil {
		t.Fatal(err)
	}
	if s.CostUSD != 0 {
		t.Errorf("CostUSD = %v, want 0 without a recorded cost", s.CostUSD)
	}
}

func TestBuild_SessionTimesPreferVendorRecord(t *testing.T) {
	raw := rawSession{
		id:        "s",
		startedAt: ts(0),
		endedAt:   ts(100),
		events: []model.Event{
			model.NewText(model.RoleUser, ts(10), "hi"),
			model.NewText(model.RoleAssistant, ts(20), "yo"),
		},
	}
	s, err := newTestParser().build(model.AgentOpenCode, "/tmp/s.json", raw)
	if err != nil {
		t.Fatal(err)
	}
	if !s.StartedAt.Equal(ts(0)) || !s.EndedAt.Equal(ts(100)) {
		t.Errorf("range = %v..%v, want vendor record to win", s.StartedAt, s.EndedAt)
	}
	if s.Duration() != 100*time.Second {
		t.Errorf("Duration = %v", s.Duration())
	}
}

func TestBuild_EmptyEventsIsError(t *testing.T) {
	_, err := newTestParser().build(model.AgentClaude, "/tmp/s.jsonl", rawSession{id: "s"})
	ie, ok := err.(*Error)
	if !ok || ie.Kind != ErrEmptySession {
		t.Errorf("err = %v, want empty session", err)
	}
}
