package detect

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
)

func testSession(agent model.Agent, turns ...model.Turn) *model.Session {
	s := &model.Session{ID: "sess-under-test", Agent: agent, Model: "claude-sonnet-4-5", Turns: turns}
	for i := range s.Turns {
		s.Turns[i].Index = i
		s.Usage.Add(s.Turns[i].Usage)
		s.CostUSD += s.Turns[i].CostUSD
	}
	return s
}

func userTurn(text string) model.Turn {
	return model.Turn{Role: model.RoleUser, Events: []model.Event{
		{Kind: model.EventText, Role: model.RoleUser, Text: text},
	}}
}

func assistantTurn(u model.Usage, events ...model.Event) model.Turn {
	return model.Turn{Role: model.RoleAssistant, Usage: u, Events: events}
}

func sidechainTurn(u model.Usage) model.Turn {
	ev := model.Event{Kind: model.EventText, Role: model.RoleAssistant, Text: "delegated", Sidechain: true}
	return model.Turn{Role: model.RoleSidechain, Usage: u, Events: []model.Event{ev}}
}

func resultTurn(u model.Usage, callID string, isError bool, preview string) model.Turn {
	ev := model.Event{Kind: model.EventToolResult, Role: model.RoleToolResult,
		Result: &model.ToolResult{CallID: callID, IsError: isError, ContentPreview: preview}}
	return model.Turn{Role: model.RoleToolResult, Usage: u, Events: []model.Event{ev}}
}

func call(id, name, args string) model.Event {
	return model.Event{Kind: model.EventToolCall, Role: model.RoleAssistant,
		Call: &model.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}}
}

func runDefault(s *model.Session) []model.Finding {
	return Run(s, Options{Profile: model.ProfileCost, Catalog: pricing.New()})
}

func findingsOf(findings []model.Finding, kind model.FindingKind) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func checkEvidenceValid(t *testing.T, s *model.Session, findings []model.Finding) {
	t.Helper()
	for _, f := range findings {
		if f.SessionID != s.ID {
			t.Errorf("%s: SessionID = %q, want %q", f.Kind, f.SessionID, s.ID)
		}
		for _, e := range f.EvidenceTurns {
			if e < 0 || e >= len(s.Turns) {
				t.Errorf("%s: evidence turn %d out of range", f.Kind, e)
			}
		}
	}
}

func TestRetryLoop_IdenticalArguments(t *testing.T) {
	s := testSession(model.AgentClaude,
		userTurn("read that file"),
		assistantTurn(model.Usage{Input: 1200, Output: 80}, call("t1", "Read", `{"file_path":"a"}`)),
		resultTurn(model.Usage{Input: 500, Output: 300}, "t1", true, "ENOENT"),
		assistantTurn(model.Usage{Input: 1300, Output: 90}, call("t2", "Read", `{"file_path":"a"}`)),
		resultTurn(model.Usage{}, "t2", false, "package main"),
	)

	findings := runDefault(s)
	checkEvidenceValid(t, s, findings)

	retries := findingsOf(findings, model.RetryLoop)
	if len(retries) != 1 {
		t.Fatalf("retry findings = %d, want 1", len(retries))
	}
	f := retries[0]
	if !reflect.DeepEqual(f.EvidenceTurns, []int{1, 3}) {
		t.Errorf("evidence = %v, want [1 3]", f.EvidenceTurns)
	}
	if f.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", f.Confidence)
	}
	// The waste is the turn between the failed call and its retry.
	if f.WastedTokens != 800 {
		t.Errorf("wasted tokens = %d, want 800", f.WastedTokens)
	}
	if f.WastedCostUSD <= 0 {
		t.Errorf("wasted cost = %v, want > 0", f.WastedCostUSD)
	}
}

func TestRetryLoop_DifferentArgumentsNeverFire(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t1", "Read", `{"file_path":"a"}`)),
		resultTurn(model.Usage{}, "t1", true, "ENOENT"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t2", "Read", `{"file_path":"b"}`)),
	)
	if got := findingsOf(runDefault(s), model.RetryLoop); len(got) != 0 {
		t.Errorf("retry fired on different arguments: %+v", got)
	}
}

func TestRetryLoop_KeyOrderDoesNotMatter(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t1", "Grep", `{"pattern":"x", "glob":"*.go"}`)),
		resultTurn(model.Usage{}, "t1", true, "bad flag"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t2", "Grep", `{"glob":"*.go","pattern":"x"}`)),
	)
	retries := findingsOf(runDefault(s), model.RetryLoop)
	if len(retries) != 1 || retries[0].Confidence != 0.9 {
		t.Fatalf("retries = %+v, want one exact-equal finding", retries)
	}
}

func TestRetryLoop_TransientFieldsNeedLenientMode(t *testing.T) {
	build := func() *model.Session {
		return testSession(model.AgentClaude,
			assistantTurn(model.Usage{Input: 100, Output: 10}, call("t1", "fetch", `{"url":"http://x","request_id":"r1"}`)),
			resultTurn(model.Usage{}, "t1", true, "timeout"),
			assistantTurn(model.Usage{Input: 100, Output: 10}, call("t2", "fetch", `{"url":"http://x","request_id":"r2"}`)),
		)
	}

	strict := Run(build(), Options{Catalog: pricing.New()})
	if got := findingsOf(strict, model.RetryLoop); len(got) != 0 {
		t.Errorf("strict mode matched transient-differing args: %+v", got)
	}

	lenient := Run(build(), Options{Lenient: true, Catalog: pricing.New()})
	got := findingsOf(lenient, model.RetryLoop)
	if len(got) != 1 || got[0].Confidence != 0.7 {
		t.Fatalf("lenient findings = %+v, want one at 0.7", got)
	}
}

func TestRetryLoop_WindowIsSameOrNextAssistantTurn(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t1", "Read", `{"file_path":"a"}`)),
		resultTurn(model.Usage{}, "t1", true, "ENOENT"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t2", "Grep", `{"pattern":"x"}`)),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t3", "Read", `{"file_path":"a"}`)),
	)
	if got := findingsOf(runDefault(s), model.RetryLoop); len(got) != 0 {
		t.Errorf("retry matched beyond the next assistant turn: %+v", got)
	}
}

func TestEditCascade_ConsecutiveFailures(t *testing.T) {
	s := testSession(model.AgentClaude,
		userTurn("fix it"),
		assistantTurn(model.Usage{Input: 900, Output: 50}, call("e1", "Edit", `{"file_path":"main.go","old_string":"a"}`)),
		resultTurn(model.Usage{}, "e1", true, "old_string not found"),
		assistantTurn(model.Usage{Input: 950, Output: 60}, call("e2", "Edit", `{"file_path":"main.go","old_string":"b"}`)),
		resultTurn(model.Usage{}, "e2", true, "old_string not found"),
		assistantTurn(model.Usage{Input: 980, Output: 70}, call("e3", "Edit", `{"file_path":"main.go","old_string":"c"}`)),
		resultTurn(model.Usage{}, "e3", false, "ok"),
	)

	findings := runDefault(s)
	checkEvidenceValid(t, s, findings)
	cascades := findingsOf(findings, model.EditCascade)
	if len(cascades) != 1 {
		t.Fatalf("cascades = %d, want 1", len(cascades))
	}
	f := cascades[0]
	if !reflect.DeepEqual(f.EvidenceTurns, []int{1, 3}) {
		t.Errorf("evidence = %v, want the two failing edit turns", f.EvidenceTurns)
	}
	if f.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", f.Confidence)
	}
	// Everything after the first failing edit through the last one.
	if want := int64(0 + 950 + 60); f.WastedTokens != want {
		t.Errorf("wasted tokens = %d, want %d", f.WastedTokens, want)
	}
}

func TestEditCascade_SuccessBreaksStreak(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("e1", "Edit", `{"file_path":"m.go"}`)),
		resultTurn(model.Usage{}, "e1", true, "fail"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("e2", "Edit", `{"file_path":"m.go"}`)),
		resultTurn(model.Usage{}, "e2", false, "ok"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("e3", "Edit", `{"file_path":"m.go"}`)),
		resultTurn(model.Usage{}, "e3", true, "fail"),
	)
	if got := findingsOf(runDefault(s), model.EditCascade); len(got) != 0 {
		t.Errorf("cascade fired across a successful edit: %+v", got)
	}
}

func TestToolFanout_FivePriorBased(t *testing.T) {
	s := testSession(model.AgentClaude,
		userTurn("scan"),
		assistantTurn(model.Usage{Input: 2000, Output: 100},
			call("r1", "Read", `{"file_path":"a"}`),
			call("r2", "Read", `{"file_path":"b"}`),
			call("r3", "Read", `{"file_path":"c"}`),
			call("r4", "Read", `{"file_path":"d"}`),
			call("r5", "Read", `{"file_path":"e"}`),
		),
	)

	fanouts := findingsOf(runDefault(s), model.ToolFanout)
	if len(fanouts) != 1 {
		t.Fatalf("fanouts = %d, want 1", len(fanouts))
	}
	f := fanouts[0]
	if !reflect.DeepEqual(f.EvidenceTurns, []int{1}) {
		t.Errorf("evidence = %v, want [1]", f.EvidenceTurns)
	}
	if math.Abs(f.Confidence-0.65) > 1e-9 {
		t.Errorf("confidence = %v, want 0.65", f.Confidence)
	}
	// No single-call turn for Read exists, so the 200-token prior applies.
	if f.WastedTokens != 4*200 {
		t.Errorf("wasted tokens = %d, want 800", f.WastedTokens)
	}
}

func TestToolFanout_MedianOverheadFromSingleCallTurns(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("s1", "Grep", `{"pattern":"a"}`)),
		assistantTurn(model.Usage{Input: 300, Output: 10}, call("s2", "Grep", `{"pattern":"b"}`)),
		assistantTurn(model.Usage{Input: 500, Output: 10}, call("s3", "Grep", `{"pattern":"c"}`)),
		assistantTurn(model.Usage{Input: 900, Output: 50},
			call("g1", "Grep", `{"pattern":"d"}`),
			call("g2", "Grep", `{"pattern":"e"}`),
			call("g3", "Grep", `{"pattern":"f"}`),
			call("g4", "Grep", `{"pattern":"g"}`),
		),
	)

	fanouts := findingsOf(runDefault(s), model.ToolFanout)
	if len(fanouts) != 1 {
		t.Fatalf("fanouts = %d, want 1", len(fanouts))
	}
	// Median of single-call inputs {100, 300, 500} is 300.
	if want := int64(3 * 300); fanouts[0].WastedTokens != want {
		t.Errorf("wasted tokens = %d, want %d", fanouts[0].WastedTokens, want)
	}
	if math.Abs(fanouts[0].Confidence-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", fanouts[0].Confidence)
	}
}

func TestRedundantReread_ThreeReadsNoWrite(t *testing.T) {
	s := testSession(model.AgentClaude,
		userTurn("check foo"),
		assistantTurn(model.Usage{Input: 500, Output: 20}, call("r1", "Read", `{"file_path":"foo.py"}`)),
		userTurn("and?"),
		assistantTurn(model.Usage{Input: 600, Output: 40}, call("r2", "Read", `{"file_path":"foo.py"}`)),
		userTurn("hm"),
		assistantTurn(model.Usage{Input: 700, Output: 60}, call("r3", "Read", `{"file_path":"foo.py"}`)),
	)

	findings := runDefault(s)
	checkEvidenceValid(t, s, findings)
	rereads := findingsOf(findings, model.RedundantReread)
	if len(rereads) != 1 {
		t.Fatalf("rereads = %d, want 1", len(rereads))
	}
	f := rereads[0]
	if !reflect.DeepEqual(f.EvidenceTurns, []int{1, 3, 5}) {
		t.Errorf("evidence = %v, want [1 3 5]", f.EvidenceTurns)
	}
	// Output of the second and third read turns.
	if f.WastedTokens != 40+60 {
		t.Errorf("wasted tokens = %d, want 100", f.WastedTokens)
	}
	if f.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", f.Confidence)
	}
}

func TestRedundantReread_WriteResetsStreak(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("r1", "Read", `{"file_path":"foo.py"}`)),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("r2", "Read", `{"file_path":"foo.py"}`)),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("w1", "Write", `{"file_path":"foo.py","content":"x"}`)),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("r3", "Read", `{"file_path":"foo.py"}`)),
	)
	if got := findingsOf(runDefault(s), model.RedundantReread); len(got) != 0 {
		t.Errorf("reread fired across a write: %+v", got)
	}
}

func TestContextBloat_SpikeAboveDistribution(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 1000, Output: 10}),
		assistantTurn(model.Usage{Input: 1100, Output: 10}),
		assistantTurn(model.Usage{Input: 900, Output: 10}),
		assistantTurn(model.Usage{Input: 12000, Output: 10}),
		assistantTurn(model.Usage{Input: 1050, Output: 10}),
	)

	bloats := findingsOf(runDefault(s), model.ContextBloat)
	if len(bloats) != 1 {
		t.Fatalf("bloats = %d, want 1", len(bloats))
	}
	f := bloats[0]
	if !reflect.DeepEqual(f.EvidenceTurns, []int{3}) {
		t.Errorf("evidence = %v, want [3]", f.EvidenceTurns)
	}
	if f.WastedTokens != 12000-3210 {
		t.Errorf("wasted tokens = %d, want 8790", f.WastedTokens)
	}
	wantConf := math.Min(1, 12000.0/(3*3210.0)*0.7)
	if math.Abs(f.Confidence-wantConf) > 1e-9 {
		t.Errorf("confidence = %v, want %v", f.Confidence, wantConf)
	}
}

func TestContextBloat_NeedsThreeSamples(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}),
		assistantTurn(model.Usage{Input: 50000, Output: 10}),
	)
	if got := findingsOf(runDefault(s), model.ContextBloat); len(got) != 0 {
		t.Errorf("bloat fired with two samples: %+v", got)
	}
}

func TestErrorRepromptChurn_SameClassThreeTimes(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 800, Output: 40}, call("c1", "shell", `{"command":"make"}`)),
		resultTurn(model.Usage{}, "c1", true, "Error: undefined symbol main"),
		assistantTurn(model.Usage{Input: 850, Output: 50}, call("c2", "shell", `{"command":"make"}`)),
		resultTurn(model.Usage{}, "c2", true, "Error: undefined symbol main"),
		assistantTurn(model.Usage{Input: 900, Output: 60}, call("c3", "shell", `{"command":"make"}`)),
		resultTurn(model.Usage{}, "c3", true, "Error: undefined symbol main"),
	)

	churns := findingsOf(runDefault(s), model.ErrorRepromptChurn)
	if len(churns) != 1 {
		t.Fatalf("churns = %d, want 1", len(churns))
	}
	f := churns[0]
	if !reflect.DeepEqual(f.EvidenceTurns, []int{0, 2, 4}) {
		t.Errorf("evidence = %v, want the three assistant turns", f.EvidenceTurns)
	}
	// Everything after the first churning turn.
	if want := int64(850 + 50 + 900 + 60); f.WastedTokens != want {
		t.Errorf("wasted tokens = %d, want %d", f.WastedTokens, want)
	}
	if f.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", f.Confidence)
	}
}

func TestErrorRepromptChurn_ClassChangeBreaksChain(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("c1", "shell", `{"command":"make"}`)),
		resultTurn(model.Usage{}, "c1", true, "Error: undefined symbol main"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("c2", "shell", `{"command":"make"}`)),
		resultTurn(model.Usage{}, "c2", true, "Error: missing header foo.h"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("c3", "shell", `{"command":"make"}`)),
		resultTurn(model.Usage{}, "c3", true, "Error: undefined symbol main"),
	)
	if got := findingsOf(runDefault(s), model.ErrorRepromptChurn); len(got) != 0 {
		t.Errorf("churn fired across a class change: %+v", got)
	}
}

func TestSubagentOverhead_Above30Percent(t *testing.T) {
	s := testSession(model.AgentClaude,
		userTurn("go"),
		assistantTurn(model.Usage{Input: 500, Output: 100}),
		sidechainTurn(model.Usage{Input: 350, Output: 50}),
	)

	overheads := findingsOf(runDefault(s), model.SubagentOverhead)
	if len(overheads) != 1 {
		t.Fatalf("overheads = %d, want 1", len(overheads))
	}
	f := overheads[0]
	if f.WastedTokens != 400 {
		t.Errorf("wasted tokens = %d, want the sidechain total", f.WastedTokens)
	}
	if f.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", f.Confidence)
	}
	if !reflect.DeepEqual(f.EvidenceTurns, []int{2}) {
		t.Errorf("evidence = %v, want [2]", f.EvidenceTurns)
	}
}

func TestSubagentOverhead_BelowThresholdSilent(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 800, Output: 100}),
		sidechainTurn(model.Usage{Input: 100, Output: 0}),
	)
	if got := findingsOf(runDefault(s), model.SubagentOverhead); len(got) != 0 {
		t.Errorf("overhead fired below 30%%: %+v", got)
	}
}

func TestRun_TokenlessSessionDegradesStructurally(t *testing.T) {
	zero := model.Usage{}
	s := testSession(model.AgentCodex,
		userTurn("go"),
		assistantTurn(zero, call("t1", "shell", `{"command":"make"}`)),
		resultTurn(zero, "t1", true, "Error: make failed"),
		assistantTurn(zero, call("t2", "shell", `{"command":"make"}`)),
		resultTurn(zero, "t2", false, "built"),
		assistantTurn(zero,
			call("g1", "grep", `{"pattern":"a"}`),
			call("g2", "grep", `{"pattern":"b"}`),
			call("g3", "grep", `{"pattern":"c"}`),
			call("g4", "grep", `{"pattern":"d"}`),
		),
		assistantTurn(zero, call("r1", "read", `{"path":"x.go"}`)),
		assistantTurn(zero, call("r2", "read", `{"path":"x.go"}`)),
		assistantTurn(zero, call("r3", "read", `{"path":"x.go"}`)),
	)

	findings := runDefault(s)
	checkEvidenceValid(t, s, findings)
	if len(findings) == 0 {
		t.Fatal("expected structural findings")
	}
	allowed := map[model.FindingKind]bool{
		model.RetryLoop:       true,
		model.EditCascade:     true,
		model.ToolFanout:      true,
		model.RedundantReread: true,
	}
	for _, f := range findings {
		if !allowed[f.Kind] {
			t.Errorf("%s fired without token counts", f.Kind)
		}
		if f.WastedTokens != 0 {
			t.Errorf("%s wasted tokens = %d, want 0", f.Kind, f.WastedTokens)
		}
		if f.Confidence > 0.5 {
			t.Errorf("%s confidence = %v, want <= 0.5", f.Kind, f.Confidence)
		}
		if f.WastedCostUSD != 0 {
			t.Errorf("%s wasted cost = %v, want 0", f.Kind, f.WastedCostUSD)
		}
	}
	if got := findingsOf(findings, model.RetryLoop); len(got) != 1 {
		t.Errorf("retry findings = %d, want 1", len(got))
	}
	if got := findingsOf(findings, model.ToolFanout); len(got) != 1 {
		t.Errorf("fanout findings = %d, want 1", len(got))
	}
	if got := findingsOf(findings, model.RedundantReread); len(got) != 1 {
		t.Errorf("reread findings = %d, want 1", len(got))
	}
}

func TestRun_OpenCodeCostsComeFromEvidenceTurns(t *testing.T) {
	s := testSession(model.AgentOpenCode,
		userTurn("check foo"),
		assistantTurn(model.Usage{Input: 500, Output: 20}, call("r1", "read", `{"path":"foo.py"}`)),
		userTurn("and?"),
		assistantTurn(model.Usage{Input: 600, Output: 40}, call("r2", "read", `{"path":"foo.py"}`)),
		userTurn("hm"),
		assistantTurn(model.Usage{Input: 700, Output: 60}, call("r3", "read", `{"path":"foo.py"}`)),
	)
	s.Turns[1].CostUSD = 0.01
	s.Turns[3].CostUSD = 0.02
	s.Turns[5].CostUSD = 0.03

	rereads := findingsOf(runDefault(s), model.RedundantReread)
	if len(rereads) != 1 {
		t.Fatalf("rereads = %d, want 1", len(rereads))
	}
	if math.Abs(rereads[0].WastedCostUSD-0.06) > 1e-9 {
		t.Errorf("wasted cost = %v, want the summed evidence costs 0.06", rereads[0].WastedCostUSD)
	}
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	build := func() *model.Session {
		return testSession(model.AgentClaude,
			userTurn("go"),
			assistantTurn(model.Usage{Input: 1000, Output: 100},
				call("a1", "Read", `{"file_path":"a"}`),
				call("a2", "Read", `{"file_path":"b"}`),
				call("a3", "Read", `{"file_path":"c"}`),
				call("a4", "Read", `{"file_path":"d"}`),
				call("g1", "Grep", `{"pattern":"p1"}`),
				call("g2", "Grep", `{"pattern":"p2"}`),
				call("g3", "Grep", `{"pattern":"p3"}`),
				call("g4", "Grep", `{"pattern":"p4"}`),
			),
			assistantTurn(model.Usage{Input: 1100, Output: 120}, call("r1", "Read", `{"file_path":"a"}`)),
			assistantTurn(model.Usage{Input: 1200, Output: 140}, call("r2", "Read", `{"file_path":"a"}`)),
		)
	}
	a := runDefault(build())
	b := runDefault(build())
	if !reflect.DeepEqual(a, b) {
		t.Error("identical sessions produced different findings")
	}
}

func TestRun_ProfilesReorderOnly(t *testing.T) {
	build := func() *model.Session {
		s := testSession(model.AgentClaude,
			// Retry pair with a costly turn between: high waste, 2 evidence.
			assistantTurn(model.Usage{Input: 100, Output: 10}, call("t1", "shell", `{"command":"make"}`)),
			resultTurn(model.Usage{Input: 40000, Output: 2000}, "t1", true, "Error: make failed"),
			assistantTurn(model.Usage{Input: 100, Output: 10}, call("t2", "shell", `{"command":"make"}`)),
			// Reread with three evidence turns and modest waste.
			assistantTurn(model.Usage{Input: 100, Output: 30}, call("r1", "Read", `{"file_path":"foo.py"}`)),
			assistantTurn(model.Usage{Input: 100, Output: 30}, call("r2", "Read", `{"file_path":"foo.py"}`)),
			assistantTurn(model.Usage{Input: 100, Output: 30}, call("r3", "Read", `{"file_path":"foo.py"}`)),
		)
		return s
	}

	cost := Run(build(), Options{Profile: model.ProfileCost, Catalog: pricing.New()})
	if cost[0].Kind != model.RetryLoop {
		t.Errorf("cost profile first = %s, want RETRY_LOOP (largest waste)", cost[0].Kind)
	}

	latency := Run(build(), Options{Profile: model.ProfileLatency, Catalog: pricing.New()})
	if latency[0].Kind != model.RedundantReread {
		t.Errorf("latency profile first = %s, want REDUNDANT_REREAD (most evidence)", latency[0].Kind)
	}

	reliability := Run(build(), Options{Profile: model.ProfileReliability, Catalog: pricing.New()})
	if reliability[0].Kind != model.RetryLoop {
		t.Errorf("reliability profile first = %s, want RETRY_LOOP", reliability[0].Kind)
	}

	// Same finding set under every profile.
	kindCount := func(fs []model.Finding) map[model.FindingKind]int {
		m := make(map[model.FindingKind]int)
		for _, f := range fs {
			m[f.Kind]++
		}
		return m
	}
	if !reflect.DeepEqual(kindCount(cost), kindCount(latency)) || !reflect.DeepEqual(kindCount(cost), kindCount(reliability)) {
		t.Error("profiles changed which findings fire")
	}
}

func TestRun_DisabledKindsAreSkipped(t *testing.T) {
	s := testSession(model.AgentClaude,
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t1", "Read", `{"file_path":"a"}`)),
		resultTurn(model.Usage{}, "t1", true, "ENOENT"),
		assistantTurn(model.Usage{Input: 100, Output: 10}, call("t2", "Read", `{"file_path":"a"}`)),
	)
	findings := Run(s, Options{
		Disabled: map[model.FindingKind]bool{model.RetryLoop: true},
		Catalog:  pricing.New(),
	})
	if got := findingsOf(findings, model.RetryLoop); len(got) != 0 {
		t.Errorf("disabled detector still fired: %+v", got)
	}
}
