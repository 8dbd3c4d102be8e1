package ingest

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
)

func writePiSession(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "7c1d2e3f-0000-4000-8000-000000000042.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePi_SessionShape(t *testing.T) {
	path := writePiSession(t,
		`{"kind":"user","ts":1760000000000,"session":"pi-1","dir":"/w","msg":{"text":"hi"}}`,
		`{"kind":"assistant","ts":1760000001000,"msg":{"text":"reading","modelId":"claude-sonnet-4-5","stats":{"in":1000,"out":50,"cacheRead":200,"cacheWrite":10}}}`,
		`{"kind":"tool-call","ts":1760000002000,"id":"c1","tool":"read","params":{"path":"a.go"}}`,
		`{"kind":"tool-output","ts":1760000003000,"callId":"c1","failed":true,"output":"no such file"}`,
	)

	catalog := pricing.New()
	s, err := NewParser(catalog).Parse(context.Background(), model.AgentPi, path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.ID != "pi-1" || s.CWD != "/w" {
		t.Errorf("ID = %q, CWD = %q", s.ID, s.CWD)
	}

	// Tool calls issued after assistant text join the assistant turn.
	want := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleToolResult}
	if got := roleSequence(s); !reflect.DeepEqual(got, want) {
		t.Errorf("turn roles = %v, want %v", got, want)
	}

	if s.Usage != (model.Usage{Input: 1000, Output: 50, CacheRead: 200, CacheWrite: 10}) {
		t.Errorf("usage = %+v", s.Usage)
	}
	wantCost := catalog.Price("claude-sonnet-4-5", s.Usage)
	if math.Abs(s.CostUSD-wantCost) > 1e-9 {
		t.Errorf("CostUSD = %v, want %v", s.CostUSD, wantCost)
	}

	last := s.Turns[2].Events[0]
	if last.Result == nil || !last.Result.IsError || last.Result.ContentPreview != "no such file" {
		t.Errorf("tool output event = %+v", last)
	}
}

func TestParsePi_SubtaskBecomesSidechain(t *testing.T) {
	path := writePiSession(t,
		`{"kind":"user","ts":1760000000000,"session":"pi-2","msg":{"text":"main task"}}`,
		`{"kind":"assistant","ts":1760000001000,"msg":{"text":"spawning","modelId":"claude-sonnet-4-5","stats":{"in":100,"out":10,"cacheRead":0,"cacheWrite":0}}}`,
		`{"kind":"assistant","ts":1760000002000,"subtask":true,"msg":{"text":"subtask work","modelId":"claude-sonnet-4-5","stats":{"in":9000,"out":400,"cacheRead":0,"cacheWrite":0}}}`,
	)

	s, err := newTestParser().Parse(context.Background(), model.AgentPi, path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var side model.Usage
	var sidechainTurns int
	for _, turn := range s.Turns {
		if turn.Role == model.RoleSidechain {
			sidechainTurns++
			side.Add(turn.Usage)
		}
	}
	if sidechainTurns != 1 {
		t.Fatalf("sidechain turns = %d, want 1", sidechainTurns)
	}
	if side.Input != 9000 {
		t.Errorf("sidechain input = %d, want 9000", side.Input)
	}
	if s.Usage.Input != 9100 {
		t.Errorf("session input = %d, want 9100", s.Usage.Input)
	}
}

func TestParsePi_UnknownKindsAreCarriedNotCounted(t *testing.T) {
	path := writePiSession(t,
		`{"kind":"telemetry","ts":1760000000000,"session":"pi-3"}`,
		`{"kind":"heartbeat","ts":1760000001000}`,
	)
	_, err := newTestParser().Parse(context.Background(), model.AgentPi, path)
	var ie *Error
	if !errors.As(err, &ie) || ie.Kind != ErrSchemaMismatch {
		t.Errorf("err = %v, want schema mismatch when nothing is recognized", err)
	}

	// A single recognized entry makes the file parse; unknown kinds stay as
	// meta events on the record.
	path = writePiSession(t,
		`{"kind":"telemetry","ts":1760000000000,"session":"pi-3"}`,
		`{"kind":"user","ts":1760000001000,"session":"pi-3","msg":{"text":"hello"}}`,
	)
	s, err := newTestParser().Parse(context.Background(), model.AgentPi, path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var metas int
	for _, turn := range s.Turns {
		for _, ev := range turn.Events {
			if ev.Kind == model.EventMeta && ev.Meta.Kind == "telemetry" {
				metas++
			}
		}
	}
	if metas != 1 {
		t.Errorf("telemetry meta events = %d, want 1", metas)
	}
}
