package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/0xKoda/tracekit/internal/model"
)

func writeKodoSession(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "9a8b7c6d-0000-4000-8000-00000000cafe.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseKodo_SessionShape(t *testing.T) {
	path := writeKodoSession(t,
		`{"event_type":"message.user","session_id":"kd-1","workdir":"/proj","created_at":"2026-03-14T09:00:00Z","payload":{"text":"add a flag"}}`,
		`{"event_type":"message.assistant","created_at":"2026-03-14T09:00:03Z","payload":{"text":"on it","model":"claude-sonnet-4-5","token_usage":{"prompt_tokens":800,"completion_tokens":60,"cache_read_tokens":120,"cache_creation_tokens":40}}}`,
		`{"event_type":"tool.invocation","created_at":"2026-03-14T09:00:04Z","payload":{"tool_invocation":{"invocation_id":"inv-1","tool_name":"edit","arguments":{"file_path":"main.go"}}}}`,
		`{"event_type":"tool.response","created_at":"2026-03-14T09:00:05Z","payload":{"tool_response":{"invocation_id":"inv-1","is_failure":false,"body":"applied"}}}`,
	)

	s, err := newTestParser().Parse(context.Background(), model.AgentKodo, path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.ID != "kd-1" || s.CWD != "/proj" {
		t.Errorf("ID = %q, CWD = %q", s.ID, s.CWD)
	}

	want := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleToolResult}
	if got := roleSequence(s); !reflect.DeepEqual(got, want) {
		t.Errorf("turn roles = %v, want %v", got, want)
	}

	if s.Usage != (model.Usage{Input: 800, Output: 60, CacheRead: 120, CacheWrite: 40}) {
		t.Errorf("usage = %+v", s.Usage)
	}
	if s.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q", s.Model)
	}

	var call *model.ToolCall
	for _, turn := range s.Turns {
		for _, ev := range turn.Events {
			if ev.Kind == model.EventToolCall {
				call = ev.Call
			}
		}
	}
	if call == nil || call.Name != "edit" || call.ID != "inv-1" {
		t.Errorf("call = %+v", call)
	}
}

func TestParseKodo_SubagentEventsBecomeSidechain(t *testing.T) {
	path := writeKodoSession(t,
		`{"event_type":"message.user","session_id":"kd-2","created_at":"2026-03-14T09:00:00Z","payload":{"text":"go"}}`,
		`{"event_type":"message.assistant","created_at":"2026-03-14T09:00:01Z","is_subagent":true,"payload":{"text":"child working","model":"claude-haiku-4-5","token_usage":{"prompt_tokens":7000,"completion_tokens":300,"cache_read_tokens":0,"cache_creation_tokens":0}}}`,
	)

	s, err := newTestParser().Parse(context.Background(), model.AgentKodo, path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var sidechain int
	for _, turn := range s.Turns {
		if turn.Role == model.RoleSidechain {
			sidechain++
			if turn.Usage.Input != 7000 {
				t.Errorf("sidechain input = %d", turn.Usage.Input)
			}
		}
	}
	if sidechain != 1 {
		t.Errorf("sidechain turns = %d, want 1", sidechain)
	}
}

func TestParseKodo_MissingToolPayloadWarns(t *testing.T) {
	path := writeKodoSession(t,
		`{"event_type":"message.user","session_id":"kd-3","created_at":"2026-03-14T09:00:00Z","payload":{"text":"hi"}}`,
		`{"event_type":"tool.invocation","created_at":"2026-03-14T09:00:01Z"}`,
	)

	s, err := newTestParser().Parse(context.Background(), model.AgentKodo, path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Warnings) != 1 || !strings.Contains(s.Warnings[0].Message, "tool.invocation") {
		t.Errorf("warnings = %v", s.Warnings)
	}
}

func TestParseKodo_SchemaMismatch(t *testing.T) {
	path := writeKodoSession(t, `{"some":"thing"}`, `{"other":"thing"}`)
	_, err := newTestParser().Parse(context.Background(), model.AgentKodo, path)
	var ie *Error
	if !errors.As(err, &ie) || ie.Kind != ErrSchemaMismatch {
		t.Errorf("err = %v, want schema mismatch", err)
	}
}
