package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xKoda/tracekit/internal/detect"
	"github.com/0xKoda/tracekit/internal/ingest"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
	"github.com/0xKoda/tracekit/internal/store"
)

func writeClaudeTrace(t *testing.T, root, project, id string, lines ...string) string {
	t.Helper()
	dir := filepath.Join(root, "projects", project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, id+".jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func claudeUser(sid, ts, cwd, text string) string {
	return fmt.Sprintf(`{"type":"user","sessionId":%q,"timestamp":%q,"cwd":%q,"message":{"role":"user","content":%q}}`,
		sid, ts, cwd, text)
}

func claudeAssistant(sid, ts, modelID string, in, out int64) string {
	return fmt.Sprintf(`{"type":"assistant","sessionId":%q,"timestamp":%q,"message":{"role":"assistant","model":%q,"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":%d,"output_tokens":%d}}}`,
		sid, ts, modelID, in, out)
}

// claudeRetryPair emits a failed Read and an identical retry so the session
// carries at least one finding.
func claudeRetryPair(sid string) []string {
	return []string{
		`{"type":"assistant","sessionId":"` + sid + `","timestamp":"2026-03-14T10:00:10Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"a.go"}}],"usage":{"input_tokens":500,"output_tokens":20}}}`,
		`{"type":"user","sessionId":"` + sid + `","timestamp":"2026-03-14T10:00:11Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","is_error":true,"content":"ENOENT"}]}}`,
		`{"type":"assistant","sessionId":"` + sid + `","timestamp":"2026-03-14T10:00:12Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"tool_use","id":"t2","name":"Read","input":{"file_path":"a.go"}}],"usage":{"input_tokens":510,"output_tokens":25}}}`,
	}
}

func loadOptions(root string) Options {
	return Options{
		Agents: []model.Agent{model.AgentClaude},
		Roots:  map[model.Agent]string{model.AgentClaude: root},
		Detect: detect.Options{Catalog: pricing.New()},
	}
}

func TestLoad_ParsesAndDetects(t *testing.T) {
	root := t.TempDir()
	older := "11111111-1111-4111-8111-111111111111"
	newer := "22222222-2222-4222-8222-222222222222"
	writeClaudeTrace(t, root, "alpha", older,
		claudeUser(older, "2026-03-14T09:00:00Z", "/home/dev/alpha", "hi"),
		claudeAssistant(older, "2026-03-14T09:00:05Z", "claude-sonnet-4-5", 1000, 50),
	)
	writeClaudeTrace(t, root, "alpha", newer,
		append([]string{claudeUser(newer, "2026-03-14T10:00:00Z", "/home/dev/alpha", "go")},
			claudeRetryPair(newer)...)...,
	)

	result, err := Load(context.Background(), ingest.NewParser(pricing.New()), loadOptions(root))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.TotalFiles != 2 || result.Parsed != 2 || len(result.Failures) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.ScannedPaths) != 2 {
		t.Fatalf("scanned paths = %v, want both trace files", result.ScannedPaths)
	}
	if len(result.Analyses) != 2 {
		t.Fatalf("analyses = %d, want 2", len(result.Analyses))
	}
	// Most recent session first.
	if result.Analyses[0].Session.ID != newer {
		t.Errorf("first analysis = %s, want the newer session", result.Analyses[0].Session.ID)
	}
	var retries int
	for _, f := range result.Analyses[0].Findings {
		if f.Kind == model.RetryLoop {
			retries++
		}
	}
	if retries != 1 {
		t.Errorf("retry findings on newer session = %d, want 1", retries)
	}
}

func TestLoad_CacheServesUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	sid := "33333333-3333-4333-8333-333333333333"
	writeClaudeTrace(t, root, "alpha", sid,
		append([]string{claudeUser(sid, "2026-03-14T10:00:00Z", "/home/dev/alpha", "go")},
			claudeRetryPair(sid)...)...,
	)

	cache, err := store.Open(filepath.Join(t.TempDir(), "analysis.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	opts := loadOptions(root)
	opts.Cache = cache
	parser := ingest.NewParser(pricing.New())

	first, err := Load(context.Background(), parser, opts)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if first.CacheHits != 0 || first.Reparsed != 1 {
		t.Fatalf("first load = hits %d reparsed %d", first.CacheHits, first.Reparsed)
	}

	second, err := Load(context.Background(), parser, opts)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if second.CacheHits != 1 || second.Reparsed != 0 {
		t.Fatalf("second load = hits %d reparsed %d", second.CacheHits, second.Reparsed)
	}
	if len(second.Analyses) != 1 || second.Analyses[0].Session.ID != sid {
		t.Fatalf("cached analyses = %+v", second.Analyses)
	}
	if len(second.Analyses[0].Findings) != len(first.Analyses[0].Findings) {
		t.Errorf("cached findings = %d, want %d", len(second.Analyses[0].Findings), len(first.Analyses[0].Findings))
	}
}

func TestLoad_RecordsFailures(t *testing.T) {
	root := t.TempDir()
	good := "44444444-4444-4444-8444-444444444444"
	bad := "55555555-5555-4555-8555-555555555555"
	writeClaudeTrace(t, root, "alpha", good,
		claudeUser(good, "2026-03-14T10:00:00Z", "/home/dev/alpha", "hi"),
		claudeAssistant(good, "2026-03-14T10:00:05Z", "claude-sonnet-4-5", 100, 10),
	)
	writeClaudeTrace(t, root, "alpha", bad, "{not json", "also not json")

	result, err := Load(context.Background(), ingest.NewParser(pricing.New()), loadOptions(root))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Parsed != 1 || len(result.Analyses) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(result.Failures))
	}
	var ie *ingest.Error
	if !errors.As(result.Failures[0].Err, &ie) || ie.Kind != ingest.ErrCorruptJSON {
		t.Errorf("failure = %v, want corrupt json", result.Failures[0].Err)
	}
}

func TestLoad_AppliesFilters(t *testing.T) {
	root := t.TempDir()
	inAlpha := "66666666-6666-4666-8666-666666666666"
	inBeta := "77777777-7777-4777-8777-777777777777"
	writeClaudeTrace(t, root, "alpha", inAlpha,
		claudeUser(inAlpha, "2026-03-14T10:00:00Z", "/home/dev/alpha", "hi"),
		claudeAssistant(inAlpha, "2026-03-14T10:00:05Z", "claude-sonnet-4-5", 100, 10),
	)
	writeClaudeTrace(t, root, "beta", inBeta,
		claudeUser(inBeta, "2026-01-02T10:00:00Z", "/home/dev/beta", "hi"),
		claudeAssistant(inBeta, "2026-01-02T10:00:05Z", "claude-opus-4-1", 100, 10),
	)
	parser := ingest.NewParser(pricing.New())

	opts := loadOptions(root)
	opts.CWD = "beta"
	result, err := Load(context.Background(), parser, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Analyses) != 1 || result.Analyses[0].Session.ID != inBeta {
		t.Errorf("cwd filter kept %+v", result.Analyses)
	}

	opts = loadOptions(root)
	opts.ModelID = "opus"
	result, err = Load(context.Background(), parser, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Analyses) != 1 || result.Analyses[0].Session.ID != inBeta {
		t.Errorf("model filter kept %+v", result.Analyses)
	}

	opts = loadOptions(root)
	opts.Since = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	result, err = Load(context.Background(), parser, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Analyses) != 1 || result.Analyses[0].Session.ID != inAlpha {
		t.Errorf("since filter kept %+v", result.Analyses)
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	root := t.TempDir()
	sid := "88888888-8888-4888-8888-888888888888"
	writeClaudeTrace(t, root, "alpha", sid,
		claudeUser(sid, "2026-03-14T10:00:00Z", "/home/dev/alpha", "hi"),
		claudeAssistant(sid, "2026-03-14T10:00:05Z", "claude-sonnet-4-5", 100, 10),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Load(ctx, ingest.NewParser(pricing.New()), loadOptions(root))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(result.Analyses) != 0 || len(result.Failures) != 1 {
		t.Errorf("cancelled load = %+v", result)
	}
}
