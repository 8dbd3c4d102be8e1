package pricing

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xKoda/tracekit/internal/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMatchLongestPrefix(t *testing.T) {
	c := New()
	tests := []struct {
		modelID   string
		wantInput float64
		wantOK    bool
	}{
		{"claude-sonnet-4-5-20250929", 3.00, true},
		{"claude-opus-4-1-20250805", 15.00, true},
		{"claude-3-5-haiku-20241022", 0.80, true},
		{"claude-3-haiku-20240307", 0.25, true},
		// Bare family fallback only when nothing longer matches.
		{"claude-next-experimental", 3.00, true},
		{"CLAUDE-OPUS-4", 15.00, true},
		// gpt-4o-mini must not fall into the gpt-4o or gpt-4 buckets.
		{"gpt-4o-mini-2024-07-18", 0.15, true},
		{"gpt-4o-2024-08-06", 2.50, true},
		{"gpt-4-turbo", 30.00, true},
		{"gpt-5-codex", 10.00, true},
		{"o4-mini-deep-research", 1.10, true},
		{"o3-2025-04-16", 10.00, true},
		{"gemini-2.0-flash-exp", 0.10, true},
		{"gemini-2.5-pro", 1.25, true},
		{"kimi-k2", 0.15, true},
		{"llama-3-70b", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		rates, ok := c.Match(tt.modelID)
		if ok != tt.wantOK {
			t.Errorf("Match(%q) ok = %v, want %v", tt.modelID, ok, tt.wantOK)
			continue
		}
		if ok && !almostEqual(rates.InputPerMTok, tt.wantInput) {
			t.Errorf("Match(%q) input rate = %v, want %v", tt.modelID, rates.InputPerMTok, tt.wantInput)
		}
	}
}

func TestPriceKnownModel(t *testing.T) {
	c := New()
	u := model.Usage{Input: 1_000_000, Output: 500_000, CacheRead: 2_000_000, CacheWrite: 100_000}
	// sonnet: 3.00 + 0.5*15.00 + 2*0.30 + 0.1*3.75
	want := 3.00 + 7.50 + 0.60 + 0.375
	if got := c.Price("claude-sonnet-4-5-20250929", u); !almostEqual(got, want) {
		t.Errorf("Price = %v, want %v", got, want)
	}
	if got := c.Price("claude-sonnet-4-5-20250929", model.Usage{}); got != 0 {
		t.Errorf("Price with zero usage = %v, want 0", got)
	}
}

func TestPriceUnknownModelWarnsOnce(t *testing.T) {
	c := New()
	u := model.Usage{Input: 1000}

	for i := 0; i < 3; i++ {
		if got := c.Price("mystery-model-9000", u); got != 0 {
			t.Fatalf("Price(unknown) = %v, want 0", got)
		}
	}
	unknown := c.UnknownModels()
	if len(unknown) != 1 || unknown[0] != "mystery-model-9000" {
		t.Errorf("UnknownModels = %v, want [mystery-model-9000]", unknown)
	}

	// Empty ids are priced at zero without entering the warning set.
	if got := c.Price("", u); got != 0 {
		t.Errorf("Price(empty) = %v, want 0", got)
	}
	if got := c.UnknownModels(); len(got) != 1 {
		t.Errorf("empty model id leaked into unknown set: %v", got)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	doc := `claude-sonnet-4:
  input: 1.0
  output: 2.0
  cache_read: 0.1
  cache_write: 0.5
acme-custom:
  input: 42.0
  output: 84.0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	rates, ok := c.Match("claude-sonnet-4-5")
	if !ok || !almostEqual(rates.InputPerMTok, 1.0) {
		t.Errorf("override not applied: %+v ok=%v", rates, ok)
	}
	rates, ok = c.Match("acme-custom-v2")
	if !ok || !almostEqual(rates.OutputPerMTok, 84.0) {
		t.Errorf("new entry not applied: %+v ok=%v", rates, ok)
	}
	// Untouched built-ins survive a merge.
	if _, ok := c.Match("gpt-4o"); !ok {
		t.Error("built-in entry lost after LoadFile")
	}
}

func TestLoadFileErrors(t *testing.T) {
	c := New()
	if err := c.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestBlendedRatePerMTok(t *testing.T) {
	c := New()

	// All-input distribution degenerates to the input rate.
	got := c.BlendedRatePerMTok("claude-sonnet-4-5", model.Usage{Input: 5000})
	if !almostEqual(got, 3.00) {
		t.Errorf("all-input blend = %v, want 3.00", got)
	}

	// Even input/output split averages the two rates.
	got = c.BlendedRatePerMTok("claude-sonnet-4-5", model.Usage{Input: 1000, Output: 1000})
	if !almostEqual(got, 9.00) {
		t.Errorf("50/50 blend = %v, want 9.00", got)
	}

	if got := c.BlendedRatePerMTok("claude-sonnet-4-5", model.Usage{}); got != 0 {
		t.Errorf("empty distribution blend = %v, want 0", got)
	}
	if got := c.BlendedRatePerMTok("mystery-model", model.Usage{Input: 10}); got != 0 {
		t.Errorf("unknown model blend = %v, want 0", got)
	}
}
