package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with no file: %v", err)
	}
	if cfg.General.DefaultAgent != "all" {
		t.Errorf("DefaultAgent = %q, want all", cfg.General.DefaultAgent)
	}
	if cfg.General.DefaultLimit != 20 {
		t.Errorf("DefaultLimit = %d, want 20", cfg.General.DefaultLimit)
	}
	if cfg.Detectors.RetryCanonicalization != "strict" {
		t.Errorf("RetryCanonicalization = %q, want strict", cfg.Detectors.RetryCanonicalization)
	}
	if Exists() {
		t.Error("Exists should be false before Save")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.General.DefaultAgent = "codex"
	cfg.General.DefaultLimit = 5
	cfg.Detectors.RetryCanonicalization = "lenient"
	cfg.Detectors.Disabled = []string{"TOOL_FANOUT", "SUBAGENT_OVERHEAD"}
	cfg.Paths.KodoDir = "/srv/kodo"
	cfg.Pricing.CatalogFile = "/etc/tracekit/pricing.yaml"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists() {
		t.Error("Exists should be true after Save")
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.General.DefaultAgent != "codex" || got.General.DefaultLimit != 5 {
		t.Errorf("general section mismatch: %+v", got.General)
	}
	if got.Detectors.RetryCanonicalization != "lenient" {
		t.Errorf("RetryCanonicalization = %q", got.Detectors.RetryCanonicalization)
	}
	if len(got.Detectors.Disabled) != 2 {
		t.Errorf("Disabled = %v", got.Detectors.Disabled)
	}
	if got.Paths.KodoDir != "/srv/kodo" {
		t.Errorf("KodoDir = %q", got.Paths.KodoDir)
	}
	if got.Pricing.CatalogFile != "/etc/tracekit/pricing.yaml" {
		t.Errorf("CatalogFile = %q", got.Pricing.CatalogFile)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfgDir := filepath.Join(dir, "tracekit")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte("[general\noops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestDisabledKinds(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.DisabledKinds(); got != nil {
		t.Errorf("DisabledKinds with empty list = %v, want nil", got)
	}

	cfg.Detectors.Disabled = []string{"RETRY_LOOP"}
	set := cfg.DisabledKinds()
	if !set["RETRY_LOOP"] || set["EDIT_CASCADE"] {
		t.Errorf("DisabledKinds = %v", set)
	}
}

func TestAgentRoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.ClaudeDir = "/data/claude"
	cfg.Paths.PiDir = "/data/pi"

	tests := []struct {
		agent string
		want  string
	}{
		{"claude", "/data/claude"},
		{"pi", "/data/pi"},
		{"opencode", ""},
		{"nonsense", ""},
	}
	for _, tt := range tests {
		if got := cfg.AgentRoot(tt.agent); got != tt.want {
			t.Errorf("AgentRoot(%q) = %q, want %q", tt.agent, got, tt.want)
		}
	}
}
