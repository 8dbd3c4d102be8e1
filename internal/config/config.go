// Package config loads and persists tracekit configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all tracekit configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Detectors  DetectorsConfig  `toml:"detectors"`
	Paths      PathsConfig      `toml:"paths"`
	Pricing    PricingConfig    `toml:"pricing"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DefaultAgent   string `toml:"default_agent"`
	DefaultLimit   int    `toml:"default_limit"`
	DefaultProfile string `toml:"default_profile"`
}

// DetectorsConfig tunes the detector engine.
type DetectorsConfig struct {
	// RetryCanonicalization is "strict" (byte-equal canonical JSON only) or
	// "lenient" (also match after stripping transient argument fields).
	RetryCanonicalization string `toml:"retry_canonicalization"`
	// Disabled lists finding kinds that should never fire, e.g. "TOOL_FANOUT".
	Disabled []string `toml:"disabled,omitempty"`
}

// PathsConfig overrides the per-agent discovery roots.
type PathsConfig struct {
	ClaudeDir   string `toml:"claude_dir,omitempty"`
	OpenCodeDir string `toml:"opencode_dir,omitempty"`
	CodexDir    string `toml:"codex_dir,omitempty"`
	PiDir       string `toml:"pi_dir,omitempty"`
	KodoDir     string `toml:"kodo_dir,omitempty"`
}

// PricingConfig points at user-supplied pricing data.
type PricingConfig struct {
	// CatalogFile is a YAML file of model-prefix rate overrides merged over
	// the built-in table.
	CatalogFile string `toml:"catalog_file,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultAgent:   "all",
			DefaultLimit:   20,
			DefaultProfile: "cost",
		},
		Detectors: DetectorsConfig{
			RetryCanonicalization: "strict",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tracekit")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tracekit")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// DisabledKinds returns the disabled detector kinds as a lookup set.
func (c Config) DisabledKinds() map[string]bool {
	if len(c.Detectors.Disabled) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.Detectors.Disabled))
	for _, kind := range c.Detectors.Disabled {
		set[kind] = true
	}
	return set
}

// AgentRoot returns the configured discovery root override for an agent,
// or "" when the built-in default applies.
func (c Config) AgentRoot(agent string) string {
	switch agent {
	case "claude":
		return c.Paths.ClaudeDir
	case "opencode":
		return c.Paths.OpenCodeDir
	case "codex":
		return c.Paths.CodexDir
	case "pi":
		return c.Paths.PiDir
	case "kodo":
		return c.Paths.KodoDir
	}
	return ""
}
