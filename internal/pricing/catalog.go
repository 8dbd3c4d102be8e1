// Package pricing maps model identifiers to per-token USD rates and prices
// token usage against them. The catalog is read-only after initialization;
// only the unknown-model warning set mutates, so it is safe to share across
// analysis workers.
package pricing

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/0xKoda/tracekit/internal/model"
)

// Rates holds USD prices per million tokens for one model family.
type Rates struct {
	InputPerMTok      float64 `yaml:"input"`
	OutputPerMTok     float64 `yaml:"output"`
	CacheReadPerMTok  float64 `yaml:"cache_read"`
	CacheWritePerMTok float64 `yaml:"cache_write"`
}

// Cost applies the rates to a usage record.
func (r Rates) Cost(u model.Usage) float64 {
	const m = 1_000_000
	return float64(u.Input)*r.InputPerMTok/m +
		float64(u.Output)*r.OutputPerMTok/m +
		float64(u.CacheRead)*r.CacheReadPerMTok/m +
		float64(u.CacheWrite)*r.CacheWritePerMTok/m
}

// Catalog resolves model ids to rates by longest-prefix match.
type Catalog struct {
	entries map[string]Rates

	mu      sync.Mutex
	unknown map[string]struct{}
}

// New returns a catalog populated with the built-in table.
func New() *Catalog {
	entries := make(map[string]Rates, len(defaultEntries))
	for prefix, rates := range defaultEntries {
		entries[prefix] = rates
	}
	return &Catalog{
		entries: entries,
		unknown: make(map[string]struct{}),
	}
}

// LoadFile merges entries from a YAML file into the catalog. The file maps
// model id prefixes to rate objects; entries with a prefix already present
// replace the built-in rates.
//
//	claude-opus-4:
//	  input: 15.0
//	  output: 75.0
//	  cache_read: 1.5
//	  cache_write: 3.75
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading pricing file: %w", err)
	}
	var overrides map[string]Rates
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing pricing file %s: %w", path, err)
	}
	for prefix, rates := range overrides {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix == "" {
			continue
		}
		c.entries[prefix] = rates
	}
	return nil
}

// Match returns the rates for the longest catalog prefix of the model id.
// Matching is case-insensitive. When two prefixes of equal length match,
// the lexicographically smaller one wins so results do not depend on map
// iteration order.
func (c *Catalog) Match(modelID string) (Rates, bool) {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if id == "" {
		return Rates{}, false
	}
	var (
		best      string
		bestRates Rates
		found     bool
	)
	for prefix, rates := range c.entries {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if !found || len(prefix) > len(best) || (len(prefix) == len(best) && prefix < best) {
			best, bestRates, found = prefix, rates, true
		}
	}
	return bestRates, found
}

// Price computes the USD cost of a usage record for the given model.
// Unknown models price at zero and are recorded once per distinct id;
// UnknownModels surfaces the set after a load. An empty model id prices at
// zero silently, since agents that never report a model would otherwise be
// flagged on every session.
func (c *Catalog) Price(modelID string, u model.Usage) float64 {
	rates, ok := c.Match(modelID)
	if !ok {
		c.noteUnknown(modelID)
		return 0
	}
	return rates.Cost(u)
}

// BlendedRatePerMTok returns a single per-million-token rate weighted by the
// token-kind distribution in dist. Detectors use it to price waste estimates
// that no longer distinguish input from output tokens. Returns 0 when the
// distribution is empty or the model is unknown.
func (c *Catalog) BlendedRatePerMTok(modelID string, dist model.Usage) float64 {
	total := dist.Total()
	if total == 0 {
		return 0
	}
	rates, ok := c.Match(modelID)
	if !ok {
		c.noteUnknown(modelID)
		return 0
	}
	ft := float64(total)
	return rates.InputPerMTok*float64(dist.Input)/ft +
		rates.OutputPerMTok*float64(dist.Output)/ft +
		rates.CacheReadPerMTok*float64(dist.CacheRead)/ft +
		rates.CacheWritePerMTok*float64(dist.CacheWrite)/ft
}

// UnknownModels returns the distinct model ids that failed to match, sorted.
func (c *Catalog) UnknownModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.unknown))
	for id := range c.unknown {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) noteUnknown(modelID string) {
	if modelID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unknown[modelID] = struct{}{}
}
