package pipeline

import (
	"os"
	"path/filepath"

	"github.com/0xKoda/tracekit/internal/ingest"
	"github.com/0xKoda/tracekit/internal/store"
)

// partition splits discovered files into cache-served analyses and files
// needing a fresh parse. A nil cache sends everything to the parser. Cache
// read errors degrade to a re-parse rather than failing the load.
func partition(cache *store.Cache, files []ingest.DiscoveredSession) ([]Analysis, []ingest.DiscoveredSession) {
	if cache == nil {
		return nil, files
	}
	tracked, err := cache.TrackedFiles()
	if err != nil {
		return nil, files
	}
	var hits []Analysis
	var stale []ingest.DiscoveredSession
	for _, f := range files {
		// Identity check against the tracked map first; Lookup decodes the
		// stored session payload, which changed files never need.
		fi, ok := tracked[f.Path]
		if !ok || fi.MtimeNs != f.ModTime.UnixNano() || fi.SizeBytes != f.SizeBytes {
			stale = append(stale, f)
			continue
		}
		s, findings, ok, err := cache.Lookup(f.Path, f.ModTime.UnixNano(), f.SizeBytes)
		if err != nil || !ok {
			stale = append(stale, f)
			continue
		}
		hits = append(hits, Analysis{Session: s, Findings: findings})
	}
	return hits, stale
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "tracekit")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "tracekit")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "analysis.db")
}
