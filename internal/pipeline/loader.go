// Package pipeline orchestrates discovery, parsing, detection, and caching
// into the analyses the CLI surfaces render.
package pipeline

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xKoda/tracekit/internal/detect"
	"github.com/0xKoda/tracekit/internal/ingest"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/store"
)

// Analysis pairs a session with its findings.
type Analysis struct {
	Session  *model.Session  `json:"session"`
	Findings []model.Finding `json:"findings"`
}

// Failure records a file that could not be ingested.
type Failure struct {
	Agent model.Agent
	Path  string
	Err   error
}

// LoadResult holds the output of the full loading pipeline.
type LoadResult struct {
	Analyses   []Analysis
	TotalFiles int
	Parsed     int
	CacheHits  int
	Reparsed   int
	Failures   []Failure

	// ScannedPaths lists every discovered trace file before session-level
	// filtering, so callers can reconcile the cache against disk.
	ScannedPaths []string
}

// ProgressFunc is called as files finish, with the running count and total.
type ProgressFunc func(current, total int)

// Options configure one load.
type Options struct {
	Agents []model.Agent

	// Roots overrides the per-agent data directory; missing entries use
	// the agent's default.
	Roots map[model.Agent]string

	Since   time.Time
	Until   time.Time
	CWD     string // substring match on the session working directory
	ModelID string // substring match on any model observed in the session

	Detect detect.Options

	// Cache short-circuits unchanged files and persists fresh parses.
	// Nil disables both directions.
	Cache *store.Cache

	Progress ProgressFunc
}

// Load discovers every candidate session for the requested agents, parses
// the ones the cache cannot serve, runs detection, and filters the combined
// set. Parsing spreads over GOMAXPROCS workers; each worker owns a file end
// to end (parse, detect, cache write-back).
func Load(ctx context.Context, parser *ingest.Parser, opts Options) (*LoadResult, error) {
	result := &LoadResult{}

	var files []ingest.DiscoveredSession
	for _, agent := range opts.Agents {
		found, err := ingest.Discover(agent, opts.Roots[agent], opts.Since, opts.Until)
		if err != nil {
			result.Failures = append(result.Failures, Failure{Agent: agent, Path: opts.Roots[agent], Err: err})
			continue
		}
		files = append(files, found...)
	}
	result.TotalFiles = len(files)
	for _, f := range files {
		result.ScannedPaths = append(result.ScannedPaths, f.Path)
	}
	if len(files) == 0 {
		return result, nil
	}

	hits, stale := partition(opts.Cache, files)
	result.CacheHits = len(hits)
	result.Reparsed = len(stale)
	for _, h := range hits {
		// Cached findings were stored in cost order; honor the profile.
		detect.Sort(h.Findings, opts.Detect.Profile)
		result.Analyses = append(result.Analyses, h)
		result.Parsed++
	}
	if opts.Progress != nil && len(hits) > 0 {
		opts.Progress(len(hits), result.TotalFiles)
	}

	if len(stale) > 0 {
		type outcome struct {
			analysis Analysis
			err      error
		}

		numWorkers := runtime.GOMAXPROCS(0)
		if numWorkers < 1 {
			numWorkers = 4
		}
		if numWorkers > len(stale) {
			numWorkers = len(stale)
		}

		work := make(chan int, len(stale))
		outcomes := make([]outcome, len(stale))
		var wg sync.WaitGroup
		var processed atomic.Int64

		for i := range stale {
			work <- i
		}
		close(work)

		wg.Add(numWorkers)
		for w := 0; w < numWorkers; w++ {
			go func() {
				defer wg.Done()
				for idx := range work {
					if err := ctx.Err(); err != nil {
						outcomes[idx] = outcome{err: err}
						continue
					}
					f := stale[idx]
					s, err := parser.Parse(ctx, f.Agent, f.Path)
					if err != nil {
						outcomes[idx] = outcome{err: err}
					} else {
						findings := detect.Run(s, opts.Detect)
						outcomes[idx] = outcome{analysis: Analysis{Session: s, Findings: findings}}
						if opts.Cache != nil {
							_ = opts.Cache.Save(s, findings, f.ModTime.UnixNano(), f.SizeBytes)
						}
					}
					n := processed.Add(1)
					if opts.Progress != nil {
						opts.Progress(int(n)+len(hits), result.TotalFiles)
					}
				}
			}()
		}
		wg.Wait()

		for i, oc := range outcomes {
			if oc.err != nil {
				result.Failures = append(result.Failures, Failure{Agent: stale[i].Agent, Path: stale[i].Path, Err: oc.err})
				continue
			}
			result.Parsed++
			result.Analyses = append(result.Analyses, oc.analysis)
		}
	}

	result.Analyses = FilterByTime(result.Analyses, opts.Since, opts.Until)
	result.Analyses = FilterByCWD(result.Analyses, opts.CWD)
	result.Analyses = FilterByModel(result.Analyses, opts.ModelID)
	sortAnalyses(result.Analyses)

	return result, ctx.Err()
}

// sortAnalyses orders most recent first, with the session id breaking ties
// so output is stable across runs.
func sortAnalyses(analyses []Analysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		si, sj := analyses[i].Session, analyses[j].Session
		if !si.StartedAt.Equal(sj.StartedAt) {
			return si.StartedAt.After(sj.StartedAt)
		}
		return si.ID < sj.ID
	})
}
