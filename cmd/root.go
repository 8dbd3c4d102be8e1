package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/config"
	"github.com/0xKoda/tracekit/internal/detect"
	"github.com/0xKoda/tracekit/internal/ingest"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/pricing"
	"github.com/0xKoda/tracekit/internal/report"
	"github.com/0xKoda/tracekit/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagAgent   string
	flagDataDir string
	flagSince   string
	flagUntil   string
	flagCWD     string
	flagModelID string
	flagNoCache bool
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "tracekit",
	Short: "Coding-agent trace analyzer",
	Long:  "Analyze coding-agent session traces: where the tokens went, what they cost, and which turns wasted them.",
}

// Process exit codes. Scripts branch on these, so a filter that matches
// nothing and a requested session that will not parse stay distinct from
// generic failure.
const (
	exitFailure  = 1
	exitNoMatch  = 2
	exitBadTrace = 3
)

// exitError carries an exit code up through cobra. An empty message means
// the command already printed everything the user needs to see.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func errNoMatch() error { return &exitError{code: exitNoMatch} }

func errBadTrace(err error) error { return &exitError{code: exitBadTrace, err: err} }

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := exitFailure
		var xe *exitError
		if errors.As(err, &xe) {
			code = xe.code
		}
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		os.Exit(code)
	}
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVarP(&flagAgent, "agent", "a", "", "Agent to analyze (claude, opencode, codex, pi, kodo, all)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the discovery root for the selected agents")
	rootCmd.PersistentFlags().StringVar(&flagSince, "since", "", "Ignore sessions started before this time (RFC3339 or YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&flagUntil, "until", "", "Ignore sessions started after this time (RFC3339 or YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&flagCWD, "cwd", "", "Filter to working directory (substring match)")
	rootCmd.PersistentFlags().StringVar(&flagModelID, "model-id", "", "Filter to model id (substring match)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Skip SQLite cache, reparse everything")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

// defaultLimit is the configured fallback for --limit style flags.
func defaultLimit() int {
	cfg, err := config.Load()
	if err != nil || cfg.General.DefaultLimit <= 0 {
		return 20
	}
	return cfg.General.DefaultLimit
}

// parseTimeFlag accepts RFC3339 timestamps or bare YYYY-MM-DD dates, the
// latter read as midnight UTC.
func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", s)
}

// buildOptions resolves the persistent flags and the config file into
// pipeline options plus the pricing catalog commands price with. The
// profile argument comes from per-command --optimize-for flags; empty
// falls back to the config default.
func buildOptions(profile string) (pipeline.Options, *pricing.Catalog, error) {
	cfg, err := config.Load()
	if err != nil {
		return pipeline.Options{}, nil, err
	}

	agentFilter := flagAgent
	if agentFilter == "" {
		agentFilter = cfg.General.DefaultAgent
	}
	agents, err := model.ParseAgentFilter(agentFilter)
	if err != nil {
		return pipeline.Options{}, nil, err
	}

	if profile == "" {
		profile = cfg.General.DefaultProfile
	}
	prof, err := model.ParseProfile(profile)
	if err != nil {
		return pipeline.Options{}, nil, err
	}

	since, err := parseTimeFlag(flagSince)
	if err != nil {
		return pipeline.Options{}, nil, err
	}
	until, err := parseTimeFlag(flagUntil)
	if err != nil {
		return pipeline.Options{}, nil, err
	}

	catalog := pricing.New()
	if cfg.Pricing.CatalogFile != "" {
		if err := catalog.LoadFile(cfg.Pricing.CatalogFile); err != nil {
			return pipeline.Options{}, nil, fmt.Errorf("pricing catalog: %w", err)
		}
	}

	var disabled map[model.FindingKind]bool
	if kinds := cfg.DisabledKinds(); len(kinds) > 0 {
		disabled = make(map[model.FindingKind]bool, len(kinds))
		for kind := range kinds {
			disabled[model.FindingKind(kind)] = true
		}
	}

	roots := make(map[model.Agent]string, len(agents))
	for _, agent := range agents {
		if root := cfg.AgentRoot(string(agent)); root != "" {
			roots[agent] = root
		}
		// --data-dir wins over both config and the built-in roots.
		if flagDataDir != "" {
			roots[agent] = flagDataDir
		}
	}

	opts := pipeline.Options{
		Agents:  agents,
		Roots:   roots,
		Since:   since,
		Until:   until,
		CWD:     flagCWD,
		ModelID: flagModelID,
		Detect: detect.Options{
			Profile:  prof,
			Lenient:  cfg.Detectors.RetryCanonicalization == "lenient",
			Disabled: disabled,
			Catalog:  catalog,
		},
	}
	return opts, catalog, nil
}

// loadData is the shared load path used by the bulk commands: discover,
// parse (through the SQLite cache when available), detect, filter.
// Individual parse failures are reported on stderr and skipped.
func loadData(ctx context.Context, profile string) (*pipeline.LoadResult, *pricing.Catalog, error) {
	opts, catalog, err := buildOptions(profile)
	if err != nil {
		return nil, nil, err
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning sessions...\n")
	}
	opts.Progress = progressFunc()

	var cache *store.Cache
	if !flagNoCache {
		cache, err = store.Open(pipeline.CachePath())
		if err != nil {
			// Cache open failed, fall back to a full parse.
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Cache unavailable, doing full parse\n")
			}
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	opts.Cache = cache

	parser := ingest.NewParser(catalog)
	result, err := pipeline.Load(ctx, parser, opts)
	if err != nil {
		return nil, nil, err
	}

	reportLoad(result, cache != nil)
	warnUnknownModels(catalog)
	return result, catalog, nil
}

// warnUnknownModels reports model ids the catalog could not price, once per
// load rather than once per session.
func warnUnknownModels(catalog *pricing.Catalog) {
	if flagQuiet {
		return
	}
	if unknown := catalog.UnknownModels(); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "  warn: no pricing for %s, costed as zero\n", strings.Join(unknown, ", "))
	}
}

func progressFunc() pipeline.ProgressFunc {
	return func(current, total int) {
		if flagQuiet {
			return
		}
		if current%100 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Parsing %s", cli.RenderProgressBar(current, total, 20))
		}
	}
}

func reportLoad(result *pipeline.LoadResult, cached bool) {
	if flagQuiet {
		return
	}
	if result.TotalFiles > 0 {
		// Trailing spaces scrub leftovers from the progress bar line.
		switch {
		case cached && result.Reparsed == 0 && result.CacheHits > 0:
			fmt.Fprintf(os.Stderr, "\r  Loaded %s sessions from cache%*s\n",
				cli.FormatNumber(int64(result.CacheHits)), 24, "")
		case cached && result.CacheHits > 0:
			fmt.Fprintf(os.Stderr, "\r  %s cached + %d reparsed%*s\n",
				cli.FormatNumber(int64(result.CacheHits)), result.Reparsed, 24, "")
		default:
			fmt.Fprintf(os.Stderr, "\r  Parsed %s sessions%*s\n",
				cli.FormatNumber(int64(result.Parsed)), 24, "")
		}
	}
	for _, f := range result.Failures {
		fmt.Fprintf(os.Stderr, "  warn: %s: %v\n", f.Path, f.Err)
	}
}

// buildAggregateReport assembles the fleet rollup renderers consume.
func buildAggregateReport(analyses []pipeline.Analysis, catalog *pricing.Catalog, topSessions int) report.AggregateReport {
	split, models := pipeline.CostBreakdown(analyses, catalog)
	return report.AggregateReport{
		Aggregate:   pipeline.BuildAggregate(analyses, topSessions),
		Split:       split,
		Models:      models,
		GeneratedAt: time.Now(),
	}
}

// findSession resolves a session id prefix to one parsed, analyzed
// session. Time and cwd filters do not apply when a session is addressed
// by name. A discovery miss is a no-match exit; a matched file that will
// not parse is a hard failure, since the user asked for that session.
func findSession(ctx context.Context, sessionID, profile string) (pipeline.Analysis, *pricing.Catalog, error) {
	opts, catalog, err := buildOptions(profile)
	if err != nil {
		return pipeline.Analysis{}, nil, err
	}

	var discovered []ingest.DiscoveredSession
	for _, agent := range opts.Agents {
		root := opts.Roots[agent]
		if root == "" {
			root = ingest.DefaultRoot(agent)
		}
		found, err := ingest.Discover(agent, root, time.Time{}, time.Time{})
		if err != nil {
			return pipeline.Analysis{}, nil, err
		}
		discovered = append(discovered, found...)
	}

	match, err := ingest.FindByPrefix(discovered, sessionID)
	if err != nil {
		fmt.Printf("\n  %s.\n", err)
		return pipeline.Analysis{}, nil, errNoMatch()
	}

	parser := ingest.NewParser(catalog)
	s, err := parser.Parse(ctx, match.Agent, match.Path)
	if err != nil {
		return pipeline.Analysis{}, nil, errBadTrace(err)
	}

	return pipeline.Analysis{Session: s, Findings: detect.Run(s, opts.Detect)}, catalog, nil
}
