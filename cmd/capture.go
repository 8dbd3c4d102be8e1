package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/ingest"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/report"
	"github.com/0xKoda/tracekit/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Scan agent data dirs and ingest session traces",
	Long: "Discover session traces under the configured agent data directories, " +
		"parse them into the cache, and record the run. With --inspect, dump one " +
		"session as a readable markdown transcript instead.",
	RunE: runCapture,
}

var (
	captureInspect  string
	captureForensic bool
	captureOut      string
)

func init() {
	captureCmd.Flags().StringVar(&captureInspect, "inspect", "", "Dump one session (id prefix) as markdown instead of scanning")
	captureCmd.Flags().BoolVar(&captureForensic, "forensic", false, "Keep every recovered event in the inspect dump")
	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Inspect dump path (default inspect-traces/tracekit-inspect-<id>.md)")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, _ []string) error {
	if captureInspect != "" {
		return runInspect(cmd, captureInspect)
	}

	opts, catalog, err := buildOptions("")
	if err != nil {
		return err
	}

	startedAt := time.Now()
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning sessions...\n")
	}
	opts.Progress = progressFunc()

	// Capture owns its cache handle: the run record lands in the same
	// database the parsed sessions do.
	var cache *store.Cache
	if !flagNoCache {
		cache, err = store.Open(pipeline.CachePath())
		if err != nil {
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
	result, err := pipeline.Load(cmd.Context(), parser, opts)
	if err != nil {
		return err
	}
	reportLoad(result, cache != nil)
	warnUnknownModels(catalog)

	var prev store.CaptureRun
	var hasPrev bool
	if cache != nil {
		prev, hasPrev, _ = cache.LastRun()
		run := store.CaptureRun{
			ID:         uuid.NewString(),
			Agent:      agentLabel(opts),
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			Found:      result.TotalFiles,
			Parsed:     result.Parsed + result.CacheHits,
			Failed:     len(result.Failures),
		}
		if err := cache.SaveRun(run); err != nil {
			fmt.Fprintf(os.Stderr, "  warn: recording capture run: %v\n", err)
		}

		// A narrowed scan does not see every live trace file, so only a
		// full unfiltered capture reconciles the cache against disk.
		fullScan := len(opts.Agents) == len(model.AllAgents()) && flagDataDir == "" &&
			opts.Since.IsZero() && opts.Until.IsZero()
		if fullScan && result.TotalFiles > 0 {
			keep := make(map[string]bool, len(result.ScannedPaths))
			for _, p := range result.ScannedPaths {
				keep[p] = true
			}
			if removed, err := cache.Prune(keep); err == nil && removed > 0 && !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Dropped %d cached sessions whose trace files are gone\n", removed)
			}
		}
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("CAPTURE"))
	fmt.Println()

	pairs := [][2]string{
		{"Agents", agentLabel(opts)},
		{"Found", cli.FormatNumber(int64(result.TotalFiles))},
		{"Ingested", cli.FormatNumber(int64(result.Parsed + result.CacheHits))},
		{"From cache", cli.FormatNumber(int64(result.CacheHits))},
		{"Failed", cli.FormatNumber(int64(len(result.Failures)))},
		{"Took", cli.FormatDuration(int64(time.Since(startedAt).Seconds()))},
	}
	fmt.Print(cli.RenderKeyValues(pairs))

	if hasPrev {
		fmt.Printf("\n  Previous capture found %d sessions %s.\n",
			prev.Found, cli.FormatAge(prev.FinishedAt))
	}
	if cache == nil {
		fmt.Println("\n  Cache disabled; nothing was persisted.")
	}

	return nil
}

// runInspect resolves one session by id prefix and writes the markdown
// transcript dump.
func runInspect(cmd *cobra.Command, sessionID string) error {
	analysis, _, err := findSession(cmd.Context(), sessionID, "")
	if err != nil {
		return err
	}
	s := analysis.Session

	mode := report.InspectAnalysis
	if captureForensic {
		mode = report.InspectForensic
	}
	dump := report.Inspect(s, mode)

	outPath := captureOut
	if outPath == "" {
		outPath = report.DefaultInspectPath(s.ID)
	}
	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(outPath, dump, 0o644); err != nil {
		return fmt.Errorf("writing inspect dump: %w", err)
	}

	fmt.Printf("\n  Wrote %s dump for %s to %s\n", mode, cli.ShortID(s.ID), outPath)
	return nil
}

func agentLabel(opts pipeline.Options) string {
	if len(opts.Agents) == 1 {
		return string(opts.Agents[0])
	}
	return "all"
}
