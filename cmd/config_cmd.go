// Package cmd implements the tracekit CLI commands.
package cmd

import (
	"fmt"
	"strings"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/config"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/store"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Default agent:   %s\n", cfg.General.DefaultAgent)
	fmt.Printf("    Default profile: %s\n", cfg.General.DefaultProfile)
	fmt.Printf("    Default limit:   %d\n", cfg.General.DefaultLimit)
	fmt.Println()

	fmt.Println("  [Detectors]")
	fmt.Printf("    Retry canonicalization: %s\n", cfg.Detectors.RetryCanonicalization)
	if len(cfg.Detectors.Disabled) > 0 {
		fmt.Printf("    Disabled:               %s\n", strings.Join(cfg.Detectors.Disabled, ", "))
	} else {
		fmt.Println("    Disabled:               none")
	}
	fmt.Println()

	fmt.Println("  [Paths]")
	overridden := 0
	for _, agent := range model.AllAgents() {
		if root := cfg.AgentRoot(string(agent)); root != "" {
			fmt.Printf("    %-9s %s\n", agent+":", cli.CollapseHome(root))
			overridden++
		}
	}
	if overridden == 0 {
		fmt.Println("    All agents use their default data dirs.")
	}
	fmt.Println()

	fmt.Println("  [Pricing]")
	if cfg.Pricing.CatalogFile != "" {
		fmt.Printf("    Catalog: %s\n", cli.CollapseHome(cfg.Pricing.CatalogFile))
	} else {
		fmt.Println("    Catalog: built-in table")
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Cache]")
	fmt.Printf("    Path: %s\n", cli.CollapseHome(pipeline.CachePath()))
	if cache, err := store.Open(pipeline.CachePath()); err == nil {
		if n, err := cache.SessionCount(); err == nil {
			fmt.Printf("    Sessions cached: %s\n", cli.FormatNumber(int64(n)))
		}
		if run, ok, _ := cache.LastRun(); ok {
			fmt.Printf("    Last capture:    %s (found %d, failed %d)\n",
				cli.FormatAge(run.FinishedAt), run.Found, run.Failed)
		}
		cache.Close()
	}
	fmt.Println()

	fmt.Println("  Run `tracekit setup` to reconfigure.")
	return nil
}
