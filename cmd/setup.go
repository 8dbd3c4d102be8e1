package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/config"
	"github.com/0xKoda/tracekit/internal/ingest"
	"github.com/0xKoda/tracekit/internal/model"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	reader := bufio.NewReader(os.Stdin)

	// Load existing config or defaults
	cfg, _ := config.Load()

	fmt.Println()
	fmt.Println("  Welcome to tracekit!")
	fmt.Println()

	// Probe the agent data dirs so the user can see what a capture will find.
	total := 0
	for _, agent := range model.AllAgents() {
		root := cfg.AgentRoot(string(agent))
		if root == "" {
			root = ingest.DefaultRoot(agent)
		}
		found, err := ingest.Discover(agent, root, time.Time{}, time.Time{})
		if err != nil || len(found) == 0 {
			continue
		}
		total += len(found)
		fmt.Printf("  %-10s %s sessions in %s\n",
			agent, cli.FormatNumber(int64(len(found))), cli.CollapseHome(root))
	}
	if total == 0 {
		fmt.Println("  No session traces found yet. tracekit scans the usual agent")
		fmt.Println("  data dirs (~/.claude, ~/.codex, ...) once they exist.")
	}
	fmt.Println()

	// 1. Default agent
	fmt.Println("  1. Default agent filter")
	fmt.Println("     (1) all [default]")
	fmt.Println("     (2) claude")
	fmt.Println("     (3) opencode")
	fmt.Println("     (4) codex")
	fmt.Println("     (5) pi")
	fmt.Println("     (6) kodo")
	fmt.Print("     > ")
	choice, _ := reader.ReadString('\n')
	switch strings.TrimSpace(choice) {
	case "2":
		cfg.General.DefaultAgent = "claude"
	case "3":
		cfg.General.DefaultAgent = "opencode"
	case "4":
		cfg.General.DefaultAgent = "codex"
	case "5":
		cfg.General.DefaultAgent = "pi"
	case "6":
		cfg.General.DefaultAgent = "kodo"
	default:
		cfg.General.DefaultAgent = "all"
	}
	fmt.Println()

	// 2. Optimization profile
	fmt.Println("  2. Default optimization profile")
	fmt.Println("     Orders findings by what you care about most.")
	fmt.Println("     (1) cost [default]")
	fmt.Println("     (2) latency")
	fmt.Println("     (3) reliability")
	fmt.Print("     > ")
	choice, _ = reader.ReadString('\n')
	switch strings.TrimSpace(choice) {
	case "2":
		cfg.General.DefaultProfile = "latency"
	case "3":
		cfg.General.DefaultProfile = "reliability"
	default:
		cfg.General.DefaultProfile = "cost"
	}
	fmt.Println()

	// 3. Default list length
	fmt.Println("  3. Default session limit for lists and rollups")
	fmt.Println("     (1) 10")
	fmt.Println("     (2) 20 [default]")
	fmt.Println("     (3) 50")
	fmt.Print("     > ")
	choice, _ = reader.ReadString('\n')
	switch strings.TrimSpace(choice) {
	case "1":
		cfg.General.DefaultLimit = 10
	case "3":
		cfg.General.DefaultLimit = 50
	default:
		cfg.General.DefaultLimit = 20
	}
	fmt.Println()

	// 4. Theme
	fmt.Println("  4. Color theme")
	fmt.Println("     (1) Flexoki Dark [default]")
	fmt.Println("     (2) Catppuccin Mocha")
	fmt.Println("     (3) Tokyo Night")
	fmt.Println("     (4) Terminal (ANSI 16)")
	fmt.Print("     > ")
	choice, _ = reader.ReadString('\n')
	switch strings.TrimSpace(choice) {
	case "2":
		cfg.Appearance.Theme = "catppuccin-mocha"
	case "3":
		cfg.Appearance.Theme = "tokyo-night"
	case "4":
		cfg.Appearance.Theme = "terminal"
	default:
		cfg.Appearance.Theme = "flexoki-dark"
	}

	// Save
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `tracekit setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}
