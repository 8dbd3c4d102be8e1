package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/report"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered sessions",
}

var listSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session list with costs and finding counts",
	RunE:  runListSessions,
}

var (
	listLimit  int
	listSort   string
	listFormat string
)

func init() {
	listSessionsCmd.Flags().IntVarP(&listLimit, "limit", "l", 0, "Number of sessions to show (default from config)")
	listSessionsCmd.Flags().StringVar(&listSort, "sort", "date", "Sort order (date, cost, msgs, agent)")
	listSessionsCmd.Flags().StringVarP(&listFormat, "format", "f", "", "Output format (table, json)")
	listCmd.AddCommand(listSessionsCmd)
	rootCmd.AddCommand(listCmd)
}

func runListSessions(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(listFormat)
	if err != nil {
		return err
	}
	if format == report.FormatHTML {
		return fmt.Errorf("format %q not supported for session lists", format)
	}

	result, _, err := loadData(cmd.Context(), "")
	if err != nil {
		return err
	}
	analyses := result.Analyses

	if err := sortSessions(analyses, listSort); err != nil {
		return err
	}

	limit := listLimit
	if limit == 0 {
		limit = defaultLimit()
	}
	if limit > 0 && len(analyses) > limit {
		analyses = analyses[:limit]
	}

	out, err := report.SessionList(analyses, format)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(out); err != nil {
		return err
	}

	if len(analyses) == 0 {
		return errNoMatch()
	}
	return nil
}

// sortSessions reorders in place. Load already returns newest-first, so
// date is a no-op.
func sortSessions(analyses []pipeline.Analysis, order string) error {
	switch order {
	case "", "date":
		return nil
	case "cost":
		sort.SliceStable(analyses, func(i, j int) bool {
			return analyses[i].Session.CostUSD > analyses[j].Session.CostUSD
		})
	case "msgs", "messages":
		sort.SliceStable(analyses, func(i, j int) bool {
			return len(analyses[i].Session.Turns) > len(analyses[j].Session.Turns)
		})
	case "agent":
		sort.SliceStable(analyses, func(i, j int) bool {
			return analyses[i].Session.Agent < analyses[j].Session.Agent
		})
	default:
		return fmt.Errorf("unknown sort %q (want date, cost, msgs, or agent)", order)
	}
	return nil
}
