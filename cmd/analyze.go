package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/report"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run inefficiency detectors over sessions",
}

var analyzeSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Analyze one session in depth",
	RunE:  runAnalyzeSession,
}

var analyzeRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Roll up the most recent sessions",
	RunE:  runAnalyzeRecent,
}

var analyzeExpensiveCmd = &cobra.Command{
	Use:   "expensive",
	Short: "Roll up the costliest sessions",
	RunE:  runAnalyzeExpensive,
}

var (
	analyzeSessionID string
	analyzeProfile   string
	analyzeLimit     int
	analyzeTop       int
)

func init() {
	analyzeCmd.PersistentFlags().StringVar(&analyzeProfile, "optimize-for", "", "Finding order (cost, latency, reliability)")

	analyzeSessionCmd.Flags().StringVarP(&analyzeSessionID, "session-id", "s", "", "Session id (a unique prefix is enough)")
	_ = analyzeSessionCmd.MarkFlagRequired("session-id")

	analyzeRecentCmd.Flags().IntVarP(&analyzeLimit, "limit", "l", 0, "Number of recent sessions (default from config)")
	analyzeExpensiveCmd.Flags().IntVar(&analyzeTop, "top", 10, "Number of sessions to keep")

	analyzeCmd.AddCommand(analyzeSessionCmd)
	analyzeCmd.AddCommand(analyzeRecentCmd)
	analyzeCmd.AddCommand(analyzeExpensiveCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyzeSession(cmd *cobra.Command, _ []string) error {
	analysis, catalog, err := findSession(cmd.Context(), analyzeSessionID, analyzeProfile)
	if err != nil {
		return err
	}

	r := report.SessionReport{
		Analysis:    analysis,
		TopTurns:    pipeline.TopTurns(analysis.Session, catalog, 10),
		GeneratedAt: time.Now(),
	}
	fmt.Print(report.SessionText(r))
	return nil
}

func runAnalyzeRecent(cmd *cobra.Command, _ []string) error {
	result, catalog, err := loadData(cmd.Context(), analyzeProfile)
	if err != nil {
		return err
	}

	// Load returns newest-first, so recent is a prefix.
	analyses := result.Analyses
	limit := analyzeLimit
	if limit == 0 {
		limit = defaultLimit()
	}
	if limit > 0 && len(analyses) > limit {
		analyses = analyses[:limit]
	}

	fmt.Print(report.AggregateText(buildAggregateReport(analyses, catalog, 5)))
	if len(analyses) == 0 {
		return errNoMatch()
	}
	return nil
}

func runAnalyzeExpensive(cmd *cobra.Command, _ []string) error {
	result, catalog, err := loadData(cmd.Context(), analyzeProfile)
	if err != nil {
		return err
	}

	analyses := result.Analyses
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].Session.CostUSD > analyses[j].Session.CostUSD
	})
	if analyzeTop > 0 && len(analyses) > analyzeTop {
		analyses = analyses[:analyzeTop]
	}

	fmt.Print(report.AggregateText(buildAggregateReport(analyses, catalog, analyzeTop)))
	if len(analyses) == 0 {
		return errNoMatch()
	}
	return nil
}
