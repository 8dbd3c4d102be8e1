package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/0xKoda/tracekit/internal/pipeline"
	"github.com/0xKoda/tracekit/internal/report"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render session and fleet reports",
}

var reportSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Report on one session",
	RunE:  runReportSession,
}

var reportAggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Report across all matched sessions",
	RunE:  runReportAggregate,
}

var (
	reportSessionID string
	reportFormat    string
	reportOut       string
	reportLimit     int
)

func init() {
	reportCmd.PersistentFlags().StringVarP(&reportFormat, "format", "f", "", "Output format (table, json, html)")
	reportCmd.PersistentFlags().StringVarP(&reportOut, "out", "o", "", "Write output to a file instead of stdout")

	reportSessionCmd.Flags().StringVarP(&reportSessionID, "session-id", "s", "", "Session id (a unique prefix is enough)")
	_ = reportSessionCmd.MarkFlagRequired("session-id")

	reportAggregateCmd.Flags().IntVarP(&reportLimit, "limit", "l", 0, "Cap on sessions included (0 = all matched)")

	reportCmd.AddCommand(reportSessionCmd)
	reportCmd.AddCommand(reportAggregateCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportSession(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	analysis, catalog, err := findSession(cmd.Context(), reportSessionID, "")
	if err != nil {
		return err
	}

	r := report.SessionReport{
		Analysis:    analysis,
		TopTurns:    pipeline.TopTurns(analysis.Session, catalog, 10),
		GeneratedAt: time.Now(),
	}
	out, err := report.Session(r, format)
	if err != nil {
		return err
	}
	return writeOut(out, reportOut, format)
}

func runReportAggregate(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	result, catalog, err := loadData(cmd.Context(), "")
	if err != nil {
		return err
	}

	analyses := result.Analyses
	if reportLimit > 0 && len(analyses) > reportLimit {
		analyses = analyses[:reportLimit]
	}

	out, err := report.Aggregate(buildAggregateReport(analyses, catalog, 10), format)
	if err != nil {
		return err
	}
	if err := writeOut(out, reportOut, format); err != nil {
		return err
	}
	if len(analyses) == 0 {
		return errNoMatch()
	}
	return nil
}

// writeOut routes rendered bytes to --out when set. HTML defaults to a
// file; table and JSON default to stdout.
func writeOut(content []byte, outPath string, format report.Format) error {
	if outPath == "" && format == report.FormatHTML {
		outPath = report.DefaultHTMLName
	}
	if outPath == "" {
		_, err := os.Stdout.Write(content)
		return err
	}

	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(outPath, content, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Printf("\n  Wrote %s\n", outPath)
	return nil
}
