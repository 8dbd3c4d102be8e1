// Package report renders analyses as terminal tables, stable JSON, and
// self-contained HTML documents, plus markdown transcript dumps of single
// sessions. Renderers consume immutable values and return bytes; routing
// them to stdout or a file is the caller's business.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatHTML  Format = "html"
)

// DefaultHTMLName is the output filename when --out is omitted for HTML.
const DefaultHTMLName = "report.html"

// ParseFormat resolves a --format flag value. Empty selects the table view.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json, or html)", s)
	}
}

// SessionReport carries everything the single-session renderers need.
type SessionReport struct {
	Analysis    pipeline.Analysis
	TopTurns    []pipeline.TurnCost
	GeneratedAt time.Time
}

// AggregateReport carries the fleet rollup and its cost splits.
type AggregateReport struct {
	Aggregate   pipeline.Aggregate
	Split       pipeline.CostSplit
	Models      []pipeline.ModelCostRow
	GeneratedAt time.Time
}

// Session renders one analyzed session in the requested format.
func Session(r SessionReport, f Format) ([]byte, error) {
	switch f {
	case FormatTable:
		return []byte(SessionText(r)), nil
	case FormatJSON:
		return SessionJSON(r)
	case FormatHTML:
		return SessionHTML(r)
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// Aggregate renders the fleet rollup in the requested format.
func Aggregate(r AggregateReport, f Format) ([]byte, error) {
	switch f {
	case FormatTable:
		return []byte(AggregateText(r)), nil
	case FormatJSON:
		return AggregateJSON(r)
	case FormatHTML:
		return AggregateHTML(r)
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// SessionList renders the sessions listing. HTML has no list view.
func SessionList(analyses []pipeline.Analysis, f Format) ([]byte, error) {
	switch f {
	case FormatTable:
		return []byte(SessionListText(analyses)), nil
	case FormatJSON:
		return SessionListJSON(analyses)
	default:
		return nil, fmt.Errorf("format %q not supported for session lists", f)
	}
}

// totalWaste sums the attributed wasted cost across findings.
func totalWaste(findings []model.Finding) float64 {
	var sum float64
	for _, f := range findings {
		sum += f.WastedCostUSD
	}
	return sum
}
