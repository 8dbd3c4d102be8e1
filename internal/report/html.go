package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/model"
)

// SessionHTML renders one analyzed session as a self-contained dark-theme
// document: KPI grid, session metadata, top expensive turns, and findings.
func SessionHTML(r SessionReport) ([]byte, error) {
	s := r.Analysis.Session
	waste := totalWaste(r.Analysis.Findings)

	findingsClass := "success"
	if len(r.Analysis.Findings) > 0 {
		findingsClass = "danger"
	}

	turns := make([]htmlTurnRow, 0, len(r.TopTurns))
	for _, tc := range r.TopTurns {
		turns = append(turns, htmlTurnRow{
			Turn:    tc.Turn,
			Role:    string(tc.Role),
			Cost:    htmlCost(tc.CostUSD),
			Input:   cli.FormatTokens(tc.Usage.Input),
			Output:  cli.FormatTokens(tc.Usage.Output),
			Preview: tc.Preview,
		})
	}

	data := htmlSessionData{
		SessionID:     s.ID,
		Agent:         string(s.Agent),
		TotalCost:     htmlCost(s.CostUSD),
		Waste:         htmlWaste(waste),
		WasteClass:    wasteClass(waste),
		Messages:      cli.FormatNumber(int64(len(s.Turns))),
		InputTokens:   cli.FormatTokens(s.Usage.Input),
		OutputTokens:  cli.FormatTokens(s.Usage.Output),
		Duration:      cli.FormatDuration(int64(s.Duration().Seconds())),
		FindingCount:  len(r.Analysis.Findings),
		FindingsClass: findingsClass,
		Model:         orDash(s.Model),
		CWD:           orDash(s.CWD),
		Started:       cli.FormatTime(s.StartedAt),
		Source:        s.Path,
		TopTurns:      turns,
		Findings:      htmlFindingRows(r.Analysis.Findings),
		Generated:     htmlTime(r.GeneratedAt),
	}

	var buf bytes.Buffer
	if err := sessionTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AggregateHTML renders the fleet rollup as a self-contained document.
func AggregateHTML(r AggregateReport) ([]byte, error) {
	agg := r.Aggregate

	kinds := make([]htmlKindRow, 0, len(agg.ByKind))
	for _, kb := range agg.ByKind {
		kinds = append(kinds, htmlKindRow{
			Kind:   string(kb.Kind),
			Count:  kb.Count,
			Tokens: cli.FormatTokens(kb.WastedTokens),
			Cost:   htmlWaste(kb.WastedCostUSD),
		})
	}

	rows := make([]htmlSessionRow, 0, len(agg.TopSessions))
	for _, a := range agg.TopSessions {
		s := a.Session
		rows = append(rows, htmlSessionRow{
			Agent:    string(s.Agent),
			ID:       cli.Truncate(s.ID, 36),
			Cost:     htmlCost(s.CostUSD),
			Waste:    htmlWaste(totalWaste(a.Findings)),
			CWD:      orDash(s.CWD),
			Started:  cli.FormatTime(s.StartedAt),
			Messages: len(s.Turns),
		})
	}

	data := htmlAggregateData{
		TotalCost:    fmt.Sprintf("$%.4f", agg.CostUSD),
		Waste:        fmt.Sprintf("~$%.2f", agg.WastedCostUSD),
		SessionCount: agg.Sessions,
		Messages:     cli.FormatNumber(int64(agg.Turns)),
		FindingCount: agg.Findings,
		Kinds:        kinds,
		Rows:         rows,
		Generated:    htmlTime(r.GeneratedAt),
	}

	var buf bytes.Buffer
	if err := aggregateTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type htmlSessionData struct {
	SessionID     string
	Agent         string
	TotalCost     string
	Waste         string
	WasteClass    string
	Messages      string
	InputTokens   string
	OutputTokens  string
	Duration      string
	FindingCount  int
	FindingsClass string
	Model         string
	CWD           string
	Started       string
	Source        string
	TopTurns      []htmlTurnRow
	Findings      []htmlFindingRow
	Generated     string
}

type htmlTurnRow struct {
	Turn    int
	Role    string
	Cost    string
	Input   string
	Output  string
	Preview string
}

type htmlFindingRow struct {
	Kind       string
	Message    string
	Waste      string
	Confidence string
	Evidence   string
}

type htmlAggregateData struct {
	TotalCost    string
	Waste        string
	SessionCount int
	Messages     string
	FindingCount int
	Kinds        []htmlKindRow
	Rows         []htmlSessionRow
	Generated    string
}

type htmlKindRow struct {
	Kind   string
	Count  int
	Tokens string
	Cost   string
}

type htmlSessionRow struct {
	Agent    string
	ID       string
	Cost     string
	Waste    string
	CWD      string
	Started  string
	Messages int
}

func htmlFindingRows(findings []model.Finding) []htmlFindingRow {
	rows := make([]htmlFindingRow, 0, len(findings))
	for _, f := range findings {
		waste := ""
		switch {
		case f.WastedCostUSD > 0:
			waste = fmt.Sprintf("~$%.4f wasted", f.WastedCostUSD)
		case f.WastedTokens > 0:
			waste = "~" + cli.FormatTokens(f.WastedTokens) + " tok wasted"
		}
		rows = append(rows, htmlFindingRow{
			Kind:       string(f.Kind),
			Message:    f.Message,
			Waste:      waste,
			Confidence: cli.FormatConfidence(f.Confidence),
			Evidence:   evidenceList(f.EvidenceTurns),
		})
	}
	return rows
}

func htmlCost(c float64) string {
	if c == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.4f", c)
}

func htmlWaste(c float64) string {
	if c <= 0 {
		return "-"
	}
	return fmt.Sprintf("~$%.2f", c)
}

// wasteClass picks the KPI hue: danger from five dollars, warn above zero.
func wasteClass(c float64) string {
	switch {
	case c >= 5:
		return "danger"
	case c > 0:
		return "warn"
	default:
		return "muted"
	}
}

func htmlTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var sessionTmpl = template.Must(template.New("session").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>tracekit · {{.SessionID}}</title>
<link rel="preconnect" href="https://fonts.googleapis.com">
<link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
<link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&family=JetBrains+Mono:wght@400;500;700&display=swap" rel="stylesheet">
<style>
  :root {
    --bg:        #07080e;
    --surface:   #0d0f1a;
    --surface-2: #121520;
    --border:    #1c2035;
    --border-2:  #252942;

    --text:      #dde3f0;
    --text-2:    #8892aa;
    --text-3:    #4a5270;

    --accent:    #6366f1;
    --success:   #34d399;
    --warn:      #f59e0b;
    --danger:    #f87171;
    --info:      #38bdf8;

    --warn-dim:    rgba(245,158,11,0.12);
    --danger-dim:  rgba(248,113,113,0.14);
    --accent-dim2: rgba(99,102,241,0.10);

    --font-ui:   'Inter', system-ui, sans-serif;
    --font-mono: 'JetBrains Mono', 'Fira Code', monospace;
    --radius-lg: 10px;
  }

  * { box-sizing: border-box; margin: 0; padding: 0; }
  html { font-size: 14px; }
  body {
    background: var(--bg);
    color: var(--text);
    font-family: var(--font-ui);
    min-height: 100vh;
    line-height: 1.5;
  }

  .header {
    background: var(--surface);
    border-bottom: 1px solid var(--border);
    padding: 1rem 2rem;
    display: flex;
    align-items: center;
    gap: 0.875rem;
  }
  .header-logo {
    font-family: var(--font-mono);
    font-size: 1rem;
    font-weight: 700;
    color: var(--accent);
    letter-spacing: -0.01em;
  }
  .header-sep { color: var(--border-2); }
  .badge {
    display: inline-flex;
    align-items: center;
    padding: 0.15rem 0.5rem;
    border-radius: 4px;
    font-family: var(--font-mono);
    font-size: 0.7rem;
    font-weight: 500;
    letter-spacing: 0.02em;
    background: var(--accent-dim2);
    color: var(--accent);
    border: 1px solid rgba(99,102,241,0.2);
  }
  .session-id {
    font-family: var(--font-mono);
    font-size: 0.75rem;
    color: var(--text-3);
  }

  .container {
    max-width: 1080px;
    margin: 0 auto;
    padding: 1.75rem 2rem;
  }

  .kpi-grid {
    display: grid;
    grid-template-columns: repeat(auto-fit, minmax(160px, 1fr));
    gap: 0.75rem;
    margin-bottom: 1.5rem;
  }
  .kpi {
    background: var(--surface);
    border: 1px solid var(--border);
    border-radius: var(--radius-lg);
    padding: 1.125rem 1.25rem;
    position: relative;
    overflow: hidden;
  }
  .kpi-label {
    font-size: 0.65rem;
    font-weight: 600;
    text-transform: uppercase;
    letter-spacing: 0.1em;
    color: var(--text-3);
    margin-bottom: 0.5rem;
  }
  .kpi-value {
    font-family: var(--font-mono);
    font-size: 1.5rem;
    font-weight: 700;
    line-height: 1;
    color: var(--text);
  }
  .kpi-value.success { color: var(--success); }
  .kpi-value.warn    { color: var(--warn); }
  .kpi-value.danger  { color: var(--danger); }
  .kpi-value.info    { color: var(--info); }
  .kpi-value.muted   { color: var(--text-2); }

  .kpi.kpi-waste {
    border-color: rgba(248,113,113,0.25);
    background: linear-gradient(135deg, rgba(248,113,113,0.06) 0%, var(--surface) 60%);
  }

  .section {
    background: var(--surface);
    border: 1px solid var(--border);
    border-radius: var(--radius-lg);
    margin-bottom: 1rem;
    overflow: hidden;
  }
  .section-header {
    padding: 0.75rem 1.25rem;
    border-bottom: 1px solid var(--border);
    font-size: 0.65rem;
    font-weight: 600;
    text-transform: uppercase;
    letter-spacing: 0.1em;
    color: var(--text-3);
    background: var(--surface-2);
  }

  .meta-grid {
    display: grid;
    grid-template-columns: 120px 1fr;
    gap: 0;
    padding: 0.25rem 0;
  }
  .meta-grid dt, .meta-grid dd {
    padding: 0.35rem 1.25rem;
    font-size: 0.8rem;
    line-height: 1.4;
  }
  .meta-grid dt {
    color: var(--text-3);
    font-weight: 500;
  }
  .meta-grid dd {
    color: var(--text-2);
    font-family: var(--font-mono);
    font-size: 0.75rem;
    word-break: break-all;
  }

  table { width: 100%; border-collapse: collapse; }
  th, td {
    padding: 0.5rem 1.25rem;
    text-align: left;
    border-bottom: 1px solid var(--border);
    font-size: 0.82rem;
  }
  th {
    font-size: 0.65rem;
    font-weight: 600;
    text-transform: uppercase;
    letter-spacing: 0.08em;
    color: var(--text-3);
    background: var(--surface-2);
  }
  tr:last-child td { border-bottom: none; }
  tbody tr:hover td { background: rgba(99,102,241,0.04); }
  td.mono { font-family: var(--font-mono); font-size: 0.78rem; }
  td.success { color: var(--success); font-family: var(--font-mono); }

  .finding {
    padding: 0.875rem 1.25rem;
    border-bottom: 1px solid var(--border);
    display: grid;
    gap: 0.3rem;
  }
  .finding:last-child { border-bottom: none; }
  .finding-top {
    display: flex;
    align-items: baseline;
    flex-wrap: wrap;
    gap: 0.5rem;
  }
  .finding-kind {
    display: inline-block;
    padding: 0.1rem 0.45rem;
    border-radius: 3px;
    font-family: var(--font-mono);
    font-size: 0.68rem;
    font-weight: 700;
    letter-spacing: 0.04em;
    background: var(--danger-dim);
    color: var(--danger);
    border: 1px solid rgba(248,113,113,0.18);
    flex-shrink: 0;
  }
  .finding-desc {
    font-size: 0.87rem;
    color: var(--text);
    flex: 1;
  }
  .waste-pill {
    display: inline-flex;
    align-items: center;
    gap: 0.3rem;
    padding: 0.1rem 0.5rem;
    border-radius: 20px;
    font-family: var(--font-mono);
    font-size: 0.72rem;
    font-weight: 700;
    background: var(--warn-dim);
    color: var(--warn);
    border: 1px solid rgba(245,158,11,0.2);
    white-space: nowrap;
  }
  .finding-meta {
    font-size: 0.72rem;
    color: var(--text-3);
    font-family: var(--font-mono);
  }
  .no-findings {
    padding: 1.25rem;
    color: var(--success);
    font-size: 0.875rem;
  }
  .empty {
    padding: 1.25rem;
    color: var(--text-3);
    font-size: 0.85rem;
  }

  footer {
    text-align: center;
    padding: 2rem;
    color: var(--text-3);
    font-size: 0.72rem;
    font-family: var(--font-mono);
  }
</style>
</head>
<body>
<div class="header">
  <span class="header-logo">tracekit</span>
  <span class="header-sep">/</span>
  <span class="badge">{{.Agent}}</span>
  <span class="session-id">{{.SessionID}}</span>
</div>
<div class="container">

  <div class="kpi-grid">
    <div class="kpi">
      <div class="kpi-label">Total Cost</div>
      <div class="kpi-value success">{{.TotalCost}}</div>
    </div>
    <div class="kpi kpi-waste">
      <div class="kpi-label">Identified Waste</div>
      <div class="kpi-value {{.WasteClass}}">{{.Waste}}</div>
    </div>
    <div class="kpi">
      <div class="kpi-label">Messages</div>
      <div class="kpi-value info">{{.Messages}}</div>
    </div>
    <div class="kpi">
      <div class="kpi-label">Input Tokens</div>
      <div class="kpi-value">{{.InputTokens}}</div>
    </div>
    <div class="kpi">
      <div class="kpi-label">Output Tokens</div>
      <div class="kpi-value">{{.OutputTokens}}</div>
    </div>
    <div class="kpi">
      <div class="kpi-label">Duration</div>
      <div class="kpi-value warn">{{.Duration}}</div>
    </div>
    <div class="kpi">
      <div class="kpi-label">Findings</div>
      <div class="kpi-value {{.FindingsClass}}">{{.FindingCount}}</div>
    </div>
  </div>

  <div class="section">
    <div class="section-header">Session</div>
    <dl class="meta-grid">
      <dt>Agent</dt><dd>{{.Agent}}</dd>
      <dt>Model</dt><dd>{{.Model}}</dd>
      <dt>CWD</dt><dd>{{.CWD}}</dd>
      <dt>Started</dt><dd>{{.Started}}</dd>
      <dt>Source</dt><dd>{{.Source}}</dd>
    </dl>
  </div>

  <div class="section">
    <div class="section-header">Top Expensive Turns</div>
    {{if .TopTurns}}<table>
      <thead><tr>
        <th>Turn</th><th>Role</th><th>Cost</th><th>Input</th><th>Output</th><th>Preview</th>
      </tr></thead>
      <tbody>
        {{range .TopTurns}}<tr>
          <td class="mono">#{{.Turn}}</td>
          <td class="mono">{{.Role}}</td>
          <td class="success">{{.Cost}}</td>
          <td class="mono">{{.Input}}</td>
          <td class="mono">{{.Output}}</td>
          <td>{{.Preview}}</td>
        </tr>
        {{end}}</tbody>
    </table>{{else}}<div class="empty">No cost data available.</div>{{end}}
  </div>

  <div class="section">
    <div class="section-header">Inefficiency Findings</div>
    {{if .Findings}}{{range .Findings}}<div class="finding">
      <div class="finding-top">
        <span class="finding-kind">{{.Kind}}</span>
        <span class="finding-desc">{{.Message}}</span>
        {{if .Waste}}<span class="waste-pill">{{.Waste}}</span>{{end}}
      </div>
      <div class="finding-meta">confidence {{.Confidence}} &middot; turns {{.Evidence}}</div>
    </div>
    {{end}}{{else}}<div class="no-findings">No inefficiencies detected</div>{{end}}
  </div>

</div>
<footer>tracekit &middot; {{.Generated}}</footer>
</body>
</html>
`))

var aggregateTmpl = template.Must(template.New("aggregate").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>tracekit · Aggregate Report</title>
<link rel="preconnect" href="https://fonts.googleapis.com">
<link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
<link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&family=JetBrains+Mono:wght@400;500;700&display=swap" rel="stylesheet">
<style>
  :root {
    --bg:#07080e; --surface:#0d0f1a; --surface-2:#121520;
    --border:#1c2035; --border-2:#252942;
    --text:#dde3f0; --text-2:#8892aa; --text-3:#4a5270;
    --accent:#6366f1; --success:#34d399; --warn:#f59e0b;
    --danger:#f87171; --info:#38bdf8;
    --font-ui:'Inter',system-ui,sans-serif;
    --font-mono:'JetBrains Mono','Fira Code',monospace;
    --radius-lg:10px;
  }
  *{box-sizing:border-box;margin:0;padding:0}
  html{font-size:14px}
  body{background:var(--bg);color:var(--text);font-family:var(--font-ui);min-height:100vh;line-height:1.5}
  .header{background:var(--surface);border-bottom:1px solid var(--border);padding:1rem 2rem;display:flex;align-items:center;gap:.875rem}
  .header-logo{font-family:var(--font-mono);font-size:1rem;font-weight:700;color:var(--accent)}
  .container{max-width:1200px;margin:0 auto;padding:1.75rem 2rem}
  .kpi-grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(160px,1fr));gap:.75rem;margin-bottom:1.5rem}
  .kpi{background:var(--surface);border:1px solid var(--border);border-radius:var(--radius-lg);padding:1.125rem 1.25rem}
  .kpi-label{font-size:.65rem;font-weight:600;text-transform:uppercase;letter-spacing:.1em;color:var(--text-3);margin-bottom:.5rem}
  .kpi-value{font-family:var(--font-mono);font-size:1.5rem;font-weight:700;line-height:1}
  .kpi.kpi-waste{border-color:rgba(248,113,113,.25);background:linear-gradient(135deg,rgba(248,113,113,.06) 0%,var(--surface) 60%)}
  .section{background:var(--surface);border:1px solid var(--border);border-radius:var(--radius-lg);margin-bottom:1rem;overflow:hidden}
  .section-header{padding:.75rem 1.25rem;border-bottom:1px solid var(--border);font-size:.65rem;font-weight:600;text-transform:uppercase;letter-spacing:.1em;color:var(--text-3);background:var(--surface-2)}
  table{width:100%;border-collapse:collapse}
  th,td{padding:.5rem 1.25rem;text-align:left;border-bottom:1px solid var(--border);font-size:.82rem}
  th{font-size:.65rem;font-weight:600;text-transform:uppercase;letter-spacing:.08em;color:var(--text-3);background:var(--surface-2)}
  tr:last-child td{border-bottom:none}
  tbody tr:hover td{background:rgba(99,102,241,.04)}
  td.mono{font-family:var(--font-mono);font-size:.78rem}
  td.success{color:var(--success);font-family:var(--font-mono)}
  td.danger{color:var(--danger);font-family:var(--font-mono)}
  footer{text-align:center;padding:2rem;color:var(--text-3);font-size:.72rem;font-family:var(--font-mono)}
</style>
</head>
<body>
<div class="header"><span class="header-logo">tracekit</span><span style="color:var(--border-2)">/</span><span style="color:var(--text-3);font-size:.8rem">aggregate report</span></div>
<div class="container">
  <div class="kpi-grid">
    <div class="kpi"><div class="kpi-label">Total Cost</div><div class="kpi-value" style="color:var(--success)">{{.TotalCost}}</div></div>
    <div class="kpi kpi-waste"><div class="kpi-label">Identified Waste</div><div class="kpi-value" style="color:var(--danger)">{{.Waste}}</div></div>
    <div class="kpi"><div class="kpi-label">Sessions</div><div class="kpi-value" style="color:var(--info)">{{.SessionCount}}</div></div>
    <div class="kpi"><div class="kpi-label">Messages</div><div class="kpi-value">{{.Messages}}</div></div>
    <div class="kpi"><div class="kpi-label">Findings</div><div class="kpi-value" style="color:var(--warn)">{{.FindingCount}}</div></div>
  </div>
  {{if .Kinds}}<div class="section">
    <div class="section-header">Findings by Kind</div>
    <table>
      <thead><tr><th>Kind</th><th>Count</th><th>Wasted Tokens</th><th>Wasted Cost</th></tr></thead>
      <tbody>{{range .Kinds}}<tr>
        <td class="mono">{{.Kind}}</td>
        <td class="mono">{{.Count}}</td>
        <td class="mono">{{.Tokens}}</td>
        <td class="danger">{{.Cost}}</td>
      </tr>
      {{end}}</tbody>
    </table>
  </div>{{end}}
  <div class="section">
    <div class="section-header">Sessions</div>
    <table>
      <thead><tr>
        <th>Agent</th><th>Session ID</th><th>Cost</th><th>Waste</th>
        <th>CWD</th><th>Started</th><th>Messages</th>
      </tr></thead>
      <tbody>{{range .Rows}}<tr>
        <td>{{.Agent}}</td>
        <td class="mono">{{.ID}}</td>
        <td class="success">{{.Cost}}</td>
        <td class="danger">{{.Waste}}</td>
        <td>{{.CWD}}</td>
        <td>{{.Started}}</td>
        <td>{{.Messages}}</td>
      </tr>
      {{end}}</tbody>
    </table>
  </div>
</div>
<footer>tracekit &middot; {{.Generated}}</footer>
</body>
</html>
`))
