package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/cli"
	"github.com/0xKoda/tracekit/internal/model"
)

// InspectMode selects how much of a transcript the inspect dump keeps.
type InspectMode string

const (
	// InspectAnalysis drops metric/meta noise and consecutive duplicates.
	InspectAnalysis InspectMode = "analysis"
	// InspectForensic keeps every recovered event.
	InspectForensic InspectMode = "forensic"
)

// DefaultInspectPath is where capture --inspect writes when --out is
// omitted.
func DefaultInspectPath(sessionID string) string {
	return filepath.Join("inspect-traces", "tracekit-inspect-"+sessionID+".md")
}

// Payload keys whose values never belong in a shareable dump.
var redactedKeys = map[string]bool{
	"base_instructions":      true,
	"user_instructions":      true,
	"developer_instructions": true,
	"encrypted_content":      true,
	"signature":              true,
}

type inspectEntry struct {
	turn  int
	ts    time.Time
	label string
	title string
	body  string
	meta  []string
}

// Inspect renders a markdown transcript of one session. Analysis mode
// filters noise and deduplicates; forensic mode keeps everything.
func Inspect(s *model.Session, mode InspectMode) []byte {
	raw := inspectEntries(s)

	entries := raw
	droppedNoise, droppedDupes := 0, 0
	if mode != InspectForensic {
		entries, droppedNoise = dropNoise(entries)
		entries, droppedDupes = dropConsecutiveDuplicates(entries)
	}

	return renderInspect(s, mode, entries, len(raw), droppedNoise, droppedDupes)
}

func inspectEntries(s *model.Session) []inspectEntry {
	var out []inspectEntry
	for ti := range s.Turns {
		t := &s.Turns[ti]
		for ei := range t.Events {
			ev := &t.Events[ei]
			e := inspectEntry{turn: ti, ts: ev.Timestamp}

			switch ev.Kind {
			case model.EventText:
				e.label = roleLabel(ev.Role)
				e.title = roleTitle(ev.Role)
				e.body = cli.Truncate(ev.Text, 8000)
			case model.EventToolCall:
				e.label = "TOOL_CALL"
				e.title = "Tool call: " + ev.Call.Name
				e.body = cli.Truncate(redactJSON(ev.Call.Arguments), 2000)
				e.meta = append(e.meta, "tool_id="+orDash(ev.Call.ID))
			case model.EventToolResult:
				e.label = "TOOL_RESULT"
				e.title = "Tool result (" + orDash(ev.Result.CallID) + ")"
				e.body = cli.Truncate(ev.Result.ContentPreview, 4000)
				e.meta = append(e.meta, fmt.Sprintf("is_error=%t", ev.Result.IsError))
			case model.EventUsage:
				e.label = "METRICS"
				e.title = "Token usage"
				e.body = usageBody(ev.Usage)
			case model.EventMeta:
				e.label, e.title = metaHeading(ev.Meta.Kind)
				e.body = cli.Truncate(redactJSON(ev.Meta.Payload), 1500)
			default:
				continue
			}

			if ev.Sidechain {
				e.meta = append(e.meta, "sidechain=true")
			}
			out = append(out, e)
		}
	}
	return out
}

func roleLabel(r model.Role) string {
	return strings.ToUpper(strings.ReplaceAll(string(r), "-", "_"))
}

func roleTitle(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "User prompt"
	case model.RoleAssistant:
		return "Assistant reply"
	case model.RoleSystem:
		return "System note"
	case model.RoleSidechain:
		return "Sidechain text"
	case model.RoleToolResult:
		return "Tool output"
	default:
		return "Message"
	}
}

func metaHeading(kind string) (label, title string) {
	switch kind {
	case model.MetaSummary:
		return "SYSTEM", "Session summary"
	case model.MetaSystem:
		return "SYSTEM", "System event"
	case model.MetaSidechainStart:
		return "EVENT", "Sidechain start"
	case model.MetaSidechainEnd:
		return "EVENT", "Sidechain end"
	default:
		return "EVENT", "Event: " + kind
	}
}

func usageBody(u *model.UsageRecord) string {
	body := fmt.Sprintf("input=%d output=%d cache_read=%d cache_write=%d",
		u.Tokens.Input, u.Tokens.Output, u.Tokens.CacheRead, u.Tokens.CacheWrite)
	if u.ModelID != "" {
		body += " model=" + u.ModelID
	}
	if u.CostUSD != nil {
		body += fmt.Sprintf(" cost_usd=%.6f", *u.CostUSD)
	}
	return body
}

// redactJSON compacts a raw payload, blanking sensitive keys and capping
// long strings. Unparseable payloads pass through as-is.
func redactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func redactValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			if redactedKeys[k] {
				x[k] = "[omitted]"
				continue
			}
			x[k] = redactValue(val)
		}
		return x
	case []any:
		for i := range x {
			x[i] = redactValue(x[i])
		}
		return x
	case string:
		return cli.Truncate(x, 1000)
	default:
		return v
	}
}

func dropNoise(entries []inspectEntry) ([]inspectEntry, int) {
	var kept []inspectEntry
	dropped := 0
	for _, e := range entries {
		if e.label == "METRICS" || e.label == "EVENT" {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}

func dropConsecutiveDuplicates(entries []inspectEntry) ([]inspectEntry, int) {
	var kept []inspectEntry
	dropped := 0
	for _, e := range entries {
		if len(kept) > 0 && sameEntry(kept[len(kept)-1], e) {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}

// sameEntry matches vendor double-reporting: the same content surfaced
// through two trace channels back to back.
func sameEntry(a, b inspectEntry) bool {
	return a.label == b.label && a.title == b.title &&
		normalizeBody(a.body) == normalizeBody(b.body)
}

func normalizeBody(body string) string {
	return strings.Join(strings.Fields(body), " ")
}

func renderInspect(s *model.Session, mode InspectMode, entries []inspectEntry, raw, droppedNoise, droppedDupes int) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# tracekit inspect: %s\n\n", s.ID)
	fmt.Fprintf(&b, "- mode: `%s`\n", mode)
	fmt.Fprintf(&b, "- agent: `%s`\n", s.Agent)
	fmt.Fprintf(&b, "- source: `%s`\n", s.Path)
	fmt.Fprintf(&b, "- cwd: `%s`\n", orDash(s.CWD))
	fmt.Fprintf(&b, "- started: `%s`\n", inspectTime(s.StartedAt))
	fmt.Fprintf(&b, "- entries: `%d`\n\n", len(entries))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- raw entries: `%d`\n", raw)
	fmt.Fprintf(&b, "- rendered entries: `%d`\n", len(entries))
	fmt.Fprintf(&b, "- dropped (noise): `%d`\n", droppedNoise)
	fmt.Fprintf(&b, "- dropped (duplicates): `%d`\n", droppedDupes)

	calls, results, errors := toolCounts(entries)
	fmt.Fprintf(&b, "- tools: calls=`%d`, results=`%d`, errors=`%d`\n", calls, results, errors)
	fmt.Fprintf(&b, "- labels: `%s`\n\n", labelCounts(entries))

	if len(s.Warnings) > 0 {
		b.WriteString("## Ingest Warnings\n\n")
		for _, w := range s.Warnings {
			if w.Line > 0 {
				fmt.Fprintf(&b, "- line %d: %s\n", w.Line, w.Message)
			} else {
				fmt.Fprintf(&b, "- %s\n", w.Message)
			}
		}
		b.WriteString("\n")
	}

	for i, e := range entries {
		fmt.Fprintf(&b, "## %04d. %s %s (turn %d, %s)\n\n",
			i+1, e.label, e.title, e.turn, inspectTime(e.ts))
		if e.body != "" {
			b.WriteString("```text\n")
			b.WriteString(e.body)
			b.WriteString("\n```\n\n")
		}
		if len(e.meta) > 0 {
			fmt.Fprintf(&b, "metadata: `%s`\n\n", strings.Join(e.meta, ", "))
		}
	}

	return b.Bytes()
}

func toolCounts(entries []inspectEntry) (calls, results, errors int) {
	for _, e := range entries {
		switch e.label {
		case "TOOL_CALL":
			calls++
		case "TOOL_RESULT":
			results++
			for _, m := range e.meta {
				if m == "is_error=true" {
					errors++
				}
			}
		}
	}
	return calls, results, errors
}

// labelCounts renders "LABEL=n" pairs, most frequent first.
func labelCounts(entries []inspectEntry) string {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.label]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%d", l, counts[l])
	}
	return strings.Join(parts, ", ")
}

func inspectTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
