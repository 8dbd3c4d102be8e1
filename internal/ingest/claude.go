package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
)

// claudeEntry is one line of a Claude Code session file.
type claudeEntry struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"sessionId,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Cwd         string         `json:"cwd,omitempty"`
	IsSidechain bool           `json:"isSidechain,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Message     *claudeMessage `json:"message,omitempty"`
}

// claudeMessage is the API message envelope on user and assistant lines.
type claudeMessage struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role,omitempty"`
	Model   string          `json:"model,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Usage   *claudeUsage    `json:"usage,omitempty"`
}

// claudeUsage holds token counts from the API response.
type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

func (u *claudeUsage) tokens() model.Usage {
	return model.Usage{
		Input:      u.InputTokens,
		Output:     u.OutputTokens,
		CacheRead:  u.CacheReadInputTokens,
		CacheWrite: u.CacheCreationInputTokens,
	}
}

// claudeBlock is one content block inside a message. tool_use blocks live on
// assistant messages; tool_result blocks on user messages.
type claudeBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

type claudeState struct {
	raw        *rawSession
	valid      int
	firstBad   int
	firstValid int
	recognized int
	usageSeen  map[string]bool
}

// parseClaude ingests a Claude Code JSONL session. Subagent transcripts
// stored under <session>/subagents/ fold into the parent session as
// sidechain turns, one turn group per transcript file.
func (p *Parser) parseClaude(ctx context.Context, path string) (*model.Session, error) {
	raw := rawSession{}
	st := claudeState{raw: &raw}

	if err := st.parseFile(ctx, path, false); err != nil {
		return nil, err
	}
	if st.valid == 0 {
		if st.firstBad > 0 {
			return nil, errCorrupt(path, st.firstBad)
		}
		return nil, errEmpty(path)
	}
	if st.recognized == 0 {
		return nil, errSchema(path, st.firstValid, "no claude entries found")
	}

	if err := st.absorbSubagents(ctx, path); err != nil {
		return nil, err
	}
	return p.build(model.AgentClaude, path, raw)
}

func (st *claudeState) parseFile(ctx context.Context, path string, sidechain bool) error {
	return forEachLine(ctx, path, func(lineNo int, data []byte) error {
		st.handleLine(lineNo, data, sidechain)
		return nil
	})
}

// absorbSubagents appends sidechain events from <stem>/subagents/*.jsonl.
// An unreadable transcript degrades to a warning; only cancellation aborts.
func (st *claudeState) absorbSubagents(ctx context.Context, path string) error {
	dir := filepath.Join(strings.TrimSuffix(path, ".jsonl"), "subagents")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		marker, _ := json.Marshal(map[string]string{"transcript": name})
		ev := model.NewMeta(model.RoleSidechain, time.Time{}, model.MetaSidechainStart, marker)
		ev.Sidechain = true
		st.raw.events = append(st.raw.events, ev)

		sub := filepath.Join(dir, name)
		if err := st.parseFile(ctx, sub, true); err != nil {
			var ie *Error
			if errors.As(err, &ie) && ie.Kind == ErrCancelled {
				return err
			}
			st.raw.warnf(0, "skipping subagent transcript %s: %v", name, err)
		}

		end := model.NewMeta(model.RoleSidechain, time.Time{}, model.MetaSidechainEnd, nil)
		end.Sidechain = true
		st.raw.events = append(st.raw.events, end)
	}
	return nil
}

func (st *claudeState) handleLine(lineNo int, data []byte, sidechain bool) {
	var entry claudeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		if st.firstBad == 0 {
			st.firstBad = lineNo
		}
		st.raw.warnf(lineNo, "skipping malformed line")
		return
	}
	st.valid++
	if st.firstValid == 0 {
		st.firstValid = lineNo
	}

	if !sidechain {
		if st.raw.id == "" && entry.SessionID != "" {
			st.raw.id = entry.SessionID
		}
		if st.raw.cwd == "" && entry.Cwd != "" {
			st.raw.cwd = entry.Cwd
		}
	}

	ts := parseClaudeTime(entry.Timestamp)
	side := sidechain || entry.IsSidechain

	switch entry.Type {
	case "summary":
		st.recognized++
		if st.raw.title == "" && entry.Summary != "" {
			st.raw.title = entry.Summary
		}

	case "user":
		st.recognized++
		if entry.Message == nil {
			st.raw.warnf(lineNo, "user line without message")
			return
		}
		st.userEvents(ts, side, entry.Message)

	case "assistant":
		st.recognized++
		if entry.Message == nil {
			st.raw.warnf(lineNo, "assistant line without message")
			return
		}
		st.assistantEvents(ts, side, entry.Message)

	case "system":
		st.recognized++
		st.emit(model.NewMeta(model.RoleSystem, ts, "system", metaPayload(data)), side)

	case "sidechain_start":
		st.recognized++
		st.emit(model.NewMeta(model.RoleSidechain, ts, model.MetaSidechainStart, metaPayload(data)), true)

	case "sidechain_end":
		st.recognized++
		st.emit(model.NewMeta(model.RoleSidechain, ts, model.MetaSidechainEnd, metaPayload(data)), true)

	case "":
		st.raw.warnf(lineNo, "line without type field")

	default:
		// Unknown entry kinds ride along for forensic inspection.
		st.emit(model.NewMeta(model.RoleSystem, ts, entry.Type, metaPayload(data)), side)
	}
}

func (st *claudeState) emit(ev model.Event, sidechain bool) {
	if sidechain {
		ev.Sidechain = true
	}
	st.raw.events = append(st.raw.events, ev)
}

// userEvents maps a user line to events: tool_result blocks in block order,
// then all text joined as a single message so one line yields one user turn.
func (st *claudeState) userEvents(ts time.Time, side bool, msg *claudeMessage) {
	text, blocks := splitClaudeContent(msg.Content)
	var textParts []string
	if text != "" {
		textParts = append(textParts, text)
	}
	for _, b := range blocks {
		switch b.Type {
		case "tool_result":
			st.emit(model.NewToolResult(model.RoleToolResult, ts, b.ToolUseID, b.IsError, claudeContentText(b.Content)), side)
		case "text":
			if b.Text != "" {
				textParts = append(textParts, b.Text)
			}
		}
	}
	if len(textParts) > 0 {
		st.emit(model.NewText(model.RoleUser, ts, strings.Join(textParts, "\n")), side)
	}
}

func (st *claudeState) assistantEvents(ts time.Time, side bool, msg *claudeMessage) {
	text, blocks := splitClaudeContent(msg.Content)
	if text != "" {
		st.emit(model.NewText(model.RoleAssistant, ts, text), side)
	}
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				st.emit(model.NewText(model.RoleAssistant, ts, b.Text), side)
			}
		case "tool_use":
			st.emit(model.NewToolCall(ts, b.ID, b.Name, b.Input), side)
		}
	}
	if msg.Usage != nil && !st.duplicateUsage(msg.ID) {
		st.emit(model.NewUsage(ts, msg.Usage.tokens(), msg.Model, nil), side)
	}
}

// duplicateUsage reports whether usage for this API message id was already
// recorded. A streamed response writes one line per content block, each
// repeating the same message id and usage object; only the first counts.
func (st *claudeState) duplicateUsage(msgID string) bool {
	if msgID == "" {
		return false
	}
	if st.usageSeen == nil {
		st.usageSeen = make(map[string]bool)
	}
	if st.usageSeen[msgID] {
		return true
	}
	st.usageSeen[msgID] = true
	return false
}

// splitClaudeContent handles the two content encodings: a bare string or an
// array of typed blocks.
func splitClaudeContent(raw json.RawMessage) (string, []claudeBlock) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []claudeBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return "", blocks
	}
	return "", nil
}

// claudeContentText flattens tool_result content, which is either a string
// or an array of text blocks.
func claudeContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []claudeBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return model.TruncatePreview(string(raw))
}

func parseClaudeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
