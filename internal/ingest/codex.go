package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
)

// Codex rollout files are JSONL with a type/payload envelope per line.
// They carry tool invocations and message text but no per-call token counts,
// so sessions ingest with zero usage and zero cost; detectors that need
// token counts degrade to structural findings.

type codexLine struct {
	Timestamp string          `json:"timestamp,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type codexSessionMeta struct {
	ID  string `json:"id,omitempty"`
	Cwd string `json:"cwd,omitempty"`
}

type codexResponseItem struct {
	Type      string          `json:"type"`
	Role      string          `json:"role,omitempty"`
	Content   []codexContent  `json:"content,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"` // JSON encoded as a string
	Input     string          `json:"input,omitempty"`     // custom tool calls
	CallID    string          `json:"call_id,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"` // string or {content, success}
	Message   string          `json:"message,omitempty"`
}

type codexContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type codexOutput struct {
	Content string `json:"content,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

func (p *Parser) parseCodex(ctx context.Context, path string) (*model.Session, error) {
	raw := rawSession{}
	var valid, recognized, firstBad, firstValid int

	err := forEachLine(ctx, path, func(lineNo int, data []byte) error {
		var line codexLine
		if err := json.Unmarshal(data, &line); err != nil {
			if firstBad == 0 {
				firstBad = lineNo
			}
			raw.warnf(lineNo, "skipping malformed line")
			return nil
		}
		valid++
		if firstValid == 0 {
			firstValid = lineNo
		}

		ts := parseClaudeTime(line.Timestamp)

		switch line.Type {
		case "session_meta":
			recognized++
			var meta codexSessionMeta
			if err := json.Unmarshal(line.Payload, &meta); err == nil {
				if raw.id == "" {
					raw.id = meta.ID
				}
				if raw.cwd == "" {
					raw.cwd = meta.Cwd
				}
			}
			raw.events = append(raw.events, model.NewMeta(model.RoleSystem, ts, "session_meta", metaPayload(line.Payload)))

		case "response_item":
			recognized++
			codexItemEvents(&raw, lineNo, ts, line.Payload)

		case "event_msg", "turn_context":
			recognized++
			raw.events = append(raw.events, model.NewMeta(model.RoleSystem, ts, line.Type, metaPayload(line.Payload)))

		case "":
			raw.warnf(lineNo, "line without type field")

		default:
			raw.events = append(raw.events, model.NewMeta(model.RoleSystem, ts, line.Type, metaPayload(line.Payload)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if valid == 0 {
		if firstBad > 0 {
			return nil, errCorrupt(path, firstBad)
		}
		return nil, errEmpty(path)
	}
	if recognized == 0 {
		return nil, errSchema(path, firstValid, "no codex rollout entries found")
	}
	return p.build(model.AgentCodex, path, raw)
}

func codexItemEvents(raw *rawSession, lineNo int, ts time.Time, payload json.RawMessage) {
	var item codexResponseItem
	if err := json.Unmarshal(payload, &item); err != nil {
		raw.warnf(lineNo, "skipping malformed response item")
		return
	}

	switch item.Type {
	case "message":
		text := joinCodexContent(item.Content)
		if text == "" {
			return
		}
		switch item.Role {
		case "user":
			// Injected instruction and environment blocks are context,
			// not conversation.
			if strings.HasPrefix(text, "<user_instructions>") || strings.HasPrefix(text, "<environment_context>") {
				raw.events = append(raw.events, model.NewMeta(model.RoleSystem, ts, "context", metaPayload(payload)))
				return
			}
			raw.events = append(raw.events, model.NewText(model.RoleUser, ts, text))
		case "assistant":
			raw.events = append(raw.events, model.NewText(model.RoleAssistant, ts, text))
		}

	// Legacy rollouts carry bare text items instead of role-tagged messages.
	case "user_message":
		if item.Message != "" {
			raw.events = append(raw.events, model.NewText(model.RoleUser, ts, item.Message))
		}
	case "agent_message":
		if item.Message != "" {
			raw.events = append(raw.events, model.NewText(model.RoleAssistant, ts, item.Message))
		}

	case "function_call":
		raw.events = append(raw.events, model.NewToolCall(ts, item.CallID, item.Name, codexArgs(item.Arguments)))

	case "custom_tool_call":
		name := item.Name
		if name == "" {
			name = "custom_tool"
		}
		args, _ := json.Marshal(map[string]string{"input": item.Input})
		raw.events = append(raw.events, model.NewToolCall(ts, item.CallID, name, args))

	case "function_call_output", "custom_tool_call_output":
		content, success := splitCodexOutput(item.Output)
		isError := codexOutputLooksLikeError(content)
		if success != nil {
			isError = !*success
		}
		raw.events = append(raw.events, model.NewToolResult(model.RoleToolResult, ts, item.CallID, isError, content))

	case "reasoning":
		raw.events = append(raw.events, model.NewMeta(model.RoleAssistant, ts, "reasoning", metaPayload(payload)))

	default:
		raw.events = append(raw.events, model.NewMeta(model.RoleSystem, ts, item.Type, metaPayload(payload)))
	}
}

func joinCodexContent(content []codexContent) string {
	var parts []string
	for _, c := range content {
		switch c.Type {
		case "input_text", "output_text", "text":
			if c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// codexArgs returns the arguments string as raw JSON when it parses, or as
// a JSON string otherwise, so canonical-form comparison always has valid
// input.
func codexArgs(arguments string) json.RawMessage {
	if arguments == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	quoted, err := json.Marshal(arguments)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(quoted)
}

// splitCodexOutput handles both output encodings: a bare string or a
// structured {content, success} object.
func splitCodexOutput(raw json.RawMessage) (string, *bool) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var out codexOutput
	if err := json.Unmarshal(raw, &out); err == nil {
		return out.Content, out.Success
	}
	return model.TruncatePreview(string(raw)), nil
}

// codexOutputLooksLikeError derives is_error for rollouts, which carry no
// explicit flag. is_error is true when the output smells like a shell or
// tool failure.
func codexOutputLooksLikeError(output string) bool {
	lower := strings.ToLower(output)
	if strings.Contains(lower, "error") &&
		(strings.Contains(lower, "exit code") || strings.Contains(lower, "failed") || strings.Contains(lower, "not found")) {
		return true
	}
	return strings.HasPrefix(lower, "error:") ||
		strings.Contains(lower, "command not found") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "no such file or directory") ||
		(strings.Contains(lower, "process exited with code") && !strings.Contains(lower, "code 0"))
}
