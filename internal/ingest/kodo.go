package ingest

import (
	"context"
	"encoding/json"

	"github.com/0xKoda/tracekit/internal/model"
)

// Kodo sessions are JSONL, Claude-shaped with renamed keys:
//
//	event_type      message.user | message.assistant | tool.invocation | tool.response | system.*
//	created_at      RFC3339 timestamp
//	session_id      session id
//	workdir         working directory
//	is_subagent     sidechain flag
//	payload.text                 message text
//	payload.model                model id (assistant entries)
//	payload.token_usage          {prompt_tokens, completion_tokens, cache_read_tokens, cache_creation_tokens}
//	payload.tool_invocation      {invocation_id, tool_name, arguments}
//	payload.tool_response        {invocation_id, is_failure, body}
type kodoLine struct {
	EventType  string       `json:"event_type"`
	SessionID  string       `json:"session_id,omitempty"`
	Workdir    string       `json:"workdir,omitempty"`
	CreatedAt  string       `json:"created_at,omitempty"`
	IsSubagent bool         `json:"is_subagent,omitempty"`
	Payload    *kodoPayload `json:"payload,omitempty"`
}

type kodoPayload struct {
	Text           string              `json:"text,omitempty"`
	Model          string              `json:"model,omitempty"`
	TokenUsage     *kodoTokenUsage     `json:"token_usage,omitempty"`
	ToolInvocation *kodoToolInvocation `json:"tool_invocation,omitempty"`
	ToolResponse   *kodoToolResponse   `json:"tool_response,omitempty"`
}

type kodoTokenUsage struct {
	PromptTokens        int64 `json:"prompt_tokens"`
	CompletionTokens    int64 `json:"completion_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
}

func (u *kodoTokenUsage) tokens() model.Usage {
	return model.Usage{
		Input:      u.PromptTokens,
		Output:     u.CompletionTokens,
		CacheRead:  u.CacheReadTokens,
		CacheWrite: u.CacheCreationTokens,
	}
}

type kodoToolInvocation struct {
	InvocationID string          `json:"invocation_id"`
	ToolName     string          `json:"tool_name"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
}

type kodoToolResponse struct {
	InvocationID string `json:"invocation_id"`
	IsFailure    bool   `json:"is_failure"`
	Body         string `json:"body,omitempty"`
}

func (p *Parser) parseKodo(ctx context.Context, path string) (*model.Session, error) {
	raw := rawSession{}
	var valid, recognized, firstBad, firstValid int

	err := forEachLine(ctx, path, func(lineNo int, data []byte) error {
		var line kodoLine
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

		if raw.id == "" && line.SessionID != "" {
			raw.id = line.SessionID
		}
		if raw.cwd == "" && line.Workdir != "" {
			raw.cwd = line.Workdir
		}

		ts := parseClaudeTime(line.CreatedAt)

		var ev model.Event
		switch line.EventType {
		case "message.user":
			recognized++
			if line.Payload == nil || line.Payload.Text == "" {
				return nil
			}
			ev = model.NewText(model.RoleUser, ts, line.Payload.Text)

		case "message.assistant":
			recognized++
			if line.Payload == nil {
				return nil
			}
			if line.Payload.Text != "" {
				textEv := model.NewText(model.RoleAssistant, ts, line.Payload.Text)
				textEv.Sidechain = line.IsSubagent
				raw.events = append(raw.events, textEv)
			}
			if line.Payload.TokenUsage == nil {
				return nil
			}
			ev = model.NewUsage(ts, line.Payload.TokenUsage.tokens(), line.Payload.Model, nil)

		case "tool.invocation":
			recognized++
			if line.Payload == nil || line.Payload.ToolInvocation == nil {
				raw.warnf(lineNo, "tool.invocation without payload")
				return nil
			}
			inv := line.Payload.ToolInvocation
			ev = model.NewToolCall(ts, inv.InvocationID, inv.ToolName, inv.Arguments)

		case "tool.response":
			recognized++
			if line.Payload == nil || line.Payload.ToolResponse == nil {
				raw.warnf(lineNo, "tool.response without payload")
				return nil
			}
			resp := line.Payload.ToolResponse
			ev = model.NewToolResult(model.RoleToolResult, ts, resp.InvocationID, resp.IsFailure, resp.Body)

		case "":
			raw.warnf(lineNo, "line without event_type field")
			return nil

		default:
			// Unknown event types ride along for forensic inspection but do
			// not count toward schema recognition.
			ev = model.NewMeta(model.RoleSystem, ts, line.EventType, metaPayload(data))
		}

		ev.Sidechain = ev.Sidechain || line.IsSubagent
		raw.events = append(raw.events, ev)
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
		return nil, errSchema(path, firstValid, "no kodo entries found")
	}
	return p.build(model.AgentKodo, path, raw)
}
