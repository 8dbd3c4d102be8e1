package model

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// EventKind discriminates the closed set of canonical event variants.
type EventKind string

const (
	EventText       EventKind = "text"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventUsage      EventKind = "usage"
	EventMeta       EventKind = "meta"
)

// MaxPreviewBytes bounds tool-result previews regardless of source size.
const MaxPreviewBytes = 4096

// Meta kinds emitted by adapters for vendor events that have no canonical
// variant of their own.
const (
	MetaSummary        = "summary"
	MetaSystem         = "system"
	MetaSidechainStart = "sidechain_start"
	MetaSidechainEnd   = "sidechain_end"
)

// ToolCall is a structured request by the assistant to run a tool.
// Arguments are kept as raw JSON; detectors canonicalize on demand.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a tool call, matched by CallID.
type ToolResult struct {
	CallID         string `json:"call_id"`
	IsError        bool   `json:"is_error"`
	ContentPreview string `json:"content_preview,omitempty"`
}

// UsageRecord carries token counts (and, when the vendor records it, the
// observed cost) for one API exchange.
type UsageRecord struct {
	Tokens  Usage    `json:"tokens"`
	ModelID string   `json:"model_id,omitempty"`
	CostUSD *float64 `json:"cost_usd,omitempty"`
}

// Meta retains vendor-specific remainder for forensic inspection.
type Meta struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is the atomic item recovered from a trace. Kind selects which of
// the payload pointers is set; the others are nil.
type Event struct {
	Kind      EventKind `json:"kind"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Sidechain bool      `json:"sidechain,omitempty"`

	Text   string       `json:"text,omitempty"`
	Call   *ToolCall    `json:"call,omitempty"`
	Result *ToolResult  `json:"result,omitempty"`
	Usage  *UsageRecord `json:"usage,omitempty"`
	Meta   *Meta        `json:"meta,omitempty"`
}

// NewText builds a TextMessage event.
func NewText(role Role, ts time.Time, text string) Event {
	return Event{Kind: EventText, Role: role, Timestamp: ts, Text: text}
}

// NewToolCall builds a ToolCall event. Tool calls always originate from the
// assistant.
func NewToolCall(ts time.Time, id, name string, args json.RawMessage) Event {
	return Event{
		Kind:      EventToolCall,
		Role:      RoleAssistant,
		Timestamp: ts,
		Call:      &ToolCall{ID: id, Name: name, Arguments: args},
	}
}

// NewToolResult builds a ToolResult event, truncating the preview to
// MaxPreviewBytes. The role records where the vendor placed the result:
// RoleToolResult when it arrived as its own trace entry, RoleAssistant when
// it is embedded in the assistant message that issued the call.
func NewToolResult(role Role, ts time.Time, callID string, isError bool, preview string) Event {
	return Event{
		Kind:      EventToolResult,
		Role:      role,
		Timestamp: ts,
		Result:    &ToolResult{CallID: callID, IsError: isError, ContentPreview: TruncatePreview(preview)},
	}
}

// NewUsage builds a UsageRecord event. Usage rides on the assistant role.
func NewUsage(ts time.Time, u Usage, modelID string, costUSD *float64) Event {
	return Event{
		Kind:      EventUsage,
		Role:      RoleAssistant,
		Timestamp: ts,
		Usage:     &UsageRecord{Tokens: u, ModelID: modelID, CostUSD: costUSD},
	}
}

// NewMeta builds a Meta event.
func NewMeta(role Role, ts time.Time, kind string, payload json.RawMessage) Event {
	return Event{Kind: EventMeta, Role: role, Timestamp: ts, Meta: &Meta{Kind: kind, Payload: payload}}
}

// TruncatePreview caps s at MaxPreviewBytes without splitting a rune.
func TruncatePreview(s string) string {
	if len(s) <= MaxPreviewBytes {
		return s
	}
	cut := MaxPreviewBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
