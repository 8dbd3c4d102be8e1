// Package model defines the canonical session types shared by ingest,
// detectors, and renderers. Sessions are assembled by the ingest builder
// and treated as immutable afterwards.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Agent identifies which coding agent produced a trace.
type Agent string

const (
	AgentClaude   Agent = "claude"
	AgentOpenCode Agent = "opencode"
	AgentCodex    Agent = "codex"
	AgentPi       Agent = "pi"
	AgentKodo     Agent = "kodo"
)

// AllAgents returns the supported agents in canonical order.
func AllAgents() []Agent {
	return []Agent{AgentClaude, AgentOpenCode, AgentCodex, AgentPi, AgentKodo}
}

// ParseAgent resolves a user-supplied agent name. "claude-code" is accepted
// as an alias for "claude".
func ParseAgent(s string) (Agent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude", "claude-code":
		return AgentClaude, nil
	case "opencode":
		return AgentOpenCode, nil
	case "codex":
		return AgentCodex, nil
	case "pi":
		return AgentPi, nil
	case "kodo":
		return AgentKodo, nil
	default:
		return "", fmt.Errorf("unknown agent %q", s)
	}
}

// ParseAgentFilter expands an --agent flag value into a list of agents.
// "all" (or empty) selects every supported agent.
func ParseAgentFilter(s string) ([]Agent, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return AllAgents(), nil
	}
	a, err := ParseAgent(s)
	if err != nil {
		return nil, err
	}
	return []Agent{a}, nil
}

// Role classifies a turn or event within a session.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleSystem     Role = "system"
	RoleToolResult Role = "tool-result"
	RoleSidechain  Role = "sidechain"
)

// Usage holds token counts by kind. All counts are non-negative and
// additive under summation.
type Usage struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheRead  int64 `json:"cache_read"`
	CacheWrite int64 `json:"cache_write"`
}

// Add accumulates another usage into u.
func (u *Usage) Add(v Usage) {
	u.Input += v.Input
	u.Output += v.Output
	u.CacheRead += v.CacheRead
	u.CacheWrite += v.CacheWrite
}

// Total returns the sum across all token kinds.
func (u Usage) Total() int64 {
	return u.Input + u.Output + u.CacheRead + u.CacheWrite
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool {
	return u.Input == 0 && u.Output == 0 && u.CacheRead == 0 && u.CacheWrite == 0
}

// Turn is one role-bounded exchange: the unit detectors reason about.
// Index equals the turn's position in the session's turn list.
type Turn struct {
	Index     int       `json:"index"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Events    []Event   `json:"events"`
	Usage     Usage     `json:"usage"`
	CostUSD   float64   `json:"cost_usd"`
}

// Warning records a tolerated irregularity found while ingesting a trace.
// Warnings never fail a session; they surface in verbose output.
type Warning struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// Session is one recorded agent conversation.
type Session struct {
	ID        string    `json:"session_id"`
	Agent     Agent     `json:"agent"`
	Path      string    `json:"source_path"`
	CWD       string    `json:"cwd,omitempty"`
	Title     string    `json:"title,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Model is the dominant model id; Models keeps every id observed.
	Model  string   `json:"model,omitempty"`
	Models []string `json:"models,omitempty"`

	// ParentID links a subagent trace back to the session that spawned it.
	ParentID string `json:"parent_id,omitempty"`

	Turns        []Turn           `json:"turns"`
	Usage        Usage            `json:"usage"`
	UsageByModel map[string]Usage `json:"usage_by_model,omitempty"`
	CostUSD      float64          `json:"cost_usd"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// TotalUsage returns the session-level usage (the sum of turn usages).
func (s *Session) TotalUsage() Usage { return s.Usage }

// TotalCostUSD returns the aggregate session cost in USD.
func (s *Session) TotalCostUSD() float64 { return s.CostUSD }

// Duration is the wall-clock span of the session, or zero when the trace
// carried no usable timestamps.
func (s *Session) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// AssistantTurnIndices returns the indices of assistant-role turns in order.
func (s *Session) AssistantTurnIndices() []int {
	var idx []int
	for i := range s.Turns {
		if s.Turns[i].Role == RoleAssistant {
			idx = append(idx, i)
		}
	}
	return idx
}

// HasTokenCounts reports whether the trace carried any token usage at all.
// Detectors degrade to structural findings when it is false.
func (s *Session) HasTokenCounts() bool {
	return !s.Usage.IsZero()
}

// Warn appends a warning. Only the ingest builder calls this; sessions are
// immutable once handed to detectors.
func (s *Session) Warn(line int, format string, args ...any) {
	s.Warnings = append(s.Warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}
