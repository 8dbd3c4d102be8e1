package model

import (
	"fmt"
	"strings"
)

// FindingKind names one of the seven inefficiency detectors. The string
// values sort lexicographically for the default finding order.
type FindingKind string

const (
	RetryLoop          FindingKind = "RETRY_LOOP"
	EditCascade        FindingKind = "EDIT_CASCADE"
	ToolFanout         FindingKind = "TOOL_FANOUT"
	RedundantReread    FindingKind = "REDUNDANT_REREAD"
	ContextBloat       FindingKind = "CONTEXT_BLOAT"
	ErrorRepromptChurn FindingKind = "ERROR_REPROMPT_CHURN"
	SubagentOverhead   FindingKind = "SUBAGENT_OVERHEAD"
)

// FindingKinds lists every kind in registry order.
func FindingKinds() []FindingKind {
	return []FindingKind{
		RetryLoop,
		EditCascade,
		ToolFanout,
		RedundantReread,
		ContextBloat,
		ErrorRepromptChurn,
		SubagentOverhead,
	}
}

// Finding is a single detector's output: a flagged inefficiency with
// evidence and estimated waste. Immutable once produced.
type Finding struct {
	Kind          FindingKind `json:"kind"`
	SessionID     string      `json:"session_id"`
	EvidenceTurns []int       `json:"evidence_turns"`
	WastedTokens  int64       `json:"wasted_tokens_estimate"`
	WastedCostUSD float64     `json:"wasted_cost_usd_estimate"`
	Confidence    float64     `json:"confidence"`
	Message       string      `json:"human_message"`
}

// FirstEvidenceTurn returns the earliest cited turn, used as the final
// ordering tiebreaker.
func (f Finding) FirstEvidenceTurn() int {
	if len(f.EvidenceTurns) == 0 {
		return -1
	}
	return f.EvidenceTurns[0]
}

// Profile selects how findings are ordered. It never changes whether a
// finding fires.
type Profile string

const (
	ProfileCost        Profile = "cost"
	ProfileLatency     Profile = "latency"
	ProfileReliability Profile = "reliability"
)

// ParseProfile resolves an --optimize-for flag value. Empty means cost.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cost":
		return ProfileCost, nil
	case "latency":
		return ProfileLatency, nil
	case "reliability":
		return ProfileReliability, nil
	default:
		return "", fmt.Errorf("unknown optimization profile %q", s)
	}
}
