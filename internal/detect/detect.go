// Package detect runs the inefficiency detectors over canonical sessions.
// Detectors are pure functions of the session: no I/O, no clock, no shared
// mutable state, so identical sessions always produce identical findings.
package detect

import (
	"sort"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
)

// Options configure a detector run. The profile reorders findings but never
// changes whether one fires.
type Options struct {
	Profile model.Profile

	// Lenient lets RETRY_LOOP match argument pairs that differ only in
	// transient fields (timestamps, request ids). Off by default.
	Lenient bool

	// Disabled kinds are skipped entirely.
	Disabled map[model.FindingKind]bool

	// Catalog prices wasted tokens. Nil leaves wasted cost at zero.
	Catalog *pricing.Catalog
}

// detector couples a finding kind with its scan function. needsTokens marks
// detectors whose math is meaningless without token counts; they are skipped
// for sessions that carry none.
type detector struct {
	kind        model.FindingKind
	needsTokens bool
	run         func(sc *scan) []model.Finding
}

func registry() []detector {
	return []detector{
		{model.RetryLoop, false, detectRetryLoops},
		{model.EditCascade, false, detectEditCascades},
		{model.ToolFanout, false, detectToolFanout},
		{model.RedundantReread, false, detectRedundantRereads},
		{model.ContextBloat, true, detectContextBloat},
		{model.ErrorRepromptChurn, true, detectErrorRepromptChurn},
		{model.SubagentOverhead, true, detectSubagentOverhead},
	}
}

// Run executes every enabled detector against the session and returns the
// union of findings, costed and ordered for the requested profile.
//
// Sessions without token counts (Codex rollouts) still get structural
// findings, with zero wasted tokens and confidence capped at 0.5.
func Run(s *model.Session, opts Options) []model.Finding {
	sc := newScan(s, opts.Lenient)
	hasTokens := s.HasTokenCounts()

	var findings []model.Finding
	for _, d := range registry() {
		if opts.Disabled[d.kind] {
			continue
		}
		if d.needsTokens && !hasTokens {
			continue
		}
		fs := d.run(sc)
		if !hasTokens {
			for i := range fs {
				fs[i].WastedTokens = 0
				if fs[i].Confidence > 0.5 {
					fs[i].Confidence = 0.5
				}
			}
		}
		findings = append(findings, fs...)
	}

	for i := range findings {
		findings[i].SessionID = s.ID
	}
	attachCosts(s, findings, opts.Catalog)
	sortFindings(findings, opts.Profile)
	return findings
}

// Sort reorders findings for the given profile without re-running detection.
// Cached findings are stored in cost order and re-sorted on read.
func Sort(findings []model.Finding, profile model.Profile) {
	sortFindings(findings, profile)
}

// attachCosts turns wasted-token estimates into wasted cost. Findings do not
// retain token kind, so the session's observed kind distribution weights the
// catalog rates. OpenCode sessions skip the catalog: their evidence turns
// carry recorded costs, which are summed directly.
func attachCosts(s *model.Session, findings []model.Finding, catalog *pricing.Catalog) {
	if s.Agent == model.AgentOpenCode {
		for i := range findings {
			var sum float64
			for _, t := range findings[i].EvidenceTurns {
				if t >= 0 && t < len(s.Turns) {
					sum += s.Turns[t].CostUSD
				}
			}
			findings[i].WastedCostUSD = sum
		}
		return
	}
	if catalog == nil || !s.HasTokenCounts() {
		return
	}
	rate := catalog.BlendedRatePerMTok(s.Model, s.Usage)
	for i := range findings {
		findings[i].WastedCostUSD = rate * float64(findings[i].WastedTokens) / 1e6
	}
}

// sortFindings orders findings for presentation. Every profile falls back to
// the default chain so the order is total and stable across runs.
func sortFindings(findings []model.Finding, profile model.Profile) {
	switch profile {
	case model.ProfileLatency:
		sort.SliceStable(findings, func(i, j int) bool {
			if len(findings[i].EvidenceTurns) != len(findings[j].EvidenceTurns) {
				return len(findings[i].EvidenceTurns) > len(findings[j].EvidenceTurns)
			}
			return baseLess(findings[i], findings[j])
		})
	case model.ProfileReliability:
		sort.SliceStable(findings, func(i, j int) bool {
			ri, rj := reliabilityFirst(findings[i].Kind), reliabilityFirst(findings[j].Kind)
			if ri != rj {
				return ri
			}
			return baseLess(findings[i], findings[j])
		})
	default:
		sort.SliceStable(findings, func(i, j int) bool {
			return baseLess(findings[i], findings[j])
		})
	}
}

func baseLess(a, b model.Finding) bool {
	if a.WastedCostUSD != b.WastedCostUSD {
		return a.WastedCostUSD > b.WastedCostUSD
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.FirstEvidenceTurn() < b.FirstEvidenceTurn()
}

func reliabilityFirst(kind model.FindingKind) bool {
	switch kind {
	case model.RetryLoop, model.EditCascade, model.ErrorRepromptChurn:
		return true
	}
	return false
}
