package report

import (
	"encoding/json"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pipeline"
)

// sessionDoc is the stable JSON shape for one analyzed session.
type sessionDoc struct {
	Session  *model.Session      `json:"session"`
	Findings []model.Finding     `json:"findings"`
	TopTurns []pipeline.TurnCost `json:"top_turns,omitempty"`
}

// aggregateDoc flattens the rollup with its cost splits.
type aggregateDoc struct {
	pipeline.Aggregate
	CostSplit pipeline.CostSplit      `json:"cost_split"`
	ByModel   []pipeline.ModelCostRow `json:"by_model,omitempty"`
}

// SessionJSON encodes one analyzed session as indented JSON. The document
// is deterministic for a given analysis: consumers may diff runs.
func SessionJSON(r SessionReport) ([]byte, error) {
	return marshalIndent(sessionDoc{
		Session:  r.Analysis.Session,
		Findings: nonNilFindings(r.Analysis.Findings),
		TopTurns: r.TopTurns,
	})
}

// AggregateJSON encodes the rollup, its token-kind cost split, and the
// per-model rows.
func AggregateJSON(r AggregateReport) ([]byte, error) {
	return marshalIndent(aggregateDoc{
		Aggregate: r.Aggregate,
		CostSplit: r.Split,
		ByModel:   r.Models,
	})
}

// SessionListJSON encodes the listing as an array of analyzed sessions.
func SessionListJSON(analyses []pipeline.Analysis) ([]byte, error) {
	docs := make([]sessionDoc, 0, len(analyses))
	for _, a := range analyses {
		docs = append(docs, sessionDoc{
			Session:  a.Session,
			Findings: nonNilFindings(a.Findings),
		})
	}
	return marshalIndent(docs)
}

// nonNilFindings keeps "findings": [] stable for machine consumers.
func nonNilFindings(findings []model.Finding) []model.Finding {
	if findings == nil {
		return []model.Finding{}
	}
	return findings
}

func marshalIndent(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
