package pipeline

import (
	"sort"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
)

// CostSplit holds aggregate spend split by token kind.
type CostSplit struct {
	InputCost      float64 `json:"input_cost_usd"`
	OutputCost     float64 `json:"output_cost_usd"`
	CacheReadCost  float64 `json:"cache_read_cost_usd"`
	CacheWriteCost float64 `json:"cache_write_cost_usd"`
	TotalCost      float64 `json:"total_cost_usd"`
}

// ModelCostRow holds the cost components attributed to one model.
type ModelCostRow struct {
	Model string      `json:"model"`
	Usage model.Usage `json:"usage"`
	CostSplit
}

// CostBreakdown splits the analyses' spend by token kind and by model at
// catalog rates. Sessions with vendor-recorded costs contribute their usage
// at catalog rates here too, so the split is an estimate, not a ledger.
func CostBreakdown(analyses []Analysis, catalog *pricing.Catalog) (CostSplit, []ModelCostRow) {
	var totals CostSplit
	byModel := make(map[string]*ModelCostRow)

	for _, a := range analyses {
		s := a.Session
		usageBy := s.UsageByModel
		if len(usageBy) == 0 && s.Model != "" {
			usageBy = map[string]model.Usage{s.Model: s.Usage}
		}

		ids := make([]string, 0, len(usageBy))
		for id := range usageBy {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			usage := usageBy[id]
			rates, ok := catalog.Match(id)
			if !ok {
				continue
			}
			const m = 1_000_000
			in := float64(usage.Input) * rates.InputPerMTok / m
			out := float64(usage.Output) * rates.OutputPerMTok / m
			cr := float64(usage.CacheRead) * rates.CacheReadPerMTok / m
			cw := float64(usage.CacheWrite) * rates.CacheWritePerMTok / m

			totals.InputCost += in
			totals.OutputCost += out
			totals.CacheReadCost += cr
			totals.CacheWriteCost += cw

			row := byModel[id]
			if row == nil {
				row = &ModelCostRow{Model: id}
				byModel[id] = row
			}
			row.Usage.Add(usage)
			row.InputCost += in
			row.OutputCost += out
			row.CacheReadCost += cr
			row.CacheWriteCost += cw
		}
	}

	totals.TotalCost = totals.InputCost + totals.OutputCost + totals.CacheReadCost + totals.CacheWriteCost

	rows := make([]ModelCostRow, 0, len(byModel))
	for _, row := range byModel {
		row.TotalCost = row.InputCost + row.OutputCost + row.CacheReadCost + row.CacheWriteCost
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalCost != rows[j].TotalCost {
			return rows[i].TotalCost > rows[j].TotalCost
		}
		return rows[i].Model < rows[j].Model
	})

	return totals, rows
}
