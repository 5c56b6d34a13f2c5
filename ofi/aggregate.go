package ofi

import "ofiflow/models"

// AggregateOFI combines per-level flows into cumulative order flow
// imbalance series. Best is the running sum of bid minus ask flow at level
// one; Deeper holds the same aggregation for every level, so Deeper[0] is
// always identical to Best. The deeper matrix is the raw multi-level
// feature input for depth normalization.
func AggregateOFI(flows *models.LevelFlows) *models.OFISeries {
	steps := flows.Steps()
	levels := flows.Levels()

	series := &models.OFISeries{
		Instrument: flows.Instrument,
		Timestamps: flows.Timestamps,
		Deeper:     make([][]float64, levels),
	}

	for k := 0; k < levels; k++ {
		col := make([]float64, steps)
		sum := 0.0
		for t := 0; t < steps; t++ {
			sum += flows.BidFlows[k][t] - flows.AskFlows[k][t]
			col[t] = sum
		}
		series.Deeper[k] = col
	}
	series.Best = make([]float64, steps)
	copy(series.Best, series.Deeper[0])

	return series
}
