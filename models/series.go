package models

// LevelFlows holds the signed per-level order-flow increments derived from
// consecutive snapshot pairs. Each slice has length N-1 for N snapshots; the
// first snapshot has no prior reference and is dropped. BidFlows[k][t] is the
// bid-side flow at level k+1 for the step ending at snapshot t+1.
type LevelFlows struct {
	Instrument string
	Timestamps []int64 // timestamp of the later snapshot of each pair
	BidFlows   [][]float64
	AskFlows   [][]float64
}

// Steps returns the number of flow steps (N-1).
func (f *LevelFlows) Steps() int {
	return len(f.Timestamps)
}

// Levels returns the number of book levels covered by the flows.
func (f *LevelFlows) Levels() int {
	return len(f.BidFlows)
}

// OFISeries holds the cumulative order flow imbalance derived from level
// flows. Best is the canonical level-1 series; Deeper[k] is the cumulative
// series for level k+1, so Deeper[0] always equals Best.
type OFISeries struct {
	Instrument string
	Timestamps []int64
	Best       []float64
	Deeper     [][]float64
}

// DepthProfile is the time-averaged resting depth per level, used to scale
// the per-level OFI columns onto a comparable footing.
type DepthProfile struct {
	Instrument string
	AvgDepth   []float64
}

// IntegratedSignal is the single scalar series produced by projecting the
// depth-scaled OFI matrix onto its first principal direction. Weights sum to
// one in absolute value and the largest-magnitude weight is positive, so the
// series is reproducible across runs on identical input.
type IntegratedSignal struct {
	Instrument string
	Timestamps []int64
	Values     []float64
	Weights    []float64
}

// CrossImpactResult captures one fitted target regression: the coefficient
// on each source instrument's integrated OFI plus the in-sample R².
type CrossImpactResult struct {
	Target       string
	Sources      []string
	Coefficients []float64
	Intercept    float64
	RSquared     float64
}
