package ofi

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"ofiflow/models"
)

// ReduceToIntegratedSignal projects the depth-scaled multi-level OFI matrix
// onto its first principal direction, yielding one scalar per time step.
// The principal direction is renormalized so its components sum to one in
// absolute value, and its sign is pinned by forcing the largest-magnitude
// component positive. Both together make the output deterministic for
// identical input: the eigendecomposition alone fixes the direction only up
// to a global sign.
func ReduceToIntegratedSignal(series *models.OFISeries, scaled [][]float64) (*models.IntegratedSignal, error) {
	levels := len(scaled)
	if levels == 0 {
		return nil, &DataQualityError{Instrument: series.Instrument, Stage: "reducer", Reason: "empty OFI matrix"}
	}
	steps := len(scaled[0])
	if steps < 2 {
		return nil, &DataQualityError{Instrument: series.Instrument, Stage: "reducer", Reason: "need at least 2 time steps"}
	}

	weights, err := principalWeights(series.Instrument, scaled, steps, levels)
	if err != nil {
		return nil, err
	}

	values := make([]float64, steps)
	for t := 0; t < steps; t++ {
		v := 0.0
		for k := 0; k < levels; k++ {
			v += scaled[k][t] * weights[k]
		}
		values[t] = v
	}

	return &models.IntegratedSignal{
		Instrument: series.Instrument,
		Timestamps: series.Timestamps,
		Values:     values,
		Weights:    weights,
	}, nil
}

// principalWeights computes the abs-sum-one, sign-pinned first principal
// direction of the scaled matrix columns.
func principalWeights(instrument string, scaled [][]float64, steps, levels int) ([]float64, error) {
	if levels == 1 {
		return []float64{1}, nil
	}

	x := mat.NewDense(steps, levels, nil)
	for k := 0; k < levels; k++ {
		x.SetCol(k, scaled[k])
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, &DataQualityError{Instrument: instrument, Stage: "reducer", Reason: "principal component decomposition failed"}
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	w := mat.Col(nil, 0, &vecs)

	// Pin the sign before scaling: largest-magnitude component positive.
	pivot := 0
	for k := 1; k < levels; k++ {
		if math.Abs(w[k]) > math.Abs(w[pivot]) {
			pivot = k
		}
	}
	if w[pivot] < 0 {
		for k := range w {
			w[k] = -w[k]
		}
	}

	absSum := 0.0
	for _, v := range w {
		absSum += math.Abs(v)
	}
	if absSum < minAvgDepth {
		return nil, &DataQualityError{Instrument: instrument, Stage: "reducer", Reason: "degenerate principal direction"}
	}
	for k := range w {
		w[k] /= absSum
	}

	return w, nil
}
