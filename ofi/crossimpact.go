package ofi

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"ofiflow/models"
)

// EstimateCrossImpact regresses each target instrument's price-change
// series on the full set of integrated OFI features with ordinary least
// squares, one fit per target. The fit includes an intercept; the reported
// coefficients are the slopes on each source feature and RSquared is the
// in-sample coefficient of determination. There is deliberately no
// regularization and no train/test split: this is a descriptive
// cross-impact measurement, not a forecast.
//
// Structural problems with the feature matrix (length mismatch, too few
// time steps, a constant feature column) fail the whole estimation.
// Problems specific to one target (missing or constant price-change
// series) are returned per target so the remaining fits still run.
func EstimateCrossImpact(sources []string, features map[string][]float64, priceChanges map[string][]float64) (map[string]models.CrossImpactResult, map[string]error, error) {
	m := len(sources)
	if m == 0 {
		return nil, nil, &ConfigurationError{Field: "sources", Reason: "no source instruments"}
	}

	n := -1
	for _, src := range sources {
		f, ok := features[src]
		if !ok {
			return nil, nil, &ConfigurationError{Field: "features", Reason: fmt.Sprintf("missing feature series for %s", src)}
		}
		if n == -1 {
			n = len(f)
		} else if len(f) != n {
			return nil, nil, &DataQualityError{
				Stage:  "cross_impact",
				Reason: fmt.Sprintf("feature series for %s has %d steps, expected %d", src, len(f), n),
			}
		}
	}
	if n < m+1 {
		return nil, nil, &DataQualityError{
			Stage:  "cross_impact",
			Reason: fmt.Sprintf("insufficient data: %d time steps for %d source instruments", n, m),
		}
	}
	for _, src := range sources {
		if constantSeries(features[src]) {
			return nil, nil, &DataQualityError{
				Instrument: src,
				Stage:      "cross_impact",
				Reason:     "insufficient data: feature column has zero variance",
			}
		}
	}

	// Design matrix with a leading intercept column, factorized once and
	// reused for every target.
	x := mat.NewDense(n, m+1, nil)
	for t := 0; t < n; t++ {
		x.Set(t, 0, 1)
	}
	for j, src := range sources {
		x.SetCol(j+1, features[src])
	}
	var qr mat.QR
	qr.Factorize(x)

	results := make(map[string]models.CrossImpactResult, len(priceChanges))
	targetErrs := make(map[string]error)

	for target, y := range priceChanges {
		if len(y) != n {
			targetErrs[target] = &DataQualityError{
				Instrument: target,
				Stage:      "cross_impact",
				Reason:     fmt.Sprintf("price-change series has %d steps, expected %d", len(y), n),
			}
			continue
		}
		if constantSeries(y) {
			targetErrs[target] = &DataQualityError{
				Instrument: target,
				Stage:      "cross_impact",
				Reason:     "insufficient data: price-change series has zero variance",
			}
			continue
		}

		var beta mat.Dense
		if err := qr.SolveTo(&beta, false, mat.NewDense(n, 1, y)); err != nil {
			targetErrs[target] = &DataQualityError{
				Instrument: target,
				Stage:      "cross_impact",
				Reason:     fmt.Sprintf("least squares solve failed: %v", err),
			}
			continue
		}

		coeffs := make([]float64, m)
		for j := 0; j < m; j++ {
			coeffs[j] = beta.At(j+1, 0)
		}

		results[target] = models.CrossImpactResult{
			Target:       target,
			Sources:      sources,
			Coefficients: coeffs,
			Intercept:    beta.At(0, 0),
			RSquared:     rSquared(x, &beta, y),
		}
	}

	return results, targetErrs, nil
}

func constantSeries(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

func rSquared(x *mat.Dense, beta *mat.Dense, y []float64) float64 {
	n, _ := x.Dims()
	var fitted mat.Dense
	fitted.Mul(x, beta)

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)

	ssRes, ssTot := 0.0, 0.0
	for t := 0; t < n; t++ {
		r := y[t] - fitted.At(t, 0)
		ssRes += r * r
		d := y[t] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}
