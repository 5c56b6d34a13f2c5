package processor

import (
	"math"

	"ofiflow/models"
	"ofiflow/ofi"
)

// MidPriceChanges computes the step-to-step mid-price change series for one
// instrument. The series has length N-1 for N snapshots and shares its
// timestamps with the flow series: entry t covers the step ending at
// snapshot t+1. A step touching a snapshot whose mid cannot be computed
// yields a zero change, mirroring the zero-flow treatment for missing sizes.
func MidPriceChanges(snapshots []models.Snapshot) ([]int64, []float64, error) {
	if len(snapshots) < 2 {
		return nil, nil, &ofi.DataQualityError{
			Stage:  "returns",
			Reason: "need at least 2 snapshots for price changes",
		}
	}

	timestamps := make([]int64, len(snapshots)-1)
	changes := make([]float64, len(snapshots)-1)
	for t := 1; t < len(snapshots); t++ {
		timestamps[t-1] = snapshots[t].Timestamp
		prev, cur := snapshots[t-1].Mid(), snapshots[t].Mid()
		if math.IsNaN(prev) || math.IsNaN(cur) {
			changes[t-1] = 0
			continue
		}
		changes[t-1] = cur - prev
	}
	return timestamps, changes, nil
}
