package processor

import (
	"fmt"

	"ofiflow/ofi"
)

// AlignToGrid resamples one instrument's series onto a reference timestamp
// grid. For each grid point it picks the sample whose timestamp is nearest,
// never interpolating, so every output value is one that actually occurred.
// When the nearest sample is further away than tolerance nanoseconds the
// instrument cannot be aligned and a DataQualityError is returned. A
// tolerance of zero disables the distance check.
func AlignToGrid(instrument string, grid, timestamps []int64, values []float64, tolerance int64) ([]float64, error) {
	if len(timestamps) != len(values) {
		return nil, &ofi.DataQualityError{
			Instrument: instrument,
			Stage:      "align",
			Reason:     fmt.Sprintf("series has %d timestamps but %d values", len(timestamps), len(values)),
		}
	}
	if len(timestamps) == 0 {
		return nil, &ofi.DataQualityError{Instrument: instrument, Stage: "align", Reason: "empty series"}
	}

	aligned := make([]float64, len(grid))
	j := 0
	for i, target := range grid {
		for j+1 < len(timestamps) && timestamps[j+1] <= target {
			j++
		}
		// timestamps[j] is the last sample at or before target; the next
		// sample, if any, may still be closer.
		best := j
		if j+1 < len(timestamps) && timestamps[j+1]-target < target-timestamps[j] {
			best = j + 1
		}
		gap := timestamps[best] - target
		if gap < 0 {
			gap = -gap
		}
		if tolerance > 0 && gap > tolerance {
			return nil, &ofi.DataQualityError{
				Instrument: instrument,
				Stage:      "align",
				Reason:     fmt.Sprintf("no sample within %dns of grid point %d", tolerance, target),
			}
		}
		aligned[i] = values[best]
	}
	return aligned, nil
}
