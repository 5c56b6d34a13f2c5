package ofi

import (
	"fmt"

	"ofiflow/models"
)

// minAvgDepth is the smallest average depth accepted by the scaler. Below
// this the division is ill-defined and the level is treated as inactive.
const minAvgDepth = 1e-12

// AverageDepth computes the time-averaged resting depth per level: the mean
// over all snapshots of the bid/ask size midpoint at that level. A side with
// a missing price or size contributes zero depth, matching the zero-flow
// treatment in the extractor.
func AverageDepth(snapshots []models.Snapshot, levels int) (*models.DepthProfile, error) {
	if levels < 1 {
		return nil, &ConfigurationError{Field: "levels", Reason: "must be a positive integer"}
	}
	if len(snapshots) == 0 {
		return nil, &DataQualityError{Stage: "depth_profile", Reason: "no snapshots"}
	}

	profile := &models.DepthProfile{
		Instrument: snapshots[0].Instrument,
		AvgDepth:   make([]float64, levels),
	}
	for _, snap := range snapshots {
		if snap.Levels() < levels {
			return nil, &ConfigurationError{
				Field:  "levels",
				Reason: fmt.Sprintf("requested %d levels but a snapshot has only %d", levels, snap.Levels()),
			}
		}
		for k := 0; k < levels; k++ {
			bid, ask := 0.0, 0.0
			if !snap.Bids[k].Empty() {
				bid = snap.Bids[k].Size
			}
			if !snap.Asks[k].Empty() {
				ask = snap.Asks[k].Size
			}
			profile.AvgDepth[k] += (bid + ask) / 2
		}
	}
	for k := 0; k < levels; k++ {
		profile.AvgDepth[k] /= float64(len(snapshots))
	}

	return profile, nil
}

// NormalizeDepth rescales each column of the deeper OFI matrix by the
// level's average resting depth so levels of very different liquidity are
// comparable. A zero average depth at any requested level means the
// instrument had no resting liquidity there for the whole window; that is
// reported as a DataQualityError instead of dividing into infinities.
func NormalizeDepth(series *models.OFISeries, snapshots []models.Snapshot, levels int) ([][]float64, *models.DepthProfile, error) {
	if levels != len(series.Deeper) {
		return nil, nil, &ConfigurationError{
			Field:  "levels",
			Reason: fmt.Sprintf("OFI matrix has %d levels, requested %d", len(series.Deeper), levels),
		}
	}

	profile, err := AverageDepth(snapshots, levels)
	if err != nil {
		return nil, nil, err
	}

	scaled := make([][]float64, levels)
	for k := 0; k < levels; k++ {
		depth := profile.AvgDepth[k]
		if depth < minAvgDepth {
			return nil, nil, &DataQualityError{
				Instrument: series.Instrument,
				Stage:      "depth_normalizer",
				Reason:     fmt.Sprintf("zero average depth at level %d", k+1),
			}
		}
		col := make([]float64, len(series.Deeper[k]))
		for t, v := range series.Deeper[k] {
			col[t] = v / depth
		}
		scaled[k] = col
	}

	return scaled, profile, nil
}
