package ofi

import (
	"fmt"

	"ofiflow/logger"
	"ofiflow/models"
)

// DefaultLevels is the number of book levels used when the caller does not
// request a specific depth.
const DefaultLevels = 5

// ComputeLevelFlows converts an ordered snapshot sequence into signed
// per-level order-flow increments. For each consecutive pair and level, the
// bid flow is the bid size delta and the ask flow the negated ask size
// delta, except when the level's price moved away (bid price down, ask
// price up): that is a price-level relocation, not a liquidity change, and
// the step's flow is forced to zero. A missing price or size on either side
// of a pair yields zero flow for that step and a logged warning.
func ComputeLevelFlows(snapshots []models.Snapshot, levels int) (*models.LevelFlows, error) {
	if levels < 1 {
		return nil, &ConfigurationError{Field: "levels", Reason: "must be a positive integer"}
	}
	for i, snap := range snapshots {
		if snap.Levels() < levels {
			return nil, &ConfigurationError{
				Field:  "levels",
				Reason: fmt.Sprintf("requested %d levels but snapshot %d has only %d", levels, i, snap.Levels()),
			}
		}
	}
	if len(snapshots) < levels+1 {
		instrument := ""
		if len(snapshots) > 0 {
			instrument = snapshots[0].Instrument
		}
		return nil, &DataQualityError{
			Instrument: instrument,
			Stage:      "level_flows",
			Reason:     fmt.Sprintf("need at least %d snapshots for %d levels, got %d", levels+1, levels, len(snapshots)),
		}
	}

	instrument := snapshots[0].Instrument
	log := logger.GetLogger().WithComponent("level_flows").WithFields(logger.Fields{
		"instrument": instrument,
		"levels":     levels,
	})

	steps := len(snapshots) - 1
	flows := &models.LevelFlows{
		Instrument: instrument,
		Timestamps: make([]int64, steps),
		BidFlows:   make([][]float64, levels),
		AskFlows:   make([][]float64, levels),
	}
	for k := 0; k < levels; k++ {
		flows.BidFlows[k] = make([]float64, steps)
		flows.AskFlows[k] = make([]float64, steps)
	}

	missing := 0
	for t := 1; t < len(snapshots); t++ {
		prev, cur := snapshots[t-1], snapshots[t]
		flows.Timestamps[t-1] = cur.Timestamp

		for k := 0; k < levels; k++ {
			bidFlow, ok := sideFlow(prev.Bids[k], cur.Bids[k], false)
			if !ok {
				missing++
				log.WithFields(logger.Fields{"step": t, "level": k + 1, "side": "bid"}).Warn("missing book value, zero flow for step")
			}
			askFlow, ok := sideFlow(prev.Asks[k], cur.Asks[k], true)
			if !ok {
				missing++
				log.WithFields(logger.Fields{"step": t, "level": k + 1, "side": "ask"}).Warn("missing book value, zero flow for step")
			}
			flows.BidFlows[k][t-1] = bidFlow
			flows.AskFlows[k][t-1] = askFlow
		}
	}

	if missing > 0 {
		log.WithFields(logger.Fields{"missing_values": missing, "steps": steps}).Warn("flows computed with missing book values")
	} else {
		log.WithFields(logger.Fields{"steps": steps}).Debug("flows computed")
	}

	return flows, nil
}

// sideFlow derives the signed flow for one level side across one snapshot
// pair. ask inverts the sign and the price-move mask direction. The second
// return value is false when a missing value forced the flow to zero.
func sideFlow(prev, cur models.BookLevel, ask bool) (float64, bool) {
	if prev.Empty() || cur.Empty() {
		return 0, false
	}
	if ask {
		if cur.Price > prev.Price {
			return 0, true
		}
		return -(cur.Size - prev.Size), true
	}
	if cur.Price < prev.Price {
		return 0, true
	}
	return cur.Size - prev.Size, true
}
