package ofi

import (
	"errors"
	"math"
	"testing"

	"ofiflow/models"
)

func snap1(ts int64, bidPx, bidSz, askPx, askSz float64) models.Snapshot {
	return models.Snapshot{
		Instrument: "TEST",
		Timestamp:  ts,
		Bids:       []models.BookLevel{{Price: bidPx, Size: bidSz}},
		Asks:       []models.BookLevel{{Price: askPx, Size: askSz}},
	}
}

func TestComputeLevelFlowsSizeDeltas(t *testing.T) {
	snaps := []models.Snapshot{
		snap1(1, 100, 10, 101, 8),
		snap1(2, 100, 12, 101, 8),
		snap1(3, 100, 9, 101, 11),
	}
	flows, err := ComputeLevelFlows(snaps, 1)
	if err != nil {
		t.Fatalf("ComputeLevelFlows: %v", err)
	}
	if flows.Steps() != 2 || flows.Levels() != 1 {
		t.Fatalf("unexpected shape: %d steps, %d levels", flows.Steps(), flows.Levels())
	}
	wantBid := []float64{2, -3}
	wantAsk := []float64{0, -3}
	for i := range wantBid {
		if flows.BidFlows[0][i] != wantBid[i] {
			t.Errorf("bid flow[%d] = %v, want %v", i, flows.BidFlows[0][i], wantBid[i])
		}
		if flows.AskFlows[0][i] != wantAsk[i] {
			t.Errorf("ask flow[%d] = %v, want %v", i, flows.AskFlows[0][i], wantAsk[i])
		}
	}
	if flows.Timestamps[0] != 2 || flows.Timestamps[1] != 3 {
		t.Errorf("unexpected timestamps: %v", flows.Timestamps)
	}
}

func TestComputeLevelFlowsMasksBidPriceDown(t *testing.T) {
	// Bid price drops while bid size increases: a price-level relocation,
	// the step's flow must be exactly zero, not the raw size delta.
	snaps := []models.Snapshot{
		snap1(1, 100, 10, 101, 5),
		snap1(2, 99, 25, 101, 5),
	}
	flows, err := ComputeLevelFlows(snaps, 1)
	if err != nil {
		t.Fatalf("ComputeLevelFlows: %v", err)
	}
	if got := flows.BidFlows[0][0]; got != 0 {
		t.Errorf("masked bid flow = %v, want 0", got)
	}
}

func TestComputeLevelFlowsMasksAskPriceUp(t *testing.T) {
	snaps := []models.Snapshot{
		snap1(1, 100, 10, 101, 5),
		snap1(2, 100, 10, 102, 30),
	}
	flows, err := ComputeLevelFlows(snaps, 1)
	if err != nil {
		t.Fatalf("ComputeLevelFlows: %v", err)
	}
	if got := flows.AskFlows[0][0]; got != 0 {
		t.Errorf("masked ask flow = %v, want 0", got)
	}
}

func TestComputeLevelFlowsAskSignInverted(t *testing.T) {
	// Ask size growing is liquidity added on the sell side: negative flow.
	snaps := []models.Snapshot{
		snap1(1, 100, 10, 101, 5),
		snap1(2, 100, 10, 101, 9),
	}
	flows, err := ComputeLevelFlows(snaps, 1)
	if err != nil {
		t.Fatalf("ComputeLevelFlows: %v", err)
	}
	if got := flows.AskFlows[0][0]; got != -4 {
		t.Errorf("ask flow = %v, want -4", got)
	}
}

func TestComputeLevelFlowsMissingValueZeroFlow(t *testing.T) {
	snaps := []models.Snapshot{
		snap1(1, 100, math.NaN(), 101, 5),
		snap1(2, 100, 12, 101, 5),
	}
	flows, err := ComputeLevelFlows(snaps, 1)
	if err != nil {
		t.Fatalf("missing value must not be fatal: %v", err)
	}
	if got := flows.BidFlows[0][0]; got != 0 {
		t.Errorf("flow with missing size = %v, want 0", got)
	}
	if got := flows.AskFlows[0][0]; got != 0 {
		t.Errorf("intact ask side = %v, want 0", got)
	}
}

func TestComputeLevelFlowsMissingPriceZeroFlow(t *testing.T) {
	snaps := []models.Snapshot{
		snap1(1, math.NaN(), 10, 101, 5),
		snap1(2, 100, 12, 101, 7),
	}
	flows, err := ComputeLevelFlows(snaps, 1)
	if err != nil {
		t.Fatalf("missing price must not be fatal: %v", err)
	}
	if got := flows.BidFlows[0][0]; got != 0 {
		t.Errorf("flow with missing price = %v, want 0", got)
	}
	if got := flows.AskFlows[0][0]; got != -2 {
		t.Errorf("intact ask side = %v, want -2", got)
	}
}

func TestComputeLevelFlowsTooManyLevels(t *testing.T) {
	snaps := []models.Snapshot{
		snap1(1, 100, 10, 101, 5),
		snap1(2, 100, 11, 101, 5),
	}
	_, err := ComputeLevelFlows(snaps, 3)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestComputeLevelFlowsTooFewSnapshots(t *testing.T) {
	snaps := []models.Snapshot{snap1(1, 100, 10, 101, 5)}
	_, err := ComputeLevelFlows(snaps, 1)
	var dqErr *DataQualityError
	if !errors.As(err, &dqErr) {
		t.Fatalf("expected DataQualityError, got %v", err)
	}
}
