package processor

import (
	"testing"
)

func TestAlignToGridPicksNearestValue(t *testing.T) {
	grid := []int64{1000, 2000, 3000}
	timestamps := []int64{900, 2100, 3600}
	values := []float64{1, 2, 3}

	aligned, err := AlignToGrid("AAPL", grid, timestamps, values, 0)
	if err != nil {
		t.Fatalf("AlignToGrid: %v", err)
	}
	// 1000 is nearest 900, 2000 nearest 2100, 3000 nearest 3600 (600 vs 900).
	want := []float64{1, 2, 3}
	for i := range want {
		if aligned[i] != want[i] {
			t.Errorf("aligned[%d] = %v, want %v", i, aligned[i], want[i])
		}
	}
}

func TestAlignToGridExactMatchesPassThrough(t *testing.T) {
	grid := []int64{1000, 2000, 3000}
	values := []float64{10, 20, 30}

	aligned, err := AlignToGrid("AAPL", grid, grid, values, 1)
	if err != nil {
		t.Fatalf("AlignToGrid: %v", err)
	}
	for i := range values {
		if aligned[i] != values[i] {
			t.Errorf("aligned[%d] = %v, want %v", i, aligned[i], values[i])
		}
	}
}

func TestAlignToGridToleranceExceeded(t *testing.T) {
	grid := []int64{1000, 5000}
	timestamps := []int64{1000, 1100}
	values := []float64{1, 2}

	if _, err := AlignToGrid("AAPL", grid, timestamps, values, 500); err == nil {
		t.Fatal("expected error when nearest sample is outside tolerance")
	}
}

func TestAlignToGridGridBeforeFirstSample(t *testing.T) {
	grid := []int64{500, 1500}
	timestamps := []int64{1000, 2000}
	values := []float64{7, 8}

	aligned, err := AlignToGrid("AAPL", grid, timestamps, values, 0)
	if err != nil {
		t.Fatalf("AlignToGrid: %v", err)
	}
	if aligned[0] != 7 {
		t.Errorf("aligned[0] = %v, want 7 (nearest available)", aligned[0])
	}
	if aligned[1] != 7 && aligned[1] != 8 {
		t.Errorf("aligned[1] = %v, want a real sample value", aligned[1])
	}
}

func TestAlignToGridLengthMismatch(t *testing.T) {
	if _, err := AlignToGrid("AAPL", []int64{1000}, []int64{1000, 2000}, []float64{1}, 0); err == nil {
		t.Fatal("expected error for timestamp/value length mismatch")
	}
}
