package models

import "math"

// BookLevel represents one resting price level of the order book.
// A missing price or size is carried as NaN so downstream stages can
// distinguish "absent" from a genuine zero.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Empty reports whether the level carries no usable liquidity information.
func (l BookLevel) Empty() bool {
	return math.IsNaN(l.Price) || math.IsNaN(l.Size)
}

// Snapshot is one book update event for a single instrument. Bids and Asks
// are ordered by distance from the best price: index 0 is the best level.
// Snapshots are immutable once produced by the reader.
type Snapshot struct {
	Instrument string      `json:"instrument"`
	Timestamp  int64       `json:"timestamp"` // nanoseconds since epoch
	Bids       []BookLevel `json:"bids"`
	Asks       []BookLevel `json:"asks"`
}

// Levels returns the number of book levels present on both sides.
func (s Snapshot) Levels() int {
	if len(s.Bids) < len(s.Asks) {
		return len(s.Bids)
	}
	return len(s.Asks)
}

// Mid returns the midpoint of the best bid and ask, or NaN when either
// side is missing.
func (s Snapshot) Mid() float64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return math.NaN()
	}
	bid, ask := s.Bids[0].Price, s.Asks[0].Price
	if math.IsNaN(bid) || math.IsNaN(ask) {
		return math.NaN()
	}
	return (bid + ask) / 2
}
