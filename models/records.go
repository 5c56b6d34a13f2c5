package models

// SignalRecord is the persisted per-instrument row consumed by the
// presentation layer: one row per time step with the best-level and
// integrated OFI values.
type SignalRecord struct {
	Instrument    string  `parquet:"name=instrument, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp     int64   `parquet:"name=timestamp, type=INT64"`
	BestOFI       float64 `parquet:"name=best_ofi, type=DOUBLE"`
	IntegratedOFI float64 `parquet:"name=integrated_ofi, type=DOUBLE"`
}

// CrossImpactRecord is one cell of the cross-impact matrix in long form,
// suitable for rendering as a heatmap downstream. RSquared is repeated on
// every row of the same target.
type CrossImpactRecord struct {
	Target      string  `parquet:"name=target, type=BYTE_ARRAY, convertedtype=UTF8"`
	Source      string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
	Coefficient float64 `parquet:"name=coefficient, type=DOUBLE"`
	RSquared    float64 `parquet:"name=r_squared, type=DOUBLE"`
}
