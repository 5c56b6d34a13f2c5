package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"ofiflow/logger"
	"ofiflow/models"
)

// levelColumns holds the header indexes of one book level's four fields.
// An index of -1 means the column is absent from the file.
type levelColumns struct {
	bidPx, bidSz, askPx, askSz int
}

// LoadSnapshots parses an MBP-style CSV file into an ordered snapshot
// sequence for one instrument. The file must carry a ts_event column and
// per-level bid_px_00/bid_sz_00/ask_px_00/ask_sz_00 columns (databento
// naming, level suffixes 00..). Rows must already be sorted by timestamp;
// the loader verifies monotonicity and fails otherwise. Unparseable numeric
// fields become NaN and are logged, so downstream stages can apply their
// zero-flow treatment instead of the whole file failing.
func LoadSnapshots(path, instrument string) ([]models.Snapshot, error) {
	log := logger.GetLogger().WithComponent("csv_reader").WithFields(logger.Fields{
		"instrument": instrument,
		"path":       path,
	})

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	tsCol := -1
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
		if name == "ts_event" || name == "timestamp" {
			tsCol = i
		}
	}
	if tsCol == -1 {
		return nil, fmt.Errorf("snapshot file has no ts_event column")
	}

	levels := findLevelColumns(cols)
	if len(levels) == 0 {
		return nil, fmt.Errorf("snapshot file has no book level columns")
	}

	var snapshots []models.Snapshot
	badFields := 0
	lastTs := int64(math.MinInt64)
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		ts, err := parseTimestamp(record[tsCol])
		if err != nil {
			return nil, fmt.Errorf("bad timestamp on row %d: %w", line, err)
		}
		if ts < lastTs {
			return nil, fmt.Errorf("timestamps not sorted: row %d goes backwards", line)
		}
		lastTs = ts

		snap := models.Snapshot{
			Instrument: instrument,
			Timestamp:  ts,
			Bids:       make([]models.BookLevel, len(levels)),
			Asks:       make([]models.BookLevel, len(levels)),
		}
		for k, lc := range levels {
			snap.Bids[k] = models.BookLevel{
				Price: parseField(record, lc.bidPx, &badFields),
				Size:  parseField(record, lc.bidSz, &badFields),
			}
			snap.Asks[k] = models.BookLevel{
				Price: parseField(record, lc.askPx, &badFields),
				Size:  parseField(record, lc.askSz, &badFields),
			}
		}
		snapshots = append(snapshots, snap)
	}

	logger.IncrementSnapshotsRead(len(snapshots))
	if badFields > 0 {
		log.WithFields(logger.Fields{"rows": len(snapshots), "bad_fields": badFields}).Warn("snapshots loaded with unparseable fields")
	} else {
		log.WithFields(logger.Fields{"rows": len(snapshots), "levels": len(levels)}).Info("snapshots loaded")
	}

	return snapshots, nil
}

// findLevelColumns collects consecutive level column groups starting at
// suffix 00. A level is usable only when all four of its columns exist.
func findLevelColumns(cols map[string]int) []levelColumns {
	var levels []levelColumns
	for k := 0; ; k++ {
		suffix := fmt.Sprintf("%02d", k)
		lc := levelColumns{bidPx: -1, bidSz: -1, askPx: -1, askSz: -1}
		ok := true
		if i, found := cols["bid_px_"+suffix]; found {
			lc.bidPx = i
		} else {
			ok = false
		}
		if i, found := cols["bid_sz_"+suffix]; found {
			lc.bidSz = i
		} else {
			ok = false
		}
		if i, found := cols["ask_px_"+suffix]; found {
			lc.askPx = i
		} else {
			ok = false
		}
		if i, found := cols["ask_sz_"+suffix]; found {
			lc.askSz = i
		} else {
			ok = false
		}
		if !ok {
			return levels
		}
		levels = append(levels, lc)
	}
}

// parseTimestamp accepts integer nanoseconds or an RFC3339 timestamp.
func parseTimestamp(s string) (int64, error) {
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ns, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, err
	}
	return t.UnixNano(), nil
}

// parseField returns the float value of one record field, or NaN when the
// field is empty or unparseable.
func parseField(record []string, idx int, badFields *int) float64 {
	s := record[idx]
	if s == "" {
		*badFields++
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*badFields++
		return math.NaN()
	}
	return v
}
