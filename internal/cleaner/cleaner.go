// Package cleaner implements the record-cleaning algorithm: deduplication,
// OHLC-invariant validation and time-gap repair for one (symbol, interval)
// stream. It performs no I/O and holds no shared state.
package cleaner

import (
	"fmt"
	"sort"

	"github.com/zer0data/ingestor/internal/model"
)

// maxValidationErrors caps the diagnostic sample retained in Stats.
const maxValidationErrors = 10

// Stats counts the actions taken by one Clean call.
type Stats struct {
	DuplicatesRemoved int
	GapsFilled        int
	InvalidRemoved    int

	// ValidationErrors holds a bounded sample of human-readable reasons
	// for removed records.
	ValidationErrors []string
}

// Add accumulates other into s. The error sample stays bounded.
func (s *Stats) Add(other Stats) {
	s.DuplicatesRemoved += other.DuplicatesRemoved
	s.GapsFilled += other.GapsFilled
	s.InvalidRemoved += other.InvalidRemoved
	for _, e := range other.ValidationErrors {
		if len(s.ValidationErrors) >= maxValidationErrors {
			break
		}
		s.ValidationErrors = append(s.ValidationErrors, e)
	}
}

// Result is the output of one Clean call.
type Result struct {
	Records []model.Kline
	Stats   Stats
}

// Cleaner cleans kline batches for a single interval. The zero value is not
// usable; construct with New.
type Cleaner struct {
	interval   model.Interval
	intervalMs int64
}

// New creates a Cleaner for the given interval.
func New(interval model.Interval) (*Cleaner, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("invalid interval %q", interval)
	}
	return &Cleaner{interval: interval, intervalMs: interval.Milliseconds()}, nil
}

// Clean deduplicates, validates and gap-fills one ordered batch of records
// for a single (symbol, interval) key.
//
// Mixing symbols or intervals within one call is a programming error and is
// reported as such; malformed field values never are — the offending record
// is dropped and counted instead.
func (c *Cleaner) Clean(records []model.Kline) (Result, error) {
	var stats Stats
	if len(records) == 0 {
		return Result{Records: records, Stats: stats}, nil
	}

	if err := c.checkSingleKey(records); err != nil {
		return Result{}, err
	}

	// Deterministic order: ascending open_time, ties keep input order, so
	// "first occurrence wins" below is well defined under re-delivery.
	sorted := make([]model.Kline, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTime < sorted[j].OpenTime
	})

	deduped := c.dedup(sorted, &stats)
	valid := c.validate(deduped, &stats)
	filled := c.fillGaps(valid, &stats)

	return Result{Records: filled, Stats: stats}, nil
}

// Interval returns the interval this cleaner was constructed for.
func (c *Cleaner) Interval() model.Interval { return c.interval }

func (c *Cleaner) checkSingleKey(records []model.Kline) error {
	key := records[0].Key()
	if key.Interval != c.interval {
		return fmt.Errorf("record interval %s does not match cleaner interval %s", key.Interval, c.interval)
	}
	for i := range records {
		if records[i].Key() != key {
			return fmt.Errorf("mixed keys in one batch: %s/%s and %s/%s",
				key.Symbol, key.Interval, records[i].Symbol, records[i].Interval)
		}
	}
	return nil
}

// dedup keeps the first occurrence of each open_time.
func (c *Cleaner) dedup(records []model.Kline, stats *Stats) []model.Kline {
	out := records[:0:len(records)]
	var lastTime int64 = -1
	for i := range records {
		if len(out) > 0 && records[i].OpenTime == lastTime {
			stats.DuplicatesRemoved++
			continue
		}
		out = append(out, records[i])
		lastTime = records[i].OpenTime
	}
	return out
}

// validate drops records violating the OHLC/volume invariants, keeping a
// bounded sample of reasons.
func (c *Cleaner) validate(records []model.Kline, stats *Stats) []model.Kline {
	out := records[:0]
	for i := range records {
		issues := records[i].ValidationIssues()
		if len(issues) == 0 {
			out = append(out, records[i])
			continue
		}
		stats.InvalidRemoved++
		for _, iss := range issues {
			if len(stats.ValidationErrors) >= maxValidationErrors {
				break
			}
			stats.ValidationErrors = append(stats.ValidationErrors, iss)
		}
	}
	return out
}

// fillGaps synthesizes flat candles at every missing interval slot between
// consecutive surviving records. Prices forward-fill from the previous close
// (not interpolated); volume fields and the trade count are zero. With fewer
// than two survivors no gap is definable and the input is returned as is.
func (c *Cleaner) fillGaps(records []model.Kline, stats *Stats) []model.Kline {
	if len(records) < 2 {
		return records
	}

	out := make([]model.Kline, 0, len(records))
	out = append(out, records[0])
	for i := 1; i < len(records); i++ {
		prev := out[len(out)-1]
		for t := prev.OpenTime + c.intervalMs; t < records[i].OpenTime; t += c.intervalMs {
			out = append(out, c.syntheticCandle(prev, t))
			stats.GapsFilled++
			prev = out[len(out)-1]
		}
		out = append(out, records[i])
	}
	return out
}

// syntheticCandle builds a zero-activity candle at openTime priced flat at
// the previous record's close.
func (c *Cleaner) syntheticCandle(prev model.Kline, openTime int64) model.Kline {
	return model.Kline{
		Symbol:    prev.Symbol,
		Interval:  prev.Interval,
		OpenTime:  openTime,
		CloseTime: openTime + c.intervalMs - 1,
		Open:      prev.Close,
		High:      prev.Close,
		Low:       prev.Close,
		Close:     prev.Close,
	}
}
