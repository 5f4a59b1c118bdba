package model

import (
	"fmt"
	"time"
)

// Interval is a fixed kline duration. It determines both the gap-fill step
// and the storage partition a record is routed to.
type Interval string

// The full set of supported intervals.
const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval8h:  8 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// intervalOrder keeps Intervals() deterministic (shortest to longest).
var intervalOrder = []Interval{
	Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
	Interval1h, Interval2h, Interval4h, Interval6h, Interval8h,
	Interval12h, Interval1d,
}

// Intervals returns all supported intervals, shortest first.
func Intervals() []Interval {
	out := make([]Interval, len(intervalOrder))
	copy(out, intervalOrder)
	return out
}

// Valid reports whether i is one of the supported intervals.
func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]
	return ok
}

// Milliseconds returns the interval duration in milliseconds.
// Returns 0 for an invalid interval.
func (i Interval) Milliseconds() int64 {
	return intervalDurations[i].Milliseconds()
}

// String implements fmt.Stringer.
func (i Interval) String() string { return string(i) }

// ParseInterval validates s and returns it as an Interval.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if !iv.Valid() {
		return "", fmt.Errorf("invalid interval %q", s)
	}
	return iv, nil
}
