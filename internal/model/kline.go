package model

import "fmt"

// Kline is one fixed-duration OHLCV candlestick for a trading symbol.
type Kline struct {
	Symbol   string
	Interval Interval

	OpenTime  int64 // ms since epoch
	CloseTime int64 // OpenTime + interval − 1ms

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume              float64
	QuoteVolume         float64
	TakerBuyVolume      float64
	TakerBuyQuoteVolume float64

	TradesCount int64
}

// Key identifies the stream a kline belongs to. The cleaner and the chunked
// engine operate on one key at a time.
type Key struct {
	Symbol   string
	Interval Interval
}

// Key returns the (symbol, interval) stream key of k.
func (k *Kline) Key() Key {
	return Key{Symbol: k.Symbol, Interval: k.Interval}
}

// ValidationIssues returns every OHLC/volume invariant k violates, as
// human-readable strings. An empty result means the record is valid.
func (k *Kline) ValidationIssues() []string {
	var issues []string
	if k.Open <= 0 || k.High <= 0 || k.Low <= 0 || k.Close <= 0 {
		issues = append(issues, fmt.Sprintf("non-positive price at %d", k.OpenTime))
	}
	if k.High < max(k.Open, k.Close) {
		issues = append(issues, fmt.Sprintf("high < max(open, close) at %d", k.OpenTime))
	}
	if k.Low > min(k.Open, k.Close) {
		issues = append(issues, fmt.Sprintf("low > min(open, close) at %d", k.OpenTime))
	}
	if k.High < k.Low {
		issues = append(issues, fmt.Sprintf("high < low at %d", k.OpenTime))
	}
	if k.Volume < 0 || k.QuoteVolume < 0 || k.TakerBuyVolume < 0 || k.TakerBuyQuoteVolume < 0 {
		issues = append(issues, fmt.Sprintf("negative volume at %d", k.OpenTime))
	}
	return issues
}

// Valid reports whether k passes every OHLC/volume invariant.
func (k *Kline) Valid() bool {
	return len(k.ValidationIssues()) == 0
}
