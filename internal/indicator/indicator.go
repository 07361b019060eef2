// Package indicator computes the per-candle indicator series: a 30-period SMA
// with slope trend, EMA12/EMA26, MACD with its 9-period signal line, and the
// MACD histogram with its own 5-period EMA and momentum classification.
//
// All bootstrap points are fixed series positions (0-indexed):
//
//	ema12      seeded at 11 from the SMA (12 closes available)
//	ema26/macd seeded at 25 from the SMA (26 closes available)
//	signal     seeded at 34 from the average of macd[26..34]
//	hist EMA   seeded at 39 from the average of histogram[35..39]
//
// After a seed point every value is derived from the previous row only, so a
// series can be resumed from its persisted tail.
package indicator

const (
	SMAPeriod       = 30
	SlopeLookback   = 9 // sma[i] is compared with sma[i-9]
	FastPeriod      = 12
	SlowPeriod      = 26
	SignalPeriod    = 9
	HistogramPeriod = 5

	// RangingThreshold is the absolute SMA slope, in percent, below which the
	// trend is RANGING.
	RangingThreshold = 0.25
)

const (
	fastSeedIdx   = FastPeriod - 1
	slowSeedIdx   = SlowPeriod - 1
	signalSeedIdx = slowSeedIdx + SignalPeriod
	histSeedIdx   = signalSeedIdx + HistogramPeriod
)

// TailSize is how many persisted rows Extend needs to resume a series.
// A shorter tail must be the complete series.
const TailSize = histSeedIdx + 1
