package model

import (
	"encoding/json"
	"time"
)

// TrendType classifies the slope of the 30-period SMA.
type TrendType string

const (
	TrendNA      TrendType = "NA"
	TrendRanging TrendType = "RANGING"
	TrendBullish TrendType = "BULLISH"
	TrendBearish TrendType = "BEARISH"
)

// HistogramTrendType classifies the MACD histogram against its own EMA.
type HistogramTrendType string

const (
	HistogramNA           HistogramTrendType = "NA"
	HistogramPlateaued    HistogramTrendType = "PLATEAUED"
	HistogramDecelerating HistogramTrendType = "DECELERATING"
	HistogramAccelerating HistogramTrendType = "ACCELERATING"
)

// IndicatorRow is one computed row per (instrument, timeframe, candle open time).
// Rows are values: once appended to a store they are never modified.
type IndicatorRow struct {
	Instrument Instrument `json:"instrument"`
	Timeframe  Timeframe  `json:"-"`
	Time       time.Time  `json:"time"` // candle open, UTC

	ClosePrice float64   `json:"close_price"`
	SMA        float64   `json:"sma"`
	SMASlope   float64   `json:"sma_slope"`
	TrendType  TrendType `json:"trend_type"`

	EMA12      float64 `json:"ema12"`
	EMA26      float64 `json:"ema26"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	Histogram  float64 `json:"histogram"`

	HistogramEMA       float64            `json:"histogram_ema"`
	HistogramTrendType HistogramTrendType `json:"histogram_trend_type"`
}

// Key returns "tf:instrument@RFC3339", unique per row.
func (r IndicatorRow) Key() string {
	return SeriesKey(r.Instrument, r.Timeframe) + "@" + r.Time.UTC().Format(time.RFC3339)
}

// JSON encodes the row with its timeframe rendered as a string.
func (r IndicatorRow) JSON() []byte {
	type alias IndicatorRow
	b, _ := json.Marshal(struct {
		alias
		Timeframe string `json:"timeframe"`
	}{alias(r), r.Timeframe.String()})
	return b
}
