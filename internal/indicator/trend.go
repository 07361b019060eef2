package indicator

import (
	"math"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// ClassifySlope maps an SMA slope (percent) to a trend.
func ClassifySlope(slope float64) model.TrendType {
	switch {
	case math.Abs(slope) < RangingThreshold:
		return model.TrendRanging
	case slope < 0:
		return model.TrendBearish
	default:
		return model.TrendBullish
	}
}

// ClassifyHistogram compares the histogram with its EMA.
func ClassifyHistogram(histogram, histogramEMA float64) model.HistogramTrendType {
	d := histogram - histogramEMA
	switch {
	case d == 0:
		return model.HistogramPlateaued
	case d < 0:
		return model.HistogramDecelerating
	default:
		return model.HistogramAccelerating
	}
}

// smaSlope returns the percent change from ref to sma and whether it is defined.
func smaSlope(sma, ref float64) (float64, bool) {
	if !(ref > 0) {
		return 0, false
	}
	s := (sma - ref) / ref * 100
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, false
	}
	return s, true
}
