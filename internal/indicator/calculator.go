package indicator

import (
	"context"
	"errors"
	"fmt"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// ErrOutOfOrder is returned when a candle does not open strictly after the
// previous row of the series.
var ErrOutOfOrder = errors.New("candle out of order")

// Calculator extends indicator series and commits every new row through a
// RowWriter as soon as it is computed. It keeps no state between calls and
// may be shared by any number of goroutines as long as the writer allows it.
type Calculator struct {
	writer model.RowWriter
}

// NewCalculator creates a Calculator that commits rows to w.
func NewCalculator(w model.RowWriter) *Calculator {
	return &Calculator{writer: w}
}

// Extend computes one row per candle following prior and commits each row
// before computing the next. prior must be the complete series or at least its
// last TailSize rows, ascending. On error the rows committed so far are
// returned together with the error.
func (c *Calculator) Extend(ctx context.Context, prior []model.IndicatorRow, candles []model.Candle,
	inst model.Instrument, tf model.Timeframe) ([]model.IndicatorRow, error) {

	series := make([]model.IndicatorRow, 0, len(prior)+len(candles))
	series = append(series, prior...)

	window := NewWindow(SMAPeriod)
	from := len(prior) - (SMAPeriod - 1)
	if from < 0 {
		from = 0
	}
	for _, r := range prior[from:] {
		window.Push(r.ClosePrice)
	}

	out := make([]model.IndicatorRow, 0, len(candles))
	for _, cdl := range candles {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if n := len(series); n > 0 && !cdl.OpenTime.After(series[n-1].Time) {
			return out, fmt.Errorf("%s %s at %s: %w", inst, tf, cdl.OpenTime.UTC().Format("2006-01-02T15:04"), ErrOutOfOrder)
		}

		window.Push(cdl.Close)
		row := next(series, window, cdl, inst, tf)

		if err := c.writer.Append(ctx, row); err != nil {
			return out, fmt.Errorf("append %s: %w", row.Key(), err)
		}
		series = append(series, row)
		out = append(out, row)
	}
	return out, nil
}

// next derives the row at position len(series). window already holds the
// new close.
func next(series []model.IndicatorRow, window *Window, cdl model.Candle,
	inst model.Instrument, tf model.Timeframe) model.IndicatorRow {

	i := len(series)
	row := model.IndicatorRow{
		Instrument:         inst,
		Timeframe:          tf,
		Time:               cdl.OpenTime.UTC(),
		ClosePrice:         cdl.Close,
		SMA:                window.Mean(),
		TrendType:          model.TrendNA,
		HistogramTrendType: model.HistogramNA,
	}

	if i >= SlopeLookback {
		if slope, ok := smaSlope(row.SMA, series[i-SlopeLookback].SMA); ok {
			row.SMASlope = slope
			row.TrendType = ClassifySlope(slope)
		}
	}

	switch {
	case i == fastSeedIdx:
		row.EMA12 = row.SMA
	case i > fastSeedIdx:
		row.EMA12 = emaStep(series[i-1].EMA12, row.ClosePrice, FastPeriod)
	}

	switch {
	case i == slowSeedIdx:
		row.EMA26 = row.SMA
	case i > slowSeedIdx:
		row.EMA26 = emaStep(series[i-1].EMA26, row.ClosePrice, SlowPeriod)
	}
	if i >= slowSeedIdx {
		row.MACD = row.EMA12 - row.EMA26
	}

	switch {
	case i == signalSeedIdx:
		prev := make([]float64, 0, SignalPeriod-1)
		for _, r := range series[slowSeedIdx+1 : i] {
			prev = append(prev, r.MACD)
		}
		row.MACDSignal = seedAverage(prev, row.MACD)
	case i > signalSeedIdx:
		row.MACDSignal = emaStep(series[i-1].MACDSignal, row.MACD, SignalPeriod)
	}
	if i >= signalSeedIdx {
		row.Histogram = row.MACD - row.MACDSignal
	}

	switch {
	case i == histSeedIdx:
		prev := make([]float64, 0, HistogramPeriod-1)
		for _, r := range series[signalSeedIdx+1 : i] {
			prev = append(prev, r.Histogram)
		}
		row.HistogramEMA = seedAverage(prev, row.Histogram)
	case i > histSeedIdx:
		row.HistogramEMA = emaStep(series[i-1].HistogramEMA, row.Histogram, HistogramPeriod)
	}
	if i >= histSeedIdx {
		row.HistogramTrendType = ClassifyHistogram(row.Histogram, row.HistogramEMA)
	}

	return row
}
