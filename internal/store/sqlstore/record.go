package sqlstore

import (
	"fmt"
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// record is the column layout of indicator_rows.
type record struct {
	Instrument         string  `db:"instrument"`
	Timeframe          string  `db:"timeframe"`
	TS                 int64   `db:"ts"`
	ClosePrice         float64 `db:"close_price"`
	SMA                float64 `db:"sma"`
	SMASlope           float64 `db:"sma_slope"`
	TrendType          string  `db:"trend_type"`
	EMA12              float64 `db:"ema12"`
	EMA26              float64 `db:"ema26"`
	MACD               float64 `db:"macd"`
	MACDSignal         float64 `db:"macd_signal"`
	Histogram          float64 `db:"histogram"`
	HistogramEMA       float64 `db:"histogram_ema"`
	HistogramTrendType string  `db:"histogram_trend_type"`
}

func toRecord(r model.IndicatorRow) record {
	return record{
		Instrument:         string(r.Instrument),
		Timeframe:          r.Timeframe.String(),
		TS:                 r.Time.Unix(),
		ClosePrice:         r.ClosePrice,
		SMA:                r.SMA,
		SMASlope:           r.SMASlope,
		TrendType:          string(r.TrendType),
		EMA12:              r.EMA12,
		EMA26:              r.EMA26,
		MACD:               r.MACD,
		MACDSignal:         r.MACDSignal,
		Histogram:          r.Histogram,
		HistogramEMA:       r.HistogramEMA,
		HistogramTrendType: string(r.HistogramTrendType),
	}
}

func (r record) toRow() (model.IndicatorRow, error) {
	tf, err := model.ParseTimeframe(r.Timeframe)
	if err != nil {
		return model.IndicatorRow{}, fmt.Errorf("sqlstore: row %s@%d: %w", r.Instrument, r.TS, err)
	}
	return model.IndicatorRow{
		Instrument:         model.Instrument(r.Instrument),
		Timeframe:          tf,
		Time:               time.Unix(r.TS, 0).UTC(),
		ClosePrice:         r.ClosePrice,
		SMA:                r.SMA,
		SMASlope:           r.SMASlope,
		TrendType:          model.TrendType(r.TrendType),
		EMA12:              r.EMA12,
		EMA26:              r.EMA26,
		MACD:               r.MACD,
		MACDSignal:         r.MACDSignal,
		Histogram:          r.Histogram,
		HistogramEMA:       r.HistogramEMA,
		HistogramTrendType: model.HistogramTrendType(r.HistogramTrendType),
	}, nil
}
