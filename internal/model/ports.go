package model

import (
	"context"
	"time"
)

// ── Ports ──
// The indicator engine only depends on these interfaces; concrete exchange,
// storage and publication backends live in their own packages.

// RowWriter appends a single committed row.
type RowWriter interface {
	Append(ctx context.Context, row IndicatorRow) error
}

// RowStore is the persisted, append-only indicator series.
type RowStore interface {
	RowWriter

	// RecentRows returns up to limit most recent rows for the series,
	// ordered by time ascending.
	RecentRows(ctx context.Context, inst Instrument, tf Timeframe, limit int) ([]IndicatorRow, error)
}

// MarketData fetches completed klines.
type MarketData interface {
	// FetchCandles returns candles whose open time lies in [from, to],
	// ordered by open time ascending. Unknown instruments yield an error
	// wrapping ErrInvalidInstrument.
	FetchCandles(ctx context.Context, inst Instrument, tf Timeframe, from, to time.Time) ([]Candle, error)
}

// RateLimiter blocks until one request may be issued.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// RowSink receives rows after they were committed to the primary store.
type RowSink interface {
	PublishRow(ctx context.Context, row IndicatorRow) error
}
