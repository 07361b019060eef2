package model

import "errors"

var (
	// ErrInvalidInstrument is returned by a MarketData implementation when the
	// exchange reports the instrument as unknown or delisted. It is permanent.
	ErrInvalidInstrument = errors.New("invalid instrument")

	// ErrDuplicateRow is returned by a RowStore when a row with the same
	// (instrument, timeframe, time) key already exists.
	ErrDuplicateRow = errors.New("duplicate indicator row")
)
