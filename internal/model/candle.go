package model

import "time"

// Candle is one exchange kline. The engine only consumes OpenTime and Close;
// the remaining fields are carried for logging and publication.
type Candle struct {
	OpenTime time.Time `json:"open_time"` // UTC, aligned to the timeframe
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}
