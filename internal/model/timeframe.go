package model

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a fixed candle period. All alignment is done in UTC.
type Timeframe int

const (
	TF15m Timeframe = iota + 1
	TF1h
	TF4h
	TF1d
)

// AllTimeframes returns every supported timeframe, shortest first.
func AllTimeframes() []Timeframe {
	return []Timeframe{TF15m, TF1h, TF4h, TF1d}
}

func (tf Timeframe) String() string {
	switch tf {
	case TF15m:
		return "15m"
	case TF1h:
		return "1h"
	case TF4h:
		return "4h"
	case TF1d:
		return "1d"
	default:
		return "unknown"
	}
}

// ParseTimeframe accepts the String() form ("15m", "1h", "4h", "1d").
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "15m":
		return TF15m, nil
	case "1h":
		return TF1h, nil
	case "4h":
		return TF4h, nil
	case "1d":
		return TF1d, nil
	}
	return 0, fmt.Errorf("unknown timeframe %q", s)
}

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	return tf >= TF15m && tf <= TF1d
}

// Duration returns the length of one period.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Align returns the open time of the period containing t.
//
//	15m → :00/:15/:30/:45, 1h → top of the hour,
//	4h  → hour-of-day floored to a multiple of 4, 1d → midnight UTC.
func (tf Timeframe) Align(t time.Time) time.Time {
	u := t.UTC()
	switch tf {
	case TF15m:
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute()/15*15, 0, 0, time.UTC)
	case TF1h:
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
	case TF4h:
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour()/4*4, 0, 0, 0, time.UTC)
	case TF1d:
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return u
	}
}

// Next returns the open time of the period after the one opening at t.
func (tf Timeframe) Next(t time.Time) time.Time {
	return t.UTC().Add(tf.Duration())
}

// Prev returns the open time of the period before the one opening at t.
func (tf Timeframe) Prev(t time.Time) time.Time {
	return t.UTC().Add(-tf.Duration())
}

// Advance moves t forward by n periods.
func (tf Timeframe) Advance(t time.Time, n int) time.Time {
	return t.UTC().Add(time.Duration(n) * tf.Duration())
}
