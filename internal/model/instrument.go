package model

import "strings"

// Instrument is a base/quote pair such as "BTC/USDT".
type Instrument string

// Base returns the part before the slash.
func (i Instrument) Base() string {
	b, _, _ := strings.Cut(string(i), "/")
	return b
}

// Quote returns the part after the slash, or "" if there is none.
func (i Instrument) Quote() string {
	_, q, _ := strings.Cut(string(i), "/")
	return q
}

// Valid reports whether both sides are non-empty and alphanumeric, the
// form the exchange accepts once the slash is dropped.
func (i Instrument) Valid() bool {
	return alnum(i.Base()) && alnum(i.Quote()) && strings.Count(string(i), "/") == 1
}

func alnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Symbol returns the exchange symbol: "BTC/USDT" → "BTCUSDT".
func (i Instrument) Symbol() string {
	return strings.ToUpper(strings.ReplaceAll(string(i), "/", ""))
}

func (i Instrument) String() string { return string(i) }

// SeriesKey identifies one (instrument, timeframe) series: "1h:BTC/USDT".
func SeriesKey(inst Instrument, tf Timeframe) string {
	return tf.String() + ":" + string(inst)
}
