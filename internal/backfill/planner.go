// Package backfill decides which completed candles a series still needs.
package backfill

import (
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// DefaultCap is the largest number of candles requested in one window.
const DefaultCap = 1000

// Window is an inclusive range of candle open times.
type Window struct {
	Start time.Time
	End   time.Time
}

// Periods returns the number of candles the window spans.
func (w Window) Periods(tf model.Timeframe) int {
	return int(w.End.Sub(w.Start)/tf.Duration()) + 1
}

// Planner computes the next window to fetch for a series. It never includes
// the period that is still open at the time of planning.
type Planner struct {
	Epoch time.Time // first candle of an empty series
	Cap   int       // candles per window
}

// New returns a Planner starting empty series at epoch.
// A non-positive cap selects DefaultCap.
func New(epoch time.Time, capacity int) *Planner {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Planner{Epoch: epoch.UTC(), Cap: capacity}
}

// Plan returns the window following the last prior row, or the window starting
// at the epoch when prior is empty. ok is false when every completed period
// has already been persisted.
func (p *Planner) Plan(prior []model.IndicatorRow, tf model.Timeframe, now time.Time) (Window, bool) {
	if len(prior) == 0 {
		return p.PlanFrom(p.start(tf), tf, now)
	}
	return p.PlanFrom(tf.Next(prior[len(prior)-1].Time), tf, now)
}

// PlanFrom returns the window beginning at start.
func (p *Planner) PlanFrom(start time.Time, tf model.Timeframe, now time.Time) (Window, bool) {
	start = start.UTC()
	current := tf.Align(now)
	if !start.Before(current) {
		return Window{}, false
	}

	n := p.Cap
	if n <= 0 {
		n = DefaultCap
	}
	end := tf.Advance(start, n-1)
	if !end.Before(current) {
		end = tf.Prev(current)
	}
	return Window{Start: start, End: end}, true
}

// start aligns the epoch to the first period opening at or after it.
func (p *Planner) start(tf model.Timeframe) time.Time {
	s := tf.Align(p.Epoch)
	if s.Before(p.Epoch) {
		s = tf.Next(s)
	}
	return s
}
