package indengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
	"github.com/saidmurad/cryptobot-sub000/internal/notification"
)

var (
	epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// ten completed daily candles: Jan 1 .. Jan 10
	now = time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC)
)

type memStore struct {
	mu     sync.Mutex
	series map[string][]model.IndicatorRow
	failOn model.Instrument
}

func newMemStore() *memStore {
	return &memStore{series: make(map[string][]model.IndicatorRow)}
}

func (m *memStore) Append(_ context.Context, row model.IndicatorRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.Instrument == m.failOn {
		return errors.New("disk full")
	}
	key := model.SeriesKey(row.Instrument, row.Timeframe)
	s := m.series[key]
	if n := len(s); n > 0 && !row.Time.After(s[n-1].Time) {
		return model.ErrDuplicateRow
	}
	m.series[key] = append(s, row)
	return nil
}

func (m *memStore) RecentRows(_ context.Context, inst model.Instrument, tf model.Timeframe, limit int) ([]model.IndicatorRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.series[model.SeriesKey(inst, tf)]
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return append([]model.IndicatorRow(nil), s...), nil
}

func (m *memStore) rows(inst model.Instrument, tf model.Timeframe) []model.IndicatorRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.IndicatorRow(nil), m.series[model.SeriesKey(inst, tf)]...)
}

// fakeMarket serves one candle per period in [from, to], closing at the
// period's index from epoch plus one.
type fakeMarket struct {
	mu     sync.Mutex
	calls  map[model.Instrument]int
	errs   map[model.Instrument]error
	listed  time.Time      // no candles before this
	extra   []model.Candle // appended to every response
	panicOn model.Instrument
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		calls: make(map[model.Instrument]int),
		errs:  make(map[model.Instrument]error),
	}
}

func (f *fakeMarket) FetchCandles(_ context.Context, inst model.Instrument, tf model.Timeframe, from, to time.Time) ([]model.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[inst]++
	if inst == f.panicOn {
		panic("nil kline page")
	}
	if err := f.errs[inst]; err != nil {
		return nil, err
	}
	var out []model.Candle
	for t := from; !t.After(to); t = tf.Next(t) {
		if t.Before(f.listed) {
			continue
		}
		idx := float64(t.Sub(epoch) / tf.Duration())
		out = append(out, model.Candle{OpenTime: t, Close: idx + 1})
	}
	return append(out, f.extra...), nil
}

func (f *fakeMarket) callCount(inst model.Instrument) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[inst]
}

type recNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (n *recNotifier) Send(_ context.Context, a notification.Alert) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	return nil
}

func (n *recNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// failNotifier counts delivery attempts and fails every one of them.
type failNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *failNotifier) Send(context.Context, notification.Alert) error {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	return errors.New("webhook: 502")
}

// flakyTailStore fails the single-row tail read used after the window
// budget is spent.
type flakyTailStore struct {
	*memStore
}

func (s flakyTailStore) RecentRows(ctx context.Context, inst model.Instrument, tf model.Timeframe, limit int) ([]model.IndicatorRow, error) {
	if limit == 1 {
		return nil, errors.New("database is locked")
	}
	return s.memStore.RecentRows(ctx, inst, tf, limit)
}

func invalidErr(inst model.Instrument) error {
	return fmt.Errorf("klines %s: %w", inst.Symbol(), model.ErrInvalidInstrument)
}
