package indengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/backfill"
	"github.com/saidmurad/cryptobot-sub000/internal/indicator"
	"github.com/saidmurad/cryptobot-sub000/internal/logger"
	"github.com/saidmurad/cryptobot-sub000/internal/marketdata"
	"github.com/saidmurad/cryptobot-sub000/internal/metrics"
	"github.com/saidmurad/cryptobot-sub000/internal/model"
	"github.com/saidmurad/cryptobot-sub000/internal/notification"
)

const (
	DefaultPollInterval      = 60 * time.Second
	DefaultMaxWindowsPerPass = 50

	notifyTimeout = 10 * time.Second
)

// Deps are the collaborators shared by every runner of an Orchestrator.
type Deps struct {
	Store   model.RowStore
	Market  model.MarketData // rate limiting and circuit breaking are applied by the caller
	Planner *backfill.Planner
	Invalid *InvalidSet

	// Optional. Now defaults to time.Now.
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Now      func() time.Time
}

// Options tune the runner loop.
type Options struct {
	PollInterval      time.Duration
	MaxWindowsPerPass int
	Once              bool // bounded-run mode: exit after one full pass
}

// PassResult summarises one pass over a shard.
type PassResult struct {
	Instruments int
	Skipped     int
	Windows     int
	Rows        int
	Errors      int
	Pending     bool // some instrument still had windows left when its budget ran out
}

// ShardRunner drives one partition of instruments on one timeframe.
type ShardRunner struct {
	Timeframe   model.Timeframe
	Shard       int
	Instruments []model.Instrument

	deps Deps
	opts Options
	calc *indicator.Calculator

	// per-instrument scan position past windows the exchange returned empty
	cursors map[model.Instrument]time.Time
}

// NewShardRunner creates a runner. Zero options select the defaults.
func NewShardRunner(tf model.Timeframe, shard int, instruments []model.Instrument, deps Deps, opts Options) *ShardRunner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWindowsPerPass <= 0 {
		opts.MaxWindowsPerPass = DefaultMaxWindowsPerPass
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Invalid == nil {
		deps.Invalid = NewInvalidSet()
	}
	return &ShardRunner{
		Timeframe:   tf,
		Shard:       shard,
		Instruments: instruments,
		deps:        deps,
		opts:        opts,
		calc:        indicator.NewCalculator(deps.Store),
		cursors:     make(map[model.Instrument]time.Time),
	}
}

// Name identifies the runner in logs and health output: "1h/0".
func (r *ShardRunner) Name() string {
	return r.Timeframe.String() + "/" + strconv.Itoa(r.Shard)
}

// Run loops FETCH → COMPUTE → SLEEP until ctx is cancelled, or returns
// after one pass in bounded-run mode.
func (r *ShardRunner) Run(ctx context.Context) error {
	slog.Info("shard runner started", "shard", r.Name(), "instruments", len(r.Instruments))
	defer slog.Info("shard runner stopped", "shard", r.Name())

	for {
		res := r.RunOnce(ctx)
		if r.opts.Once {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if res.Pending {
			continue
		}

		timer := time.NewTimer(r.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce makes one pass over the shard's instruments.
func (r *ShardRunner) RunOnce(ctx context.Context) PassResult {
	start := time.Now()
	ctx = logger.WithTraceID(ctx, logger.NewTraceID(r.Timeframe.String()+"-"+strconv.Itoa(r.Shard)))
	log := slog.With(append(logger.LogWithTrace(ctx), "shard", r.Name())...)

	var res PassResult
	for _, inst := range r.Instruments {
		if ctx.Err() != nil {
			break
		}
		if r.deps.Invalid.Contains(inst) {
			res.Skipped++
			continue
		}
		res.Instruments++

		windows, rows, pending, err := r.catchUp(ctx, inst)
		res.Windows += windows
		res.Rows += rows
		res.Pending = res.Pending || pending
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res.Errors++
		if stop := r.handleError(ctx, log, inst, err); stop {
			break
		}
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.PassDuration.WithLabelValues(r.Timeframe.String()).Observe(time.Since(start).Seconds())
	}
	if r.deps.Health != nil && ctx.Err() == nil {
		r.deps.Health.RecordPass(r.Name(), time.Now())
	}
	log.Debug("pass complete",
		"instruments", res.Instruments, "skipped", res.Skipped, "windows", res.Windows,
		"rows", res.Rows, "errors", res.Errors, "pending", res.Pending,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res
}

// catchUp repeats plan → fetch → compute for one instrument until the planner
// has nothing left or the per-pass window budget is spent.
func (r *ShardRunner) catchUp(ctx context.Context, inst model.Instrument) (windows, rows int, pending bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	tf := r.Timeframe
	for windows < r.opts.MaxWindowsPerPass {
		tail, err := r.deps.Store.RecentRows(ctx, inst, tf, indicator.TailSize)
		if err != nil {
			return windows, rows, false, &stageError{stage: "store", err: fmt.Errorf("read tail: %w", err)}
		}

		now := r.deps.Now()
		w, ok := r.plan(inst, tail, now)
		if !ok {
			return windows, rows, false, nil
		}

		candles, err := r.deps.Market.FetchCandles(ctx, inst, tf, w.Start, w.End)
		if err != nil {
			return windows, rows, false, &stageError{stage: "fetch", err: err}
		}
		windows++
		if r.deps.Metrics != nil {
			r.deps.Metrics.WindowsFetched.WithLabelValues(tf.String()).Inc()
		}
		if r.deps.Health != nil {
			r.deps.Health.Heartbeat(r.Name(), time.Now())
		}

		candles = r.completed(tail, candles, now)
		if len(candles) == 0 {
			r.cursors[inst] = tf.Next(w.End)
			slog.Debug("empty window, advancing scan cursor",
				"instrument", inst, "timeframe", tf.String(), "from", w.Start, "to", w.End)
			continue
		}
		delete(r.cursors, inst)

		computeStart := time.Now()
		added, err := r.calc.Extend(ctx, tail, candles, inst, tf)
		rows += len(added)
		if r.deps.Metrics != nil {
			r.deps.Metrics.RowsAppended.WithLabelValues(tf.String()).Add(float64(len(added)))
			r.deps.Metrics.ComputeDur.Observe(time.Since(computeStart).Seconds())
		}
		if err != nil {
			return windows, rows, false, &stageError{stage: "compute", err: err}
		}
	}

	// budget spent; find out whether more is waiting
	tail, err := r.deps.Store.RecentRows(ctx, inst, tf, 1)
	if err != nil {
		// rows are committed; the next pass retries the read
		slog.Warn("pending check failed",
			append(logger.LogWithTrace(ctx), "shard", r.Name(), "instrument", inst, "error", err)...)
		if r.deps.Metrics != nil {
			r.deps.Metrics.FetchErrors.WithLabelValues(tf.String(), "store").Inc()
		}
		return windows, rows, false, nil
	}
	_, more := r.plan(inst, tail, r.deps.Now())
	return windows, rows, more, nil
}

// plan asks the planner for the next window, skipping past ranges the
// exchange already returned empty.
func (r *ShardRunner) plan(inst model.Instrument, tail []model.IndicatorRow, now time.Time) (backfill.Window, bool) {
	w, ok := r.deps.Planner.Plan(tail, r.Timeframe, now)
	if c, seen := r.cursors[inst]; ok && seen && c.After(w.Start) {
		return r.deps.Planner.PlanFrom(c, r.Timeframe, now)
	}
	return w, ok
}

// completed drops candles that are not strictly after the last persisted
// row, not strictly increasing, misaligned, or still open at now.
func (r *ShardRunner) completed(tail []model.IndicatorRow, candles []model.Candle, now time.Time) []model.Candle {
	tf := r.Timeframe
	current := tf.Align(now)
	var last time.Time
	if len(tail) > 0 {
		last = tail[len(tail)-1].Time
	}

	out := candles[:0:0]
	for _, c := range candles {
		t := c.OpenTime.UTC()
		if (!last.IsZero() && !t.After(last)) || !t.Before(current) || !tf.Align(t).Equal(t) {
			continue
		}
		c.OpenTime = t
		out = append(out, c)
		last = t
	}
	if dropped := len(candles) - len(out); dropped > 0 && r.deps.Metrics != nil {
		r.deps.Metrics.CandlesDropped.WithLabelValues(tf.String()).Add(float64(dropped))
	}
	return out
}

// handleError classifies a per-instrument failure. It reports whether the
// rest of the pass should be abandoned.
func (r *ShardRunner) handleError(ctx context.Context, log *slog.Logger, inst model.Instrument, err error) bool {
	tf := r.Timeframe.String()
	kind := errorKind(err)
	if r.deps.Metrics != nil {
		r.deps.Metrics.FetchErrors.WithLabelValues(tf, kind).Inc()
	}

	switch kind {
	case "invalid":
		if r.deps.Invalid.Add(inst) {
			log.Warn("instrument marked invalid", "instrument", inst, "error", err)
			if r.deps.Metrics != nil {
				r.deps.Metrics.InvalidInstruments.Set(float64(r.deps.Invalid.Len()))
			}
		}
		return false
	case "circuit_open":
		log.Warn("exchange circuit open, abandoning pass", "instrument", inst)
		return true
	}

	log.Error("instrument failed", "instrument", inst, "kind", kind, "error", err)
	r.notify(ctx, log, notification.Alert{
		Level:   notification.AlertWarning,
		Title:   fmt.Sprintf("indicator engine %s: %s failed", r.Name(), inst),
		Message: fmt.Sprintf("%s error for %s on %s: %v", kind, inst, tf, err),
		Series:  model.SeriesKey(inst, r.Timeframe),
		Kind:    kind,
		TraceID: logger.TraceID(ctx),
	})
	return false
}

func (r *ShardRunner) notify(ctx context.Context, log *slog.Logger, alert notification.Alert) {
	if r.deps.Notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := r.deps.Notifier.Send(nctx, alert); err != nil {
		log.Warn("notification failed", "error", err)
	}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidInstrument):
		return "invalid"
	case errors.Is(err, marketdata.ErrCircuitOpen):
		return "circuit_open"
	}
	var se *stageError
	if errors.As(err, &se) {
		if se.stage == "compute" && errors.Is(err, model.ErrDuplicateRow) {
			return "store"
		}
		return se.stage
	}
	return "unknown"
}
