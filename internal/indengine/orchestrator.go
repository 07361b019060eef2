package indengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/backfill"
	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// Partition splits instruments into n shards of len/n instruments each; the
// last shard absorbs the remainder. Order is preserved.
func Partition(instruments []model.Instrument, n int) ([][]model.Instrument, error) {
	if n <= 0 {
		return nil, fmt.Errorf("shard count must be positive, got %d", n)
	}
	size := len(instruments) / n
	shards := make([][]model.Instrument, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(instruments)
		}
		shards[i] = instruments[start:end:end]
	}
	return shards, nil
}

// Plan describes the runners an Orchestrator starts.
type Plan struct {
	Instruments []model.Instrument
	Timeframes  []model.Timeframe
	Shards      int

	// Epoch returns the first candle open for an empty series of tf.
	Epoch      func(tf model.Timeframe) time.Time
	RequestCap int

	Options Options
}

// Orchestrator starts one ShardRunner per (timeframe, shard). Runners share
// the store, market data client, notifier and invalid set; each timeframe has
// its own window planner.
type Orchestrator struct {
	runners []*ShardRunner
	wg      sync.WaitGroup
	started bool

	mu   sync.Mutex
	errs []error
}

// NewOrchestrator partitions the instruments and builds every runner.
func NewOrchestrator(plan Plan, deps Deps) (*Orchestrator, error) {
	if len(plan.Timeframes) == 0 {
		return nil, errors.New("no timeframes configured")
	}
	if deps.Store == nil || deps.Market == nil {
		return nil, errors.New("store and market data are required")
	}
	shards, err := Partition(plan.Instruments, plan.Shards)
	if err != nil {
		return nil, err
	}
	if deps.Invalid == nil {
		deps.Invalid = NewInvalidSet()
	}

	o := &Orchestrator{}
	for _, tf := range plan.Timeframes {
		if !tf.Valid() {
			return nil, fmt.Errorf("invalid timeframe %d", tf)
		}
		var epoch time.Time
		if plan.Epoch != nil {
			epoch = plan.Epoch(tf)
		}
		tfDeps := deps
		tfDeps.Planner = backfill.New(epoch, plan.RequestCap)
		for i, insts := range shards {
			o.runners = append(o.runners, NewShardRunner(tf, i, insts, tfDeps, plan.Options))
		}
	}
	return o, nil
}

// Runners returns the runners in start order.
func (o *Orchestrator) Runners() []*ShardRunner {
	return o.runners
}

// Start launches every runner and returns immediately.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.started {
		return errors.New("orchestrator already started")
	}
	o.started = true

	slog.Info("starting shard runners", "runners", len(o.runners))
	for _, r := range o.runners {
		o.wg.Add(1)
		go func(r *ShardRunner) {
			defer o.wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.mu.Lock()
				o.errs = append(o.errs, fmt.Errorf("runner %s: %w", r.Name(), err))
				o.mu.Unlock()
			}
		}(r)
	}
	return nil
}

// Wait blocks until every runner has returned. Cancellation is not reported
// as an error.
func (o *Orchestrator) Wait() error {
	o.wg.Wait()
	o.mu.Lock()
	defer o.mu.Unlock()
	return errors.Join(o.errs...)
}
