package indengine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

func instruments(n int) []model.Instrument {
	out := make([]model.Instrument, n)
	for i := range out {
		out[i] = model.Instrument(fmt.Sprintf("C%02d/USDT", i))
	}
	return out
}

func TestPartition_LastShardAbsorbsRemainder(t *testing.T) {
	insts := instruments(10)
	shards, err := Partition(insts, 3)
	require.NoError(t, err)
	require.Len(t, shards, 3)
	assert.Len(t, shards[0], 3)
	assert.Len(t, shards[1], 3)
	assert.Len(t, shards[2], 4)

	seen := make(map[model.Instrument]int)
	for _, s := range shards {
		for _, inst := range s {
			seen[inst]++
		}
	}
	assert.Len(t, seen, 10)
	for inst, n := range seen {
		assert.Equal(t, 1, n, inst)
	}
}

func TestPartition_EdgeCases(t *testing.T) {
	_, err := Partition(instruments(3), 0)
	assert.Error(t, err)

	shards, err := Partition(instruments(2), 3)
	require.NoError(t, err)
	assert.Empty(t, shards[0])
	assert.Empty(t, shards[1])
	assert.Len(t, shards[2], 2)

	shards, err = Partition(instruments(6), 1)
	require.NoError(t, err)
	assert.Len(t, shards[0], 6)
}

func TestPartition_ShardsDoNotAlias(t *testing.T) {
	insts := instruments(4)
	shards, err := Partition(insts, 2)
	require.NoError(t, err)
	shards[0] = append(shards[0], "X/USDT")
	assert.Equal(t, model.Instrument("C02/USDT"), shards[1][0])
}

func TestOrchestrator_RunsEveryTimeframeAndShard(t *testing.T) {
	f := newFixture()
	f.market.errs[bad] = invalidErr(bad)
	insts := append(instruments(5), bad)

	o, err := NewOrchestrator(Plan{
		Instruments: insts,
		Timeframes:  []model.Timeframe{model.TF1d, model.TF4h},
		Shards:      3,
		Epoch:       func(model.Timeframe) time.Time { return epoch.AddDate(0, 0, 5) },
		Options:     Options{Once: true},
	}, Deps{
		Store:    f.store,
		Market:   f.market,
		Invalid:  f.invalid,
		Notifier: f.notifier,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Len(t, o.Runners(), 6)
	assert.Equal(t, "1d/0", o.Runners()[0].Name())
	assert.Equal(t, "4h/2", o.Runners()[5].Name())

	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Wait())

	for _, inst := range insts[:5] {
		assert.Len(t, f.store.rows(inst, model.TF1d), 5, inst)  // Jan 6 .. Jan 10
		assert.Len(t, f.store.rows(inst, model.TF4h), 33, inst) // Jan 6 00:00 .. Jan 11 08:00
	}
	assert.Equal(t, []model.Instrument{bad}, f.invalid.List())
	assert.Zero(t, f.notifier.count())

	assert.Error(t, o.Start(context.Background()))
}

func TestNewOrchestrator_Validation(t *testing.T) {
	f := newFixture()
	deps := Deps{Store: f.store, Market: f.market}

	_, err := NewOrchestrator(Plan{Instruments: instruments(2), Shards: 1}, deps)
	assert.Error(t, err, "no timeframes")

	_, err = NewOrchestrator(Plan{Instruments: instruments(2), Timeframes: []model.Timeframe{model.TF1h}, Shards: 0}, deps)
	assert.Error(t, err, "zero shards")

	_, err = NewOrchestrator(Plan{Instruments: instruments(2), Timeframes: []model.Timeframe{model.TF1h}, Shards: 1}, Deps{})
	assert.Error(t, err, "missing store")
}

func TestOrchestrator_WaitAfterCancel(t *testing.T) {
	f := newFixture()
	o, err := NewOrchestrator(Plan{
		Instruments: instruments(2),
		Timeframes:  []model.Timeframe{model.TF1d},
		Shards:      2,
		Epoch:       func(model.Timeframe) time.Time { return epoch },
		Options:     Options{PollInterval: time.Hour},
	}, Deps{Store: f.store, Market: f.market, Now: func() time.Time { return now }})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, o.Start(ctx))
	require.Eventually(t, func() bool {
		return len(f.store.rows("C01/USDT", model.TF1d)) == 10
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, o.Wait())
}
