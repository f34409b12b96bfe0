package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/engine"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/memory"
	"github.com/ceerkle/dreichor-trading/risk"
	"github.com/ceerkle/dreichor-trading/strategy"
)

func tickInput(t market.LogicalTime, l strategy.Lifecycle, gates risk.Gates) engine.Input {
	m := market.MarketID("M1")
	return engine.Input{
		LogicalTime:  t,
		InstanceID:   "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		Plane:        broker.Paper,
		Gates:        gates,
		Decision:     market.Decision{Class: "market.rotate.default@v1", LogicalTime: t},
		Lifecycle:    l,
		Attention:    strategy.DecideAttention(strategy.AllAttention(true)),
		Pool:         strategy.ParameterPool{ID: "test@v1", Parameters: strategy.ParameterSet{Allocation: "0.5"}},
		TargetMarket: &m,
		Ledger:       ledger.New(broker.Paper),
		Memory:       memory.Empty(),
	}
}

func TestRecorderObserve(t *testing.T) {
	t.Parallel()

	rec := New()
	eng := engine.New(engine.Deps{Executors: broker.DefaultExecutors(), Observer: rec})
	ctx := context.Background()
	eval := strategy.Lifecycle{State: strategy.Evaluation{}}

	_, err := eng.Tick(ctx, tickInput(1, eval, risk.Gates{}))
	require.NoError(t, err)
	_, err = eng.Tick(ctx, tickInput(2, eval, risk.Gates{HaltAll: true}))
	require.NoError(t, err)
	_, err = eng.Tick(ctx, tickInput(3, strategy.NewLifecycle(strategy.LifecycleConfig{}), risk.Gates{}))
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(rec.ticks.WithLabelValues("PAPER")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.intents.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.skipped.WithLabelValues("LIFECYCLE_BLOCKED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.verdicts.WithLabelValues("ALLOW")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.verdicts.WithLabelValues("HALT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.execs.WithLabelValues("PAPER", "FILLED")))
	// Each tick above starts from an empty ledger; the last one executed nothing.
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.openQty.WithLabelValues("PAPER")))
	n, err := testutil.GatherAndCount(rec.Registry())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestRecorderOpenQuantity(t *testing.T) {
	t.Parallel()

	rec := New()
	eng := engine.New(engine.Deps{Executors: broker.DefaultExecutors(), Observer: rec})
	_, err := eng.Tick(context.Background(), tickInput(1, strategy.Lifecycle{State: strategy.Evaluation{}}, risk.Gates{}))
	require.NoError(t, err)
	assert.Equal(t, 0.5, testutil.ToFloat64(rec.openQty.WithLabelValues("PAPER")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	rec := New()
	rec.ticks.WithLabelValues("LIVE").Inc()

	path := filepath.Join(t.TempDir(), "dreichor.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dreichor_ticks_total{plane="LIVE"} 1`)
}
