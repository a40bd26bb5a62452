package service

import (
	"testing"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(start time.Time, prices ...float64) []domain.PriceEntry {
	entries := make([]domain.PriceEntry, 0, len(prices))
	for i, p := range prices {
		s := start.Add(time.Duration(i) * time.Hour)
		entries = append(entries, domain.PriceEntry{Start: s, End: s.Add(time.Hour), Price: p})
	}
	return entries
}

func TestPriceTableUpdateAndLookup(t *testing.T) {

	require := require.New(t)

	start := newTestClock().Now().Truncate(time.Hour)
	table := &PriceTable{}
	table.Update(hourly(start, 0.30, 0.10, 0.20))
	// replaces the second hour, ignores the empty interval
	table.Update([]domain.PriceEntry{
		{Start: start.Add(time.Hour), End: start.Add(2 * time.Hour), Price: 0.12},
		{Start: start.Add(5 * time.Hour), End: start.Add(5 * time.Hour), Price: 0.01},
	})
	require.Equal(3, table.Len())

	e, ok := table.At(start.Add(90 * time.Minute))
	require.True(ok)
	require.Equal(0.12, e.Price)

	_, ok = table.At(start.Add(-time.Minute))
	require.False(ok)
	_, ok = table.At(start.Add(3 * time.Hour))
	require.False(ok)

	best, ok := table.Best(start)
	require.True(ok)
	require.Equal(start.Add(time.Hour), best.Start)

	best, ok = table.Best(start.Add(2 * time.Hour))
	require.True(ok)
	require.Equal(0.20, best.Price)

	table.Prune(start.Add(2 * time.Hour))
	require.Equal(1, table.Len())
}

func TestPriceTableStats(t *testing.T) {

	start := newTestClock().Now().Truncate(time.Hour)
	table := &PriceTable{}
	table.Update(hourly(start, 0.15, 0.25, 0.15, 0.25))

	avg, sigma, ok := table.Stats(start.Add(3*time.Hour+10*time.Minute), 24*time.Hour)
	require.True(t, ok)
	assert.InDelta(t, 0.20, avg, 1e-9)
	assert.InDelta(t, 0.05, sigma, 1e-9)

	_, _, ok = table.Stats(start.Add(-time.Hour), time.Minute)
	assert.False(t, ok)

	// one slot has no spread
	_, _, ok = table.Stats(start.Add(10*time.Minute), time.Hour/2)
	assert.False(t, ok)
}

func TestThreshold(t *testing.T) {

	assert := assert.New(t)

	assert.InDelta(0.21, Threshold(0.20, 0.05, 80), 1e-9)
	assert.InDelta(0.25, Threshold(0.20, 0.05, 0), 1e-9)
	assert.InDelta(0.20, Threshold(0.20, 0.05, 100), 1e-9)
	assert.InDelta(0.25, Threshold(0.20, 0.05, -1), 1e-9)
	assert.InDelta(0.20, Threshold(0.20, 0.05, 120), 1e-9)
}

func TestPriceGateEvaluate(t *testing.T) {

	require := require.New(t)

	start := newTestClock().Now().Truncate(time.Hour)
	now := start.Add(3*time.Hour + 10*time.Minute)
	table := &PriceTable{}
	table.Update(hourly(start, 0.15, 0.25, 0.15, 0.25))
	gate := NewPriceGate(table, 24*time.Hour)

	enabled, price, err := gate.Evaluate(now, 80, nil)
	require.NoError(err)
	require.True(enabled)
	require.Equal(0.25, price)

	// an empty battery waits for the top of the range
	enabled, _, err = gate.Evaluate(now, 0, nil)
	require.NoError(err)
	require.False(enabled)

	limit := 0.3
	enabled, _, err = gate.Evaluate(now, 80, &limit)
	require.NoError(err)
	require.False(enabled)

	_, _, err = gate.Evaluate(start.Add(24*time.Hour), 80, nil)
	require.ErrorIs(err, domain.ErrNoPriceData)
}

func TestControllerOutEvaluate(t *testing.T) {

	require := require.New(t)

	ctrl, rig := newTestController(testControllerConfig())

	// no prices, the flag is kept
	enabled, _ := ctrl.OutEvaluate(nil)
	require.True(enabled)

	start := rig.clock.Now().Truncate(time.Hour).Add(-3 * time.Hour)
	ctrl.UpdatePrices(hourly(start, 0.30, 0.30, 0.30, 0.10))
	require.NotNil(ctrl.Snapshot().CurrentPrice)
	require.Equal(0.10, *ctrl.Snapshot().CurrentPrice)

	enabled, price := ctrl.OutEvaluate(nil)
	require.False(enabled)
	require.Equal(0.10, price)
	require.False(ctrl.Snapshot().PowerOutEnabled)

	limit := 0.05
	enabled, _ = ctrl.OutEvaluate(&limit)
	require.True(enabled)

	best, ok := ctrl.BestPrice(start)
	require.True(ok)
	require.Equal(0.10, best.Price)
}

func TestControllerOutEvaluateNeedsTrailingPrices(t *testing.T) {

	require := require.New(t)

	ctrl, rig := newTestController(testControllerConfig())

	// only upcoming slots, the trailing window holds just the current one
	ctrl.UpdatePrices(hourly(rig.clock.Now().Truncate(time.Hour), 0.50, 0.10, 0.10, 0.10, 0.10))

	enabled, price := ctrl.OutEvaluate(nil)
	require.True(enabled)
	require.Equal(0.50, price)
	require.True(ctrl.Snapshot().PowerOutEnabled)
}

// trailingDay returns 23 hourly slots around 0.20 followed by the current
// slot at current.
func trailingDay(now time.Time, current float64) []domain.PriceEntry {
	prices := make([]float64, 0, 24)
	for i := 0; i < 23; i++ {
		prices = append(prices, 0.19+0.02*float64(i%2))
	}
	prices = append(prices, current)
	return hourly(now.Truncate(time.Hour).Add(-23*time.Hour), prices...)
}

func TestWatchdogTickRunsPriceGate(t *testing.T) {

	require := require.New(t)

	cfg := testControllerConfig()
	cfg.Optimize = false
	cfg.OutEnabled = false
	cfg.PriceGate = true
	ctrl, rig := newTestController(cfg)
	ctrl.ReportTotalPower(rig.clock.Now(), 0)

	// no prices yet, the flag stays as configured
	ctrl.WatchdogTick()
	require.False(ctrl.Snapshot().PowerOutEnabled)

	ctrl.UpdatePrices(trailingDay(rig.clock.Now(), 0.90))
	report := ctrl.WatchdogTick()
	require.False(report.Forced)
	require.True(ctrl.Snapshot().PowerOutEnabled)
}

func TestWatchdogTickPriceGateStopsDischarge(t *testing.T) {

	require := require.New(t)

	cfg := testControllerConfig()
	cfg.Optimize = false
	cfg.PriceGate = true
	ctrl, rig := newTestController(cfg)
	ctrl.ReportTotalPower(rig.clock.Now(), 0)
	require.Equal(domain.PowerOut, ctrl.power.SetState(domain.PowerOut))

	ctrl.UpdatePrices(trailingDay(rig.clock.Now(), 0.05))
	report := ctrl.WatchdogTick()
	require.True(report.Forced)
	require.Equal(domain.PowerOff, report.State)
	require.False(ctrl.Snapshot().PowerOutEnabled)
}

func TestWatchdogTickWithoutPriceGate(t *testing.T) {

	cfg := testControllerConfig()
	cfg.Optimize = false
	cfg.OutEnabled = false
	ctrl, rig := newTestController(cfg)
	ctrl.ReportTotalPower(rig.clock.Now(), 0)

	ctrl.UpdatePrices(trailingDay(rig.clock.Now(), 0.90))
	ctrl.WatchdogTick()
	assert.False(t, ctrl.Snapshot().PowerOutEnabled)
}
