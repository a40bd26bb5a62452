package service

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBattery(voltage float64) (*Battery, *testSensor, *testClock) {
	clock := newTestClock()
	sensor := &testSensor{voltage: voltage}
	cfg := BatteryConfig{
		Cells:        4,
		SettleActive: time.Minute,
		SettleIdle:   10 * time.Minute,
		Curves:       DefaultCurves,
	}
	return NewBattery(cfg, sensor, clock.Now, zap.NewNop()), sensor, clock
}

func TestCurveInterpolate(t *testing.T) {

	assert := assert.New(t)

	c := DefaultCurves.Idle
	assert.Equal(0, c.Interpolate(3000))
	assert.Equal(0, c.Interpolate(c[0]))
	assert.Equal(100, c.Interpolate(3500))
	assert.Equal(100, c.Interpolate(c[10]))
	assert.Equal(50, c.Interpolate(c[5]))
	assert.Equal(34, c.Interpolate(3300))
	assert.Equal(66, c.Interpolate(3338))
}

func TestCurveValidate(t *testing.T) {

	assert.NoError(t, DefaultCurves.Charge.Validate())
	assert.NoError(t, DefaultCurves.Discharge.Validate())
	assert.NoError(t, DefaultCurves.Idle.Validate())

	bad := DefaultCurves.Idle
	bad[4] = bad[3]
	assert.Error(t, bad.Validate())
}

func TestBatterySOCFromPackVoltage(t *testing.T) {

	b, sensor, _ := newTestBattery(13.2)
	assert.Equal(t, 34, b.SOC())

	b2, _, _ := newTestBattery(13.352)
	assert.Equal(t, 66, b2.SOC())

	// settle gate keeps the previous value
	sensor.voltage = 13.352
	assert.Equal(t, 34, b.SOC())
}

func TestBatterySOCMonotonicWhileCharging(t *testing.T) {

	require := require.New(t)

	b, sensor, clock := newTestBattery(13.3)
	b.SetState(domain.BatteryCharging)
	prev := b.SOC()

	voltages := []float64{13.36, 13.32, 13.4, 13.2, 13.45, 13.1, 13.5}
	for _, v := range voltages {
		clock.Advance(2 * time.Minute)
		sensor.voltage = v
		soc := b.SOC()
		require.GreaterOrEqual(soc, prev, "voltage %.2f", v)
		prev = soc
	}
}

func TestBatterySOCMonotonicWhileDischarging(t *testing.T) {

	require := require.New(t)

	b, sensor, clock := newTestBattery(13.2)
	b.SetState(domain.BatteryDischarging)
	prev := b.SOC()

	voltages := []float64{13.1, 13.15, 12.9, 13.3, 12.8, 13.2}
	for _, v := range voltages {
		clock.Advance(2 * time.Minute)
		sensor.voltage = v
		soc := b.SOC()
		require.LessOrEqual(soc, prev, "voltage %.2f", v)
		prev = soc
	}
}

func TestBatterySOCKeepsValueOnSensorError(t *testing.T) {

	b, sensor, clock := newTestBattery(13.2)
	assert.Equal(t, 34, b.SOC())

	clock.Advance(time.Hour)
	sensor.err = errors.New("i2c bus timeout")
	assert.Equal(t, 34, b.SOC())
}

func TestBatteryResetSOC(t *testing.T) {

	assert := assert.New(t)

	b, sensor, _ := newTestBattery(13.2)
	b.SetState(domain.BatteryFull)
	assert.Equal(34, b.SOC())

	sensor.voltage = 13.352
	assert.Equal(66, b.ResetSOC(), "reset ignores the settle gate")
	assert.Equal(domain.BatteryIdle, b.State())

	b.SetState(domain.BatteryCharging)
	b.ResetSOC()
	assert.Equal(domain.BatteryCharging, b.State())
}

func TestBatteryWithoutSensor(t *testing.T) {

	clock := newTestClock()
	b := NewBattery(BatteryConfig{Cells: 4, Curves: DefaultCurves}, nil, clock.Now, zap.NewNop())
	_, err := b.ReadVoltage()
	assert.Error(t, err)
	assert.Equal(t, -1, b.SOC())
}

func TestCapacityAccumulator(t *testing.T) {

	assert := assert.New(t)

	start := newTestClock().Now()
	c := NewCapacityAccumulator(12.8, start)

	c.Account(domain.PowerIn, 256, start.Add(time.Hour))
	assert.InDelta(20.0, c.ChargedAh(), 1e-9)

	c.Account(domain.PowerOut, 128, start.Add(90*time.Minute))
	assert.InDelta(5.0, c.DischargedAh(), 1e-9)

	// time going backwards books nothing
	c.Account(domain.PowerIn, 1000, start)
	assert.InDelta(20.0, c.ChargedAh(), 1e-9)

	c.Account(domain.PowerOff, 1000, start.Add(3*time.Hour))
	assert.InDelta(20.0, c.ChargedAh(), 1e-9)
	assert.InDelta(5.0, c.DischargedAh(), 1e-9)

	c.Reset(start.Add(4 * time.Hour))
	assert.Zero(c.ChargedAh())
	assert.Zero(c.DischargedAh())
	assert.GreaterOrEqual(c.ChargedAh(), 0.0)
}
