package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
	"go.uber.org/zap"
)

const CurvePoints = 11

// Curve holds cell millivolts for 0%, 10%, ... 100%.
type Curve [CurvePoints]float64

type Curves struct {
	Charge    Curve
	Discharge Curve
	Idle      Curve
}

var DefaultCurves = Curves{
	Charge:    Curve{3200, 3300, 3325, 3340, 3350, 3360, 3370, 3385, 3400, 3420, 3600},
	Discharge: Curve{2800, 3000, 3150, 3200, 3230, 3250, 3260, 3270, 3280, 3300, 3350},
	Idle:      Curve{3110, 3223, 3263, 3295, 3308, 3318, 3330, 3343, 3355, 3363, 3405},
}

func (c Curve) Validate() error {
	for i := 1; i < CurvePoints; i++ {
		if c[i] <= c[i-1] {
			return fmt.Errorf("curve must be strictly ascending, point %d (%.0f) <= point %d (%.0f)", i, c[i], i-1, c[i-1])
		}
	}
	return nil
}

// Interpolate maps a cell voltage in millivolts to a percentage.
func (c Curve) Interpolate(mv float64) int {
	if mv <= c[0] {
		return 0
	}
	if mv >= c[CurvePoints-1] {
		return 100
	}
	for i := 0; i < CurvePoints-1; i++ {
		if mv < c[i+1] {
			frac := (mv - c[i]) / (c[i+1] - c[i])
			return int(math.Round((float64(i) + frac) * 10))
		}
	}
	return 100
}

type BatteryConfig struct {
	Cells        int
	SettleActive time.Duration
	SettleIdle   time.Duration
	Curves       Curves
}

// Battery tracks BatteryState and estimates the state of charge from the
// cell voltage.
type Battery struct {
	cfg       BatteryConfig
	sensor    port.BatterySensor
	state     domain.BatteryState
	changedAt time.Time
	soc       int
	voltage   float64
	clock     func() time.Time
	logger    *zap.Logger
}

func NewBattery(cfg BatteryConfig, sensor port.BatterySensor, clock func() time.Time, logger *zap.Logger) *Battery {
	if cfg.Cells < 1 {
		cfg.Cells = 1
	}
	return &Battery{
		cfg:       cfg,
		sensor:    sensor,
		state:     domain.BatteryIdle,
		changedAt: clock(),
		soc:       -1,
		clock:     clock,
		logger:    logger,
	}
}

func (b *Battery) State() domain.BatteryState {
	return b.state
}

func (b *Battery) SetState(state domain.BatteryState) {
	if state == b.state {
		return
	}
	b.logger.Info("battery state change", zap.Stringer("from", b.state), zap.Stringer("to", state))
	b.state = state
	b.changedAt = b.clock()
}

func (b *Battery) ReadVoltage() (float64, error) {
	if b.sensor == nil || !b.sensor.Available() {
		return 0, errors.New("battery sensor not available")
	}
	v, err := b.sensor.ReadVoltage()
	if err != nil {
		return 0, err
	}
	b.voltage = v
	return v, nil
}

func (b *Battery) ReadCurrent(channel int) (float64, error) {
	if b.sensor == nil || !b.sensor.Available() {
		return 0, errors.New("battery sensor not available")
	}
	return b.sensor.ReadCurrent(channel)
}

// LastVoltage is the most recent successful reading.
func (b *Battery) LastVoltage() float64 {
	return b.voltage
}

func (b *Battery) curve() Curve {
	switch b.state {
	case domain.BatteryCharging:
		return b.cfg.Curves.Charge
	case domain.BatteryDischarging:
		return b.cfg.Curves.Discharge
	default:
		return b.cfg.Curves.Idle
	}
}

// CalculateSOC reads the sensor and interpolates the curve for the current
// state. It does not touch the stored value.
func (b *Battery) CalculateSOC() (int, error) {
	v, err := b.ReadVoltage()
	if err != nil {
		return -1, err
	}
	mv := v * 1000 / float64(b.cfg.Cells)
	return b.curve().Interpolate(mv), nil
}

func (b *Battery) settle() time.Duration {
	if b.state == domain.BatteryCharging || b.state == domain.BatteryDischarging {
		return b.cfg.SettleActive
	}
	return b.cfg.SettleIdle
}

// SOC returns the state of charge, recomputing it once the battery has been
// in its current state for longer than the settle interval. While charging
// the value never drops, while discharging it never rises.
func (b *Battery) SOC() int {
	if b.soc >= 0 && b.clock().Sub(b.changedAt) <= b.settle() {
		return b.soc
	}
	soc, err := b.CalculateSOC()
	if err != nil {
		b.logger.Warn("soc calculation failed", zap.Error(err))
		return b.soc
	}
	if b.soc >= 0 {
		switch b.state {
		case domain.BatteryCharging:
			soc = max(soc, b.soc)
		case domain.BatteryDischarging:
			soc = min(soc, b.soc)
		}
	}
	b.soc = soc
	return b.soc
}

// ResetSOC recomputes without the settle gate and clears Empty/Full.
func (b *Battery) ResetSOC() int {
	if b.state == domain.BatteryEmpty || b.state == domain.BatteryFull {
		b.SetState(domain.BatteryIdle)
	}
	soc, err := b.CalculateSOC()
	if err != nil {
		b.logger.Warn("soc reset failed", zap.Error(err))
		return b.soc
	}
	b.soc = soc
	return b.soc
}
