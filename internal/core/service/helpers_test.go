package service

import (
	"errors"
	"math"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"go.uber.org/zap"
)

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testPin struct {
	level  bool
	writes int
	err    error
}

func (p *testPin) Set(high bool) error {
	if p.err != nil {
		return p.err
	}
	p.level = high
	p.writes++
	return nil
}

func (p *testPin) Level() bool {
	return p.level
}

type testSensor struct {
	voltage float64
	err     error
}

func (s *testSensor) ReadVoltage() (float64, error) {
	return s.voltage, s.err
}

func (s *testSensor) ReadCurrent(int) (float64, error) {
	return 0, s.err
}

func (s *testSensor) Available() bool {
	return true
}

// testDriver applies up to maxStep watts per call and reports Ok.
type testDriver struct {
	maxStep  float64
	err      error
	override func(req *domain.ChangeRequest) domain.ChangeResult
	calls    []float64
	live     *float64
}

func (d *testDriver) Name() string {
	return "test"
}

func (d *testDriver) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	d.calls = append(d.calls, req.Power)
	if d.err != nil {
		return domain.ChangeFailed, d.err
	}
	if d.override != nil {
		return d.override(req), nil
	}
	if d.maxStep > 0 && math.Abs(req.Power) > d.maxStep {
		req.Power = math.Copysign(d.maxStep, req.Power)
	}
	return domain.ChangeOk, nil
}

func (d *testDriver) LivePower() (float64, bool) {
	if d.live == nil {
		return 0, false
	}
	return *d.live, true
}

var errDriver = errors.New("pwm peripheral rejected write")

type testRig struct {
	clock     *testClock
	inPin     *testPin
	outPin    *testPin
	sensor    *testSensor
	inDriver  *testDriver
	outDriver *testDriver
}

func testControllerConfig() ControllerConfig {
	return ControllerConfig{
		Battery: BatteryConfig{
			Cells:        4,
			SettleActive: time.Minute,
			SettleIdle:   10 * time.Minute,
			Curves:       DefaultCurves,
		},
		NominalVoltage: 12.8,
		InLimits:       Limits{Min: 0, Max: 2000, Target: -1},
		OutLimits:      Limits{Min: 0, Max: 600, Target: -1},
		OutEnabled:     true,
		Optimizer: OptimizerConfig{
			PendingSize:     1,
			InMin:           100,
			OutOnThreshold:  200,
			OutOffThreshold: 20,
		},
		OptimizeTarget: domain.OptimizeTarget{Min: -50, Max: 50},
		Optimize:       true,
		Watchdog: WatchdogConfig{
			VoltageMin: 12.0,
			VoltageMax: 14.2,
			MaxLag:     time.Minute,
		},
		PriceWindow: 24 * time.Hour,
	}
}

func newTestController(cfg ControllerConfig) (*Controller, *testRig) {
	rig := &testRig{
		clock: newTestClock(),
		// in line is active low, high means off
		inPin:     &testPin{level: true},
		outPin:    &testPin{},
		sensor:    &testSensor{voltage: 13.2},
		inDriver:  &testDriver{},
		outDriver: &testDriver{},
	}
	ctrl := NewController(cfg, rig.inPin, rig.outPin, rig.sensor, rig.clock.Now, zap.NewNop())
	if err := ctrl.AttachDrivers(rig.inDriver, rig.outDriver); err != nil {
		panic(err)
	}
	return ctrl, rig
}
