package service

import (
	"errors"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
	"go.uber.org/zap"
)

var ErrDriversAttached = errors.New("power drivers already attached")

// PowerController owns the in/out switch lines and the tracked power of
// each direction. The in line is active low.
type PowerController struct {
	inPin     port.OutputPin
	outPin    port.OutputPin
	battery   *Battery
	capacity  *CapacityAccumulator
	inDriver  port.PowerDriver
	outDriver port.PowerDriver
	inLimits  Limits
	outLimits Limits

	currentIn        float64
	currentOut       float64
	requestedStepsIn float64
	outEnabled       bool
	outDisabledFlag  bool

	clock  func() time.Time
	logger *zap.Logger
}

func NewPowerController(inPin, outPin port.OutputPin, battery *Battery, capacity *CapacityAccumulator,
	inLimits, outLimits Limits, outEnabled bool, clock func() time.Time, logger *zap.Logger) *PowerController {
	return &PowerController{
		inPin:      inPin,
		outPin:     outPin,
		battery:    battery,
		capacity:   capacity,
		inLimits:   inLimits,
		outLimits:  outLimits,
		outEnabled: outEnabled,
		clock:      clock,
		logger:     logger,
	}
}

// AttachDrivers binds the drivers once at startup.
func (c *PowerController) AttachDrivers(in, out port.PowerDriver) error {
	if c.inDriver != nil || c.outDriver != nil {
		return ErrDriversAttached
	}
	c.inDriver = in
	c.outDriver = out
	return nil
}

func (c *PowerController) State() domain.PowerState {
	in := !c.inPin.Level()
	out := c.outPin.Level()
	switch {
	case !in && !out:
		return domain.PowerOff
	case !in && out:
		return domain.PowerOut
	case in && !out:
		return domain.PowerIn
	}
	c.logger.Error("invalid power state, both lines active", zap.Bool("in", in), zap.Bool("out", out))
	return domain.PowerInvalid
}

func (c *PowerController) tracked(state domain.PowerState) float64 {
	switch state {
	case domain.PowerIn:
		return c.currentIn
	case domain.PowerOut:
		return c.currentOut
	}
	return 0
}

// AccountCapacity books the elapsed interval at the current tracked power.
func (c *PowerController) AccountCapacity() {
	state := c.State()
	c.capacity.Account(state, c.tracked(state), c.clock())
}

// SetState applies target and returns the resulting state. Refused
// transitions leave everything unchanged.
func (c *PowerController) SetState(target domain.PowerState) domain.PowerState {
	prev := c.State()

	switch target {
	case domain.PowerIn:
		if bs := c.battery.State(); bs == domain.BatteryFull || bs == domain.BatteryInvalid {
			c.logger.Warn("refusing to charge", zap.Stringer("battery_state", bs))
			return prev
		}
	case domain.PowerOut:
		if !c.outEnabled {
			c.logger.Warn("refusing to discharge, power out disabled")
			return prev
		}
		if bs := c.battery.State(); bs == domain.BatteryEmpty || bs == domain.BatteryInvalid {
			c.logger.Warn("refusing to discharge", zap.Stringer("battery_state", bs))
			return prev
		}
	case domain.PowerOff:
	default:
		c.logger.Error("invalid target power state", zap.Int("state", int(target)))
		return prev
	}

	c.capacity.Account(prev, c.tracked(prev), c.clock())

	if target != domain.PowerOut && c.currentOut != 0 {
		c.zeroOut()
	}
	if target != domain.PowerIn {
		c.currentIn = 0
	}

	var err error
	switch target {
	case domain.PowerOff:
		err = errors.Join(c.inPin.Set(true), c.outPin.Set(false))
		if bs := c.battery.State(); bs == domain.BatteryCharging || bs == domain.BatteryDischarging {
			c.battery.SetState(domain.BatteryIdle)
		}
	case domain.PowerIn:
		err = errors.Join(c.outPin.Set(false), c.inPin.Set(false))
		c.battery.SetState(domain.BatteryCharging)
	case domain.PowerOut:
		err = errors.Join(c.inPin.Set(true), c.outPin.Set(true))
		c.battery.SetState(domain.BatteryDischarging)
	}
	if err != nil {
		c.logger.Error("switch line write failed", zap.Stringer("target", target), zap.Error(err))
	}

	state := c.State()
	if state != prev {
		c.logger.Info("power state change", zap.Stringer("from", prev), zap.Stringer("to", state))
	}
	return state
}

func (c *PowerController) zeroOut() {
	if c.outDriver != nil {
		req := domain.ChangeRequest{Power: -c.currentOut}
		if res, err := c.outDriver.Change(&req); err != nil || res == domain.ChangeFailed {
			c.logger.Error("could not zero discharge actuator", zap.Stringer("result", res), zap.Error(err))
		}
	}
	c.currentOut = 0
}

// InChange adjusts charge power by power watts. The second value is the
// delta actually applied.
func (c *PowerController) InChange(power float64) (domain.ChangeResult, float64) {
	if c.State() != domain.PowerIn {
		return domain.ChangeInvalid, 0
	}
	c.requestedStepsIn = power
	res, delta := c.change(c.inDriver, c.inLimits, &c.currentIn, power, domain.PowerIn)
	c.logger.Debug("in change", zap.Float64("requested", power), zap.Float64("achieved", delta),
		zap.Stringer("result", res), zap.Float64("current_in", c.currentIn))
	return res, delta
}

// OutChange adjusts discharge power by power watts.
func (c *PowerController) OutChange(power float64) (domain.ChangeResult, float64) {
	if c.State() != domain.PowerOut {
		return domain.ChangeInvalid, 0
	}
	lim := c.outLimits
	lim.Target = -1
	res, delta := c.change(c.outDriver, lim, &c.currentOut, power, domain.PowerOut)
	c.logger.Debug("out change", zap.Float64("requested", power), zap.Float64("achieved", delta),
		zap.Stringer("result", res), zap.Float64("current_out", c.currentOut))
	return res, delta
}

func (c *PowerController) change(driver port.PowerDriver, lim Limits, current *float64, power float64, state domain.PowerState) (domain.ChangeResult, float64) {
	if driver == nil {
		c.logger.Error("no driver attached", zap.Stringer("direction", state))
		return domain.ChangeFailed, 0
	}
	req := domain.ChangeRequest{Power: power}
	if res := ApplyLimits(lim, *current, livePowerOf(driver), &req); res != domain.ChangeOk {
		return res, 0
	}

	c.capacity.Account(state, *current, c.clock())

	res, err := driver.Change(&req)
	if err != nil {
		c.logger.Error("driver change failed", zap.String("driver", driver.Name()), zap.Error(err))
		return domain.ChangeFailed, 0
	}
	switch res {
	case domain.ChangeFailed, domain.ChangeInvalid:
		return res, 0
	}
	*current = max(*current+req.Power, 0)
	return res, req.Power
}

func (c *PowerController) SetOutEnabled(enabled bool) {
	if c.outEnabled && !enabled {
		c.outDisabledFlag = true
	}
	c.outEnabled = enabled
}

func (c *PowerController) OutEnabled() bool {
	return c.outEnabled
}

// TakeOutDisabled reports whether discharge was disabled since the previous
// call and clears the flag.
func (c *PowerController) TakeOutDisabled() bool {
	flag := c.outDisabledFlag
	c.outDisabledFlag = false
	return flag
}

// SetInTarget caps the tracked charge power. Negative clears the cap.
func (c *PowerController) SetInTarget(target float64) float64 {
	if target < 0 {
		target = -1
	}
	c.inLimits.Target = target
	return target
}

func (c *PowerController) InTarget() float64 {
	return c.inLimits.Target
}

func (c *PowerController) CurrentIn() float64 {
	return c.currentIn
}

func (c *PowerController) CurrentOut() float64 {
	return c.currentOut
}

func (c *PowerController) RequestedStepsIn() float64 {
	return c.requestedStepsIn
}

func (c *PowerController) Battery() *Battery {
	return c.battery
}

func (c *PowerController) Capacity() *CapacityAccumulator {
	return c.capacity
}
