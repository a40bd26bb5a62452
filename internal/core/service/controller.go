package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
	"go.uber.org/zap"
)

type ControllerConfig struct {
	Battery        BatteryConfig
	NominalVoltage float64
	InLimits       Limits
	OutLimits      Limits
	OutEnabled     bool
	Optimizer      OptimizerConfig
	OptimizeTarget domain.OptimizeTarget
	Optimize       bool
	Watchdog       WatchdogConfig
	PriceWindow    time.Duration
	// run the price gate on every watchdog tick
	PriceGate bool
}

// Controller bundles the control components. It is not safe for concurrent
// use, a single owner must serialize every call.
type Controller struct {
	power      *PowerController
	optimizer  *Optimizer
	watchdog   *Watchdog
	prices     *PriceTable
	gate       *PriceGate
	autoGate   bool
	totalPower float64
	price      *float64
	clock      func() time.Time
	logger     *zap.Logger
}

func NewController(cfg ControllerConfig, inPin, outPin port.OutputPin, sensor port.BatterySensor,
	clock func() time.Time, logger *zap.Logger) *Controller {
	if clock == nil {
		clock = time.Now
	}
	battery := NewBattery(cfg.Battery, sensor, clock, logger.Named("battery"))
	capacity := NewCapacityAccumulator(cfg.NominalVoltage, clock())
	power := NewPowerController(inPin, outPin, battery, capacity, cfg.InLimits, cfg.OutLimits, cfg.OutEnabled, clock, logger.Named("power"))
	prices := &PriceTable{}
	return &Controller{
		power:     power,
		optimizer: NewOptimizer(cfg.Optimizer, power, cfg.OptimizeTarget, cfg.Optimize, logger.Named("optimizer")),
		watchdog:  NewWatchdog(cfg.Watchdog, power, logger.Named("watchdog")),
		prices:    prices,
		gate:      NewPriceGate(prices, cfg.PriceWindow),
		autoGate:  cfg.PriceGate,
		clock:     clock,
		logger:    logger,
	}
}

func (c *Controller) AttachDrivers(in, out port.PowerDriver) error {
	return c.power.AttachDrivers(in, out)
}

func (c *Controller) GetState() (domain.PowerState, domain.BatteryState) {
	return c.power.State(), c.power.Battery().State()
}

func (c *Controller) SetState(state domain.PowerState) (domain.PowerState, domain.BatteryState) {
	c.power.SetState(state)
	return c.GetState()
}

// InChange returns the result, the achieved delta and the tracked charge power.
func (c *Controller) InChange(power float64) (domain.ChangeResult, float64, float64) {
	res, delta := c.power.InChange(power)
	return res, delta, c.power.CurrentIn()
}

func (c *Controller) OutChange(power float64) (domain.ChangeResult, float64, float64) {
	res, delta := c.power.OutChange(power)
	return res, delta, c.power.CurrentOut()
}

func (c *Controller) ResetSOC() (int, domain.BatteryState) {
	soc := c.power.Battery().ResetSOC()
	return soc, c.power.Battery().State()
}

// OutEvaluate runs the price gate and applies the decision to the discharge
// enable flag. Missing price data leaves the flag as it is.
func (c *Controller) OutEvaluate(limit *float64) (bool, float64) {
	enabled, price, err := c.evaluateGate(limit)
	if errors.Is(err, domain.ErrNoPriceData) {
		c.logger.Warn("price gate skipped", zap.Error(err))
	}
	return enabled, price
}

func (c *Controller) evaluateGate(limit *float64) (bool, float64, error) {
	enabled, price, err := c.gate.Evaluate(c.clock(), c.power.Battery().SOC(), limit)
	if err != nil {
		return c.power.OutEnabled(), price, err
	}
	c.price = &price
	if enabled != c.power.OutEnabled() {
		c.logger.Info("price gate changed power out", zap.Bool("enabled", enabled), zap.Float64("price", price))
	}
	c.power.SetOutEnabled(enabled)
	return enabled, price, nil
}

func (c *Controller) SetOptimize(enable bool) bool {
	c.optimizer.SetEnabled(enable)
	return c.optimizer.Enabled()
}

func (c *Controller) SetInTarget(target float64) float64 {
	return c.power.SetInTarget(target)
}

func (c *Controller) SetOptimizeTarget(minPower, maxPower float64) (domain.OptimizeTarget, error) {
	err := c.optimizer.SetTarget(domain.OptimizeTarget{Min: minPower, Max: maxPower})
	return c.optimizer.Target(), err
}

func (c *Controller) ResetCapacity() (float64, float64) {
	c.power.Capacity().Reset(c.clock())
	return c.power.Capacity().ChargedAh(), c.power.Capacity().DischargedAh()
}

func (c *Controller) SetOutEnabled(enable bool) bool {
	c.power.SetOutEnabled(enable)
	return c.power.OutEnabled()
}

// ReportTotalPower feeds a meter reading. The optimizer runs only when
// enabled and the reading is not older than the newest one seen.
func (c *Controller) ReportTotalPower(ts time.Time, power float64) {
	if ts.Before(c.watchdog.LastMeter()) {
		c.logger.Debug("dropping out of order meter reading", zap.Time("ts", ts))
		return
	}
	c.watchdog.RecordMeter(ts)
	c.totalPower = power
	if c.optimizer.Enabled() {
		c.optimizer.Optimize(power)
	}
}

// WatchdogTick runs the price gate when enabled, then the safety checks. A
// gate that disables discharge forces Off within the same tick.
func (c *Controller) WatchdogTick() WatchdogReport {
	c.power.AccountCapacity()
	if c.autoGate {
		if _, _, err := c.evaluateGate(nil); err != nil {
			c.logger.Debug("price gate skipped", zap.Error(err))
		}
	}
	report := c.watchdog.Check(c.clock())
	if report.Forced {
		// the last meter reading predates the forced transition
		c.optimizer.pending.Reset()
	}
	if report.VoltageBreach && c.optimizer.Enabled() {
		c.logger.Warn("disabling optimizer after battery voltage breach", zap.Float64("voltage", report.Voltage))
		c.optimizer.SetEnabled(false)
	}
	return report
}

func (c *Controller) UpdatePrices(entries []domain.PriceEntry) {
	now := c.clock()
	c.prices.Update(entries)
	c.prices.Prune(now.Add(-c.gate.window))
	if e, ok := c.prices.At(now); ok {
		c.price = &e.Price
	}
}

// PriceWindow is the span of market data the price gate looks at.
func (c *Controller) PriceWindow() time.Duration {
	return c.gate.window
}

func (c *Controller) BestPrice(after time.Time) (domain.PriceEntry, bool) {
	return c.prices.Best(after)
}

func (c *Controller) TotalPower() float64 {
	return c.totalPower
}

func (c *Controller) OptimizeTarget() domain.OptimizeTarget {
	return c.optimizer.Target()
}

// LogStatus writes one status line with the battery currents of the first
// channels sensor channels.
func (c *Controller) LogStatus(channels int) {
	battery := c.power.Battery()
	fields := []zap.Field{
		zap.Stringer("power_state", c.power.State()),
		zap.Stringer("battery_state", battery.State()),
		zap.Float64("voltage", battery.LastVoltage()),
		zap.Int("soc", battery.SOC()),
		zap.Float64("power_in", c.power.CurrentIn()),
		zap.Float64("power_out", c.power.CurrentOut()),
		zap.Float64("total_power", c.totalPower),
	}
	for ch := 0; ch < channels; ch++ {
		if a, err := battery.ReadCurrent(ch); err == nil {
			fields = append(fields, zap.Float64(fmt.Sprintf("current_%d", ch), a))
		}
	}
	c.logger.Info("status", fields...)
}

func (c *Controller) Snapshot() domain.ControllerStatus {
	battery := c.power.Battery()
	return domain.ControllerStatus{
		Timestamp:         c.clock(),
		PowerState:        c.power.State(),
		BatteryState:      battery.State(),
		BatterySOC:        battery.SOC(),
		BatteryVoltage:    battery.LastVoltage(),
		CurrentPowerIn:    c.power.CurrentIn(),
		CurrentPowerOut:   c.power.CurrentOut(),
		RequestedStepsIn:  c.power.RequestedStepsIn(),
		CurrentTotalPower: c.totalPower,
		OptimizeEnabled:   c.optimizer.Enabled(),
		OptimizeTarget:    c.optimizer.Target(),
		InTarget:          c.power.InTarget(),
		CapacityIn:        c.power.Capacity().ChargedAh(),
		CapacityOut:       c.power.Capacity().DischargedAh(),
		PowerOutEnabled:   c.power.OutEnabled(),
		CurrentPrice:      c.price,
	}
}

var _ port.ControllerView = (*Controller)(nil)
