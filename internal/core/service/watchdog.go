package service

import (
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"go.uber.org/zap"
)

type WatchdogConfig struct {
	VoltageMin float64
	VoltageMax float64
	// zero disables the meter lag check
	MaxLag time.Duration
}

type WatchdogReport struct {
	State   domain.PowerState
	Voltage float64
	Forced  bool
	Reason  string
	// battery voltage left the safe range
	VoltageBreach bool
}

// Watchdog forces the controller off on unsafe battery voltage, on stale
// meter data and when discharge gets disabled. It runs on its own tick and
// wins over the optimizer.
type Watchdog struct {
	cfg       WatchdogConfig
	ctrl      *PowerController
	lastMeter time.Time
	logger    *zap.Logger
}

func NewWatchdog(cfg WatchdogConfig, ctrl *PowerController, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		cfg:    cfg,
		ctrl:   ctrl,
		logger: logger,
	}
}

func (w *Watchdog) RecordMeter(ts time.Time) {
	if ts.After(w.lastMeter) {
		w.lastMeter = ts
	}
}

func (w *Watchdog) LastMeter() time.Time {
	return w.lastMeter
}

func (w *Watchdog) Check(now time.Time) WatchdogReport {
	state := w.ctrl.State()
	battery := w.ctrl.Battery()
	outDisabled := w.ctrl.TakeOutDisabled()
	report := WatchdogReport{State: state}

	if state == domain.PowerOff || state == domain.PowerInvalid {
		if v, err := battery.ReadVoltage(); err == nil {
			report.Voltage = v
		}
		if state == domain.PowerInvalid {
			// both lines asserted, needs an operator
			w.logger.Error("watchdog found invalid power state")
			report.Reason = "invalid power state"
		}
		return report
	}

	force := func(reason string, bs *domain.BatteryState) {
		w.logger.Warn("watchdog forcing power off", zap.String("reason", reason), zap.Stringer("state", state),
			zap.Float64("voltage", report.Voltage))
		w.ctrl.SetState(domain.PowerOff)
		if bs != nil {
			battery.SetState(*bs)
		}
		report.Forced = true
		report.Reason = reason
		report.State = w.ctrl.State()
	}

	v, err := battery.ReadVoltage()
	if err != nil {
		w.logger.Error("watchdog voltage read failed", zap.Error(err))
		force("voltage unavailable", nil)
		return report
	}
	report.Voltage = v

	switch {
	case state == domain.PowerIn && v > w.cfg.VoltageMax:
		full := domain.BatteryFull
		force("voltage above max", &full)
		report.VoltageBreach = true
	case state == domain.PowerOut && v < w.cfg.VoltageMin:
		empty := domain.BatteryEmpty
		force("voltage below min", &empty)
		report.VoltageBreach = true
	case state == domain.PowerOut && (outDisabled || !w.ctrl.OutEnabled()):
		force("power out disabled", nil)
	case w.cfg.MaxLag > 0 && now.Sub(w.lastMeter) > w.cfg.MaxLag:
		force("meter data stale", nil)
	}
	return report
}
