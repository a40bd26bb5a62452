package service

import (
	"github.com/berfenger/powerpilot/internal/core/domain"
	"go.uber.org/zap"
)

type OptimizerConfig struct {
	PendingSize int
	// minimum surplus below the band midpoint before charging starts
	InMin float64
	// grid import above which discharging starts
	OutOnThreshold float64
	// tracked discharge power at or below which discharging stops
	OutOffThreshold float64
}

// Optimizer steers the measured total power into the target band.
type Optimizer struct {
	cfg     OptimizerConfig
	ctrl    *PowerController
	target  domain.OptimizeTarget
	enabled bool
	pending *PendingBuffer
	logger  *zap.Logger
}

func NewOptimizer(cfg OptimizerConfig, ctrl *PowerController, target domain.OptimizeTarget, enabled bool, logger *zap.Logger) *Optimizer {
	return &Optimizer{
		cfg:     cfg,
		ctrl:    ctrl,
		target:  target,
		enabled: enabled,
		pending: NewPendingBuffer(cfg.PendingSize),
		logger:  logger,
	}
}

func (o *Optimizer) Enabled() bool {
	return o.enabled
}

func (o *Optimizer) SetEnabled(enabled bool) {
	if enabled && !o.enabled {
		o.pending.Reset()
	}
	o.enabled = enabled
}

func (o *Optimizer) Target() domain.OptimizeTarget {
	return o.target
}

func (o *Optimizer) SetTarget(target domain.OptimizeTarget) error {
	if target.Min > target.Max {
		return domain.ErrInvalidTarget
	}
	o.target = target
	return nil
}

// Pending is the estimated total power once queued adjustments show up.
func (o *Optimizer) Pending(power float64) float64 {
	return power + o.pending.Sum()
}

// Optimize runs one control step for the measured total power and returns
// the grid power effect queued in the pending buffer. Charging raises grid
// power, discharging lowers it.
func (o *Optimizer) Optimize(power float64) float64 {
	pending := o.Pending(power)
	mid := o.target.Mid()
	p := pending - mid

	var effect float64
	state := o.ctrl.State()
	switch state {
	case domain.PowerOff:
		if pending < o.target.Min && pending < mid-o.cfg.InMin {
			if o.ctrl.SetState(domain.PowerIn) == domain.PowerIn {
				effect = o.charge(-p)
			}
		} else if pending > o.cfg.OutOnThreshold {
			if o.ctrl.SetState(domain.PowerOut) == domain.PowerOut {
				effect = o.discharge(p)
			}
		}
	case domain.PowerIn:
		if !o.target.Contains(pending) {
			effect = o.charge(-p)
		}
	case domain.PowerOut:
		if !o.ctrl.OutEnabled() {
			effect = o.stopDischarge()
			break
		}
		if !o.target.Contains(pending) {
			effect = o.discharge(p)
		}
		if o.ctrl.State() == domain.PowerOut && o.ctrl.CurrentOut() <= o.cfg.OutOffThreshold {
			o.logger.Info("discharge power below off threshold", zap.Float64("current_out", o.ctrl.CurrentOut()))
			effect += o.stopDischarge()
		}
	default:
		o.logger.Error("cannot optimize in invalid power state")
	}

	o.pending.Push(effect)
	o.logger.Debug("optimize", zap.Float64("power", power), zap.Float64("pending", pending),
		zap.Stringer("state", state), zap.Float64("effect", effect))
	return effect
}

func (o *Optimizer) charge(delta float64) float64 {
	res, achieved := o.ctrl.InChange(delta)
	if res == domain.ChangeAtMin {
		remaining := o.ctrl.CurrentIn()
		o.ctrl.SetState(domain.PowerOff)
		return achieved - remaining
	}
	return achieved
}

func (o *Optimizer) discharge(delta float64) float64 {
	res, achieved := o.ctrl.OutChange(delta)
	if res == domain.ChangeAtMin {
		return -achieved + o.stopDischarge()
	}
	return -achieved
}

// stopDischarge switches off and returns the resulting grid power rise.
func (o *Optimizer) stopDischarge() float64 {
	remaining := o.ctrl.CurrentOut()
	o.ctrl.SetState(domain.PowerOff)
	return remaining
}
