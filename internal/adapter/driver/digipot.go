package driver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/berfenger/powerpilot/internal/adapter/hal"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
)

const defaultPulseWidth = 2 * time.Microsecond

// Digipot drives an up/down potentiometer: one pulse per watt inside a chip
// select window. Bounds are left to the limit enforcer.
type Digipot struct {
	ud    port.PulseLine
	cs    port.OutputPin
	width time.Duration
}

func NewDigipot(cfg DigipotConfig, ud port.PulseLine, cs port.OutputPin) *Digipot {
	width := cfg.PulseWidth
	if width <= 0 {
		width = defaultPulseWidth
	}
	return &Digipot{ud: ud, cs: cs, width: width}
}

func (d *Digipot) Name() string {
	return DRIVER_DIGIPOT
}

func (d *Digipot) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	steps := int(math.Abs(req.Power))
	if steps == 0 {
		return domain.ChangeOk, nil
	}
	up := req.Power > 0
	if err := d.ud.Set(up); err != nil {
		return domain.ChangeFailed, err
	}
	hal.BusyWait(d.width)
	if err := d.cs.Set(false); err != nil {
		return domain.ChangeFailed, err
	}
	hal.BusyWait(d.width)
	err := d.ud.Pulse(steps, d.width)
	hal.BusyWait(d.width)
	// always close the window
	if csErr := d.cs.Set(true); csErr != nil {
		err = errors.Join(err, csErr)
	}
	if err != nil {
		return domain.ChangeFailed, err
	}
	req.Power = math.Copysign(float64(steps), req.Power)
	return domain.ChangeOk, nil
}

// DigipotStep drives a direction+step potentiometer with a fixed watts per
// step.
type DigipotStep struct {
	cfg  DigipotStepConfig
	dir  port.OutputPin
	step port.PulseLine
}

func NewDigipotStep(cfg DigipotStepConfig, dir port.OutputPin, step port.PulseLine) (*DigipotStep, error) {
	if cfg.WattsPerStep <= 0 {
		return nil, fmt.Errorf("digipot watts per step must be positive, got %.2f", cfg.WattsPerStep)
	}
	if cfg.PulseWidth <= 0 {
		cfg.PulseWidth = defaultPulseWidth
	}
	return &DigipotStep{cfg: cfg, dir: dir, step: step}, nil
}

func (d *DigipotStep) Name() string {
	return DRIVER_DIGIPOT_STEP
}

func (d *DigipotStep) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	steps := int(math.Round(math.Abs(req.Power) / d.cfg.WattsPerStep))
	if steps == 0 {
		req.Power = 0
		return domain.ChangeOk, nil
	}
	if err := d.dir.Set(req.Power > 0); err != nil {
		return domain.ChangeFailed, err
	}
	hal.BusyWait(d.cfg.PulseWidth)
	if err := d.step.Pulse(steps, d.cfg.PulseWidth); err != nil {
		return domain.ChangeFailed, err
	}
	req.Power = math.Copysign(float64(steps)*d.cfg.WattsPerStep, req.Power)
	return domain.ChangeOk, nil
}
