package driver

import (
	"fmt"
	"math"

	"github.com/berfenger/powerpilot/internal/adapter/hal"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
)

// Stepper turns a potentiometer with a stepper motor and keeps the absolute
// position in [0, MaxSteps]. The position is assumed to be 0 at startup.
type Stepper struct {
	cfg      StepperConfig
	dir      port.OutputPin
	step     port.PulseLine
	position int
}

func NewStepper(cfg StepperConfig, dir port.OutputPin, step port.PulseLine) (*Stepper, error) {
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("stepper max steps must be positive, got %d", cfg.MaxSteps)
	}
	if cfg.WattsPerStep <= 0 {
		return nil, fmt.Errorf("stepper watts per step must be positive, got %.2f", cfg.WattsPerStep)
	}
	return &Stepper{cfg: cfg, dir: dir, step: step}, nil
}

func (d *Stepper) Name() string {
	return DRIVER_STEPPER
}

func (d *Stepper) Position() int {
	return d.position
}

func (d *Stepper) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	steps := int(math.Round(req.Power / d.cfg.WattsPerStep))
	target := min(max(d.position+steps, 0), d.cfg.MaxSteps)
	moved := target - d.position

	if moved != 0 {
		if err := d.dir.Set(moved > 0); err != nil {
			req.Power = 0
			return domain.ChangeFailed, err
		}
		hal.BusyWait(d.cfg.StepDelay)
		if err := d.step.Pulse(abs(moved), d.cfg.StepDelay); err != nil {
			// position is unknown after a partial train
			req.Power = 0
			return domain.ChangeFailed, err
		}
		d.position = target
	}
	req.Power = float64(moved) * d.cfg.WattsPerStep

	switch {
	case steps < 0 && d.position == 0:
		return domain.ChangeAtMin, nil
	case steps > 0 && d.position == d.cfg.MaxSteps:
		return domain.ChangeAtMax, nil
	case moved == 0:
		return domain.ChangeNoChange, nil
	}
	return domain.ChangeOk, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
