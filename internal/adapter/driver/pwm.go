package driver

import (
	"fmt"
	"math"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
)

// PWM maps an absolute output level in watts onto a duty cycle.
type PWM struct {
	cfg   PWMConfig
	pin   port.PWMPin
	level float64
}

func NewPWM(cfg PWMConfig, pin port.PWMPin) (*PWM, error) {
	if cfg.Max <= 0 {
		return nil, fmt.Errorf("pwm max must be positive, got %.1f", cfg.Max)
	}
	if cfg.Damping <= 0 {
		cfg.Damping = 1
	}
	return &PWM{cfg: cfg, pin: pin}, nil
}

func (d *PWM) Name() string {
	return DRIVER_PWM
}

func (d *PWM) Level() float64 {
	return d.level
}

func (d *PWM) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	prev := d.level
	duty := math.Min(math.Max((prev+req.Power*d.cfg.Damping)/d.cfg.Max, 0), 1)

	var err error
	switch duty {
	// the peripheral glitches at 0% and 100%, drive the line instead
	case 0:
		err = d.pin.Set(false)
	case 1:
		err = d.pin.Set(true)
	default:
		err = d.pin.PWM(duty)
	}
	if err != nil {
		req.Power = 0
		return domain.ChangeFailed, err
	}

	d.level = duty * d.cfg.Max
	req.Power = d.level - prev
	switch duty {
	case 0:
		return domain.ChangeAtMin, nil
	case 1:
		return domain.ChangeAtMax, nil
	}
	return domain.ChangeOk, nil
}
