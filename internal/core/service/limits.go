package service

import (
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
)

// Limits bounds the tracked power of one direction. Target applies to the
// in direction only, a negative value means no target.
type Limits struct {
	Min    float64
	Max    float64
	Target float64
}

func (l Limits) Enabled() bool {
	return l.Max > l.Min
}

// ApplyLimits shapes req before it reaches a driver. It returns ChangeOk when
// the driver should be called, otherwise the short-circuit result.
func ApplyLimits(l Limits, tracked float64, live port.LivePowerReader, req *domain.ChangeRequest) domain.ChangeResult {
	if !l.Enabled() {
		return domain.ChangeOk
	}

	if l.Target >= 0 && tracked+req.Power > l.Target {
		req.Power = l.Target - tracked
	}

	if tracked <= l.Min && req.Power < 0 {
		return domain.ChangeAtMin
	}
	if tracked >= l.Max && req.Power > 0 {
		return domain.ChangeAtMax
	}

	reference := tracked
	if live != nil {
		if p, ok := live.LivePower(); ok {
			reference = p
		}
	}
	if reference+req.Power > l.Max {
		req.Power = l.Max - reference
	} else if reference+req.Power < l.Min {
		req.Power = l.Min - reference
	}

	if req.Power == 0 {
		return domain.ChangeNoChange
	}
	return domain.ChangeOk
}

func livePowerOf(driver port.PowerDriver) port.LivePowerReader {
	if r, ok := driver.(port.LivePowerReader); ok {
		return r
	}
	return nil
}
