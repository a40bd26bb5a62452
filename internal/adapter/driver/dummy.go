package driver

import (
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
)

// Dummy never touches hardware. It accepts a change while the last total
// power reading sits outside the target band on the side its direction
// corrects, and reports the band edge as saturation otherwise. Charging
// raises grid power, discharging lowers it.
type Dummy struct {
	direction domain.PowerState
	view      port.ControllerView
}

func NewDummy(direction domain.PowerState, view port.ControllerView) *Dummy {
	return &Dummy{direction: direction, view: view}
}

func (d *Dummy) Name() string {
	return DRIVER_DUMMY
}

func (d *Dummy) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	if d.view == nil || req.Power == 0 {
		req.Power = 0
		return domain.ChangeNoChange, nil
	}
	total := d.view.TotalPower()
	target := d.view.OptimizeTarget()

	var accept bool
	if d.direction == domain.PowerOut {
		accept = (req.Power > 0 && total > target.Max) || (req.Power < 0 && total < target.Min)
	} else {
		accept = (req.Power > 0 && total < target.Min) || (req.Power < 0 && total > target.Max)
	}
	if accept {
		return domain.ChangeOk, nil
	}
	increase := req.Power > 0
	req.Power = 0
	if increase {
		return domain.ChangeAtMax, nil
	}
	return domain.ChangeAtMin, nil
}
