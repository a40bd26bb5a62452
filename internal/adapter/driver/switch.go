package driver

import (
	"github.com/berfenger/powerpilot/internal/core/domain"
)

// Switch is a two-state output without a range. The direction line already
// did all the work.
type Switch struct {
	direction domain.PowerState
}

func NewSwitch(direction domain.PowerState) *Switch {
	return &Switch{direction: direction}
}

func (d *Switch) Name() string {
	return DRIVER_SWITCH
}

func (d *Switch) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	req.Power = 0
	if d.direction == domain.PowerOut {
		return domain.ChangeAtMax, nil
	}
	return domain.ChangeAtMin, nil
}
