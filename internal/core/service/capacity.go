package service

import (
	"math"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
)

// CapacityAccumulator integrates tracked power into amp hours per direction.
type CapacityAccumulator struct {
	nominalVoltage float64
	charged        float64
	discharged     float64
	last           time.Time
}

func NewCapacityAccumulator(nominalVoltage float64, now time.Time) *CapacityAccumulator {
	return &CapacityAccumulator{
		nominalVoltage: nominalVoltage,
		last:           now,
	}
}

// Account adds the charge moved at power since the previous call, booked
// to the direction of state.
func (c *CapacityAccumulator) Account(state domain.PowerState, power float64, now time.Time) {
	elapsed := now.Sub(c.last)
	c.last = now
	if elapsed <= 0 || c.nominalVoltage <= 0 {
		return
	}
	ah := math.Abs(power) / c.nominalVoltage * elapsed.Hours()
	switch state {
	case domain.PowerIn:
		c.charged += ah
	case domain.PowerOut:
		c.discharged += ah
	}
}

func (c *CapacityAccumulator) Reset(now time.Time) {
	c.charged = 0
	c.discharged = 0
	c.last = now
}

func (c *CapacityAccumulator) ChargedAh() float64 {
	return c.charged
}

func (c *CapacityAccumulator) DischargedAh() float64 {
	return c.discharged
}
