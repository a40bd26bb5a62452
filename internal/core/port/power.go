package port

import (
	"context"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
)

// OutputPin is a digital line the controller drives and can read back.
type OutputPin interface {
	Set(high bool) error
	Level() bool
}

// PWMPin is an output line that also accepts a duty cycle in [0,1].
type PWMPin interface {
	OutputPin
	PWM(duty float64) error
}

// PulseLine emits blocking pulse trains for potentiometer and stepper drivers.
type PulseLine interface {
	OutputPin
	Pulse(count int, width time.Duration) error
}

// PowerDriver changes charge or discharge power by a delta. Implementations
// may overwrite req.Power with the delta they achieved.
type PowerDriver interface {
	Name() string
	Change(req *domain.ChangeRequest) (domain.ChangeResult, error)
}

// LivePowerReader is an optional driver side channel reporting the power
// currently measured at the actuator.
type LivePowerReader interface {
	LivePower() (float64, bool)
}

// ControllerView exposes the read-only inputs the dummy driver needs.
type ControllerView interface {
	TotalPower() float64
	OptimizeTarget() domain.OptimizeTarget
}

type BatterySensor interface {
	ReadVoltage() (float64, error)
	ReadCurrent(channel int) (float64, error)
	Available() bool
}

type RemoteCaller interface {
	Call(peer, method string, args any, done func(result []byte, err error))
}

type PriceSource interface {
	Fetch(ctx context.Context, from, to time.Time) ([]domain.PriceEntry, error)
}
