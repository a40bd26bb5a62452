package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
	"go.uber.org/zap"
)

const (
	DRIVER_DUMMY        = "dummy"
	DRIVER_PWM          = "pwm"
	DRIVER_DIGIPOT      = "digipot"
	DRIVER_DIGIPOT_STEP = "digipot_step"
	DRIVER_STEPPER      = "stepper"
	DRIVER_REMOTE       = "remote"
	DRIVER_SOYOSOURCE   = "soyosource"
	DRIVER_SWITCH       = "switch"
)

var (
	ErrUnknownDriver     = errors.New("unknown power driver")
	ErrInterfaceDisabled = errors.New("driver interface disabled")
)

// PinFactory opens GPIO lines by name.
type PinFactory interface {
	Output(name string, initial bool) (port.OutputPin, error)
	PWM(name string, frequencyHz float64) (port.PWMPin, error)
	Pulse(name string, initial bool) (port.PulseLine, error)
}

type Config struct {
	Driver      string            `mapstructure:"driver"`
	PWM         PWMConfig         `mapstructure:"pwm"`
	Digipot     DigipotConfig     `mapstructure:"digipot"`
	DigipotStep DigipotStepConfig `mapstructure:"digipot_step"`
	Stepper     StepperConfig     `mapstructure:"stepper"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	Soyosource  SoyosourceConfig  `mapstructure:"soyosource"`
}

type PWMConfig struct {
	Pin       string  `mapstructure:"pin"`
	Frequency float64 `mapstructure:"frequency"`
	// watts at 100% duty
	Max     float64 `mapstructure:"max"`
	Damping float64 `mapstructure:"damping"`
}

type DigipotConfig struct {
	UpDownPin     string        `mapstructure:"ud_pin"`
	ChipSelectPin string        `mapstructure:"cs_pin"`
	PulseWidth    time.Duration `mapstructure:"pulse_width"`
}

type DigipotStepConfig struct {
	DirectionPin string        `mapstructure:"dir_pin"`
	StepPin      string        `mapstructure:"step_pin"`
	WattsPerStep float64       `mapstructure:"watts_per_step"`
	PulseWidth   time.Duration `mapstructure:"pulse_width"`
}

type StepperConfig struct {
	DirectionPin string        `mapstructure:"dir_pin"`
	StepPin      string        `mapstructure:"step_pin"`
	MaxSteps     int           `mapstructure:"max_steps"`
	WattsPerStep float64       `mapstructure:"watts_per_step"`
	StepDelay    time.Duration `mapstructure:"step_delay"`
}

type RemoteConfig struct {
	Peer string `mapstructure:"peer"`
}

type SoyosourceConfig struct {
	Port           string        `mapstructure:"port"`
	Min            float64       `mapstructure:"min"`
	Max            float64       `mapstructure:"max"`
	Loss           float64       `mapstructure:"loss"`
	FeedInterval   time.Duration `mapstructure:"feed_interval"`
	StatusInterval time.Duration `mapstructure:"status_interval"`
}

type Deps struct {
	Pins   PinFactory
	Remote port.RemoteCaller
	View   port.ControllerView
	Logger *zap.Logger
}

// New builds the driver selected by cfg.Driver for the given direction.
func New(cfg Config, direction domain.PowerState, deps Deps) (port.PowerDriver, error) {
	logger := deps.Logger.With(zap.String("driver", cfg.Driver), zap.Stringer("direction", direction))
	switch cfg.Driver {
	case DRIVER_DUMMY, "":
		return NewDummy(direction, deps.View), nil
	case DRIVER_PWM:
		pin, err := deps.Pins.PWM(cfg.PWM.Pin, cfg.PWM.Frequency)
		if err != nil {
			return nil, err
		}
		return NewPWM(cfg.PWM, pin)
	case DRIVER_DIGIPOT:
		ud, err := deps.Pins.Pulse(cfg.Digipot.UpDownPin, false)
		if err != nil {
			return nil, err
		}
		// chip select is active low
		cs, err := deps.Pins.Output(cfg.Digipot.ChipSelectPin, true)
		if err != nil {
			return nil, err
		}
		return NewDigipot(cfg.Digipot, ud, cs), nil
	case DRIVER_DIGIPOT_STEP:
		dir, err := deps.Pins.Output(cfg.DigipotStep.DirectionPin, false)
		if err != nil {
			return nil, err
		}
		step, err := deps.Pins.Pulse(cfg.DigipotStep.StepPin, false)
		if err != nil {
			return nil, err
		}
		return NewDigipotStep(cfg.DigipotStep, dir, step)
	case DRIVER_STEPPER:
		dir, err := deps.Pins.Output(cfg.Stepper.DirectionPin, false)
		if err != nil {
			return nil, err
		}
		step, err := deps.Pins.Pulse(cfg.Stepper.StepPin, false)
		if err != nil {
			return nil, err
		}
		return NewStepper(cfg.Stepper, dir, step)
	case DRIVER_REMOTE:
		if deps.Remote == nil {
			return nil, fmt.Errorf("remote driver needs a remote caller")
		}
		return NewRemote(cfg.Remote, direction, deps.Remote, logger), nil
	case DRIVER_SOYOSOURCE:
		return OpenSoyosource(cfg.Soyosource, logger)
	case DRIVER_SWITCH:
		return NewSwitch(direction), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
