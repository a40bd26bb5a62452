package hal

import (
	"fmt"
	"sync"

	"github.com/berfenger/powerpilot/internal/core/port"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Registry hands out pins by name. Asking twice for the same name returns
// the same pin.
type Registry struct {
	lookup func(name string) gpio.PinIO
	pins   map[string]*Pin
	mu     sync.Mutex
	logger *zap.Logger
}

// NewPeriphRegistry initializes the host drivers and resolves pins through
// the periph registry.
func NewPeriphRegistry(logger *zap.Logger) (*Registry, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	for _, d := range state.Loaded {
		logger.Debug("periph driver loaded", zap.String("driver", d.String()))
	}
	return &Registry{
		lookup: gpioreg.ByName,
		pins:   map[string]*Pin{},
		logger: logger,
	}, nil
}

// NewMemoryRegistry backs every pin with an in-memory test pin. Used for dry
// runs and tests.
func NewMemoryRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		lookup: func(name string) gpio.PinIO {
			return &gpiotest.Pin{N: name, Num: -1}
		},
		pins:   map[string]*Pin{},
		logger: logger,
	}
}

func (r *Registry) pin(name string, initial bool) (*Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pins[name]; ok {
		return p, nil
	}
	if name == "" {
		return nil, fmt.Errorf("gpio pin name not configured")
	}
	io := r.lookup(name)
	if io == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	p, err := NewPin(io, initial)
	if err != nil {
		return nil, err
	}
	r.logger.Info("gpio pin opened", zap.String("pin", name), zap.Bool("initial", initial))
	r.pins[name] = p
	return p, nil
}

func (r *Registry) Output(name string, initial bool) (port.OutputPin, error) {
	return r.pin(name, initial)
}

func (r *Registry) PWM(name string, frequencyHz float64) (port.PWMPin, error) {
	p, err := r.pin(name, false)
	if err != nil {
		return nil, err
	}
	p.freq = physic.Frequency(frequencyHz * float64(physic.Hertz))
	return p, nil
}

func (r *Registry) Pulse(name string, initial bool) (port.PulseLine, error) {
	return r.pin(name, initial)
}

// Lookup returns an already opened pin.
func (r *Registry) Lookup(name string) (*Pin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pins[name]
	return p, ok
}
