package hal

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3/cpu"
)

// spin below this, sleep above
const spinLimit = 50 * time.Microsecond

// Pin drives a GPIO line. The written level is cached since reading back an
// output is not reliable on every host.
type Pin struct {
	pin   gpio.PinIO
	level bool
	freq  physic.Frequency
}

func NewPin(p gpio.PinIO, initial bool) (*Pin, error) {
	pin := &Pin{pin: p}
	if err := pin.Set(initial); err != nil {
		return nil, err
	}
	return pin, nil
}

func (p *Pin) Name() string {
	return p.pin.Name()
}

func (p *Pin) Set(high bool) error {
	if err := p.pin.Out(gpio.Level(high)); err != nil {
		return fmt.Errorf("gpio %s: %w", p.pin.Name(), err)
	}
	p.level = high
	return nil
}

func (p *Pin) Level() bool {
	return p.level
}

// PWM writes a duty cycle in [0,1] at the pin frequency.
func (p *Pin) PWM(duty float64) error {
	duty = math.Min(math.Max(duty, 0), 1)
	d := gpio.Duty(math.Round(duty * float64(gpio.DutyMax)))
	if err := p.pin.PWM(d, p.freq); err != nil {
		return fmt.Errorf("gpio %s pwm: %w", p.pin.Name(), err)
	}
	p.level = duty > 0
	return nil
}

// Pulse toggles the line away from its current level and back count times,
// holding each half for width. It blocks until the train is complete.
func (p *Pin) Pulse(count int, width time.Duration) error {
	rest := p.level
	for i := 0; i < count; i++ {
		if err := p.Set(!rest); err != nil {
			return err
		}
		BusyWait(width)
		if err := p.Set(rest); err != nil {
			return err
		}
		BusyWait(width)
	}
	return nil
}

// BusyWait blocks for d. Short waits spin so pulse timing stays tight.
func BusyWait(d time.Duration) {
	if d <= 0 {
		return
	}
	if d <= spinLimit {
		cpu.Nanospin(d)
		return
	}
	time.Sleep(d)
}
