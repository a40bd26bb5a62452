package sensor

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ina219"
)

type powerMonitor interface {
	Sense() (ina219.PowerMonitor, error)
}

// INA219 reads pack voltage and per channel current from INA219 monitors on
// one I2C bus.
type INA219 struct {
	bus    i2c.BusCloser
	devs   []powerMonitor
	logger *zap.Logger
}

func OpenINA219(cfg INA219Config, logger *zap.Logger) (*INA219, error) {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []int{ina219.DefaultOpts.Address}
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("i2c bus %q: %w", cfg.Bus, err)
	}
	opts := ina219.DefaultOpts
	if cfg.SenseResistor > 0 {
		opts.SenseResistor = physic.ElectricResistance(cfg.SenseResistor * float64(physic.Ohm))
	}
	if cfg.MaxCurrent > 0 {
		opts.MaxCurrent = physic.ElectricCurrent(cfg.MaxCurrent * float64(physic.Ampere))
	}
	devs := make([]powerMonitor, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		o := opts
		o.Address = addr
		dev, err := ina219.New(bus, &o)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("ina219 at 0x%02x: %w", addr, err)
		}
		logger.Info("ina219 ready", zap.String("bus", bus.String()), zap.Int("address", addr))
		devs = append(devs, dev)
	}
	return &INA219{bus: bus, devs: devs, logger: logger}, nil
}

func (s *INA219) Available() bool {
	return len(s.devs) > 0
}

func (s *INA219) ReadVoltage() (float64, error) {
	if !s.Available() {
		return 0, errors.New("no ina219 device")
	}
	pm, err := s.devs[0].Sense()
	if err != nil {
		return 0, fmt.Errorf("ina219 bus voltage: %w", err)
	}
	return float64(pm.Voltage) / float64(physic.Volt), nil
}

func (s *INA219) ReadCurrent(channel int) (float64, error) {
	if channel < 0 || channel >= len(s.devs) {
		return 0, fmt.Errorf("ina219 channel %d not configured", channel)
	}
	pm, err := s.devs[channel].Sense()
	if err != nil {
		return 0, fmt.Errorf("ina219 current: %w", err)
	}
	return float64(pm.Current) / float64(physic.Ampere), nil
}

func (s *INA219) Close() error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Close()
}
