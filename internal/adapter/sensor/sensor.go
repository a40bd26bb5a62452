package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/powerpilot/internal/core/port"
	"github.com/berfenger/powerpilot/pkg/modbus_sensor"
	"go.uber.org/zap"
)

const (
	INSTRUMENT_INA219 = "ina219"
	INSTRUMENT_MODBUS = "modbus"
	INSTRUMENT_STATIC = "static"
)

var ErrUnknownInstrument = errors.New("unknown battery instrument")

type Config struct {
	Instrument string       `mapstructure:"instrument"`
	INA219     INA219Config `mapstructure:"ina219"`
	Modbus     ModbusConfig `mapstructure:"modbus"`
	Static     StaticConfig `mapstructure:"static"`
}

type INA219Config struct {
	Bus string `mapstructure:"bus"`
	// one device per current channel, the first one also measures voltage
	Addresses     []int   `mapstructure:"addresses"`
	SenseResistor float64 `mapstructure:"sense_resistor"`
	MaxCurrent    float64 `mapstructure:"max_current"`
}

type ModbusConfig struct {
	URL       string                         `mapstructure:"url"`
	Speed     uint                           `mapstructure:"speed"`
	UnitId    uint8                          `mapstructure:"unit_id"`
	Timeout   time.Duration                  `mapstructure:"timeout"`
	Registers modbus_sensor.BatteryRegisters `mapstructure:"registers"`
}

type StaticConfig struct {
	Voltage  float64   `mapstructure:"voltage"`
	Currents []float64 `mapstructure:"currents"`
}

// New opens the battery sensor selected by cfg.Instrument.
func New(cfg Config, instrumentation *modbus_sensor.ModbusInstrument, logger *zap.Logger) (port.BatterySensor, error) {
	switch cfg.Instrument {
	case INSTRUMENT_INA219:
		return OpenINA219(cfg.INA219, logger)
	case INSTRUMENT_MODBUS:
		reader, err := modbus_sensor.CreateBatteryModbusReader(cfg.Modbus.URL, cfg.Modbus.Speed, cfg.Modbus.UnitId,
			cfg.Modbus.Timeout, cfg.Modbus.Registers, logger, instrumentation)
		if err != nil {
			return nil, err
		}
		return NewModbus(reader, logger), nil
	case INSTRUMENT_STATIC, "":
		return NewStatic(cfg.Static), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, cfg.Instrument)
}

// Channels is the number of current channels the configured instrument reads.
func (c Config) Channels() int {
	switch c.Instrument {
	case INSTRUMENT_INA219:
		return len(c.INA219.Addresses)
	case INSTRUMENT_MODBUS:
		return len(c.Modbus.Registers.Currents)
	}
	return len(c.Static.Currents)
}
