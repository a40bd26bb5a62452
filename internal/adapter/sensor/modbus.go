package sensor

import (
	"github.com/berfenger/powerpilot/pkg/modbus_sensor"
	"go.uber.org/zap"
)

// Modbus adapts a modbus battery reader. The connection is opened lazily and
// dropped after a failed read so the next read reconnects.
type Modbus struct {
	reader modbus_sensor.BatteryModbusReader
	open   bool
	logger *zap.Logger
}

func NewModbus(reader modbus_sensor.BatteryModbusReader, logger *zap.Logger) *Modbus {
	return &Modbus{reader: reader, logger: logger}
}

func (s *Modbus) Available() bool {
	return s.reader != nil
}

func (s *Modbus) ensureOpen() error {
	if s.open {
		return nil
	}
	if err := s.reader.Open(); err != nil {
		return err
	}
	s.open = true
	return nil
}

func (s *Modbus) reset(err error) {
	s.logger.Warn("modbus battery read failed, reconnecting", zap.Error(err))
	if closeErr := s.reader.Close(); closeErr != nil {
		s.logger.Debug("modbus close failed", zap.Error(closeErr))
	}
	s.open = false
}

func (s *Modbus) ReadVoltage() (float64, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	v, err := s.reader.ReadVoltage()
	if err != nil {
		s.reset(err)
		return 0, err
	}
	return v, nil
}

func (s *Modbus) ReadCurrent(channel int) (float64, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	c, err := s.reader.ReadCurrent(channel)
	if err != nil {
		s.reset(err)
		return 0, err
	}
	return c, nil
}
