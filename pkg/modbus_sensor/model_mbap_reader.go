package modbus_sensor

import (
	"math"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func applySF(number float64, sf int16) float64 {
	return number * math.Pow(10, float64(sf))
}

func regType(input bool) modbus.RegType {
	if input {
		return modbus.INPUT_REGISTER
	}
	return modbus.HOLDING_REGISTER
}

func (reader ModbusClient) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	defer RecordTimer("ReadRegister", reader.instrument)()
	return reader.client.ReadRegister(addr, regType)
}

func (reader ModbusClient) readFloat32(addr uint16, regType modbus.RegType) (float32, error) {
	defer RecordTimer("ReadFloat32", reader.instrument)()
	return reader.client.ReadFloat32(addr, regType)
}

// readValue reads one register as described by reg and applies its scale
// factor.
func (reader ModbusClient) readValue(reg Register) (float64, error) {
	if reg.Float32 {
		v, err := reader.readFloat32(reg.Address, regType(reg.Input))
		if err != nil {
			return 0, err
		}
		return applySF(float64(v), reg.ScaleFactor), nil
	}
	raw, err := reader.readRegister(reg.Address, regType(reg.Input))
	if err != nil {
		return 0, err
	}
	if reg.Signed {
		return applySF(float64(int16(raw)), reg.ScaleFactor), nil
	}
	return applySF(float64(raw), reg.ScaleFactor), nil
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
