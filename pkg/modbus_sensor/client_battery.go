package modbus_sensor

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type BatteryIntSFModbusReader struct {
	ModbusClient
	registers BatteryRegisters
}

// CreateBatteryModbusReader builds a reader for a battery monitor or BMS.
// url is either tcp://host:port or rtu:///dev/ttyX.
func CreateBatteryModbusReader(url string, speed uint, unitId uint8, timeout time.Duration,
	registers BatteryRegisters, logger *zap.Logger, instrumentation *ModbusInstrument) (BatteryModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Speed:   speed,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	logInst := debugLoggerInstrumentation(logger.With(zap.String("target", "battery")).With(zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}
	return &BatteryIntSFModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		registers: registers,
	}, nil
}

func (reader *BatteryIntSFModbusReader) Open() error {
	return reader.client.Open()
}

func (reader *BatteryIntSFModbusReader) Close() error {
	return reader.client.Close()
}

func (reader *BatteryIntSFModbusReader) ReadVoltage() (float64, error) {
	return reader.readValue(reader.registers.Voltage)
}

func (reader *BatteryIntSFModbusReader) ReadCurrent(channel int) (float64, error) {
	if channel < 0 || channel >= len(reader.registers.Currents) {
		return 0, fmt.Errorf("current channel %d not configured", channel)
	}
	return reader.readValue(reader.registers.Currents[channel])
}

func (reader *BatteryIntSFModbusReader) Read() (*BatteryReading, error) {
	v, err := reader.ReadVoltage()
	if err != nil {
		return nil, err
	}
	reading := BatteryReading{Voltage: v, Currents: make([]float64, 0, len(reader.registers.Currents))}
	for i := range reader.registers.Currents {
		c, err := reader.ReadCurrent(i)
		if err != nil {
			return nil, err
		}
		reading.Currents = append(reading.Currents, c)
	}
	return &reading, nil
}
