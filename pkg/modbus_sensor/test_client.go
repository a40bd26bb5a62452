package modbus_sensor

import "fmt"

func CreateTestBatteryModbusReader(voltage float64, currents ...float64) (BatteryModbusReader, error) {
	return &TestBatteryModbusReader{Voltage: voltage, Currents: currents}, nil
}

type TestBatteryModbusReader struct {
	Voltage  float64
	Currents []float64
	Err      error
	opened   bool
}

func (reader *TestBatteryModbusReader) Open() error {
	reader.opened = true
	return reader.Err
}

func (reader *TestBatteryModbusReader) Close() error {
	reader.opened = false
	return nil
}

func (reader *TestBatteryModbusReader) ReadVoltage() (float64, error) {
	if reader.Err != nil {
		return 0, reader.Err
	}
	return reader.Voltage, nil
}

func (reader *TestBatteryModbusReader) ReadCurrent(channel int) (float64, error) {
	if reader.Err != nil {
		return 0, reader.Err
	}
	if channel < 0 || channel >= len(reader.Currents) {
		return 0, fmt.Errorf("current channel %d not configured", channel)
	}
	return reader.Currents[channel], nil
}

func (reader *TestBatteryModbusReader) Read() (*BatteryReading, error) {
	if reader.Err != nil {
		return nil, reader.Err
	}
	return &BatteryReading{Voltage: reader.Voltage, Currents: reader.Currents}, nil
}
