package modbus_sensor

// Register locates one value. The decoded value is raw * 10^ScaleFactor.
type Register struct {
	Address     uint16 `mapstructure:"address"`
	Input       bool   `mapstructure:"input"`
	Float32     bool   `mapstructure:"float32"`
	Signed      bool   `mapstructure:"signed"`
	ScaleFactor int16  `mapstructure:"scale_factor"`
}

type BatteryRegisters struct {
	Voltage  Register   `mapstructure:"voltage"`
	Currents []Register `mapstructure:"currents"`
}

type BatteryReading struct {
	// Pack voltage in volts
	Voltage float64
	// Current per configured channel in amperes. Positive = charging
	Currents []float64
}

type BatteryModbusReader interface {
	Open() error
	Close() error
	ReadVoltage() (float64, error)
	ReadCurrent(channel int) (float64, error)
	Read() (*BatteryReading, error)
}
