package sensor

import (
	"errors"
	"testing"

	"github.com/berfenger/powerpilot/pkg/modbus_sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ina219"
)

type fakeMonitor struct {
	pm  ina219.PowerMonitor
	err error
}

func (m fakeMonitor) Sense() (ina219.PowerMonitor, error) {
	return m.pm, m.err
}

func TestINA219Conversion(t *testing.T) {

	require := require.New(t)

	s := &INA219{
		devs: []powerMonitor{
			fakeMonitor{pm: ina219.PowerMonitor{Voltage: 13280 * physic.MilliVolt, Current: 4200 * physic.MilliAmpere}},
			fakeMonitor{err: errors.New("nack")},
		},
		logger: zap.NewNop(),
	}

	v, err := s.ReadVoltage()
	require.NoError(err)
	require.InDelta(13.28, v, 1e-9)

	c, err := s.ReadCurrent(0)
	require.NoError(err)
	require.InDelta(4.2, c, 1e-9)

	_, err = s.ReadCurrent(1)
	require.Error(err)
	_, err = s.ReadCurrent(2)
	require.Error(err)
	require.NoError(s.Close())
}

func TestModbusReconnects(t *testing.T) {

	require := require.New(t)

	reader := &modbus_sensor.TestBatteryModbusReader{Voltage: 13.3, Currents: []float64{2.5}}
	s := NewModbus(reader, zap.NewNop())
	require.True(s.Available())

	v, err := s.ReadVoltage()
	require.NoError(err)
	require.Equal(13.3, v)
	require.True(s.open)

	reader.Err = errors.New("connection reset")
	_, err = s.ReadCurrent(0)
	require.Error(err)
	require.False(s.open)

	reader.Err = nil
	c, err := s.ReadCurrent(0)
	require.NoError(err)
	require.Equal(2.5, c)
}

func TestNewStaticAndUnknown(t *testing.T) {

	s, err := New(Config{Instrument: INSTRUMENT_STATIC, Static: StaticConfig{Voltage: 13.1}}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, s.Available())
	v, _ := s.ReadVoltage()
	assert.Equal(t, 13.1, v)
	_, err = s.ReadCurrent(0)
	assert.Error(t, err)

	_, err = New(Config{Instrument: "ads1115"}, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestChannels(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(2, Config{Instrument: INSTRUMENT_INA219, INA219: INA219Config{Addresses: []int{0x40, 0x41}}}.Channels())
	assert.Equal(1, Config{Instrument: INSTRUMENT_STATIC, Static: StaticConfig{Currents: []float64{1.5}}}.Channels())
	assert.Zero(Config{}.Channels())
}
