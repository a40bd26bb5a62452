package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/powerpilot/internal/adapter/driver"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStatus(t *testing.T) {

	assert := assert.New(t)

	m := NewMetrics()
	price := 0.231
	m.UpdateStatus(domain.ControllerStatus{
		PowerState:      domain.PowerIn,
		BatterySOC:      66,
		CurrentPowerIn:  350,
		OptimizeEnabled: true,
		CapacityIn:      12.5,
		CurrentPrice:    &price,
	})

	assert.Equal(1.0, testutil.ToFloat64(m.powerState))
	assert.Equal(66.0, testutil.ToFloat64(m.batterySOC))
	assert.Equal(350.0, testutil.ToFloat64(m.currentPowerIn))
	assert.Equal(1.0, testutil.ToFloat64(m.optimizeEnabled))
	assert.Equal(0.0, testutil.ToFloat64(m.powerOutEnabled))
	assert.Equal(12.5, testutil.ToFloat64(m.capacity.WithLabelValues("in")))
	assert.Equal(0.231, testutil.ToFloat64(m.spotPrice))
}

func TestInverterAndCounters(t *testing.T) {

	assert := assert.New(t)

	m := NewMetrics()
	m.UpdateInverter(driver.SoyosourceStatus{DCVoltage: 52.3})
	assert.Equal(0, testutil.CollectAndCount(m.inverter), "no status yet")

	m.UpdateInverter(driver.SoyosourceStatus{DCVoltage: 52.3, Temperature: 25, Updated: time.Now()})
	assert.Equal(52.3, testutil.ToFloat64(m.inverter.WithLabelValues("dc_voltage")))

	m.MeterReading()
	m.MeterReading()
	assert.Equal(2.0, testutil.ToFloat64(m.meterReadings))

	m.WatchdogForced("meter data stale")
	assert.Equal(1.0, testutil.ToFloat64(m.watchdogForced.WithLabelValues("meter data stale")))

	inst := m.ModbusInstrument()
	inst.RecordTime("ReadRegister", 12*time.Millisecond)
	assert.Equal(1, testutil.CollectAndCount(m.modbusRead))
}

func TestNilMetrics(t *testing.T) {

	var m *Metrics
	assert.NotPanics(t, func() {
		m.UpdateStatus(domain.ControllerStatus{})
		m.MeterReading()
		m.WatchdogForced("x")
	})
	assert.Nil(t, m.ModbusInstrument())
}

func TestHandler(t *testing.T) {

	m := NewMetrics()
	m.MeterReading()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "powerpilot_meter_readings_total 1")
}
