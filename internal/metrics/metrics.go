package metrics

import (
	"net/http"
	"time"

	"github.com/berfenger/powerpilot/internal/adapter/driver"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/pkg/modbus_sensor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powerpilot"

type Metrics struct {
	registry *prometheus.Registry

	powerState        prometheus.Gauge
	batteryState      prometheus.Gauge
	batterySOC        prometheus.Gauge
	batteryVoltage    prometheus.Gauge
	currentPowerIn    prometheus.Gauge
	currentPowerOut   prometheus.Gauge
	requestedStepsIn  prometheus.Gauge
	currentTotalPower prometheus.Gauge
	optimizeEnabled   prometheus.Gauge
	powerOutEnabled   prometheus.Gauge
	capacity          *prometheus.GaugeVec
	spotPrice         prometheus.Gauge

	inverter *prometheus.GaugeVec

	meterReadings  prometheus.Counter
	watchdogForced *prometheus.CounterVec
	modbusRead     *prometheus.HistogramVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry:          prometheus.NewRegistry(),
		powerState:        gauge("power_state", "Power state (0 off, 1 in, -1 out, -99 invalid)."),
		batteryState:      gauge("battery_state", "Battery state."),
		batterySOC:        gauge("battery_soc_percent", "Estimated battery state of charge."),
		batteryVoltage:    gauge("battery_voltage_volts", "Last battery voltage reading."),
		currentPowerIn:    gauge("current_power_in_watts", "Tracked charge power."),
		currentPowerOut:   gauge("current_power_out_watts", "Tracked discharge power."),
		requestedStepsIn:  gauge("requested_steps_in", "Last requested charge delta."),
		currentTotalPower: gauge("current_total_power_watts", "Last total power reported by the meter."),
		optimizeEnabled:   gauge("optimize_enabled", "Optimization loop enabled."),
		powerOutEnabled:   gauge("power_out_enabled", "Discharge enabled."),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_amp_hours",
			Help:      "Charge moved since the last capacity reset.",
		}, []string{"direction"}),
		spotPrice: gauge("spot_price_eur_kwh", "Current market price."),
		inverter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inverter_status",
			Help:      "Serial inverter status values.",
		}, []string{"value"}),
		meterReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meter_readings_total",
			Help:      "Total power readings received.",
		}),
		watchdogForced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_forced_total",
			Help:      "Forced power off events by reason.",
		}, []string{"reason"}),
		modbusRead: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modbus_read_seconds",
			Help:      "Modbus call duration by function.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"fn"}),
	}

	m.registry.MustRegister(
		m.powerState,
		m.batteryState,
		m.batterySOC,
		m.batteryVoltage,
		m.currentPowerIn,
		m.currentPowerOut,
		m.requestedStepsIn,
		m.currentTotalPower,
		m.optimizeEnabled,
		m.powerOutEnabled,
		m.capacity,
		m.spotPrice,
		m.inverter,
		m.meterReadings,
		m.watchdogForced,
		m.modbusRead,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *Metrics) UpdateStatus(s domain.ControllerStatus) {
	if m == nil {
		return
	}
	m.powerState.Set(float64(s.PowerState))
	m.batteryState.Set(float64(s.BatteryState))
	m.batterySOC.Set(float64(s.BatterySOC))
	m.batteryVoltage.Set(s.BatteryVoltage)
	m.currentPowerIn.Set(s.CurrentPowerIn)
	m.currentPowerOut.Set(s.CurrentPowerOut)
	m.requestedStepsIn.Set(s.RequestedStepsIn)
	m.currentTotalPower.Set(s.CurrentTotalPower)
	m.optimizeEnabled.Set(boolGauge(s.OptimizeEnabled))
	m.powerOutEnabled.Set(boolGauge(s.PowerOutEnabled))
	m.capacity.WithLabelValues("in").Set(s.CapacityIn)
	m.capacity.WithLabelValues("out").Set(s.CapacityOut)
	if s.CurrentPrice != nil {
		m.spotPrice.Set(*s.CurrentPrice)
	}
}

func (m *Metrics) UpdateInverter(s driver.SoyosourceStatus) {
	if m == nil || s.Updated.IsZero() {
		return
	}
	m.inverter.WithLabelValues("operation_mode").Set(float64(s.Mode))
	m.inverter.WithLabelValues("dc_voltage").Set(s.DCVoltage)
	m.inverter.WithLabelValues("dc_current").Set(s.DCCurrent)
	m.inverter.WithLabelValues("ac_voltage").Set(s.ACVoltage)
	m.inverter.WithLabelValues("ac_frequency").Set(s.ACFrequency)
	m.inverter.WithLabelValues("temperature").Set(s.Temperature)
}

func (m *Metrics) MeterReading() {
	if m == nil {
		return
	}
	m.meterReadings.Inc()
}

func (m *Metrics) WatchdogForced(reason string) {
	if m == nil {
		return
	}
	m.watchdogForced.WithLabelValues(reason).Inc()
}

// ModbusInstrument records modbus call durations into the histogram.
func (m *Metrics) ModbusInstrument() *modbus_sensor.ModbusInstrument {
	if m == nil {
		return nil
	}
	return &modbus_sensor.ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			m.modbusRead.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}
