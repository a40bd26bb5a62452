package util

import (
	"github.com/berfenger/powerpilot/internal/adapter/driver"
	"github.com/berfenger/powerpilot/internal/adapter/sensor"
	"github.com/berfenger/powerpilot/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:       "localhost",
			Port:       1883,
			BaseTopic:  "powerpilot",
			MeterTopic: "meter/power",
		},
		Power: config.PowerConfig{
			InPin:      "GPIO5",
			OutPin:     "GPIO6",
			OutEnabled: true,
			In: config.DirectionConfig{
				Min:    0,
				Max:    2000,
				Target: -1,
				Driver: driver.Config{Driver: driver.DRIVER_DUMMY},
			},
			Out: config.DirectionConfig{
				Min:    0,
				Max:    600,
				Target: -1,
				Driver: driver.Config{Driver: driver.DRIVER_DUMMY},
			},
		},
		Battery: config.BatteryConfig{
			Cells:              4,
			NominalVoltage:     12.8,
			SettleActiveMillis: 60000,
			SettleIdleMillis:   600000,
		},
		Optimizer: config.OptimizerConfig{
			Enable:          true,
			TargetMin:       -50,
			TargetMax:       50,
			PendingSize:     2,
			InMin:           100,
			OutOnThreshold:  200,
			OutOffThreshold: 20,
		},
		Watchdog: config.WatchdogConfig{
			IntervalMillis: 5000,
			VoltageMin:     12.0,
			VoltageMax:     14.2,
			MaxLagMillis:   60000,
		},
		Price: config.PriceConfig{
			WindowHours:   24,
			TimeoutMillis: 5000,
			RefreshCron:   "0 5 * * * *",
		},
		Sensor: sensor.Config{
			Instrument: sensor.INSTRUMENT_STATIC,
			Static:     sensor.StaticConfig{Voltage: 13.2, Currents: []float64{0}},
		},
		Jobs: config.JobsConfig{
			CapacityResetCron: "0 0 0 * * *",
		},
		StatusIntervalMillis: 10000,
		DryRun:               true,
		Port:                 8080,
	}
}
