package config

import (
	"testing"
	"time"

	"github.com/berfenger/powerpilot/internal/adapter/driver"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Power: PowerConfig{
			InPin:      "GPIO5",
			OutPin:     "GPIO6",
			OutEnabled: true,
			In:         DirectionConfig{Min: 0, Max: 2000, Target: -1, Driver: driver.Config{Driver: driver.DRIVER_PWM}},
			Out:        DirectionConfig{Min: 0, Max: 600, Driver: driver.Config{Driver: driver.DRIVER_SOYOSOURCE}},
		},
		Battery: BatteryConfig{Cells: 4, NominalVoltage: 12.8, SettleActiveMillis: 60000, SettleIdleMillis: 600000},
		Optimizer: OptimizerConfig{
			Enable:          true,
			TargetMin:       -50,
			TargetMax:       50,
			PendingSize:     2,
			InMin:           100,
			OutOnThreshold:  200,
			OutOffThreshold: 20,
		},
		Watchdog:             WatchdogConfig{IntervalMillis: 5000, VoltageMin: 12.0, VoltageMax: 14.2, MaxLagMillis: 60000},
		Price:                PriceConfig{Enable: true, WindowHours: 24},
		StatusIntervalMillis: 10000,
	}
}

func TestValidate(t *testing.T) {

	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing pin", func(c *Config) { c.Power.OutPin = "" }},
		{"same pin", func(c *Config) { c.Power.OutPin = c.Power.InPin }},
		{"negative min", func(c *Config) { c.Power.In.Min = -1 }},
		{"max below min", func(c *Config) { c.Power.Out.Min = 700 }},
		{"no cells", func(c *Config) { c.Battery.Cells = 0 }},
		{"inverted target", func(c *Config) { c.Optimizer.TargetMin = 100 }},
		{"empty pending", func(c *Config) { c.Optimizer.PendingSize = 0 }},
		{"thresholds", func(c *Config) { c.Optimizer.OutOffThreshold = 300 }},
		{"voltage window", func(c *Config) { c.Watchdog.VoltageMin = 15 }},
		{"watchdog interval", func(c *Config) { c.Watchdog.IntervalMillis = 10 }},
		{"price window", func(c *Config) { c.Price.WindowHours = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestControllerConfig(t *testing.T) {

	require := require.New(t)

	cfg := validConfig()
	cfg.Power.Out.Target = 300
	cc := cfg.ControllerConfig()

	require.Equal(4, cc.Battery.Cells)
	require.Equal(time.Minute, cc.Battery.SettleActive)
	require.Equal(10*time.Minute, cc.Battery.SettleIdle)
	require.Equal(2000.0, cc.InLimits.Max)
	require.Equal(-1.0, cc.InLimits.Target)
	// only charging has a target cap
	require.Equal(-1.0, cc.OutLimits.Target)
	require.Equal(domain.OptimizeTarget{Min: -50, Max: 50}, cc.OptimizeTarget)
	require.Equal(time.Minute, cc.Watchdog.MaxLag)
	require.Equal(24*time.Hour, cc.PriceWindow)
	require.True(cc.PriceGate)
	require.NoError(cc.Battery.Curves.Charge.Validate())

	cfg.Price.Enable = false
	require.False(cfg.ControllerConfig().PriceGate)
}

func TestCheckMQTTTopic(t *testing.T) {

	topic, err := CheckMQTTTopic("PowerPilot_1")
	assert.NoError(t, err)
	assert.Equal(t, "powerpilot_1", topic)

	_, err = CheckMQTTTopic("power/pilot")
	assert.Error(t, err)
}
