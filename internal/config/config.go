package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/powerpilot/internal/adapter/driver"
	"github.com/berfenger/powerpilot/internal/adapter/sensor"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/service"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Power     PowerConfig     `mapstructure:"power"`
	Battery   BatteryConfig   `mapstructure:"battery"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Watchdog  WatchdogConfig  `mapstructure:"watchdog"`
	Price     PriceConfig     `mapstructure:"price"`
	Sensor    sensor.Config   `mapstructure:"sensor"`
	Jobs      JobsConfig      `mapstructure:"jobs"`

	StatusIntervalMillis uint32 `mapstructure:"status_interval_millis"`
	// use in-memory pins instead of the host GPIO
	DryRun  bool `mapstructure:"dry_run"`
	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type PowerConfig struct {
	// in line is active low
	InPin      string          `mapstructure:"in_pin"`
	OutPin     string          `mapstructure:"out_pin"`
	OutEnabled bool            `mapstructure:"out_enabled"`
	In         DirectionConfig `mapstructure:"in"`
	Out        DirectionConfig `mapstructure:"out"`
}

type DirectionConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
	// negative disables the cap
	Target float64       `mapstructure:"target"`
	Driver driver.Config `mapstructure:",squash"`
}

type BatteryConfig struct {
	Cells              int     `mapstructure:"cells"`
	NominalVoltage     float64 `mapstructure:"nominal_voltage"`
	SettleActiveMillis uint32  `mapstructure:"settle_active_millis"`
	SettleIdleMillis   uint32  `mapstructure:"settle_idle_millis"`
}

type OptimizerConfig struct {
	Enable          bool    `mapstructure:"enable"`
	TargetMin       float64 `mapstructure:"target_min"`
	TargetMax       float64 `mapstructure:"target_max"`
	PendingSize     int     `mapstructure:"pending_size"`
	InMin           float64 `mapstructure:"in_min"`
	OutOnThreshold  float64 `mapstructure:"out_on_threshold"`
	OutOffThreshold float64 `mapstructure:"out_off_threshold"`
}

type WatchdogConfig struct {
	IntervalMillis uint32  `mapstructure:"interval_millis"`
	VoltageMin     float64 `mapstructure:"voltage_min"`
	VoltageMax     float64 `mapstructure:"voltage_max"`
	MaxLagMillis   uint32  `mapstructure:"max_lag_millis"`
}

type PriceConfig struct {
	Enable        bool   `mapstructure:"enable"`
	URL           string `mapstructure:"url"`
	WindowHours   uint32 `mapstructure:"window_hours"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
	RefreshCron   string `mapstructure:"refresh_cron"`
}

type JobsConfig struct {
	CapacityResetCron string `mapstructure:"capacity_reset_cron"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	MeterTopic        string `mapstructure:"meter_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks the bounds that viper cannot express.
func (c *Config) Validate() error {
	if c.Power.InPin == "" || c.Power.OutPin == "" {
		return errors.New("config params power.in_pin and power.out_pin are required")
	}
	if c.Power.InPin == c.Power.OutPin {
		return errors.New("config params power.in_pin and power.out_pin must differ")
	}
	for name, dir := range map[string]DirectionConfig{"in": c.Power.In, "out": c.Power.Out} {
		if dir.Min < 0 || dir.Max < dir.Min {
			return fmt.Errorf("config params power.%s.min/max should satisfy 0 <= min <= max", name)
		}
	}
	if c.Battery.Cells <= 0 {
		return errors.New("config param battery.cells should be > 0")
	}
	if c.Battery.NominalVoltage <= 0 {
		return errors.New("config param battery.nominal_voltage should be > 0")
	}
	if c.Optimizer.TargetMin > c.Optimizer.TargetMax {
		return errors.New("config param optimizer.target_min must be <= optimizer.target_max")
	}
	if c.Optimizer.PendingSize < 1 {
		return errors.New("config param optimizer.pending_size should be >= 1")
	}
	if c.Optimizer.OutOffThreshold > c.Optimizer.OutOnThreshold {
		return errors.New("config param optimizer.out_off_threshold must be <= optimizer.out_on_threshold")
	}
	if c.Watchdog.VoltageMin >= c.Watchdog.VoltageMax {
		return errors.New("config param watchdog.voltage_min must be < watchdog.voltage_max")
	}
	if c.Watchdog.IntervalMillis < 1000 {
		return errors.New("config param watchdog.interval_millis should be >= 1000")
	}
	if c.StatusIntervalMillis < 1000 {
		return errors.New("config param status_interval_millis should be >= 1000")
	}
	if c.Price.Enable && c.Price.WindowHours == 0 {
		return errors.New("config param price.window_hours should be > 0")
	}
	return nil
}

func (c *Config) ControllerConfig() service.ControllerConfig {
	return service.ControllerConfig{
		Battery: service.BatteryConfig{
			Cells:        c.Battery.Cells,
			SettleActive: millis(c.Battery.SettleActiveMillis),
			SettleIdle:   millis(c.Battery.SettleIdleMillis),
			Curves:       service.DefaultCurves,
		},
		NominalVoltage: c.Battery.NominalVoltage,
		InLimits:       service.Limits{Min: c.Power.In.Min, Max: c.Power.In.Max, Target: c.Power.In.Target},
		OutLimits:      service.Limits{Min: c.Power.Out.Min, Max: c.Power.Out.Max, Target: -1},
		OutEnabled:     c.Power.OutEnabled,
		Optimizer: service.OptimizerConfig{
			PendingSize:     c.Optimizer.PendingSize,
			InMin:           c.Optimizer.InMin,
			OutOnThreshold:  c.Optimizer.OutOnThreshold,
			OutOffThreshold: c.Optimizer.OutOffThreshold,
		},
		OptimizeTarget: domain.OptimizeTarget{Min: c.Optimizer.TargetMin, Max: c.Optimizer.TargetMax},
		Optimize:       c.Optimizer.Enable,
		Watchdog: service.WatchdogConfig{
			VoltageMin: c.Watchdog.VoltageMin,
			VoltageMax: c.Watchdog.VoltageMax,
			MaxLag:     millis(c.Watchdog.MaxLagMillis),
		},
		PriceWindow: time.Duration(c.Price.WindowHours) * time.Hour,
		PriceGate:   c.Price.Enable,
	}
}

func millis(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
