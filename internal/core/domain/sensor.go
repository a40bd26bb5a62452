package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE        = "bridge"
	SENSOR_ID_POWER_STATE         = "power_state"
	SENSOR_ID_CURRENT_POWER_IN    = "current_power_in"
	SENSOR_ID_CURRENT_POWER_OUT   = "current_power_out"
	SENSOR_ID_REQUESTED_STEPS_IN  = "requested_steps_in"
	SENSOR_ID_CURRENT_TOTAL_POWER = "current_total_power"
	SENSOR_ID_CAPACITY_IN         = "capacity_in"
	SENSOR_ID_CAPACITY_OUT        = "capacity_out"
	SENSOR_ID_BATTERY_SOC         = "battery_soc"
	SENSOR_ID_BATTERY_STATE       = "battery_state"
	SENSOR_ID_BATTERY_VOLTAGE     = "battery_voltage"
	SENSOR_ID_SPOT_PRICE          = "spot_price"
	SWITCH_ID_OPTIMIZE            = "power_optimize"
	SWITCH_ID_POWER_OUT_ENABLE    = "power_out_enable"
	INPUT_NUMBER_ID_IN_TARGET     = "power_in_target"
	INPUT_NUMBER_ID_OPTIMIZE_MIN  = "optimize_target_min"
	INPUT_NUMBER_ID_OPTIMIZE_MAX  = "optimize_target_max"
	STATE_CLASS_MEASUREMENT       = "measurement"
	STATE_CLASS_TOTAL_INCREASING  = "total_increasing"
	DEVICE_CLASS_BATTERY          = "battery"
	DEVICE_CLASS_POWER            = "power"
	DEVICE_CLASS_VOLTAGE          = "voltage"
	DEVICE_CLASS_MONETARY         = "monetary"
	DEVICE_CLASS_CONNECTIVITY     = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC       = "diagnostic"
	ENTITY_CLASS_CONFIG           = "config"
	SENSOR_TYPE_SENSOR            = "sensor"
	SENSOR_TYPE_BINARY            = "binary_sensor"
	INPUT_NUMBER_MODE_BOX         = "box"
	INPUT_NUMBER_MODE_SLIDER      = "slider"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing
	DeviceClass       string // voltage, power, battery
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

type GenericInputNumber struct {
	Device       Device
	Id           string
	Name         string
	UniqueId     string
	Icon         string
	Max          float64
	Min          float64
	Step         float64
	Mode         string
	InitialValue float64
}

func ControllerDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("powerpilot_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "PowerPilot",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("PowerPilot %s", md5HashShort(baseTopic)),
	}
}

// IdDevice keeps only the identifiers, for every entity after the first.
func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func ControllerSensors(dev Device) []GenericSensor {
	power := func(id, name string) GenericSensor {
		return GenericSensor{
			Device:            IdDevice(dev),
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_POWER,
			UnitOfMeasurement: "W",
			UniqueId:          uniqueId(dev.Id, id),
		}
	}

	sensors := []GenericSensor{{
		Device:         dev,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(dev.Id, SENSOR_ID_BRIDGE_STATE),
	}}

	sensors = append(sensors,
		power(SENSOR_ID_CURRENT_POWER_IN, "Charge power"),
		power(SENSOR_ID_CURRENT_POWER_OUT, "Discharge power"),
		power(SENSOR_ID_CURRENT_TOTAL_POWER, "Grid power"),
	)

	sensors = append(sensors, GenericSensor{
		Device:     IdDevice(dev),
		Id:         SENSOR_ID_POWER_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Power state",
		Icon:       "mdi:transmission-tower",
		UniqueId:   uniqueId(dev.Id, SENSOR_ID_POWER_STATE),
	}, GenericSensor{
		Device:           IdDevice(dev),
		Id:               SENSOR_ID_REQUESTED_STEPS_IN,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Requested charge steps",
		StateClass:       STATE_CLASS_MEASUREMENT,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(dev.Id, SENSOR_ID_REQUESTED_STEPS_IN),
	}, GenericSensor{
		Device:            IdDevice(dev),
		Id:                SENSOR_ID_CAPACITY_IN,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charged capacity",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		UnitOfMeasurement: "Ah",
		Icon:              "mdi:battery-arrow-up",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_CAPACITY_IN),
	}, GenericSensor{
		Device:            IdDevice(dev),
		Id:                SENSOR_ID_CAPACITY_OUT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Discharged capacity",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		UnitOfMeasurement: "Ah",
		Icon:              "mdi:battery-arrow-down",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_CAPACITY_OUT),
	}, GenericSensor{
		Device:            IdDevice(dev),
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_BATTERY_SOC),
	}, GenericSensor{
		Device:     IdDevice(dev),
		Id:         SENSOR_ID_BATTERY_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Battery state",
		UniqueId:   uniqueId(dev.Id, SENSOR_ID_BATTERY_STATE),
	}, GenericSensor{
		Device:            IdDevice(dev),
		Id:                SENSOR_ID_BATTERY_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_BATTERY_VOLTAGE),
	}, GenericSensor{
		Device:            IdDevice(dev),
		Id:                SENSOR_ID_SPOT_PRICE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Spot price",
		DeviceClass:       DEVICE_CLASS_MONETARY,
		UnitOfMeasurement: "EUR/kWh",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_SPOT_PRICE),
	})

	return sensors
}

func ControllerSwitches(dev Device) []GenericSwitch {
	return []GenericSwitch{{
		Device:   IdDevice(dev),
		Id:       SWITCH_ID_OPTIMIZE,
		Name:     "Optimize power",
		UniqueId: uniqueId(dev.Id, SWITCH_ID_OPTIMIZE),
		Icon:     "mdi:auto-mode",
	}, {
		Device:   IdDevice(dev),
		Id:       SWITCH_ID_POWER_OUT_ENABLE,
		Name:     "Discharge enabled",
		UniqueId: uniqueId(dev.Id, SWITCH_ID_POWER_OUT_ENABLE),
		Icon:     "mdi:battery-minus",
	}}
}

func ControllerInputNumbers(dev Device, target OptimizeTarget, maxIn float64) []GenericInputNumber {
	return []GenericInputNumber{{
		Device:       IdDevice(dev),
		Id:           INPUT_NUMBER_ID_IN_TARGET,
		Name:         "Charge power target",
		UniqueId:     uniqueId(dev.Id, INPUT_NUMBER_ID_IN_TARGET),
		Icon:         "mdi:battery-charging",
		Min:          -1,
		Max:          maxIn,
		Step:         10,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: -1,
	}, {
		Device:       IdDevice(dev),
		Id:           INPUT_NUMBER_ID_OPTIMIZE_MIN,
		Name:         "Optimize target min",
		UniqueId:     uniqueId(dev.Id, INPUT_NUMBER_ID_OPTIMIZE_MIN),
		Icon:         "mdi:arrow-collapse-down",
		Min:          -5000,
		Max:          5000,
		Step:         10,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: target.Min,
	}, {
		Device:       IdDevice(dev),
		Id:           INPUT_NUMBER_ID_OPTIMIZE_MAX,
		Name:         "Optimize target max",
		UniqueId:     uniqueId(dev.Id, INPUT_NUMBER_ID_OPTIMIZE_MAX),
		Icon:         "mdi:arrow-collapse-up",
		Min:          -5000,
		Max:          5000,
		Step:         10,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: target.Max,
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
