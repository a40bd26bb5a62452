package events

import (
	. "github.com/berfenger/powerpilot/internal/core/domain"
)

// StatusToUpdateEvents maps a controller snapshot to the sensor, switch and
// number state events published to MQTT.
func StatusToUpdateEvents(s ControllerStatus) []any {
	var events []any

	events = append(events,
		TextEvent(SENSOR_ID_POWER_STATE, s.PowerState.String()),
		TextEvent(SENSOR_ID_BATTERY_STATE, s.BatteryState.String()),
	)

	// power
	events = append(events,
		FloatEvent(SENSOR_ID_CURRENT_POWER_IN, s.CurrentPowerIn, 0),
		FloatEvent(SENSOR_ID_CURRENT_POWER_OUT, s.CurrentPowerOut, 0),
		FloatEvent(SENSOR_ID_CURRENT_TOTAL_POWER, s.CurrentTotalPower, 0),
		FloatEvent(SENSOR_ID_REQUESTED_STEPS_IN, s.RequestedStepsIn, 0),
	)

	// battery
	events = append(events,
		FloatEvent(SENSOR_ID_CAPACITY_IN, s.CapacityIn, 3),
		FloatEvent(SENSOR_ID_CAPACITY_OUT, s.CapacityOut, 3),
		FloatEvent(SENSOR_ID_BATTERY_VOLTAGE, s.BatteryVoltage, 2),
	)
	// -1 until the first reading
	if s.BatterySOC >= 0 {
		events = append(events, FloatEvent(SENSOR_ID_BATTERY_SOC, float64(s.BatterySOC), 0))
	}
	if s.CurrentPrice != nil {
		events = append(events, FloatEvent(SENSOR_ID_SPOT_PRICE, *s.CurrentPrice, 4))
	}

	// controls
	events = append(events,
		SwitchEvent(SWITCH_ID_OPTIMIZE, s.OptimizeEnabled),
		SwitchEvent(SWITCH_ID_POWER_OUT_ENABLE, s.PowerOutEnabled),
		InputNumberEvent(INPUT_NUMBER_ID_IN_TARGET, s.InTarget, 0),
		InputNumberEvent(INPUT_NUMBER_ID_OPTIMIZE_MIN, s.OptimizeTarget.Min, 0),
		InputNumberEvent(INPUT_NUMBER_ID_OPTIMIZE_MAX, s.OptimizeTarget.Max, 0),
	)

	return events
}

// StatusChanged reports whether two snapshots differ in any published field.
func StatusChanged(prev, next ControllerStatus) bool {
	prev.Timestamp = next.Timestamp
	if (prev.CurrentPrice == nil) != (next.CurrentPrice == nil) {
		return true
	}
	if prev.CurrentPrice != nil && *prev.CurrentPrice != *next.CurrentPrice {
		return true
	}
	prev.CurrentPrice = next.CurrentPrice
	return prev != next
}
