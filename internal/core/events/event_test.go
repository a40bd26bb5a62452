package events

import (
	"testing"
	"time"

	. "github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStatus() ControllerStatus {
	return ControllerStatus{
		Timestamp:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		PowerState:        PowerIn,
		BatteryState:      BatteryCharging,
		BatterySOC:        66,
		BatteryVoltage:    13.35,
		CurrentPowerIn:    450,
		CurrentTotalPower: -20,
		OptimizeEnabled:   true,
		OptimizeTarget:    OptimizeTarget{Min: -50, Max: 50},
		InTarget:          -1,
		CapacityIn:        1.25,
		PowerOutEnabled:   true,
	}
}

func TestStatusToUpdateEvents(t *testing.T) {

	require := require.New(t)

	evs := StatusToUpdateEvents(testStatus())

	byId := map[string]any{}
	for _, ev := range evs {
		sev, ok := ev.(SensorUpdateEvent)
		require.True(ok, "%T is not a sensor event", ev)
		byId[sev.SensorId()] = ev
	}

	require.Equal(TextEvent(SENSOR_ID_POWER_STATE, "in"), byId[SENSOR_ID_POWER_STATE])
	require.Equal(TextEvent(SENSOR_ID_BATTERY_STATE, "charging"), byId[SENSOR_ID_BATTERY_STATE])
	require.Equal(FloatEvent(SENSOR_ID_CURRENT_POWER_IN, 450, 0), byId[SENSOR_ID_CURRENT_POWER_IN])
	require.Equal(FloatEvent(SENSOR_ID_BATTERY_SOC, 66, 0), byId[SENSOR_ID_BATTERY_SOC])
	require.Equal(SwitchEvent(SWITCH_ID_OPTIMIZE, true), byId[SWITCH_ID_OPTIMIZE])
	require.Equal(InputNumberEvent(INPUT_NUMBER_ID_OPTIMIZE_MIN, -50, 0), byId[INPUT_NUMBER_ID_OPTIMIZE_MIN])

	// no price yet
	require.NotContains(byId, SENSOR_ID_SPOT_PRICE)
}

func TestStatusToUpdateEventsUnknownSOC(t *testing.T) {

	s := testStatus()
	s.BatterySOC = -1
	price := 0.1234
	s.CurrentPrice = &price

	byId := map[string]any{}
	for _, ev := range StatusToUpdateEvents(s) {
		byId[ev.(SensorUpdateEvent).SensorId()] = ev
	}
	assert.NotContains(t, byId, SENSOR_ID_BATTERY_SOC)
	assert.Equal(t, FloatEvent(SENSOR_ID_SPOT_PRICE, 0.1234, 4), byId[SENSOR_ID_SPOT_PRICE])
}

func TestStatusChanged(t *testing.T) {

	assert := assert.New(t)

	a := testStatus()
	b := testStatus()
	b.Timestamp = b.Timestamp.Add(time.Minute)
	assert.False(StatusChanged(a, b), "timestamp alone is not a change")

	p1, p2 := 0.2, 0.2
	a.CurrentPrice = &p1
	b.CurrentPrice = &p2
	assert.False(StatusChanged(a, b), "prices compared by value")

	p2 = 0.3
	assert.True(StatusChanged(a, b))

	a, b = testStatus(), testStatus()
	b.CurrentPowerIn = 500
	assert.True(StatusChanged(a, b))
}
