package mqtt

import (
	"testing"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerDiscoveryMessages(t *testing.T) {

	require := require.New(t)

	c := testClient(t)
	dev := domain.ControllerDevice(c.NodeId())
	sensors := domain.ControllerSensors(dev)

	bridge := GenericSensorToHADiscoveryMessage(c, sensors[0])
	require.Equal(c.BridgeStateTopic(), bridge.StateTopic)
	require.Equal(MQTT_PAYLOAD_ONLINE, bridge.PayloadOn)
	require.Equal("mqtt", bridge.Platform)
	require.Equal([]string{dev.Id}, bridge.Device.Id)
	require.Equal(dev.Model, bridge.Device.Model)

	for _, s := range sensors[1:] {
		msg := GenericSensorToHADiscoveryMessage(c, s)
		require.Equal(c.SensorStateTopic(s.Id), msg.StateTopic, s.Id)
		require.Empty(msg.Device.Model, "only the first entity carries device details")
	}

	sw := domain.ControllerSwitches(dev)[0]
	swMsg := GenericSwitchToHADiscoveryMessage(c, sw)
	require.Equal(c.SwitchCommandTopic(sw.Id), swMsg.CommandTopic)
	require.Equal(MQTT_PAYLOAD_ON, swMsg.PayloadOn)

	num := domain.ControllerInputNumbers(dev, domain.OptimizeTarget{Min: -50, Max: 50}, 2000)[2]
	numMsg := GenericInputNumberToHADiscoveryMessage(c, num)
	require.Equal(c.InputNumberCommandTopic(num.Id), numMsg.CommandTopic)
	require.Equal(50.0, numMsg.InitialValue)
}

func TestDiscoveryTopics(t *testing.T) {

	assert := assert.New(t)

	dev := domain.Device{Id: "powerpilot_1234abcd"}
	assert.Equal("homeassistant/sensor/powerpilot_1234abcd/battery_soc/config",
		HADiscoverySensorTopic("homeassistant", domain.GenericSensor{Device: dev, Id: "battery_soc", SensorType: domain.SENSOR_TYPE_SENSOR}))
	assert.Equal("ha/switch/powerpilot_1234abcd/power_optimize/config",
		HADiscoverySwitchTopic("ha", domain.GenericSwitch{Device: dev, Id: "power_optimize"}))
	assert.Equal("ha/number/powerpilot_1234abcd/power_in_target/config",
		HADiscoveryInputNumberTopic("ha", domain.GenericInputNumber{Device: dev, Id: "power_in_target"}))
}
