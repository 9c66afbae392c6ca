package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorDiscoveryMessage(t *testing.T) {
	c := testClient()
	dev := domain.BridgeDevice("eos_connect")
	sensors := domain.ControlSensors(dev)

	var soc domain.GenericSensor
	for _, s := range sensors {
		if s.Id == domain.SENSOR_ID_BATTERY_SOC {
			soc = s
		}
	}
	require.Equal(t, domain.SENSOR_ID_BATTERY_SOC, soc.Id)

	msg := GenericSensorToHADiscoveryMessage(c, soc)
	assert.Equal(t, "eos_connect/sensor/battery_soc/state", msg.StateTopic)
	assert.Equal(t, "eos_connect/bridge/state", msg.AvTopic)
	assert.Equal(t, "%", msg.UnitOfMeasurement)
	assert.Equal(t, "homeassistant/sensor/"+dev.Id+"/battery_soc/config", HADiscoverySensorTopic(c, soc))
}

func TestSelectDiscoveryMessage(t *testing.T) {
	c := testClient()
	sel := domain.OverrideSelects(domain.BridgeDevice("eos_connect"))[0]

	msg := GenericSelectToHADiscoveryMessage(c, sel)
	assert.Equal(t, "eos_connect/select/override_mode/set", msg.CommandTopic)
	assert.Len(t, msg.Options, 7)
	assert.Equal(t, domain.SELECT_OPTION_AUTO, msg.Options[0])

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"options":["AUTO"`)
}

func TestBinarySensorPayloads(t *testing.T) {
	c := testClient()
	for _, s := range domain.ControlSensors(domain.BridgeDevice("eos_connect")) {
		if s.SensorType != domain.SENSOR_TYPE_BINARY {
			continue
		}
		msg := GenericSensorToHADiscoveryMessage(c, s)
		assert.Equal(t, MQTT_PAYLOAD_ON, msg.PayloadOn, s.Id)
		assert.Contains(t, msg.StateTopic, "/binary_sensor/", s.Id)
	}
}
